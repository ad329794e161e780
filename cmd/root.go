package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/shard-planner/planner"
)

var (
	// CLI flags for the scoring pass
	logLevel     string // Log verbosity level
	planPath     string // Path to the YAML plan (topology, constraints, sharding options)
	resultsPath  string // File to save the JSON report to
	parallelism  int    // Number of sharding options scored concurrently
	markBest     bool   // Whether to report the cheapest option per table
	printMetrics bool   // Whether to print scoring counters after the run

	// topology overrides (take precedence over the plan file)
	worldSize      int     // Devices across all hosts
	localWorldSize int     // Devices per host
	computeDevice  string  // cpu or cuda
	intraHostBW    float64 // Bandwidth between devices on one host
	interHostBW    float64 // Bandwidth between hosts

	// bandwidth command
	kernelName   string  // Compute kernel to resolve (empty = all)
	cachingRatio float64 // Caching ratio for UVM caching kernels
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "shard-planner",
	Short: "Wall-time cost estimation for embedding table sharding plans",
}

// setLogLevel parses --log and applies it to the standard logger
func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// applyTopologyOverrides copies explicitly set CLI flags over the plan file's topology.
func applyTopologyOverrides(cmd *cobra.Command, spec *planner.TopologySpec) {
	if cmd.Flags().Changed("world-size") {
		spec.WorldSize = worldSize
	}
	if cmd.Flags().Changed("local-world-size") {
		spec.LocalWorldSize = localWorldSize
	}
	if cmd.Flags().Changed("compute-device") {
		spec.ComputeDevice = computeDevice
	}
	if cmd.Flags().Changed("intra-host-bw") {
		bw := intraHostBW
		spec.IntraHostBW = &bw
	}
	if cmd.Flags().Changed("inter-host-bw") {
		bw := interHostBW
		spec.InterHostBW = &bw
	}
}

// partialHost reports whether the last host would hold fewer than local_world_size devices
func partialHost(t planner.Topology) bool {
	return t.NumHosts()*t.LocalWorldSize != t.WorldSize
}

// scoreCmd loads a plan, scores every sharding option, and reports per-shard costs
var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Estimate per-shard wall-time cost for every sharding option in a plan",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		if planPath == "" {
			logrus.Fatalf("--plan is required")
		}
		if parallelism < 1 {
			logrus.Fatalf("--parallelism must be >= 1, got %d", parallelism)
		}

		pf, err := planner.ReadPlanFile(planPath)
		if err != nil {
			logrus.Fatalf("Failed to load plan: %v", err)
		}
		applyTopologyOverrides(cmd, &pf.Topology)

		if pf.Topology.IntraHostBW == nil {
			logrus.Warnf("No intra-host bandwidth given, using default %v", planner.IntraNodeBandwidth)
		}
		if pf.Topology.InterHostBW == nil {
			logrus.Warnf("No inter-host bandwidth given, using default %v", planner.CrossNodeBandwidth)
		}

		plan, err := pf.Build()
		if err != nil {
			logrus.Fatalf("Invalid plan: %v", err)
		}
		if partialHost(plan.Topology) {
			logrus.Warnf("world_size=%d is not a multiple of local_world_size=%d, only %d full hosts",
				plan.Topology.WorldSize, plan.Topology.LocalWorldSize, plan.Topology.NumHosts())
		}

		registry := prometheus.NewRegistry()
		costMetrics, err := planner.NewCostMetrics(registry)
		if err != nil {
			logrus.Fatalf("Failed to register metrics: %v", err)
		}

		calc, err := planner.NewEmbeddingWTCostCalculator(plan.Topology, plan.Constraints,
			planner.WithParallelism(parallelism),
			planner.WithMetrics(costMetrics),
			planner.WithLogger(logrus.StandardLogger()))
		if err != nil {
			logrus.Fatalf("Failed to create calculator: %v", err)
		}

		logrus.Infof("Scoring %d sharding options on %d devices (%d per host, %s)",
			len(plan.Options), plan.Topology.WorldSize, plan.Topology.LocalWorldSize, plan.Topology.ComputeDevice)

		startTime := time.Now()
		if err := calc.RunContext(cmd.Context(), plan.Options); err != nil {
			logrus.Fatalf("Scoring failed: %v", err)
		}
		logrus.Debugf("Scoring took %v", time.Since(startTime))

		report, err := planner.NewReport(plan.Topology, plan.Options, startTime)
		if err != nil {
			logrus.Fatalf("Failed to build report: %v", err)
		}
		if markBest {
			if err := report.MarkBest(plan.Options); err != nil {
				logrus.Fatalf("Failed to select best options: %v", err)
			}
		}
		if err := report.SaveResults(resultsPath); err != nil {
			logrus.Fatalf("Failed to save report: %v", err)
		}

		if printMetrics {
			if err := printCounters(registry); err != nil {
				logrus.Fatalf("Failed to gather metrics: %v", err)
			}
		}

		logrus.Info("Scoring complete.")
	},
}

// printCounters prints every counter in registry, sorted by name and labels
func printCounters(registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s}: %v", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	fmt.Printf("\n=== Scoring Metrics ===\n")
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}

// bandwidthCmd prints the effective compute bandwidth of each kernel on a device
var bandwidthCmd = &cobra.Command{
	Use:   "bandwidth",
	Short: "Show the effective lookup bandwidth per compute kernel",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		device, err := planner.ParseComputeDevice(computeDevice)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		var ratio *float64
		if cmd.Flags().Changed("caching-ratio") {
			ratio = &cachingRatio
		}

		kernels := []planner.ComputeKernel{
			planner.KernelDense, planner.KernelSparse, planner.KernelBatchedDense,
			planner.KernelBatchedFused, planner.KernelBatchedFusedUVM,
			planner.KernelBatchedFusedUVMCaching, planner.KernelBatchedQuant,
		}
		if kernelName != "" {
			k, err := planner.ParseComputeKernel(kernelName)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			kernels = []planner.ComputeKernel{k}
		}

		for _, k := range kernels {
			bw, err := planner.KernelBandwidth(device, k, ratio)
			if err != nil {
				logrus.Debugf("Skipping %s: %v", k, err)
				continue
			}
			fmt.Printf("%-28s %10.3f\n", k, bw)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	scoreCmd.Flags().StringVar(&planPath, "plan", "", "Path to YAML plan with topology, constraints and sharding options")
	scoreCmd.Flags().StringVar(&resultsPath, "results-path", "", "File to save the JSON cost report to")
	scoreCmd.Flags().IntVar(&parallelism, "parallelism", 1, "Number of sharding options scored concurrently")
	scoreCmd.Flags().BoolVar(&markBest, "best", false, "Mark the cheapest sharding option per table in the report")
	scoreCmd.Flags().BoolVar(&printMetrics, "print-metrics", false, "Print scoring counters after the run")

	// Topology overrides
	scoreCmd.Flags().IntVar(&worldSize, "world-size", 0, "Devices across all hosts (overrides plan)")
	scoreCmd.Flags().IntVar(&localWorldSize, "local-world-size", 0, "Devices per host (overrides plan)")
	scoreCmd.Flags().StringVar(&computeDevice, "compute-device", "cuda", "Compute device: cpu, cuda (overrides plan)")
	scoreCmd.Flags().Float64Var(&intraHostBW, "intra-host-bw", planner.IntraNodeBandwidth, "Intra-host bandwidth (overrides plan)")
	scoreCmd.Flags().Float64Var(&interHostBW, "inter-host-bw", planner.CrossNodeBandwidth, "Inter-host bandwidth (overrides plan)")

	bandwidthCmd.Flags().StringVar(&computeDevice, "compute-device", "cuda", "Compute device: cpu, cuda")
	bandwidthCmd.Flags().StringVar(&kernelName, "kernel", "", "Compute kernel (default: all)")
	bandwidthCmd.Flags().Float64Var(&cachingRatio, "caching-ratio", planner.DefaultCachingRatio, "Caching ratio for batched_fused_uvm_caching")

	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(bandwidthCmd)
}
