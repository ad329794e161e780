// Collects scored sharding options into a JSON report for the search procedure and for humans.

package planner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/inference-sim/shard-planner/planner/internal/hash"
)

// ShardCostOutput is one shard's row in the report.
type ShardCostOutput struct {
	Rows   int64   `json:"rows"`
	Cols   int64   `json:"cols"`
	Offset []int64 `json:"offset"`
	Cost   float64 `json:"cost"`
}

// OptionCostOutput is one sharding option's entry in the report.
type OptionCostOutput struct {
	Name          string            `json:"name"`
	ShardingType  string            `json:"sharding_type"`
	ComputeKernel string            `json:"compute_kernel"`
	Fingerprint   string            `json:"fingerprint"`
	InputDist     bool              `json:"input_dist"`
	OutputDist    bool              `json:"output_dist"`
	TotalCost     float64           `json:"total_cost"`
	Shards        []ShardCostOutput `json:"shards"`
}

// Report is the JSON document emitted after a scoring pass.
type Report struct {
	Timestamp      string             `json:"timestamp"`
	WorldSize      int                `json:"world_size"`
	LocalWorldSize int                `json:"local_world_size"`
	ComputeDevice  string             `json:"compute_device"`
	IntraHostBW    float64            `json:"intra_host_bw"`
	InterHostBW    float64            `json:"inter_host_bw"`
	Options        []OptionCostOutput `json:"options"`
	Best           []string           `json:"best,omitempty"` // fingerprints of the cheapest option per table
}

// Fingerprint identifies a sharding option by every input that affects its cost, ignoring the costs themselves.
func Fingerprint(o *ShardingOption) string {
	return hash.HashOption(hash.OptionKey{
		Name:               o.Name,
		ShardingType:       o.ShardingType.String(),
		ComputeKernel:      o.ComputeKernel.String(),
		BatchSize:          o.BatchSize,
		InputLengths:       o.InputLengths,
		OutputDataTypeSize: o.OutputDataTypeSize,
		InputDist:          o.HasInputDist(),
		OutputDist:         o.HasOutputDist(),
		Shapes:             o.ShardShapes(),
	})
}

// NewReport builds a report from scored options. Every shard must already have a cost.
func NewReport(topology Topology, options []*ShardingOption, now time.Time) (*Report, error) {
	r := &Report{
		Timestamp:      now.Format("2006-01-02 15:04:05"),
		WorldSize:      topology.WorldSize,
		LocalWorldSize: topology.LocalWorldSize,
		ComputeDevice:  topology.ComputeDevice.String(),
		IntraHostBW:    topology.IntraHostBW,
		InterHostBW:    topology.InterHostBW,
		Options:        make([]OptionCostOutput, 0, len(options)),
	}
	for _, o := range options {
		total, err := o.TotalCost()
		if err != nil {
			return nil, err
		}
		entry := OptionCostOutput{
			Name:          o.Name,
			ShardingType:  o.ShardingType.String(),
			ComputeKernel: o.ComputeKernel.String(),
			Fingerprint:   Fingerprint(o),
			InputDist:     o.HasInputDist(),
			OutputDist:    o.HasOutputDist(),
			TotalCost:     total,
			Shards:        make([]ShardCostOutput, len(o.Shards)),
		}
		for i, s := range o.Shards {
			entry.Shards[i] = ShardCostOutput{
				Rows:   s.Size[0],
				Cols:   s.Size[1],
				Offset: []int64{s.Offset[0], s.Offset[1]},
				Cost:   *s.Cost,
			}
		}
		r.Options = append(r.Options, entry)
	}
	return r, nil
}

// MarkBest records the fingerprints of the cheapest option per table.
func (r *Report) MarkBest(options []*ShardingOption) error {
	best, err := BestOptions(options)
	if err != nil {
		return err
	}
	r.Best = make([]string, len(best))
	for i, o := range best {
		r.Best[i] = Fingerprint(o)
	}
	return nil
}

// Write prints the report as indented JSON to w.
func (r *Report) Write(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// SaveResults prints the report to stdout and, if outputFilePath is set, writes it there too.
func (r *Report) SaveResults(outputFilePath string) error {
	fmt.Println("=== Shard Cost Report ===")
	if err := r.Write(os.Stdout); err != nil {
		return err
	}
	if outputFilePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	if err := os.WriteFile(outputFilePath, data, 0644); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	fmt.Printf("\nReport written to: %s\n", outputFilePath)
	return nil
}
