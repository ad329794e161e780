package planner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanFile is the on-disk YAML form of a scoring request.
// Pointer fields distinguish "not set" from zero.
type PlanFile struct {
	Topology        TopologySpec              `yaml:"topology"`
	Constraints     map[string]ConstraintSpec `yaml:"constraints,omitempty"`
	ShardingOptions []ShardingOptionSpec      `yaml:"sharding_options"`
}

// TopologySpec is the YAML form of Topology.
type TopologySpec struct {
	WorldSize      int      `yaml:"world_size"`
	LocalWorldSize int      `yaml:"local_world_size"`
	ComputeDevice  string   `yaml:"compute_device"`
	IntraHostBW    *float64 `yaml:"intra_host_bw,omitempty"`
	InterHostBW    *float64 `yaml:"inter_host_bw,omitempty"`
}

// ConstraintSpec is the YAML form of PlannerConstraints.
type ConstraintSpec struct {
	CachingRatio *float64 `yaml:"caching_ratio,omitempty"`
}

// ShardingOptionSpec is the YAML form of ShardingOption.
// The output element width is output_data_type_size if set, otherwise derived from data_type.
type ShardingOptionSpec struct {
	Name               string      `yaml:"name"`
	ShardingType       string      `yaml:"sharding_type"`
	ComputeKernel      string      `yaml:"compute_kernel"`
	BatchSize          int64       `yaml:"batch_size"`
	InputLengths       []float64   `yaml:"input_lengths"`
	DataType           string      `yaml:"data_type,omitempty"`
	OutputDataTypeSize *float64    `yaml:"output_data_type_size,omitempty"`
	UpstreamModules    []string    `yaml:"upstream_modules,omitempty"`
	DownstreamModules  []string    `yaml:"downstream_modules,omitempty"`
	Shards             []ShardSpec `yaml:"shards"`
}

// ShardSpec is the YAML form of Shard.
type ShardSpec struct {
	Size   [2]int64 `yaml:"size"`
	Offset [2]int64 `yaml:"offset,omitempty"`
}

// Plan is a fully resolved scoring request.
type Plan struct {
	Topology    Topology
	Constraints Constraints
	Options     []*ShardingOption
}

// LoadPlan reads and resolves a YAML plan file.
func LoadPlan(path string) (*Plan, error) {
	pf, err := ReadPlanFile(path)
	if err != nil {
		return nil, err
	}
	return pf.Build()
}

// ReadPlanFile reads a YAML plan file without resolving it, so callers can apply overrides first.
func ReadPlanFile(path string) (*PlanFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	pf, err := ParsePlanFile(data)
	if err != nil {
		return nil, fmt.Errorf("plan file %s: %w", path, err)
	}
	return pf, nil
}

// ParsePlanFile decodes YAML into a PlanFile. Unknown fields are rejected.
func ParsePlanFile(data []byte) (*PlanFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var pf PlanFile
	if err := dec.Decode(&pf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty plan")
		}
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	return &pf, nil
}

// Build resolves names into enums and optional values into defaults.
func (pf *PlanFile) Build() (*Plan, error) {
	device, err := ParseComputeDevice(pf.Topology.ComputeDevice)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	topo, err := NewTopology(pf.Topology.WorldSize, pf.Topology.LocalWorldSize, device,
		pf.Topology.IntraHostBW, pf.Topology.InterHostBW)
	if err != nil {
		return nil, err
	}

	var constraints Constraints
	if len(pf.Constraints) > 0 {
		constraints = make(Constraints, len(pf.Constraints))
		for name, cs := range pf.Constraints {
			constraints[name] = PlannerConstraints{CachingRatio: cs.CachingRatio}
		}
		if err := constraints.Validate(); err != nil {
			return nil, err
		}
	}

	options := make([]*ShardingOption, 0, len(pf.ShardingOptions))
	for i, spec := range pf.ShardingOptions {
		o, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("sharding_options[%d] (%s): %w", i, spec.Name, err)
		}
		options = append(options, o)
	}
	return &Plan{Topology: topo, Constraints: constraints, Options: options}, nil
}

func (s ShardingOptionSpec) build() (*ShardingOption, error) {
	st, err := ParseShardingType(s.ShardingType)
	if err != nil {
		return nil, err
	}
	kernel, err := ParseComputeKernel(s.ComputeKernel)
	if err != nil {
		return nil, err
	}

	var outSize float64
	switch {
	case s.OutputDataTypeSize != nil:
		outSize = *s.OutputDataTypeSize
	case s.DataType != "":
		dt, err := ParseDataType(s.DataType)
		if err != nil {
			return nil, err
		}
		outSize = dt.ElementSize()
	default:
		outSize = FP32.ElementSize()
	}

	shards := make([]*Shard, len(s.Shards))
	for i, sh := range s.Shards {
		shards[i] = NewShard(sh.Size[0], sh.Size[1], sh.Offset[0], sh.Offset[1])
	}
	return &ShardingOption{
		Name:               s.Name,
		ShardingType:       st,
		ComputeKernel:      kernel,
		BatchSize:          s.BatchSize,
		InputLengths:       s.InputLengths,
		OutputDataTypeSize: outSize,
		UpstreamModules:    s.UpstreamModules,
		DownstreamModules:  s.DownstreamModules,
		Shards:             shards,
	}, nil
}
