package planner

import (
	"fmt"
	"math"
	"strings"
)

// ShardingType is the axis or method by which an embedding table is partitioned across devices.
// The set is closed: every value has a cost model in shardingCost.
type ShardingType int

const (
	TableWise ShardingType = iota + 1
	ColumnWise
	RowWise
	TableRowWise
	DataParallel
)

var shardingTypeNames = map[ShardingType]string{
	TableWise:    "table_wise",
	ColumnWise:   "column_wise",
	RowWise:      "row_wise",
	TableRowWise: "table_row_wise",
	DataParallel: "data_parallel",
}

func (s ShardingType) String() string {
	if name, ok := shardingTypeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ShardingType(%d)", int(s))
}

// ParseShardingType converts a wire name (e.g. "row_wise") into a ShardingType.
func ParseShardingType(name string) (ShardingType, error) {
	for st, n := range shardingTypeNames {
		if n == strings.ToLower(name) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedShardingType, name)
}

// ComputeDevice is the kind of device that executes embedding lookups.
type ComputeDevice int

const (
	CPU ComputeDevice = iota + 1
	CUDA
)

func (d ComputeDevice) String() string {
	switch d {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	default:
		return fmt.Sprintf("ComputeDevice(%d)", int(d))
	}
}

// ParseComputeDevice accepts "cpu" or "cuda" ("gpu" is an alias for "cuda").
func ParseComputeDevice(name string) (ComputeDevice, error) {
	switch strings.ToLower(name) {
	case "cpu":
		return CPU, nil
	case "cuda", "gpu":
		return CUDA, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDevice, name)
	}
}

// ComputeKernel identifies where an embedding table lives and how lookups are executed.
type ComputeKernel int

const (
	KernelDense ComputeKernel = iota + 1
	KernelSparse
	KernelBatchedDense
	KernelBatchedFused
	KernelBatchedFusedUVM
	KernelBatchedFusedUVMCaching
	KernelBatchedQuant
)

var computeKernelNames = map[ComputeKernel]string{
	KernelDense:                  "dense",
	KernelSparse:                 "sparse",
	KernelBatchedDense:           "batched_dense",
	KernelBatchedFused:           "batched_fused",
	KernelBatchedFusedUVM:        "batched_fused_uvm",
	KernelBatchedFusedUVMCaching: "batched_fused_uvm_caching",
	KernelBatchedQuant:           "batched_quant",
}

func (k ComputeKernel) String() string {
	if name, ok := computeKernelNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ComputeKernel(%d)", int(k))
}

// ParseComputeKernel converts a wire name (e.g. "batched_fused") into a ComputeKernel.
func ParseComputeKernel(name string) (ComputeKernel, error) {
	for k, n := range computeKernelNames {
		if n == strings.ToLower(name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedKernel, name)
}

// DataType is the numeric precision of an embedding table's weights.
type DataType int

const (
	FP32 DataType = iota + 1
	FP16
	BF16
	INT8
	INT4
)

var dataTypeSizes = map[DataType]float64{
	FP32: 4,
	FP16: 2,
	BF16: 2,
	INT8: 1,
	INT4: 0.5,
}

var dataTypeNames = map[DataType]string{
	FP32: "fp32",
	FP16: "fp16",
	BF16: "bf16",
	INT8: "int8",
	INT4: "int4",
}

func (d DataType) String() string {
	if name, ok := dataTypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// ElementSize returns bytes per element, or 0 for an unknown DataType.
func (d DataType) ElementSize() float64 {
	return dataTypeSizes[d]
}

// ParseDataType converts "fp32", "fp16", "bf16", "int8" or "int4" into a DataType.
func ParseDataType(name string) (DataType, error) {
	for d, n := range dataTypeNames {
		if n == strings.ToLower(name) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedDataType, name)
}

// Shard is one partition of a table. Cost is nil until the calculator assigns it.
type Shard struct {
	Size   [2]int64 // (rows, cols)
	Offset [2]int64 // position of the shard within the full table
	Cost   *float64
}

// NewShard creates an unscored Shard of the given shape at the given offset.
func NewShard(rows, cols, rowOffset, colOffset int64) *Shard {
	return &Shard{
		Size:   [2]int64{rows, cols},
		Offset: [2]int64{rowOffset, colOffset},
	}
}

// ShardingOption is one candidate placement for a table: a strategy, a kernel and the shards
// the table is split into.
type ShardingOption struct {
	Name               string
	ShardingType       ShardingType
	ComputeKernel      ComputeKernel
	BatchSize          int64
	InputLengths       []float64 // per-feature average pooling factors
	OutputDataTypeSize float64   // bytes per output element
	UpstreamModules    []string
	DownstreamModules  []string
	Shards             []*Shard
}

// HasInputDist reports whether input features must be redistributed before lookup.
// They must whenever an upstream module feeds the table.
func (o *ShardingOption) HasInputDist() bool {
	return len(o.UpstreamModules) > 0
}

// HasOutputDist reports whether pooled outputs must be redistributed after lookup.
// A downstream module consumes shards in place, so output redistribution is only
// needed when there is none.
func (o *ShardingOption) HasOutputDist() bool {
	return len(o.DownstreamModules) == 0
}

// ShardShapes returns the (rows, cols) of every shard in shard order.
func (o *ShardingOption) ShardShapes() [][2]int64 {
	shapes := make([][2]int64, len(o.Shards))
	for i, s := range o.Shards {
		shapes[i] = s.Size
	}
	return shapes
}

// TotalCost sums the assigned shard costs. Returns ErrUnsetCost if any shard is unscored.
func (o *ShardingOption) TotalCost() (float64, error) {
	var total float64
	for i, s := range o.Shards {
		if s.Cost == nil {
			return 0, fmt.Errorf("%s: shard %d: %w", o.Name, i, ErrUnsetCost)
		}
		total += *s.Cost
	}
	return total, nil
}

// BestOptions picks, for each table name, the option with the lowest TotalCost.
// Ties keep the option that appears first. Names are returned in first-seen order.
func BestOptions(options []*ShardingOption) ([]*ShardingOption, error) {
	best := make(map[string]*ShardingOption)
	bestCost := make(map[string]float64)
	var order []string
	for _, o := range options {
		cost, err := o.TotalCost()
		if err != nil {
			return nil, err
		}
		cur, seen := best[o.Name]
		if !seen {
			order = append(order, o.Name)
		}
		if cur == nil || cost < bestCost[o.Name] {
			best[o.Name] = o
			bestCost[o.Name] = cost
		}
	}
	out := make([]*ShardingOption, 0, len(order))
	for _, name := range order {
		out = append(out, best[name])
	}
	return out, nil
}

// PlannerConstraints holds per-table overrides supplied by the planner.
type PlannerConstraints struct {
	CachingRatio *float64 // fraction of the table held in the faster cache tier (nil = default)
}

// Constraints maps table name to its PlannerConstraints.
type Constraints map[string]PlannerConstraints

// CachingRatio returns the caching ratio override for a table. A nil map or a
// table without an entry yields nil, which the bandwidth resolver treats as the default.
func (c Constraints) CachingRatio(name string) *float64 {
	if c == nil {
		return nil
	}
	pc, ok := c[name]
	if !ok {
		return nil
	}
	return pc.CachingRatio
}

// Validate checks that every caching ratio lies in [0, 1].
func (c Constraints) Validate() error {
	for name, pc := range c {
		if pc.CachingRatio == nil {
			continue
		}
		r := *pc.CachingRatio
		if math.IsNaN(r) || r < 0 || r > 1 {
			return fmt.Errorf("constraints for %q: %w", name, invalidParam("caching_ratio", r, "must be in [0, 1]"))
		}
	}
	return nil
}
