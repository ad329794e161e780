package planner

import (
	"fmt"
	"math"

	"github.com/inference-sim/shard-planner/planner/internal/util"
)

// ShardCost splits one shard's wall-time cost into its three phases.
type ShardCost struct {
	Input   float64 // input feature redistribution
	Compute float64 // embedding lookup and pooling
	Output  float64 // pooled output redistribution
}

// Total gates the redistribution phases and sums the components.
// Compute is always included.
func (c ShardCost) Total(hasInputDist, hasOutputDist bool) float64 {
	var total float64
	if hasInputDist {
		total += c.Input
	}
	total += c.Compute
	if hasOutputDist {
		total += c.Output
	}
	return total
}

// finite reports whether every component and their full sum are finite.
// Finite inputs can still overflow once multiplied together.
func (c ShardCost) finite() bool {
	for _, v := range [...]float64{c.Input, c.Compute, c.Output, c.Input + c.Compute + c.Output} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// CostParams groups everything the per-strategy cost models need for one placement.
type CostParams struct {
	ShardingType       ShardingType
	ComputeKernel      ComputeKernel
	ComputeDevice      ComputeDevice
	BatchSize          int64     // per-device batch size (must be > 0)
	WorldSize          int       // must be > 0
	LocalWorldSize     int       // must be > 0
	InputLengths       []float64 // per-feature pooling factors (>= 0)
	InputDataTypeSize  float64   // bytes per redistributed index
	OutputDataTypeSize float64   // bytes per output element
	IntraHostBW        float64
	InterHostBW        float64
	HasInputDist       bool
	HasOutputDist      bool
	CachingRatio       *float64 // nil = DefaultCachingRatio
}

// Validate rejects parameters that would make the cost arithmetic produce Inf or NaN.
func (p CostParams) Validate() error {
	if p.BatchSize <= 0 {
		return invalidParam("batch_size", p.BatchSize, "must be > 0")
	}
	if p.WorldSize <= 0 {
		return invalidParam("world_size", p.WorldSize, "must be > 0")
	}
	if p.LocalWorldSize <= 0 {
		return invalidParam("local_world_size", p.LocalWorldSize, "must be > 0")
	}
	if !isPositiveFinite(p.InputDataTypeSize) {
		return invalidParam("input_data_type_size", p.InputDataTypeSize, "must be a positive finite number")
	}
	if !isPositiveFinite(p.OutputDataTypeSize) {
		return invalidParam("output_data_type_size", p.OutputDataTypeSize, "must be a positive finite number")
	}
	if !isPositiveFinite(p.IntraHostBW) {
		return invalidParam("intra_host_bw", p.IntraHostBW, "must be a positive finite number")
	}
	if !isPositiveFinite(p.InterHostBW) {
		return invalidParam("inter_host_bw", p.InterHostBW, "must be a positive finite number")
	}
	for i, l := range p.InputLengths {
		if l < 0 || math.IsNaN(l) || math.IsInf(l, 0) {
			return invalidParam(fmt.Sprintf("input_lengths[%d]", i), l, "must be a non-negative finite number")
		}
	}
	return nil
}

// EstimateShardCosts returns the cost components for every shard shape, in input order.
// Nothing is returned unless every shard was costed.
func EstimateShardCosts(shapes [][2]int64, p CostParams) ([]ShardCost, error) {
	if _, ok := shardingTypeNames[p.ShardingType]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShardingType, p.ShardingType)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for i, s := range shapes {
		if s[0] < 0 || s[1] < 0 {
			return nil, invalidParam(fmt.Sprintf("shard[%d]", i), s, "rows and cols must be >= 0")
		}
	}
	deviceBW, err := KernelBandwidth(p.ComputeDevice, p.ComputeKernel, p.CachingRatio)
	if err != nil {
		return nil, err
	}

	m := modelInputs{
		globalBatchSize:    float64(p.WorldSize) * float64(p.BatchSize),
		batchSize:          float64(p.BatchSize),
		worldSize:          float64(p.WorldSize),
		localWorldSize:     float64(p.LocalWorldSize),
		sumInputLengths:    util.Sum(p.InputLengths),
		numFeatures:        float64(len(p.InputLengths)),
		inputDataTypeSize:  p.InputDataTypeSize,
		outputDataTypeSize: p.OutputDataTypeSize,
		deviceBW:           deviceBW,
		intraHostBW:        p.IntraHostBW,
		interHostBW:        p.InterHostBW,
	}

	costs := make([]ShardCost, 0, len(shapes))
	for i, s := range shapes {
		c, err := shardingCost(p.ShardingType, m, s[0], s[1])
		if err != nil {
			return nil, err
		}
		if !c.finite() {
			return nil, invalidParam(fmt.Sprintf("shard[%d]", i), s, "cost overflows float64")
		}
		costs = append(costs, c)
	}
	return costs, nil
}

// EstimateCosts returns one gated wall-time cost per shard shape, in input order.
func EstimateCosts(shapes [][2]int64, p CostParams) ([]float64, error) {
	components, err := EstimateShardCosts(shapes, p)
	if err != nil {
		return nil, err
	}
	costs := make([]float64, len(components))
	for i, c := range components {
		costs[i] = c.Total(p.HasInputDist, p.HasOutputDist)
	}
	return costs, nil
}

// modelInputs holds the per-placement scalars shared by every shard, already in float64.
type modelInputs struct {
	globalBatchSize    float64
	batchSize          float64
	worldSize          float64
	localWorldSize     float64
	sumInputLengths    float64
	numFeatures        float64
	inputDataTypeSize  float64
	outputDataTypeSize float64
	deviceBW           float64
	intraHostBW        float64
	interHostBW        float64
}

func shardingCost(st ShardingType, m modelInputs, rows, embDim int64) (ShardCost, error) {
	switch st {
	case TableWise:
		return tableWiseCost(m, float64(embDim)), nil
	case ColumnWise:
		return columnWiseCost(m, float64(embDim)), nil
	case RowWise:
		return rowWiseCost(m, float64(embDim)), nil
	case TableRowWise:
		return tableRowWiseCost(m, float64(embDim)), nil
	case DataParallel:
		return dataParallelCost(m, float64(rows), float64(embDim)), nil
	default:
		return ShardCost{}, fmt.Errorf("%w: %s", ErrUnsupportedShardingType, st)
	}
}

// pooledOutputCost is the cost of sending every pooled output vector across hosts.
// Pooling collapses each feature's lookups into one vector, so it scales with the
// feature count rather than the pooling factors.
func pooledOutputCost(m modelInputs, embDim float64) float64 {
	return m.globalBatchSize * embDim * m.numFeatures * m.outputDataTypeSize / m.interHostBW
}

// tableWiseCost: one device owns the whole table, nothing is divided.
func tableWiseCost(m modelInputs, embDim float64) ShardCost {
	return ShardCost{
		Input:   m.globalBatchSize * m.sumInputLengths * m.inputDataTypeSize / m.interHostBW,
		Compute: m.globalBatchSize * m.sumInputLengths * embDim * m.outputDataTypeSize / m.deviceBW,
		Output:  pooledOutputCost(m, embDim),
	}
}

// columnWiseCost: each column shard lives on one device, so it costs the same as table-wise.
func columnWiseCost(m modelInputs, embDim float64) ShardCost {
	return tableWiseCost(m, embDim)
}

// rowWiseCost: rows are spread over every device, dividing input and compute by world size.
func rowWiseCost(m modelInputs, embDim float64) ShardCost {
	lookups := m.globalBatchSize * m.sumInputLengths / m.worldSize
	return ShardCost{
		Input:   lookups * m.inputDataTypeSize / m.interHostBW,
		Compute: lookups * embDim * m.outputDataTypeSize / m.deviceBW,
		Output:  pooledOutputCost(m, embDim),
	}
}

// tableRowWiseCost: rows are spread over the devices of one host. Outputs are reduced
// inside the host first, then combined across hosts.
func tableRowWiseCost(m modelInputs, embDim float64) ShardCost {
	lookups := m.globalBatchSize * m.sumInputLengths / m.localWorldSize
	pooledBytes := m.globalBatchSize * embDim * m.numFeatures * m.outputDataTypeSize
	return ShardCost{
		Input:   lookups * m.inputDataTypeSize / m.interHostBW,
		Compute: lookups * embDim * m.outputDataTypeSize / m.deviceBW,
		Output:  pooledBytes/m.intraHostBW + pooledBytes*(m.localWorldSize/m.worldSize)/m.interHostBW,
	}
}

// dataParallelCost: the table is replicated, so there is no input redistribution and
// compute runs on the local batch only. Output is the gradient all-reduce of the whole
// shard, a backward-pass cost kept in the output slot.
func dataParallelCost(m modelInputs, rows, embDim float64) ShardCost {
	gradNumElem := rows * embDim
	return ShardCost{
		Input:   0,
		Compute: m.batchSize * m.sumInputLengths * embDim * m.outputDataTypeSize / m.deviceBW,
		Output:  gradNumElem * m.outputDataTypeSize / m.interHostBW,
	}
}
