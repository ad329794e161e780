package planner

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Calculator assigns a cost to every shard of every sharding option.
type Calculator interface {
	Run(options []*ShardingOption) error
}

// EmbeddingWTCostCalculator estimates embedding wall-time cost for a fixed topology
// and set of per-table constraints. It holds no state between runs, so re-scoring the
// same options overwrites their costs with identical values.
type EmbeddingWTCostCalculator struct {
	topology    Topology
	constraints Constraints
	parallelism int
	metrics     *CostMetrics
	logger      logrus.FieldLogger
}

var _ Calculator = (*EmbeddingWTCostCalculator)(nil)

// CalculatorOption configures an EmbeddingWTCostCalculator.
type CalculatorOption func(*EmbeddingWTCostCalculator)

// WithParallelism bounds how many sharding options are costed concurrently.
// Values <= 1 score options sequentially (the default).
func WithParallelism(n int) CalculatorOption {
	return func(c *EmbeddingWTCostCalculator) {
		c.parallelism = n
	}
}

// WithMetrics records scoring activity on m.
func WithMetrics(m *CostMetrics) CalculatorOption {
	return func(c *EmbeddingWTCostCalculator) {
		c.metrics = m
	}
}

// WithLogger replaces the default logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) CalculatorOption {
	return func(c *EmbeddingWTCostCalculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewEmbeddingWTCostCalculator validates topology and constraints and returns a calculator.
// constraints may be nil.
func NewEmbeddingWTCostCalculator(topology Topology, constraints Constraints,
	opts ...CalculatorOption) (*EmbeddingWTCostCalculator, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	if err := constraints.Validate(); err != nil {
		return nil, err
	}
	c := &EmbeddingWTCostCalculator{
		topology:    topology,
		constraints: constraints,
		parallelism: 1,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run scores options and writes each shard's cost. See RunContext.
func (c *EmbeddingWTCostCalculator) Run(options []*ShardingOption) error {
	return c.RunContext(context.Background(), options)
}

// RunContext scores every option and then writes the costs onto the shards, in shard order.
// Costs are written only if every option was scored; on error no shard is touched.
// Workers never write shards: results are collected per option and committed by the caller's goroutine.
func (c *EmbeddingWTCostCalculator) RunContext(ctx context.Context, options []*ShardingOption) error {
	results := make([][]float64, len(options))

	if c.parallelism <= 1 {
		for i, o := range options {
			if err := ctx.Err(); err != nil {
				return err
			}
			costs, err := c.scoreOption(o)
			if err != nil {
				c.metrics.observeError(err)
				return err
			}
			results[i] = costs
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.parallelism)
		for i, o := range options {
			i, o := i, o
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				costs, err := c.scoreOption(o)
				if err != nil {
					c.metrics.observeError(err)
					return err
				}
				results[i] = costs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	for i, o := range options {
		for j, s := range o.Shards {
			cost := results[i][j]
			s.Cost = &cost
		}
		c.metrics.observeOption(o.ShardingType, results[i])
	}
	c.logger.Debugf("Scored %d sharding options", len(options))
	return nil
}

// Breakdown returns the per-shard cost components of o without gating or writing them.
func (c *EmbeddingWTCostCalculator) Breakdown(o *ShardingOption) ([]ShardCost, error) {
	if o == nil {
		return nil, invalidParam("sharding_option", nil, "must not be nil")
	}
	components, err := EstimateShardCosts(o.ShardShapes(), c.costParams(o))
	if err != nil {
		return nil, fmt.Errorf("sharding option %q: %w", o.Name, err)
	}
	return components, nil
}

func (c *EmbeddingWTCostCalculator) costParams(o *ShardingOption) CostParams {
	return CostParams{
		ShardingType:       o.ShardingType,
		ComputeKernel:      o.ComputeKernel,
		ComputeDevice:      c.topology.ComputeDevice,
		BatchSize:          o.BatchSize,
		WorldSize:          c.topology.WorldSize,
		LocalWorldSize:     c.topology.LocalWorldSize,
		InputLengths:       o.InputLengths,
		InputDataTypeSize:  BigIntDTypeSize,
		OutputDataTypeSize: o.OutputDataTypeSize,
		IntraHostBW:        c.topology.IntraHostBW,
		InterHostBW:        c.topology.InterHostBW,
		HasInputDist:       o.HasInputDist(),
		HasOutputDist:      o.HasOutputDist(),
		CachingRatio:       c.constraints.CachingRatio(o.Name),
	}
}

func (c *EmbeddingWTCostCalculator) scoreOption(o *ShardingOption) ([]float64, error) {
	if o == nil {
		return nil, invalidParam("sharding_option", nil, "must not be nil")
	}
	log := c.logger.WithFields(logrus.Fields{
		"option":        o.Name,
		"sharding_type": o.ShardingType.String(),
		"kernel":        o.ComputeKernel.String(),
	})

	p := c.costParams(o)
	if p.CachingRatio == nil && o.ComputeKernel == KernelBatchedFusedUVMCaching {
		log.Debugf("No caching ratio constraint, using default %v", DefaultCachingRatio)
	}
	costs, err := EstimateCosts(o.ShardShapes(), p)
	if err != nil {
		return nil, fmt.Errorf("sharding option %q: %w", o.Name, err)
	}
	if len(costs) != len(o.Shards) {
		return nil, fmt.Errorf("sharding option %q: got %d costs for %d shards", o.Name, len(costs), len(o.Shards))
	}
	log.Debugf("Estimated shard costs %v (input_dist=%t, output_dist=%t)", costs, p.HasInputDist, p.HasOutputDist)
	return costs, nil
}
