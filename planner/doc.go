// Package planner estimates the training-step wall-time cost of candidate embedding
// table placements. It is the scoring function used by a sharding planner that picks,
// per table, the partitioning strategy with the lowest cost on a fixed device topology.
//
// # Reading Guide
//
// Start with these files:
//   - types.go: sharding strategies, compute kernels, shards and sharding options
//   - constants.go: default bandwidths and KernelBandwidth, the bandwidth resolver
//   - cost_model.go: the closed-form cost model of each strategy and EstimateCosts
//   - calculator.go: EmbeddingWTCostCalculator, which scores a batch of options
//
// # Cost Model
//
// Each shard's cost is the sum of three phases: input redistribution (sending sparse
// feature indices to the devices that own the rows), compute (lookup and pooling,
// bounded by the kernel's memory bandwidth) and output redistribution (sending pooled
// embeddings back). Input cost is counted only when an upstream module feeds the
// table; output cost only when no downstream module consumes the shards in place.
//
// Data-parallel tables put the gradient all-reduce of the replicated table in the
// output slot. This folds a backward-pass cost into an otherwise forward-only model
// and is kept as-is because scores are compared across strategies on that basis.
//
// # Concurrency
//
// All cost functions are pure. The calculator may score options in parallel
// (WithParallelism), but shard costs are always written from the calling goroutine
// after every option has been scored, so a failed run leaves no shard modified.
package planner
