package planner

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoredTestOptions(t *testing.T) (Topology, []*ShardingOption) {
	t.Helper()
	topo := testTopology(t)
	calc, err := NewEmbeddingWTCostCalculator(topo, nil)
	require.NoError(t, err)
	opts := []*ShardingOption{
		newTestOption("t0", TableWise, KernelBatchedFused, [2]int64{1000, 64}),
		newTestOption("t0", RowWise, KernelBatchedFused, [2]int64{125, 64}, [2]int64{125, 64}),
	}
	require.NoError(t, calc.Run(opts))
	return topo, opts
}

func TestNewReport_MatchesShardCosts(t *testing.T) {
	topo, opts := scoredTestOptions(t)

	r, err := NewReport(topo, opts, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, "2026-01-02 03:04:05", r.Timestamp)
	assert.Equal(t, "cuda", r.ComputeDevice)
	require.Len(t, r.Options, 2)
	rw := r.Options[1]
	assert.Equal(t, "row_wise", rw.ShardingType)
	require.Len(t, rw.Shards, 2)
	assert.Equal(t, []int64{125, 0}, rw.Shards[1].Offset)
	assert.Equal(t, *opts[1].Shards[1].Cost, rw.Shards[1].Cost)
	assert.InDelta(t, rw.Shards[0].Cost+rw.Shards[1].Cost, rw.TotalCost, 1e-12)
	assert.Equal(t, Fingerprint(opts[1]), rw.Fingerprint)
	assert.NotEqual(t, r.Options[0].Fingerprint, rw.Fingerprint)
}

func TestNewReport_UnscoredOption(t *testing.T) {
	o := newTestOption("t0", TableWise, KernelBatchedFused, [2]int64{10, 8})
	_, err := NewReport(testTopology(t), []*ShardingOption{o}, time.Now())
	assert.ErrorIs(t, err, ErrUnsetCost)
}

func TestFingerprint_IgnoresCost(t *testing.T) {
	_, opts := scoredTestOptions(t)
	before := Fingerprint(opts[0])
	*opts[0].Shards[0].Cost = 123
	assert.Equal(t, before, Fingerprint(opts[0]))
}

func TestFingerprint_DistinguishesPrecisionAndGating(t *testing.T) {
	// GIVEN three candidates for one table that differ only in data type or gating
	pf, err := ParsePlanFile([]byte(`
topology: {world_size: 8, local_world_size: 4, compute_device: cuda}
sharding_options:
  - {name: t, sharding_type: table_wise, compute_kernel: batched_fused, batch_size: 512, input_lengths: [2], data_type: fp32, shards: [{size: [1000, 64]}]}
  - {name: t, sharding_type: table_wise, compute_kernel: batched_fused, batch_size: 512, input_lengths: [2], data_type: fp16, shards: [{size: [1000, 64]}]}
  - {name: t, sharding_type: table_wise, compute_kernel: batched_fused, batch_size: 512, input_lengths: [2], data_type: fp32, downstream_modules: [over_arch], shards: [{size: [1000, 64]}]}
`))
	require.NoError(t, err)
	plan, err := pf.Build()
	require.NoError(t, err)
	calc, err := NewEmbeddingWTCostCalculator(plan.Topology, nil)
	require.NoError(t, err)
	require.NoError(t, calc.Run(plan.Options))

	// WHEN the report marks the cheapest candidate
	r, err := NewReport(plan.Topology, plan.Options, time.Now())
	require.NoError(t, err)
	require.NoError(t, r.MarkBest(plan.Options))

	// THEN every candidate has its own fingerprint and the best one names exactly one entry
	assert.NotEqual(t, r.Options[0].Fingerprint, r.Options[1].Fingerprint)
	assert.NotEqual(t, r.Options[0].Fingerprint, r.Options[2].Fingerprint)
	assert.NotEqual(t, r.Options[1].Fingerprint, r.Options[2].Fingerprint)

	require.Len(t, r.Best, 1)
	var matches []OptionCostOutput
	for _, o := range r.Options {
		if o.Fingerprint == r.Best[0] {
			matches = append(matches, o)
		}
	}
	require.Len(t, matches, 1)
	assert.False(t, matches[0].OutputDist)
}

func TestReport_MarkBestAndWrite(t *testing.T) {
	topo, opts := scoredTestOptions(t)
	r, err := NewReport(topo, opts, time.Now())
	require.NoError(t, err)
	require.NoError(t, r.MarkBest(opts))

	best, err := BestOptions(opts)
	require.NoError(t, err)
	require.Len(t, r.Best, 1)
	assert.Equal(t, Fingerprint(best[0]), r.Best[0])

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf))
	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.Options, decoded.Options)
	assert.Equal(t, r.Best, decoded.Best)
}

func TestReport_SaveResults_WritesFile(t *testing.T) {
	topo, opts := scoredTestOptions(t)
	r, err := NewReport(topo, opts, time.Now())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, r.SaveResults(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Options, 2)
}
