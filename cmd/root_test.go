package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/shard-planner/planner"
)

func newOverrideCmd() *cobra.Command {
	c := &cobra.Command{Use: "test"}
	c.Flags().IntVar(&worldSize, "world-size", 0, "")
	c.Flags().IntVar(&localWorldSize, "local-world-size", 0, "")
	c.Flags().StringVar(&computeDevice, "compute-device", "cuda", "")
	c.Flags().Float64Var(&intraHostBW, "intra-host-bw", planner.IntraNodeBandwidth, "")
	c.Flags().Float64Var(&interHostBW, "inter-host-bw", planner.CrossNodeBandwidth, "")
	return c
}

func TestApplyTopologyOverrides_OnlyChangedFlags(t *testing.T) {
	// GIVEN a plan topology and a command where only world-size and inter-host-bw were set
	c := newOverrideCmd()
	require.NoError(t, c.Flags().Set("world-size", "16"))
	require.NoError(t, c.Flags().Set("inter-host-bw", "50"))

	spec := planner.TopologySpec{WorldSize: 8, LocalWorldSize: 4, ComputeDevice: "cpu"}

	// WHEN overrides are applied
	applyTopologyOverrides(c, &spec)

	// THEN set flags win and everything else keeps the plan's value
	assert.Equal(t, 16, spec.WorldSize)
	assert.Equal(t, 4, spec.LocalWorldSize)
	assert.Equal(t, "cpu", spec.ComputeDevice)
	assert.Nil(t, spec.IntraHostBW)
	require.NotNil(t, spec.InterHostBW)
	assert.Equal(t, 50.0, *spec.InterHostBW)
}

func TestApplyTopologyOverrides_NoFlags(t *testing.T) {
	c := newOverrideCmd()
	spec := planner.TopologySpec{WorldSize: 8, LocalWorldSize: 8, ComputeDevice: "cuda"}
	applyTopologyOverrides(c, &spec)
	assert.Equal(t, planner.TopologySpec{WorldSize: 8, LocalWorldSize: 8, ComputeDevice: "cuda"}, spec)
}

func TestPartialHost(t *testing.T) {
	even, err := planner.NewTopology(16, 8, planner.CUDA, nil, nil)
	require.NoError(t, err)
	assert.False(t, partialHost(even))

	uneven, err := planner.NewTopology(12, 8, planner.CUDA, nil, nil)
	require.NoError(t, err)
	assert.True(t, partialHost(uneven))
	assert.Equal(t, 1, uneven.NumHosts())
}
