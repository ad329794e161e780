package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/shard-planner/planner/internal/util"
)

func TestNewTopology_DefaultBandwidths(t *testing.T) {
	topo, err := NewTopology(16, 8, CUDA, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, IntraNodeBandwidth, topo.IntraHostBW)
	assert.Equal(t, CrossNodeBandwidth, topo.InterHostBW)
	assert.Equal(t, 2, topo.NumHosts())
}

func TestNewTopology_Overrides(t *testing.T) {
	topo, err := NewTopology(8, 8, CPU, util.Ptr(100.0), util.Ptr(1.0))
	require.NoError(t, err)
	assert.Equal(t, 100.0, topo.IntraHostBW)
	assert.Equal(t, 1.0, topo.InterHostBW)
	assert.Equal(t, CPU, topo.ComputeDevice)
}

func TestNewTopology_InvalidFields(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Topology, error)
		field string
	}{
		{"zero world size", func() (Topology, error) { return NewTopology(0, 1, CUDA, nil, nil) }, "world_size"},
		{"zero local world size", func() (Topology, error) { return NewTopology(8, 0, CUDA, nil, nil) }, "local_world_size"},
		{"local larger than world", func() (Topology, error) { return NewTopology(4, 8, CUDA, nil, nil) }, "local_world_size"},
		{"unknown device", func() (Topology, error) { return NewTopology(8, 8, ComputeDevice(0), nil, nil) }, "compute_device"},
		{"zero intra bw", func() (Topology, error) { return NewTopology(8, 8, CUDA, util.Ptr(0.0), nil) }, "intra_host_bw"},
		{"NaN inter bw", func() (Topology, error) { return NewTopology(8, 8, CUDA, nil, util.Ptr(math.NaN())) }, "inter_host_bw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			var ipe *InvalidParamError
			require.ErrorAs(t, err, &ipe)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestTopology_Validate_ReportsAllErrors(t *testing.T) {
	// GIVEN a topology with every field invalid
	topo := Topology{WorldSize: 0, LocalWorldSize: 0, IntraHostBW: -1, InterHostBW: 0}

	// WHEN validated
	err := topo.Validate()

	// THEN every field is named
	require.Error(t, err)
	for _, field := range []string{"world_size", "local_world_size", "compute_device", "intra_host_bw", "inter_host_bw"} {
		assert.Contains(t, err.Error(), field)
	}
}
