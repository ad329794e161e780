package planner

import (
	"errors"
	"fmt"
	"math"
)

// Topology describes the devices a plan is scored against.
// Bandwidth overrides are resolved at construction, so every field is populated.
type Topology struct {
	WorldSize      int           // devices across all hosts (must be > 0)
	LocalWorldSize int           // devices per host (must be > 0 and <= WorldSize)
	ComputeDevice  ComputeDevice // device kind used for kernel bandwidth lookup
	IntraHostBW    float64       // bandwidth between devices on one host
	InterHostBW    float64       // bandwidth between hosts
}

// NewTopology creates a Topology with all fields explicitly set.
// This is the canonical constructor; nil bandwidth overrides resolve to
// IntraNodeBandwidth and CrossNodeBandwidth.
func NewTopology(worldSize, localWorldSize int, device ComputeDevice,
	intraHostBW, interHostBW *float64) (Topology, error) {
	t := Topology{
		WorldSize:      worldSize,
		LocalWorldSize: localWorldSize,
		ComputeDevice:  device,
		IntraHostBW:    IntraNodeBandwidth,
		InterHostBW:    CrossNodeBandwidth,
	}
	if intraHostBW != nil {
		t.IntraHostBW = *intraHostBW
	}
	if interHostBW != nil {
		t.InterHostBW = *interHostBW
	}
	if err := t.Validate(); err != nil {
		return Topology{}, err
	}
	return t, nil
}

// Validate checks the topology's numeric preconditions and collects every violation.
func (t Topology) Validate() error {
	var problems []error
	if t.WorldSize <= 0 {
		problems = append(problems, invalidParam("world_size", t.WorldSize, "must be > 0"))
	}
	if t.LocalWorldSize <= 0 {
		problems = append(problems, invalidParam("local_world_size", t.LocalWorldSize, "must be > 0"))
	} else if t.WorldSize > 0 && t.LocalWorldSize > t.WorldSize {
		problems = append(problems, invalidParam("local_world_size", t.LocalWorldSize,
			fmt.Sprintf("must be <= world_size (%d)", t.WorldSize)))
	}
	if t.ComputeDevice != CPU && t.ComputeDevice != CUDA {
		problems = append(problems, invalidParam("compute_device", t.ComputeDevice, "must be cpu or cuda"))
	}
	if !isPositiveFinite(t.IntraHostBW) {
		problems = append(problems, invalidParam("intra_host_bw", t.IntraHostBW, "must be a positive finite number"))
	}
	if !isPositiveFinite(t.InterHostBW) {
		problems = append(problems, invalidParam("inter_host_bw", t.InterHostBW, "must be a positive finite number"))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("topology: %w", errors.Join(problems...))
}

// NumHosts returns how many hosts the topology spans.
func (t Topology) NumHosts() int {
	return t.WorldSize / t.LocalWorldSize
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
