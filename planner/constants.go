package planner

import (
	"fmt"
	"math"
)

// Bandwidths are in GB/s. Only their relative magnitudes matter for ranking candidates.
const (
	IntraNodeBandwidth = 600.0 // default bandwidth between devices on one host
	CrossNodeBandwidth = 12.5  // default bandwidth between hosts

	DDRMemBW = 51.0  // host memory bandwidth
	HBMMemBW = 897.0 // device memory bandwidth

	// BigIntDTypeSize is the byte width of an index value in redistributed input.
	BigIntDTypeSize = 8.0

	// DefaultCachingRatio applies to UVM caching kernels when no constraint overrides it.
	DefaultCachingRatio = 0.2
)

// KernelBandwidth returns the effective per-device bandwidth for lookups with the given
// kernel. cachingRatio only affects KernelBatchedFusedUVMCaching; nil means DefaultCachingRatio.
// A higher caching ratio never lowers the result because HBMMemBW > DDRMemBW.
func KernelBandwidth(device ComputeDevice, kernel ComputeKernel, cachingRatio *float64) (float64, error) {
	ratio := DefaultCachingRatio
	if cachingRatio != nil {
		ratio = *cachingRatio
		if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
			return 0, invalidParam("caching_ratio", ratio, "must be in [0, 1]")
		}
	}

	switch device {
	case CPU:
		switch kernel {
		case KernelDense, KernelSparse:
			return 0.35 * DDRMemBW, nil
		case KernelBatchedDense:
			return 0.5 * DDRMemBW, nil
		case KernelBatchedFused, KernelBatchedQuant:
			return DDRMemBW, nil
		}
	case CUDA:
		switch kernel {
		case KernelDense, KernelSparse:
			return 0.35 * HBMMemBW, nil
		case KernelBatchedDense:
			return 0.5 * HBMMemBW, nil
		case KernelBatchedFused, KernelBatchedQuant:
			return HBMMemBW, nil
		case KernelBatchedFusedUVM:
			return DDRMemBW / 100, nil
		case KernelBatchedFusedUVMCaching:
			return (ratio*HBMMemBW + (1-ratio)*DDRMemBW) / 100, nil
		}
	}
	return 0, fmt.Errorf("%w: %s on %s", ErrUnsupportedKernel, kernel, device)
}
