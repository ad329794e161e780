package planner

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedShardingType is returned when a sharding type is outside the closed set
	// of strategies the cost models cover. It signals a defect in the candidate generator.
	ErrUnsupportedShardingType = errors.New("unsupported sharding type")

	// ErrUnsupportedKernel is returned when no bandwidth is known for a (device, kernel) pair.
	ErrUnsupportedKernel = errors.New("unsupported compute kernel")

	// ErrUnsupportedDevice is returned when a compute device name is not recognized.
	ErrUnsupportedDevice = errors.New("unsupported compute device")

	// ErrUnsupportedDataType is returned when a data type name is not recognized.
	ErrUnsupportedDataType = errors.New("unsupported data type")

	// ErrUnsetCost is returned when a shard cost is read before the calculator assigned it.
	ErrUnsetCost = errors.New("shard cost is unset")
)

// InvalidParamError reports a numeric precondition that failed before any cost arithmetic ran.
type InvalidParamError struct {
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParamError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Param, e.Value, e.Reason)
}

func invalidParam(param string, value any, reason string) error {
	return &InvalidParamError{Param: param, Value: value, Reason: reason}
}

// errorReason maps an error to a short label for the scoring error counter.
func errorReason(err error) string {
	var ipe *InvalidParamError
	switch {
	case errors.Is(err, ErrUnsupportedShardingType):
		return "unsupported_sharding_type"
	case errors.Is(err, ErrUnsupportedKernel):
		return "unsupported_kernel"
	case errors.As(err, &ipe):
		return "invalid_param"
	default:
		return "other"
	}
}
