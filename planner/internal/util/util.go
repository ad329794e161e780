// Package util provides generic numeric helpers shared across planner/ sub-packages.
package util

// Number is any integer or floating-point type.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Sum returns the sum of v as float64. An empty slice sums to 0.
func Sum[T Number](v []T) float64 {
	var total float64
	for _, x := range v {
		total += float64(x)
	}
	return total
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T { return &v }
