package kernel

import (
	"math"

	"github.com/cloudslice/reductionist/pkg/request"
)

// Numeric is the set of concrete Go types the six supported dtypes map to.
// Every one of them satisfies the ordering required for min/max and the
// arithmetic required for sum.
type Numeric interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func convert[T Numeric](f float64) T {
	return T(f)
}

// isMissing evaluates the missing-data policy against a single element
// value. isNaN is supplied separately since floating dtypes must treat NaN
// as missing regardless of the configured policy.
func isMissing[T Numeric](v T, isNaN bool, policy request.MissingPolicy) bool {
	if isNaN {
		return true
	}
	switch policy.Kind {
	case request.MissingNone:
		return false
	case request.MissingValue:
		return v == convert[T](policy.Value)
	case request.MissingValues:
		for _, mv := range policy.Values {
			if v == convert[T](mv) {
				return true
			}
		}
		return false
	case request.MissingValidMin:
		return v < convert[T](policy.ValidMin)
	case request.MissingValidMax:
		return v > convert[T](policy.ValidMax)
	case request.MissingValidRange:
		return v < convert[T](policy.ValidMin) || v > convert[T](policy.ValidMax)
	default:
		return false
	}
}

// isFloatNaN reports whether f is NaN; used for the float32/float64 read
// paths where the generic T is also float64/float32 itself.
func isFloatNaN(f float64) bool {
	return math.IsNaN(f)
}
