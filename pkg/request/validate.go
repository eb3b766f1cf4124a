package request

import (
	"fmt"
	"math"

	"github.com/cloudslice/reductionist/pkg/apperr"
)

// Validate enforces the five data model invariants against a parsed
// Descriptor, returning a *apperr.Error of kind BadRequest on the first
// violation found.
func Validate(d *Descriptor) error {
	if !d.DType.Valid() {
		return apperr.New(apperr.BadRequest, "invalid dtype")
	}
	if len(d.Shape) == 0 {
		return apperr.New(apperr.BadRequest, "shape must be non-empty")
	}
	for _, dim := range d.Shape {
		if dim <= 0 {
			return apperr.New(apperr.BadRequest, "shape dimensions must be positive")
		}
	}

	// Invariant 1: product(shape) * sizeof(dtype) == size.
	expectedSize := d.ElementCount() * int64(d.DType.Size())
	if d.Size == 0 {
		d.Size = expectedSize
	} else if d.Size != expectedSize {
		return apperr.New(apperr.BadRequest, fmt.Sprintf(
			"size %d does not match product(shape)*sizeof(dtype) = %d", d.Size, expectedSize))
	}
	if d.Offset < 0 {
		return apperr.New(apperr.BadRequest, "offset must be nonnegative")
	}

	// Invariant 2 & 3: selection shape and bounds.
	if d.Selection != nil {
		if len(d.Selection) != len(d.Shape) {
			return apperr.New(apperr.BadRequest, "selection must have one entry per dimension")
		}
		for i, sel := range d.Selection {
			if sel.Stride < 1 {
				return apperr.New(apperr.BadRequest, "selection stride must be >= 1")
			}
			if sel.Start < 0 || sel.End > d.Shape[i] || sel.Start >= sel.End {
				return apperr.New(apperr.BadRequest, fmt.Sprintf(
					"selection[%d] = [%d,%d) out of bounds for dimension of length %d",
					i, sel.Start, sel.End, d.Shape[i]))
			}
		}
	}

	// Invariant 4: axis indices in range and distinct.
	if d.Axis != nil {
		seen := make(map[int]bool, len(d.Axis))
		for _, a := range d.Axis {
			if a < 0 || a >= len(d.Shape) {
				return apperr.New(apperr.BadRequest, fmt.Sprintf("axis %d out of range for %d-dimensional array", a, len(d.Shape)))
			}
			if seen[a] {
				return apperr.New(apperr.BadRequest, fmt.Sprintf("duplicate axis %d", a))
			}
			seen[a] = true
		}
	}

	// Invariant 5: missing-data scalars must be representable in dtype.
	if err := validateMissing(d); err != nil {
		return err
	}

	for _, f := range d.Filters {
		if f.ID == FilterShuffle && f.ElementSize != d.DType.Size() {
			return apperr.New(apperr.BadRequest, fmt.Sprintf(
				"shuffle element_size %d does not match sizeof(dtype) %d", f.ElementSize, d.DType.Size()))
		}
	}

	switch d.Operation {
	case OpCount, OpMin, OpMax, OpSum, OpSelect:
	default:
		return apperr.New(apperr.BadRequest, fmt.Sprintf("unknown operation %q", d.Operation))
	}

	return nil
}

func validateMissing(d *Descriptor) error {
	if d.Missing.Kind == MissingNone {
		return nil
	}
	check := func(v float64) error {
		if !representable(v, d.DType) {
			return apperr.New(apperr.BadRequest, fmt.Sprintf("missing value %v not representable in dtype %s", v, d.DType))
		}
		return nil
	}
	switch d.Missing.Kind {
	case MissingValue:
		return check(d.Missing.Value)
	case MissingValues:
		for _, v := range d.Missing.Values {
			if err := check(v); err != nil {
				return err
			}
		}
	case MissingValidMin:
		return check(d.Missing.ValidMin)
	case MissingValidMax:
		return check(d.Missing.ValidMax)
	case MissingValidRange:
		if err := check(d.Missing.ValidMin); err != nil {
			return err
		}
		return check(d.Missing.ValidMax)
	}
	return nil
}

// representable reports whether v lies inside dt's domain, the check behind
// invariant 5: integer dtypes need a whole number within the type's range;
// floating dtypes need a non-NaN value within the type's finite range (an
// in-range value that float32 can only approximate is accepted).
func representable(v float64, dt interface{ IsFloat() bool; IsSigned() bool; Size() int }) bool {
	if dt.IsFloat() {
		if math.IsNaN(v) {
			return false
		}
		return dt.Size() != 4 || math.Abs(v) <= math.MaxFloat32
	}
	if v != math.Trunc(v) {
		return false
	}
	bits := dt.Size() * 8
	if dt.IsSigned() {
		lo := -math.Pow(2, float64(bits-1))
		hi := math.Pow(2, float64(bits-1)) - 1
		return v >= lo && v <= hi
	}
	hi := math.Pow(2, float64(bits)) - 1
	return v >= 0 && v <= hi
}
