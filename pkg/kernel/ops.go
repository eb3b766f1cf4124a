package kernel

import (
	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/dtype"
	"github.com/cloudslice/reductionist/pkg/request"
	"github.com/cloudslice/reductionist/pkg/typedview"
)

func countOp(v *typedview.View, policy request.MissingPolicy, axis []int) (*Result, error) {
	outShape, groups := v.Groups(axis)

	var counts []int64
	switch v.DType() {
	case dtype.Int32:
		counts = countGroups(groups, policy, v.Int32At, noNaN)
	case dtype.Int64:
		counts = countGroups(groups, policy, v.Int64At, noNaN)
	case dtype.Uint32:
		counts = countGroups(groups, policy, v.Uint32At, noNaN)
	case dtype.Uint64:
		counts = countGroups(groups, policy, v.Uint64At, noNaN)
	case dtype.Float32:
		counts = countGroups(groups, policy, v.Float32At, func(off int) bool { return isFloatNaN(float64(v.Float32At(off))) })
	case dtype.Float64:
		counts = countGroups(groups, policy, v.Float64At, func(off int) bool { return isFloatNaN(v.Float64At(off)) })
	}

	return &Result{
		Bytes:         countBytes(counts),
		DType:         dtype.Int64,
		Shape:         outShape,
		Count:         counts,
		CountIsScalar: len(outShape) == 0,
	}, nil
}

func sumOp(v *typedview.View, policy request.MissingPolicy, axis []int) (*Result, error) {
	outShape, groups := v.Groups(axis)

	var bytesOut []byte
	var counts []int64
	switch v.DType() {
	case dtype.Int32:
		sums, c := sumGroups(groups, policy, v.Int32At, noNaN)
		counts = c
		for _, s := range sums {
			bytesOut = appendLE(bytesOut, s)
		}
	case dtype.Int64:
		sums, c := sumGroups(groups, policy, v.Int64At, noNaN)
		counts = c
		for _, s := range sums {
			bytesOut = appendLE(bytesOut, s)
		}
	case dtype.Uint32:
		sums, c := sumGroups(groups, policy, v.Uint32At, noNaN)
		counts = c
		for _, s := range sums {
			bytesOut = appendLE(bytesOut, s)
		}
	case dtype.Uint64:
		sums, c := sumGroups(groups, policy, v.Uint64At, noNaN)
		counts = c
		for _, s := range sums {
			bytesOut = appendLE(bytesOut, s)
		}
	case dtype.Float32:
		isNaNAt := func(off int) bool { return isFloatNaN(float64(v.Float32At(off))) }
		sums, c := sumGroups(groups, policy, v.Float32At, isNaNAt)
		counts = c
		for _, s := range sums {
			bytesOut = appendLE(bytesOut, s)
		}
	case dtype.Float64:
		isNaNAt := func(off int) bool { return isFloatNaN(v.Float64At(off)) }
		sums, c := sumGroups(groups, policy, v.Float64At, isNaNAt)
		counts = c
		for _, s := range sums {
			bytesOut = appendLE(bytesOut, s)
		}
	}

	return &Result{
		Bytes:         bytesOut,
		DType:         v.DType(),
		Shape:         outShape,
		Count:         counts,
		CountIsScalar: len(outShape) == 0,
	}, nil
}

func minMaxOp(v *typedview.View, policy request.MissingPolicy, axis []int, wantMax bool) (*Result, error) {
	outShape, groups := v.Groups(axis)

	var bytesOut []byte
	var counts []int64
	var valid []bool
	switch v.DType() {
	case dtype.Int32:
		values, c, ok := minMaxGroups(groups, policy, v.Int32At, noNaN, wantMax)
		counts, valid = c, ok
		for _, val := range values {
			bytesOut = appendLE(bytesOut, val)
		}
	case dtype.Int64:
		values, c, ok := minMaxGroups(groups, policy, v.Int64At, noNaN, wantMax)
		counts, valid = c, ok
		for _, val := range values {
			bytesOut = appendLE(bytesOut, val)
		}
	case dtype.Uint32:
		values, c, ok := minMaxGroups(groups, policy, v.Uint32At, noNaN, wantMax)
		counts, valid = c, ok
		for _, val := range values {
			bytesOut = appendLE(bytesOut, val)
		}
	case dtype.Uint64:
		values, c, ok := minMaxGroups(groups, policy, v.Uint64At, noNaN, wantMax)
		counts, valid = c, ok
		for _, val := range values {
			bytesOut = appendLE(bytesOut, val)
		}
	case dtype.Float32:
		isNaNAt := func(off int) bool { return isFloatNaN(float64(v.Float32At(off))) }
		values, c, ok := minMaxGroups(groups, policy, v.Float32At, isNaNAt, wantMax)
		counts, valid = c, ok
		for _, val := range values {
			bytesOut = appendLE(bytesOut, val)
		}
	case dtype.Float64:
		isNaNAt := func(off int) bool { return isFloatNaN(v.Float64At(off)) }
		values, c, ok := minMaxGroups(groups, policy, v.Float64At, isNaNAt, wantMax)
		counts, valid = c, ok
		for _, val := range values {
			bytesOut = appendLE(bytesOut, val)
		}
	}

	for _, ok := range valid {
		if !ok {
			return nil, apperr.New(apperr.NoValidElements, "no valid (non-missing) elements to reduce")
		}
	}

	return &Result{
		Bytes:         bytesOut,
		DType:         v.DType(),
		Shape:         outShape,
		Count:         counts,
		CountIsScalar: len(outShape) == 0,
	}, nil
}
