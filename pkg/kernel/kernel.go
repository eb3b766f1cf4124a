// Package kernel implements the Operation Kernels: count, min, max, sum,
// and select over a typed view, honoring the missing-data policy and an
// optional axis list. Dispatch is doubly polymorphic (operation tag, then
// dtype) as a closed, generated table: the operation switch below picks a
// generic function, and dtype.DType picks its type instantiation — never
// virtual per-element dispatch.
package kernel

import (
	"fmt"

	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/dtype"
	"github.com/cloudslice/reductionist/pkg/request"
	"github.com/cloudslice/reductionist/pkg/typedview"
)

// Count is either a scalar (all axes reduced) or a per-group count aligned
// with Result.Shape.
type Result struct {
	Bytes     []byte
	DType     dtype.DType
	Shape     []int
	Count     []int64
	CountIsScalar bool
	// ByteOrder is the order Bytes is actually serialized in; every op
	// builds Bytes little-endian internally, and Execute re-swaps it into
	// the descriptor's requested order before returning.
	ByteOrder dtype.ByteOrder
}

// Execute applies desc.Operation to view, first carving out desc.Selection
// if present. axis resolves to desc.Axis, defaulting to every axis of the
// (possibly selected) view when unset.
func Execute(view *typedview.View, desc *request.Descriptor) (*Result, error) {
	v := view
	if desc.Selection != nil {
		sub, err := v.Select(desc.Selection)
		if err != nil {
			return nil, apperr.Wrap(apperr.BadRequest, "selection failed", err)
		}
		v = sub
	}

	axis := desc.Axis
	if axis == nil {
		axis = allAxes(len(v.Shape()))
	}

	var (
		res *Result
		err error
	)
	switch desc.Operation {
	case request.OpSelect:
		res, err = selectOp(v, desc.Order)
	case request.OpCount:
		res, err = countOp(v, desc.Missing, axis)
	case request.OpSum:
		res, err = sumOp(v, desc.Missing, axis)
	case request.OpMin:
		res, err = minMaxOp(v, desc.Missing, axis, false)
	case request.OpMax:
		res, err = minMaxOp(v, desc.Missing, axis, true)
	default:
		return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("unknown operation %q", desc.Operation))
	}
	if err != nil {
		return nil, err
	}

	wireOrder := desc.ByteOrder
	if wireOrder == "" {
		wireOrder = dtype.Little
	}
	if wireOrder != dtype.Little {
		typedview.SwapInPlace(res.Bytes, res.DType.Size())
	}
	res.ByteOrder = wireOrder
	return res, nil
}

func allAxes(ndim int) []int {
	axes := make([]int, ndim)
	for i := range axes {
		axes[i] = i
	}
	return axes
}

func selectOp(v *typedview.View, order dtype.Order) (*Result, error) {
	out := make([]byte, 0, v.Len()*v.DType().Size())
	v.IterateOrder(order, func(off int) {
		out = v.CopyElementBytes(out, off)
	})
	return &Result{
		Bytes: out,
		DType: v.DType(),
		Shape: v.Shape(),
	}, nil
}
