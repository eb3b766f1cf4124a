// Package typedview implements the Typed View Layer: a zero-copy
// reinterpretation of a contiguous byte buffer as an N-dimensional array of
// one of the six supported dtypes, honoring byte order and storage order,
// with support for carving out selection sub-views.
package typedview

import (
	"encoding/binary"
	"fmt"

	"github.com/cloudslice/reductionist/pkg/dtype"
	"github.com/cloudslice/reductionist/pkg/request"
)

// nativeByteOrder is used to decide whether an incoming buffer needs a
// byte-swap pass before it can be read with the fast path.
var nativeByteOrder = dtype.Little

// View borrows a byte buffer and presents it as an N-dimensional array.
// All read operations index through strides into the original buffer; no
// stage ever copies the whole buffer to construct or slice a View.
type View struct {
	buf       []byte
	dtype     dtype.DType
	byteOrder dtype.ByteOrder
	shape     []int
	// strides are in elements, not bytes, matching the convention that
	// scaling happens once at offset-computation time.
	strides []int
	offset  int // element offset into buf
}

// New constructs a View over buf, swapping bytes in place first if
// byteOrder differs from the host's native order (little-endian, matching
// the wire default). Swapping is done once so every subsequent read uses
// the fast native-order path.
func New(buf []byte, dt dtype.DType, shape []int, order dtype.Order, byteOrder dtype.ByteOrder) (*View, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("invalid dtype %q", dt)
	}
	count := 1
	for _, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("shape dimensions must be positive")
		}
		count *= s
	}
	if count*dt.Size() != len(buf) {
		return nil, fmt.Errorf("buffer length %d does not match shape %v for dtype %s", len(buf), shape, dt)
	}

	if byteOrder != nativeByteOrder {
		SwapInPlace(buf, dt.Size())
	}

	return &View{
		buf:       buf,
		dtype:     dt,
		byteOrder: nativeByteOrder,
		shape:     append([]int(nil), shape...),
		strides:   contiguousStrides(shape, order),
		offset:    0,
	}, nil
}

// SwapInPlace reverses the byte order of every elementSize-wide element in
// buf, in place. Exported so the kernel layer can re-swap reduction output
// into a caller's requested byte order using the same pass used to
// normalize input buffers into native order.
func SwapInPlace(buf []byte, elementSize int) {
	if elementSize <= 1 {
		return
	}
	for start := 0; start+elementSize <= len(buf); start += elementSize {
		for i, j := start, start+elementSize-1; i < j; i, j = i+1, j-1 {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
}

func contiguousStrides(shape []int, order dtype.Order) []int {
	n := len(shape)
	strides := make([]int, n)
	if order == dtype.ColumnMajor {
		stride := 1
		for i := 0; i < n; i++ {
			strides[i] = stride
			stride *= shape[i]
		}
	} else {
		stride := 1
		for i := n - 1; i >= 0; i-- {
			strides[i] = stride
			stride *= shape[i]
		}
	}
	return strides
}

// Shape returns the view's logical shape.
func (v *View) Shape() []int { return append([]int(nil), v.shape...) }

// DType returns the view's element type.
func (v *View) DType() dtype.DType { return v.dtype }

// Len returns the number of elements in the view.
func (v *View) Len() int {
	n := 1
	for _, s := range v.shape {
		n *= s
	}
	return n
}

// Select carves out a sub-view per the selection triples, one per
// dimension. The returned view still borrows the original buffer.
func (v *View) Select(sel []request.SelectionTriple) (*View, error) {
	if len(sel) != len(v.shape) {
		return nil, fmt.Errorf("selection must have one entry per dimension, got %d for %d dimensions", len(sel), len(v.shape))
	}
	newShape := make([]int, len(sel))
	newStrides := make([]int, len(sel))
	offset := v.offset
	for i, s := range sel {
		if s.Stride < 1 {
			return nil, fmt.Errorf("selection[%d].stride must be >= 1", i)
		}
		if s.Start < 0 || s.End > v.shape[i] || s.Start >= s.End {
			return nil, fmt.Errorf("selection[%d] = [%d,%d) out of bounds for dimension of length %d", i, s.Start, s.End, v.shape[i])
		}
		count := (s.End - s.Start + s.Stride - 1) / s.Stride
		newShape[i] = count
		newStrides[i] = v.strides[i] * s.Stride
		offset += s.Start * v.strides[i]
	}
	return &View{
		buf:       v.buf,
		dtype:     v.dtype,
		byteOrder: v.byteOrder,
		shape:     newShape,
		strides:   newStrides,
		offset:    offset,
	}, nil
}

// byteOffset returns the byte offset into buf for the given multi-index.
func (v *View) byteOffset(idx []int) int {
	off := v.offset
	for i, ix := range idx {
		off += ix * v.strides[i]
	}
	return off * v.dtype.Size()
}

// Iterate calls fn once for every element, visiting multi-indices in
// row-major order of the view's logical shape (independent of the
// underlying storage order), passing the byte offset of each element.
func (v *View) Iterate(fn func(byteOffset int)) {
	idx := make([]int, len(v.shape))
	v.iterate(0, idx, fn)
}

func (v *View) iterate(dim int, idx []int, fn func(int)) {
	if dim == len(v.shape) {
		fn(v.byteOffset(idx))
		return
	}
	for i := 0; i < v.shape[dim]; i++ {
		idx[dim] = i
		v.iterate(dim+1, idx, fn)
	}
}

// IterateOrder calls fn once for every element, visiting multi-indices in
// either row-major or column-major nesting order regardless of the view's
// internal strides, used by the select operation to assemble dense output
// in the order the client requested.
func (v *View) IterateOrder(order dtype.Order, fn func(byteOffset int)) {
	idx := make([]int, len(v.shape))
	if order == dtype.ColumnMajor {
		v.iterateOrderCol(len(v.shape)-1, idx, fn)
	} else {
		v.iterate(0, idx, fn)
	}
}

func (v *View) iterateOrderCol(dim int, idx []int, fn func(int)) {
	if dim < 0 {
		fn(v.byteOffset(idx))
		return
	}
	for i := 0; i < v.shape[dim]; i++ {
		idx[dim] = i
		v.iterateOrderCol(dim-1, idx, fn)
	}
}

// Groups partitions the view's elements for an axis reduction: one group
// per combination of the retained (non-reduced) axis indices, each holding
// the byte offsets of every element sharing that combination. outShape is
// the shape of the retained axes, in their original relative order. A
// reduceAxes list naming every axis yields a single group with an empty
// outShape (the scalar case); an empty list retains every axis, giving one
// group per element.
func (v *View) Groups(reduceAxes []int) (outShape []int, groups [][]int) {
	reduce := make(map[int]bool, len(reduceAxes))
	for _, a := range reduceAxes {
		reduce[a] = true
	}

	var retained []int
	for i := range v.shape {
		if !reduce[i] {
			retained = append(retained, i)
		}
	}
	outShape = make([]int, len(retained))
	for i, ax := range retained {
		outShape[i] = v.shape[ax]
	}

	numGroups := 1
	for _, s := range outShape {
		numGroups *= s
	}
	groups = make([][]int, numGroups)

	idx := make([]int, len(v.shape))
	var walk func(dim int)
	walk = func(dim int) {
		if dim == len(v.shape) {
			groupIdx := 0
			for _, ax := range retained {
				groupIdx = groupIdx*v.shape[ax] + idx[ax]
			}
			groups[groupIdx] = append(groups[groupIdx], v.byteOffset(idx))
			return
		}
		for i := 0; i < v.shape[dim]; i++ {
			idx[dim] = i
			walk(dim + 1)
		}
	}
	walk(0)

	return outShape, groups
}

// ByteOrderOf returns the binary.ByteOrder corresponding to bo, for use by
// stages that need to encode raw bytes back onto the wire.
func ByteOrderOf(bo dtype.ByteOrder) binary.ByteOrder {
	if bo == dtype.Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Bytes returns the whole raw backing buffer, already normalized to native
// byte order. It ignores the view's offset, strides and any selection.
func (v *View) Bytes() []byte {
	return v.buf
}
