package typedview

import (
	"encoding/binary"
	"math"

	"github.com/cloudslice/reductionist/pkg/dtype"
)

// ReadFloat64 decodes the element at byteOffset into a float64, regardless
// of the view's underlying dtype. Integer dtypes are widened, so 64-bit
// values beyond 2^53 lose precision; IsNaNAt uses it, while the kernels
// read elements through the typed accessors and never through this path.
func (v *View) ReadFloat64(byteOffset int) float64 {
	b := v.buf[byteOffset : byteOffset+v.dtype.Size()]
	switch v.dtype {
	case dtype.Int32:
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case dtype.Int64:
		return float64(int64(binary.LittleEndian.Uint64(b)))
	case dtype.Uint32:
		return float64(binary.LittleEndian.Uint32(b))
	case dtype.Uint64:
		return float64(binary.LittleEndian.Uint64(b))
	case dtype.Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case dtype.Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	default:
		panic("unreachable dtype")
	}
}

// IsNaNAt reports whether the element at byteOffset is NaN; only
// meaningful (and only ever true) for floating dtypes.
func (v *View) IsNaNAt(byteOffset int) bool {
	if !v.dtype.IsFloat() {
		return false
	}
	return math.IsNaN(v.ReadFloat64(byteOffset))
}

// CopyElementBytes appends the raw bytes of the element at byteOffset
// (native little-endian, sizeof(dtype) wide) to dst and returns the
// extended slice, used by the select operation to assemble a dense output
// buffer without going through the float64 widening path.
func (v *View) CopyElementBytes(dst []byte, byteOffset int) []byte {
	return append(dst, v.buf[byteOffset:byteOffset+v.dtype.Size()]...)
}
