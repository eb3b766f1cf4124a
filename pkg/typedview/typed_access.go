package typedview

import (
	"encoding/binary"
	"math"
)

// Int32At, Int64At, ... read a single element at byteOffset as its native
// Go type. The buffer has already been normalized to native (little-endian)
// order by New, so every typed read is a direct decode with no further
// swapping.
func (v *View) Int32At(byteOffset int) int32 {
	return int32(binary.LittleEndian.Uint32(v.buf[byteOffset:]))
}

func (v *View) Int64At(byteOffset int) int64 {
	return int64(binary.LittleEndian.Uint64(v.buf[byteOffset:]))
}

func (v *View) Uint32At(byteOffset int) uint32 {
	return binary.LittleEndian.Uint32(v.buf[byteOffset:])
}

func (v *View) Uint64At(byteOffset int) uint64 {
	return binary.LittleEndian.Uint64(v.buf[byteOffset:])
}

func (v *View) Float32At(byteOffset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.buf[byteOffset:]))
}

func (v *View) Float64At(byteOffset int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(v.buf[byteOffset:]))
}
