// Package dtype defines the six numeric element types the pipeline
// understands and the handful of helpers shared by every stage that needs
// to reason about them (the request validator, the typed view layer, the
// operation kernels, and the response encoder).
package dtype

import "fmt"

// DType identifies one of the six supported numeric element types.
type DType string

const (
	Int32   DType = "int32"
	Int64   DType = "int64"
	Uint32  DType = "uint32"
	Uint64  DType = "uint64"
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// All enumerates the supported data types, in a stable order used by
// generated dispatch tables.
var All = []DType{Int32, Int64, Uint32, Uint64, Float32, Float64}

// Valid reports whether d is one of the six supported types.
func (d DType) Valid() bool {
	switch d {
	case Int32, Int64, Uint32, Uint64, Float32, Float64:
		return true
	default:
		return false
	}
}

// Size returns sizeof(d) in bytes.
func (d DType) Size() int {
	switch d {
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// IsFloat reports whether d is a floating-point type, relevant for NaN
// handling in the missing-data policy.
func (d DType) IsFloat() bool {
	return d == Float32 || d == Float64
}

// IsSigned reports whether d is a signed integer type.
func (d DType) IsSigned() bool {
	return d == Int32 || d == Int64
}

// Parse converts a wire-format dtype name (e.g. "i32", "int32") into a
// DType, accepting both the compact reductionist names and the canonical
// long-form names.
func Parse(s string) (DType, error) {
	switch s {
	case "i32", "int32":
		return Int32, nil
	case "i64", "int64":
		return Int64, nil
	case "u32", "uint32":
		return Uint32, nil
	case "u64", "uint64":
		return Uint64, nil
	case "f32", "float32":
		return Float32, nil
	case "f64", "float64":
		return Float64, nil
	default:
		return "", fmt.Errorf("unknown dtype %q", s)
	}
}

// ByteOrder identifies the endianness a chunk was serialized in.
type ByteOrder string

const (
	Big    ByteOrder = "big"
	Little ByteOrder = "little"
)

// ParseByteOrder converts a wire-format byte order name into a ByteOrder.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch s {
	case "big":
		return Big, nil
	case "little":
		return Little, nil
	default:
		return "", fmt.Errorf("unknown byte order %q", s)
	}
}

// Order identifies whether an array's elements are laid out row-major
// (C order) or column-major (Fortran order).
type Order string

const (
	RowMajor    Order = "C"
	ColumnMajor Order = "F"
)

// ParseOrder converts a wire-format storage order name into an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "C", "row-major":
		return RowMajor, nil
	case "F", "column-major":
		return ColumnMajor, nil
	default:
		return "", fmt.Errorf("unknown storage order %q", s)
	}
}
