package kernel

import (
	"encoding/binary"
	"math"

	"github.com/cloudslice/reductionist/pkg/request"
)

func noNaN(int) bool { return false }

func countGroups[T Numeric](groups [][]int, policy request.MissingPolicy, read func(int) T, isNaNAt func(int) bool) []int64 {
	counts := make([]int64, len(groups))
	for gi, offs := range groups {
		var c int64
		for _, off := range offs {
			v := read(off)
			if !isMissing(v, isNaNAt(off), policy) {
				c++
			}
		}
		counts[gi] = c
	}
	return counts
}

func sumGroups[T Numeric](groups [][]int, policy request.MissingPolicy, read func(int) T, isNaNAt func(int) bool) ([]T, []int64) {
	sums := make([]T, len(groups))
	counts := make([]int64, len(groups))
	for gi, offs := range groups {
		var acc T
		var c int64
		for _, off := range offs {
			v := read(off)
			if isMissing(v, isNaNAt(off), policy) {
				continue
			}
			acc += v
			c++
		}
		sums[gi] = acc
		counts[gi] = c
	}
	return sums, counts
}

func minMaxGroups[T Numeric](groups [][]int, policy request.MissingPolicy, read func(int) T, isNaNAt func(int) bool, wantMax bool) (values []T, counts []int64, valid []bool) {
	values = make([]T, len(groups))
	counts = make([]int64, len(groups))
	valid = make([]bool, len(groups))
	for gi, offs := range groups {
		var best T
		var c int64
		has := false
		for _, off := range offs {
			v := read(off)
			if isMissing(v, isNaNAt(off), policy) {
				continue
			}
			if !has || (wantMax && v > best) || (!wantMax && v < best) {
				best = v
			}
			has = true
			c++
		}
		values[gi] = best
		counts[gi] = c
		valid[gi] = has
	}
	return values, counts, valid
}

// appendLE appends the little-endian byte encoding of v (native width for
// T) to dst.
func appendLE[T Numeric](dst []byte, v T) []byte {
	switch x := any(v).(type) {
	case int32:
		return binary.LittleEndian.AppendUint32(dst, uint32(x))
	case int64:
		return binary.LittleEndian.AppendUint64(dst, uint64(x))
	case uint32:
		return binary.LittleEndian.AppendUint32(dst, x)
	case uint64:
		return binary.LittleEndian.AppendUint64(dst, x)
	case float32:
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(x))
	case float64:
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(x))
	default:
		panic("unreachable numeric type")
	}
}

func countBytes(counts []int64) []byte {
	out := make([]byte, 0, len(counts)*8)
	for _, c := range counts {
		out = binary.LittleEndian.AppendUint64(out, uint64(c))
	}
	return out
}
