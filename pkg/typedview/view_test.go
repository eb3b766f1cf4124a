package typedview

import (
	"encoding/binary"
	"testing"

	"github.com/cloudslice/reductionist/pkg/dtype"
	"github.com/cloudslice/reductionist/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32leBytes(values []uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func TestNewAndIterateRowMajor(t *testing.T) {
	buf := u32leBytes([]uint32{1, 2, 3, 4, 5, 6})
	v, err := New(buf, dtype.Uint32, []int{2, 3}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	var got []float64
	v.Iterate(func(off int) { got = append(got, v.ReadFloat64(off)) })
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestNewColumnMajor(t *testing.T) {
	// Column-major [2,3] storing the same logical matrix
	// [[1,2,3],[4,5,6]] column by column: 1,4,2,5,3,6.
	buf := u32leBytes([]uint32{1, 4, 2, 5, 3, 6})
	v, err := New(buf, dtype.Uint32, []int{2, 3}, dtype.ColumnMajor, dtype.Little)
	require.NoError(t, err)

	var got []float64
	v.Iterate(func(off int) { got = append(got, v.ReadFloat64(off)) })
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got)
}

func TestByteOrderSwap(t *testing.T) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, 42)
	v, err := New(buf, dtype.Uint32, []int{1}, dtype.RowMajor, dtype.Big)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.ReadFloat64(0))
}

func TestSwapInPlaceRoundTrips(t *testing.T) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, 0x01020304)
	SwapInPlace(buf, 4)
	assert.Equal(t, uint32(0x01020304), binary.LittleEndian.Uint32(buf))
	SwapInPlace(buf, 4)
	assert.Equal(t, uint32(0x01020304), binary.BigEndian.Uint32(buf))
}

func TestSelect(t *testing.T) {
	buf := u32leBytes([]uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19})
	v, err := New(buf, dtype.Uint32, []int{4, 5}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	sub, err := v.Select([]request.SelectionTriple{
		{Start: 1, End: 4, Stride: 1},
		{Start: 0, End: 5, Stride: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, sub.Shape())

	var got []float64
	sub.Iterate(func(off int) { got = append(got, sub.ReadFloat64(off)) })
	assert.Equal(t, []float64{5, 7, 9, 10, 12, 14, 15, 17, 19}, got)
}

func TestGroupsAllAxesIsScalar(t *testing.T) {
	buf := u32leBytes([]uint32{1, 2, 3, 4})
	v, err := New(buf, dtype.Uint32, []int{2, 2}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	outShape, groups := v.Groups([]int{0, 1})
	assert.Empty(t, outShape)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 4)
}

func TestGroupsByAxis(t *testing.T) {
	// shape [2,3]: [[1,2,3],[4,5,6]], reduce axis 0 -> retains axis 1 (len 3)
	buf := u32leBytes([]uint32{1, 2, 3, 4, 5, 6})
	v, err := New(buf, dtype.Uint32, []int{2, 3}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	outShape, groups := v.Groups([]int{0})
	assert.Equal(t, []int{3}, outShape)
	require.Len(t, groups, 3)
	for col, group := range groups {
		require.Len(t, group, 2)
		sum := v.ReadFloat64(group[0]) + v.ReadFloat64(group[1])
		assert.Equal(t, float64(1+4+2*col), sum)
	}
}
