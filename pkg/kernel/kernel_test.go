package kernel

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cloudslice/reductionist/pkg/dtype"
	"github.com/cloudslice/reductionist/pkg/request"
	"github.com/cloudslice/reductionist/pkg/typedview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32le(values ...uint32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

func i32le(values ...int32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func f32le(values ...float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func f64le(values ...float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// Scenario 1: integer sum, row-major, no compression.
func TestScenarioIntegerSum(t *testing.T) {
	buf := u32le(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	v, err := typedview.New(buf, dtype.Uint32, []int{10}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	desc := &request.Descriptor{DType: dtype.Uint32, Shape: []int{10}, Operation: request.OpSum}
	res, err := Execute(v, desc)
	require.NoError(t, err)

	assert.Equal(t, dtype.Uint32, res.DType)
	assert.Empty(t, res.Shape)
	assert.Equal(t, []int64{10}, res.Count)
	assert.Equal(t, uint32(55), binary.LittleEndian.Uint32(res.Bytes))
}

// Scenario 2: sliced sum over a row-major [4,5] f32 array.
func TestScenarioSlicedSum(t *testing.T) {
	values := make([]float32, 20)
	for i := range values {
		values[i] = float32(i)
	}
	buf := f32le(values...)
	v, err := typedview.New(buf, dtype.Float32, []int{4, 5}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	desc := &request.Descriptor{
		DType:     dtype.Float32,
		Shape:     []int{4, 5},
		Operation: request.OpSum,
		Selection: []request.SelectionTriple{
			{Start: 1, End: 4, Stride: 1},
			{Start: 0, End: 5, Stride: 2},
		},
	}
	res, err := Execute(v, desc)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, res.Count)
	got := math.Float32frombits(binary.LittleEndian.Uint32(res.Bytes))
	assert.InDelta(t, 72.0, got, 0.001)
}

// Scenario 3: missing-value max.
func TestScenarioMissingValueMax(t *testing.T) {
	buf := i32le(5, 2, -1, 7, 5, 3, 9, 5, 0, 4)
	v, err := typedview.New(buf, dtype.Int32, []int{10}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	desc := &request.Descriptor{
		DType:     dtype.Int32,
		Shape:     []int{10},
		Operation: request.OpMax,
		Missing:   request.MissingPolicy{Kind: request.MissingValue, Value: 9},
	}
	res, err := Execute(v, desc)
	require.NoError(t, err)
	assert.Equal(t, int32(7), int32(binary.LittleEndian.Uint32(res.Bytes)))
	assert.Equal(t, []int64{9}, res.Count)
}

// Scenario 4: axis-reduced count with valid_range.
func TestScenarioAxisCountValidRange(t *testing.T) {
	buf := f64le(1, 2, 3, 4, 5, 6)
	v, err := typedview.New(buf, dtype.Float64, []int{2, 3}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	desc := &request.Descriptor{
		DType:     dtype.Float64,
		Shape:     []int{2, 3},
		Operation: request.OpCount,
		Axis:      []int{0},
		Missing:   request.MissingPolicy{Kind: request.MissingValidRange, ValidMin: 2, ValidMax: 5},
	}
	res, err := Execute(v, desc)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, res.Shape)
	assert.Equal(t, []int64{1, 2, 1}, res.Count)
}

func TestMinMaxAllMissingErrors(t *testing.T) {
	buf := u32le(1, 2, 3)
	v, err := typedview.New(buf, dtype.Uint32, []int{3}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	desc := &request.Descriptor{
		DType:     dtype.Uint32,
		Shape:     []int{3},
		Operation: request.OpMax,
		Missing:   request.MissingPolicy{Kind: request.MissingValidMin, ValidMin: 100},
	}
	_, err = Execute(v, desc)
	require.Error(t, err)
}

func TestSelectOp(t *testing.T) {
	buf := u32le(0, 1, 2, 3, 4, 5)
	v, err := typedview.New(buf, dtype.Uint32, []int{2, 3}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	desc := &request.Descriptor{
		DType:     dtype.Uint32,
		Shape:     []int{2, 3},
		Operation: request.OpSelect,
		Order:     dtype.RowMajor,
	}
	res, err := Execute(v, desc)
	require.NoError(t, err)
	assert.Equal(t, buf, res.Bytes)
	assert.Equal(t, dtype.Little, res.ByteOrder)
}

// A big-endian-stored array selected whole with identity parameters must
// come back in the same big-endian bytes it was stored in, not little.
func TestSelectOpRoundTripsBigEndianBytes(t *testing.T) {
	values := []uint32{0, 1, 2, 3, 4, 5}
	buf := make([]byte, len(values)*4)
	for i, x := range values {
		binary.BigEndian.PutUint32(buf[i*4:], x)
	}
	original := append([]byte(nil), buf...)

	v, err := typedview.New(buf, dtype.Uint32, []int{2, 3}, dtype.RowMajor, dtype.Big)
	require.NoError(t, err)

	desc := &request.Descriptor{
		DType:     dtype.Uint32,
		Shape:     []int{2, 3},
		Operation: request.OpSelect,
		Order:     dtype.RowMajor,
		ByteOrder: dtype.Big,
	}
	res, err := Execute(v, desc)
	require.NoError(t, err)
	assert.Equal(t, dtype.Big, res.ByteOrder)
	assert.Equal(t, original, res.Bytes)
}

// A reduction requested with byte_order:big must serialize its numeric
// output big-endian, not the little-endian every op builds internally.
func TestSumOpHonorsRequestedBigEndianOutput(t *testing.T) {
	buf := u32le(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	v, err := typedview.New(buf, dtype.Uint32, []int{10}, dtype.RowMajor, dtype.Little)
	require.NoError(t, err)

	desc := &request.Descriptor{DType: dtype.Uint32, Shape: []int{10}, Operation: request.OpSum, ByteOrder: dtype.Big}
	res, err := Execute(v, desc)
	require.NoError(t, err)
	assert.Equal(t, dtype.Big, res.ByteOrder)
	assert.Equal(t, uint32(55), binary.BigEndian.Uint32(res.Bytes))
}
