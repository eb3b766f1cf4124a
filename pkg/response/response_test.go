package response

import (
	"net/http/httptest"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudslice/reductionist/pkg/dtype"
	"github.com/cloudslice/reductionist/pkg/kernel"
)

func TestVersionFromPath(t *testing.T) {
	assert.Equal(t, V1, VersionFromPath("/v1/sum"))
	assert.Equal(t, V2, VersionFromPath("/v2/sum"))
	assert.Equal(t, V2, VersionFromPath("/unknown/sum"))
}

func TestWithAcceptOverride(t *testing.T) {
	assert.Equal(t, V2, WithAcceptOverride("application/cbor", V1))
	assert.Equal(t, V1, WithAcceptOverride("application/octet-stream", V2))
	assert.Equal(t, V1, WithAcceptOverride("text/plain", V1))
}

func TestWriteCBORScalar(t *testing.T) {
	res := &kernel.Result{
		Bytes:         []byte{1, 2, 3, 4},
		DType:         dtype.Uint32,
		Shape:         nil,
		Count:         []int64{10},
		CountIsScalar: true,
	}
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, res, V2))
	assert.Equal(t, "application/cbor", rec.Header().Get("Content-Type"))

	var decoded cborBody
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "uint32", decoded.DType)
	assert.EqualValues(t, 10, decoded.Count)
}

func TestWriteLegacyHeaders(t *testing.T) {
	res := &kernel.Result{
		Bytes:         []byte{9, 9, 9, 9},
		DType:         dtype.Int32,
		Shape:         []int{3},
		Count:         []int64{1, 2, 3},
		CountIsScalar: false,
	}
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, res, V1))
	assert.Equal(t, "int32", rec.Header().Get("x-activestorage-dtype"))
	assert.Equal(t, "little", rec.Header().Get("x-activestorage-byte-order"))
	assert.Equal(t, "[3]", rec.Header().Get("x-activestorage-shape"))
	assert.Equal(t, "[1,2,3]", rec.Header().Get("x-activestorage-count"))
	assert.Equal(t, res.Bytes, rec.Body.Bytes())
}

func TestWriteLegacyHonorsBigEndianResult(t *testing.T) {
	res := &kernel.Result{
		Bytes:     []byte{1, 2, 3, 4},
		DType:     dtype.Uint32,
		Shape:     []int{1},
		ByteOrder: dtype.Big,
	}
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, res, V1))
	assert.Equal(t, "big", rec.Header().Get("x-activestorage-byte-order"))
}

func TestWriteCBORHonorsBigEndianResult(t *testing.T) {
	res := &kernel.Result{
		Bytes:     []byte{1, 2, 3, 4},
		DType:     dtype.Uint32,
		Shape:     []int{1},
		ByteOrder: dtype.Big,
	}
	rec := httptest.NewRecorder()
	require.NoError(t, Write(rec, res, V2))

	var decoded cborBody
	require.NoError(t, cbor.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, "big", decoded.ByteOrder)
}

func TestCountFieldSelectHasNoCount(t *testing.T) {
	res := &kernel.Result{Bytes: []byte{1}, DType: dtype.Uint32, Shape: []int{1}}
	assert.Nil(t, countField(res))
}
