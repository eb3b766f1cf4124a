package filter

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/cloudslice/reductionist/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shuffle(data []byte, elementSize int) []byte {
	count := len(data) / elementSize
	out := make([]byte, len(data))
	for byteIdx := 0; byteIdx < elementSize; byteIdx++ {
		dstBase := byteIdx * count
		for elem := 0; elem < count; elem++ {
			out[dstBase+elem] = data[elem*elementSize+byteIdx]
		}
	}
	return out
}

func TestUnshuffleRoundTrip(t *testing.T) {
	original := []byte{1, 2, 3, 4, 5, 6, 7, 8} // two 4-byte elements
	shuffled := shuffle(original, 4)
	restored, err := unshuffle(shuffled, 4)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestUnshuffleRejectsBadLength(t *testing.T) {
	_, err := unshuffle([]byte{1, 2, 3}, 4)
	require.Error(t, err)
}

func TestInvertGzipRoundTrip(t *testing.T) {
	original := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(original)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	out, err := Invert(buf.Bytes(), request.CompressionGzip, nil, int64(len(original)))
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestInvertNoCompressionNoFilters(t *testing.T) {
	original := []byte{9, 9, 9, 9}
	out, err := Invert(original, request.CompressionNone, nil, int64(len(original)))
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestInvertRejectsSizeMismatch(t *testing.T) {
	_, err := Invert([]byte{1, 2, 3}, request.CompressionNone, nil, 10)
	require.Error(t, err)
}
