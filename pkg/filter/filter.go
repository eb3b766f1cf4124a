// Package filter implements the Filter Pipeline: decompression followed by
// inversion of any byte-level filters, producing raw typed bytes ready for
// the typed view layer.
package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/request"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// maxExpansionRatio bounds how much larger the decompressed output may be
// relative to the compressed input before it is treated as a decompression
// bomb. zlib/gzip of structured numeric data rarely exceeds this ratio.
const maxExpansionRatio = 1024

// Invert runs the full pipeline in §4.D order: decompress (if requested),
// then invert each filter in reverse listing order. expectedSize is
// product(shape)*sizeof(dtype), the exact size the output must have.
func Invert(raw []byte, comp request.Compression, filters []request.Filter, expectedSize int64) ([]byte, error) {
	decoded, err := decompress(raw, comp, expectedSize)
	if err != nil {
		return nil, err
	}

	for i := len(filters) - 1; i >= 0; i-- {
		decoded, err = invertFilter(decoded, filters[i])
		if err != nil {
			return nil, err
		}
	}

	if int64(len(decoded)) != expectedSize {
		return nil, apperr.New(apperr.DecodeFailed, fmt.Sprintf(
			"decoded size %d does not match expected size %d", len(decoded), expectedSize))
	}
	return decoded, nil
}

func decompress(raw []byte, comp request.Compression, expectedSize int64) ([]byte, error) {
	limit := expectedSize
	if limit <= 0 {
		limit = int64(len(raw)) * maxExpansionRatio
	} else {
		limit++ // allow detecting "too large" rather than silently truncating
	}

	switch comp {
	case request.CompressionNone:
		return raw, nil
	case request.CompressionGzip:
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, apperr.Wrap(apperr.DecodeFailed, "invalid gzip stream", err)
		}
		defer gz.Close()
		return readBounded(gz, limit)
	case request.CompressionZlib:
		// klauspost/compress's flate implementation is used directly over
		// the zlib-wrapped deflate stream (stripping the 2-byte zlib
		// header) since it is the throughput-favored deflate decoder for
		// this workload.
		if len(raw) < 2 {
			return nil, apperr.New(apperr.DecodeFailed, "zlib stream too short")
		}
		fr := flate.NewReader(bytes.NewReader(raw[2:]))
		defer fr.Close()
		return readBounded(fr, limit)
	default:
		return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("unsupported compression %q", comp))
	}
}

// readBounded reads all of r, failing with DecodeFailed if more than limit
// bytes are produced, guarding against decompression bombs.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, apperr.Wrap(apperr.DecodeFailed, "decompression failed", err)
	}
	if int64(len(data)) > limit {
		return nil, apperr.New(apperr.DecodeFailed, "decompressed size exceeds expected bound")
	}
	return data, nil
}

func invertFilter(data []byte, f request.Filter) ([]byte, error) {
	switch f.ID {
	case request.FilterShuffle:
		return unshuffle(data, f.ElementSize)
	default:
		return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("unsupported filter %q", f.ID))
	}
}

// unshuffle reverses the byte-shuffle filter: shuffled data stores the i-th
// byte of every element contiguously (all byte 0s, then all byte 1s, ...);
// this regroups bytes back into per-element contiguous layout.
func unshuffle(data []byte, elementSize int) ([]byte, error) {
	if elementSize <= 0 {
		return nil, apperr.New(apperr.BadRequest, "shuffle element_size must be positive")
	}
	if len(data)%elementSize != 0 {
		return nil, apperr.New(apperr.DecodeFailed, "shuffled data length is not a multiple of element_size")
	}
	count := len(data) / elementSize
	out := make([]byte, len(data))
	for byteIdx := 0; byteIdx < elementSize; byteIdx++ {
		srcBase := byteIdx * count
		for elem := 0; elem < count; elem++ {
			out[elem*elementSize+byteIdx] = data[srcBase+elem]
		}
	}
	return out, nil
}
