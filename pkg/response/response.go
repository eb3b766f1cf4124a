// Package response encodes a kernel.Result as either the preferred CBOR
// body (/v2) or the legacy binary-body-plus-headers form (/v1).
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/dtype"
	"github.com/cloudslice/reductionist/pkg/kernel"
)

// Version names the wire format, selected from the URL prefix (or an
// Accept header override — see WithAcceptOverride).
type Version int

const (
	V1 Version = iota
	V2
)

// VersionFromPath inspects a request path's leading segment to choose the
// wire format; unrecognized prefixes default to V2, the preferred format.
func VersionFromPath(path string) Version {
	switch {
	case strings.HasPrefix(path, "/v1/"):
		return V1
	case strings.HasPrefix(path, "/v2/"):
		return V2
	default:
		return V2
	}
}

// WithAcceptOverride lets a client pin the response format independent of
// the URL prefix, supplementing the version-by-path rule: an explicit
// "application/cbor" or "application/octet-stream" Accept header wins.
func WithAcceptOverride(accept string, v Version) Version {
	switch {
	case strings.Contains(accept, "application/cbor"):
		return V2
	case strings.Contains(accept, "application/octet-stream"):
		return V1
	default:
		return v
	}
}

type cborBody struct {
	Bytes     []byte   `cbor:"bytes"`
	DType     string   `cbor:"dtype"`
	Shape     []int    `cbor:"shape"`
	Count     any      `cbor:"count"`
	ByteOrder string   `cbor:"byte_order"`
}

// Write serializes res to w according to version, in the byte order
// res.ByteOrder records (the order the requesting descriptor asked for).
func Write(w http.ResponseWriter, res *kernel.Result, version Version) error {
	switch version {
	case V1:
		return writeLegacy(w, res)
	default:
		return writeCBOR(w, res)
	}
}

// resultByteOrder defaults an unset Result.ByteOrder to little-endian,
// matching kernel.Execute's own default for a descriptor with no explicit
// byte_order.
func resultByteOrder(res *kernel.Result) dtype.ByteOrder {
	if res.ByteOrder == "" {
		return dtype.Little
	}
	return res.ByteOrder
}

func countField(res *kernel.Result) any {
	if res.CountIsScalar {
		if len(res.Count) == 1 {
			return res.Count[0]
		}
		return nil
	}
	if len(res.Count) == 0 {
		return nil
	}
	return res.Count
}

func writeCBOR(w http.ResponseWriter, res *kernel.Result) error {
	body := cborBody{
		Bytes:     res.Bytes,
		DType:     string(res.DType),
		Shape:     res.Shape,
		Count:     countField(res),
		ByteOrder: string(resultByteOrder(res)),
	}
	encoded, err := cbor.Marshal(body)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(encoded)
	return err
}

func writeLegacy(w http.ResponseWriter, res *kernel.Result) error {
	shapeJSON, err := json.Marshal(res.Shape)
	if err != nil {
		return err
	}
	w.Header().Set("x-activestorage-dtype", string(res.DType))
	w.Header().Set("x-activestorage-byte-order", string(resultByteOrder(res)))
	w.Header().Set("x-activestorage-shape", string(shapeJSON))
	w.Header().Set("x-activestorage-count", countHeader(res))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(res.Bytes)
	return err
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message  string   `json:"message"`
	CausedBy []string `json:"caused_by"`
}

// WriteError renders err per the shared wire error format, identical across
// /v1 and /v2: {"error": {"message": str, "caused_by": [str, ...]}}, root
// cause last. The HTTP status is derived from err's apperr.Kind.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	body := errorBody{Error: errorDetail{
		Message:  err.Error(),
		CausedBy: apperr.Causes(err),
	}}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(kind))
	_ = json.NewEncoder(w).Encode(body)
}

func countHeader(res *kernel.Result) string {
	if res.CountIsScalar && len(res.Count) == 1 {
		return strconv.FormatInt(res.Count[0], 10)
	}
	if len(res.Count) == 0 {
		return "null"
	}
	encoded, _ := json.Marshal(res.Count)
	return string(encoded)
}
