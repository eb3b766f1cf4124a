// Package request implements the Request Model & Validator: parsing a
// client's JSON body into a normalized Descriptor and enforcing the data
// model invariants before any downstream stage runs.
package request

import "github.com/cloudslice/reductionist/pkg/dtype"

// Backend identifies which object-store protocol a request targets.
type Backend string

const (
	BackendS3    Backend = "S3"
	BackendHTTP  Backend = "HTTP"
	BackendHTTPS Backend = "HTTPS"
)

// Operation identifies one of the five supported reduction operations. It
// is taken from the URL path, never from the request body.
type Operation string

const (
	OpCount  Operation = "count"
	OpMin    Operation = "min"
	OpMax    Operation = "max"
	OpSum    Operation = "sum"
	OpSelect Operation = "select"
)

// ParseOperation validates an operation name taken from the URL path.
func ParseOperation(s string) (Operation, bool) {
	switch Operation(s) {
	case OpCount, OpMin, OpMax, OpSum, OpSelect:
		return Operation(s), true
	default:
		return "", false
	}
}

// AllOperations enumerates the five supported operations, used to register
// one route per operation per API version.
func AllOperations() []Operation {
	return []Operation{OpCount, OpMin, OpMax, OpSum, OpSelect}
}

// Credentials carries an optional access key / secret pair. A zero value
// means the request is unauthenticated against the upstream object store.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Present reports whether credentials were supplied.
func (c Credentials) Present() bool {
	return c.AccessKey != ""
}

// Locator names the object an operation applies to.
type Locator struct {
	// Source is the endpoint URL for S3, or unused for plain HTTP(S) (where
	// URL already names the full object location).
	Source string
	Bucket  string
	Object  string
	// URL is used directly for HTTP/HTTPS backends.
	URL string
}

// Compression names an optional decompression codec applied before filter
// inversion.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZlib Compression = "zlib"
)

// FilterTag names a supported filter.
type FilterTag string

const (
	FilterShuffle FilterTag = "shuffle"
)

// Filter is one entry of the ordered filter pipeline.
type Filter struct {
	ID          FilterTag
	ElementSize int // shuffle parameter
}

// SelectionTriple describes a per-axis (start, end, stride) sub-range.
type SelectionTriple struct {
	Start  int
	End    int
	Stride int
}

// MissingKind names which missing-data rule a request applies, if any.
type MissingKind string

const (
	MissingNone      MissingKind = ""
	MissingValue     MissingKind = "value"
	MissingValues    MissingKind = "values"
	MissingValidMin  MissingKind = "valid_min"
	MissingValidMax  MissingKind = "valid_max"
	MissingValidRange MissingKind = "valid_range"
)

// MissingPolicy describes how to classify elements as missing. Exactly one
// of the fields relevant to Kind is populated; values are stored as float64
// since every supported dtype round-trips losslessly through it at the
// magnitudes this service deals with, and kernels convert back to the
// concrete dtype domain when comparing.
type MissingPolicy struct {
	Kind     MissingKind
	Value    float64
	Values   []float64
	ValidMin float64
	ValidMax float64
}

// Descriptor is the normalized, validated request produced by Decode+Validate.
type Descriptor struct {
	Backend     Backend
	Locator     Locator
	Credentials Credentials

	DType     dtype.DType
	ByteOrder dtype.ByteOrder

	Offset int64
	Size   int64

	Shape []int
	Order dtype.Order

	Axis []int // nil means "all axes"

	Selection []SelectionTriple // nil means "whole array"

	Compression Compression
	Filters     []Filter

	Missing MissingPolicy

	Operation Operation
}

// ElementCount returns product(Shape).
func (d *Descriptor) ElementCount() int64 {
	n := int64(1)
	for _, s := range d.Shape {
		n *= int64(s)
	}
	return n
}
