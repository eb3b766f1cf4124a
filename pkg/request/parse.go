package request

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudslice/reductionist/pkg/apperr"
	"github.com/cloudslice/reductionist/pkg/dtype"
)

// wireRequest mirrors the JSON body accepted by both API versions. v1
// identifies the object via {source, bucket, object}; v2 via
// {interface_type, url}. Both are accepted regardless of URL prefix so a
// single parser serves both, matching §6's note that the wire shapes
// differ only in how the object is named.
type wireRequest struct {
	// Object location, v1 style.
	Source string `json:"source"`
	Bucket string `json:"bucket"`
	Object string `json:"object"`

	// Object location, v2 style.
	InterfaceType string `json:"interface_type"`
	URL           string `json:"url"`

	DType     string `json:"dtype"`
	ByteOrder string `json:"byte_order"`

	Offset *int64 `json:"offset"`
	Size   *int64 `json:"size"`

	Shape []int  `json:"shape"`
	Order string `json:"order"`

	Axis json.RawMessage `json:"axis"`

	Selection [][]int `json:"selection"`

	Compression string `json:"compression"`
	Filters     []wireFilter `json:"filters"`

	Missing *wireMissing `json:"missing"`

	// Credentials is not part of the wire schema and is never decoded from
	// the body; the HTTP layer passes Basic auth credentials through
	// DecodeOptions instead.
	Credentials *Credentials `json:"-"`
}

type wireFilter struct {
	ID          string `json:"id"`
	ElementSize int    `json:"element_size"`
}

type wireMissing struct {
	MissingValue  *float64  `json:"missing_value"`
	MissingValues []float64 `json:"missing_values"`
	ValidMin      *float64  `json:"valid_min"`
	ValidMax      *float64  `json:"valid_max"`
	ValidRange    []float64 `json:"valid_range"`
}

// DecodeOptions carries out-of-band inputs the HTTP layer has already
// extracted: credentials from the Basic auth header and the operation
// named by the URL path.
type DecodeOptions struct {
	Credentials Credentials
	Operation   Operation
}

// Decode parses and validates a request body, producing a Descriptor or a
// *apperr.Error of kind BadRequest.
func Decode(body io.Reader, opts DecodeOptions) (*Descriptor, error) {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var wire wireRequest
	if err := dec.Decode(&wire); err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "invalid request body", err)
	}

	desc, err := fromWire(&wire, opts)
	if err != nil {
		return nil, err
	}
	if err := Validate(desc); err != nil {
		return nil, err
	}
	return desc, nil
}

func fromWire(w *wireRequest, opts DecodeOptions) (*Descriptor, error) {
	desc := &Descriptor{
		Credentials: opts.Credentials,
		Operation:   opts.Operation,
	}

	switch {
	case w.URL != "":
		switch w.InterfaceType {
		case "", "S3":
			desc.Backend = BackendS3
		case "HTTP":
			desc.Backend = BackendHTTP
		case "HTTPS":
			desc.Backend = BackendHTTPS
		default:
			return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("unknown interface_type %q", w.InterfaceType))
		}
		desc.Locator = Locator{URL: w.URL}
	case w.Source != "":
		desc.Backend = BackendS3
		desc.Locator = Locator{Source: w.Source, Bucket: w.Bucket, Object: w.Object}
	default:
		return nil, apperr.New(apperr.BadRequest, "request must specify either source/bucket/object or url")
	}

	dt, err := dtype.Parse(w.DType)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "invalid dtype", err)
	}
	desc.DType = dt

	if w.ByteOrder == "" {
		desc.ByteOrder = dtype.Little
	} else {
		bo, err := dtype.ParseByteOrder(w.ByteOrder)
		if err != nil {
			return nil, apperr.Wrap(apperr.BadRequest, "invalid byte_order", err)
		}
		desc.ByteOrder = bo
	}

	order, err := dtype.ParseOrder(w.Order)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "invalid order", err)
	}
	desc.Order = order

	if w.Offset != nil {
		desc.Offset = *w.Offset
	}
	if w.Size != nil {
		desc.Size = *w.Size
	}

	desc.Shape = w.Shape
	if len(desc.Shape) == 0 && desc.Size > 0 {
		desc.Shape = []int{int(desc.Size / int64(dt.Size()))}
	}

	if len(w.Axis) > 0 {
		axis, err := parseAxis(w.Axis)
		if err != nil {
			return nil, apperr.Wrap(apperr.BadRequest, "invalid axis", err)
		}
		desc.Axis = axis
	}

	if w.Selection != nil {
		sel := make([]SelectionTriple, len(w.Selection))
		for i, triple := range w.Selection {
			if len(triple) != 3 {
				return nil, apperr.New(apperr.BadRequest, "each selection entry must be [start, end, stride]")
			}
			sel[i] = SelectionTriple{Start: triple[0], End: triple[1], Stride: triple[2]}
		}
		desc.Selection = sel
	}

	switch Compression(w.Compression) {
	case CompressionNone, CompressionGzip, CompressionZlib:
		desc.Compression = Compression(w.Compression)
	default:
		return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("unknown compression %q", w.Compression))
	}

	for _, f := range w.Filters {
		switch FilterTag(f.ID) {
		case FilterShuffle:
			desc.Filters = append(desc.Filters, Filter{ID: FilterShuffle, ElementSize: f.ElementSize})
		default:
			return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("unknown filter %q", f.ID))
		}
	}

	if w.Missing != nil {
		m, err := fromWireMissing(w.Missing)
		if err != nil {
			return nil, err
		}
		desc.Missing = m
	}

	return desc, nil
}

func parseAxis(raw json.RawMessage) ([]int, error) {
	var single int
	if err := json.Unmarshal(raw, &single); err == nil {
		return []int{single}, nil
	}
	var list []int
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("axis must be an integer or a list of integers")
}

func fromWireMissing(w *wireMissing) (MissingPolicy, error) {
	set := 0
	var p MissingPolicy
	if w.MissingValue != nil {
		set++
		p.Kind = MissingValue
		p.Value = *w.MissingValue
	}
	if w.MissingValues != nil {
		set++
		p.Kind = MissingValues
		p.Values = w.MissingValues
	}
	if w.ValidMin != nil && w.ValidMax != nil {
		set++
		p.Kind = MissingValidRange
		p.ValidMin = *w.ValidMin
		p.ValidMax = *w.ValidMax
	} else if w.ValidMin != nil {
		set++
		p.Kind = MissingValidMin
		p.ValidMin = *w.ValidMin
	} else if w.ValidMax != nil {
		set++
		p.Kind = MissingValidMax
		p.ValidMax = *w.ValidMax
	}
	if w.ValidRange != nil {
		if len(w.ValidRange) != 2 {
			return p, apperr.New(apperr.BadRequest, "valid_range must have exactly two elements")
		}
		set++
		p.Kind = MissingValidRange
		p.ValidMin = w.ValidRange[0]
		p.ValidMax = w.ValidRange[1]
	}
	if set != 1 {
		return p, apperr.New(apperr.BadRequest, "missing policy must set exactly one of value, values, valid_min, valid_max, valid_range")
	}
	return p, nil
}
