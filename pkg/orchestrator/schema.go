package orchestrator

// requestSchemaJSON is the JSON Schema for the v2 request body, served at
// GET /.well-known/reductionist-schema. It documents the unified wire shape
// (interface_type/url) alongside the legacy v1 fields so a single document
// describes both API versions.
const requestSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Reductionist request",
  "type": "object",
  "properties": {
    "interface_type": {"type": "string", "enum": ["S3", "HTTP", "HTTPS"]},
    "url": {"type": "string"},
    "source": {"type": "string"},
    "bucket": {"type": "string"},
    "object": {"type": "string"},
    "dtype": {"type": "string", "enum": ["i32", "i64", "u32", "u64", "f32", "f64", "int32", "int64", "uint32", "uint64", "float32", "float64"]},
    "byte_order": {"type": "string", "enum": ["big", "little"]},
    "offset": {"type": "integer", "minimum": 0},
    "size": {"type": "integer", "minimum": 1},
    "shape": {"type": "array", "items": {"type": "integer", "minimum": 1}},
    "order": {"type": "string", "enum": ["C", "F"]},
    "axis": {"oneOf": [{"type": "integer"}, {"type": "array", "items": {"type": "integer"}}]},
    "selection": {
      "type": "array",
      "items": {
        "type": "array",
        "items": {"type": "integer"},
        "minItems": 3,
        "maxItems": 3
      }
    },
    "compression": {"type": "string", "enum": ["gzip", "zlib"]},
    "filters": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "id": {"type": "string", "enum": ["shuffle"]},
          "element_size": {"type": "integer", "minimum": 1}
        },
        "required": ["id"]
      }
    },
    "missing": {
      "type": "object",
      "properties": {
        "missing_value": {"type": "number"},
        "missing_values": {"type": "array", "items": {"type": "number"}},
        "valid_min": {"type": "number"},
        "valid_max": {"type": "number"},
        "valid_range": {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2}
      },
      "additionalProperties": false
    }
  },
  "additionalProperties": false
}`

func init() {
	schemaDocument = []byte(requestSchemaJSON)
}
