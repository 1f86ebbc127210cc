package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// JSON handles typical structs/maps/slices; funcs, channels and complex
// numbers are not supported. If you need custom encoding (e.g. protobuf or
// msgpack), implement Codec and set it on the store builder.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }
