// Package codec centralizes payload encoding for persisted snapshot images.
//
// Codec selection is a compatibility boundary: snapshot files record the
// codec name in their header and are decoded by selecting the codec by name
// on load.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used for newly written snapshots. Existing files are
// self-describing and are opened with whatever codec their header names.
var Default Codec = JSON{}
