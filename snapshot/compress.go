package snapshot

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"
)

// Compression encodes/decodes a snapshot payload.
// Implementations must be safe for concurrent use.
type Compression interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// CompressionByName returns a built-in compression by its stable name.
// Snapshot files record the compression name in their header and are opened
// by selecting the compression by name.
func CompressionByName(name string) (Compression, bool) {
	switch name {
	case "s2":
		return S2{}, true
	case "lz4":
		return LZ4{}, true
	case "none":
		return None{}, true
	default:
		return nil, false
	}
}

// DefaultCompression is used for newly written snapshots.
var DefaultCompression Compression = S2{}

// S2 compresses with the S2 block format, a faster superset of Snappy.
type S2 struct{}

func (S2) Compress(data []byte) ([]byte, error) {
	return s2.Encode(nil, data), nil
}

func (S2) Decompress(data []byte) ([]byte, error) {
	return s2.Decode(nil, data)
}

func (S2) Name() string { return "s2" }

// LZ4 compresses with the LZ4 frame format.
type LZ4 struct{}

func (LZ4) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (LZ4) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
}

func (LZ4) Name() string { return "lz4" }

// None stores the payload uncompressed.
type None struct{}

func (None) Compress(data []byte) ([]byte, error)   { return data, nil }
func (None) Decompress(data []byte) ([]byte, error) { return data, nil }
func (None) Name() string                           { return "none" }
