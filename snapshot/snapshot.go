// Package snapshot serializes the full store state (chunks plus their stored
// embeddings) into a single self-describing blob.
//
// Layout:
//
//	[8]byte  magic "KGOSNAP1"
//	uint16   format version
//	uint8+n  codec name
//	uint8+n  compression name
//	uint32   payload length
//	[n]byte  payload (compression(codec(Image)))
//	uint32   CRC32 (IEEE) of the payload
//
// Codec and compression names in the header make old files readable after
// the defaults change. The checksum detects storage corruption, it is not a
// tamper seal.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/knowgo/knowgo/codec"
	"github.com/knowgo/knowgo/model"
)

const (
	magic         = "KGOSNAP1"
	formatVersion = uint16(1)
)

// ErrBadImage is returned when a snapshot cannot be decoded: truncated data,
// wrong magic, unknown codec or compression, checksum mismatch, or a payload
// the codec rejects. Callers typically recover by starting from an empty
// store.
var ErrBadImage = errors.New("snapshot: bad image")

// Image is the decoded snapshot content.
type Image struct {
	// Metric is the stable name of the index ranking metric.
	Metric string `json:"metric"`

	// Dimension is the established vector dimension, 0 when empty.
	Dimension int `json:"dimension"`

	// Chunks carries every live chunk with its stored embedding.
	Chunks []model.Chunk `json:"chunks"`
}

// Writer encodes images with a fixed codec and compression.
type Writer struct {
	codec       codec.Codec
	compression Compression
}

// NewWriter creates a snapshot writer. Nil arguments select the defaults.
func NewWriter(c codec.Codec, cmp Compression) *Writer {
	if c == nil {
		c = codec.Default
	}
	if cmp == nil {
		cmp = DefaultCompression
	}
	return &Writer{codec: c, compression: cmp}
}

// Encode serializes img into the container format.
func (w *Writer) Encode(img *Image) ([]byte, error) {
	encoded, err := w.codec.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal image: %w", err)
	}

	payload, err := w.compression.Compress(encoded)
	if err != nil {
		return nil, fmt.Errorf("snapshot: compress image: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	if err := binary.Write(&buf, binary.LittleEndian, formatVersion); err != nil {
		return nil, err
	}
	writeName(&buf, w.codec.Name())
	writeName(&buf, w.compression.Name())
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(payload))); err != nil {
		return nil, err
	}
	buf.Write(payload)
	if err := binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(payload)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a snapshot blob written by any Writer. The codec and
// compression are selected from the header, so the reader needs no
// configuration.
func Decode(data []byte) (*Image, error) {
	r := bytes.NewReader(data)

	head := make([]byte, len(magic))
	if _, err := r.Read(head); err != nil || string(head) != magic {
		return nil, fmt.Errorf("%w: invalid magic", ErrBadImage)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrBadImage)
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrBadImage, version)
	}

	codecName, err := readName(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrBadImage)
	}
	compressionName, err := readName(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrBadImage)
	}

	c, ok := codec.ByName(codecName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrBadImage, codecName)
	}
	cmp, ok := CompressionByName(compressionName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown compression %q", ErrBadImage, compressionName)
	}

	var payloadLen uint32
	if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrBadImage)
	}
	if int(payloadLen) > r.Len() {
		return nil, fmt.Errorf("%w: truncated payload", ErrBadImage)
	}

	payload := make([]byte, payloadLen)
	if _, err := r.Read(payload); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrBadImage)
	}

	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return nil, fmt.Errorf("%w: missing checksum", ErrBadImage)
	}
	if actual := crc32.ChecksumIEEE(payload); actual != sum {
		return nil, fmt.Errorf("%w: checksum mismatch: expected 0x%08x, got 0x%08x", ErrBadImage, sum, actual)
	}

	decompressed, err := cmp.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrBadImage, err)
	}

	var img Image
	if err := c.Unmarshal(decompressed, &img); err != nil {
		return nil, fmt.Errorf("%w: unmarshal image: %v", ErrBadImage, err)
	}

	return &img, nil
}

func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte(uint8(len(name)))
	buf.WriteString(name)
}

func readName(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	name := make([]byte, n)
	if _, err := r.Read(name); err != nil {
		return "", err
	}
	return string(name), nil
}
