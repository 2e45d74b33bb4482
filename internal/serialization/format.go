package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math/bits"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Format constants.
const (
	MagicBytes    = "SQNT"
	FormatVersion = 1       // v1: JSON header + checksummed layer stream
	ChecksumSize  = 32      // SHA-256 checksum size (32 bytes)
	MaxHeaderSize = 1 << 20 // 1 MiB of JSON is far beyond any real header
)

// Flags for the model file.
const (
	FlagHasMetadata uint32 = 1 << 0 // bit 0: header carries custom metadata
)

// Header represents the JSON header of a model file.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the file format
	Name          string            `json:"name"`           // Name of the root layer
	RootType      string            `json:"root_type"`      // Type name of the root layer (e.g., "Series")
	NumWeights    int               `json:"num_weights"`    // Total trainable weights
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	Metadata      map[string]string `json:"metadata"`       // Custom metadata
}

// WriteOptions configures WriteModel.
type WriteOptions struct {
	Order binary.ByteOrder // Byte order of every field; the payload must use the same order
}

// DefaultWriteOptions writes in the platform's native byte order.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Order: binary.NativeEndian}
}

// Model is a decoded model file.
type Model struct {
	Header  Header
	Flags   uint32
	Swap    bool   // The file was written in the opposite byte order
	Payload []byte // Serialized layer stream
}

// PayloadReader returns a Reader over the layer stream.
// Pass m.Swap to every read.
func (m *Model) PayloadReader() *Reader {
	return NewReader(bytes.NewReader(m.Payload))
}

// WriteModel writes header and payload to w as a model file.
func WriteModel(w io.Writer, header Header, payload []byte, opts WriteOptions) error {
	if opts.Order == nil {
		opts.Order = binary.NativeEndian
	}
	header.FormatVersion = FormatVersion
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}

	out := NewWriterOrder(w, opts.Order)
	if err := out.Bytes([]byte(MagicBytes)); err != nil {
		return errors.Wrap(err, "failed to write magic bytes")
	}
	if err := out.Uint32(FormatVersion); err != nil {
		return errors.Wrap(err, "failed to write version")
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if err := out.Uint32(flags); err != nil {
		return errors.Wrap(err, "failed to write flags")
	}
	if err := out.Uint64(uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if err := out.Bytes(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	sum := ComputeChecksum(payload)
	if err := out.Bytes(sum[:]); err != nil {
		return errors.Wrap(err, "failed to write checksum")
	}
	if err := out.Uint64(uint64(len(payload))); err != nil {
		return errors.Wrap(err, "failed to write payload size")
	}
	if err := out.Bytes(payload); err != nil {
		return errors.Wrap(err, "failed to write payload")
	}
	return nil
}

// ReadModel reads a model file from r, detecting the writer's byte order and
// verifying the payload checksum.
func ReadModel(r io.Reader) (*Model, error) {
	in := NewReader(r)

	magic, err := in.Bytes(len(MagicBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read magic bytes")
	}
	if string(magic) != MagicBytes {
		return nil, ErrInvalidMagic
	}

	m := &Model{}
	version, err := in.Uint32(false)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read version")
	}
	switch {
	case version == FormatVersion:
	case bits.ReverseBytes32(version) == FormatVersion:
		m.Swap = true
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}

	if m.Flags, err = in.Uint32(m.Swap); err != nil {
		return nil, errors.Wrap(err, "failed to read flags")
	}
	headerSize, err := in.Uint64(m.Swap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	headerJSON, err := in.Bytes(int(headerSize)) //nolint:gosec // G115: bounded by MaxHeaderSize
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	if err := json.Unmarshal(headerJSON, &m.Header); err != nil {
		return nil, errors.Wrap(err, "failed to parse header JSON")
	}

	sumBytes, err := in.Bytes(ChecksumSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read checksum")
	}
	var sum [ChecksumSize]byte
	copy(sum[:], sumBytes)

	payloadSize, err := in.Uint64(m.Swap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read payload size")
	}
	if payloadSize > MaxArrayLength {
		return nil, errors.Wrapf(ErrArrayTooLong, "payload of %d bytes", payloadSize)
	}
	if m.Payload, err = in.Bytes(int(payloadSize)); err != nil { //nolint:gosec // G115: bounded above
		return nil, errors.Wrap(err, "failed to read payload")
	}
	if err := ValidateChecksum(m.Payload, sum); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveFile writes a model file to path.
func SaveFile(path string, header Header, payload []byte, opts WriteOptions) (err error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "failed to close file")
		}
	}()
	return WriteModel(file, header, payload, opts)
}

// LoadFile reads a model file from path.
func LoadFile(path string) (*Model, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = file.Close() }()
	return ReadModel(file)
}
