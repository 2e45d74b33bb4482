package serialization

import (
	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrShortRead          = errors.New("short read: stream ended before the expected field")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrArrayTooLong       = errors.New("array length exceeds maximum")
)
