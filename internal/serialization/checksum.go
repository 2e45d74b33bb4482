package serialization

import (
	"crypto/sha256"
)

// ComputeChecksum computes the SHA-256 checksum of a serialized payload.
func ComputeChecksum(payload []byte) [ChecksumSize]byte {
	return sha256.Sum256(payload)
}

// ValidateChecksum compares the checksum of payload against stored.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(payload []byte, stored [ChecksumSize]byte) error {
	if ComputeChecksum(payload) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
