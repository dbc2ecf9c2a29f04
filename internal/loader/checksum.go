package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// MetadataChecksum is the metadata key holding the hex SHA-256 of the data
// section. Write sets it; Verify checks it when present.
const MetadataChecksum = "sha256"

// ErrChecksumMismatch is returned when the data section does not hash to
// the recorded checksum.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// computeChecksum hashes payload chunks in order.
func computeChecksum(payload [][]byte) string {
	h := sha256.New()
	for _, p := range payload {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// computeChecksumReader hashes r without loading it into memory.
func computeChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the data section checksum and compares it with the one
// recorded in the metadata. Files without a checksum verify trivially.
func (r *Reader) Verify() error {
	stored, ok := r.header.Metadata[MetadataChecksum]
	if !ok {
		return nil
	}
	computed, err := computeChecksumReader(io.NewSectionReader(r.file, r.dataOffset, r.dataSize))
	if err != nil {
		return fmt.Errorf("failed to hash data section: %w", err)
	}
	if computed != stored {
		return fmt.Errorf("%w: computed %s, stored %s", ErrChecksumMismatch, computed, stored)
	}
	return nil
}
