// Package hash computes the SHA-256 content hashes used throughout the
// engine to key objects, detect changes, and verify RRDP document bodies.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Hex returns the lowercase hex SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HexReader returns the lowercase hex SHA-256 digest of everything read
// from r.
func HexReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal compares two lowercase hex digests.
func Equal(a, b string) bool {
	return a == b
}
