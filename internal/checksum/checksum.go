// SPDX-License-Identifier: MPL-2.0

// Package checksum computes hex-encoded content digests over raw file bytes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"os"

	"golang.org/x/crypto/blake2b"
)

const (
	// SHA256 is the default algorithm.
	SHA256 Algorithm = "sha256"
	// BLAKE2b256 is BLAKE2b with a 256-bit digest.
	BLAKE2b256 Algorithm = "blake2b"
)

// ErrInvalidAlgorithm is wrapped by InvalidAlgorithmError.
var ErrInvalidAlgorithm = errors.New("invalid checksum algorithm")

type (
	// Algorithm names a digest function.
	Algorithm string

	// InvalidAlgorithmError is returned for unknown algorithm names.
	InvalidAlgorithmError struct {
		Value Algorithm
	}
)

func (e *InvalidAlgorithmError) Error() string {
	return fmt.Sprintf("invalid checksum algorithm %q (valid: %s, %s)", e.Value, SHA256, BLAKE2b256)
}

// Unwrap returns ErrInvalidAlgorithm for errors.Is compatibility.
func (e *InvalidAlgorithmError) Unwrap() error { return ErrInvalidAlgorithm }

// String returns the algorithm name.
func (a Algorithm) String() string { return string(a) }

// IsValid reports whether a names a supported algorithm. The zero value is
// valid and means SHA256.
func (a Algorithm) IsValid() (bool, []error) {
	switch a {
	case "", SHA256, BLAKE2b256:
		return true, nil
	default:
		return false, []error{&InvalidAlgorithmError{Value: a}}
	}
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case "", SHA256:
		return sha256.New(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, &InvalidAlgorithmError{Value: a}
	}
}

// Sum returns the hex digest of data.
func (a Algorithm) Sum(data []byte) (string, error) {
	h, err := a.newHash()
	if err != nil {
		return "", err
	}
	h.Write(data) //nolint:errcheck // hash.Hash.Write never fails
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File returns the hex digest of the file at path.
func (a Algorithm) File(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return a.Sum(data)
}

// Sum returns the SHA-256 hex digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
