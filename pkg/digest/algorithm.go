// Package digest provides incremental cryptographic digest engines.
package digest

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm identifies a supported digest algorithm.
type Algorithm int

// Supported algorithms.
const (
	MD5 Algorithm = iota
	SHA1
	SHA256
)

// Hex digest lengths per algorithm.
const (
	md5HexLen    = 32
	sha1HexLen   = 40
	sha256HexLen = 64
)

// ErrUnsupportedAlgorithm is returned for algorithm names or values outside the supported set.
var ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

// All returns every supported algorithm in canonical order.
func All() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA256}
}

// String returns the canonical lowercase name.
func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// HexLen returns the length of the algorithm's lowercase hex digest.
func (a Algorithm) HexLen() int {
	switch a {
	case MD5:
		return md5HexLen
	case SHA1:
		return sha1HexLen
	case SHA256:
		return sha256HexLen
	default:
		return 0
	}
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	return a.HexLen() > 0
}

// ParseAlgorithm converts a name such as "sha256" or "SHA-256" to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "")

	switch normalized {
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

// ParseAlgorithms parses a list of names, dropping duplicates and keeping first-seen order.
func ParseAlgorithms(names []string) ([]Algorithm, error) {
	seen := make(map[Algorithm]bool, len(names))
	algs := make([]Algorithm, 0, len(names))

	for _, name := range names {
		alg, err := ParseAlgorithm(name)
		if err != nil {
			return nil, err
		}

		if seen[alg] {
			continue
		}

		seen[alg] = true

		algs = append(algs, alg)
	}

	return algs, nil
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, int(a))
	}

	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	alg, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}

	*a = alg

	return nil
}
