// Package cas defines content addressing for the depot: the Digest type
// and the hash function that maps payload bytes to it.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HexLength is the length of a Digest rendered as lowercase hex (SHA-256).
const HexLength = 64

// Digest is the content address of an artifact: the SHA-256 of its exact
// payload bytes, rendered as 64 lowercase hex characters. It is derived
// from content only, never from filename, content type, or metadata.
type Digest string

// Sum computes the Digest of data. It is a pure function: identical byte
// sequences always produce the identical Digest, including the empty
// sequence (a nil slice hashes the same as an empty one).
func Sum(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest(hex.EncodeToString(sum[:]))
}

// Validate reports whether d is a well-formed digest: exactly 64
// lowercase hex characters.
func (d Digest) Validate() error {
	if len(d) != HexLength {
		return fmt.Errorf("digest must be %d hex characters, got %d", HexLength, len(d))
	}
	for i := 0; i < len(d); i++ {
		c := d[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("digest contains non-hex character %q at position %d", c, i)
		}
	}
	return nil
}

// String returns the digest as a plain string.
func (d Digest) String() string { return string(d) }

// ParsePath extracts a Digest from a URL path segment, stripping any
// cosmetic extension. "abc...123.png" and "abc...123" both yield the
// same digest; the extension never participates in addressing.
func ParsePath(segment string) (Digest, error) {
	if i := strings.IndexByte(segment, '.'); i >= 0 {
		segment = segment[:i]
	}
	d := Digest(segment)
	if err := d.Validate(); err != nil {
		return "", err
	}
	return d, nil
}
