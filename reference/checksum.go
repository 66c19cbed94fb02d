package reference

import (
	"crypto/md5"  //nolint:gosec // md5 is offered for compatibility with object store ETags
	"crypto/sha1" //nolint:gosec // sha1 is offered for compatibility with legacy manifests
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
)

// Algorithm names a checksum algorithm.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"

	// DefaultAlgorithm is used when a checksum is given without an algorithm.
	DefaultAlgorithm = SHA256
)

// Checksum is an expected or observed digest of a file's content.
type Checksum struct {
	Algorithm Algorithm
	Value     string
}

// ParseChecksum parses "algorithm:hex" or a bare hex value, which is
// interpreted with DefaultAlgorithm.
func ParseChecksum(s string) (Checksum, error) {
	alg, value, found := strings.Cut(s, ":")
	if !found {
		alg, value = string(DefaultAlgorithm), s
	}
	return NewChecksum(Algorithm(strings.ToLower(alg)), value)
}

// NewChecksum validates and returns a checksum.
func NewChecksum(alg Algorithm, value string) (Checksum, error) {
	if _, err := alg.New(); err != nil {
		return Checksum{}, err
	}
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return Checksum{}, errors.New(errors.CodeInvalidInput, "checksum value cannot be empty")
	}
	return Checksum{Algorithm: alg, Value: value}, nil
}

// IsZero reports whether the checksum is unset.
func (c Checksum) IsZero() bool {
	return c.Value == ""
}

// Equal reports whether two checksums use the same algorithm and value.
func (c Checksum) Equal(other Checksum) bool {
	return c.Algorithm == other.Algorithm && strings.EqualFold(c.Value, other.Value)
}

// String returns the "algorithm:value" form.
func (c Checksum) String() string {
	if c.IsZero() {
		return ""
	}
	return string(c.Algorithm) + ":" + c.Value
}

// New returns a fresh hash for the algorithm.
//
//nolint:ireturn // hash.Hash is the standard library contract.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil //nolint:gosec // see import
	case SHA1:
		return sha1.New(), nil //nolint:gosec // see import
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "unsupported checksum algorithm %q", string(a))
	}
}

// Compute reads r to EOF and returns its checksum and length.
func Compute(alg Algorithm, r io.Reader) (Checksum, int64, error) {
	h, err := alg.New()
	if err != nil {
		return Checksum{}, 0, err
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return Checksum{}, n, err
	}
	return Checksum{Algorithm: alg, Value: hex.EncodeToString(h.Sum(nil))}, n, nil
}
