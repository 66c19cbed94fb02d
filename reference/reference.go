// Package reference defines FileReference, the backend independent,
// scheme-qualified identifier job code uses to name files it wants staged.
//
// References are written as "scheme:location", optionally followed by a
// fragment carrying integrity expectations:
//
//	local:/scratch/in/sample.bam
//	objectstore:bucket/runs/42/sample.bam#sha256=ab12...&size=1048576
//	sharedfs:projects/cohort/sample.bam
package reference

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
)

// Scheme identifies the kind of storage backend a reference lives on.
type Scheme string

const (
	SchemeLocal       Scheme = "local"
	SchemeObjectStore Scheme = "objectstore"
	SchemeSharedFS    Scheme = "sharedfs"
)

// schemeAliases maps accepted spellings onto canonical schemes.
var schemeAliases = map[string]Scheme{
	"shared-fs": SchemeSharedFS,
	"file":      SchemeLocal,
}

// FileReference is an immutable, scheme-qualified file identifier with
// optional expected checksum and size. The zero value is not valid.
type FileReference struct {
	scheme   Scheme
	location string
	checksum Checksum
	size     int64
	hasSize  bool
}

// Option configures a FileReference at construction.
type Option func(*FileReference)

// WithExpectedChecksum sets the checksum the file content must match.
func WithExpectedChecksum(c Checksum) Option {
	return func(r *FileReference) {
		r.checksum = c
	}
}

// WithExpectedSize sets the size in bytes the file must have.
func WithExpectedSize(size int64) Option {
	return func(r *FileReference) {
		r.size = size
		r.hasSize = true
	}
}

// New builds a reference from its parts.
func New(scheme Scheme, location string, opts ...Option) (FileReference, error) {
	ref := FileReference{
		scheme:   normalizeScheme(string(scheme)),
		location: location,
	}
	for _, opt := range opts {
		opt(&ref)
	}
	if err := ref.Validate(); err != nil {
		return FileReference{}, err
	}
	return ref, nil
}

// Parse parses a "scheme:location[#fragment]" string. The fragment is a query
// string whose keys are checksum algorithms or "size".
func Parse(s string) (FileReference, error) {
	scheme, rest, found := strings.Cut(s, ":")
	if !found || scheme == "" || !isSchemeName(scheme) {
		return FileReference{}, errors.WrapWithContext(
			errors.ErrUnsupportedScheme,
			errors.CodeUnsupportedScheme,
			"file reference has no scheme prefix",
			map[string]interface{}{"reference": s},
		)
	}

	location, fragment, _ := strings.Cut(rest, "#")
	ref := FileReference{
		scheme:   normalizeScheme(scheme),
		location: location,
	}

	if fragment != "" {
		if err := ref.applyFragment(fragment); err != nil {
			return FileReference{}, errors.WrapWithContext(err, errors.CodeInvalidInput,
				"invalid file reference fragment", map[string]interface{}{"reference": s})
		}
	}

	if err := ref.Validate(); err != nil {
		return FileReference{}, err
	}
	return ref, nil
}

// MustParse is like Parse but panics on error. It is intended for constants
// and tests.
func MustParse(s string) FileReference {
	ref, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ref
}

// Local returns a reference to a path on the local filesystem.
func Local(p string) FileReference {
	return FileReference{scheme: SchemeLocal, location: p}
}

func (r *FileReference) applyFragment(fragment string) error {
	values, err := url.ParseQuery(fragment)
	if err != nil {
		return err
	}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := vals[len(vals)-1]
		if key == "size" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid size %q", v)
			}
			r.size, r.hasSize = n, true
			continue
		}
		c, err := NewChecksum(Algorithm(strings.ToLower(key)), v)
		if err != nil {
			return err
		}
		r.checksum = c
	}
	return nil
}

// Validate checks that the reference is well formed. It does not check that
// any backend handles the scheme.
func (r FileReference) Validate() error {
	if r.scheme == "" {
		return errors.WrapWithContext(errors.ErrUnsupportedScheme, errors.CodeUnsupportedScheme,
			"file reference has no scheme", map[string]interface{}{"location": r.location})
	}
	if strings.TrimSpace(r.location) == "" {
		return errors.WrapWithContext(errors.ErrInvalidInput, errors.CodeInvalidInput,
			"file reference location cannot be empty", map[string]interface{}{"scheme": string(r.scheme)})
	}
	if r.hasSize && r.size < 0 {
		return errors.WrapWithContext(errors.ErrInvalidInput, errors.CodeInvalidInput,
			"expected size cannot be negative", map[string]interface{}{"reference": r.String()})
	}
	return nil
}

// Scheme returns the reference's scheme.
func (r FileReference) Scheme() Scheme { return r.scheme }

// Location returns the backend-specific address of the file.
func (r FileReference) Location() string { return r.location }

// ExpectedChecksum returns the expected checksum, if one was set.
func (r FileReference) ExpectedChecksum() (Checksum, bool) {
	return r.checksum, !r.checksum.IsZero()
}

// ExpectedSize returns the expected size, if one was set.
func (r FileReference) ExpectedSize() (int64, bool) {
	return r.size, r.hasSize
}

// HasExpectations reports whether a checksum or size is set.
func (r FileReference) HasExpectations() bool {
	return !r.checksum.IsZero() || r.hasSize
}

// Base returns the last element of the location.
func (r FileReference) Base() string {
	return path.Base(strings.TrimRight(r.location, "/"))
}

// WithChecksum returns a copy of r expecting checksum c.
func (r FileReference) WithChecksum(c Checksum) FileReference {
	r.checksum = c
	return r
}

// WithSize returns a copy of r expecting size bytes.
func (r FileReference) WithSize(size int64) FileReference {
	r.size, r.hasSize = size, true
	return r
}

// WithLocation returns a copy of r pointing at location, keeping the scheme
// and dropping expectations.
func (r FileReference) WithLocation(location string) FileReference {
	return FileReference{scheme: r.scheme, location: location}
}

// String returns the canonical textual form, including any expectations.
func (r FileReference) String() string {
	s := string(r.scheme) + ":" + r.location
	var frag []string
	if !r.checksum.IsZero() {
		frag = append(frag, string(r.checksum.Algorithm)+"="+r.checksum.Value)
	}
	if r.hasSize {
		frag = append(frag, "size="+strconv.FormatInt(r.size, 10))
	}
	if len(frag) > 0 {
		s += "#" + strings.Join(frag, "&")
	}
	return s
}

func normalizeScheme(s string) Scheme {
	s = strings.ToLower(s)
	if alias, ok := schemeAliases[s]; ok {
		return alias
	}
	return Scheme(s)
}

func isSchemeName(s string) bool {
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9')):
		default:
			return false
		}
	}
	return true
}
