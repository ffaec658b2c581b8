// Package digest implements the content-addressed identifiers that every
// blob, call record, and result record in this module is keyed by: a
// fixed-width SHA-1 hash over a canonical byte serialization, rendered as
// "sha1-<40 hex chars>".
//
// Grounded on the teacher's ref.Ref (dolthub-dolt ref/ref.go): a
// fixed-size byte array wrapped in a value type, with FromBytes/Parse/Less
// carrying the same shape as ref.FromData/ref.Parse/ref.Less.
package digest

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/astangl/data-provenance/d"
)

// Size is the byte length of a Digest.
const Size = sha1.Size

var pattern = regexp.MustCompile(`^sha1-([0-9a-f]{40})$`)

// Digest is a content hash. The zero value is the empty digest and is
// never produced by FromBytes.
type Digest [Size]byte

// String renders the digest as "sha1-<40 hex chars>".
func (dg Digest) String() string {
	return fmt.Sprintf("sha1-%s", hex.EncodeToString(dg[:]))
}

// IsEmpty reports whether dg is the zero digest.
func (dg Digest) IsEmpty() bool {
	return dg == Digest{}
}

// FromBytes computes the digest of b.
func FromBytes(b []byte) Digest {
	return Digest(sha1.Sum(b))
}

// Parse decodes a digest previously rendered by String.
func Parse(s string) (Digest, error) {
	match := pattern.FindStringSubmatch(s)
	if match == nil {
		return Digest{}, fmt.Errorf("digest: could not parse %q", s)
	}
	var dg Digest
	n, err := hex.Decode(dg[:], []byte(match[1]))
	d.Chk.NoError(err) // the regexp above already validated the input
	d.Chk.Equal(Size, n)
	return dg, nil
}

// MustParse is Parse, panicking on error. Intended for literals in tests
// and static tables, not for parsing untrusted input.
func MustParse(s string) Digest {
	dg, err := Parse(s)
	d.Chk.NoError(err)
	return dg
}

// Less orders two digests byte-by-byte, giving a stable total order.
// serial.InputGroupBytes does not use it: input digests keep their
// declared order.
func Less(a, b Digest) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

// MarshalText and UnmarshalText let Digest participate directly in JSON
// records as its hex String() form.
func (dg Digest) MarshalText() ([]byte, error) {
	return []byte(dg.String()), nil
}

func (dg *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*dg = parsed
	return nil
}
