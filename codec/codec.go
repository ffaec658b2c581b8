// Package codec implements deterministic bidirectional T <-> bytes
// serialization plus the canonical class-name type tags that let a
// deserializer identify what it's looking at. User types bring their own
// Codec; this package only supplies the primitives (JSON, raw bytes) and
// the machinery (registry, abstract/tagged codec) that the serializable
// mirror rides on.
package codec

import (
	"bytes"
	"fmt"

	"github.com/astangl/data-provenance/digest"
)

// Codec is a deterministic encoder/decoder pair for a single Go type,
// plus the type tag used to identify it out of band.
type Codec[T any] interface {
	Serialize(v T) ([]byte, error)
	Deserialize(b []byte) (T, error)

	// ClassTag is a short machine identifier for T (e.g. "int", "string",
	// "myapp.Widget"). SerializableClassName is what's actually written
	// into wire records; the two coincide for every codec in this
	// package but a plugin codec may version them independently.
	ClassTag() string
	SerializableClassName() string
}

// AnyCodec is the type-erased view of a Codec[T], used wherever the
// concrete T isn't known until runtime (the serializable mirror, the
// function registry, the resolution engine).
type AnyCodec interface {
	SerializeAny(v any) ([]byte, error)
	DeserializeAny(b []byte) (any, error)
	ClassTag() string
	SerializableClassName() string
}

type erased[T any] struct{ c Codec[T] }

func (e erased[T]) SerializeAny(v any) ([]byte, error) {
	t, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("codec: value of type %T is not assignable to %s", v, e.c.ClassTag())
	}
	return e.c.Serialize(t)
}

func (e erased[T]) DeserializeAny(b []byte) (any, error) { return e.c.Deserialize(b) }
func (e erased[T]) ClassTag() string                     { return e.c.ClassTag() }
func (e erased[T]) SerializableClassName() string        { return e.c.SerializableClassName() }

// Erase adapts a typed Codec[T] to the type-erased AnyCodec interface.
func Erase[T any](c Codec[T]) AnyCodec { return erased[T]{c} }

// ErrRawBytesDigest is returned by DigestObject when asked to digest a
// []byte value: raw byte slices must be digested directly with
// DigestBytes, not serialized-then-digested.
var ErrRawBytesDigest = fmt.Errorf("codec: refusing to re-serialize a []byte before digesting; call DigestBytes directly")

// DigestBytes hashes already-serialized bytes.
func DigestBytes(b []byte) digest.Digest { return digest.FromBytes(b) }

// DigestObject serializes v with c and hashes the result.
func DigestObject[T any](c Codec[T], v T) (digest.Digest, error) {
	if _, isBytes := any(v).([]byte); isBytes {
		return digest.Digest{}, ErrRawBytesDigest
	}
	b, err := c.Serialize(v)
	if err != nil {
		return digest.Digest{}, err
	}
	return DigestBytes(b), nil
}

// SerializeAndDigest serializes v once and returns both the bytes and
// their digest.
func SerializeAndDigest[T any](c Codec[T], v T) ([]byte, digest.Digest, error) {
	if _, isBytes := any(v).([]byte); isBytes {
		return nil, digest.Digest{}, ErrRawBytesDigest
	}
	b, err := c.Serialize(v)
	if err != nil {
		return nil, digest.Digest{}, err
	}
	return b, DigestBytes(b), nil
}

// CheckConsistency deserializes b, re-serializes the result, and confirms
// the bytes and digest are unchanged: fatal on write, a warn-and-retry
// signal on read.
func CheckConsistency[T any](c Codec[T], b []byte, want digest.Digest) error {
	v, err := c.Deserialize(b)
	if err != nil {
		return fmt.Errorf("codec: consistency check deserialize failed: %w", err)
	}
	got, err := c.Serialize(v)
	if err != nil {
		return fmt.Errorf("codec: consistency check reserialize failed: %w", err)
	}
	if !bytes.Equal(b, got) {
		return fmt.Errorf("codec: consistency check: reserialized bytes differ for class %s", c.SerializableClassName())
	}
	if DigestBytes(got) != want {
		return fmt.Errorf("codec: consistency check: digest mismatch for class %s", c.SerializableClassName())
	}
	return nil
}

// CheckConsistencyAny is CheckConsistency for callers that only hold an
// AnyCodec, never the concrete T: the resolution engine's write and
// cached-read paths.
func CheckConsistencyAny(c AnyCodec, b []byte, want digest.Digest) error {
	v, err := c.DeserializeAny(b)
	if err != nil {
		return fmt.Errorf("codec: consistency check deserialize failed: %w", err)
	}
	got, err := c.SerializeAny(v)
	if err != nil {
		return fmt.Errorf("codec: consistency check reserialize failed: %w", err)
	}
	if !bytes.Equal(b, got) {
		return fmt.Errorf("codec: consistency check: reserialized bytes differ for class %s", c.SerializableClassName())
	}
	if DigestBytes(got) != want {
		return fmt.Errorf("codec: consistency check: digest mismatch for class %s", c.SerializableClassName())
	}
	return nil
}
