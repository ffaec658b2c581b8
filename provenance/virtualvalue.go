package provenance

import "github.com/astangl/data-provenance/digest"

// VirtualValue is a result node's output: some combination of a concrete
// value, its digest, and its serialized bytes, with the invariant that at
// least one is present. Represented as a tagged union of {ConcreteOnly,
// DigestOnly, Both} and enforced by construction: there is no exported
// zero-value constructor.
type VirtualValue struct {
	concrete    any
	hasConcrete bool
	dg          digest.Digest
	hasDigest   bool
	bytes       []byte
}

// NewConcreteVirtualValue wraps a value that hasn't been digested yet
// (the digest is computed lazily by whoever has the codec).
func NewConcreteVirtualValue(v any) VirtualValue {
	return VirtualValue{concrete: v, hasConcrete: true}
}

// NewDigestVirtualValue wraps a bare digest: the concrete value is
// loadable from a ResultTracker on demand but isn't held in memory.
func NewDigestVirtualValue(dg digest.Digest) VirtualValue {
	return VirtualValue{dg: dg, hasDigest: true}
}

// NewFullVirtualValue carries the concrete value, its digest, and its
// serialized bytes together, the shape produced immediately after
// executing a function, before anything has been evicted.
func NewFullVirtualValue(v any, dg digest.Digest, b []byte) VirtualValue {
	return VirtualValue{concrete: v, hasConcrete: true, dg: dg, hasDigest: true, bytes: b}
}

// Concrete returns the held value, if any.
func (v VirtualValue) Concrete() (any, bool) { return v.concrete, v.hasConcrete }

// Digest returns the held digest, if any.
func (v VirtualValue) Digest() (digest.Digest, bool) { return v.dg, v.hasDigest }

// Bytes returns the held serialized bytes, if any.
func (v VirtualValue) Bytes() ([]byte, bool) { return v.bytes, v.bytes != nil }

// IsZero reports whether v carries nothing at all, a state a constructed
// result must never be in.
func (v VirtualValue) IsZero() bool { return !v.hasConcrete && !v.hasDigest && v.bytes == nil }
