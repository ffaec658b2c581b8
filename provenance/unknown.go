package provenance

import (
	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
)

// UnknownProvenance wraps a concrete value with no history: a literal
// handed straight to a call, or the root of a graph.
type UnknownProvenance[T any] struct {
	value T
	codec codec.Codec[T]
}

// NewUnknownProvenance wraps v, ready to serve as a leaf input to a call
// or to be resolved directly.
func NewUnknownProvenance[T any](v T, c codec.Codec[T]) UnknownProvenance[T] {
	return UnknownProvenance[T]{value: v, codec: c}
}

func (u UnknownProvenance[T]) OutputClassName() string { return u.codec.SerializableClassName() }
func (UnknownProvenance[T]) Kind() Kind                { return KindUnknown }

// Value returns the wrapped concrete value directly, with no resolution
// needed; a leaf already knows its own value.
func (u UnknownProvenance[T]) Value() T { return u.value }

// RawValue exposes the concrete value and its erased codec, for the
// engine to serialize without knowing T.
func (u UnknownProvenance[T]) RawValue() (any, codec.AnyCodec) {
	return u.value, codec.Erase(u.codec)
}

// ResolveLeaf computes the leaf's own trivial resolution: its digest and
// serialized bytes, with no build context (it was never executed).
func (u UnknownProvenance[T]) ResolveLeaf() (ResolvedNode, error) {
	b, dg, err := codec.SerializeAndDigest(u.codec, u.value)
	if err != nil {
		return nil, err
	}
	return UnknownProvenanceResolved[T]{
		value: u.value,
		codec: u.codec,
		vv:    NewFullVirtualValue(u.value, dg, b),
	}, nil
}

// UnknownProvenanceResolved is variant 2 of the sum: an UnknownProvenance
// after its own trivial self-resolution has computed a digest for it.
type UnknownProvenanceResolved[T any] struct {
	value T
	codec codec.Codec[T]
	vv    VirtualValue
}

// NewUnknownProvenanceResolved builds an already-resolved leaf directly,
// for callers that already have the digest and bytes on hand.
func NewUnknownProvenanceResolved[T any](v T, c codec.Codec[T], vv VirtualValue) UnknownProvenanceResolved[T] {
	return UnknownProvenanceResolved[T]{value: v, codec: c, vv: vv}
}

func (u UnknownProvenanceResolved[T]) OutputClassName() string {
	return u.codec.SerializableClassName()
}
func (UnknownProvenanceResolved[T]) Kind() Kind { return KindUnknownResolved }

func (u UnknownProvenanceResolved[T]) OutputDigest() digest.Digest {
	dg, _ := u.vv.Digest()
	return dg
}
func (u UnknownProvenanceResolved[T]) Output() VirtualValue { return u.vv }
func (u UnknownProvenanceResolved[T]) Build() buildinfo.BuildInfoBrief {
	return buildinfo.BuildInfoBrief{}
}

// Value returns the wrapped concrete value.
func (u UnknownProvenanceResolved[T]) Value() T { return u.value }
