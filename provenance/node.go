// Package provenance implements the graph algebra of the
// ValueWithProvenance[T] family: six variants that a call graph is built
// from. Go has no closed-sum-of-generics the way a sealed trait hierarchy
// does, so the sum is represented as a narrow erased interface (Node)
// that every generic variant type implements, mirroring the teacher's own
// closed value hierarchy (types.Value plus a NomsKind discriminant,
// dolthub-dolt types/type_desc.go), generalized from a fixed set of
// concrete kinds to a fixed set of generic shapes.
//
// This package holds the pure data model only: constructing calls,
// wrapping leaves, computing a leaf's own trivial resolution. Walking a
// graph against a ResultTracker (recursive resolution, caching, save,
// deflate/inflate) is the resolution engine's job, package resolve, which
// drives the graph through the exported capability interfaces below
// (LeafResolver, CallView, DeflatedCallView, DeflatedResultView) without
// needing to know any node's concrete type parameter T.
package provenance

import (
	"context"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
)

// Kind discriminates the six variants without reflection.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnknownResolved
	KindCall
	KindResult
	KindCallDeflated
	KindResultDeflated
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "UnknownProvenance"
	case KindUnknownResolved:
		return "UnknownProvenanceResolved"
	case KindCall:
		return "FunctionCallWithProvenance"
	case KindResult:
		return "FunctionCallResultWithProvenance"
	case KindCallDeflated:
		return "FunctionCallWithProvenanceDeflated"
	case KindResultDeflated:
		return "FunctionCallResultWithProvenanceDeflated"
	default:
		return "Unknown"
	}
}

// Node is implemented by every member of the ValueWithProvenance sum.
// The resolution engine walks call graphs through this interface only,
// never through the generic wrapper types directly, so that a single
// non-generic engine can drive an arbitrarily typed graph.
type Node interface {
	// OutputClassName is the canonical class name of the type this node
	// ultimately produces.
	OutputClassName() string
	// Kind reports which of the six sum variants this node is, so the
	// engine can type-switch on capability without a chain of failed
	// type assertions.
	Kind() Kind
}

// ResolvedNode is a Node that has already produced an output: either a
// leaf's trivial self-resolution or an executed call's result.
type ResolvedNode interface {
	Node
	OutputDigest() digest.Digest
	Output() VirtualValue
	Build() buildinfo.BuildInfoBrief
}

// LeafResolver is implemented by nodes the engine can resolve without any
// storage access at all, producing their own trivial resolution.
type LeafResolver interface {
	Node
	ResolveLeaf() (ResolvedNode, error)
	RawValue() (any, codec.AnyCodec)
}

// CallView is the erased view of an unresolved call (KindCall) that the
// resolution engine drives through resolution without ever seeing the
// call's concrete output type T.
type CallView interface {
	Node
	FunctionName() string
	FunctionVersion() Node
	CallInputs() []Node
	OutputCodec() codec.AnyCodec
	// Execute invokes the underlying function (already looked up by name,
	// directly held, or resolved via the function registry on inflate)
	// with the resolved version string and the resolved input values in
	// declared order.
	Execute(ctx context.Context, version string, args []any) (any, error)
	// NewResult wraps an executed output back into a typed
	// FunctionCallResultWithProvenance[T] that satisfies ResolvedNode,
	// without the engine needing to know T.
	NewResult(output VirtualValue, build buildinfo.BuildInfoBrief) ResolvedNode
}

// DeflatedCallView is the erased view of a deflated call stub
// (KindCallDeflated).
type DeflatedCallView interface {
	Node
	Digest() digest.Digest
}

// DeflatedResultView is the erased view of a deflated result stub
// (KindResultDeflated).
type DeflatedResultView interface {
	Node
	Digest() digest.Digest
}
