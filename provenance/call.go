package provenance

import (
	"context"
	"fmt"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/d"
	"github.com/astangl/data-provenance/digest"
)

// Fn is the shape of a trackable function: given the resolved version
// string and its resolved inputs in declared order, produce T or fail.
// Inputs arrive as `any` because a call's inputs are heterogeneously
// typed Nodes; the function itself does the type assertions.
type Fn[T any] func(ctx context.Context, version string, inputs []any) (T, error)

// FunctionCallWithProvenance is an unresolved call node carrying its own
// function, version, and inputs directly, rather than looking its
// function up by name until inflate time.
type FunctionCallWithProvenance[T any] struct {
	name    string
	version Node
	inputs  []Node
	codec   codec.Codec[T]
	fn      Fn[T]
}

// NewCall builds an unresolved call node. version is itself a Node (most
// commonly an UnknownProvenance[string] literal) so that a call's version
// can, like any other input, be produced by an upstream call.
func NewCall[T any](name string, version Node, inputs []Node, c codec.Codec[T], fn Fn[T]) FunctionCallWithProvenance[T] {
	return FunctionCallWithProvenance[T]{name: name, version: version, inputs: inputs, codec: c, fn: fn}
}

func (c FunctionCallWithProvenance[T]) OutputClassName() string { return c.codec.SerializableClassName() }
func (FunctionCallWithProvenance[T]) Kind() Kind                 { return KindCall }

func (c FunctionCallWithProvenance[T]) FunctionName() string  { return c.name }
func (c FunctionCallWithProvenance[T]) FunctionVersion() Node { return c.version }
func (c FunctionCallWithProvenance[T]) CallInputs() []Node    { return c.inputs }
func (c FunctionCallWithProvenance[T]) OutputCodec() codec.AnyCodec {
	return codec.Erase(c.codec)
}

// Codec returns the call's own typed codec, for callers (package resolve's
// Deflate) that need to build another generic type parameterized by T
// from a value they already hold typed.
func (c FunctionCallWithProvenance[T]) Codec() codec.Codec[T] { return c.codec }

// Execute invokes the bound function directly. ErrCallNotBound is returned
// for an inflated stub that was never re-hydrated via a registry lookup.
func (c FunctionCallWithProvenance[T]) Execute(ctx context.Context, version string, args []any) (any, error) {
	if c.fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrCallNotBound, c.name)
	}
	return c.fn(ctx, version, args)
}

// NewResult wraps an executed output into a typed
// FunctionCallResultWithProvenance[T]. When output carries both a concrete
// value and a digest, the digest must be what c's codec actually produces
// for that value, checked here rather than trusted from the caller.
func (c FunctionCallWithProvenance[T]) NewResult(output VirtualValue, build buildinfo.BuildInfoBrief) ResolvedNode {
	checkOutputDigest(c.name, c.codec, output)
	return FunctionCallResultWithProvenance[T]{call: c, output: output, build: build}
}

// checkOutputDigest re-serializes v with c and confirms the hash matches
// want, panicking via d.Exp on mismatch. name is only used to annotate the
// panic message.
func checkOutputDigest[T any](name string, c codec.Codec[T], output VirtualValue) {
	v, hasConcrete := output.Concrete()
	if !hasConcrete {
		return
	}
	want, hasDigest := output.Digest()
	if !hasDigest {
		return
	}
	b, err := c.Serialize(v.(T))
	d.Exp.NoError(err, "provenance: serialize output of %q for digest check", name)
	d.Exp.Equal(want, codec.DigestBytes(b), "provenance: output digest mismatch for %q", name)
}

// FunctionCallResultWithProvenance is variant 4 of the sum: a call node
// after execution, carrying its output alongside the call and build
// context that produced it.
type FunctionCallResultWithProvenance[T any] struct {
	call   FunctionCallWithProvenance[T]
	output VirtualValue
	build  buildinfo.BuildInfoBrief
}

func (r FunctionCallResultWithProvenance[T]) OutputClassName() string {
	return r.call.OutputClassName()
}
func (FunctionCallResultWithProvenance[T]) Kind() Kind { return KindResult }

func (r FunctionCallResultWithProvenance[T]) OutputDigest() digest.Digest {
	dg, _ := r.output.Digest()
	return dg
}
func (r FunctionCallResultWithProvenance[T]) Output() VirtualValue { return r.output }
func (r FunctionCallResultWithProvenance[T]) Build() buildinfo.BuildInfoBrief {
	return r.build
}

// NewResolvedCallResult builds a FunctionCallResultWithProvenance[T]
// directly from an already-computed output, for the resolution engine's
// inflate path: a result loaded from storage has no live function to
// re-execute, only the output it already produced. Calling Execute on the
// returned result's underlying call fails with ErrCallNotBound.
func NewResolvedCallResult[T any](c codec.Codec[T], output VirtualValue, build buildinfo.BuildInfoBrief) FunctionCallResultWithProvenance[T] {
	checkOutputDigest("<inflated>", c, output)
	return FunctionCallResultWithProvenance[T]{call: FunctionCallWithProvenance[T]{codec: c}, output: output, build: build}
}

// Call returns the call node this result was produced from.
func (r FunctionCallResultWithProvenance[T]) Call() FunctionCallWithProvenance[T] { return r.call }

// UnderlyingCall exposes the originating call through the erased CallView
// interface, for the resolution engine to re-derive a wire stub for a
// result that was constructed in memory and never persisted.
func (r FunctionCallResultWithProvenance[T]) UnderlyingCall() CallView { return r.call }

// Value type-asserts the result's concrete output back to T, when the
// VirtualValue is still holding it in memory.
func (r FunctionCallResultWithProvenance[T]) Value() (T, bool) {
	v, ok := r.output.Concrete()
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
