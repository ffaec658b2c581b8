package resolve

import (
	"context"
	"fmt"

	"github.com/astangl/data-provenance/provenance"
	"github.com/astangl/data-provenance/serial"
)

// Resolve drives an arbitrary Node through the untyped engine, for
// callers that don't have (or don't need) a compile-time output type:
// graph inspection tools, and the deflated-node path.
func Resolve(ctx context.Context, eng *Engine, n provenance.Node) (provenance.ResolvedNode, error) {
	r, err := eng.resolve(ctx, n)
	if err != nil {
		return nil, err
	}
	return r.node, nil
}

// Call is the typed entry point consumer code uses to run a call and get
// back its memoized (or freshly computed) result.
func Call[T any](ctx context.Context, eng *Engine, call provenance.FunctionCallWithProvenance[T]) (provenance.FunctionCallResultWithProvenance[T], error) {
	var zero provenance.FunctionCallResultWithProvenance[T]
	r, err := eng.resolve(ctx, call)
	if err != nil {
		return zero, err
	}
	typed, ok := r.node.(provenance.FunctionCallResultWithProvenance[T])
	if !ok {
		return zero, fmt.Errorf("resolve: internal: resolved node has type %T, want %T", r.node, zero)
	}
	return typed, nil
}

// Deflate resolves call and reduces it to a
// FunctionCallWithProvenanceDeflated[T] pointing at the digest of its
// saved serial.CallWithInputs record, for handing off to another process
// (or storing) without carrying the live function closure along.
func Deflate[T any](ctx context.Context, eng *Engine, call provenance.FunctionCallWithProvenance[T]) (provenance.FunctionCallWithProvenanceDeflated[T], error) {
	var zero provenance.FunctionCallWithProvenanceDeflated[T]
	r, err := eng.resolve(ctx, call)
	if err != nil {
		return zero, err
	}
	stub, ok := r.stub.(*serial.CallWithoutInputs)
	if !ok {
		return zero, fmt.Errorf("resolve: internal: call stub has type %T, want *serial.CallWithoutInputs", r.stub)
	}
	return provenance.NewCallDeflated(stub.DigestOfEquivalentWithInputs, call.Codec()), nil
}

// DeflateResult persists result's underlying call under result's own,
// already-computed output (a no-op if it's already been persisted) and
// reduces it to a FunctionCallResultWithProvenanceDeflated[T] pointing at
// the digest of its saved serial.ResultKnownProvenance record. It never
// re-executes result's function, even on a memo miss: result already
// carries the output that a miss would otherwise recompute.
func DeflateResult[T any](ctx context.Context, eng *Engine, result provenance.FunctionCallResultWithProvenance[T]) (provenance.FunctionCallResultWithProvenanceDeflated[T], error) {
	var zero provenance.FunctionCallResultWithProvenanceDeflated[T]
	_, resultDg, err := eng.persistKnownResult(ctx, result.UnderlyingCall(), result)
	if err != nil {
		return zero, err
	}
	if resultDg.IsEmpty() {
		return zero, fmt.Errorf("resolve: internal: resolved call produced no result digest")
	}
	return provenance.NewResultDeflated(resultDg, result.Call().Codec()), nil
}

// Inflate loads a call known only by the digest of its saved
// serial.CallWithInputs record and resolves it fully, re-hydrating its
// function through eng's function registry and decoding the output with
// deflated's own codec. A memo hit means the function never actually
// runs in this process; a miss re-executes it via the registry.
func Inflate[T any](ctx context.Context, eng *Engine, deflated provenance.FunctionCallWithProvenanceDeflated[T]) (provenance.FunctionCallResultWithProvenance[T], error) {
	var zero provenance.FunctionCallResultWithProvenance[T]
	r, err := eng.resolveDeflatedCall(ctx, deflated)
	if err != nil {
		return zero, err
	}
	if r.node.OutputClassName() != deflated.OutputClassName() {
		return zero, fmt.Errorf("%w: call resolved to %q, deflated reference expects %q",
			provenance.ErrOutputClassMismatch, r.node.OutputClassName(), deflated.OutputClassName())
	}
	if typed, ok := r.node.(provenance.FunctionCallResultWithProvenance[T]); ok {
		return typed, nil
	}
	b, ok := r.node.Output().Bytes()
	if !ok {
		return zero, fmt.Errorf("resolve: inflate: no serialized bytes available for %q", deflated.OutputClassName())
	}
	typedValue, err := deflated.Codec().Deserialize(b)
	if err != nil {
		return zero, fmt.Errorf("%w: %s", ErrCodecFailure, err)
	}
	vv := provenance.NewFullVirtualValue(typedValue, r.node.OutputDigest(), b)
	return provenance.NewResolvedCallResult(deflated.Codec(), vv, r.node.Build()), nil
}

// InflateResult loads a result known only by the digest of its saved
// serial.ResultKnownProvenance record and reconstructs it as a typed
// FunctionCallResultWithProvenance[T], decoding the stored output bytes
// with deflated's own codec. It never re-executes anything: a
// DeflatedResultView already points at a computed output.
func InflateResult[T any](ctx context.Context, eng *Engine, deflated provenance.FunctionCallResultWithProvenanceDeflated[T]) (provenance.FunctionCallResultWithProvenance[T], error) {
	var zero provenance.FunctionCallResultWithProvenance[T]
	r, err := eng.resolveDeflatedResult(ctx, deflated)
	if err != nil {
		return zero, err
	}
	if r.node.OutputClassName() != deflated.OutputClassName() {
		return zero, fmt.Errorf("%w: result resolved to %q, deflated reference expects %q",
			provenance.ErrOutputClassMismatch, r.node.OutputClassName(), deflated.OutputClassName())
	}
	if typed, ok := r.node.(provenance.FunctionCallResultWithProvenance[T]); ok {
		return typed, nil
	}
	b, ok := r.node.Output().Bytes()
	if !ok {
		return zero, fmt.Errorf("resolve: inflate result: no serialized bytes available for %q", deflated.OutputClassName())
	}
	typedValue, err := deflated.Codec().Deserialize(b)
	if err != nil {
		return zero, fmt.Errorf("%w: %s", ErrCodecFailure, err)
	}
	vv := provenance.NewFullVirtualValue(typedValue, r.node.OutputDigest(), b)
	return provenance.NewResolvedCallResult(deflated.Codec(), vv, r.node.Build()), nil
}
