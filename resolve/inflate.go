package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/provenance"
	"github.com/astangl/data-provenance/serial"
	"github.com/astangl/data-provenance/tracker"
)

// erasedResolvedNode satisfies provenance.ResolvedNode for a value loaded
// from storage whose Go type is known only as a canonical class name, not
// a compile-time type parameter, the shape every cross-process inflate
// produces.
type erasedResolvedNode struct {
	outputClassName string
	kind            provenance.Kind
	vv              provenance.VirtualValue
	build           buildinfo.BuildInfoBrief
}

func (n erasedResolvedNode) OutputClassName() string           { return n.outputClassName }
func (n erasedResolvedNode) Kind() provenance.Kind              { return n.kind }
func (n erasedResolvedNode) OutputDigest() digest.Digest        { dg, _ := n.vv.Digest(); return dg }
func (n erasedResolvedNode) Output() provenance.VirtualValue    { return n.vv }
func (n erasedResolvedNode) Build() buildinfo.BuildInfoBrief    { return n.build }

// erasedDeflatedCall is the untyped counterpart of
// provenance.FunctionCallWithProvenanceDeflated[T], produced while walking
// a loaded record whose nested call reference hasn't been resolved yet and
// whose type parameter isn't known to the engine. A deflated result has no
// equivalent erased type: resolveDeflatedResult below builds an
// erasedResolvedNode directly instead of a separate intermediate node.
type erasedDeflatedCall struct {
	outputClassName string
	dg              digest.Digest
}

func (n erasedDeflatedCall) OutputClassName() string { return n.outputClassName }
func (erasedDeflatedCall) Kind() provenance.Kind     { return provenance.KindCallDeflated }
func (n erasedDeflatedCall) Digest() digest.Digest   { return n.dg }

// erasedError is a Node that fails as soon as the engine tries to resolve
// it, used to propagate an invariant violation discovered while
// converting a wire record back into a Node (e.g. a functionVersion field
// tagged with a subclass no valid call ever writes there) without
// changing the error-free Node-construction signatures.
type erasedError struct{ err error }

func (erasedError) OutputClassName() string     { return "" }
func (erasedError) Kind() provenance.Kind       { return provenance.KindUnknown }
func (e erasedError) ResolveLeaf() (provenance.ResolvedNode, error) { return nil, e.err }
func (e erasedError) RawValue() (any, codec.AnyCodec)               { return nil, nil }

// missingCodec stands in for a codec.AnyCodec that could not be found in
// the engine's codec registry, deferring the failure to first use instead
// of requiring every call site to handle a lookup miss immediately.
type missingCodec struct{ className string }

func (m missingCodec) SerializeAny(any) ([]byte, error) {
	return nil, fmt.Errorf("%w: %q", codec.ErrClassNotFound, m.className)
}
func (m missingCodec) DeserializeAny([]byte) (any, error) {
	return nil, fmt.Errorf("%w: %q", codec.ErrClassNotFound, m.className)
}
func (m missingCodec) ClassTag() string              { return m.className }
func (m missingCodec) SerializableClassName() string { return m.className }

// erasedCall is the untyped counterpart of provenance.FunctionCallWithProvenance[T],
// reconstructed from a loaded serial.CallWithInputs record so the engine
// can resolve it through the same resolveCall path as a live call built
// directly by user code.
type erasedCall struct {
	rec serial.CallWithInputs
	e   *Engine
}

func (c *erasedCall) OutputClassName() string { return c.rec.OutputClassName }
func (*erasedCall) Kind() provenance.Kind     { return provenance.KindCall }

func (c *erasedCall) FunctionName() string { return c.rec.FunctionName }

func (c *erasedCall) FunctionVersion() provenance.Node { return c.e.nodeFromTagged(c.rec.FunctionVersion) }

func (c *erasedCall) CallInputs() []provenance.Node {
	nodes := make([]provenance.Node, len(c.rec.InputList))
	for i, t := range c.rec.InputList {
		nodes[i] = c.e.nodeFromTagged(t)
	}
	return nodes
}

func (c *erasedCall) OutputCodec() codec.AnyCodec {
	if ac, ok := c.e.codecs.Lookup(c.rec.OutputClassName); ok {
		return ac
	}
	return missingCodec{className: c.rec.OutputClassName}
}

func (c *erasedCall) Execute(ctx context.Context, version string, args []any) (any, error) {
	fn, err := c.e.functions.Lookup(c.rec.FunctionName)
	if err != nil {
		return nil, err
	}
	return fn.Call(ctx, version, args)
}

func (c *erasedCall) NewResult(output provenance.VirtualValue, build buildinfo.BuildInfoBrief) provenance.ResolvedNode {
	return erasedResolvedNode{outputClassName: c.rec.OutputClassName, kind: provenance.KindResult, vv: output, build: build}
}

// nodeFromTagged converts a wire stub (always either a CallUnknownProvenance
// leaf reference or a CallWithoutInputs call reference, the only two
// shapes a call's own version/input fields are ever tagged with) into the
// equivalent Node so the engine can resolve it recursively.
func (e *Engine) nodeFromTagged(t codec.Tagged) provenance.Node {
	switch v := t.(type) {
	case *serial.CallUnknownProvenance:
		c, ok := e.codecs.Lookup(v.OutputClassName)
		if !ok {
			c = missingCodec{className: v.OutputClassName}
		}
		return erasedLeaf{outputClassName: v.OutputClassName, dg: v.ValueDigest, codec: c, rt: e.rt}
	case *serial.CallWithoutInputs:
		return erasedDeflatedCall{outputClassName: v.OutputClassName, dg: v.DigestOfEquivalentWithInputs}
	default:
		return erasedError{err: fmt.Errorf("resolve: unexpected stub type %T in call record", t)}
	}
}

// erasedLeaf is the untyped counterpart of provenance.UnknownProvenance[T]:
// a value known only by its digest and canonical class name, resolved by
// loading its bytes and decoding them with whatever codec the engine's
// codec.Registry has for that class name.
type erasedLeaf struct {
	outputClassName string
	dg              digest.Digest
	codec           codec.AnyCodec
	rt              tracker.ResultTracker
}

func (l erasedLeaf) OutputClassName() string { return l.outputClassName }
func (erasedLeaf) Kind() provenance.Kind     { return provenance.KindUnknown }

func (l erasedLeaf) ResolveLeaf() (provenance.ResolvedNode, error) {
	b, err := l.rt.LoadValue(context.Background(), l.dg)
	if err != nil {
		return nil, err
	}
	v, err := l.codec.DeserializeAny(b)
	if err != nil {
		if errors.Is(err, codec.ErrClassNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrCodecFailure, err)
	}
	return erasedResolvedNode{
		outputClassName: l.outputClassName,
		kind:            provenance.KindUnknownResolved,
		vv:              provenance.NewFullVirtualValue(v, l.dg, b),
	}, nil
}

func (l erasedLeaf) RawValue() (any, codec.AnyCodec) {
	rn, err := l.ResolveLeaf()
	if err != nil {
		return nil, l.codec
	}
	v, _ := rn.Output().Concrete()
	return v, l.codec
}

// resolveDeflatedCall inflates a call known only by the digest of its
// serial.CallWithInputs record and resolves it exactly as if it had been
// built directly by user code in this process.
func (e *Engine) resolveDeflatedCall(ctx context.Context, dv provenance.DeflatedCallView) (resolved, error) {
	dg := dv.Digest()
	rec, ok, err := e.rt.LoadCallByDigest(ctx, dg)
	if err != nil {
		return resolved{}, err
	}
	if !ok {
		return resolved{}, fmt.Errorf("resolve: inflate call %s: %w", dg, tracker.ErrNotFound)
	}
	r, err := e.resolveCall(ctx, &erasedCall{rec: rec, e: e})
	if err != nil {
		return resolved{}, err
	}
	r.stub = &serial.CallWithoutInputs{
		FunctionName:                 rec.FunctionName,
		FunctionVersion:              rec.FunctionVersion,
		OutputClassName:              rec.OutputClassName,
		DigestOfEquivalentWithInputs: dg,
	}
	return r, nil
}

// resolveDeflatedResult inflates a result known only by the digest of its
// serial.ResultKnownProvenance record, without re-executing anything.
func (e *Engine) resolveDeflatedResult(ctx context.Context, dv provenance.DeflatedResultView) (resolved, error) {
	dg := dv.Digest()
	rec, ok, err := e.rt.LoadResultByDigest(ctx, dg)
	if err != nil {
		return resolved{}, err
	}
	if !ok {
		return resolved{}, fmt.Errorf("resolve: inflate result %s: %w", dg, tracker.ErrNotFound)
	}

	vv := provenance.NewDigestVirtualValue(rec.OutputDigest)
	if b, lerr := e.rt.LoadValue(ctx, rec.OutputDigest); lerr == nil {
		if c, ok2 := e.codecs.Lookup(dv.OutputClassName()); ok2 {
			if concrete, derr := c.DeserializeAny(b); derr == nil {
				vv = provenance.NewFullVirtualValue(concrete, rec.OutputDigest, b)
			}
		}
	}

	rn := erasedResolvedNode{
		outputClassName: dv.OutputClassName(),
		kind:            provenance.KindResult,
		vv:              vv,
		build:           buildinfo.BuildInfoBrief{CommitID: rec.CommitID, BuildID: rec.BuildID},
	}
	stub := rec.Call
	return resolved{node: rn, stub: &stub, resultDg: dg}, nil
}
