package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/provenance"
	"github.com/astangl/data-provenance/registry"
	"github.com/astangl/data-provenance/serial"
	"github.com/astangl/data-provenance/tracker"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Engine drives resolution against one ResultTracker. It is safe for
// concurrent use; the zero value is not usable, construct with New.
type Engine struct {
	rt          tracker.ResultTracker
	codecs      *codec.Registry
	functions   *registry.Registry
	concurrency int
	newBackoff  func() backoff.BackOff
	log         *logrus.Logger
}

// Option customizes an Engine built by New.
type Option func(*Engine)

// WithCodecRegistry supplies the class-name -> codec lookup used to
// deserialize values loaded from storage when their concrete type isn't
// known statically (the inflate path). Defaults to an empty registry, in
// which case resolving an inflated call fails with codec.ErrClassNotFound
// at its first leaf, and an inflated result carries only its output
// digest, not a concrete value.
func WithCodecRegistry(r *codec.Registry) Option { return func(e *Engine) { e.codecs = r } }

// WithFunctionRegistry supplies the name -> function lookup used to
// re-hydrate a call that was deserialized rather than built directly.
// Defaults to registry.Default.
func WithFunctionRegistry(r *registry.Registry) Option { return func(e *Engine) { e.functions = r } }

// WithConcurrency bounds how many sibling inputs a single call resolves
// in parallel. Defaults to 4.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.concurrency = n
	}
}

// WithLogger attaches a logrus.Logger the engine reports cache hits,
// misses, and executions to at Debug level. Defaults to a new
// logrus.Logger at Warn level, which writes warnings to stderr.
func WithLogger(l *logrus.Logger) Option { return func(e *Engine) { e.log = l } }

// New builds an Engine over rt.
func New(rt tracker.ResultTracker, opts ...Option) *Engine {
	e := &Engine{
		rt:          rt,
		codecs:      codec.NewRegistry(),
		functions:   registry.Default,
		concurrency: 4,
		log:         logrus.New(),
	}
	e.log.SetLevel(logrus.WarnLevel)
	for _, opt := range opts {
		opt(e)
	}
	if e.newBackoff == nil {
		e.newBackoff = func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		}
	}
	return e
}

// withRetry retries fn while it fails with tracker.ErrStorageError, and
// returns immediately for any other error.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	op := func() error {
		if err := fn(); err != nil {
			if errors.Is(err, tracker.ErrStorageError) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}
	return backoff.Retry(op, backoff.WithContext(e.newBackoff(), ctx))
}

// resolved bundles what resolving one node produces: the ResolvedNode
// itself, the wire stub that stands in for it wherever it's referenced as
// another call's input, and, for a call's result only, the digest of
// its own serial.ResultKnownProvenance record. It is the zero digest for
// every other node kind.
type resolved struct {
	node     provenance.ResolvedNode
	stub     codec.Tagged
	resultDg digest.Digest
}

// resolve is the untyped recursive core, dispatching on Kind to one of
// the six node handlers below.
func (e *Engine) resolve(ctx context.Context, n provenance.Node) (resolved, error) {
	if n == nil {
		return resolved{}, provenance.ErrNilNode
	}
	switch n.Kind() {
	case provenance.KindUnknownResolved, provenance.KindResult:
		rn, ok := n.(provenance.ResolvedNode)
		if !ok {
			return resolved{}, fmt.Errorf("%w: %s", ErrNodeNotIntrospectable, n.Kind())
		}
		return e.resolveAlreadyResolved(ctx, n, rn)

	case provenance.KindUnknown:
		lr, ok := n.(provenance.LeafResolver)
		if !ok {
			return resolved{}, fmt.Errorf("%w: %s", ErrNodeNotIntrospectable, n.Kind())
		}
		rn, err := lr.ResolveLeaf()
		if err != nil {
			return resolved{}, err
		}
		// Store the leaf's own bytes so a record that references it by
		// digest can be inflated later.
		if b, ok := rn.Output().Bytes(); ok {
			if err := e.withRetry(ctx, func() error {
				_, ferr := e.rt.SaveOutputValue(ctx, b)
				return ferr
			}); err != nil {
				return resolved{}, err
			}
		}
		stub := &serial.CallUnknownProvenance{OutputClassName: n.OutputClassName(), ValueDigest: rn.OutputDigest()}
		return resolved{node: rn, stub: stub}, nil

	case provenance.KindCall:
		cv, ok := n.(provenance.CallView)
		if !ok {
			return resolved{}, fmt.Errorf("%w: %s", ErrNodeNotIntrospectable, n.Kind())
		}
		return e.resolveCall(ctx, cv)

	case provenance.KindCallDeflated:
		dv, ok := n.(provenance.DeflatedCallView)
		if !ok {
			return resolved{}, fmt.Errorf("%w: %s", ErrNodeNotIntrospectable, n.Kind())
		}
		return e.resolveDeflatedCall(ctx, dv)

	case provenance.KindResultDeflated:
		dv, ok := n.(provenance.DeflatedResultView)
		if !ok {
			return resolved{}, fmt.Errorf("%w: %s", ErrNodeNotIntrospectable, n.Kind())
		}
		return e.resolveDeflatedResult(ctx, dv)

	default:
		return resolved{}, fmt.Errorf("resolve: unknown node kind %v", n.Kind())
	}
}

// resolveAlreadyResolved handles a node that already carries an output: a
// leaf's UnknownProvenanceResolved gets a direct value-digest stub; a
// call's FunctionCallResultWithProvenance is persisted (if it hasn't been
// already, e.g. because it was constructed in memory and handed straight
// back in as another call's input) so it can be referenced by digest. In
// both cases the node handed back is n's own resolved node, not a freshly
// reconstructed one, and the underlying function is never re-invoked to
// produce it.
func (e *Engine) resolveAlreadyResolved(ctx context.Context, n provenance.Node, rn provenance.ResolvedNode) (resolved, error) {
	if n.Kind() == provenance.KindUnknownResolved {
		stub := &serial.CallUnknownProvenance{OutputClassName: n.OutputClassName(), ValueDigest: rn.OutputDigest()}
		return resolved{node: rn, stub: stub}, nil
	}
	acc, ok := n.(interface{ UnderlyingCall() provenance.CallView })
	if !ok {
		return resolved{}, fmt.Errorf("%w: %s", ErrNodeNotIntrospectable, n.Kind())
	}
	stub, resultDg, err := e.persistKnownResult(ctx, acc.UnderlyingCall(), rn)
	if err != nil {
		return resolved{}, err
	}
	return resolved{node: rn, stub: stub, resultDg: resultDg}, nil
}

// persistKnownResult records cv's call and result under rn's own,
// already-computed output: rn already carries the value, so only the
// version, sibling inputs, and memo bookkeeping need resolving here. A
// memo hit means the record already exists; a miss saves rn's own output
// bytes and digest as-is, never by calling cv.Execute a second time.
func (e *Engine) persistKnownResult(ctx context.Context, cv provenance.CallView, rn provenance.ResolvedNode) (codec.Tagged, digest.Digest, error) {
	versionRes, versionStr, err := e.resolveVersionString(ctx, cv)
	if err != nil {
		return nil, digest.Digest{}, err
	}

	inputResults, err := e.resolveInputs(ctx, cv)
	if err != nil {
		return nil, digest.Digest{}, err
	}
	inputDigests := make([]digest.Digest, len(inputResults))
	inputStubs := make([]codec.Tagged, len(inputResults))
	for i, r := range inputResults {
		inputDigests[i] = r.node.OutputDigest()
		inputStubs[i] = r.stub
	}
	inputGroupDigest := serial.InputGroupDigest(inputDigests)
	key := tracker.MemoKey{FunctionName: cv.FunctionName(), FunctionVersion: versionStr, InputGroup: inputGroupDigest}

	var entry tracker.MemoEntry
	var hit bool
	if err := e.withRetry(ctx, func() error {
		var ferr error
		entry, hit, ferr = e.rt.FindResult(ctx, key)
		return ferr
	}); err != nil {
		return nil, digest.Digest{}, err
	}
	if hit {
		var resultRec serial.ResultKnownProvenance
		if err := e.withRetry(ctx, func() error {
			var ok bool
			var ferr error
			resultRec, ok, ferr = e.rt.LoadResultByDigest(ctx, entry.ResultDigest)
			if ferr == nil && !ok {
				ferr = tracker.ErrNotFound
			}
			return ferr
		}); err != nil {
			return nil, digest.Digest{}, err
		}
		stub := resultRec.Call
		return &stub, entry.ResultDigest, nil
	}

	outBytes, hasBytes := rn.Output().Bytes()
	if !hasBytes {
		return nil, digest.Digest{}, fmt.Errorf("%w: no serialized bytes available to persist %q", ErrCodecFailure, cv.FunctionName())
	}
	outDigest := rn.OutputDigest()
	if err := codec.CheckConsistencyAny(cv.OutputCodec(), outBytes, outDigest); err != nil {
		return nil, digest.Digest{}, fmt.Errorf("%w: %s", ErrInconsistentDigest, err)
	}
	if err := e.withRetry(ctx, func() error {
		_, ferr := e.rt.SaveOutputValue(ctx, outBytes)
		return ferr
	}); err != nil {
		return nil, digest.Digest{}, err
	}

	rec := serial.CallWithInputs{
		FunctionName:    cv.FunctionName(),
		FunctionVersion: versionRes.stub,
		OutputClassName: cv.OutputClassName(),
		InputList:       inputStubs,
	}
	var callDigest digest.Digest
	if err := e.withRetry(ctx, func() error {
		var ferr error
		callDigest, ferr = e.rt.SaveCallSerializable(ctx, rec)
		return ferr
	}); err != nil {
		return nil, digest.Digest{}, err
	}

	stub := &serial.CallWithoutInputs{
		FunctionName:                 rec.FunctionName,
		FunctionVersion:              rec.FunctionVersion,
		OutputClassName:              rec.OutputClassName,
		DigestOfEquivalentWithInputs: callDigest,
	}

	build := rn.Build()
	resultRec := serial.ResultKnownProvenance{
		Call:             *stub,
		InputGroupDigest: inputGroupDigest,
		OutputDigest:     outDigest,
		CommitID:         build.CommitID,
		BuildID:          build.BuildID,
	}
	var resultDg digest.Digest
	if err := e.withRetry(ctx, func() error {
		var ferr error
		resultDg, ferr = e.rt.SaveResultSerializable(ctx, resultRec, key)
		return ferr
	}); err != nil {
		return nil, digest.Digest{}, err
	}
	return stub, resultDg, nil
}

// resolveVersionString resolves cv's version node down to a concrete
// string, or fails with ErrUnresolvedVersion.
func (e *Engine) resolveVersionString(ctx context.Context, cv provenance.CallView) (resolved, string, error) {
	versionRes, err := e.resolve(ctx, cv.FunctionVersion())
	if err != nil {
		return resolved{}, "", fmt.Errorf("resolve: version for %q: %w", cv.FunctionName(), err)
	}
	concrete, hasConcrete := versionRes.node.Output().Concrete()
	if !hasConcrete {
		return resolved{}, "", fmt.Errorf("%w: function %q", ErrUnresolvedVersion, cv.FunctionName())
	}
	s, ok := concrete.(string)
	if !ok {
		return resolved{}, "", fmt.Errorf("%w: function %q produced %T", ErrUnresolvedVersion, cv.FunctionName(), concrete)
	}
	return versionRes, s, nil
}

// resolveInputs resolves cv's sibling inputs, concurrently up to e's
// configured concurrency. When every input is already a ResolvedNode (a
// leaf's UnknownProvenanceResolved or an executed call's
// FunctionCallResultWithProvenance), no input has a function left to
// execute, so the goroutine machinery below is skipped and the inputs are
// resolved one after another; each bundle wraps the same object the input
// already was. A result input is still persisted through
// persistKnownResult, which resolves its version and inputs and probes
// the memo index.
//
// Each call to resolveInputs runs its own errgroup with its own
// SetLimit(e.concurrency), rather than sharing one pool across recursion
// depths: a shared pool would let a call with concurrency-many nested,
// still-unresolved inputs hold every slot in the parent's g.Wait while its
// own children recurse back into resolveInputs and try to acquire a slot
// from that same exhausted pool, deadlocking. An independent limit per
// call means a parent never blocks on a slot its own child needs.
func (e *Engine) resolveInputs(ctx context.Context, cv provenance.CallView) ([]resolved, error) {
	inputs := cv.CallInputs()
	if allAlreadyResolved(inputs) {
		out := make([]resolved, len(inputs))
		for i, in := range inputs {
			r, err := e.resolve(ctx, in)
			if err != nil {
				return nil, fmt.Errorf("resolve: input %d of %q: %w", i, cv.FunctionName(), err)
			}
			out[i] = r
		}
		return out, nil
	}

	inputResults := make([]resolved, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			r, err := e.resolve(gctx, in)
			if err != nil {
				return fmt.Errorf("resolve: input %d of %q: %w", i, cv.FunctionName(), err)
			}
			inputResults[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return inputResults, nil
}

// allAlreadyResolved reports whether every input already carries a
// resolved output.
func allAlreadyResolved(inputs []provenance.Node) bool {
	for _, in := range inputs {
		if in == nil {
			return false
		}
		switch in.Kind() {
		case provenance.KindUnknownResolved, provenance.KindResult:
		default:
			return false
		}
	}
	return true
}

// resolveCall runs the six steps of resolution for one unresolved call:
// resolve the version, resolve the sibling inputs, compute the
// input-group digest, probe the memo index, execute on a miss, and
// record the call and its result.
func (e *Engine) resolveCall(ctx context.Context, cv provenance.CallView) (resolved, error) {
	// Step 1: resolve the version node.
	versionRes, versionStr, err := e.resolveVersionString(ctx, cv)
	if err != nil {
		return resolved{}, err
	}

	// Step 2: resolve every sibling input.
	inputResults, err := e.resolveInputs(ctx, cv)
	if err != nil {
		return resolved{}, err
	}

	// Step 3: compute the input-group digest that keys memoization.
	inputDigests := make([]digest.Digest, len(inputResults))
	inputStubs := make([]codec.Tagged, len(inputResults))
	args := make([]any, len(inputResults))
	for i, r := range inputResults {
		inputDigests[i] = r.node.OutputDigest()
		inputStubs[i] = r.stub
		v, ok := r.node.Output().Concrete()
		if !ok {
			return resolved{}, fmt.Errorf("%w: input %d of %q has no concrete value in this process", ErrCodecFailure, i, cv.FunctionName())
		}
		args[i] = v
	}
	inputGroupDigest := serial.InputGroupDigest(inputDigests)

	key := tracker.MemoKey{FunctionName: cv.FunctionName(), FunctionVersion: versionStr, InputGroup: inputGroupDigest}

	// Step 4: probe the memoization index.
	var entry tracker.MemoEntry
	var hit bool
	if err := e.withRetry(ctx, func() error {
		var ferr error
		entry, hit, ferr = e.rt.FindResult(ctx, key)
		return ferr
	}); err != nil {
		return resolved{}, err
	}

	if hit {
		e.log.WithFields(logrus.Fields{"function": cv.FunctionName(), "version": versionStr}).Debug("resolve: memo hit")
		return e.loadCachedResult(ctx, cv, entry)
	}
	e.log.WithFields(logrus.Fields{"function": cv.FunctionName(), "version": versionStr}).Debug("resolve: memo miss, executing")

	// Step 5: execute.
	output, err := cv.Execute(ctx, versionStr, args)
	if err != nil {
		return resolved{}, fmt.Errorf("resolve: executing %q: %w", cv.FunctionName(), err)
	}
	outBytes, err := cv.OutputCodec().SerializeAny(output)
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %s", ErrCodecFailure, err)
	}
	outDigest := codec.DigestBytes(outBytes)
	if err := codec.CheckConsistencyAny(cv.OutputCodec(), outBytes, outDigest); err != nil {
		return resolved{}, fmt.Errorf("%w: %s", ErrInconsistentDigest, err)
	}

	if err := e.withRetry(ctx, func() error {
		_, ferr := e.rt.SaveOutputValue(ctx, outBytes)
		return ferr
	}); err != nil {
		return resolved{}, err
	}

	// Step 6: record the call and its result.
	rec := serial.CallWithInputs{
		FunctionName:    cv.FunctionName(),
		FunctionVersion: versionRes.stub,
		OutputClassName: cv.OutputClassName(),
		InputList:       inputStubs,
	}
	var callDigest digest.Digest
	if err := e.withRetry(ctx, func() error {
		var ferr error
		callDigest, ferr = e.rt.SaveCallSerializable(ctx, rec)
		return ferr
	}); err != nil {
		return resolved{}, err
	}

	stub := &serial.CallWithoutInputs{
		FunctionName:                 rec.FunctionName,
		FunctionVersion:              rec.FunctionVersion,
		OutputClassName:              rec.OutputClassName,
		DigestOfEquivalentWithInputs: callDigest,
	}

	build, err := e.currentBuild(ctx)
	if err != nil {
		return resolved{}, err
	}

	resultRec := serial.ResultKnownProvenance{
		Call:             *stub,
		InputGroupDigest: inputGroupDigest,
		OutputDigest:     outDigest,
		CommitID:         build.CommitID,
		BuildID:          build.BuildID,
	}
	var resultDg digest.Digest
	if err := e.withRetry(ctx, func() error {
		var ferr error
		resultDg, ferr = e.rt.SaveResultSerializable(ctx, resultRec, key)
		return ferr
	}); err != nil {
		return resolved{}, err
	}

	vv := provenance.NewFullVirtualValue(output, outDigest, outBytes)
	return resolved{node: cv.NewResult(vv, build), stub: stub, resultDg: resultDg}, nil
}

func (e *Engine) currentBuild(ctx context.Context) (buildinfo.BuildInfoBrief, error) {
	build, err := e.rt.GetCurrentBuildInfo(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			return buildinfo.BuildInfoBrief{}, nil
		}
		return buildinfo.BuildInfoBrief{}, err
	}
	return build, nil
}

// loadCachedResult reconstructs a ResolvedNode from a memo hit, decoding
// the stored output bytes back to a concrete value with cv's own codec so
// the returned node is indistinguishable from one freshly executed.
func (e *Engine) loadCachedResult(ctx context.Context, cv provenance.CallView, entry tracker.MemoEntry) (resolved, error) {
	outBytes, concrete, err := e.loadConsistentValue(ctx, cv.OutputCodec(), entry.OutputDigest)
	if err != nil {
		return resolved{}, err
	}
	var resultRec serial.ResultKnownProvenance
	if err := e.withRetry(ctx, func() error {
		var ok bool
		var ferr error
		resultRec, ok, ferr = e.rt.LoadResultByDigest(ctx, entry.ResultDigest)
		if ferr == nil && !ok {
			ferr = tracker.ErrNotFound
		}
		return ferr
	}); err != nil {
		return resolved{}, err
	}
	vv := provenance.NewFullVirtualValue(concrete, entry.OutputDigest, outBytes)
	build := buildinfo.BuildInfoBrief{CommitID: resultRec.CommitID, BuildID: resultRec.BuildID}
	stub := resultRec.Call
	return resolved{node: cv.NewResult(vv, build), stub: &stub, resultDg: entry.ResultDigest}, nil
}

// loadConsistentValue loads dg and decodes it with c: a single digest
// mismatch is logged as a warning and the load is retried once against
// the tracker, and only a second consecutive mismatch is fatal. A codec
// lookup miss is not a digest mismatch and is returned immediately,
// without retry.
func (e *Engine) loadConsistentValue(ctx context.Context, c codec.AnyCodec, dg digest.Digest) ([]byte, any, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		var b []byte
		if err := e.withRetry(ctx, func() error {
			var ferr error
			b, ferr = e.rt.LoadValue(ctx, dg)
			return ferr
		}); err != nil {
			return nil, nil, err
		}
		if err := codec.CheckConsistencyAny(c, b, dg); err != nil {
			if errors.Is(err, codec.ErrClassNotFound) {
				return nil, nil, err
			}
			lastErr = err
			e.log.WithFields(logrus.Fields{"digest": dg, "attempt": attempt}).Warn("resolve: inconsistent digest on read")
			continue
		}
		v, err := c.DeserializeAny(b)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrCodecFailure, err)
		}
		return b, v, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrInconsistentDigest, lastErr)
}
