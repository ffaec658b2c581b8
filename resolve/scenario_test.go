package resolve_test

// Coverage of the walkthrough scenarios, one test each: a fresh call, a
// memo hit against a second engine over the same tracker, a nested call
// whose inner definition is embedded as a WithoutInputs stub, a version
// bump that must not disturb the prior entry, an unresolved-version call
// that must not persist anything, and a cross-process load of a payload
// this process has no codec for.

import (
	"context"
	"testing"
	"time"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/provenance"
	"github.com/astangl/data-provenance/resolve"
	"github.com/astangl/data-provenance/serial"
	"github.com/astangl/data-provenance/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioFreshCallRecordsMemoEntry(t *testing.T) {
	rt := tracker.NewMemory()
	eng := resolve.New(rt)

	var calls int
	call := addCall(&calls, "1.0", leaf(2), leaf(3))
	result, err := resolve.Call(context.Background(), eng, call)
	require.NoError(t, err)

	sum, ok := result.Value()
	require.True(t, ok)
	assert.Equal(t, 5, sum)
	assert.Equal(t, 1, calls)
	assert.False(t, result.OutputDigest().IsEmpty())

	twoDg, err := codec.DigestObject(intCodec, 2)
	require.NoError(t, err)
	threeDg, err := codec.DigestObject(intCodec, 3)
	require.NoError(t, err)
	inputGroup := serial.InputGroupDigest([]digest.Digest{twoDg, threeDg})

	entry, ok, err := rt.FindResult(context.Background(), tracker.MemoKey{
		FunctionName:    "add",
		FunctionVersion: "1.0",
		InputGroup:      inputGroup,
	})
	require.NoError(t, err)
	require.True(t, ok, "memo index must have an entry for (add, 1.0, digest([digest(2), digest(3)]))")
	assert.Equal(t, result.OutputDigest(), entry.OutputDigest)
}

func TestScenarioMemoHitAcrossFreshEngine(t *testing.T) {
	rt := tracker.NewMemory()
	var calls int

	first, err := resolve.Call(context.Background(), resolve.New(rt), addCall(&calls, "1.0", leaf(2), leaf(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// A second engine over the same tracker stands in for a fresh
	// process attached to the same durable store: the function must
	// not run again.
	second, err := resolve.Call(context.Background(), resolve.New(rt), addCall(&calls, "1.0", leaf(2), leaf(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "resolving against a tracker seeded with the prior result must not re-invoke the function")
	assert.Equal(t, first.OutputDigest(), second.OutputDigest())
}

func TestScenarioNestedCallEmbedsInnerAsStub(t *testing.T) {
	rt := tracker.NewMemory()
	eng := resolve.New(rt)
	var innerCalls, outerCalls int

	inner := addCall(&innerCalls, "1.0", leaf(2), leaf(3))
	innerDeflated, err := resolve.Deflate(context.Background(), eng, inner)
	require.NoError(t, err)

	outer := provenance.NewCall("mul", version("1.0"), []provenance.Node{inner, leaf(4)}, intCodec,
		func(ctx context.Context, version string, inputs []any) (int, error) {
			outerCalls++
			return inputs[0].(int) * inputs[1].(int), nil
		})
	outerDeflated, err := resolve.Deflate(context.Background(), eng, outer)
	require.NoError(t, err)

	stored, ok, err := rt.LoadCallByDigest(context.Background(), outerDeflated.Digest())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored.InputList, 2)

	stub, ok := stored.InputList[0].(*serial.CallWithoutInputs)
	require.True(t, ok, "outer call's first input must be embedded as a WithoutInputs stub, got %T", stored.InputList[0])
	assert.Equal(t, innerDeflated.Digest(), stub.DigestOfEquivalentWithInputs)
	assert.Equal(t, 1, innerCalls)
}

func TestScenarioVersionBumpPreservesPriorEntry(t *testing.T) {
	rt := tracker.NewMemory()
	eng := resolve.New(rt)
	var calls int

	original, err := resolve.Call(context.Background(), eng, addCall(&calls, "1.0", leaf(2), leaf(3)))
	require.NoError(t, err)

	_, err = resolve.Call(context.Background(), eng, addCall(&calls, "1.1", leaf(2), leaf(3)))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	twoDg, err := codec.DigestObject(intCodec, 2)
	require.NoError(t, err)
	threeDg, err := codec.DigestObject(intCodec, 3)
	require.NoError(t, err)
	inputGroup := serial.InputGroupDigest([]digest.Digest{twoDg, threeDg})

	entry, ok, err := rt.FindResult(context.Background(), tracker.MemoKey{
		FunctionName:    "add",
		FunctionVersion: "1.0",
		InputGroup:      inputGroup,
	})
	require.NoError(t, err)
	require.True(t, ok, "the 1.0 entry must survive a later 1.1 resolution")
	assert.Equal(t, original.OutputDigest(), entry.OutputDigest)
}

func TestScenarioUnresolvedVersionDoesNotPersist(t *testing.T) {
	rt := tracker.NewMemory()
	eng := resolve.New(rt)

	callWithUnresolvedVersion := provenance.NewCall("add", leaf(1), []provenance.Node{leaf(2), leaf(3)}, intCodec,
		func(ctx context.Context, version string, inputs []any) (int, error) {
			t.Fatal("function must not execute while its version is unresolved")
			return 0, nil
		})

	_, err := resolve.Call(context.Background(), eng, callWithUnresolvedVersion)
	assert.ErrorIs(t, err, resolve.ErrUnresolvedVersion)

	twoDg, err := codec.DigestObject(intCodec, 2)
	require.NoError(t, err)
	threeDg, err := codec.DigestObject(intCodec, 3)
	require.NoError(t, err)
	inputGroup := serial.InputGroupDigest([]digest.Digest{twoDg, threeDg})

	_, ok, err := rt.FindResult(context.Background(), tracker.MemoKey{FunctionName: "add", InputGroup: inputGroup})
	require.NoError(t, err)
	assert.False(t, ok, "a call that failed to resolve its version must not leave a memo entry behind")
}

// TestScenarioNoCopyDoesNotReexecuteAlreadyResolvedInput exercises the
// no-copy rule directly: a FunctionCallResultWithProvenance built by hand
// (never routed through resolve.Call or resolve.Deflate) is handed to
// another call as an input. Resolving the outer call must persist the
// inner call's record without ever invoking the inner function a second
// time, and a later, independent resolution of the same inner call must
// then hit that persisted record.
func TestScenarioNoCopyDoesNotReexecuteAlreadyResolvedInput(t *testing.T) {
	rt := tracker.NewMemory()
	eng := resolve.New(rt)
	ctx := context.Background()

	var innerCalls int
	inner := addCall(&innerCalls, "1.0", leaf(2), leaf(3))

	out, err := inner.Execute(ctx, "1.0", []any{2, 3})
	require.NoError(t, err)
	outBytes, outDigest, err := codec.SerializeAndDigest(intCodec, out.(int))
	require.NoError(t, err)
	manual := inner.NewResult(provenance.NewFullVirtualValue(out, outDigest, outBytes), buildinfo.BuildInfoBrief{})
	require.Equal(t, 1, innerCalls, "building the manual result must run the function exactly once")

	var outerCalls int
	outer := provenance.NewCall("mul", version("1.0"), []provenance.Node{manual, leaf(4)}, intCodec,
		func(ctx context.Context, version string, inputs []any) (int, error) {
			outerCalls++
			return inputs[0].(int) * inputs[1].(int), nil
		})

	result, err := resolve.Call(ctx, eng, outer)
	require.NoError(t, err)
	product, ok := result.Value()
	require.True(t, ok)
	assert.Equal(t, 20, product)
	assert.Equal(t, 1, outerCalls)
	assert.Equal(t, 1, innerCalls, "resolving an already-resolved input must not re-invoke its function")

	twoDg, err := codec.DigestObject(intCodec, 2)
	require.NoError(t, err)
	threeDg, err := codec.DigestObject(intCodec, 3)
	require.NoError(t, err)
	inputGroup := serial.InputGroupDigest([]digest.Digest{twoDg, threeDg})
	entry, ok, err := rt.FindResult(ctx, tracker.MemoKey{FunctionName: "add", FunctionVersion: "1.0", InputGroup: inputGroup})
	require.NoError(t, err)
	require.True(t, ok, "the manually-resolved inner call must be persisted as a side effect of using it as an input")
	assert.Equal(t, outDigest, entry.OutputDigest)

	again, err := resolve.Call(ctx, resolve.New(rt), addCall(&innerCalls, "1.0", leaf(2), leaf(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, innerCalls, "a later resolution of the same call must hit the record left behind by the manual result")
	assert.Equal(t, outDigest, again.OutputDigest())
}

// TestScenarioLowConcurrencyNestedCallDoesNotDeadlock resolves a call
// whose own sibling inputs are themselves unresolved nested calls, under
// a concurrency limit of 1. A pool shared across recursion depths would
// let the outer call's single goroutine hold the only slot while
// descending into the inner call, whose own sibling resolution then
// blocks forever trying to acquire from that same exhausted pool.
func TestScenarioLowConcurrencyNestedCallDoesNotDeadlock(t *testing.T) {
	rt := tracker.NewMemory()
	eng := resolve.New(rt, resolve.WithConcurrency(1))

	var addCalls, mulCalls int
	inner := addCall(&addCalls, "1.0", leaf(2), leaf(3))
	outer := provenance.NewCall("mul", version("1.0"), []provenance.Node{inner, leaf(4)}, intCodec,
		func(ctx context.Context, version string, inputs []any) (int, error) {
			mulCalls++
			return inputs[0].(int) * inputs[1].(int), nil
		})

	done := make(chan struct{})
	var result provenance.FunctionCallResultWithProvenance[int]
	var err error
	go func() {
		result, err = resolve.Call(context.Background(), eng, outer)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("resolve.Call deadlocked under WithConcurrency(1) on a nested call")
	}

	require.NoError(t, err)
	product, ok := result.Value()
	require.True(t, ok)
	assert.Equal(t, 20, product)
	assert.Equal(t, 1, addCalls)
	assert.Equal(t, 1, mulCalls)
}

func TestScenarioCrossProcessLoadWithoutCodecFailsClassNotFound(t *testing.T) {
	rt := tracker.NewMemory()
	producer := resolve.New(rt)

	call := provenance.NewCall("add", version("1.0"), []provenance.Node{leaf(4), leaf(5)}, intCodec, addFn)
	result, err := resolve.Call(context.Background(), producer, call)
	require.NoError(t, err)

	deflated, err := resolve.DeflateResult(context.Background(), producer, result)
	require.NoError(t, err)

	stored, ok, err := rt.LoadResultByDigest(context.Background(), deflated.Digest())
	require.NoError(t, err)
	require.True(t, ok)

	// A second engine with an empty codec registry stands in for a
	// process that never linked the "int" codec.
	consumer := resolve.New(rt, resolve.WithCodecRegistry(codec.NewRegistry()))
	_, resolveErr := resolve.Resolve(context.Background(), consumer,
		provenance.NewCallDeflated[int](stored.Call.DigestOfEquivalentWithInputs, intCodec))
	assert.ErrorIs(t, resolveErr, codec.ErrClassNotFound)
}
