package resolve_test

import (
	"context"
	"testing"

	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/provenance"
	"github.com/astangl/data-provenance/registry"
	"github.com/astangl/data-provenance/resolve"
	"github.com/astangl/data-provenance/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var intCodec = codec.NewJSON[int]("int")
var stringCodec = codec.NewJSON[string]("string")

func version(v string) provenance.Node {
	return provenance.NewUnknownProvenance(v, stringCodec)
}

func leaf(n int) provenance.Node {
	return provenance.NewUnknownProvenance(n, intCodec)
}

func addCall(counter *int, ver string, a, b provenance.Node) provenance.FunctionCallWithProvenance[int] {
	return provenance.NewCall("add", version(ver), []provenance.Node{a, b}, intCodec,
		func(ctx context.Context, version string, inputs []any) (int, error) {
			*counter++
			return inputs[0].(int) + inputs[1].(int), nil
		})
}

func TestCallExecutesAndMemoizes(t *testing.T) {
	eng := resolve.New(tracker.NewMemory())
	var calls int

	call := addCall(&calls, "1.0", leaf(2), leaf(3))
	result, err := resolve.Call(context.Background(), eng, call)
	require.NoError(t, err)
	sum, ok := result.Value()
	require.True(t, ok)
	assert.Equal(t, 5, sum)
	assert.Equal(t, 1, calls)

	again, err := resolve.Call(context.Background(), eng, addCall(&calls, "1.0", leaf(2), leaf(3)))
	require.NoError(t, err)
	sum2, ok := again.Value()
	require.True(t, ok)
	assert.Equal(t, 5, sum2)
	assert.Equal(t, 1, calls, "second identical call should hit the memo index, not re-execute")
}

func TestVersionChangeInvalidatesMemo(t *testing.T) {
	eng := resolve.New(tracker.NewMemory())
	var calls int

	_, err := resolve.Call(context.Background(), eng, addCall(&calls, "1.0", leaf(2), leaf(3)))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = resolve.Call(context.Background(), eng, addCall(&calls, "2.0", leaf(2), leaf(3)))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "a different function version must miss the memo index")
}

func TestDifferentInputsMiss(t *testing.T) {
	eng := resolve.New(tracker.NewMemory())
	var calls int

	_, err := resolve.Call(context.Background(), eng, addCall(&calls, "1.0", leaf(2), leaf(3)))
	require.NoError(t, err)
	_, err = resolve.Call(context.Background(), eng, addCall(&calls, "1.0", leaf(3), leaf(2)))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "permuting inputs changes the input-group digest")
}

func TestNestedCallResolvesInnerFirst(t *testing.T) {
	eng := resolve.New(tracker.NewMemory())
	var innerCalls, outerCalls int

	inner := addCall(&innerCalls, "1.0", leaf(2), leaf(3))
	outerFn := provenance.NewCall("add", version("1.0"), []provenance.Node{inner, leaf(10)}, intCodec,
		func(ctx context.Context, version string, inputs []any) (int, error) {
			outerCalls++
			return inputs[0].(int) + inputs[1].(int), nil
		})

	result, err := resolve.Call(context.Background(), eng, outerFn)
	require.NoError(t, err)
	sum, ok := result.Value()
	require.True(t, ok)
	assert.Equal(t, 15, sum)
	assert.Equal(t, 1, innerCalls)
	assert.Equal(t, 1, outerCalls)
}

func TestUnresolvedVersionFails(t *testing.T) {
	eng := resolve.New(tracker.NewMemory())
	var calls int
	// A version node whose resolved value isn't a string: an int leaf
	// bound to a call declared over the string-shaped version slot.
	call := provenance.NewCall("add", leaf(7), []provenance.Node{leaf(2), leaf(3)}, intCodec,
		func(ctx context.Context, version string, inputs []any) (int, error) {
			calls++
			return inputs[0].(int) + inputs[1].(int), nil
		})

	_, err := resolve.Call(context.Background(), eng, call)
	assert.ErrorIs(t, err, resolve.ErrUnresolvedVersion)
	assert.Equal(t, 0, calls)
}

func TestDeflateInflateRoundTrip(t *testing.T) {
	rt := tracker.NewMemory()
	codecs := codec.NewRegistry()
	codecs.Register("int", codec.Erase(intCodec))
	codecs.Register("string", codec.Erase(stringCodec))

	functions := registryWithAdd()
	eng := resolve.New(rt, resolve.WithCodecRegistry(codecs), resolve.WithFunctionRegistry(functions))

	call := provenance.NewCall("add", version("1.0"), []provenance.Node{leaf(4), leaf(5)}, intCodec,
		addFn)

	deflated, err := resolve.Deflate(context.Background(), eng, call)
	require.NoError(t, err)
	assert.False(t, deflated.Digest().IsEmpty())

	inflated, err := resolve.Inflate(context.Background(), eng, deflated)
	require.NoError(t, err)
	sum, ok := inflated.Value()
	require.True(t, ok)
	assert.Equal(t, 9, sum)
}

func TestInflateRejectsMismatchedOutputClass(t *testing.T) {
	rt := tracker.NewMemory()
	codecs := codec.NewRegistry()
	codecs.Register("int", codec.Erase(intCodec))
	codecs.Register("string", codec.Erase(stringCodec))
	eng := resolve.New(rt, resolve.WithCodecRegistry(codecs), resolve.WithFunctionRegistry(registryWithAdd()))

	call := provenance.NewCall("add", version("1.0"), []provenance.Node{leaf(4), leaf(5)}, intCodec, addFn)
	deflated, err := resolve.Deflate(context.Background(), eng, call)
	require.NoError(t, err)

	wrongClass := provenance.NewCallDeflated[string](deflated.Digest(), stringCodec)
	_, err = resolve.Inflate(context.Background(), eng, wrongClass)
	assert.ErrorIs(t, err, provenance.ErrOutputClassMismatch)
}

func addFn(ctx context.Context, version string, inputs []any) (int, error) {
	return inputs[0].(int) + inputs[1].(int), nil
}

func registryWithAdd() *registry.Registry {
	r := registry.New()
	r.Register(registry.Func("add", "int", func(ctx context.Context, version string, inputs []any) (any, error) {
		return addFn(ctx, version, inputs)
	}))
	return r
}

func TestDeflateResultReturnsRecordDigest(t *testing.T) {
	rt := tracker.NewMemory()
	eng := resolve.New(rt)

	call := provenance.NewCall("add", version("1.0"), []provenance.Node{leaf(4), leaf(5)}, intCodec, addFn)
	result, err := resolve.Call(context.Background(), eng, call)
	require.NoError(t, err)

	deflated, err := resolve.DeflateResult(context.Background(), eng, result)
	require.NoError(t, err)
	assert.False(t, deflated.Digest().IsEmpty())
}

func TestInflateResultRoundTrip(t *testing.T) {
	rt := tracker.NewMemory()
	codecs := codec.NewRegistry()
	codecs.Register("int", codec.Erase(intCodec))
	codecs.Register("string", codec.Erase(stringCodec))
	eng := resolve.New(rt, resolve.WithCodecRegistry(codecs))

	call := provenance.NewCall("add", version("1.0"), []provenance.Node{leaf(4), leaf(5)}, intCodec, addFn)
	result, err := resolve.Call(context.Background(), eng, call)
	require.NoError(t, err)

	deflated, err := resolve.DeflateResult(context.Background(), eng, result)
	require.NoError(t, err)

	inflated, err := resolve.InflateResult(context.Background(), eng, deflated)
	require.NoError(t, err)
	sum, ok := inflated.Value()
	require.True(t, ok)
	assert.Equal(t, 9, sum)
}
