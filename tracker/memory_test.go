package tracker_test

import (
	"context"
	"testing"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/serial"
	"github.com/astangl/data-provenance/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaveLoadValue(t *testing.T) {
	ctx := context.Background()
	m := tracker.NewMemory()

	dg, err := m.SaveOutputValue(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, digest.FromBytes([]byte("hello")), dg)

	got, err := m.LoadValue(ctx, dg)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestMemoryLoadValueMissing(t *testing.T) {
	m := tracker.NewMemory()
	_, err := m.LoadValue(context.Background(), digest.FromBytes([]byte("nope")))
	assert.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestMemoryFindResultMissIsNotError(t *testing.T) {
	m := tracker.NewMemory()
	_, ok, err := m.FindResult(context.Background(), tracker.MemoKey{FunctionName: "add"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySaveResultUpdatesMemoIndex(t *testing.T) {
	ctx := context.Background()
	m := tracker.NewMemory()

	key := tracker.MemoKey{
		FunctionName:    "add",
		FunctionVersion: "1.0",
		InputGroup:      digest.FromBytes([]byte("2,3")),
	}
	rec := serial.ResultKnownProvenance{
		Call: serial.CallWithoutInputs{
			FunctionName:    "add",
			FunctionVersion: &serial.CallUnknownProvenance{OutputClassName: "string", ValueDigest: digest.FromBytes([]byte("1.0"))},
			OutputClassName: "int",
		},
		InputGroupDigest: key.InputGroup,
		OutputDigest:     digest.FromBytes([]byte("5")),
		CommitID:         "deadbeef",
		BuildID:          "build-1",
	}

	resultDigest, err := m.SaveResultSerializable(ctx, rec, key)
	require.NoError(t, err)

	entry, ok, err := m.FindResult(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.OutputDigest, entry.OutputDigest)
	assert.Equal(t, resultDigest, entry.ResultDigest)

	loaded, ok, err := m.LoadResultByDigest(ctx, resultDigest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.OutputDigest, loaded.OutputDigest)
}

func TestMemoryCurrentBuildInfo(t *testing.T) {
	ctx := context.Background()
	m := tracker.NewMemory()

	_, err := m.GetCurrentBuildInfo(ctx)
	assert.ErrorIs(t, err, tracker.ErrNotFound)

	b := buildinfo.New("commit-1", buildinfo.WithBuildID("build-1"))
	require.NoError(t, m.SetCurrentBuildInfo(ctx, b))

	got, err := m.GetCurrentBuildInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.Brief(), got)
}
