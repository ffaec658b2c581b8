// Package tracker implements the ResultTracker storage façade: the only
// component that touches durable state. It knows five key spaces: value
// blobs, call records, result records, build-info records, and the
// memoization index mapping
// (functionName, functionVersion, inputGroupDigest) -> outputDigest.
//
// Grounded on the teacher's chunks.ChunkStore (dolthub-dolt
// chunks/chunk_store.go): a narrow Get/Put contract over raw bytes keyed
// by digest, extended here with call/result/memo operations exposed
// directly on a ResultTracker rather than layered on top of a
// bytes-only store.
package tracker

import (
	"context"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/serial"
)

// MemoKey identifies one memoization slot.
type MemoKey struct {
	FunctionName    string
	FunctionVersion string
	InputGroup      digest.Digest
}

// MemoEntry is what's stored at a MemoKey: the output digest plus enough
// to fetch the full result record.
type MemoEntry struct {
	OutputDigest digest.Digest
	ResultDigest digest.Digest
}

// ResultTracker is the storage-facing interface every resolution runs
// against. All methods are safe for concurrent use: content-addressed
// writes need no locking, and last-writer-wins is safe for the memo
// index.
type ResultTracker interface {
	// SaveOutputValue writes serialized value bytes under their own
	// digest, idempotently, and returns that digest.
	SaveOutputValue(ctx context.Context, b []byte) (digest.Digest, error)
	// LoadValue reads back bytes previously saved under dg.
	LoadValue(ctx context.Context, dg digest.Digest) ([]byte, error)

	// SaveCallSerializable writes a call's WithInputs record under
	// digest(s) and returns that digest.
	SaveCallSerializable(ctx context.Context, s serial.CallWithInputs) (digest.Digest, error)
	// LoadCallByDigest reads back a previously saved WithInputs record.
	LoadCallByDigest(ctx context.Context, dg digest.Digest) (serial.CallWithInputs, bool, error)

	// SaveResultSerializable writes a result record and then the
	// memoization index entry at key, the entry last. key is supplied explicitly
	// (rather than re-derived from r) because r's embedded
	// FunctionVersion is itself a content-addressed stub; the caller
	// already resolved it to the plain version string that belongs in
	// the memo key.
	SaveResultSerializable(ctx context.Context, r serial.ResultKnownProvenance, key MemoKey) (digest.Digest, error)
	// LoadResultByDigest reads back a previously saved result record.
	LoadResultByDigest(ctx context.Context, dg digest.Digest) (serial.ResultKnownProvenance, bool, error)

	// FindResult looks up the memoization index. A miss is not an error:
	// it returns ok == false.
	FindResult(ctx context.Context, key MemoKey) (MemoEntry, bool, error)

	// SaveBuildInfo records a BuildInfo blob under its BuildID.
	SaveBuildInfo(ctx context.Context, b buildinfo.BuildInfo) error
	// GetCurrentBuildInfo returns the build context threaded into new
	// result nodes by the resolution engine.
	GetCurrentBuildInfo(ctx context.Context) (buildinfo.BuildInfoBrief, error)
	// SetCurrentBuildInfo installs the build context returned by
	// GetCurrentBuildInfo for the remainder of this process's
	// resolutions.
	SetCurrentBuildInfo(ctx context.Context, b buildinfo.BuildInfo) error
}
