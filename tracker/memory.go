package tracker

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/serial"
)

// Memory is an in-process ResultTracker backed by five maps guarded by
// one RWMutex, the shape of the teacher's own in-memory chunk sources
// used alongside LevelDBStore in its tests (chunks/read_through_store_test.go).
// It satisfies the exact same interface as the durable LevelDB tracker,
// so tests and single-process callers can swap one for the other freely.
type Memory struct {
	mu       sync.RWMutex
	blobs    map[digest.Digest][]byte
	calls    map[digest.Digest]serial.CallWithInputs
	results  map[digest.Digest]serial.ResultKnownProvenance
	memo     map[MemoKey]MemoEntry
	builds   map[string]buildinfo.BuildInfo
	current  buildinfo.BuildInfoBrief
	hasBuild bool
}

// NewMemory returns an empty in-memory tracker.
func NewMemory() *Memory {
	return &Memory{
		blobs:   make(map[digest.Digest][]byte),
		calls:   make(map[digest.Digest]serial.CallWithInputs),
		results: make(map[digest.Digest]serial.ResultKnownProvenance),
		memo:    make(map[MemoKey]MemoEntry),
		builds:  make(map[string]buildinfo.BuildInfo),
	}
}

func (m *Memory) SaveOutputValue(_ context.Context, b []byte) (digest.Digest, error) {
	dg := digest.FromBytes(b)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[dg]; !ok {
		cp := make([]byte, len(b))
		copy(cp, b)
		m.blobs[dg] = cp
	}
	return dg, nil
}

func (m *Memory) LoadValue(_ context.Context, dg digest.Digest) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[dg]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (m *Memory) SaveCallSerializable(_ context.Context, s serial.CallWithInputs) (digest.Digest, error) {
	dg, err := serial.CallDigest(s)
	if err != nil {
		return digest.Digest{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[dg] = s
	return dg, nil
}

func (m *Memory) LoadCallByDigest(_ context.Context, dg digest.Digest) (serial.CallWithInputs, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.calls[dg]
	return s, ok, nil
}

func (m *Memory) SaveResultSerializable(_ context.Context, r serial.ResultKnownProvenance, key MemoKey) (digest.Digest, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return digest.Digest{}, err
	}
	dg := digest.FromBytes(b)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[dg] = r
	m.memo[key] = MemoEntry{OutputDigest: r.OutputDigest, ResultDigest: dg}
	return dg, nil
}

func (m *Memory) LoadResultByDigest(_ context.Context, dg digest.Digest) (serial.ResultKnownProvenance, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[dg]
	return r, ok, nil
}

func (m *Memory) FindResult(_ context.Context, key MemoKey) (MemoEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.memo[key]
	return e, ok, nil
}

func (m *Memory) SaveBuildInfo(_ context.Context, b buildinfo.BuildInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds[b.BuildID] = b
	return nil
}

func (m *Memory) GetCurrentBuildInfo(_ context.Context) (buildinfo.BuildInfoBrief, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasBuild {
		return buildinfo.BuildInfoBrief{}, ErrNotFound
	}
	return m.current, nil
}

func (m *Memory) SetCurrentBuildInfo(ctx context.Context, b buildinfo.BuildInfo) error {
	if err := m.SaveBuildInfo(ctx, b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = b.Brief()
	m.hasBuild = true
	return nil
}
