package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/astangl/data-provenance/d"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/serial"
)

// key space prefixes.
const (
	dataPrefix    = "data/"
	callPrefix    = "calls/"
	resultPrefix  = "results/"
	memoPrefix    = "memo/"
	buildsPrefix  = "builds/"
	currentBuildK = "current-build"
)

// LevelDB is the durable ResultTracker, grounded on the teacher's
// chunks.LevelDBStore (chunks/leveldb_store.go): one *leveldb.DB holds
// every key space this tracker exposes, guarded the same way the teacher
// guards its root pointer with a plain sync.Mutex around read-modify-write
// sequences. A golang-lru cache sits in front of blob reads.
type LevelDB struct {
	db    *leveldb.DB
	cfg   Config
	mu    sync.Mutex
	cache *lru.Cache[digest.Digest, []byte]
	log   *logrus.Logger
}

// OpenLevelDB opens (creating if absent) the LevelDB database at
// cfg.DataDir.
func OpenLevelDB(cfg Config, log *logrus.Logger) (*LevelDB, error) {
	d.Exp.NotEmpty(cfg.DataDir)
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := leveldb.OpenFile(cfg.DataDir, &opt.Options{
		Filter: filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "tracker: open leveldb at %s", cfg.DataDir)
	}
	cacheSize := cfg.BlobCacheSize
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[digest.Digest, []byte](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "tracker: allocate blob cache")
	}
	return &LevelDB{db: db, cfg: cfg, cache: cache, log: log}, nil
}

// Close releases the underlying database.
func (l *LevelDB) Close() error { return l.db.Close() }

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %s", ErrStorageError, op, err)
}

func (l *LevelDB) get(key string) ([]byte, bool, error) {
	v, err := l.db.Get([]byte(key), nil)
	if err == ldberrors.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr("get "+key, err)
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (l *LevelDB) put(key string, value []byte) error {
	if err := l.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true}); err != nil {
		return storageErr("put "+key, err)
	}
	return nil
}

func (l *LevelDB) compress(b []byte) []byte {
	if !l.cfg.Compress {
		return b
	}
	return snappy.Encode(nil, b)
}

func (l *LevelDB) decompress(b []byte) ([]byte, error) {
	if !l.cfg.Compress {
		return b, nil
	}
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, storageErr("snappy decode", err)
	}
	return out, nil
}

func (l *LevelDB) SaveOutputValue(_ context.Context, b []byte) (digest.Digest, error) {
	dg := digest.FromBytes(b) // digest is always over the uncompressed bytes
	if _, ok := l.cache.Get(dg); ok {
		return dg, nil
	}
	key := dataPrefix + dg.String()
	if _, ok, err := l.get(key); err != nil {
		return digest.Digest{}, err
	} else if ok {
		l.cache.Add(dg, b)
		return dg, nil
	}
	if err := l.put(key, l.compress(b)); err != nil {
		return digest.Digest{}, err
	}
	l.cache.Add(dg, b)
	l.log.WithField("digest", dg).Debug("tracker: saved output value")
	return dg, nil
}

func (l *LevelDB) LoadValue(_ context.Context, dg digest.Digest) ([]byte, error) {
	if v, ok := l.cache.Get(dg); ok {
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, nil
	}
	raw, ok, err := l.get(dataPrefix + dg.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	v, err := l.decompress(raw)
	if err != nil {
		return nil, err
	}
	l.cache.Add(dg, v)
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (l *LevelDB) SaveCallSerializable(_ context.Context, s serial.CallWithInputs) (digest.Digest, error) {
	dg, err := serial.CallDigest(s)
	if err != nil {
		return digest.Digest{}, err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return digest.Digest{}, err
	}
	if err := l.put(callPrefix+dg.String(), l.compress(b)); err != nil {
		return digest.Digest{}, err
	}
	return dg, nil
}

func (l *LevelDB) LoadCallByDigest(_ context.Context, dg digest.Digest) (serial.CallWithInputs, bool, error) {
	raw, ok, err := l.get(callPrefix + dg.String())
	if err != nil || !ok {
		return serial.CallWithInputs{}, ok, err
	}
	b, err := l.decompress(raw)
	if err != nil {
		return serial.CallWithInputs{}, false, err
	}
	var s serial.CallWithInputs
	if err := json.Unmarshal(b, &s); err != nil {
		return serial.CallWithInputs{}, false, fmt.Errorf("tracker: decode call record %s: %w", dg, err)
	}
	return s, true, nil
}

func (l *LevelDB) SaveResultSerializable(_ context.Context, r serial.ResultKnownProvenance, key MemoKey) (digest.Digest, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return digest.Digest{}, err
	}
	dg := digest.FromBytes(b)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.put(resultPrefix+dg.String(), l.compress(b)); err != nil {
		return digest.Digest{}, err
	}
	entry := MemoEntry{OutputDigest: r.OutputDigest, ResultDigest: dg}
	entryBytes, err := json.Marshal(entry)
	if err != nil {
		return digest.Digest{}, err
	}
	// The memo entry is the last write of a save: everything above is
	// content-addressed and harmless to leave half-written, but the memo
	// entry is what makes a call "found" on the next resolve.
	if err := l.put(memoKeyString(key), entryBytes); err != nil {
		return digest.Digest{}, err
	}
	l.log.WithFields(logrus.Fields{
		"function": key.FunctionName,
		"version":  key.FunctionVersion,
	}).Debug("tracker: recorded result")
	return dg, nil
}

func (l *LevelDB) LoadResultByDigest(_ context.Context, dg digest.Digest) (serial.ResultKnownProvenance, bool, error) {
	raw, ok, err := l.get(resultPrefix + dg.String())
	if err != nil || !ok {
		return serial.ResultKnownProvenance{}, ok, err
	}
	b, err := l.decompress(raw)
	if err != nil {
		return serial.ResultKnownProvenance{}, false, err
	}
	var r serial.ResultKnownProvenance
	if err := json.Unmarshal(b, &r); err != nil {
		return serial.ResultKnownProvenance{}, false, fmt.Errorf("tracker: decode result record %s: %w", dg, err)
	}
	return r, true, nil
}

func memoKeyString(k MemoKey) string {
	return fmt.Sprintf("%s%s/%s/%s", memoPrefix, k.FunctionName, k.FunctionVersion, k.InputGroup)
}

func (l *LevelDB) FindResult(_ context.Context, key MemoKey) (MemoEntry, bool, error) {
	raw, ok, err := l.get(memoKeyString(key))
	if err != nil || !ok {
		l.log.WithFields(logrus.Fields{"function": key.FunctionName, "hit": ok}).Debug("tracker: memo probe")
		return MemoEntry{}, ok, err
	}
	var entry MemoEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return MemoEntry{}, false, fmt.Errorf("tracker: decode memo entry: %w", err)
	}
	return entry, true, nil
}

func (l *LevelDB) SaveBuildInfo(_ context.Context, b buildinfo.BuildInfo) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return l.put(buildsPrefix+b.BuildID, raw)
}

func (l *LevelDB) GetCurrentBuildInfo(_ context.Context) (buildinfo.BuildInfoBrief, error) {
	raw, ok, err := l.get(currentBuildK)
	if err != nil {
		return buildinfo.BuildInfoBrief{}, err
	}
	if !ok {
		return buildinfo.BuildInfoBrief{}, ErrNotFound
	}
	var brief buildinfo.BuildInfoBrief
	if err := json.Unmarshal(raw, &brief); err != nil {
		return buildinfo.BuildInfoBrief{}, fmt.Errorf("tracker: decode current build pointer: %w", err)
	}
	return brief, nil
}

func (l *LevelDB) SetCurrentBuildInfo(ctx context.Context, b buildinfo.BuildInfo) error {
	if err := l.SaveBuildInfo(ctx, b); err != nil {
		return err
	}
	raw, err := json.Marshal(b.Brief())
	if err != nil {
		return err
	}
	return l.put(currentBuildK, raw)
}
