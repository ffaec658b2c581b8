package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/serial"
)

// GCReport is the outcome of a reachability walk: every blob digest
// found in the store that no result record leads back to. Grounded on
// the teacher's chunks.GenerationalNBS/datas GC walk (store/datas/database_common.go,
// store/nbs/gc_copier.go): a mark phase over everything reachable from a
// set of roots, compared against everything actually stored. Unlike the
// teacher, this walk never sweeps: provctl only reports, leaving deletion
// to a human or a future tool.
type GCReport struct {
	TotalBlobs     int
	ReachableBlobs int
	OrphanedBlobs  []digest.Digest
}

// IterateBlobDigests calls fn once for every value digest stored under
// the data key space.
func (l *LevelDB) IterateBlobDigests(fn func(digest.Digest) error) error {
	it := l.db.NewIterator(util.BytesPrefix([]byte(dataPrefix)), nil)
	defer it.Release()
	for it.Next() {
		key := string(it.Key())
		dg, err := digest.Parse(key[len(dataPrefix):])
		if err != nil {
			return fmt.Errorf("tracker: gc: malformed blob key %q: %w", key, err)
		}
		if err := fn(dg); err != nil {
			return err
		}
	}
	return it.Error()
}

// IterateResults calls fn once for every result record stored under the
// results key space.
func (l *LevelDB) IterateResults(fn func(digest.Digest, serial.ResultKnownProvenance) error) error {
	it := l.db.NewIterator(util.BytesPrefix([]byte(resultPrefix)), nil)
	defer it.Release()
	for it.Next() {
		key := string(it.Key())
		dg, err := digest.Parse(key[len(resultPrefix):])
		if err != nil {
			return fmt.Errorf("tracker: gc: malformed result key %q: %w", key, err)
		}
		raw, derr := l.decompress(it.Value())
		if derr != nil {
			return derr
		}
		var r serial.ResultKnownProvenance
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("tracker: gc: decode result %s: %w", dg, err)
		}
		if err := fn(dg, r); err != nil {
			return err
		}
	}
	return it.Error()
}

// GCCheck walks every stored result record to its roots: the output
// blob it produced, and every leaf/nested-call reference its own call
// tree carries, and reports which stored blobs no result ever reaches.
// It never touches call or result records themselves: a call record
// unreachable from any result is left for a future mark phase to worry
// about.
func (l *LevelDB) GCCheck() (GCReport, error) {
	ctx := context.Background()
	reachable := map[digest.Digest]struct{}{}
	visitedCalls := map[digest.Digest]struct{}{}

	var walkCall func(dg digest.Digest) error
	walkCall = func(dg digest.Digest) error {
		if _, seen := visitedCalls[dg]; seen {
			return nil
		}
		visitedCalls[dg] = struct{}{}
		call, ok, err := l.LoadCallByDigest(ctx, dg)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := walkTagged(call.FunctionVersion, reachable, walkCall); err != nil {
			return err
		}
		for _, in := range call.InputList {
			if err := walkTagged(in, reachable, walkCall); err != nil {
				return err
			}
		}
		return nil
	}

	err := l.IterateResults(func(_ digest.Digest, r serial.ResultKnownProvenance) error {
		reachable[r.OutputDigest] = struct{}{}
		return walkCall(r.Call.DigestOfEquivalentWithInputs)
	})
	if err != nil {
		return GCReport{}, err
	}

	report := GCReport{}
	err = l.IterateBlobDigests(func(dg digest.Digest) error {
		report.TotalBlobs++
		if _, ok := reachable[dg]; ok {
			report.ReachableBlobs++
		} else {
			report.OrphanedBlobs = append(report.OrphanedBlobs, dg)
		}
		return nil
	})
	if err != nil {
		return GCReport{}, err
	}
	return report, nil
}

// walkTagged marks the blob a leaf reference points at, or recurses into
// a nested call reference, matching the two shapes nodeFromTagged in
// package resolve knows how to invert.
func walkTagged(t codec.Tagged, reachable map[digest.Digest]struct{}, walkCall func(digest.Digest) error) error {
	switch v := t.(type) {
	case *serial.CallUnknownProvenance:
		reachable[v.ValueDigest] = struct{}{}
		return nil
	case *serial.CallWithoutInputs:
		return walkCall(v.DigestOfEquivalentWithInputs)
	default:
		return fmt.Errorf("tracker: gc: unexpected stub type %T", t)
	}
}
