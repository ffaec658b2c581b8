// Package resolve implements the resolution engine: the untyped algorithm
// that walks a provenance.Node graph, consulting and updating a
// tracker.ResultTracker, and the typed entry points (resolve.Call,
// resolve.Deflate, resolve.Inflate) consumer code actually calls. It is
// the one package allowed to import provenance, serial, and tracker
// together: every other package sees only one layer of the stack,
// matching how the teacher keeps datas (which drives both types and
// chunks) as the one package that knows about both.
package resolve

import "errors"

// ErrUnresolvedVersion is returned when a call's version node resolves to
// something other than a concrete string.
var ErrUnresolvedVersion = errors.New("resolve: version node did not resolve to a string")

// ErrCodecFailure wraps a serialize/deserialize failure encountered while
// walking the graph.
var ErrCodecFailure = errors.New("resolve: codec failure")

// ErrInconsistentDigest is returned when CheckConsistency fails: at once
// for bytes about to be written, and on a cached read only when the load,
// retried once after a logged warning, mismatches a second time.
var ErrInconsistentDigest = errors.New("resolve: inconsistent digest")

// ErrNodeNotIntrospectable is an internal-invariant error: a Node claimed
// a Kind whose corresponding capability interface (LeafResolver, CallView,
// ...) it doesn't actually implement.
var ErrNodeNotIntrospectable = errors.New("resolve: node does not implement the interface its Kind requires")
