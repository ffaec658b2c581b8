package provenance

import "errors"

// ErrOutputClassMismatch is returned when a node inflated from a digest
// reports a different output class than the typed deflated reference (and
// its codec) it was inflated through.
var ErrOutputClassMismatch = errors.New("provenance: output class does not match codec's SerializableClassName")

// ErrNilNode is returned wherever a Node argument is required and nil was
// supplied: a version node or an input node.
var ErrNilNode = errors.New("provenance: nil node")

// ErrCallNotBound is returned by FunctionCallWithProvenance.Execute for a
// call whose function was never set: an inflated stub the resolution
// engine did not (or could not) re-hydrate via the function registry.
var ErrCallNotBound = errors.New("provenance: call has no function bound")
