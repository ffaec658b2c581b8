package tracker

import "errors"

// ErrStorageError wraps a failure from the underlying store. It's
// retriable at the tracker layer (see resolve.Engine's use of
// cenkalti/backoff) and fatal above it once retries are exhausted.
var ErrStorageError = errors.New("tracker: storage error")

// ErrNotFound is returned by LoadValue and GetCurrentBuildInfo when the
// value or the current-build pointer is simply absent (as opposed to a
// storage failure). The *ByDigest loaders report absence with ok == false
// instead.
var ErrNotFound = errors.New("tracker: not found")
