package codec

import "errors"

// ErrUnexpectedVariant is returned when a wire record's discriminator
// field names a subclass with no registered factory.
var ErrUnexpectedVariant = errors.New("codec: unexpected variant")

// ErrClassNotFound is returned when a codec lookup for an outputClassName
// fails in the current process. It is fatal on load, harmless on pure
// transport where the value only ever needs to move by digest.
var ErrClassNotFound = errors.New("codec: class not found")
