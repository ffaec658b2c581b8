package codec

import "encoding/json"

// JSON is the default Codec for any T that round-trips through
// encoding/json. className is the canonical class name written into wire
// records as outputClassName / classTag.
type JSON[T any] struct {
	className string
}

// NewJSON builds a JSON codec tagged with className.
func NewJSON[T any](className string) JSON[T] {
	return JSON[T]{className: className}
}

func (j JSON[T]) Serialize(v T) ([]byte, error) { return json.Marshal(v) }

func (j JSON[T]) Deserialize(b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

func (j JSON[T]) ClassTag() string              { return j.className }
func (j JSON[T]) SerializableClassName() string { return j.className }

// Bytes is the identity codec for raw byte slices. Callers must still
// digest raw bytes with DigestBytes rather than DigestObject; see
// ErrRawBytesDigest.
type Bytes struct{}

func (Bytes) Serialize(v []byte) ([]byte, error)   { return v, nil }
func (Bytes) Deserialize(b []byte) ([]byte, error) { return b, nil }
func (Bytes) ClassTag() string                     { return "bytes" }
func (Bytes) SerializableClassName() string        { return "bytes" }
