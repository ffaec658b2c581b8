package codec

import (
	"encoding/json"
	"fmt"
)

// Tagged is implemented by every member of a closed sum that rides on an
// AbstractCodec: it knows its own discriminator value. The five
// serializable-mirror record types (package serial) all implement this.
type Tagged interface {
	SubclassName() string
}

// SubclassFactory constructs a fresh, zero-valued instance of one member
// of a Tagged sum, ready to be unmarshaled into.
type SubclassFactory func() Tagged

// SubclassRegistry maps a discriminator value to the factory for that
// sum member.
type SubclassRegistry struct {
	factories map[string]SubclassFactory
}

// NewSubclassRegistry builds a registry from name->factory pairs.
func NewSubclassRegistry(factories map[string]SubclassFactory) *SubclassRegistry {
	cp := make(map[string]SubclassFactory, len(factories))
	for k, v := range factories {
		cp[k] = v
	}
	return &SubclassRegistry{factories: cp}
}

// New instantiates the member registered under name.
func (r *SubclassRegistry) New(name string) (Tagged, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// AbstractCodec encodes a closed sum of Tagged values under one JSON
// shape: the member's own fields, plus a discriminator field (Key,
// defaulting to "_subclass") carrying its SubclassName. Decoding reads
// the discriminator first, then unmarshals into a fresh instance from the
// SubclassRegistry.
//
// Generalizes the teacher's byte-tag-prefix dispatch (enc/codec.go's
// jsonTag/blobTag) to a JSON field.
type AbstractCodec struct {
	Key      string
	Registry *SubclassRegistry
}

const defaultSubclassKey = "_subclass"

// NewAbstractCodec builds an AbstractCodec tagging at the default key.
func NewAbstractCodec(reg *SubclassRegistry) AbstractCodec {
	return AbstractCodec{Key: defaultSubclassKey, Registry: reg}
}

// Marshal encodes v with the discriminator field injected.
func (c AbstractCodec) Marshal(v Tagged) ([]byte, error) {
	key := c.key()
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("codec: abstract codec requires a JSON object, got %T: %w", v, err)
	}
	tag, err := json.Marshal(v.SubclassName())
	if err != nil {
		return nil, err
	}
	m[key] = tag
	return json.Marshal(m)
}

// Unmarshal reads the discriminator field and decodes into the matching
// registered type. ErrUnexpectedVariant is returned for a discriminator
// with no registered factory.
func (c AbstractCodec) Unmarshal(b []byte) (Tagged, error) {
	key := c.key()
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(b, &probe); err != nil {
		return nil, err
	}
	rawTag, ok := probe[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing discriminator field %q", ErrUnexpectedVariant, key)
	}
	var tag string
	if err := json.Unmarshal(rawTag, &tag); err != nil {
		return nil, err
	}
	v, ok := c.Registry.New(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedVariant, tag)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c AbstractCodec) key() string {
	if c.Key == "" {
		return defaultSubclassKey
	}
	return c.Key
}
