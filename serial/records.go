// Package serial implements the serializable mirror: a closed sum of
// plain, JSON-roundtrippable records that refer to other records only by
// digest.Digest. Every record implements codec.Tagged so the whole sum
// rides on one codec.AbstractCodec, tagged at "_subclass", the way the
// teacher's enc package dispatches on a leading byte tag rather than a Go
// type switch at every call site.
//
// This package has no dependency on the graph algebra (package
// provenance): it only knows how to hold and round-trip records. Walking
// a live call graph into these records, and back, is the resolution
// engine's job (package resolve); the graph algebra and the serializable
// mirror stay separate components.
package serial

import (
	"encoding/json"

	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
)

// Subclass names, exactly as spelled in the wire schema.
const (
	SubclassCallUnknownProvenance   = "FunctionCallWithUnknownProvenanceSerializable"
	SubclassCallWithInputs          = "FunctionCallWithKnownProvenanceSerializableWithInputs"
	SubclassCallWithoutInputs       = "FunctionCallWithKnownProvenanceSerializableWithoutInputs"
	SubclassResultKnownProvenance   = "FunctionCallResultWithKnownProvenanceSerializable"
	SubclassResultUnknownProvenance = "FunctionCallResultWithUnknownProvenanceSerializable"
)

// CallUnknownProvenance is the leaf form: a raw value known only by its
// output type and digest.
type CallUnknownProvenance struct {
	OutputClassName string        `json:"outputClassName"`
	ValueDigest     digest.Digest `json:"valueDigest"`
}

func (CallUnknownProvenance) SubclassName() string { return SubclassCallUnknownProvenance }

// CallWithoutInputs ("unexpanded") is embedded wherever one call's
// definition appears inside another's input list: only the digest of the
// full WithInputs record is carried, keeping records small.
type CallWithoutInputs struct {
	FunctionName                 string        `json:"functionName"`
	FunctionVersion              codec.Tagged  `json:"functionVersion"`
	OutputClassName              string        `json:"outputClassName"`
	DigestOfEquivalentWithInputs digest.Digest `json:"digestOfEquivalentWithInputs"`
}

func (CallWithoutInputs) SubclassName() string { return SubclassCallWithoutInputs }

type callWithoutInputsWire struct {
	FunctionName                 string          `json:"functionName"`
	FunctionVersion              json.RawMessage `json:"functionVersion"`
	OutputClassName              string          `json:"outputClassName"`
	DigestOfEquivalentWithInputs digest.Digest   `json:"digestOfEquivalentWithInputs"`
}

func (c CallWithoutInputs) MarshalJSON() ([]byte, error) {
	fv, err := ValueCodec.Marshal(c.FunctionVersion)
	if err != nil {
		return nil, err
	}
	return json.Marshal(callWithoutInputsWire{
		FunctionName:                 c.FunctionName,
		FunctionVersion:              fv,
		OutputClassName:              c.OutputClassName,
		DigestOfEquivalentWithInputs: c.DigestOfEquivalentWithInputs,
	})
}

func (c *CallWithoutInputs) UnmarshalJSON(b []byte) error {
	var wire callWithoutInputsWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	fv, err := ValueCodec.Unmarshal(wire.FunctionVersion)
	if err != nil {
		return err
	}
	c.FunctionName = wire.FunctionName
	c.FunctionVersion = fv
	c.OutputClassName = wire.OutputClassName
	c.DigestOfEquivalentWithInputs = wire.DigestOfEquivalentWithInputs
	return nil
}

// CallWithInputs is the fat form of a call record: every input, in
// declared order, spelled out in full (each itself a member of this sum).
type CallWithInputs struct {
	FunctionName    string
	FunctionVersion codec.Tagged
	OutputClassName string
	InputList       []codec.Tagged
}

func (CallWithInputs) SubclassName() string { return SubclassCallWithInputs }

type callWithInputsWire struct {
	FunctionName    string            `json:"functionName"`
	FunctionVersion json.RawMessage   `json:"functionVersion"`
	OutputClassName string            `json:"outputClassName"`
	InputList       []json.RawMessage `json:"inputList"`
}

func (c CallWithInputs) MarshalJSON() ([]byte, error) {
	fv, err := ValueCodec.Marshal(c.FunctionVersion)
	if err != nil {
		return nil, err
	}
	inputs := make([]json.RawMessage, len(c.InputList))
	for i, v := range c.InputList {
		raw, err := ValueCodec.Marshal(v)
		if err != nil {
			return nil, err
		}
		inputs[i] = raw
	}
	return json.Marshal(callWithInputsWire{
		FunctionName:    c.FunctionName,
		FunctionVersion: fv,
		OutputClassName: c.OutputClassName,
		InputList:       inputs,
	})
}

func (c *CallWithInputs) UnmarshalJSON(b []byte) error {
	var wire callWithInputsWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	fv, err := ValueCodec.Unmarshal(wire.FunctionVersion)
	if err != nil {
		return err
	}
	inputs := make([]codec.Tagged, len(wire.InputList))
	for i, raw := range wire.InputList {
		v, err := ValueCodec.Unmarshal(raw)
		if err != nil {
			return err
		}
		inputs[i] = v
	}
	c.FunctionName = wire.FunctionName
	c.FunctionVersion = fv
	c.OutputClassName = wire.OutputClassName
	c.InputList = inputs
	return nil
}

// ResultKnownProvenance is the executed-call result record: the
// originating call (embedded as its WithoutInputs stub), the input-group
// digest that was the memo key, the produced output's digest, and the
// build under which it ran.
type ResultKnownProvenance struct {
	Call             CallWithoutInputs `json:"call"`
	InputGroupDigest digest.Digest     `json:"inputGroupDigest"`
	OutputDigest     digest.Digest     `json:"outputDigest"`
	CommitID         string            `json:"commitId"`
	BuildID          string            `json:"buildId"`
}

func (ResultKnownProvenance) SubclassName() string { return SubclassResultKnownProvenance }

// ResultUnknownProvenance is the result form of a leaf: its
// InputGroupDigest is always the digest of the empty digest list (see
// InputGroupDigest(nil)), so it isn't stored explicitly.
type ResultUnknownProvenance struct {
	Call         CallUnknownProvenance `json:"call"`
	OutputDigest digest.Digest         `json:"outputDigest"`
	CommitID     string                `json:"commitId"`
	BuildID      string                `json:"buildId"`
}

func (ResultUnknownProvenance) SubclassName() string { return SubclassResultUnknownProvenance }

// ValueCodec is the single AbstractCodec every member of the sum above
// rides on, keyed by SubclassName at the "_subclass" field.
var ValueCodec = codec.NewAbstractCodec(codec.NewSubclassRegistry(map[string]codec.SubclassFactory{
	SubclassCallUnknownProvenance:   func() codec.Tagged { return &CallUnknownProvenance{} },
	SubclassCallWithInputs:          func() codec.Tagged { return &CallWithInputs{} },
	SubclassCallWithoutInputs:       func() codec.Tagged { return &CallWithoutInputs{} },
	SubclassResultKnownProvenance:   func() codec.Tagged { return &ResultKnownProvenance{} },
	SubclassResultUnknownProvenance: func() codec.Tagged { return &ResultUnknownProvenance{} },
}))
