package provenance

import (
	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
)

// FunctionCallWithProvenanceDeflated is variant 5 of the sum: a call node
// reduced to the digest of its serial.CallWithInputs record. It carries no
// function, version, or inputs in memory, only enough to inflate on
// demand (resolve.Inflate loads the record and resolves it, looking the
// function up by name in a registry.Registry if it has to execute).
// Keeping T as a type parameter here, rather than deflating to an untyped
// digest, is what lets Inflate's typed entry point (resolve.Inflate[T])
// return a FunctionCallResultWithProvenance[T] instead of forcing every
// caller through the erased Node interface.
type FunctionCallWithProvenanceDeflated[T any] struct {
	dg    digest.Digest
	codec codec.Codec[T]
}

// NewCallDeflated wraps the digest of an already-saved call record.
func NewCallDeflated[T any](dg digest.Digest, c codec.Codec[T]) FunctionCallWithProvenanceDeflated[T] {
	return FunctionCallWithProvenanceDeflated[T]{dg: dg, codec: c}
}

func (d FunctionCallWithProvenanceDeflated[T]) OutputClassName() string {
	return d.codec.SerializableClassName()
}
func (FunctionCallWithProvenanceDeflated[T]) Kind() Kind { return KindCallDeflated }

// Digest returns the digest of the deflated call's serial.CallWithInputs
// record.
func (d FunctionCallWithProvenanceDeflated[T]) Digest() digest.Digest { return d.dg }

// Codec returns the codec bound to this deflated call's output type.
func (d FunctionCallWithProvenanceDeflated[T]) Codec() codec.Codec[T] { return d.codec }

// FunctionCallResultWithProvenanceDeflated is variant 6 of the sum: a
// result node reduced to the digest of its serial.ResultKnownProvenance
// record, the mirror image of variant 5.
type FunctionCallResultWithProvenanceDeflated[T any] struct {
	dg    digest.Digest
	codec codec.Codec[T]
}

// NewResultDeflated wraps the digest of an already-saved result record.
func NewResultDeflated[T any](dg digest.Digest, c codec.Codec[T]) FunctionCallResultWithProvenanceDeflated[T] {
	return FunctionCallResultWithProvenanceDeflated[T]{dg: dg, codec: c}
}

func (d FunctionCallResultWithProvenanceDeflated[T]) OutputClassName() string {
	return d.codec.SerializableClassName()
}
func (FunctionCallResultWithProvenanceDeflated[T]) Kind() Kind { return KindResultDeflated }

// Digest returns the digest of the deflated result's
// serial.ResultKnownProvenance record.
func (d FunctionCallResultWithProvenanceDeflated[T]) Digest() digest.Digest { return d.dg }

// Codec returns the codec bound to this deflated result's output type.
func (d FunctionCallResultWithProvenanceDeflated[T]) Codec() codec.Codec[T] { return d.codec }
