package serial_test

import (
	"testing"

	"github.com/astangl/data-provenance/codec"
	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/serial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// versionLeaf and the CallUnknownProvenance inputs below are built as
// pointers because ValueCodec.Unmarshal always produces a pointer (its
// SubclassFactory entries return &T{}); building the fixtures the same
// way keeps round-trip comparisons type-exact.
func versionLeaf(v string) *serial.CallUnknownProvenance {
	return &serial.CallUnknownProvenance{
		OutputClassName: "string",
		ValueDigest:     digest.FromBytes([]byte(v)),
	}
}

func callWithInputs(inputs []codec.Tagged) serial.CallWithInputs {
	return serial.CallWithInputs{
		FunctionName:    "add",
		FunctionVersion: versionLeaf("1.0"),
		OutputClassName: "int",
		InputList:       inputs,
	}
}

func TestCallWithInputsRoundTrip(t *testing.T) {
	c := callWithInputs([]codec.Tagged{
		&serial.CallUnknownProvenance{OutputClassName: "int", ValueDigest: digest.FromBytes([]byte("2"))},
		&serial.CallUnknownProvenance{OutputClassName: "int", ValueDigest: digest.FromBytes([]byte("3"))},
	})

	b, err := serial.ValueCodec.Marshal(c)
	require.NoError(t, err)

	got, err := serial.ValueCodec.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, &c, got)
}

func TestCallDigestOrderSensitive(t *testing.T) {
	a := &serial.CallUnknownProvenance{OutputClassName: "int", ValueDigest: digest.FromBytes([]byte("2"))}
	b := &serial.CallUnknownProvenance{OutputClassName: "int", ValueDigest: digest.FromBytes([]byte("3"))}

	fwd := callWithInputs([]codec.Tagged{a, b})
	rev := callWithInputs([]codec.Tagged{b, a})

	fwdDigest, err := serial.CallDigest(fwd)
	require.NoError(t, err)
	revDigest, err := serial.CallDigest(rev)
	require.NoError(t, err)

	assert.NotEqual(t, fwdDigest, revDigest)
}

func TestCallDigestVersionSensitive(t *testing.T) {
	a := &serial.CallUnknownProvenance{OutputClassName: "int", ValueDigest: digest.FromBytes([]byte("2"))}
	b := &serial.CallUnknownProvenance{OutputClassName: "int", ValueDigest: digest.FromBytes([]byte("3"))}

	v1 := callWithInputs([]codec.Tagged{a, b})
	v2 := v1
	v2.FunctionVersion = versionLeaf("1.1")

	d1, err := serial.CallDigest(v1)
	require.NoError(t, err)
	d2, err := serial.CallDigest(v2)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestCallWithoutInputsRoundTrip(t *testing.T) {
	c := serial.CallWithoutInputs{
		FunctionName:                 "add",
		FunctionVersion:              versionLeaf("1.0"),
		OutputClassName:              "int",
		DigestOfEquivalentWithInputs: digest.FromBytes([]byte("whole record")),
	}
	b, err := serial.ValueCodec.Marshal(c)
	require.NoError(t, err)

	got, err := serial.ValueCodec.Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, &c, got)
}

func TestInputGroupDigestOrderSensitive(t *testing.T) {
	a := digest.FromBytes([]byte("2"))
	b := digest.FromBytes([]byte("3"))

	fwd := serial.InputGroupDigest([]digest.Digest{a, b})
	rev := serial.InputGroupDigest([]digest.Digest{b, a})

	assert.NotEqual(t, fwd, rev)
}

func TestInputGroupDigestEmpty(t *testing.T) {
	empty1 := serial.InputGroupDigest(nil)
	empty2 := serial.InputGroupDigest([]digest.Digest{})
	assert.Equal(t, empty1, empty2)
}
