package serial

import (
	"encoding/json"

	"github.com/astangl/data-provenance/digest"
)

// InputGroupBytes canonically serializes an ordered list of input result
// digests, the "inputGroupBytes" a memoization key is derived from. Order
// matters and is never sorted: permuting inputs must change the digest.
func InputGroupBytes(digests []digest.Digest) []byte {
	if digests == nil {
		digests = []digest.Digest{}
	}
	b, err := json.Marshal(digests)
	if err != nil {
		// digest.Digest.MarshalText never fails.
		panic(err)
	}
	return b
}

// InputGroupDigest is the digest of InputGroupBytes: the memoization
// key's third component.
func InputGroupDigest(digests []digest.Digest) digest.Digest {
	return digest.FromBytes(InputGroupBytes(digests))
}

// CallDigest computes a call's own digest over its WithInputs
// serialization.
func CallDigest(c CallWithInputs) (digest.Digest, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.FromBytes(b), nil
}
