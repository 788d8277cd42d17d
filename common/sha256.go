package common

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/sha2"
	"github.com/consensys/gnark/std/math/uints"
)

func SHA256(api frontend.API, payload []uints.U8) ([]uints.U8, error) {

	// Instantiate SHA256
	hash, err := sha2.New(api)
	if err != nil {
		return nil, err
	}

	hash.Write(payload)
	digest := hash.Sum()

	return digest, nil
}

// SHA256FixedLength hashes the first length bytes of payload. payload is a
// fixed size buffer; bytes past length do not affect the digest.
func SHA256FixedLength(api frontend.API, payload []uints.U8, length frontend.Variable) ([]uints.U8, error) {
	hash, err := sha2.New(api)
	if err != nil {
		return nil, err
	}

	hash.Write(payload)
	return hash.FixedLengthSum(length), nil
}
