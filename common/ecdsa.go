package common

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
)

// HashToP256Scalar packs a big-endian SHA-256 digest into a P-256 scalar
// field element, as ECDSA reads the digest.
func HashToP256Scalar(api frontend.API, hash []uints.U8) (*emulated.Element[emulated.P256Fr], error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("SHA-256 digest must be 32 bytes, got %d", len(hash))
	}

	field, err := emulated.NewField[emulated.P256Fr](api)
	if err != nil {
		return nil, err
	}

	// 4 limbs of 64 bits, least significant limb first
	const nbLimbs = 4
	const bytesPerLimb = 8

	limbs := make([]frontend.Variable, nbLimbs)
	for i := 0; i < nbLimbs; i++ {
		var limb frontend.Variable = 0
		shift := frontend.Variable(1)
		for j := 0; j < bytesPerLimb; j++ {
			b := hash[len(hash)-1-(i*bytesPerLimb+j)]
			limb = api.Add(limb, api.Mul(b.Val, shift))
			shift = api.Mul(shift, 256)
		}
		limbs[i] = limb
	}

	return field.Reduce(&emulated.Element[emulated.P256Fr]{Limbs: limbs}), nil
}
