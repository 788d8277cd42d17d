// Package dpl proves that an RSA modulus is the subject public key of a
// secret TBSCertificate, at the position found off-circuit by the locator.
package dpl

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/mynextid/sod-zk/common"
)

// Name identifies the circuit in the server registry.
const Name = "der-pubkey-lookup"

// CircuitPubKey proves:
// 1. the TBS structure leads to a subjectPublicKey at PubKeyPos
// 2. the RSAPublicKey there has the public Modulus
type CircuitPubKey struct {
	// ===== PRIVATE INPUTS =====

	// TBS certificate, zero padded to the circuit size
	TBSBytes []uints.U8 `gnark:",secret"`

	// First byte of the key inside the BIT STRING, after the unused-bits byte
	PubKeyPos frontend.Variable `gnark:",secret"`

	// ===== PUBLIC INPUTS =====

	// Big-endian modulus without the sign byte
	Modulus []uints.U8 `gnark:",public"`
}

// NewCircuit returns a circuit template for TBS buffers of tbsMaxLen bytes and
// moduli of modulusLen bytes.
func NewCircuit(tbsMaxLen, modulusLen int) *CircuitPubKey {
	return &CircuitPubKey{
		TBSBytes: make([]uints.U8, tbsMaxLen),
		Modulus:  make([]uints.U8, modulusLen),
	}
}

func (c *CircuitPubKey) Define(api frontend.API) error {
	bitString := NavigateToSubjectPublicKey(api, c.TBSBytes)

	_, lengthBytes := ReadDERLength(api, c.TBSBytes, api.Add(bitString, 1))
	unusedBitsPos := api.Add(api.Add(bitString, 1), lengthBytes)
	unusedBits := common.ReadByteAt(api, c.TBSBytes, unusedBitsPos)
	api.AssertIsEqual(unusedBits.Val, 0)

	keyStart := api.Add(unusedBitsPos, 1)
	api.AssertIsEqual(keyStart, c.PubKeyPos)

	// RSAPublicKey ::= SEQUENCE { modulus INTEGER, publicExponent INTEGER }
	modulusPos := enter(api, c.TBSBytes, keyStart, 0x30)
	assertTag(api, c.TBSBytes, modulusPos, 0x02)
	intLength, intLengthBytes := ReadDERLength(api, c.TBSBytes, api.Add(modulusPos, 1))
	content := api.Add(api.Add(modulusPos, 1), intLengthBytes)

	first := common.ReadByteAt(api, c.TBSBytes, content)
	hasSignByte := api.IsZero(first.Val)
	api.AssertIsEqual(api.Sub(intLength, hasSignByte), len(c.Modulus))

	start := api.Add(content, hasSignByte)
	for i := range c.Modulus {
		b := common.ReadByteAt(api, c.TBSBytes, api.Add(start, i))
		api.AssertIsEqual(b.Val, c.Modulus[i].Val)
	}

	return nil
}
