// Package sse proves that a secret SOD signed attributes block carries a
// public message digest and is signed with ECDSA P-256 by a public document
// signer key.
package sse

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/emulated/sw_emulated"
	"github.com/consensys/gnark/std/math/emulated"
	"github.com/consensys/gnark/std/math/uints"
	"github.com/consensys/gnark/std/signature/ecdsa"

	"github.com/mynextid/sod-zk/common"
)

// Name identifies the circuit in the server registry.
const Name = "sod-signature-es256"

// DigestSize is the SHA-256 digest length.
const DigestSize = 32

type CircuitSignature struct {
	// ===== PRIVATE INPUTS =====
	// SignedAttrs is the SET OF form of the signed attributes, zero padded.
	SignedAttrs       []uints.U8        `gnark:",secret"`
	SignedAttrsLength frontend.Variable `gnark:",secret"`
	DigestPosition    frontend.Variable `gnark:",secret"`

	SigR emulated.Element[emulated.P256Fr] `gnark:",secret"`
	SigS emulated.Element[emulated.P256Fr] `gnark:",secret"`

	// ===== PUBLIC INPUTS =====
	MessageDigest []uints.U8                        `gnark:",public"`
	PubKeyX       emulated.Element[emulated.P256Fp] `gnark:",public"`
	PubKeyY       emulated.Element[emulated.P256Fp] `gnark:",public"`
}

// NewCircuit returns a circuit template for signed attributes of up to
// signedAttrsMaxLen bytes.
func NewCircuit(signedAttrsMaxLen int) *CircuitSignature {
	return &CircuitSignature{
		SignedAttrs:   make([]uints.U8, signedAttrsMaxLen),
		MessageDigest: make([]uints.U8, DigestSize),
	}
}

func (c *CircuitSignature) Define(api frontend.API) error {
	// the signed messageDigest value
	common.IsSubset(api, c.SignedAttrs, c.MessageDigest, c.DigestPosition)
	api.AssertIsLessOrEqual(api.Add(c.DigestPosition, DigestSize), c.SignedAttrsLength)

	hash, err := common.SHA256FixedLength(api, c.SignedAttrs, c.SignedAttrsLength)
	if err != nil {
		return err
	}
	msg, err := common.HashToP256Scalar(api, hash)
	if err != nil {
		return err
	}

	pub := ecdsa.PublicKey[emulated.P256Fp, emulated.P256Fr]{
		X: c.PubKeyX,
		Y: c.PubKeyY,
	}
	sig := ecdsa.Signature[emulated.P256Fr]{
		R: c.SigR,
		S: c.SigS,
	}
	pub.Verify(api, sw_emulated.GetCurveParams[emulated.P256Fp](), msg, &sig)

	return nil
}
