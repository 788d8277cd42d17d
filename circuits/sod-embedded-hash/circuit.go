// Package seh proves that the hash of secret reference data is embedded in a
// secret eContent whose digest is the public, signed messageDigest.
package seh

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/mynextid/sod-zk/common"
)

// Name identifies the circuit in the server registry.
const Name = "sod-embedded-hash"

// DigestSize is the SHA-256 digest length.
const DigestSize = 32

// CircuitEmbeddedHash proves:
// 1. SHA-256(Reference) occurs in EContent at HashPosition
// 2. SHA-256 of the first EContentLength bytes of EContent is MessageDigest
type CircuitEmbeddedHash struct {
	// ===== PRIVATE INPUTS =====
	Reference      []uints.U8        `gnark:",secret"`
	EContent       []uints.U8        `gnark:",secret"`
	EContentLength frontend.Variable `gnark:",secret"`
	HashPosition   frontend.Variable `gnark:",secret"`

	// ===== PUBLIC INPUTS =====
	MessageDigest []uints.U8 `gnark:",public"`
}

// NewCircuit returns a circuit template for references of referenceLen bytes
// and eContent buffers of eContentMaxLen bytes.
func NewCircuit(referenceLen, eContentMaxLen int) *CircuitEmbeddedHash {
	return &CircuitEmbeddedHash{
		Reference:     make([]uints.U8, referenceLen),
		EContent:      make([]uints.U8, eContentMaxLen),
		MessageDigest: make([]uints.U8, DigestSize),
	}
}

func (c *CircuitEmbeddedHash) Define(api frontend.API) error {
	return AssertEmbedded(api, c.Reference, c.EContent, c.EContentLength, c.HashPosition, c.MessageDigest)
}

// AssertEmbedded constrains SHA-256(reference) to occur at hashPosition
// within the first eContentLength bytes of eContent, and SHA-256 of those
// bytes to equal messageDigest.
func AssertEmbedded(api frontend.API, reference, eContent []uints.U8, eContentLength, hashPosition frontend.Variable, messageDigest []uints.U8) error {
	refHash, err := common.SHA256(api, reference)
	if err != nil {
		return err
	}

	common.IsSubset(api, eContent, refHash, hashPosition)
	api.AssertIsLessOrEqual(api.Add(hashPosition, len(refHash)), eContentLength)

	digest, err := common.SHA256FixedLength(api, eContent, eContentLength)
	if err != nil {
		return err
	}
	common.CompareBytes(api, digest, messageDigest)

	return nil
}
