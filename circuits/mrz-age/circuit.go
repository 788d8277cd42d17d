// Package cma proves that the holder of a passport is older than a public
// threshold. The date of birth is read from a secret DG1 whose hash is
// embedded in the signed LDS security object.
package cma

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"

	seh "github.com/mynextid/sod-zk/circuits/sod-embedded-hash"
	"github.com/mynextid/sod-zk/common"
)

// Name identifies the circuit in the server registry.
const Name = "mrz-age"

const (
	// DateOfBirthOffset is the position of YYMMDD in a TD3 MRZ: the
	// second line starts at 44 and the date of birth at its 13th character.
	DateOfBirthOffset = 44 + 13
	// DG1MRZOffset is the length of the 61 5B 5F1F 58 header of DG1.
	DG1MRZOffset = 5
)

// CircuitAge proves:
// 1. the DG1 hash is embedded in the eContent with the public message digest
// 2. the date of birth in DG1 comes before BornBefore
//
// Two digit birth years above CurrentYear are read as 19YY, others as 20YY.
type CircuitAge struct {
	// ===== PRIVATE INPUTS =====
	DG1            []uints.U8        `gnark:",secret"`
	EContent       []uints.U8        `gnark:",secret"`
	EContentLength frontend.Variable `gnark:",secret"`
	HashPosition   frontend.Variable `gnark:",secret"`

	// ===== PUBLIC INPUTS =====
	MessageDigest []uints.U8 `gnark:",public"`
	BornBefore    []uints.U8 `gnark:",public"` // YYYYMMDD, ASCII
	CurrentYear   []uints.U8 `gnark:",public"` // YY, ASCII

	mrzOffset int `gnark:"-"`
}

// NewCircuit returns a circuit template for a DG1 of dg1Len bytes whose MRZ
// starts at mrzOffset.
func NewCircuit(dg1Len, mrzOffset, eContentMaxLen int) *CircuitAge {
	return &CircuitAge{
		DG1:           make([]uints.U8, dg1Len),
		EContent:      make([]uints.U8, eContentMaxLen),
		MessageDigest: make([]uints.U8, seh.DigestSize),
		BornBefore:    make([]uints.U8, 8),
		CurrentYear:   make([]uints.U8, 2),
		mrzOffset:     mrzOffset,
	}
}

func (c *CircuitAge) Define(api frontend.API) error {
	if err := seh.AssertEmbedded(api, c.DG1, c.EContent, c.EContentLength, c.HashPosition, c.MessageDigest); err != nil {
		return err
	}

	start := c.mrzOffset + DateOfBirthOffset
	dob := c.DG1[start : start+6]

	lastCentury, err := common.IsGreater(api, dob[:2], c.CurrentYear)
	if err != nil {
		return err
	}
	birth := []uints.U8{
		{Val: api.Select(lastCentury, '1', '2')},
		{Val: api.Select(lastCentury, '9', '0')},
	}
	birth = append(birth, dob...)

	before, err := common.IsSmaller(api, birth, c.BornBefore)
	if err != nil {
		return err
	}
	api.AssertIsEqual(before, 1)

	return nil
}
