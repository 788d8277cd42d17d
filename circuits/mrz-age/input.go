package cma

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/consensys/gnark/frontend"

	seh "github.com/mynextid/sod-zk/circuits/sod-embedded-hash"
	"github.com/mynextid/sod-zk/common"
)

type PublicInput struct {
	MessageDigest []byte `json:"message_digest"`
	BornBefore    string `json:"born_before"`  // YYYYMMDD
	CurrentYear   string `json:"current_year"` // YY
}

type PrivateInput struct {
	DG1          []byte `json:"dg1"`
	EContent     []byte `json:"econtent"`
	HashPosition int    `json:"hash_position"`
}

// NewPublicInput returns the public input proving an age of at least minAge
// years on the given day.
func NewPublicInput(messageDigest []byte, today time.Time, minAge int) PublicInput {
	// born on or before the birthday minAge years ago
	cutoff := today.AddDate(-minAge, 0, 1)
	return PublicInput{
		MessageDigest: messageDigest,
		BornBefore:    cutoff.Format("20060102"),
		CurrentYear:   today.Format("06"),
	}
}

// InputParser builds assignments for a circuit of fixed size.
type InputParser struct {
	DG1Len         int
	EContentMaxLen int
}

func (p InputParser) Parse(publicInput, privateInput []byte) (frontend.Circuit, error) {
	var pub PublicInput
	if err := json.Unmarshal(publicInput, &pub); err != nil {
		return nil, fmt.Errorf("public input: %w", err)
	}
	var priv PrivateInput
	if err := json.Unmarshal(privateInput, &priv); err != nil {
		return nil, fmt.Errorf("private input: %w", err)
	}

	// public-only parse for verification
	if priv.DG1 == nil {
		priv.DG1 = make([]byte, p.DG1Len)
	}
	return p.Assignment(priv, pub)
}

// Assignment converts the inputs to a witness assignment.
func (p InputParser) Assignment(priv PrivateInput, pub PublicInput) (*CircuitAge, error) {
	if len(pub.MessageDigest) != seh.DigestSize {
		return nil, fmt.Errorf("message digest is %d bytes, circuit expects %d", len(pub.MessageDigest), seh.DigestSize)
	}
	if _, err := time.Parse("20060102", pub.BornBefore); err != nil {
		return nil, fmt.Errorf("born_before: %w", err)
	}
	if len(pub.CurrentYear) != 2 || !isDigits(pub.CurrentYear) {
		return nil, fmt.Errorf("current_year must be two digits, got %q", pub.CurrentYear)
	}
	if len(priv.DG1) != p.DG1Len {
		return nil, fmt.Errorf("DG1 is %d bytes, circuit expects %d", len(priv.DG1), p.DG1Len)
	}
	eContent, err := common.PaddedU8Array(priv.EContent, p.EContentMaxLen)
	if err != nil {
		return nil, fmt.Errorf("econtent: %w", err)
	}

	return &CircuitAge{
		DG1:            common.BytesToU8Array(priv.DG1),
		EContent:       eContent,
		EContentLength: len(priv.EContent),
		HashPosition:   priv.HashPosition,
		MessageDigest:  common.BytesToU8Array(pub.MessageDigest),
		BornBefore:     common.StringToU8Array(pub.BornBefore),
		CurrentYear:    common.StringToU8Array(pub.CurrentYear),
	}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
