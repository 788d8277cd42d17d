package seh

import (
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark/frontend"

	"github.com/mynextid/sod-zk/common"
)

type PublicInput struct {
	MessageDigest []byte `json:"message_digest"`
}

type PrivateInput struct {
	Reference    []byte `json:"reference"`
	EContent     []byte `json:"econtent"`
	HashPosition int    `json:"hash_position"`
}

// InputParser builds assignments for a circuit of fixed size.
type InputParser struct {
	ReferenceLen   int
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
	if priv.Reference == nil {
		priv.Reference = make([]byte, p.ReferenceLen)
	}
	return p.Assignment(priv, pub)
}

// Assignment converts the inputs to a witness assignment.
func (p InputParser) Assignment(priv PrivateInput, pub PublicInput) (*CircuitEmbeddedHash, error) {
	if len(pub.MessageDigest) != DigestSize {
		return nil, fmt.Errorf("message digest is %d bytes, circuit expects %d", len(pub.MessageDigest), DigestSize)
	}
	if len(priv.Reference) != p.ReferenceLen {
		return nil, fmt.Errorf("reference is %d bytes, circuit expects %d", len(priv.Reference), p.ReferenceLen)
	}
	eContent, err := common.PaddedU8Array(priv.EContent, p.EContentMaxLen)
	if err != nil {
		return nil, fmt.Errorf("econtent: %w", err)
	}
	return &CircuitEmbeddedHash{
		Reference:      common.BytesToU8Array(priv.Reference),
		EContent:       eContent,
		EContentLength: len(priv.EContent),
		HashPosition:   priv.HashPosition,
		MessageDigest:  common.BytesToU8Array(pub.MessageDigest),
	}, nil
}
