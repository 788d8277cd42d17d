package api

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/frontend"

	"github.com/mynextid/sod-zk/common"
)

var (
	ErrInvalidInput = errors.New("invalid circuit input")
	ErrInvalidProof = errors.New("invalid proof")
)

// InputParser converts raw input to circuit assignment
type InputParser interface {
	Parse(publicInput, privateInput []byte) (frontend.Circuit, error)
}

// Circuit is a loaded circuit with its proving and verifying keys
type Circuit struct {
	*common.Setup
	InputParser InputParser
}

func newCircuit(setup *common.Setup, parser InputParser) *Circuit {
	return &Circuit{Setup: setup, InputParser: parser}
}

// PublicCircuit is the part of a circuit a verifier needs
type PublicCircuit struct {
	VerifyingKey groth16.VerifyingKey
	InputParser  InputParser
}

func (c *Circuit) Public() PublicCircuit {
	return PublicCircuit{VerifyingKey: c.VK, InputParser: c.InputParser}
}

// Prove generates a serialized Groth16 proof for a full assignment
func (c *Circuit) Prove(assignment frontend.Circuit) ([]byte, error) {
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("%w: witness: %v", ErrInvalidInput, err)
	}

	proof, err := groth16.Prove(c.CCS, c.PK, w)
	if err != nil {
		// an unsatisfied constraint lands here
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("proof serialization failed: %w", err)
	}
	return buf.Bytes(), nil
}

// ProveWithJSON generates a proof from JSON inputs
func (c *Circuit) ProveWithJSON(publicInput, privateInput []byte) ([]byte, error) {
	assignment, err := c.InputParser.Parse(publicInput, privateInput)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return c.Prove(assignment)
}

// Verify checks a proof against the public part of an assignment
func (c PublicCircuit) Verify(assignment frontend.Circuit, proof groth16.Proof) error {
	pw, err := publicWitness(assignment)
	if err != nil {
		return err
	}
	if err := groth16.Verify(proof, c.VerifyingKey, pw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}

// VerifyWithJSON verifies a serialized proof using JSON public input
func (c PublicCircuit) VerifyWithJSON(publicInput, proofBytes []byte) error {
	// public-only parse
	assignment, err := c.InputParser.Parse(publicInput, []byte("{}"))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return c.Verify(assignment, proof)
}

func publicWitness(assignment frontend.Circuit) (witness.Witness, error) {
	pw, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: public witness: %v", ErrInvalidInput, err)
	}
	return pw, nil
}
