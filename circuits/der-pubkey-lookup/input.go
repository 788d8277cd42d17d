package dpl

import (
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark/frontend"

	"github.com/mynextid/sod-zk/common"
)

// PublicInput is the JSON public input of the circuit.
type PublicInput struct {
	Modulus []byte `json:"modulus"`
}

// PrivateInput is the JSON private input of the circuit.
type PrivateInput struct {
	TBS       []byte `json:"tbs"`
	PubKeyPos int    `json:"pub_key_pos"`
}

// InputParser builds assignments for a circuit of fixed size.
type InputParser struct {
	TBSMaxLen  int
	ModulusLen int
}

// Parse implements the server input parser. An empty private input ("{}")
// gives a public-only assignment for verification.
func (p InputParser) Parse(publicInput, privateInput []byte) (frontend.Circuit, error) {
	var pub PublicInput
	if err := json.Unmarshal(publicInput, &pub); err != nil {
		return nil, fmt.Errorf("public input: %w", err)
	}
	var priv PrivateInput
	if err := json.Unmarshal(privateInput, &priv); err != nil {
		return nil, fmt.Errorf("private input: %w", err)
	}
	return p.Assignment(priv, pub)
}

// Assignment converts the inputs to a witness assignment.
func (p InputParser) Assignment(priv PrivateInput, pub PublicInput) (*CircuitPubKey, error) {
	if len(pub.Modulus) != p.ModulusLen {
		return nil, fmt.Errorf("modulus is %d bytes, circuit expects %d", len(pub.Modulus), p.ModulusLen)
	}
	tbs, err := common.PaddedU8Array(priv.TBS, p.TBSMaxLen)
	if err != nil {
		return nil, fmt.Errorf("tbs: %w", err)
	}
	return &CircuitPubKey{
		TBSBytes:  tbs,
		PubKeyPos: priv.PubKeyPos,
		Modulus:   common.BytesToU8Array(pub.Modulus),
	}, nil
}
