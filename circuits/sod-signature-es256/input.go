package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/emulated"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/mynextid/sod-zk/common"
)

var ErrInvalidSignature = errors.New("invalid ECDSA signature encoding")

type PublicInput struct {
	MessageDigest []byte `json:"message_digest"`
	// PublicKey is the uncompressed P-256 point 04 || X || Y.
	PublicKey []byte `json:"public_key"`
}

type PrivateInput struct {
	SignedAttrs []byte `json:"signed_attrs"`
	// Signature is the ASN.1 Ecdsa-Sig-Value from the SignerInfo.
	Signature []byte `json:"signature"`
}

// InputParser builds assignments for a circuit of fixed size.
type InputParser struct {
	SignedAttrsMaxLen int
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
	return p.Assignment(priv, pub)
}

// Assignment converts the inputs to a witness assignment. Empty private
// inputs give a public-only assignment for verification.
func (p InputParser) Assignment(priv PrivateInput, pub PublicInput) (*CircuitSignature, error) {
	if len(pub.MessageDigest) != DigestSize {
		return nil, fmt.Errorf("message digest is %d bytes, circuit expects %d", len(pub.MessageDigest), DigestSize)
	}
	x, y, err := splitPoint(pub.PublicKey)
	if err != nil {
		return nil, err
	}

	attrs, err := common.PaddedU8Array(priv.SignedAttrs, p.SignedAttrsMaxLen)
	if err != nil {
		return nil, fmt.Errorf("signed attributes: %w", err)
	}

	r, s := new(big.Int), new(big.Int)
	if priv.Signature != nil {
		if r, s, err = ParseSignature(priv.Signature); err != nil {
			return nil, err
		}
	}

	digestPos := 0
	if priv.SignedAttrs != nil {
		digestPos = bytes.Index(priv.SignedAttrs, pub.MessageDigest)
		if digestPos < 0 {
			return nil, fmt.Errorf("message digest is not in the signed attributes")
		}
	}

	return &CircuitSignature{
		SignedAttrs:       attrs,
		SignedAttrsLength: len(priv.SignedAttrs),
		DigestPosition:    digestPos,
		SigR:              emulated.ValueOf[emulated.P256Fr](r),
		SigS:              emulated.ValueOf[emulated.P256Fr](s),
		MessageDigest:     common.BytesToU8Array(pub.MessageDigest),
		PubKeyX:           emulated.ValueOf[emulated.P256Fp](x),
		PubKeyY:           emulated.ValueOf[emulated.P256Fp](y),
	}, nil
}

// ParseSignature reads r and s from an Ecdsa-Sig-Value, or from a 64 byte
// r||s value.
func ParseSignature(sig []byte) (r, s *big.Int, err error) {
	r, s = new(big.Int), new(big.Int)
	input := cryptobyte.String(sig)
	var inner cryptobyte.String
	if input.ReadASN1(&inner, cbasn1.SEQUENCE) &&
		input.Empty() &&
		inner.ReadASN1Integer(r) &&
		inner.ReadASN1Integer(s) &&
		inner.Empty() {
		return r, s, nil
	}
	if len(sig) == 2*DigestSize {
		return r.SetBytes(sig[:DigestSize]), s.SetBytes(sig[DigestSize:]), nil
	}
	return nil, nil, ErrInvalidSignature
}

func splitPoint(point []byte) (x, y *big.Int, err error) {
	if len(point) != 65 || point[0] != 0x04 {
		return nil, nil, fmt.Errorf("public key must be an uncompressed P-256 point, got %d bytes", len(point))
	}
	return new(big.Int).SetBytes(point[1:33]), new(big.Int).SetBytes(point[33:]), nil
}
