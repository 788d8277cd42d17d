package circuitinput

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mynextid/sod-zk/chain"
	dpl "github.com/mynextid/sod-zk/circuits/der-pubkey-lookup"
	cma "github.com/mynextid/sod-zk/circuits/mrz-age"
	seh "github.com/mynextid/sod-zk/circuits/sod-embedded-hash"
	sse "github.com/mynextid/sod-zk/circuits/sod-signature-es256"
)

// ProverInput is the body of a prove request for one circuit.
type ProverInput struct {
	PublicInput  json.RawMessage `json:"public_input"`
	PrivateInput json.RawMessage `json:"private_input"`
}

// ProverInputs returns the inputs of the gnark circuits, keyed by circuit
// name. reference is the data whose hash the run found embedded. The key
// circuit depends on the document signer key: der-pubkey-lookup for RSA,
// sod-signature-es256 for ECDSA P-256.
func ProverInputs(res *chain.Result, reference []byte) (map[string]ProverInput, error) {
	if res == nil || !res.Verified() {
		return nil, ErrNotVerified
	}

	inputs := make(map[string]ProverInput, 2)

	cert, err := res.DSCertificate.X509()
	if err != nil {
		return nil, err
	}
	switch key := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		modulus, err := dsModulus(res)
		if err != nil {
			return nil, err
		}
		if inputs[dpl.Name], err = marshalPair(
			dpl.PublicInput{Modulus: modulus},
			dpl.PrivateInput{TBS: res.DSCertificate.TBS(), PubKeyPos: res.PublicKeyRange.Start},
		); err != nil {
			return nil, err
		}

	case *ecdsa.PublicKey:
		if key.Curve != elliptic.P256() {
			return nil, fmt.Errorf("%w: ECDSA curve %s", ErrUnsupportedKey, key.Curve.Params().Name)
		}
		point, err := key.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
		}
		if inputs[sse.Name], err = marshalPair(
			sse.PublicInput{MessageDigest: res.Message.MessageDigest, PublicKey: point.Bytes()},
			sse.PrivateInput{SignedAttrs: res.Message.SignedAttributesEncoded(), Signature: res.Message.Signature},
		); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: DS key is %T", ErrUnsupportedKey, cert.PublicKey)
	}

	if inputs[seh.Name], err = marshalPair(
		seh.PublicInput{MessageDigest: res.Message.MessageDigest},
		seh.PrivateInput{
			Reference:    reference,
			EContent:     res.Message.EContent,
			HashPosition: res.EmbeddedHash.Start,
		},
	); err != nil {
		return nil, err
	}

	return inputs, nil
}

// AgeProverInput returns the input of the mrz-age circuit proving the holder
// is at least minAge years old on today. reference is the DG1 of the run.
func AgeProverInput(res *chain.Result, reference []byte, today time.Time, minAge int) (ProverInput, error) {
	if res == nil || !res.Verified() {
		return ProverInput{}, ErrNotVerified
	}
	if minAge <= 0 {
		return ProverInput{}, fmt.Errorf("minimum age must be positive, got %d", minAge)
	}
	return marshalPair(
		cma.NewPublicInput(res.Message.MessageDigest, today, minAge),
		cma.PrivateInput{
			DG1:          reference,
			EContent:     res.Message.EContent,
			HashPosition: res.EmbeddedHash.Start,
		},
	)
}

func marshalPair(public, private any) (ProverInput, error) {
	pub, err := json.Marshal(public)
	if err != nil {
		return ProverInput{}, fmt.Errorf("public input: %w", err)
	}
	priv, err := json.Marshal(private)
	if err != nil {
		return ProverInput{}, fmt.Errorf("private input: %w", err)
	}
	return ProverInput{PublicInput: pub, PrivateInput: priv}, nil
}
