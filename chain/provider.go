package chain

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"

	// register the hash implementations used by crypto.Hash.New
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// PublicKey is an imported key as returned by Provider.ImportPublicKey.
type PublicKey = crypto.PublicKey

// Provider performs the cryptographic operations of a verification run. All
// calls may block and must honour ctx.
type Provider interface {
	Digest(ctx context.Context, h crypto.Hash, data []byte) ([]byte, error)
	// VerifySignature reports whether signature is valid for signed. An
	// invalid signature is (false, nil); errors are reserved for unusable
	// keys or algorithms.
	VerifySignature(ctx context.Context, key PublicKey, alg SignatureAlgorithm, signature, signed []byte) (bool, error)
	ImportPublicKey(ctx context.Context, spki []byte) (PublicKey, error)
}

// StdProvider implements Provider with the Go standard crypto packages.
type StdProvider struct{}

var _ Provider = StdProvider{}

func (StdProvider) Digest(ctx context.Context, h crypto.Hash, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !h.Available() {
		return nil, fmt.Errorf("hash %v is not available", h)
	}
	d := h.New()
	d.Write(data)
	return d.Sum(nil), nil
}

func (p StdProvider) VerifySignature(ctx context.Context, key PublicKey, alg SignatureAlgorithm, signature, signed []byte) (bool, error) {
	digest, err := p.Digest(ctx, alg.Hash, signed)
	if err != nil {
		return false, err
	}

	switch alg.Scheme {
	case SchemePKCS1v15:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return false, fmt.Errorf("%s needs an RSA key, got %T", alg.Name, key)
		}
		return rsa.VerifyPKCS1v15(pub, alg.Hash, digest, signature) == nil, nil

	case SchemePSS:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return false, fmt.Errorf("%s needs an RSA key, got %T", alg.Name, key)
		}
		opts := &rsa.PSSOptions{SaltLength: alg.SaltLength, Hash: alg.Hash}
		if opts.SaltLength == 0 {
			opts.SaltLength = rsa.PSSSaltLengthAuto
		}
		return rsa.VerifyPSS(pub, alg.Hash, digest, signature, opts) == nil, nil

	case SchemeECDSA:
		pub, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return false, fmt.Errorf("%s needs an ECDSA key, got %T", alg.Name, key)
		}
		if ecdsa.VerifyASN1(pub, digest, signature) {
			return true, nil
		}
		// plain r||s encoding (BSI TR-03111)
		size := (pub.Curve.Params().BitSize + 7) / 8
		if len(signature) != 2*size {
			return false, nil
		}
		r := new(big.Int).SetBytes(signature[:size])
		s := new(big.Int).SetBytes(signature[size:])
		return ecdsa.Verify(pub, digest, r, s), nil
	}
	return false, fmt.Errorf("unsupported signature scheme %d", alg.Scheme)
}

func (StdProvider) ImportPublicKey(ctx context.Context, spki []byte) (PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("import public key: %w", err)
	}
	return key, nil
}

// Scheme is the padding or signature family of a SignatureAlgorithm.
type Scheme int

const (
	SchemePKCS1v15 Scheme = iota
	SchemePSS
	SchemeECDSA
)

// SignatureAlgorithm is a resolved signature algorithm.
type SignatureAlgorithm struct {
	Name       string      `json:"name"`
	Scheme     Scheme      `json:"scheme"`
	Hash       crypto.Hash `json:"hash"`
	SaltLength int         `json:"salt_length,omitempty"`
}

var (
	oidSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidSHA224 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}

	oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidRSASSAPSS     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
)

var digestAlgorithms = []struct {
	oid  asn1.ObjectIdentifier
	hash crypto.Hash
}{
	{oidSHA1, crypto.SHA1},
	{oidSHA224, crypto.SHA224},
	{oidSHA256, crypto.SHA256},
	{oidSHA384, crypto.SHA384},
	{oidSHA512, crypto.SHA512},
}

var signatureAlgorithms = []struct {
	name   string
	oid    asn1.ObjectIdentifier
	scheme Scheme
	hash   crypto.Hash
}{
	{"sha1WithRSAEncryption", asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}, SchemePKCS1v15, crypto.SHA1},
	{"sha224WithRSAEncryption", asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 14}, SchemePKCS1v15, crypto.SHA224},
	{"sha256WithRSAEncryption", asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}, SchemePKCS1v15, crypto.SHA256},
	{"sha384WithRSAEncryption", asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}, SchemePKCS1v15, crypto.SHA384},
	{"sha512WithRSAEncryption", asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}, SchemePKCS1v15, crypto.SHA512},
	{"ecdsa-with-SHA1", asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 1}, SchemeECDSA, crypto.SHA1},
	{"ecdsa-with-SHA224", asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 1}, SchemeECDSA, crypto.SHA224},
	{"ecdsa-with-SHA256", asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}, SchemeECDSA, crypto.SHA256},
	{"ecdsa-with-SHA384", asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}, SchemeECDSA, crypto.SHA384},
	{"ecdsa-with-SHA512", asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}, SchemeECDSA, crypto.SHA512},
}

// DigestHash maps a digest AlgorithmIdentifier OID to a crypto.Hash.
func DigestHash(oid asn1.ObjectIdentifier) (crypto.Hash, error) {
	for _, d := range digestAlgorithms {
		if d.oid.Equal(oid) {
			return d.hash, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported digest algorithm %s", ErrSignatureInvalid, oid)
}

type pssParameters struct {
	Hash         pkix.AlgorithmIdentifier `asn1:"explicit,tag:0,optional"`
	MGF          pkix.AlgorithmIdentifier `asn1:"explicit,tag:1,optional"`
	SaltLength   int                      `asn1:"explicit,tag:2,optional,default:20"`
	TrailerField int                      `asn1:"explicit,tag:3,optional,default:1"`
}

// ResolveSignatureAlgorithm maps a signatureAlgorithm to a verification
// scheme. digestOID is only consulted for rsaEncryption, which names the key
// type but not the hash.
func ResolveSignatureAlgorithm(oid asn1.ObjectIdentifier, params []byte, digestOID asn1.ObjectIdentifier) (SignatureAlgorithm, error) {
	for _, s := range signatureAlgorithms {
		if s.oid.Equal(oid) {
			return SignatureAlgorithm{Name: s.name, Scheme: s.scheme, Hash: s.hash}, nil
		}
	}

	switch {
	case oid.Equal(oidRSAEncryption):
		h, err := DigestHash(digestOID)
		if err != nil {
			return SignatureAlgorithm{}, err
		}
		return SignatureAlgorithm{Name: "rsaEncryption", Scheme: SchemePKCS1v15, Hash: h}, nil

	case oid.Equal(oidRSASSAPSS):
		return resolvePSS(params)
	}
	return SignatureAlgorithm{}, fmt.Errorf("%w: unsupported signature algorithm %s", ErrSignatureInvalid, oid)
}

func resolvePSS(params []byte) (SignatureAlgorithm, error) {
	alg := SignatureAlgorithm{Name: "rsassa-pss", Scheme: SchemePSS, Hash: crypto.SHA1, SaltLength: 20}
	if len(params) == 0 {
		return alg, nil
	}

	var p pssParameters
	if rest, err := asn1.Unmarshal(params, &p); err != nil || len(rest) > 0 {
		return alg, fmt.Errorf("%w: RSASSA-PSS parameters", ErrSignatureInvalid)
	}
	if len(p.Hash.Algorithm) > 0 {
		h, err := DigestHash(p.Hash.Algorithm)
		if err != nil {
			return alg, err
		}
		alg.Hash = h
	}
	alg.SaltLength = p.SaltLength
	return alg, nil
}
