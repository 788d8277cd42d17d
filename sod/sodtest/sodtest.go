// Package sodtest builds synthetic document security objects for tests: a
// self-signed CSCA root, a document signer certificate issued by it, an LDS
// security object and the CMS SignedData that ties them together.
package sodtest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"
	"slices"
	"testing"
	"time"
)

// DefaultReference is a TD3 machine readable zone, the usual content of DG1.
var DefaultReference = []byte("P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<" +
	"L898902C36UTO7408122F1204159ZE184226B<<<<<10")

// KeyType selects the document signer key.
type KeyType int

const (
	RSA2048 KeyType = iota
	RSA4096
	ECDSAP256
)

// SignatureOID selects how the SignerInfo names an RSA signature algorithm.
type SignatureOID int

const (
	SHA256WithRSA SignatureOID = iota
	// RSAEncryption names only the key type; the hash comes from the
	// digestAlgorithm, as in many issued passports.
	RSAEncryption
	RSAPSS
)

// Options changes the generated SOD. The zero value gives a valid SOD with
// an RSA-2048 document signer.
type Options struct {
	Key          KeyType
	SignatureOID SignatureOID

	// Reference is hashed into DG1. Defaults to DefaultReference.
	Reference []byte
	// OmitReference leaves the reference hash out of the LDS object.
	OmitReference bool

	OmitSignedAttributes bool
	OmitMessageDigest    bool
	OmitContent          bool
	// MessageDigest replaces the signed messageDigest value.
	MessageDigest []byte
	// EContent replaces the LDS security object.
	EContent []byte

	CorruptCertificateSignature bool
	CorruptSignature            bool
}

// Fixture is a generated SOD with the keys and certificates behind it.
type Fixture struct {
	CSCA    *x509.Certificate
	CSCAKey *rsa.PrivateKey
	CSCAPEM []byte

	DS    *x509.Certificate
	DSRaw []byte
	DSKey crypto.Signer

	Reference   []byte
	EContent    []byte
	SignedAttrs []byte // SET OF form, as signed
	Signature   []byte
	ContentInfo []byte
	Blob        []byte // ContentInfo with the container prefix
}

// Base64 returns the SOD as it is handed to the verifier.
func (f *Fixture) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Blob)
}

// ReferenceBase64 returns the reference data in base64.
func (f *Fixture) ReferenceBase64() string {
	return base64.StdEncoding.EncodeToString(f.Reference)
}

// Wrap prepends the EF.SOD container prefix to a ContentInfo and base64
// encodes it, for tests that tamper with the ContentInfo bytes.
func Wrap(contentInfo []byte) string {
	blob := append([]byte{0x77, 0x82, byte(len(contentInfo) >> 8), byte(len(contentInfo))}, contentInfo...)
	return base64.StdEncoding.EncodeToString(blob)
}

// MustNew is New for tests.
func MustNew(tb testing.TB, opts Options) *Fixture {
	tb.Helper()
	f, err := New(opts)
	if err != nil {
		tb.Fatalf("sodtest: %v", err)
	}
	return f
}

// New generates fresh keys and a SOD according to opts.
func New(opts Options) (*Fixture, error) {
	f := &Fixture{Reference: opts.Reference}
	if f.Reference == nil {
		f.Reference = DefaultReference
	}

	if err := f.issueCertificates(opts); err != nil {
		return nil, err
	}

	f.EContent = opts.EContent
	if f.EContent == nil {
		lds, err := buildLDS(f.Reference, opts.OmitReference)
		if err != nil {
			return nil, fmt.Errorf("lds security object: %w", err)
		}
		f.EContent = lds
	}

	if err := f.sign(opts); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fixture) issueCertificates(opts Options) error {
	cscaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("csca key: %w", err)
	}
	cscaTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "CSCA Utopia", Country: []string{"UT"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	cscaRaw, err := x509.CreateCertificate(rand.Reader, cscaTmpl, cscaTmpl, &cscaKey.PublicKey, cscaKey)
	if err != nil {
		return fmt.Errorf("csca certificate: %w", err)
	}
	if f.CSCA, err = x509.ParseCertificate(cscaRaw); err != nil {
		return err
	}
	f.CSCAKey = cscaKey
	f.CSCAPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cscaRaw})

	switch opts.Key {
	case RSA4096:
		f.DSKey, err = rsa.GenerateKey(rand.Reader, 4096)
	case ECDSAP256:
		f.DSKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		f.DSKey, err = rsa.GenerateKey(rand.Reader, 2048)
	}
	if err != nil {
		return fmt.Errorf("document signer key: %w", err)
	}

	dsTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject:      pkix.Name{CommonName: "Document Signer 7", Country: []string{"UT"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	dsRaw, err := x509.CreateCertificate(rand.Reader, dsTmpl, f.CSCA, f.DSKey.Public(), cscaKey)
	if err != nil {
		return fmt.Errorf("document signer certificate: %w", err)
	}
	if f.DS, err = x509.ParseCertificate(dsRaw); err != nil {
		return err
	}
	f.DSRaw = slices.Clone(dsRaw)
	if opts.CorruptCertificateSignature {
		// last byte of the signatureValue BIT STRING
		f.DSRaw[len(f.DSRaw)-1] ^= 0x01
	}
	return nil
}

func buildLDS(reference []byte, omitReference bool) ([]byte, error) {
	dg1 := sha256.Sum256(reference)
	if omitReference {
		dg1 = sha256.Sum256(append([]byte("other"), reference...))
	}
	dg2 := sha256.Sum256([]byte("encoded face image"))
	dg14 := sha256.Sum256([]byte("security infos"))

	return asn1.Marshal(ldsSecurityObject{
		Version:       1,
		HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256},
		DataGroups: []dataGroupHash{
			{Number: 1, Hash: dg1[:]},
			{Number: 2, Hash: dg2[:]},
			{Number: 14, Hash: dg14[:]},
		},
		VersionInfo: ldsVersionInfo{LDSVersion: "0108", UnicodeVersion: "040000"},
	})
}

func (f *Fixture) sign(opts Options) error {
	contentHash := sha256.Sum256(f.EContent)
	digest := contentHash[:]
	if opts.MessageDigest != nil {
		digest = opts.MessageDigest
	}

	signed := f.EContent
	if !opts.OmitSignedAttributes {
		attrs := []attribute{
			{Type: oidContentType, Values: asn1.RawValue{FullBytes: tlv(0x31, mustMarshal(oidLDSSecurityObject))}},
			{Type: oidSigningTime, Values: asn1.RawValue{FullBytes: tlv(0x31, mustMarshal(time.Now().UTC()))}},
		}
		if !opts.OmitMessageDigest {
			attrs = append(attrs, attribute{
				Type:   oidMessageDigest,
				Values: asn1.RawValue{FullBytes: tlv(0x31, mustMarshal(digest))},
			})
		}
		set, err := marshalAttributes(attrs)
		if err != nil {
			return fmt.Errorf("marshal signed attrs: %w", err)
		}
		f.SignedAttrs = set
		signed = set
	}

	sigAlg, sig, err := f.signBytes(signed, opts)
	if err != nil {
		return err
	}
	if opts.CorruptSignature {
		sig[len(sig)/2] ^= 0xff
	}
	f.Signature = sig

	// SignerInfo
	version := mustMarshal(1)
	sid := mustMarshal(issuerAndSerial{
		Issuer:       asn1.RawValue{FullBytes: f.DS.RawIssuer},
		SerialNumber: f.DS.SerialNumber,
	})
	digestAlg := mustMarshal(pkix.AlgorithmIdentifier{Algorithm: oidSHA256})
	var signedAttrs []byte
	if f.SignedAttrs != nil {
		signedAttrs = slices.Clone(f.SignedAttrs)
		signedAttrs[0] = 0xa0 // [0] IMPLICIT
	}
	signerInfo := tlv(0x30, version, sid, digestAlg, signedAttrs, sigAlg, mustMarshal(sig))

	// EncapContentInfo, eContent is [0] EXPLICIT OCTET STRING
	var eContent []byte
	if !opts.OmitContent {
		eContent = tlv(0xa0, mustMarshal(f.EContent))
	}
	encap := tlv(0x30, mustMarshal(oidLDSSecurityObject), eContent)

	signedData := tlv(0x30,
		mustMarshal(3),
		tlv(0x31, digestAlg),
		encap,
		tlv(0xa0, f.DSRaw),
		tlv(0x31, signerInfo),
	)
	f.ContentInfo = tlv(0x30, mustMarshal(oidSignedData), tlv(0xa0, signedData))

	if len(f.ContentInfo) > 0xffff {
		return fmt.Errorf("content info of %d bytes does not fit the container prefix", len(f.ContentInfo))
	}
	f.Blob = append([]byte{0x77, 0x82, byte(len(f.ContentInfo) >> 8), byte(len(f.ContentInfo))}, f.ContentInfo...)
	return nil
}

// signBytes signs SHA-256(msg) and returns the signatureAlgorithm element
// with the signature.
func (f *Fixture) signBytes(msg []byte, opts Options) ([]byte, []byte, error) {
	hash := sha256.Sum256(msg)

	switch key := f.DSKey.(type) {
	case *ecdsa.PrivateKey:
		sig, err := ecdsa.SignASN1(rand.Reader, key, hash[:])
		if err != nil {
			return nil, nil, fmt.Errorf("ecdsa sign: %w", err)
		}
		return mustMarshal(pkix.AlgorithmIdentifier{Algorithm: oidECDSAWithSHA256}), sig, nil

	case *rsa.PrivateKey:
		if opts.SignatureOID == RSAPSS {
			sig, err := rsa.SignPSS(rand.Reader, key, crypto.SHA256, hash[:], &rsa.PSSOptions{SaltLength: 32})
			if err != nil {
				return nil, nil, fmt.Errorf("rsa-pss sign: %w", err)
			}
			sha256Alg := pkix.AlgorithmIdentifier{Algorithm: oidSHA256}
			params := mustMarshal(pssParameters{
				Hash:       sha256Alg,
				MGF:        pkix.AlgorithmIdentifier{Algorithm: oidMGF1, Parameters: asn1.RawValue{FullBytes: mustMarshal(sha256Alg)}},
				SaltLength: 32,
			})
			alg := pkix.AlgorithmIdentifier{Algorithm: oidRSASSAPSS, Parameters: asn1.RawValue{FullBytes: params}}
			return mustMarshal(alg), sig, nil
		}

		sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
		if err != nil {
			return nil, nil, fmt.Errorf("rsa sign: %w", err)
		}
		oid := oidSHA256WithRSA
		if opts.SignatureOID == RSAEncryption {
			oid = oidRSAEncryption
		}
		return mustMarshal(pkix.AlgorithmIdentifier{Algorithm: oid, Parameters: asn1.NullRawValue}), sig, nil
	}
	return nil, nil, fmt.Errorf("unsupported document signer key %T", f.DSKey)
}
