package sod

import (
	"crypto/x509"
	"fmt"

	"github.com/mynextid/sod-zk/der"
	"github.com/mynextid/sod-zk/locator"
)

// CertificateRef is a view over a DER certificate built from the TLV tree.
// It gives access to the exact signed bytes, which x509.Certificate only
// partly exposes.
//
//	Certificate ::= SEQUENCE { tbsCertificate, signatureAlgorithm, signatureValue BIT STRING }
type CertificateRef struct {
	raw       []byte
	tbs       der.Node
	sigAlg    AlgorithmIdentifier
	signature der.Range
}

// NewCertificateRef decodes raw. raw is kept, not copied.
func NewCertificateRef(raw []byte) (*CertificateRef, error) {
	root, next, err := der.Decode(raw, 0)
	if err != nil {
		return nil, err
	}
	if next != len(raw) {
		return nil, malformed("%d trailing bytes after certificate", len(raw)-next)
	}
	cert, ok := root.(*der.Constructed)
	if !ok || cert.Tag != der.TagSequence || len(cert.Children) != 3 {
		return nil, malformed("certificate is not a SEQUENCE of three elements")
	}

	tbs, alg, sig := cert.Children[0], cert.Children[1], cert.Children[2]
	if tbs.Head().Tag != der.TagSequence {
		return nil, malformed("tbsCertificate is not a SEQUENCE")
	}

	sigAlg, err := parseAlgorithmIdentifier(alg.Element().Bytes(raw))
	if err != nil {
		return nil, fmt.Errorf("signatureAlgorithm: %w", err)
	}

	if sig.Head().Tag != der.TagBitString || sig.Content().Len() == 0 {
		return nil, malformed("signatureValue is not a BIT STRING")
	}
	value := sig.Content()
	if unused := raw[value.Start]; unused != 0 {
		return nil, malformed("signatureValue has %d unused bits", unused)
	}

	return &CertificateRef{
		raw:       raw,
		tbs:       tbs,
		sigAlg:    sigAlg,
		signature: der.Range{Start: value.Start + 1, End: value.End},
	}, nil
}

// Raw returns the full certificate encoding.
func (c *CertificateRef) Raw() []byte { return c.raw }

// TBS returns the tbsCertificate element, the bytes covered by the issuer's
// signature.
func (c *CertificateRef) TBS() []byte { return c.tbs.Element().Bytes(c.raw) }

// TBSRange returns the position of the tbsCertificate inside Raw.
func (c *CertificateRef) TBSRange() der.Range { return c.tbs.Element() }

func (c *CertificateRef) SignatureAlgorithm() AlgorithmIdentifier { return c.sigAlg }

// Issuer returns the raw issuer Name element.
func (c *CertificateRef) Issuer() ([]byte, error) {
	return c.tbsField(2)
}

// Subject returns the raw subject Name element.
func (c *CertificateRef) Subject() ([]byte, error) {
	return c.tbsField(4)
}

// tbsField returns a TBS field counted from serialNumber (0), so the index
// does not depend on whether the optional version is present.
func (c *CertificateRef) tbsField(i int) ([]byte, error) {
	fields := c.tbs.(*der.Constructed).Children
	if len(fields) > 0 && fields[0].Head().Tag == der.TagContext0 {
		fields = fields[1:]
	}
	if i >= len(fields) {
		return nil, fmt.Errorf("%w: tbsCertificate has %d fields after version", der.ErrFieldNotFound, len(fields))
	}
	return fields[i].Element().Bytes(c.raw), nil
}

// SignatureValue returns the issuer's signature without the unused-bits byte.
func (c *CertificateRef) SignatureValue() []byte { return c.signature.Bytes(c.raw) }

// SubjectPublicKeyInfo returns the SPKI element, as expected by key import.
func (c *CertificateRef) SubjectPublicKeyInfo() ([]byte, error) {
	r, err := locator.SubjectPublicKeyInfo(c.tbs)
	if err != nil {
		return nil, err
	}
	return r.Bytes(c.raw), nil
}

// PublicKey returns the subject public key range relative to the start of
// TBS(), checked by both locator strategies.
func (c *CertificateRef) PublicKey() (der.Range, error) {
	return locator.Locate(c.TBS())
}

// X509 parses the certificate with crypto/x509. It is used for display and
// never for verification decisions.
func (c *CertificateRef) X509() (*x509.Certificate, error) {
	return x509.ParseCertificate(c.raw)
}
