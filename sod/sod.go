// Package sod reads the Security Object Document of an electronic identity
// document: a CMS SignedData structure whose encapsulated content lists the
// hashes of the document's data groups.
//
// Parsing only builds views. Every byte slice handed out by a SignedMessage
// or a CertificateRef aliases the buffer that was parsed, except where a
// method says it returns a copy.
package sod

import (
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mynextid/sod-zk/der"
)

// ContainerPrefixLen is the number of bytes that precede the ContentInfo in
// an EF.SOD file: the [APPLICATION 23] tag and a three byte long-form length.
const ContainerPrefixLen = 4

// ErrMissingAttribute is returned when an optional CMS component that the
// verification needs (signed attributes, message digest, encapsulated
// content) is absent.
var ErrMissingAttribute = errors.New("sod: missing attribute")

// AlgorithmIdentifier is an algorithm OID with its raw parameters element.
// Parameters is nil when absent.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters []byte
}

// Attribute is a CMS attribute with its values kept as raw DER elements.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values [][]byte
}

// SignedMessage is a read-only view of a CMS SignedData structure with a
// single signer.
type SignedMessage struct {
	Version          int
	DigestAlgorithms []AlgorithmIdentifier
	Certificates     []*CertificateRef

	// EContentType is the type of the encapsulated content. EContent is the
	// content of the eContent OCTET STRING, nil when the content is detached.
	EContentType asn1.ObjectIdentifier
	EContent     []byte

	// SignerIdentifier is the raw sid element of the SignerInfo.
	SignerIdentifier []byte
	DigestAlgorithm  AlgorithmIdentifier
	// SignedAttrs is the signed attributes element as found on the wire,
	// starting with the [0] IMPLICIT tag. Nil when absent.
	SignedAttrs        []byte
	Attributes         []Attribute
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte

	// MessageDigest is the value of the messageDigest signed attribute, nil
	// when absent.
	MessageDigest []byte

	raw []byte
}

// Raw returns the ContentInfo bytes the message was parsed from.
func (m *SignedMessage) Raw() []byte { return m.raw }

// SignedAttributesEncoded returns a copy of the signed attributes with the
// outer tag changed to SET OF (0x31). That re-tagged form is what the signer
// actually hashed and signed.
func (m *SignedMessage) SignedAttributesEncoded() []byte {
	if m.SignedAttrs == nil {
		return nil
	}
	out := make([]byte, len(m.SignedAttrs))
	copy(out, m.SignedAttrs)
	out[0] = der.TagSet
	return out
}

// Attribute returns the signed attribute of the given type.
func (m *SignedMessage) Attribute(oid asn1.ObjectIdentifier) (*Attribute, bool) {
	for i := range m.Attributes {
		if m.Attributes[i].Type.Equal(oid) {
			return &m.Attributes[i], true
		}
	}
	return nil, false
}

// SigningTime returns the signingTime attribute when present.
func (m *SignedMessage) SigningTime() (time.Time, bool) {
	attr, ok := m.Attribute(OIDSigningTime)
	if !ok || len(attr.Values) == 0 {
		return time.Time{}, false
	}
	var t time.Time
	if _, err := asn1.Unmarshal(attr.Values[0], &t); err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DocumentSigner returns the first embedded certificate, which in a SOD is
// the document signer certificate.
func (m *SignedMessage) DocumentSigner() (*CertificateRef, error) {
	if len(m.Certificates) == 0 {
		return nil, fmt.Errorf("%w: no certificates embedded in SignedData", der.ErrFieldNotFound)
	}
	return m.Certificates[0], nil
}

func (m *SignedMessage) RequireSignedAttributes() error {
	if m.SignedAttrs == nil {
		return fmt.Errorf("%w: signerInfo has no signed attributes", ErrMissingAttribute)
	}
	return nil
}

func (m *SignedMessage) RequireContent() error {
	if m.EContent == nil {
		return fmt.Errorf("%w: encapsulated content is absent", ErrMissingAttribute)
	}
	return nil
}

func (m *SignedMessage) RequireMessageDigest() error {
	if err := m.RequireSignedAttributes(); err != nil {
		return err
	}
	if m.MessageDigest == nil {
		return fmt.Errorf("%w: messageDigest", ErrMissingAttribute)
	}
	return nil
}

// Unwrap strips the fixed container prefix from a decoded EF.SOD blob and
// returns the ContentInfo that follows it.
func Unwrap(blob []byte) ([]byte, error) {
	if len(blob) <= ContainerPrefixLen {
		return nil, fmt.Errorf("%w: SOD blob of %d bytes is shorter than its %d byte prefix",
			der.ErrMalformedEncoding, len(blob), ContainerPrefixLen)
	}
	return blob[ContainerPrefixLen:], nil
}

// DecodeBase64 decodes s with the standard or URL alphabet, padded or not.
// Whitespace is ignored.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: base64: %v", der.ErrMalformedEncoding, lastErr)
}

// ParseBase64 decodes a base64 EF.SOD, strips its container prefix and
// parses the SignedData inside.
func ParseBase64(s string) (*SignedMessage, error) {
	blob, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	contentInfo, err := Unwrap(blob)
	if err != nil {
		return nil, err
	}
	return Parse(contentInfo)
}
