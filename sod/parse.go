package sod

import (
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/mynextid/sod-zk/der"
)

var (
	tagContext0 = cbasn1.Tag(0).ContextSpecific().Constructed()
	tagContext1 = cbasn1.Tag(1).ContextSpecific().Constructed()
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", der.ErrMalformedEncoding, fmt.Sprintf(format, args...))
}

// Parse reads a DER ContentInfo carrying SignedData. Only the first
// SignerInfo is read; EF.SOD files have exactly one.
//
//	ContentInfo ::= SEQUENCE { contentType, [0] EXPLICIT SignedData }
//	SignedData  ::= SEQUENCE { version, digestAlgorithms SET,
//	                           encapContentInfo, [0] certificates OPTIONAL,
//	                           [1] crls OPTIONAL, signerInfos SET }
func Parse(contentInfo []byte) (*SignedMessage, error) {
	input := cryptobyte.String(contentInfo)

	var ci cryptobyte.String
	if !input.ReadASN1(&ci, cbasn1.SEQUENCE) {
		return nil, malformed("ContentInfo is not a SEQUENCE")
	}
	var contentType asn1.ObjectIdentifier
	if !ci.ReadASN1ObjectIdentifier(&contentType) {
		return nil, malformed("ContentInfo contentType")
	}
	if !contentType.Equal(OIDSignedData) {
		return nil, malformed("content type %s is not signedData", contentType)
	}

	var explicit, sd cryptobyte.String
	if !ci.ReadASN1(&explicit, tagContext0) || !explicit.ReadASN1(&sd, cbasn1.SEQUENCE) {
		return nil, malformed("SignedData")
	}

	msg := &SignedMessage{raw: contentInfo}
	if !sd.ReadASN1Integer(&msg.Version) {
		return nil, malformed("SignedData version")
	}

	var digestAlgs cryptobyte.String
	if !sd.ReadASN1(&digestAlgs, cbasn1.SET) {
		return nil, malformed("SignedData digestAlgorithms")
	}
	for !digestAlgs.Empty() {
		var el cryptobyte.String
		if !digestAlgs.ReadASN1Element(&el, cbasn1.SEQUENCE) {
			return nil, malformed("digestAlgorithms entry")
		}
		alg, err := parseAlgorithmIdentifier(el)
		if err != nil {
			return nil, err
		}
		msg.DigestAlgorithms = append(msg.DigestAlgorithms, alg)
	}

	if err := parseEncapsulatedContent(&sd, msg); err != nil {
		return nil, err
	}

	var certs cryptobyte.String
	var hasCerts bool
	if !sd.ReadOptionalASN1(&certs, &hasCerts, tagContext0) {
		return nil, malformed("SignedData certificates")
	}
	for !certs.Empty() {
		var el cryptobyte.String
		var tag cbasn1.Tag
		if !certs.ReadAnyASN1Element(&el, &tag) {
			return nil, malformed("certificates entry")
		}
		if tag != cbasn1.SEQUENCE {
			// attribute and other certificate formats are not used in a SOD
			continue
		}
		ref, err := NewCertificateRef(el)
		if err != nil {
			return nil, fmt.Errorf("certificate %d: %w", len(msg.Certificates), err)
		}
		msg.Certificates = append(msg.Certificates, ref)
	}

	if !sd.SkipOptionalASN1(tagContext1) {
		return nil, malformed("SignedData crls")
	}

	var signerInfos, si cryptobyte.String
	if !sd.ReadASN1(&signerInfos, cbasn1.SET) {
		return nil, malformed("SignedData signerInfos")
	}
	if signerInfos.Empty() {
		return nil, fmt.Errorf("%w: SignedData has no signerInfo", der.ErrFieldNotFound)
	}
	if !signerInfos.ReadASN1(&si, cbasn1.SEQUENCE) {
		return nil, malformed("signerInfo")
	}
	if err := parseSignerInfo(si, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func parseEncapsulatedContent(sd *cryptobyte.String, msg *SignedMessage) error {
	var encap cryptobyte.String
	if !sd.ReadASN1(&encap, cbasn1.SEQUENCE) {
		return malformed("encapContentInfo")
	}
	if !encap.ReadASN1ObjectIdentifier(&msg.EContentType) {
		return malformed("eContentType")
	}

	var explicit cryptobyte.String
	var present bool
	if !encap.ReadOptionalASN1(&explicit, &present, tagContext0) {
		return malformed("eContent")
	}
	if !present {
		return nil
	}
	var octets cryptobyte.String
	if !explicit.ReadASN1(&octets, cbasn1.OCTET_STRING) {
		return malformed("eContent is not a primitive OCTET STRING")
	}
	msg.EContent = []byte(octets)
	return nil
}

//	SignerInfo ::= SEQUENCE { version, sid, digestAlgorithm,
//	                          [0] signedAttrs OPTIONAL, signatureAlgorithm,
//	                          signature OCTET STRING, [1] unsignedAttrs OPTIONAL }
func parseSignerInfo(si cryptobyte.String, msg *SignedMessage) error {
	var version int
	if !si.ReadASN1Integer(&version) {
		return malformed("signerInfo version")
	}

	var sid cryptobyte.String
	var sidTag cbasn1.Tag
	if !si.ReadAnyASN1Element(&sid, &sidTag) {
		return malformed("signerInfo sid")
	}
	msg.SignerIdentifier = []byte(sid)

	var el cryptobyte.String
	if !si.ReadASN1Element(&el, cbasn1.SEQUENCE) {
		return malformed("signerInfo digestAlgorithm")
	}
	alg, err := parseAlgorithmIdentifier(el)
	if err != nil {
		return err
	}
	msg.DigestAlgorithm = alg

	if si.PeekASN1Tag(tagContext0) {
		var attrs cryptobyte.String
		if !si.ReadASN1Element(&attrs, tagContext0) {
			return malformed("signedAttrs")
		}
		msg.SignedAttrs = []byte(attrs)
		if err := parseAttributes(attrs, msg); err != nil {
			return err
		}
	}

	if !si.ReadASN1Element(&el, cbasn1.SEQUENCE) {
		return malformed("signerInfo signatureAlgorithm")
	}
	if msg.SignatureAlgorithm, err = parseAlgorithmIdentifier(el); err != nil {
		return err
	}

	var sig cryptobyte.String
	if !si.ReadASN1(&sig, cbasn1.OCTET_STRING) {
		return malformed("signerInfo signature")
	}
	msg.Signature = []byte(sig)
	return nil
}

func parseAttributes(el cryptobyte.String, msg *SignedMessage) error {
	var body cryptobyte.String
	if !el.ReadASN1(&body, tagContext0) {
		return malformed("signedAttrs")
	}

	for !body.Empty() {
		var attr, values cryptobyte.String
		var a Attribute
		if !body.ReadASN1(&attr, cbasn1.SEQUENCE) ||
			!attr.ReadASN1ObjectIdentifier(&a.Type) ||
			!attr.ReadASN1(&values, cbasn1.SET) {
			return malformed("signed attribute %d", len(msg.Attributes))
		}
		for !values.Empty() {
			var v cryptobyte.String
			var tag cbasn1.Tag
			if !values.ReadAnyASN1Element(&v, &tag) {
				return malformed("signed attribute %s value", a.Type)
			}
			a.Values = append(a.Values, []byte(v))
		}

		if a.Type.Equal(OIDMessageDigest) {
			if msg.MessageDigest != nil || len(a.Values) != 1 {
				return malformed("messageDigest must be a single valued attribute present once")
			}
			v := cryptobyte.String(a.Values[0])
			var digest cryptobyte.String
			if !v.ReadASN1(&digest, cbasn1.OCTET_STRING) {
				return malformed("messageDigest is not an OCTET STRING")
			}
			msg.MessageDigest = []byte(digest)
		}
		msg.Attributes = append(msg.Attributes, a)
	}
	return nil
}

func parseAlgorithmIdentifier(el []byte) (AlgorithmIdentifier, error) {
	s := cryptobyte.String(el)
	var body cryptobyte.String
	var alg AlgorithmIdentifier
	if !s.ReadASN1(&body, cbasn1.SEQUENCE) || !body.ReadASN1ObjectIdentifier(&alg.Algorithm) {
		return alg, malformed("AlgorithmIdentifier")
	}
	if !body.Empty() {
		var params cryptobyte.String
		var tag cbasn1.Tag
		if !body.ReadAnyASN1Element(&params, &tag) {
			return alg, malformed("AlgorithmIdentifier %s parameters", alg.Algorithm)
		}
		alg.Parameters = []byte(params)
	}
	return alg, nil
}
