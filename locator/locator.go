// Package locator finds the subject public key inside a DER encoded
// TBSCertificate.
//
// Two independent strategies are provided. FromTree walks a decoded der.Node
// tree; Scan only does tag and length arithmetic over the raw bytes. Both
// return the same range for well formed input, and Locate runs both and
// rejects the certificate when they disagree.
//
// The certificate profile is fixed: subjectPublicKeyInfo is the seventh
// child of the TBS SEQUENCE, which holds for v3 certificates that carry an
// explicit version field.
package locator

import (
	"fmt"

	"github.com/mynextid/sod-zk/der"
)

const (
	// SPKIIndex is the position of subjectPublicKeyInfo among the TBS children:
	// version, serialNumber, signature, issuer, validity, subject, spki.
	SPKIIndex = 6

	// keyIndex is the position of subjectPublicKey inside the SPKI SEQUENCE.
	keyIndex = 1
)

// FromTree returns the range of the subject public key bytes inside buf,
// excluding the BIT STRING unused-bits byte. tbs must have been decoded from
// buf. When requireAligned is set a non-zero unused-bits count or an empty
// BIT STRING is rejected as malformed.
func FromTree(buf []byte, tbs der.Node, requireAligned bool) (der.Range, error) {
	spki, err := spkiNode(tbs)
	if err != nil {
		return der.Range{}, err
	}

	key, _ := der.Child(spki, keyIndex)
	bits, ok := key.(*der.Primitive)
	if !ok || bits.Tag != der.TagBitString {
		return der.Range{}, fmt.Errorf("%w: subjectPublicKey at offset %d has tag 0x%02x, want BIT STRING",
			der.ErrFieldNotFound, key.Head().Offset, key.Head().Tag)
	}

	content := bits.Value
	if content.Len() == 0 {
		if requireAligned {
			return der.Range{}, fmt.Errorf("%w: empty subjectPublicKey at offset %d", der.ErrMalformedEncoding, bits.Offset)
		}
		return content, nil
	}
	if unused := buf[content.Start]; requireAligned && unused != 0 {
		return der.Range{}, fmt.Errorf("%w: subjectPublicKey at offset %d has %d unused bits",
			der.ErrMalformedEncoding, bits.Offset, unused)
	}
	return der.Range{Start: content.Start + 1, End: content.End}, nil
}

// SubjectPublicKey decodes tbs and returns the aligned subject public key
// range.
func SubjectPublicKey(tbs []byte) (der.Range, error) {
	root, _, err := der.Decode(tbs, 0)
	if err != nil {
		return der.Range{}, err
	}
	return FromTree(tbs, root, true)
}

// SubjectPublicKeyInfo returns the element range of the SPKI SEQUENCE, which
// is what key import functions expect.
func SubjectPublicKeyInfo(tbs der.Node) (der.Range, error) {
	spki, err := spkiNode(tbs)
	if err != nil {
		return der.Range{}, err
	}
	return spki.Element(), nil
}

func spkiNode(tbs der.Node) (der.Node, error) {
	seq, ok := tbs.(*der.Constructed)
	if !ok || seq.Tag != der.TagSequence {
		return nil, fmt.Errorf("%w: TBSCertificate is not a SEQUENCE", der.ErrFieldNotFound)
	}
	if len(seq.Children) <= SPKIIndex {
		return nil, fmt.Errorf("%w: TBSCertificate has %d fields, subjectPublicKeyInfo expected at index %d",
			der.ErrFieldNotFound, len(seq.Children), SPKIIndex)
	}
	spki, ok := seq.Children[SPKIIndex].(*der.Constructed)
	if !ok || spki.Tag != der.TagSequence {
		return nil, fmt.Errorf("%w: TBSCertificate field %d is not a SEQUENCE",
			der.ErrFieldNotFound, SPKIIndex)
	}
	if len(spki.Children) <= keyIndex {
		return nil, fmt.Errorf("%w: subjectPublicKeyInfo has %d children", der.ErrFieldNotFound, len(spki.Children))
	}
	return spki, nil
}

// Locate runs both strategies over tbs and returns the key range they agree
// on. A disagreement means the encoding is ambiguous and is reported as
// malformed.
func Locate(tbs []byte) (der.Range, error) {
	fromTree, err := SubjectPublicKey(tbs)
	if err != nil {
		return der.Range{}, err
	}
	scanned, err := Scan(tbs)
	if err != nil {
		return der.Range{}, err
	}
	if fromTree != scanned {
		return der.Range{}, fmt.Errorf("%w: locators disagree on subject public key: tree %s, scan %s",
			der.ErrMalformedEncoding, fromTree, scanned)
	}
	return fromTree, nil
}

// RSAModulus returns the range of the modulus inside an RSAPublicKey found at
// key, with the leading sign byte stripped. Ranges are absolute offsets into
// tbs.
func RSAModulus(tbs []byte, key der.Range) (der.Range, error) {
	if key.Start < 0 || key.End > len(tbs) || key.Start >= key.End {
		return der.Range{}, fmt.Errorf("%w: key range %s outside of TBS", der.ErrMalformedEncoding, key)
	}
	rsaKey, _, err := der.Decode(tbs[:key.End:key.End], key.Start)
	if err != nil {
		return der.Range{}, fmt.Errorf("RSAPublicKey: %w", err)
	}
	n, err := der.Child(rsaKey, 0)
	if err != nil {
		return der.Range{}, fmt.Errorf("RSAPublicKey modulus: %w", err)
	}
	if n.Head().Tag != der.TagInteger || n.Content().Len() == 0 {
		return der.Range{}, fmt.Errorf("%w: RSAPublicKey modulus is not an INTEGER", der.ErrFieldNotFound)
	}

	r := n.Content()
	if r.Len() > 1 && tbs[r.Start] == 0x00 {
		r.Start++
	}
	return r, nil
}
