package locator

import (
	"fmt"

	"github.com/mynextid/sod-zk/der"
)

// Scan locates the subject public key with tag and length arithmetic only.
// It shares no code with the tree decoder so the two can be checked against
// each other.
func Scan(tbs []byte) (der.Range, error) {
	s := scanner{buf: tbs}

	// TBSCertificate SEQUENCE
	tag, content, end, err := s.header(0, len(tbs))
	if err != nil {
		return der.Range{}, err
	}
	if tag != der.TagSequence {
		return der.Range{}, fmt.Errorf("%w: TBSCertificate is not a SEQUENCE", der.ErrFieldNotFound)
	}

	// skip version, serialNumber, signature, issuer, validity, subject
	pos, err := s.skipChildren(content, end, SPKIIndex)
	if err != nil {
		return der.Range{}, err
	}

	tag, spkiContent, spkiEnd, err := s.header(pos, end)
	if err != nil {
		return der.Range{}, err
	}
	if tag != der.TagSequence {
		return der.Range{}, fmt.Errorf("%w: TBSCertificate field %d is not a SEQUENCE", der.ErrFieldNotFound, SPKIIndex)
	}

	// skip the AlgorithmIdentifier
	pos, err = s.skipChildren(spkiContent, spkiEnd, keyIndex)
	if err != nil {
		return der.Range{}, err
	}

	tag, keyContent, keyEnd, err := s.header(pos, spkiEnd)
	if err != nil {
		return der.Range{}, err
	}
	if tag != der.TagBitString {
		return der.Range{}, fmt.Errorf("%w: subjectPublicKey at offset %d has tag 0x%02x, want BIT STRING",
			der.ErrFieldNotFound, pos, tag)
	}
	if keyContent == keyEnd {
		return der.Range{}, fmt.Errorf("%w: empty subjectPublicKey at offset %d", der.ErrMalformedEncoding, pos)
	}
	if unused := tbs[keyContent]; unused != 0 {
		return der.Range{}, fmt.Errorf("%w: subjectPublicKey at offset %d has %d unused bits",
			der.ErrMalformedEncoding, pos, unused)
	}
	return der.Range{Start: keyContent + 1, End: keyEnd}, nil
}

// CertificateTBS returns the element range of the TBSCertificate inside a
// full certificate.
func CertificateTBS(cert []byte) (der.Range, error) {
	s := scanner{buf: cert}
	tag, content, end, err := s.header(0, len(cert))
	if err != nil {
		return der.Range{}, err
	}
	if tag != der.TagSequence {
		return der.Range{}, fmt.Errorf("%w: certificate is not a SEQUENCE", der.ErrMalformedEncoding)
	}
	tag, _, tbsEnd, err := s.header(content, end)
	if err != nil {
		return der.Range{}, err
	}
	if tag != der.TagSequence {
		return der.Range{}, fmt.Errorf("%w: TBSCertificate is not a SEQUENCE", der.ErrMalformedEncoding)
	}
	return der.Range{Start: content, End: tbsEnd}, nil
}

type scanner struct {
	buf []byte
}

// skipChildren steps over n sibling elements starting at pos and returns the
// offset of the next one. Running out of siblings before end is reached
// means the field being looked for is absent.
func (s scanner) skipChildren(pos, end, n int) (int, error) {
	for count := 0; count < n; count++ {
		if pos >= end {
			return 0, fmt.Errorf("%w: only %d fields before offset %d, need %d", der.ErrFieldNotFound, count, end, n+1)
		}
		_, _, next, err := s.header(pos, end)
		if err != nil {
			return 0, err
		}
		pos = next
	}
	if pos >= end {
		return 0, fmt.Errorf("%w: only %d fields before offset %d, need %d", der.ErrFieldNotFound, n, end, n+1)
	}
	return pos, nil
}

// header reads the TLV header at pos and returns the tag, the offset of the
// content and the offset just past the element. limit is the end of the
// enclosing element.
func (s scanner) header(pos, limit int) (tag byte, content, end int, err error) {
	if pos+2 > limit {
		return 0, 0, 0, fmt.Errorf("%w: header at offset %d runs past offset %d", der.ErrMalformedEncoding, pos, limit)
	}
	tag = s.buf[pos]
	first := s.buf[pos+1]
	content = pos + 2

	var length int
	switch {
	case first < 0x80:
		length = int(first)
	case first == 0x80:
		return 0, 0, 0, fmt.Errorf("%w: indefinite length at offset %d", der.ErrMalformedEncoding, pos)
	default:
		n := int(first & 0x7f)
		if n > der.MaxLengthBytes || content+n > limit {
			return 0, 0, 0, fmt.Errorf("%w: bad length field at offset %d", der.ErrMalformedEncoding, pos)
		}
		var l uint64
		for _, b := range s.buf[content : content+n] {
			l = l<<8 | uint64(b)
		}
		if l > uint64(limit-content-n) {
			return 0, 0, 0, fmt.Errorf("%w: element at offset %d runs past offset %d", der.ErrMalformedEncoding, pos, limit)
		}
		length = int(l)
		content += n
	}

	end = content + length
	if end > limit {
		return 0, 0, 0, fmt.Errorf("%w: element at offset %d runs past offset %d", der.ErrMalformedEncoding, pos, limit)
	}
	return tag, content, end, nil
}
