package sod

import (
	"bytes"
	"encoding/asn1"
	"fmt"

	"github.com/mynextid/sod-zk/der"
)

// DataGroupHash is one entry of the LDS security object. Range locates the
// hash value inside the eContent it was parsed from.
type DataGroupHash struct {
	Number int
	Hash   []byte
	Range  der.Range
}

// LDSSecurityObject lists the data group hashes signed by the document
// signer.
//
//	LDSSecurityObject ::= SEQUENCE {
//	    version             INTEGER,
//	    hashAlgorithm       AlgorithmIdentifier,
//	    dataGroupHashValues SEQUENCE OF DataGroupHash,
//	    ldsVersionInfo      LDSVersionInfo OPTIONAL }
type LDSSecurityObject struct {
	Version        int
	HashAlgorithm  AlgorithmIdentifier
	DataGroups     []DataGroupHash
	LDSVersion     string
	UnicodeVersion string
}

// ParseLDSSecurityObject decodes the eContent of a SOD.
func ParseLDSSecurityObject(eContent []byte) (*LDSSecurityObject, error) {
	root, next, err := der.Decode(eContent, 0)
	if err != nil {
		return nil, err
	}
	if next != len(eContent) {
		return nil, malformed("%d trailing bytes after LDSSecurityObject", len(eContent)-next)
	}
	seq, ok := root.(*der.Constructed)
	if !ok || seq.Tag != der.TagSequence || len(seq.Children) < 3 {
		return nil, malformed("LDSSecurityObject is not a SEQUENCE of at least three elements")
	}

	lds := &LDSSecurityObject{}
	if lds.Version, err = der.Int(eContent, seq.Children[0]); err != nil {
		return nil, fmt.Errorf("LDSSecurityObject version: %w", err)
	}
	if lds.HashAlgorithm, err = parseAlgorithmIdentifier(seq.Children[1].Element().Bytes(eContent)); err != nil {
		return nil, fmt.Errorf("LDSSecurityObject hashAlgorithm: %w", err)
	}

	groups, ok := seq.Children[2].(*der.Constructed)
	if !ok || groups.Tag != der.TagSequence {
		return nil, malformed("dataGroupHashValues is not a SEQUENCE")
	}
	for i, g := range groups.Children {
		dg, err := parseDataGroupHash(eContent, g)
		if err != nil {
			return nil, fmt.Errorf("dataGroupHashValues[%d]: %w", i, err)
		}
		lds.DataGroups = append(lds.DataGroups, dg)
	}

	if len(seq.Children) > 3 {
		var info struct {
			LDSVersion     string
			UnicodeVersion string
		}
		if _, err := asn1.Unmarshal(seq.Children[3].Element().Bytes(eContent), &info); err != nil {
			return nil, malformed("ldsVersionInfo: %v", err)
		}
		lds.LDSVersion, lds.UnicodeVersion = info.LDSVersion, info.UnicodeVersion
	}
	return lds, nil
}

func parseDataGroupHash(buf []byte, n der.Node) (DataGroupHash, error) {
	entry, ok := n.(*der.Constructed)
	if !ok || entry.Tag != der.TagSequence || len(entry.Children) != 2 {
		return DataGroupHash{}, malformed("DataGroupHash is not a SEQUENCE of two elements")
	}
	number, err := der.Int(buf, entry.Children[0])
	if err != nil {
		return DataGroupHash{}, err
	}
	value := entry.Children[1]
	if value.Head().Tag != der.TagOctetString {
		return DataGroupHash{}, malformed("dataGroupHashValue is not an OCTET STRING")
	}
	return DataGroupHash{
		Number: number,
		Hash:   value.Content().Bytes(buf),
		Range:  value.Content(),
	}, nil
}

// DataGroupForHash returns the data group whose hash equals hash.
func (l *LDSSecurityObject) DataGroupForHash(hash []byte) (DataGroupHash, bool) {
	for _, dg := range l.DataGroups {
		if bytes.Equal(dg.Hash, hash) {
			return dg, true
		}
	}
	return DataGroupHash{}, false
}

// DataGroupAt returns the data group whose hash value range contains r.
func (l *LDSSecurityObject) DataGroupAt(r der.Range) (DataGroupHash, bool) {
	for _, dg := range l.DataGroups {
		if dg.Range.Contains(r) {
			return dg, true
		}
	}
	return DataGroupHash{}, false
}
