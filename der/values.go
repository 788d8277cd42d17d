package der

import (
	"encoding/asn1"
	"math"
)

// OID renders the content of an OBJECT IDENTIFIER element in dotted form.
func OID(buf []byte, n Node) (string, error) {
	h := n.Head()
	if h.Tag != TagOID {
		return "", malformed(h.Offset, "expected OBJECT IDENTIFIER, found tag 0x%02x", h.Tag)
	}
	var oid asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(n.Element().Bytes(buf), &oid); err != nil {
		return "", malformed(h.Offset, "object identifier: %v", err)
	}
	return oid.String(), nil
}

// Int decodes a non-negative INTEGER that fits in an int, such as a version
// or a data group number.
func Int(buf []byte, n Node) (int, error) {
	h := n.Head()
	if h.Tag != TagInteger {
		return 0, malformed(h.Offset, "expected INTEGER, found tag 0x%02x", h.Tag)
	}
	value := n.Content().Bytes(buf)
	if len(value) == 0 {
		return 0, malformed(h.Offset, "empty INTEGER")
	}
	if value[0]&0x80 != 0 {
		return 0, malformed(h.Offset, "negative INTEGER")
	}
	var v uint64
	for _, b := range value {
		if v > math.MaxInt32>>8 {
			return 0, malformed(h.Offset, "INTEGER does not fit in 32 bits")
		}
		v = v<<8 | uint64(b)
	}
	return int(v), nil
}
