// Package der decodes DER/BER tag-length-value structures into an immutable
// tree of byte ranges over the input buffer.
//
// Only the subset needed for certificates and CMS SignedData is supported:
// single-byte tags and definite lengths. Indefinite lengths and long-form
// lengths of more than MaxLengthBytes octets are rejected.
package der

const (
	// MaxLengthBytes is the largest number of long-form length octets
	// accepted. Four octets keep every length inside a 32-bit integer, so a
	// length field never wraps silently on any platform.
	MaxLengthBytes = 4

	// MaxDepth bounds the nesting of constructed elements.
	MaxDepth = 64

	indefiniteLength = 0x80
)

// Decode decodes the element starting at start and returns it together with
// the offset of the first byte after it, so siblings can be decoded in turn.
func Decode(buf []byte, start int) (Node, int, error) {
	return decode(buf, start, len(buf), 0)
}

// DecodeAll decodes consecutive sibling elements until the end of buf.
func DecodeAll(buf []byte) ([]Node, error) {
	var nodes []Node
	for off := 0; off < len(buf); {
		n, next, err := Decode(buf, off)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		off = next
	}
	return nodes, nil
}

func decode(buf []byte, off, limit, depth int) (Node, int, error) {
	if depth > MaxDepth {
		return nil, 0, malformed(off, "nesting deeper than %d levels", MaxDepth)
	}

	h, err := readHeader(buf, off, limit)
	if err != nil {
		return nil, 0, err
	}
	end := h.Element().End

	if !IsConstructed(h.Tag) {
		return &Primitive{Header: h, Value: h.Content()}, end, nil
	}

	node := &Constructed{Header: h}
	for pos := h.Content().Start; pos < end; {
		// children are bounded by the parent, not by the buffer
		child, next, err := decode(buf, pos, end, depth+1)
		if err != nil {
			return nil, 0, err
		}
		node.Children = append(node.Children, child)
		pos = next
	}
	return node, end, nil
}

// readHeader reads the tag and length octets at off. limit is the end of the
// enclosing element (or of the buffer for a top-level element).
func readHeader(buf []byte, off, limit int) (Header, error) {
	if limit > len(buf) {
		limit = len(buf)
	}
	if off < 0 || off >= limit {
		return Header{}, malformed(off, "missing tag byte")
	}
	tag := buf[off]

	if off+1 >= limit {
		return Header{}, malformed(off, "missing length byte for tag 0x%02x", tag)
	}
	first := buf[off+1]
	headerLen := 2

	var length uint64
	switch {
	case first < 0x80:
		length = uint64(first)
	case first == indefiniteLength:
		return Header{}, malformed(off, "indefinite length is not supported")
	default:
		n := int(first & 0x7f)
		if n > MaxLengthBytes {
			return Header{}, malformed(off, "length field of %d bytes exceeds the %d byte limit", n, MaxLengthBytes)
		}
		if off+2+n > limit {
			return Header{}, malformed(off, "truncated length field")
		}
		for _, b := range buf[off+2 : off+2+n] {
			length = length<<8 | uint64(b)
		}
		headerLen += n
	}

	if available := uint64(limit - off - headerLen); length > available {
		return Header{}, malformed(off, "content of %d bytes runs past the end (%d available)", length, available)
	}

	return Header{Tag: tag, Offset: off, HeaderLen: headerLen, Length: int(length)}, nil
}
