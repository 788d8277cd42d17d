package der

// Tags used by the certificate and CMS profiles this package is written for.
const (
	TagBoolean         byte = 0x01
	TagInteger         byte = 0x02
	TagBitString       byte = 0x03
	TagOctetString     byte = 0x04
	TagNull            byte = 0x05
	TagOID             byte = 0x06
	TagUTF8String      byte = 0x0c
	TagPrintableString byte = 0x13
	TagIA5String       byte = 0x16
	TagUTCTime         byte = 0x17
	TagGeneralizedTime byte = 0x18
	TagSequence        byte = 0x30
	TagSet             byte = 0x31
	TagContext0        byte = 0xa0
	TagContext1        byte = 0xa1
)

const (
	constructedBit = 0x20
	classMask      = 0xc0
	numberMask     = 0x1f
)

// IsConstructed reports whether the constructed bit (0x20) is set in tag.
func IsConstructed(tag byte) bool {
	return tag&constructedBit != 0
}

// Header describes where a TLV element sits in its buffer.
type Header struct {
	Tag       byte `json:"tag"`
	Offset    int  `json:"offset"`     // position of the tag byte
	HeaderLen int  `json:"header_len"` // tag byte plus length octets
	Length    int  `json:"length"`     // content octets
}

// Head returns the header itself; it lets *Primitive and *Constructed satisfy
// Node through embedding.
func (h Header) Head() Header { return h }

// Element returns the range of the full encoding: tag, length and content.
func (h Header) Element() Range {
	return Range{Start: h.Offset, End: h.Offset + h.HeaderLen + h.Length}
}

// Content returns the range of the content octets.
func (h Header) Content() Range {
	return Range{Start: h.Offset + h.HeaderLen, End: h.Offset + h.HeaderLen + h.Length}
}

// Node is a decoded TLV element. The only implementations are *Primitive and
// *Constructed, so a type switch over the two is exhaustive.
type Node interface {
	Head() Header
	Element() Range
	Content() Range
	isNode()
}

// Primitive is an element whose content is kept as raw bytes. No type-specific
// interpretation is applied: a BIT STRING still starts with its unused-bits byte.
type Primitive struct {
	Header
	Value Range
}

// Constructed is an element whose content is an ordered list of child elements.
type Constructed struct {
	Header
	Children []Node
}

func (*Primitive) isNode()   {}
func (*Constructed) isNode() {}

// Child walks down the tree following path, where each entry is a 0-based
// child index. It fails with ErrFieldNotFound when an index is out of range or
// a primitive element is reached before the path is exhausted.
func Child(n Node, path ...int) (Node, error) {
	cur := n
	for depth, idx := range path {
		c, ok := cur.(*Constructed)
		if !ok {
			return nil, notFound(cur.Head().Offset, "element at depth %d (tag 0x%02x) is primitive", depth, cur.Head().Tag)
		}
		if idx < 0 || idx >= len(c.Children) {
			return nil, notFound(c.Offset, "child %d requested, element has %d children", idx, len(c.Children))
		}
		cur = c.Children[idx]
	}
	return cur, nil
}

// Walk calls fn for n and all of its descendants in encoding order. Returning
// false from fn skips the children of that node.
func Walk(n Node, fn func(n Node, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n Node, depth int, fn func(Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	if c, ok := n.(*Constructed); ok {
		for _, child := range c.Children {
			walk(child, depth+1, fn)
		}
	}
}
