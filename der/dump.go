package der

import (
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/mynextid/sod-zk/der/oids"
)

var dumpPool bytebufferpool.Pool

// Dump writes an indented tree of n to w, one element per line, with the
// offset and length of every element and short previews of primitive values.
func Dump(w io.Writer, buf []byte, n Node) error {
	b := dumpPool.Get()
	defer dumpPool.Put(b)

	dumpNode(b, buf, n, "", true, true)
	_, err := b.WriteTo(w)
	return err
}

// DumpString returns the tree of n as a string.
func DumpString(buf []byte, n Node) string {
	var sb strings.Builder
	_ = Dump(&sb, buf, n)
	return sb.String()
}

func dumpNode(b *bytebufferpool.ByteBuffer, buf []byte, n Node, indent string, root, last bool) {
	prefix := "* "
	if !root {
		if last {
			prefix = indent + "└─ "
		} else {
			prefix = indent + "├─ "
		}
	}

	h := n.Head()
	fmt.Fprintf(b, "%s%s @%d+%d", prefix, TagName(h.Tag), h.Offset, h.HeaderLen+h.Length)
	if content := describe(buf, n); content != "" {
		b.WriteString(" ")
		b.WriteString(content)
	}
	b.WriteString("\n")

	c, ok := n.(*Constructed)
	if !ok {
		return
	}
	childIndent := indent
	if !root {
		if last {
			childIndent += "   "
		} else {
			childIndent += "│  "
		}
	}
	for i, child := range c.Children {
		dumpNode(b, buf, child, childIndent, false, i == len(c.Children)-1)
	}
}

// TagName returns a readable name for a single-byte tag.
func TagName(tag byte) string {
	number := tag & numberMask
	switch tag & classMask {
	case 0x40:
		return fmt.Sprintf("[APPLICATION %d]", number)
	case 0x80:
		return fmt.Sprintf("[%d]", number)
	case 0xc0:
		return fmt.Sprintf("[PRIVATE %d]", number)
	}

	switch int(number) {
	case asn1.TagBoolean:
		return "BOOLEAN"
	case asn1.TagInteger:
		return "INTEGER"
	case asn1.TagBitString:
		return "BIT STRING"
	case asn1.TagOctetString:
		return "OCTET STRING"
	case asn1.TagNull:
		return "NULL"
	case asn1.TagOID:
		return "OBJECT IDENTIFIER"
	case asn1.TagEnum:
		return "ENUMERATED"
	case asn1.TagUTF8String:
		return "UTF8String"
	case asn1.TagSequence:
		return "SEQUENCE"
	case asn1.TagSet:
		return "SET"
	case asn1.TagNumericString:
		return "NumericString"
	case asn1.TagPrintableString:
		return "PrintableString"
	case asn1.TagT61String:
		return "T61String"
	case asn1.TagIA5String:
		return "IA5String"
	case asn1.TagUTCTime:
		return "UTCTime"
	case asn1.TagGeneralizedTime:
		return "GeneralizedTime"
	default:
		return fmt.Sprintf("[UNIVERSAL %d]", number)
	}
}

func describe(buf []byte, n Node) string {
	if c, ok := n.(*Constructed); ok {
		return fmt.Sprintf("(%d elem)", len(c.Children))
	}

	h := n.Head()
	value := n.Content().Bytes(buf)
	full := n.Element().Bytes(buf)

	switch h.Tag {
	case TagBoolean:
		var v bool
		if _, err := asn1.Unmarshal(full, &v); err == nil {
			return fmt.Sprintf("%v", v)
		}
	case TagInteger:
		if len(value) == 0 {
			return "0"
		}
		num := new(big.Int).SetBytes(value)
		if value[0]&0x80 != 0 {
			num.Sub(num, new(big.Int).Lsh(big.NewInt(1), uint(len(value)*8)))
		}
		if len(value) <= 8 {
			return num.String()
		}
		return fmt.Sprintf("(%d bit) %s…", num.BitLen(), hex.EncodeToString(value[:8]))
	case TagBitString:
		if len(value) == 0 {
			return "(invalid bit string)"
		}
		bits := (len(value)-1)*8 - int(value[0])
		return fmt.Sprintf("(%d bit) %s", bits, preview(value[1:], 8))
	case TagOctetString:
		return fmt.Sprintf("(%d byte) %s", len(value), strings.ToUpper(preview(value, 16)))
	case TagNull:
		return ""
	case TagOID:
		oid, err := OID(buf, n)
		if err != nil {
			return "(invalid OID)"
		}
		if name := oids.Default.Name(oid); name != "" {
			return oid + " " + name
		}
		return oid
	case TagPrintableString, TagIA5String, TagUTF8String:
		s := string(value)
		if len(s) > 64 {
			s = s[:64] + "…"
		}
		return s
	case TagUTCTime, TagGeneralizedTime:
		var t time.Time
		if _, err := asn1.Unmarshal(full, &t); err == nil {
			return t.Format("2006-01-02 15:04:05 MST")
		}
		return string(value)
	}

	if len(value) <= 32 {
		return strings.ToUpper(hex.EncodeToString(value))
	}
	return fmt.Sprintf("(%d bytes)", len(value))
}

func preview(b []byte, max int) string {
	if len(b) <= max {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:max]) + "…"
}
