package dpl

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/math/uints"

	"github.com/mynextid/sod-zk/common"
)

// ReadDERLength reads a DER length at index and returns (length value, bytes
// used by the length field). Long form is limited to two length bytes, which
// covers any TBS that fits a circuit buffer.
func ReadDERLength(
	api frontend.API,
	data []uints.U8,
	index frontend.Variable,
) (frontend.Variable, frontend.Variable) {
	lengthByte := common.ReadByteAt(api, data, index)

	// Check if short form (< 0x80) or long form (>= 0x80)
	bits := api.ToBinary(lengthByte.Val, 8)
	isShortForm := api.IsZero(bits[7])
	isLongForm := api.Sub(1, isShortForm)

	numLengthBytes := api.Sub(lengthByte.Val, 0x80)
	api.AssertIsEqual(api.Mul(isLongForm, api.Sub(numLengthBytes, 1), api.Sub(numLengthBytes, 2)), 0)

	byte1 := common.ReadByteAt(api, data, api.Add(index, 1))
	byte2 := common.ReadByteAt(api, data, api.Add(index, 2))

	isOneByte := api.IsZero(api.Sub(numLengthBytes, 1))
	longLength := api.Select(
		isOneByte,
		byte1.Val,
		api.Add(api.Mul(byte1.Val, 256), byte2.Val),
	)
	longBytes := api.Add(numLengthBytes, 1)

	length := api.Select(isShortForm, lengthByte.Val, longLength)
	bytesUsed := api.Select(isShortForm, 1, longBytes)

	return length, bytesUsed
}

// SkipElement returns the size of the complete element at index.
func SkipElement(api frontend.API, data []uints.U8, index frontend.Variable) frontend.Variable {
	contentLength, lengthBytes := ReadDERLength(api, data, api.Add(index, 1))
	return api.Add(api.Add(1, lengthBytes), contentLength)
}

// enter returns the position of the first child of the constructed element
// at index, after checking its tag.
func enter(api frontend.API, data []uints.U8, index frontend.Variable, tag int) frontend.Variable {
	assertTag(api, data, index, tag)
	_, lengthBytes := ReadDERLength(api, data, api.Add(index, 1))
	return api.Add(api.Add(index, 1), lengthBytes)
}

// skip checks the tag of the element at index and returns the position of its
// next sibling.
func skip(api frontend.API, data []uints.U8, index frontend.Variable, tag int) frontend.Variable {
	assertTag(api, data, index, tag)
	return api.Add(index, SkipElement(api, data, index))
}

func assertTag(api frontend.API, data []uints.U8, index frontend.Variable, tag int) {
	b := common.ReadByteAt(api, data, index)
	api.AssertIsEqual(b.Val, tag)
}

// NavigateToSubjectPublicKey walks a TBSCertificate and returns the position
// of the subjectPublicKey BIT STRING. Every field before it is tag-checked,
// so the position is the subject key and not any other key-like value.
func NavigateToSubjectPublicKey(api frontend.API, tbs []uints.U8) frontend.Variable {
	index := enter(api, tbs, 0, 0x30)

	// version [0] EXPLICIT is optional
	tag := common.ReadByteAt(api, tbs, index)
	hasVersion := api.IsZero(api.Sub(tag.Val, 0xA0))
	index = api.Add(index, api.Select(hasVersion, SkipElement(api, tbs, index), 0))

	index = skip(api, tbs, index, 0x02) // serialNumber
	index = skip(api, tbs, index, 0x30) // signature
	index = skip(api, tbs, index, 0x30) // issuer
	index = skip(api, tbs, index, 0x30) // validity
	index = skip(api, tbs, index, 0x30) // subject

	index = enter(api, tbs, index, 0x30) // subjectPublicKeyInfo
	index = skip(api, tbs, index, 0x30)  // algorithm

	assertTag(api, tbs, index, 0x03)
	return index
}
