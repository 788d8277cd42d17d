package common

import (
	"github.com/consensys/gnark/std/math/uints"
)

// Helper function to convert string to []uints.U8
func StringToU8Array(s string) []uints.U8 {
	return BytesToU8Array([]byte(s))
}

// Helper function to convert bytes to []uints.U8
func BytesToU8Array(s []byte) []uints.U8 {
	result := make([]uints.U8, len(s))
	for i, b := range s {
		result[i] = uints.NewU8(b)
	}
	return result
}

// PaddedU8Array converts b into a circuit byte array of exactly size bytes,
// zero-filled after b.
func PaddedU8Array(b []byte, size int) ([]uints.U8, error) {
	padded, err := ZeroPad(b, size)
	if err != nil {
		return nil, err
	}
	return BytesToU8Array(padded), nil
}
