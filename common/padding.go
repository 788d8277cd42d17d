package common

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPaddingOverflow is returned when a padded message does not fit into the
// fixed circuit buffer.
var ErrPaddingOverflow = errors.New("padded message exceeds the maximum length")

// Sha256PadBlocks applies SHA-256 message padding (0x80, zeros, 64-bit bit
// length) and rounds the result up to a multiple of blockSize.
func Sha256PadBlocks(msg []byte, blockSize int) ([]byte, error) {
	if blockSize <= 0 || blockSize%64 != 0 {
		return nil, fmt.Errorf("block size %d is not a positive multiple of 64", blockSize)
	}

	l := len(msg)
	n := (l + 9 + blockSize - 1) / blockSize * blockSize

	padded := make([]byte, n)
	copy(padded, msg)
	padded[l] = 0x80
	binary.BigEndian.PutUint64(padded[n-8:], uint64(l)*8)
	return padded, nil
}

// Sha256Pad pads msg to whole SHA-256 blocks and zero-fills the result up to
// maxLen. The returned length is the padded length before zero-filling, which
// is what circuits take as the message length.
func Sha256Pad(msg []byte, maxLen int) ([]byte, int, error) {
	padded, err := Sha256PadBlocks(msg, 64)
	if err != nil {
		return nil, 0, err
	}
	if len(padded) > maxLen {
		return nil, 0, fmt.Errorf("%w: %d bytes padded to %d, limit %d", ErrPaddingOverflow, len(msg), len(padded), maxLen)
	}

	out := make([]byte, maxLen)
	copy(out, padded)
	return out, len(padded), nil
}

// ZeroPad copies b into a zero-filled buffer of maxLen bytes.
func ZeroPad(b []byte, maxLen int) ([]byte, error) {
	if len(b) > maxLen {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPaddingOverflow, len(b), maxLen)
	}
	out := make([]byte, maxLen)
	copy(out, b)
	return out, nil
}
