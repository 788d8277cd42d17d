package common_test

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynextid/sod-zk/common"
)

func TestSha256PadBlocks(t *testing.T) {
	tests := []struct {
		name      string
		msgLen    int
		blockSize int
		want      int
	}{
		{"empty", 0, 64, 64},
		{"fits one block", 55, 64, 64},
		{"spills into second block", 56, 64, 128},
		{"exact block", 64, 64, 128},
		{"large block size", 100, 512, 512},
		{"two large blocks", 504, 512, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := make([]byte, tt.msgLen)
			for i := range msg {
				msg[i] = byte(i + 1)
			}

			padded, err := common.Sha256PadBlocks(msg, tt.blockSize)
			require.NoError(t, err)
			require.Len(t, padded, tt.want)

			assert.Equal(t, msg, padded[:tt.msgLen])
			assert.Equal(t, byte(0x80), padded[tt.msgLen])
			assert.Equal(t, uint64(tt.msgLen)*8, binary.BigEndian.Uint64(padded[tt.want-8:]))
			for _, b := range padded[tt.msgLen+1 : tt.want-8] {
				assert.Zero(t, b)
			}
		})
	}
}

func TestSha256PadBlocksInvalidBlockSize(t *testing.T) {
	for _, size := range []int{0, -64, 32, 100} {
		_, err := common.Sha256PadBlocks([]byte("abc"), size)
		assert.Error(t, err, "block size %d", size)
	}
}

func TestSha256Pad(t *testing.T) {
	msg := []byte("signed attributes")

	padded, n, err := common.Sha256Pad(msg, 512*3)
	require.NoError(t, err)
	assert.Len(t, padded, 512*3)
	assert.Equal(t, 64, n)

	standard, err := common.Sha256PadBlocks(msg, 64)
	require.NoError(t, err)
	assert.Equal(t, standard, padded[:n])
	assert.Equal(t, make([]byte, len(padded)-n), padded[n:])
}

func TestSha256PadOverflow(t *testing.T) {
	_, _, err := common.Sha256Pad(make([]byte, 120), 128)
	assert.ErrorIs(t, err, common.ErrPaddingOverflow)

	_, _, err = common.Sha256Pad(make([]byte, 119), 128)
	assert.NoError(t, err)
}

func TestSha256PadBlockAligned(t *testing.T) {
	msg := make([]byte, 300)
	padded, n, err := common.Sha256Pad(msg, 1024)
	require.NoError(t, err)
	assert.Zero(t, n%sha256.BlockSize)
	assert.Equal(t, uint64(300*8), binary.BigEndian.Uint64(padded[n-8:n]))
}

func TestZeroPad(t *testing.T) {
	out, err := common.ZeroPad([]byte{1, 2}, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 0, 0}, out)

	_, err = common.ZeroPad([]byte{1, 2, 3}, 2)
	assert.ErrorIs(t, err, common.ErrPaddingOverflow)
}
