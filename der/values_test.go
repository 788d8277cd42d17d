package der_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynextid/sod-zk/der"
)

func TestInt(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		want    int
		wantErr bool
	}{
		{"zero", []byte{0x02, 0x01, 0x00}, 0, false},
		{"small", []byte{0x02, 0x01, 0x0f}, 15, false},
		{"sign byte", []byte{0x02, 0x02, 0x00, 0x80}, 128, false},
		{"two bytes", []byte{0x02, 0x02, 0x01, 0x00}, 256, false},
		{"negative", []byte{0x02, 0x01, 0xff}, 0, true},
		{"empty", []byte{0x02, 0x00}, 0, true},
		{"too large", []byte{0x02, 0x05, 0x01, 0x00, 0x00, 0x00, 0x00}, 0, true},
		{"not an integer", []byte{0x04, 0x01, 0x01}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _, err := der.Decode(tt.buf, 0)
			require.NoError(t, err)

			got, err := der.Int(tt.buf, n)
			if tt.wantErr {
				assert.ErrorIs(t, err, der.ErrMalformedEncoding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOID(t *testing.T) {
	// 1.2.840.113549.1.9.4
	buf := []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x09, 0x04}
	n, _, err := der.Decode(buf, 0)
	require.NoError(t, err)

	oid, err := der.OID(buf, n)
	require.NoError(t, err)
	assert.Equal(t, "1.2.840.113549.1.9.4", oid)

	null := []byte{0x05, 0x00}
	n, _, err = der.Decode(null, 0)
	require.NoError(t, err)
	_, err = der.OID(null, n)
	assert.ErrorIs(t, err, der.ErrMalformedEncoding)
}
