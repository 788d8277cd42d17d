package sod_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynextid/sod-zk/der"
	"github.com/mynextid/sod-zk/sod"
	"github.com/mynextid/sod-zk/sod/sodtest"
)

func TestParseBase64(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})

	msg, err := sod.ParseBase64(f.Base64())
	require.NoError(t, err)

	assert.Equal(t, 3, msg.Version)
	require.Len(t, msg.DigestAlgorithms, 1)
	assert.Equal(t, "2.16.840.1.101.3.4.2.1", msg.DigestAlgorithm.Algorithm.String())
	assert.Equal(t, "1.2.840.113549.1.1.11", msg.SignatureAlgorithm.Algorithm.String())
	assert.True(t, msg.EContentType.Equal(sod.OIDLDSSecurityObject))
	assert.Equal(t, f.EContent, msg.EContent)
	assert.Equal(t, f.Signature, msg.Signature)
	assert.Equal(t, f.ContentInfo, msg.Raw())

	digest := sha256.Sum256(f.EContent)
	assert.Equal(t, digest[:], msg.MessageDigest)
	require.NoError(t, msg.RequireMessageDigest())
	require.NoError(t, msg.RequireContent())

	_, ok := msg.SigningTime()
	assert.True(t, ok)
	ct, ok := msg.Attribute(sod.OIDContentType)
	require.True(t, ok)
	require.Len(t, ct.Values, 1)

	ds, err := msg.DocumentSigner()
	require.NoError(t, err)
	assert.Equal(t, f.DSRaw, ds.Raw())
}

func TestSignedAttributesEncoded(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	msg, err := sod.ParseBase64(f.Base64())
	require.NoError(t, err)

	assert.Equal(t, byte(0xa0), msg.SignedAttrs[0], "wire form keeps the implicit tag")
	encoded := msg.SignedAttributesEncoded()
	assert.Equal(t, f.SignedAttrs, encoded)
	assert.Equal(t, byte(0xa0), msg.SignedAttrs[0], "re-tagging works on a copy")

	// views alias the parsed buffer
	assert.True(t, bytes.Contains(msg.Raw(), msg.SignedAttrs))
}

func TestMissingComponents(t *testing.T) {
	tests := []struct {
		name    string
		opts    sodtest.Options
		require func(*sod.SignedMessage) error
	}{
		{"no signed attributes", sodtest.Options{OmitSignedAttributes: true}, (*sod.SignedMessage).RequireSignedAttributes},
		{"no message digest", sodtest.Options{OmitMessageDigest: true}, (*sod.SignedMessage).RequireMessageDigest},
		{"detached content", sodtest.Options{OmitContent: true}, (*sod.SignedMessage).RequireContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := sodtest.MustNew(t, tt.opts)
			msg, err := sod.Parse(f.ContentInfo)
			require.NoError(t, err)
			assert.ErrorIs(t, tt.require(msg), sod.ErrMissingAttribute)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})

	wrongType := bytes.Clone(f.ContentInfo)
	// last arc of 1.2.840.113549.1.7.2 inside the outer contentType
	idx := bytes.Index(wrongType, []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x07, 0x02})
	require.Positive(t, idx)
	wrongType[idx+8] = 0x01

	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"not a sequence", []byte{0x04, 0x00}},
		{"truncated", f.ContentInfo[:len(f.ContentInfo)/2]},
		{"indefinite length", append([]byte{0x30, 0x80}, f.ContentInfo[2:]...)},
		{"not signed data", wrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sod.Parse(tt.input)
			assert.ErrorIs(t, err, der.ErrMalformedEncoding)
		})
	}
}

func TestUnwrapAndBase64(t *testing.T) {
	_, err := sod.Unwrap([]byte{0x77, 0x82, 0x00})
	assert.ErrorIs(t, err, der.ErrMalformedEncoding)

	body, err := sod.Unwrap([]byte{0x77, 0x82, 0x00, 0x01, 0x30})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x30}, body)

	raw := []byte{0xfb, 0xff, 0x01, 0x02}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		got, err := sod.DecodeBase64(enc.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}

	got, err := sod.DecodeBase64("+/8B\nAg==\n")
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = sod.DecodeBase64("not base64 at all!")
	assert.ErrorIs(t, err, der.ErrMalformedEncoding)
}

func TestCertificateRef(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	ref, err := sod.NewCertificateRef(f.DSRaw)
	require.NoError(t, err)

	assert.Equal(t, f.DS.RawTBSCertificate, ref.TBS())
	assert.Equal(t, f.DS.Signature, ref.SignatureValue())
	assert.Equal(t, "1.2.840.113549.1.1.11", ref.SignatureAlgorithm().Algorithm.String())

	spki, err := ref.SubjectPublicKeyInfo()
	require.NoError(t, err)
	assert.Equal(t, f.DS.RawSubjectPublicKeyInfo, spki)

	key, err := ref.PublicKey()
	require.NoError(t, err)
	assert.True(t, bytes.Contains(spki, key.Bytes(ref.TBS())))

	parsed, err := ref.X509()
	require.NoError(t, err)
	assert.Equal(t, "Document Signer 7", parsed.Subject.CommonName)

	_, err = sod.NewCertificateRef(append(bytes.Clone(f.DSRaw), 0x00))
	assert.ErrorIs(t, err, der.ErrMalformedEncoding)
}

func TestLDSSecurityObject(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	lds, err := sod.ParseLDSSecurityObject(f.EContent)
	require.NoError(t, err)

	assert.Equal(t, 1, lds.Version)
	assert.Equal(t, "2.16.840.1.101.3.4.2.1", lds.HashAlgorithm.Algorithm.String())
	assert.Equal(t, "0108", lds.LDSVersion)
	assert.Equal(t, "040000", lds.UnicodeVersion)
	require.Len(t, lds.DataGroups, 3)

	want := sha256.Sum256(f.Reference)
	dg, ok := lds.DataGroupForHash(want[:])
	require.True(t, ok)
	assert.Equal(t, 1, dg.Number)
	assert.Equal(t, want[:], dg.Range.Bytes(f.EContent))

	at, ok := lds.DataGroupAt(dg.Range)
	require.True(t, ok)
	assert.Equal(t, 1, at.Number)

	_, ok = lds.DataGroupAt(der.Range{Start: 0, End: 4})
	assert.False(t, ok)

	_, ok = lds.DataGroupForHash([]byte{1, 2, 3})
	assert.False(t, ok)

	_, err = sod.ParseLDSSecurityObject([]byte{0x30, 0x03, 0x02, 0x01, 0x00})
	assert.ErrorIs(t, err, der.ErrMalformedEncoding)
}

func TestCertificateNames(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	ref, err := sod.NewCertificateRef(f.DSRaw)
	require.NoError(t, err)

	issuer, err := ref.Issuer()
	require.NoError(t, err)
	assert.Equal(t, f.DS.RawIssuer, issuer)
	assert.Equal(t, f.CSCA.RawSubject, issuer)

	subject, err := ref.Subject()
	require.NoError(t, err)
	assert.Equal(t, f.DS.RawSubject, subject)
}
