package chain_test

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynextid/sod-zk/chain"
	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/der"
	"github.com/mynextid/sod-zk/sod"
	"github.com/mynextid/sod-zk/sod/sodtest"
)

func inputFor(f *sodtest.Fixture) chain.Input {
	return chain.Input{SOD: f.Base64(), Reference: f.Reference, RootCertificate: f.CSCAPEM}
}

func stagesOf(res *chain.Result) []chain.Stage {
	var out []chain.Stage
	for _, r := range res.Trace {
		out = append(out, r.Stage)
	}
	return out
}

var allStages = []chain.Stage{
	chain.StageParseSOD,
	chain.StageExtractDSCert,
	chain.StageVerifyDSCertAgainstRoot,
	chain.StageVerifySODSignature,
	chain.StageVerifyDigestMatchesContent,
	chain.StageVerifyEmbeddedHash,
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name string
		opts sodtest.Options
	}{
		{"rsa 2048", sodtest.Options{}},
		{"rsa 4096", sodtest.Options{Key: sodtest.RSA4096}},
		{"ecdsa p-256", sodtest.Options{Key: sodtest.ECDSAP256}},
		{"rsaEncryption oid", sodtest.Options{SignatureOID: sodtest.RSAEncryption}},
		{"rsassa-pss", sodtest.Options{SignatureOID: sodtest.RSAPSS}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := sodtest.MustNew(t, tt.opts)
			res := chain.NewVerifier().Verify(context.Background(), inputFor(f))

			require.True(t, res.Verified(), "failed at %s: %v", res.Stage, res.Err)
			assert.Equal(t, chain.ReasonNone, res.Reason)
			assert.Equal(t, allStages, stagesOf(res))
			for _, r := range res.Trace {
				assert.True(t, r.Passed)
			}

			refHash := sha256.Sum256(f.Reference)
			assert.Equal(t, refHash[:], res.EmbeddedHash.Bytes(res.Message.EContent))
			assert.Equal(t, 1, res.DataGroup)

			contentHash := sha256.Sum256(f.EContent)
			assert.Equal(t, contentHash[:], res.VerifiedDigest)

			pub, err := x509.ParsePKIXPublicKey(f.DS.RawSubjectPublicKeyInfo)
			require.NoError(t, err)
			assert.NotNil(t, pub)
			assert.True(t, bytes.Contains(f.DS.RawSubjectPublicKeyInfo, res.PublicKeyRange.Bytes(res.DSCertificate.TBS())))
			assert.Equal(t, f.CSCA.Raw, res.Root.Raw)
			assert.NotEqual(t, [16]byte{}, [16]byte(res.RunID))
		})
	}
}

func TestVerifyFailures(t *testing.T) {
	other := sodtest.MustNew(t, sodtest.Options{})

	tests := []struct {
		name       string
		opts       sodtest.Options
		mutate     func(in *chain.Input)
		wantStage  chain.Stage
		wantReason chain.Reason
	}{
		{
			name:       "malformed base64",
			mutate:     func(in *chain.Input) { in.SOD = "!!! not a sod !!!" },
			wantStage:  chain.StageParseSOD,
			wantReason: chain.ReasonMalformedEncoding,
		},
		{
			name:       "truncated sod",
			mutate:     func(in *chain.Input) { in.SOD = in.SOD[:len(in.SOD)/2] },
			wantStage:  chain.StageParseSOD,
			wantReason: chain.ReasonMalformedEncoding,
		},
		{
			name:       "tampered certificate signature",
			opts:       sodtest.Options{CorruptCertificateSignature: true},
			wantStage:  chain.StageVerifyDSCertAgainstRoot,
			wantReason: chain.ReasonSignatureInvalid,
		},
		{
			name:       "untrusted root",
			mutate:     func(in *chain.Input) { in.RootCertificate = other.CSCAPEM },
			wantStage:  chain.StageVerifyDSCertAgainstRoot,
			wantReason: chain.ReasonSignatureInvalid,
		},
		{
			name:       "missing root",
			mutate:     func(in *chain.Input) { in.RootCertificate = nil },
			wantStage:  chain.StageVerifyDSCertAgainstRoot,
			wantReason: chain.ReasonMalformedEncoding,
		},
		{
			name:       "tampered sod signature",
			opts:       sodtest.Options{CorruptSignature: true},
			wantStage:  chain.StageVerifySODSignature,
			wantReason: chain.ReasonSignatureInvalid,
		},
		{
			name:       "no signed attributes",
			opts:       sodtest.Options{OmitSignedAttributes: true},
			wantStage:  chain.StageVerifySODSignature,
			wantReason: chain.ReasonMissingAttribute,
		},
		{
			name:       "no message digest",
			opts:       sodtest.Options{OmitMessageDigest: true},
			wantStage:  chain.StageVerifyDigestMatchesContent,
			wantReason: chain.ReasonMissingAttribute,
		},
		{
			name:       "detached content",
			opts:       sodtest.Options{OmitContent: true},
			wantStage:  chain.StageVerifyDigestMatchesContent,
			wantReason: chain.ReasonMissingAttribute,
		},
		{
			name:       "digest mismatch",
			opts:       sodtest.Options{MessageDigest: bytes.Repeat([]byte{0x42}, 32)},
			wantStage:  chain.StageVerifyDigestMatchesContent,
			wantReason: chain.ReasonDigestMismatch,
		},
		{
			name:       "reference not embedded",
			opts:       sodtest.Options{OmitReference: true},
			wantStage:  chain.StageVerifyEmbeddedHash,
			wantReason: chain.ReasonFieldNotFound,
		},
		{
			name:       "different reference",
			mutate:     func(in *chain.Input) { in.Reference = []byte("someone else") },
			wantStage:  chain.StageVerifyEmbeddedHash,
			wantReason: chain.ReasonFieldNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := sodtest.MustNew(t, tt.opts)
			in := inputFor(f)
			if tt.mutate != nil {
				tt.mutate(&in)
			}

			res := chain.NewVerifier().Verify(context.Background(), in)
			require.False(t, res.Verified())
			assert.Equal(t, chain.Failed, res.Outcome)
			assert.Equal(t, tt.wantStage, res.Stage)
			assert.Equal(t, tt.wantReason, res.Reason, "error: %v", res.Err)
			require.Error(t, res.Err)

			// fail closed: the failing stage is the last one that ran
			require.NotEmpty(t, res.Trace)
			last := res.Trace[len(res.Trace)-1]
			assert.Equal(t, tt.wantStage, last.Stage)
			assert.False(t, last.Passed)
			assert.Equal(t, int(tt.wantStage), len(res.Trace))
			for _, r := range res.Trace[:len(res.Trace)-1] {
				assert.True(t, r.Passed)
			}
		})
	}
}

func TestVerifyHashOutsideDataGroup(t *testing.T) {
	reference := sodtest.DefaultReference
	refHash := sha256.Sum256(reference)
	other := sha256.Sum256([]byte("other"))

	type algorithm struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters []byte
	}
	type dataGroup struct {
		Number int
		Hash   []byte
	}
	eContent, err := asn1.Marshal(struct {
		Version       int
		HashAlgorithm algorithm
		DataGroups    []dataGroup
	}{
		Version:       0,
		HashAlgorithm: algorithm{asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, refHash[:]},
		DataGroups:    []dataGroup{{1, other[:]}},
	})
	require.NoError(t, err)

	f := sodtest.MustNew(t, sodtest.Options{EContent: eContent})
	res := chain.NewVerifier().Verify(context.Background(), inputFor(f))
	assert.Equal(t, chain.StageVerifyEmbeddedHash, res.Stage)
	assert.Equal(t, chain.ReasonDigestMismatch, res.Reason)
}

func TestVerifyOpaqueContent(t *testing.T) {
	reference := []byte("reference data")
	refHash := sha256.Sum256(reference)
	eContent := append(append([]byte("header:"), refHash[:]...), []byte(":trailer")...)

	f := sodtest.MustNew(t, sodtest.Options{EContent: eContent, Reference: reference})
	res := chain.NewVerifier().Verify(context.Background(), inputFor(f))
	require.True(t, res.Verified(), "failed at %s: %v", res.Stage, res.Err)
	assert.Equal(t, der.Range{Start: 7, End: 39}, res.EmbeddedHash)
	assert.Zero(t, res.DataGroup)
}

func TestVerifyUnalignedKeyOption(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	res := chain.NewVerifier(chain.WithRequireAlignedKey(false)).Verify(context.Background(), inputFor(f))
	require.True(t, res.Verified())

	strict := chain.NewVerifier().Verify(context.Background(), inputFor(f))
	assert.Equal(t, strict.PublicKeyRange, res.PublicKeyRange)
}

func TestVerifyCanceled(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := chain.NewVerifier().Verify(ctx, inputFor(f))
	assert.Equal(t, chain.ReasonCanceled, res.Reason)
	assert.Equal(t, chain.StageParseSOD, res.Stage)
	assert.Empty(t, res.Trace)
}

// cancelingProvider cancels the run the first time a signature is checked.
type cancelingProvider struct {
	chain.StdProvider
	cancel context.CancelFunc
	calls  int
}

func (p *cancelingProvider) VerifySignature(ctx context.Context, key chain.PublicKey, alg chain.SignatureAlgorithm, sig, signed []byte) (bool, error) {
	p.calls++
	p.cancel()
	return false, ctx.Err()
}

func TestVerifyCanceledInProvider(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &cancelingProvider{cancel: cancel}
	res := chain.NewVerifier(chain.WithProvider(p)).Verify(ctx, inputFor(f))
	assert.Equal(t, chain.ReasonCanceled, res.Reason)
	assert.Equal(t, chain.StageVerifyDSCertAgainstRoot, res.Stage)
	assert.Equal(t, 1, p.calls)
	assert.Len(t, res.Trace, 3)
}

func TestVerifyLogs(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	var buf bytes.Buffer
	logger := common.NewLogger(&buf, "debug", "json")

	res := chain.NewVerifier(chain.WithLogger(logger)).Verify(context.Background(), inputFor(f))
	require.True(t, res.Verified())
	assert.Contains(t, buf.String(), `"msg":"sod verified"`)
	assert.Contains(t, buf.String(), res.RunID.String())
	assert.Contains(t, buf.String(), "VerifyEmbeddedHash")
}

func TestVerifyAll(t *testing.T) {
	good := sodtest.MustNew(t, sodtest.Options{})
	bad := sodtest.MustNew(t, sodtest.Options{CorruptSignature: true})

	inputs := []chain.Input{inputFor(good), inputFor(bad), inputFor(good)}
	results := chain.NewVerifier().VerifyAll(context.Background(), inputs, 2)
	require.Len(t, results, 3)
	assert.True(t, results[0].Verified())
	assert.False(t, results[1].Verified())
	assert.Equal(t, chain.ReasonSignatureInvalid, results[1].Reason)
	assert.True(t, results[2].Verified())
	assert.NotEqual(t, results[0].RunID, results[2].RunID)
}

func TestFindSubsequence(t *testing.T) {
	tests := []struct {
		name     string
		haystack []byte
		needle   []byte
		want     der.Range
		found    bool
	}{
		{"start", []byte{1, 2, 3, 4}, []byte{1, 2}, der.Range{Start: 0, End: 2}, true},
		{"end", []byte{1, 2, 3, 4}, []byte{3, 4}, der.Range{Start: 2, End: 4}, true},
		{"first of two", []byte{9, 1, 9, 1}, []byte{9, 1}, der.Range{Start: 0, End: 2}, true},
		{"whole", []byte{5, 6}, []byte{5, 6}, der.Range{Start: 0, End: 2}, true},
		{"missing", []byte{1, 2, 3}, []byte{2, 4}, der.Range{}, false},
		{"longer than haystack", []byte{1}, []byte{1, 1}, der.Range{}, false},
		{"empty needle", []byte{1, 2}, nil, der.Range{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := chain.FindSubsequence(tt.haystack, tt.needle)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReasonFor(t *testing.T) {
	tests := []struct {
		err  error
		want chain.Reason
	}{
		{nil, chain.ReasonNone},
		{context.Canceled, chain.ReasonCanceled},
		{context.DeadlineExceeded, chain.ReasonCanceled},
		{errors.Join(errors.New("x"), der.ErrMalformedEncoding), chain.ReasonMalformedEncoding},
		{der.ErrFieldNotFound, chain.ReasonFieldNotFound},
		{sod.ErrMissingAttribute, chain.ReasonMissingAttribute},
		{chain.ErrDigestMismatch, chain.ReasonDigestMismatch},
		{chain.ErrSignatureInvalid, chain.ReasonSignatureInvalid},
		{errors.New("unexpected"), chain.ReasonSignatureInvalid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chain.ReasonFor(tt.err), "%v", tt.err)
	}
}

func TestResolveSignatureAlgorithm(t *testing.T) {
	sha384 := asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}

	alg, err := chain.ResolveSignatureAlgorithm(asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, chain.SchemePKCS1v15, alg.Scheme)
	assert.Equal(t, crypto.SHA256, alg.Hash)

	alg, err = chain.ResolveSignatureAlgorithm(asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}, nil, sha384)
	require.NoError(t, err)
	assert.Equal(t, crypto.SHA384, alg.Hash)

	_, err = chain.ResolveSignatureAlgorithm(asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}, nil, nil)
	assert.ErrorIs(t, err, chain.ErrSignatureInvalid)

	alg, err = chain.ResolveSignatureAlgorithm(asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, chain.SchemeECDSA, alg.Scheme)
	assert.Equal(t, crypto.SHA384, alg.Hash)

	alg, err = chain.ResolveSignatureAlgorithm(asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, chain.SchemePSS, alg.Scheme)
	assert.Equal(t, crypto.SHA1, alg.Hash)
	assert.Equal(t, 20, alg.SaltLength)

	_, err = chain.ResolveSignatureAlgorithm(asn1.ObjectIdentifier{1, 2, 3}, nil, nil)
	assert.ErrorIs(t, err, chain.ErrSignatureInvalid)
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "VerifyDSCertAgainstRoot", chain.StageVerifyDSCertAgainstRoot.String())
	assert.Equal(t, "Stage(99)", chain.Stage(99).String())
	assert.Equal(t, "Verified", chain.Verified.String())
	assert.Equal(t, "DigestMismatch", chain.ReasonDigestMismatch.String())
}

func TestResultJSON(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{OmitReference: true})
	res := chain.NewVerifier().Verify(context.Background(), inputFor(f))
	require.False(t, res.Verified())

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"Failed"`)
	assert.Contains(t, string(data), `"failed_stage":"VerifyEmbeddedHash"`)

	var back chain.Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, res.RunID, back.RunID)
	assert.Equal(t, res.Reason, back.Reason)
	assert.Equal(t, res.Stage, back.Stage)
	assert.Equal(t, stagesOf(res), stagesOf(&back))

	var r chain.Reason
	assert.Error(t, r.UnmarshalText([]byte("Unknown")))
	var o chain.Outcome
	assert.Error(t, o.UnmarshalText([]byte("Maybe")))
}
