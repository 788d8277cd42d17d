package circuitinput_test

import (
	"context"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynextid/sod-zk/chain"
	"github.com/mynextid/sod-zk/circuitinput"
	dpl "github.com/mynextid/sod-zk/circuits/der-pubkey-lookup"
	cma "github.com/mynextid/sod-zk/circuits/mrz-age"
	seh "github.com/mynextid/sod-zk/circuits/sod-embedded-hash"
	sse "github.com/mynextid/sod-zk/circuits/sod-signature-es256"
	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/sod/sodtest"
)

func verify(t *testing.T, f *sodtest.Fixture) *chain.Result {
	t.Helper()
	res := chain.NewVerifier().Verify(context.Background(), chain.Input{
		SOD:             f.Base64(),
		Reference:       f.Reference,
		RootCertificate: f.CSCAPEM,
	})
	require.True(t, res.Verified(), "verification failed: %v", res.Err)
	return res
}

func TestBuild(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	res := verify(t, f)

	in, err := circuitinput.Build(res, circuitinput.DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, in.SignedAttrs, 512*3)
	assert.Len(t, in.EContent, 512*3)
	assert.Len(t, in.DSTBS, 512*3)

	n, err := strconv.Atoi(in.SignedAttrsPaddedLength)
	require.NoError(t, err)
	assert.Zero(t, n%64)
	assert.Greater(t, n, len(f.SignedAttrs))
	assert.Equal(t, strconv.Itoa(int(f.SignedAttrs[0])), in.SignedAttrs[0])
	assert.Equal(t, "128", in.SignedAttrs[len(f.SignedAttrs)])

	for _, words := range [][]string{in.DSCertSignature, in.CSCAModulus, in.SODSignature, in.DSModulus} {
		assert.Len(t, words, 17)
	}

	dsN := f.DSKey.Public().(*rsa.PublicKey).N
	gotN, err := common.CombineWords(in.DSModulus, 121)
	require.NoError(t, err)
	assert.Zero(t, dsN.Cmp(gotN))

	cscaN, err := common.CombineWords(in.CSCAModulus, 121)
	require.NoError(t, err)
	assert.Zero(t, f.CSCAKey.N.Cmp(cscaN))

	sig, err := common.CombineWords(in.SODSignature, 121)
	require.NoError(t, err)
	assert.Equal(t, f.Signature, sig.FillBytes(make([]byte, len(f.Signature))))

	assert.Equal(t, strconv.Itoa(res.PublicKeyRange.Start), in.PubKeyOffset)
	assert.Equal(t, strconv.Itoa(res.EmbeddedHash.Start), in.EmbeddedHashIndex)

	// the modulus offset points at the modulus bytes inside the TBS
	off, err := strconv.Atoi(in.ModulusOffset)
	require.NoError(t, err)
	tbs := f.DS.RawTBSCertificate
	assert.Equal(t, dsN.Bytes(), tbs[off:off+256])

	digest := sha256.Sum256(f.EContent)
	assert.Equal(t, common.BytesToDecimalStrings(digest[:]), in.MessageDigest)

	_, err = json.Marshal(in)
	assert.NoError(t, err)
}

func TestBuildRSA4096(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{Key: sodtest.RSA4096})
	res := verify(t, f)

	in, err := circuitinput.Build(res, circuitinput.Options{})
	require.NoError(t, err)
	assert.Len(t, in.DSModulus, 34)
	assert.Len(t, in.SODSignature, 34)
	// the root stays a 2048-bit key
	assert.Len(t, in.CSCAModulus, 17)

	in, err = circuitinput.Build(res, circuitinput.Options{WordCount: 17})
	assert.ErrorIs(t, err, common.ErrWordOverflow)
	assert.Nil(t, in)
}

func TestBuildErrors(t *testing.T) {
	_, err := circuitinput.Build(nil, circuitinput.DefaultOptions())
	assert.ErrorIs(t, err, circuitinput.ErrNotVerified)

	bad := sodtest.MustNew(t, sodtest.Options{CorruptSignature: true})
	failed := chain.NewVerifier().Verify(context.Background(), chain.Input{
		SOD: bad.Base64(), Reference: bad.Reference, RootCertificate: bad.CSCAPEM,
	})
	_, err = circuitinput.Build(failed, circuitinput.DefaultOptions())
	assert.ErrorIs(t, err, circuitinput.ErrNotVerified)

	ec := sodtest.MustNew(t, sodtest.Options{Key: sodtest.ECDSAP256})
	_, err = circuitinput.Build(verify(t, ec), circuitinput.DefaultOptions())
	assert.ErrorIs(t, err, circuitinput.ErrUnsupportedKey)

	f := sodtest.MustNew(t, sodtest.Options{})
	_, err = circuitinput.Build(verify(t, f), circuitinput.Options{TBSMaxLen: 128})
	assert.ErrorIs(t, err, common.ErrPaddingOverflow)
}

func TestProverInputs(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	res := verify(t, f)

	inputs, err := circuitinput.ProverInputs(res, f.Reference)
	require.NoError(t, err)
	require.Contains(t, inputs, dpl.Name)
	require.Contains(t, inputs, seh.Name)

	pk := inputs[dpl.Name]
	_, err = dpl.InputParser{TBSMaxLen: 1024, ModulusLen: 256}.Parse(pk.PublicInput, pk.PrivateInput)
	assert.NoError(t, err)

	eh := inputs[seh.Name]
	circuit, err := seh.InputParser{ReferenceLen: len(f.Reference), EContentMaxLen: 512}.Parse(eh.PublicInput, eh.PrivateInput)
	require.NoError(t, err)
	assert.Equal(t, res.EmbeddedHash.Start, circuit.(*seh.CircuitEmbeddedHash).HashPosition)

	assert.NotContains(t, inputs, sse.Name)

	_, err = circuitinput.ProverInputs(&chain.Result{}, f.Reference)
	assert.ErrorIs(t, err, circuitinput.ErrNotVerified)
}

func TestProverInputsECDSA(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{Key: sodtest.ECDSAP256})
	res := verify(t, f)

	inputs, err := circuitinput.ProverInputs(res, f.Reference)
	require.NoError(t, err)
	require.Contains(t, inputs, sse.Name)
	require.Contains(t, inputs, seh.Name)
	assert.NotContains(t, inputs, dpl.Name)

	sig := inputs[sse.Name]
	_, err = sse.InputParser{SignedAttrsMaxLen: 256}.Parse(sig.PublicInput, sig.PrivateInput)
	assert.NoError(t, err)
}

func TestAgeProverInput(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})
	res := verify(t, f)
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	in, err := circuitinput.AgeProverInput(res, f.Reference, today, 18)
	require.NoError(t, err)

	var pub cma.PublicInput
	require.NoError(t, json.Unmarshal(in.PublicInput, &pub))
	assert.Equal(t, "20081020", pub.BornBefore)
	assert.Equal(t, res.Message.MessageDigest, pub.MessageDigest)

	_, err = cma.InputParser{DG1Len: len(f.Reference), EContentMaxLen: 512}.Parse(in.PublicInput, in.PrivateInput)
	assert.NoError(t, err)

	_, err = circuitinput.AgeProverInput(res, f.Reference, today, 0)
	assert.Error(t, err)
	_, err = circuitinput.AgeProverInput(nil, f.Reference, today, 18)
	assert.ErrorIs(t, err, circuitinput.ErrNotVerified)
}
