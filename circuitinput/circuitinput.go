// Package circuitinput turns a verified chain result into the fixed-size,
// decimal-string inputs that proof circuits consume.
package circuitinput

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"

	"github.com/mynextid/sod-zk/chain"
	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/locator"
)

var (
	ErrNotVerified    = errors.New("circuitinput: result is not verified")
	ErrUnsupportedKey = errors.New("circuitinput: only RSA keys can be split into words")
)

// Options fixes the circuit buffer sizes and the big integer word layout.
type Options struct {
	SignedAttrsMaxLen int `json:"signed_attrs_max_len" yaml:"signed-attrs-max-len"`
	EContentMaxLen    int `json:"econtent_max_len" yaml:"econtent-max-len"`
	TBSMaxLen         int `json:"tbs_max_len" yaml:"tbs-max-len"`
	WordBits          int `json:"word_bits" yaml:"word-bits"`
	// WordCount is the number of words per big integer. Zero derives it from
	// each key size: 17 words for 2048-bit keys, 34 for 4096-bit keys.
	WordCount int `json:"word_count" yaml:"word-count"`
}

// DefaultOptions returns buffers of three 512 byte blocks and 121-bit words.
func DefaultOptions() Options {
	return Options{
		SignedAttrsMaxLen: 512 * 3,
		EContentMaxLen:    512 * 3,
		TBSMaxLen:         512 * 3,
		WordBits:          121,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SignedAttrsMaxLen == 0 {
		o.SignedAttrsMaxLen = d.SignedAttrsMaxLen
	}
	if o.EContentMaxLen == 0 {
		o.EContentMaxLen = d.EContentMaxLen
	}
	if o.TBSMaxLen == 0 {
		o.TBSMaxLen = d.TBSMaxLen
	}
	if o.WordBits == 0 {
		o.WordBits = d.WordBits
	}
	return o
}

// words returns the word count for a key of keyBits bits.
func (o Options) words(keyBits int) int {
	if o.WordCount > 0 {
		return o.WordCount
	}
	return (keyBits + o.WordBits - 1) / o.WordBits
}

// Inputs is the circom-style input file. Every number is a decimal string.
type Inputs struct {
	SignedAttrs             []string `json:"signed_attrs"`
	SignedAttrsPaddedLength string   `json:"signed_attrs_padded_length"`
	EContent                []string `json:"econtent"`
	EContentPaddedLength    string   `json:"econtent_padded_length"`
	DSTBS                   []string `json:"ds_tbs"`
	DSTBSPaddedLength       string   `json:"ds_tbs_padded_length"`

	// DSCertSignature is the CSCA signature over the DS TBS, checked with
	// CSCAModulus.
	DSCertSignature []string `json:"ds_cert_signature"`
	CSCAModulus     []string `json:"csca_modulus"`
	// SODSignature is the DS signature over the signed attributes, checked
	// with DSModulus.
	SODSignature []string `json:"sod_signature"`
	DSModulus    []string `json:"ds_modulus"`

	PubKeyOffset      string   `json:"pub_key_offset"`
	ModulusOffset     string   `json:"modulus_offset"`
	EmbeddedHashIndex string   `json:"embedded_hash_index"`
	MessageDigest     []string `json:"message_digest"`
}

// Build assembles the inputs of a verified run. Both the CSCA and the DS key
// must be RSA keys.
func Build(res *chain.Result, opts Options) (*Inputs, error) {
	if res == nil || !res.Verified() {
		return nil, ErrNotVerified
	}
	opts = opts.withDefaults()

	msg := res.Message
	ds := res.DSCertificate
	tbs := ds.TBS()

	cscaKey, ok := res.Root.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: CSCA key is %T", ErrUnsupportedKey, res.Root.PublicKey)
	}
	modulusRange, err := locator.RSAModulus(tbs, res.PublicKeyRange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	modulus := modulusRange.Bytes(tbs)
	dsBits := len(modulus) * 8
	cscaBits := cscaKey.N.BitLen()

	in := &Inputs{
		PubKeyOffset:      strconv.Itoa(res.PublicKeyRange.Start),
		ModulusOffset:     strconv.Itoa(modulusRange.Start),
		EmbeddedHashIndex: strconv.Itoa(res.EmbeddedHash.Start),
		MessageDigest:     common.BytesToDecimalStrings(msg.MessageDigest),
	}

	if in.SignedAttrs, in.SignedAttrsPaddedLength, err = padded(msg.SignedAttributesEncoded(), opts.SignedAttrsMaxLen); err != nil {
		return nil, fmt.Errorf("signed attributes: %w", err)
	}
	if in.EContent, in.EContentPaddedLength, err = padded(msg.EContent, opts.EContentMaxLen); err != nil {
		return nil, fmt.Errorf("eContent: %w", err)
	}
	if in.DSTBS, in.DSTBSPaddedLength, err = padded(tbs, opts.TBSMaxLen); err != nil {
		return nil, fmt.Errorf("DS TBS: %w", err)
	}

	if in.DSCertSignature, err = common.SplitBytesToWords(ds.SignatureValue(), opts.WordBits, opts.words(cscaBits)); err != nil {
		return nil, fmt.Errorf("DS certificate signature: %w", err)
	}
	if in.CSCAModulus, err = common.SplitToWords(cscaKey.N, opts.WordBits, opts.words(cscaBits)); err != nil {
		return nil, fmt.Errorf("CSCA modulus: %w", err)
	}
	if in.SODSignature, err = common.SplitBytesToWords(msg.Signature, opts.WordBits, opts.words(dsBits)); err != nil {
		return nil, fmt.Errorf("SOD signature: %w", err)
	}
	if in.DSModulus, err = common.SplitBytesToWords(modulus, opts.WordBits, opts.words(dsBits)); err != nil {
		return nil, fmt.Errorf("DS modulus: %w", err)
	}

	return in, nil
}

func padded(b []byte, maxLen int) ([]string, string, error) {
	p, n, err := common.Sha256Pad(b, maxLen)
	if err != nil {
		return nil, "", err
	}
	return common.BytesToDecimalStrings(p), strconv.Itoa(n), nil
}

// dsModulus returns the document signer modulus as located in its TBS.
func dsModulus(res *chain.Result) ([]byte, error) {
	tbs := res.DSCertificate.TBS()
	r, err := locator.RSAModulus(tbs, res.PublicKeyRange)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	return r.Bytes(tbs), nil
}
