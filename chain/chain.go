// Package chain verifies a Security Object Document against a trusted root:
//
//	root → document signer certificate → SOD signature → content digest → embedded hash
//
// A run is a fixed sequence of stages. The first failing stage ends the run
// with a Reason and later stages never execute.
package chain

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/der"
	"github.com/mynextid/sod-zk/locator"
	"github.com/mynextid/sod-zk/pki"
	"github.com/mynextid/sod-zk/sod"
)

// Input is everything a run needs. Nothing is read from the environment.
type Input struct {
	// SOD is the base64 EF.SOD, including its container prefix.
	SOD string
	// Reference is the raw data whose hash must be embedded in the signed
	// content, typically DG1.
	Reference []byte
	// RootCertificate holds the trusted root(s) as PEM, DER or PKCS#7.
	RootCertificate []byte
}

// StageReport records one executed stage.
type StageReport struct {
	Stage    Stage         `json:"stage"`
	Passed   bool          `json:"passed"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of one run. It is not modified after Verify returns.
type Result struct {
	RunID   uuid.UUID `json:"run_id"`
	Outcome Outcome   `json:"outcome"`
	Reason  Reason    `json:"reason,omitempty"`
	// Stage is the failing stage; zero when verified.
	Stage Stage  `json:"failed_stage,omitempty"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`

	Message       *sod.SignedMessage  `json:"-"`
	DSCertificate *sod.CertificateRef `json:"-"`
	Root          *x509.Certificate   `json:"-"`

	SignatureAlgorithm SignatureAlgorithm `json:"signature_algorithm"`
	// PublicKeyRange locates the document signer key inside its TBS.
	PublicKeyRange der.Range `json:"public_key_range"`
	VerifiedDigest []byte    `json:"verified_digest,omitempty"`
	// EmbeddedHash locates the reference hash inside the eContent.
	EmbeddedHash der.Range `json:"embedded_hash"`
	// DataGroup is the number of the data group whose hash matched, 0 when
	// the eContent is not an LDS security object.
	DataGroup int `json:"data_group,omitempty"`

	Trace []StageReport `json:"trace"`
}

// Verified reports whether every stage passed.
func (r *Result) Verified() bool { return r.Outcome == Verified }

// Option configures a Verifier.
type Option func(*Verifier)

// WithProvider replaces the standard library crypto provider.
func WithProvider(p Provider) Option {
	return func(v *Verifier) { v.provider = p }
}

func WithLogger(l common.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// WithRequireAlignedKey controls whether a subject public key BIT STRING
// with unused bits is rejected. Enabled by default; when enabled both
// locator strategies must agree on the key position.
func WithRequireAlignedKey(require bool) Option {
	return func(v *Verifier) { v.requireAligned = require }
}

// Verifier runs verification pipelines. It holds no per-run state and can
// be shared between goroutines.
type Verifier struct {
	provider       Provider
	logger         common.Logger
	requireAligned bool
}

func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		provider:       StdProvider{},
		logger:         common.NopLogger(),
		requireAligned: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// run carries the values handed from one stage to the next.
type run struct {
	in     Input
	result *Result
	dsKey  PublicKey
}

type stageFunc func(ctx context.Context, r *run) error

// Verify executes all stages in order and always returns a Result.
func (v *Verifier) Verify(ctx context.Context, in Input) *Result {
	r := &run{
		in:     in,
		result: &Result{RunID: uuid.New()},
	}
	res := r.result

	stages := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageParseSOD, v.parseSOD},
		{StageExtractDSCert, v.extractDSCert},
		{StageVerifyDSCertAgainstRoot, v.verifyDSCertAgainstRoot},
		{StageVerifySODSignature, v.verifySODSignature},
		{StageVerifyDigestMatchesContent, v.verifyDigestMatchesContent},
		{StageVerifyEmbeddedHash, v.verifyEmbeddedHash},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			v.fail(res, s.stage, err)
			return res
		}

		start := time.Now()
		err := s.fn(ctx, r)
		report := StageReport{Stage: s.stage, Passed: err == nil, Duration: time.Since(start)}
		if err != nil {
			report.Error = err.Error()
		}
		res.Trace = append(res.Trace, report)

		if err != nil {
			v.fail(res, s.stage, err)
			return res
		}
		v.logger.Debug("stage passed", "run_id", res.RunID, "stage", s.stage.String(), "duration", report.Duration)
	}

	res.Outcome = Verified
	v.logger.Info("sod verified", "run_id", res.RunID, "data_group", res.DataGroup)
	return res
}

func (v *Verifier) fail(res *Result, stage Stage, err error) {
	res.Outcome = Failed
	res.Stage = stage
	res.Reason = ReasonFor(err)
	res.Err = err
	res.Error = err.Error()
	v.logger.Warn("sod verification failed",
		"run_id", res.RunID,
		"stage", stage.String(),
		"reason", res.Reason.String(),
		"error", err,
	)
}

func (v *Verifier) parseSOD(_ context.Context, r *run) error {
	msg, err := sod.ParseBase64(r.in.SOD)
	if err != nil {
		return fmt.Errorf("failed to parse SOD: %w", err)
	}
	r.result.Message = msg
	return nil
}

func (v *Verifier) extractDSCert(ctx context.Context, r *run) error {
	ds, err := r.result.Message.DocumentSigner()
	if err != nil {
		return err
	}

	var keyRange der.Range
	if v.requireAligned {
		keyRange, err = ds.PublicKey()
	} else {
		var tbs der.Node
		if tbs, _, err = der.Decode(ds.TBS(), 0); err == nil {
			keyRange, err = locator.FromTree(ds.TBS(), tbs, false)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to locate document signer key: %w", err)
	}

	spki, err := ds.SubjectPublicKeyInfo()
	if err != nil {
		return err
	}
	key, err := v.provider.ImportPublicKey(ctx, spki)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", der.ErrMalformedEncoding, err)
	}

	r.result.DSCertificate = ds
	r.result.PublicKeyRange = keyRange
	r.dsKey = key
	return nil
}

func (v *Verifier) verifyDSCertAgainstRoot(ctx context.Context, r *run) error {
	ds := r.result.DSCertificate

	roots, err := pki.LoadRoots(r.in.RootCertificate)
	if err != nil {
		return fmt.Errorf("failed to load trusted root: %w", err)
	}
	issuer, err := ds.Issuer()
	if err != nil {
		return err
	}
	root, err := pki.SelectIssuer(roots, issuer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	rootKey, err := v.provider.ImportPublicKey(ctx, root.RawSubjectPublicKeyInfo)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: trusted root key: %v", der.ErrMalformedEncoding, err)
	}

	sigAlg := ds.SignatureAlgorithm()
	alg, err := ResolveSignatureAlgorithm(sigAlg.Algorithm, sigAlg.Parameters, nil)
	if err != nil {
		return err
	}
	if err := v.verify(ctx, rootKey, alg, ds.SignatureValue(), ds.TBS()); err != nil {
		return fmt.Errorf("document signer certificate: %w", err)
	}

	r.result.Root = root
	return nil
}

func (v *Verifier) verifySODSignature(ctx context.Context, r *run) error {
	msg := r.result.Message
	if err := msg.RequireSignedAttributes(); err != nil {
		return err
	}

	alg, err := ResolveSignatureAlgorithm(msg.SignatureAlgorithm.Algorithm, msg.SignatureAlgorithm.Parameters, msg.DigestAlgorithm.Algorithm)
	if err != nil {
		return err
	}
	if err := v.verify(ctx, r.dsKey, alg, msg.Signature, msg.SignedAttributesEncoded()); err != nil {
		return fmt.Errorf("signed attributes: %w", err)
	}

	r.result.SignatureAlgorithm = alg
	return nil
}

func (v *Verifier) verifyDigestMatchesContent(ctx context.Context, r *run) error {
	msg := r.result.Message
	if err := msg.RequireMessageDigest(); err != nil {
		return err
	}
	if err := msg.RequireContent(); err != nil {
		return err
	}

	h, err := DigestHash(msg.DigestAlgorithm.Algorithm)
	if err != nil {
		return err
	}
	digest, err := v.provider.Digest(ctx, h, msg.EContent)
	if err != nil {
		return err
	}
	if !bytes.Equal(digest, msg.MessageDigest) {
		return fmt.Errorf("%w: eContent digest %x, signed messageDigest %x", ErrDigestMismatch, digest, msg.MessageDigest)
	}

	r.result.VerifiedDigest = digest
	return nil
}

func (v *Verifier) verifyEmbeddedHash(ctx context.Context, r *run) error {
	msg := r.result.Message

	hashOID := msg.DigestAlgorithm.Algorithm
	lds, ldsErr := sod.ParseLDSSecurityObject(msg.EContent)
	if ldsErr == nil {
		hashOID = lds.HashAlgorithm.Algorithm
	} else {
		v.logger.Debug("eContent is not an LDS security object", "run_id", r.result.RunID, "error", ldsErr)
	}

	h, err := DigestHash(hashOID)
	if err != nil {
		return err
	}
	refHash, err := v.provider.Digest(ctx, h, r.in.Reference)
	if err != nil {
		return err
	}

	found, ok := FindSubsequence(msg.EContent, refHash)
	if !ok {
		return fmt.Errorf("%w: reference hash %x is not in the signed content", der.ErrFieldNotFound, refHash)
	}

	if ldsErr == nil {
		dg, ok := lds.DataGroupAt(found)
		if !ok {
			return fmt.Errorf("%w: reference hash found at %s outside of any data group hash", ErrDigestMismatch, found)
		}
		r.result.DataGroup = dg.Number
	}
	r.result.EmbeddedHash = found
	return nil
}

func (v *Verifier) verify(ctx context.Context, key PublicKey, alg SignatureAlgorithm, sig, signed []byte) error {
	ok, err := v.provider.VerifySignature(ctx, key, alg, sig, signed)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSignatureInvalid, alg.Name)
	}
	return nil
}
