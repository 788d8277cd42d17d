package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/mynextid/sod-zk/der"
	"github.com/mynextid/sod-zk/pki"
	"github.com/mynextid/sod-zk/sod"
)

var (
	ErrSignatureInvalid = errors.New("chain: signature invalid")
	ErrDigestMismatch   = errors.New("chain: digest mismatch")
)

// Stage is a state of the verification pipeline. Stages run in declaration
// order and the first failure ends the run.
type Stage int

const (
	StageParseSOD Stage = iota + 1
	StageExtractDSCert
	StageVerifyDSCertAgainstRoot
	StageVerifySODSignature
	StageVerifyDigestMatchesContent
	StageVerifyEmbeddedHash
)

var stageNames = map[Stage]string{
	StageParseSOD:                   "ParseSOD",
	StageExtractDSCert:              "ExtractDSCert",
	StageVerifyDSCertAgainstRoot:    "VerifyDSCertAgainstRoot",
	StageVerifySODSignature:         "VerifySODSignature",
	StageVerifyDigestMatchesContent: "VerifyDigestMatchesContent",
	StageVerifyEmbeddedHash:         "VerifyEmbeddedHash",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Stage) UnmarshalText(text []byte) error {
	for stage, name := range stageNames {
		if name == string(text) {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("chain: unknown stage %q", text)
}

// Outcome is the terminal state of a run.
type Outcome int

const (
	Failed Outcome = iota
	Verified
)

func (o Outcome) String() string {
	if o == Verified {
		return "Verified"
	}
	return "Failed"
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Verified":
		*o = Verified
	case "Failed":
		*o = Failed
	default:
		return fmt.Errorf("chain: unknown outcome %q", text)
	}
	return nil
}

// Reason classifies why a run failed.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonMalformedEncoding
	ReasonFieldNotFound
	ReasonSignatureInvalid
	ReasonDigestMismatch
	ReasonMissingAttribute
	ReasonCanceled
)

var reasonNames = map[Reason]string{
	ReasonNone:              "",
	ReasonMalformedEncoding: "MalformedEncoding",
	ReasonFieldNotFound:     "FieldNotFound",
	ReasonSignatureInvalid:  "SignatureInvalid",
	ReasonDigestMismatch:    "DigestMismatch",
	ReasonMissingAttribute:  "MissingAttribute",
	ReasonCanceled:          "Canceled",
}

func (r Reason) String() string { return reasonNames[r] }

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Reason) UnmarshalText(text []byte) error {
	for reason, name := range reasonNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("chain: unknown reason %q", text)
}

// ReasonFor classifies err. Errors that match none of the known sentinels
// count as an invalid signature, so an unexpected failure never passes.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(err, sod.ErrMissingAttribute):
		return ReasonMissingAttribute
	case errors.Is(err, der.ErrMalformedEncoding),
		errors.Is(err, pki.ErrNoCertificate),
		errors.Is(err, pki.ErrParseCertificate),
		errors.Is(err, pki.ErrParsePKCS7),
		errors.Is(err, pki.ErrNoCertificatesInPKCS):
		return ReasonMalformedEncoding
	case errors.Is(err, der.ErrFieldNotFound):
		return ReasonFieldNotFound
	case errors.Is(err, ErrDigestMismatch):
		return ReasonDigestMismatch
	default:
		return ReasonSignatureInvalid
	}
}
