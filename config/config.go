// Package config reads YAML job files for the verify command.
package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mynextid/sod-zk/chain"
	"github.com/mynextid/sod-zk/circuitinput"
	"github.com/mynextid/sod-zk/sod"
)

var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: err}
}

// Job is one SOD to verify. Values can be given inline or as files; file
// paths are relative to the job file.
type Job struct {
	Name string `yaml:"name" json:"name"`

	// SOD is the base64 EF.SOD; SODFile holds it in base64 or binary form.
	SOD     string `yaml:"sod" json:"sod,omitempty"`
	SODFile string `yaml:"sod-file" json:"sod_file,omitempty"`

	// Reference is base64; ReferenceFile is raw bytes.
	Reference     string `yaml:"reference" json:"reference,omitempty"`
	ReferenceFile string `yaml:"reference-file" json:"reference_file,omitempty"`

	// Root overrides the file-level trusted root.
	Root string `yaml:"root" json:"root,omitempty"`
}

// VerifyJob is the content of a verify job file.
type VerifyJob struct {
	// Root is the trusted root file (PEM, DER or PKCS#7).
	Root string `yaml:"root" json:"root"`

	Workers           int   `yaml:"workers" json:"workers"`
	RequireAlignedKey *bool `yaml:"require-aligned-key" json:"require_aligned_key,omitempty"`

	CircuitInputs circuitinput.Options `yaml:"circuit-inputs" json:"circuit_inputs"`

	Jobs []Job `yaml:"jobs" json:"jobs"`

	// dir resolves relative paths.
	dir string
}

// LoadVerifyJob reads and validates a job file.
func LoadVerifyJob(path string) (*VerifyJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	job, err := ParseVerifyJob(data)
	if err != nil {
		return nil, err
	}
	job.dir = filepath.Dir(path)
	return job, nil
}

// ParseVerifyJob parses a job file. Relative paths resolve against the
// working directory.
func ParseVerifyJob(data []byte) (*VerifyJob, error) {
	var job VerifyJob
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil {
		return nil, NewConfigError("", "invalid YAML", fmt.Errorf("%w: %v", ErrConfigurationError, err))
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks that every job has its inputs and a root.
func (v *VerifyJob) Validate() error {
	if len(v.Jobs) == 0 {
		return NewConfigError("jobs", "at least one job is required", ErrMissingRequiredField)
	}
	if v.Workers < 0 {
		return NewConfigError("workers", fmt.Sprintf("must not be negative, got %d", v.Workers), ErrConfigurationError)
	}
	for i, j := range v.Jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		if j.SOD == "" && j.SODFile == "" {
			return NewConfigError(field+".sod", "one of sod or sod-file is required", ErrMissingRequiredField)
		}
		if j.SOD != "" && j.SODFile != "" {
			return NewConfigError(field+".sod", "sod and sod-file are exclusive", ErrConfigurationError)
		}
		if j.Reference == "" && j.ReferenceFile == "" {
			return NewConfigError(field+".reference", "one of reference or reference-file is required", ErrMissingRequiredField)
		}
		if j.Root == "" && v.Root == "" {
			return NewConfigError(field+".root", "no trusted root for job", ErrMissingRequiredField)
		}
	}
	return nil
}

// Options returns the verifier options the file asks for.
func (v *VerifyJob) Options() []chain.Option {
	var opts []chain.Option
	if v.RequireAlignedKey != nil {
		opts = append(opts, chain.WithRequireAlignedKey(*v.RequireAlignedKey))
	}
	return opts
}

// Inputs resolves all jobs into chain inputs, reading the referenced files.
func (v *VerifyJob) Inputs() ([]chain.Input, error) {
	inputs := make([]chain.Input, len(v.Jobs))
	for i, j := range v.Jobs {
		in, err := v.input(j)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", j.Name, err)
		}
		inputs[i] = in
	}
	return inputs, nil
}

func (v *VerifyJob) input(j Job) (chain.Input, error) {
	var in chain.Input

	in.SOD = j.SOD
	if j.SODFile != "" {
		s, err := ReadSOD(v.path(j.SODFile))
		if err != nil {
			return in, err
		}
		in.SOD = s
	}

	if j.ReferenceFile != "" {
		ref, err := os.ReadFile(v.path(j.ReferenceFile))
		if err != nil {
			return in, fmt.Errorf("failed to read reference: %w", err)
		}
		in.Reference = ref
	} else {
		ref, err := sod.DecodeBase64(j.Reference)
		if err != nil {
			return in, NewConfigError("reference", "not valid base64", err)
		}
		in.Reference = ref
	}

	root := j.Root
	if root == "" {
		root = v.Root
	}
	rootBytes, err := os.ReadFile(v.path(root))
	if err != nil {
		return in, fmt.Errorf("failed to read trusted root: %w", err)
	}
	in.RootCertificate = rootBytes
	return in, nil
}

func (v *VerifyJob) path(p string) string {
	if filepath.IsAbs(p) || v.dir == "" {
		return p
	}
	return filepath.Join(v.dir, p)
}

// ReadSOD reads an EF.SOD file and returns it in base64. Files that already
// hold base64 text are returned as is.
func ReadSOD(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read SOD: %w", err)
	}
	// binary EF.SOD files start with the 0x77 application tag
	if len(data) > 0 && data[0] == 0x77 {
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return strings.TrimSpace(string(data)), nil
}
