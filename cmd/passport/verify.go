package passport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mynextid/sod-zk/chain"
	"github.com/mynextid/sod-zk/circuitinput"
	cma "github.com/mynextid/sod-zk/circuits/mrz-age"
	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/config"
	"github.com/mynextid/sod-zk/sod"
)

// ErrVerificationFailed is returned when at least one SOD did not verify.
var ErrVerificationFailed = errors.New("verification failed")

type verifyConfig struct {
	sod           string
	sodFile       string
	reference     string
	referenceFile string
	root          string
	jobFile       string
	inputsFile    string
	proverInputs  bool
	minAge        int
	json          bool
	workers       int
	alignedKey    bool
	logLevel      string
}

func NewVerifyCmd() *cobra.Command {
	cfg := &verifyConfig{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a SOD against a trusted root",
		Long: `Verify the chain root -> document signer -> SOD signature -> content digest -> embedded hash
and optionally write the circuit inputs of a verified run.`,
		Example: `  # Verify a single SOD
  sodzk verify --sod-file EF.SOD --reference-file DG1.bin --root csca.pem

  # Verify and write the circuit inputs
  sodzk verify --sod-file EF.SOD --reference-file DG1.bin --root csca.pem --inputs inputs.json

  # Verify every job of a job file with 4 workers
  sodzk verify --config jobs.yaml --workers 4 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, cmd.Flags().Changed("workers"))
		},
	}

	cmd.Flags().StringVar(&cfg.sod, "sod", "", "Base64 EF.SOD")
	cmd.Flags().StringVar(&cfg.sodFile, "sod-file", "", "EF.SOD file, binary or base64")
	cmd.Flags().StringVar(&cfg.reference, "reference", "", "Base64 reference data (e.g. DG1)")
	cmd.Flags().StringVar(&cfg.referenceFile, "reference-file", "", "Raw reference data file (e.g. DG1)")
	cmd.Flags().StringVar(&cfg.root, "root", "", "Trusted root certificate(s) (PEM, DER or PKCS#7)")
	cmd.Flags().StringVarP(&cfg.jobFile, "config", "c", "", "YAML job file with several SODs")
	cmd.Flags().StringVarP(&cfg.inputsFile, "inputs", "o", "", "Write the circuit inputs of verified runs to this file")
	cmd.Flags().BoolVar(&cfg.proverInputs, "prover-inputs", false, "Write the gnark prover inputs instead of the circuit inputs")
	cmd.Flags().IntVar(&cfg.minAge, "min-age", 0, "Add mrz-age prover inputs for this age (with --prover-inputs)")
	cmd.Flags().BoolVar(&cfg.json, "json", false, "Print results as JSON")
	cmd.Flags().IntVarP(&cfg.workers, "workers", "w", 1, "Concurrent verifications")
	cmd.Flags().BoolVar(&cfg.alignedKey, "require-aligned-key", false, "Reject DS certificates whose key BIT STRING has unused bits")
	cmd.Flags().StringVar(&cfg.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.MarkFlagsMutuallyExclusive("sod", "sod-file")
	cmd.MarkFlagsMutuallyExclusive("reference", "reference-file")
	cmd.MarkFlagsMutuallyExclusive("config", "sod")
	cmd.MarkFlagsMutuallyExclusive("config", "sod-file")

	return cmd
}

// verifyJob is one resolved verification.
type verifyJob struct {
	name  string
	input chain.Input
}

// VerifyReport is the JSON form of one verification.
type VerifyReport struct {
	Name         string                               `json:"name"`
	Verified     bool                                 `json:"verified"`
	Result       *chain.Result                        `json:"result"`
	Inputs       *circuitinput.Inputs                 `json:"inputs,omitempty"`
	ProverInputs map[string]circuitinput.ProverInput `json:"prover_inputs,omitempty"`
	InputsError  string                               `json:"inputs_error,omitempty"`
}

func runVerify(ctx context.Context, out, errOut io.Writer, cfg *verifyConfig, workersSet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := common.NewLogger(errOut, cfg.logLevel, "text")

	opts := []chain.Option{
		chain.WithLogger(logger),
		chain.WithRequireAlignedKey(cfg.alignedKey),
	}
	inputOpts := circuitinput.DefaultOptions()
	workers := cfg.workers

	var jobs []verifyJob
	if cfg.jobFile != "" {
		job, err := config.LoadVerifyJob(cfg.jobFile)
		if err != nil {
			return err
		}
		inputs, err := job.Inputs()
		if err != nil {
			return err
		}
		for i, in := range inputs {
			name := job.Jobs[i].Name
			if name == "" {
				name = fmt.Sprintf("job-%d", i+1)
			}
			jobs = append(jobs, verifyJob{name: name, input: in})
		}
		opts = append(opts, job.Options()...)
		inputOpts = job.CircuitInputs
		if !workersSet && job.Workers > 0 {
			workers = job.Workers
		}
	} else {
		in, err := cfg.input()
		if err != nil {
			return err
		}
		jobs = append(jobs, verifyJob{name: "sod", input: in})
	}

	inputs := make([]chain.Input, len(jobs))
	for i, j := range jobs {
		inputs[i] = j.input
	}

	verifier := chain.NewVerifier(opts...)
	results := verifier.VerifyAll(ctx, inputs, workers)

	reports := make([]VerifyReport, len(results))
	failed := 0
	for i, res := range results {
		reports[i] = VerifyReport{Name: jobs[i].name, Verified: res.Verified(), Result: res}
		if !res.Verified() {
			failed++
			continue
		}
		if cfg.inputsFile == "" && !cfg.json {
			continue
		}
		if cfg.proverInputs {
			pi, err := circuitinput.ProverInputs(res, jobs[i].input.Reference)
			if err == nil && cfg.minAge > 0 {
				var age circuitinput.ProverInput
				if age, err = circuitinput.AgeProverInput(res, jobs[i].input.Reference, time.Now().UTC(), cfg.minAge); err == nil {
					pi[cma.Name] = age
				}
			}
			if err != nil {
				reports[i].InputsError = err.Error()
			}
			reports[i].ProverInputs = pi
			continue
		}
		ci, err := circuitinput.Build(res, inputOpts)
		if err != nil {
			reports[i].InputsError = err.Error()
		}
		reports[i].Inputs = ci
	}

	if cfg.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
	} else {
		for _, r := range reports {
			if err := renderReport(out, r); err != nil {
				return err
			}
		}
	}

	if cfg.inputsFile != "" && failed < len(results) {
		if err := writeInputs(cfg.inputsFile, reports, cfg.proverInputs); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrVerificationFailed, failed, len(results))
	}
	return nil
}

func (cfg *verifyConfig) input() (chain.Input, error) {
	var in chain.Input

	switch {
	case cfg.sodFile != "":
		s, err := config.ReadSOD(cfg.sodFile)
		if err != nil {
			return in, err
		}
		in.SOD = s
	case cfg.sod != "":
		in.SOD = cfg.sod
	default:
		return in, errors.New("one of --sod, --sod-file or --config is required")
	}

	switch {
	case cfg.referenceFile != "":
		ref, err := os.ReadFile(cfg.referenceFile)
		if err != nil {
			return in, fmt.Errorf("failed to read reference: %w", err)
		}
		in.Reference = ref
	case cfg.reference != "":
		ref, err := sod.DecodeBase64(cfg.reference)
		if err != nil {
			return in, fmt.Errorf("invalid reference: %w", err)
		}
		in.Reference = ref
	default:
		return in, errors.New("one of --reference or --reference-file is required")
	}

	if cfg.root == "" {
		return in, errors.New("--root is required")
	}
	root, err := os.ReadFile(cfg.root)
	if err != nil {
		return in, fmt.Errorf("failed to read trusted root: %w", err)
	}
	in.RootCertificate = root
	return in, nil
}

// writeInputs writes the inputs of verified runs. A single run is written as
// a bare object, several as a map keyed by job name.
func writeInputs(path string, reports []VerifyReport, prover bool) error {
	byName := make(map[string]any)
	for _, r := range reports {
		switch {
		case prover && r.ProverInputs != nil:
			byName[r.Name] = r.ProverInputs
		case !prover && r.Inputs != nil:
			byName[r.Name] = r.Inputs
		}
	}
	if len(byName) == 0 {
		return errors.New("no circuit inputs to write")
	}

	var v any = byName
	if len(reports) == 1 {
		v = byName[reports[0].Name]
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode inputs: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write inputs: %w", err)
	}
	return nil
}

func reportStatus(r VerifyReport) string {
	if r.Verified {
		return "VERIFIED"
	}
	return fmt.Sprintf("FAILED: %s at %s", r.Result.Reason, r.Result.Stage)
}
