package zkproof

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mynextid/sod-zk/server/api"
)

type compileConfig struct {
	outputDir string
	circuits  []string
	curve     string
	force     bool
	logLevel  string
}

func NewCompileCmd() *cobra.Command {
	cfg := &compileConfig{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile circuits and generate setup files",
		Long:  `Compile zero-knowledge circuits and generate constraint systems, proving keys, and verification keys. Compiling all circuits might take some time. List of circuits is available at server/api/list.go`,
		Example: `  # Compile all circuits
  sodzk compile -o ./setup

  # Compile specific circuits
  sodzk compile -o ./setup -c der-pubkey-lookup,sod-embedded-hash

`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.outputDir, "output", "o", "./setup", "Output directory for compiled circuits")
	cmd.Flags().StringSliceVarP(&cfg.circuits, "circuits", "c", []string{}, "Specific circuits to compile (comma-separated, empty = all)")
	cmd.Flags().StringVar(&cfg.curve, "curve", "bn254", "Elliptic curve (bn254)")
	cmd.Flags().BoolVarP(&cfg.force, "force", "f", false, "Overwrite existing files")
	cmd.Flags().StringVar(&cfg.logLevel, "log-level", "warn", "gnark log level (debug, info, warn, error, disabled)")

	return cmd
}

// setGnarkLogger routes gnark's compile and setup logs to stderr at the
// given level.
func setGnarkLogger(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.Disabled {
		logger.Disable()
		return nil
	}
	logger.Set(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).With().Timestamp().Logger())
	return nil
}

func runCompile(out io.Writer, cfg *compileConfig) error {
	if cfg.curve != "bn254" {
		return fmt.Errorf("unsupported curve %s", cfg.curve)
	}
	if err := setGnarkLogger(cfg.logLevel); err != nil {
		return err
	}

	// Create output directory
	if err := os.MkdirAll(cfg.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	circuitsToCompile := cfg.circuits
	if len(circuitsToCompile) == 0 {
		for name := range api.CircuitList {
			circuitsToCompile = append(circuitsToCompile, name)
		}
	}

	fmt.Fprintf(out, "\n==== Compiling %d circuits to %s ====\n", len(circuitsToCompile), cfg.outputDir)

	failed := 0
	for _, name := range circuitsToCompile {
		info, ok := api.CircuitList[name]
		if !ok {
			fmt.Fprintf(out, "Circuit %s not found, skipping\n", name)
			continue
		}

		// set the output dir
		info.Dir = cfg.outputDir
		ccsPath, pkPath, vkPath := info.Paths()

		// Check if files exist
		if !cfg.force {
			if existing := firstExisting(ccsPath, pkPath, vkPath); existing != "" {
				fmt.Fprintf(out, "%s already exists, skipping (use --force to overwrite)\n", existing)
				continue
			}
		}

		start := time.Now()
		fmt.Fprintf(out, "Compiling %s...\n", name)

		// compile the circuit
		setup, err := info.Compile()
		if err != nil {
			fmt.Fprintf(out, "[X] Failed to compile %s: %v\n", name, err)
			failed++
			continue
		}

		elapsed := time.Since(start)
		fmt.Fprintf(out, "[OK] Compiled %s (%d constraints) in %s\n", name, setup.CCS.GetNbConstraints(), elapsed.Round(time.Second))
	}

	fmt.Fprintln(out, "\n==== Compilation complete ====")
	if failed > 0 {
		return fmt.Errorf("%d circuits failed to compile", failed)
	}
	return nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
