package passport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/mynextid/sod-zk/der"
	"github.com/mynextid/sod-zk/locator"
	"github.com/mynextid/sod-zk/sod"
)

type inspectConfig struct {
	base64 string
	unwrap bool
	dump   bool
	cert   bool
}

func NewInspectCmd() *cobra.Command {
	cfg := &inspectConfig{}

	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Print the DER tree of a SOD or certificate",
		Example: `  # Print the element tree of an EF.SOD file
  sodzk inspect --unwrap EF.SOD

  # Print a base64 SOD and the parsed SignedData
  sodzk inspect --unwrap --dump --base64 "d4IG..."

  # Locate the public key of a certificate
  sodzk inspect --cert ds.der`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), cfg, args)
		},
	}

	cmd.Flags().StringVar(&cfg.base64, "base64", "", "Base64 input instead of a file")
	cmd.Flags().BoolVarP(&cfg.unwrap, "unwrap", "u", false, "Strip the EF.SOD container prefix")
	cmd.Flags().BoolVar(&cfg.dump, "dump", false, "Also dump the parsed SignedData")
	cmd.Flags().BoolVar(&cfg.cert, "cert", false, "Treat the input as an X.509 certificate and locate its public key")

	return cmd
}

func runInspect(out io.Writer, cfg *inspectConfig, args []string) error {
	data, err := cfg.read(args)
	if err != nil {
		return err
	}
	if cfg.unwrap {
		if data, err = sod.Unwrap(data); err != nil {
			return err
		}
	}

	nodes, err := der.DecodeAll(data)
	if err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	for _, n := range nodes {
		if err := der.Dump(out, data, n); err != nil {
			return err
		}
	}

	if cfg.cert {
		if err := inspectCertificate(out, data); err != nil {
			return err
		}
	}

	if cfg.dump {
		msg, err := sod.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse SignedData: %w", err)
		}
		fmt.Fprintln(out)
		spew.Fdump(out, msg)
	}
	return nil
}

// read returns the raw input. Files holding base64 text are decoded.
func (cfg *inspectConfig) read(args []string) ([]byte, error) {
	if cfg.base64 != "" {
		if len(args) > 0 {
			return nil, errors.New("give either a file or --base64")
		}
		return sod.DecodeBase64(cfg.base64)
	}
	if len(args) == 0 {
		return nil, errors.New("no input: give a file or --base64")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) > 0 && (data[0] == 0x30 || data[0] == 0x77) {
		return data, nil
	}
	return sod.DecodeBase64(strings.TrimSpace(string(data)))
}

func inspectCertificate(out io.Writer, cert []byte) error {
	tbsRange, err := locator.CertificateTBS(cert)
	if err != nil {
		return err
	}
	tbs := tbsRange.Bytes(cert)

	key, err := locator.Locate(tbs)
	if err != nil {
		return fmt.Errorf("failed to locate public key: %w", err)
	}
	fmt.Fprintf(out, "\nTBS:        %s\n", tbsRange)
	fmt.Fprintf(out, "public key: %s (in TBS)\n", key)
	if mod, err := locator.RSAModulus(tbs, key); err == nil {
		fmt.Fprintf(out, "modulus:    %s (%d bits)\n", mod, mod.Len()*8)
	}
	return nil
}
