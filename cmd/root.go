package main

import (
	"github.com/spf13/cobra"

	"github.com/mynextid/sod-zk/cmd/passport"
	"github.com/mynextid/sod-zk/cmd/zkproof"
)

// Init the cmd
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sodzk",
		Short:         "SOD verification and Zero-Knowledge proof server",
		Long:          `Tools and APIs for verifying the Security Object Document of an electronic travel document and proving it in zero knowledge`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		zkproof.NewServeCmd(),
		zkproof.NewCompileCmd(),
		passport.NewVerifyCmd(),
		passport.NewInspectCmd(),
		NewVersionCmd(),
	)

	return rootCmd
}
