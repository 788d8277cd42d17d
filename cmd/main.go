package main

import (
	"fmt"
	"os"
)

// sodzk - CLI tool and API service for verifying travel document SODs and
// producing the matching Zero-Knowledge proof inputs
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
