package api

import (
	"fmt"
	"path/filepath"

	"github.com/consensys/gnark/frontend"

	"github.com/mynextid/sod-zk/common"
)

// contains a list of circuits
type CircuitInfo struct {
	Circuit     frontend.Circuit
	Dir         string
	Name        string
	Version     uint
	Description string
	InputParser InputParser
}

// Paths returns the constraint system, proving key and verifying key files.
func (ci CircuitInfo) Paths() (ccsPath, pkPath, vkPath string) {
	base := filepath.Join(ci.Dir, fmt.Sprintf("%s-%d", ci.Name, ci.Version))
	return base + ".ccs", base + ".pk", base + ".vk"
}

// Compile compiles a circuit and stores the circuit information locally
func (ci CircuitInfo) Compile() (*common.Setup, error) {
	csPath, pkPath, vkPath := ci.Paths()
	return common.SetupAndSave(ci.Circuit, csPath, pkPath, vkPath)
}

// CompileAll compiles all the circuits into dir
func CompileAll(dir string) error {
	for _, v := range CircuitList {
		v.Dir = dir
		if _, err := v.Compile(); err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
	}
	return nil
}
