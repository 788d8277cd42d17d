package common

import (
	"fmt"

	"github.com/consensys/gnark/frontend"
)

// InitCircuit loads a compiled circuit and its keys, compiling and running the
// setup first when any of the files is missing or forceCompile is set.
func InitCircuit(ccsPath, pkPath, vkPath string, forceCompile bool, circuitTemplate frontend.Circuit) (*Setup, error) {
	// Validate paths to prevent directory traversal attacks
	if err := validatePath(ccsPath); err != nil {
		return nil, fmt.Errorf("invalid ccsPath: %w", err)
	}
	if err := validatePath(pkPath); err != nil {
		return nil, fmt.Errorf("invalid pkPath: %w", err)
	}
	if err := validatePath(vkPath); err != nil {
		return nil, fmt.Errorf("invalid vkPath: %w", err)
	}

	if err := ensureDirectories(ccsPath, pkPath, vkPath); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if forceCompile {
		for _, p := range []string{ccsPath, pkPath, vkPath} {
			if err := safeRemove(p); err != nil {
				return nil, fmt.Errorf("failed to remove %s: %w", p, err)
			}
		}
	}

	if !fileExists(ccsPath) || !fileExists(pkPath) || !fileExists(vkPath) {
		s, err := SetupAndSave(circuitTemplate, ccsPath, pkPath, vkPath)
		if err != nil {
			return nil, fmt.Errorf("setup and save failed: %w", err)
		}
		return s, nil
	}

	return LoadSetup(ccsPath, pkPath, vkPath)
}
