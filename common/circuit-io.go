package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// Setup is a compiled BN254 constraint system with its Groth16 keys.
type Setup struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
}

// Compile compiles circuitTemplate and runs the Groth16 setup.
func Compile(circuitTemplate frontend.Circuit) (*Setup, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuitTemplate)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup: %w", err)
	}
	return &Setup{CCS: ccs, PK: pk, VK: vk}, nil
}

// SetupAndSave compiles the circuit, runs the setup and writes the three
// artifacts. Files are written next to their target and renamed into place,
// so a failed run never leaves a partial key behind.
func SetupAndSave(circuitTemplate frontend.Circuit, ccsPath, pkPath, vkPath string) (*Setup, error) {
	s, err := Compile(circuitTemplate)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ccsPath, pkPath, vkPath); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the constraint system and both keys.
func (s *Setup) Save(ccsPath, pkPath, vkPath string) error {
	for _, f := range []struct {
		path string
		w    io.WriterTo
	}{
		{ccsPath, s.CCS},
		{pkPath, s.PK},
		{vkPath, s.VK},
	} {
		if err := writeAtomic(f.path, f.w); err != nil {
			return err
		}
	}
	return nil
}

// LoadSetup reads a constraint system and its keys written by Save.
func LoadSetup(ccsPath, pkPath, vkPath string) (*Setup, error) {
	s := &Setup{
		CCS: groth16.NewCS(ecc.BN254),
		PK:  groth16.NewProvingKey(ecc.BN254),
		VK:  groth16.NewVerifyingKey(ecc.BN254),
	}
	for _, f := range []struct {
		path string
		r    io.ReaderFrom
	}{
		{ccsPath, s.CCS},
		{pkPath, s.PK},
		{vkPath, s.VK},
	} {
		if err := readFrom(f.path, f.r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func writeAtomic(path string, w io.WriterTo) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := w.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

func readFrom(path string, r io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := r.ReadFrom(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
