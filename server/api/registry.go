package api

import (
	"fmt"
	"sync"

	"github.com/mynextid/sod-zk/common"
)

// CircuitRegistry stores compiled circuits by name
type CircuitRegistry struct {
	mu       sync.RWMutex
	Circuits map[string]*Circuit
}

// NewCircuitRegistry creates a new registry
func NewCircuitRegistry() *CircuitRegistry {
	return &CircuitRegistry{
		Circuits: make(map[string]*Circuit),
	}
}

// LoadCircuit loads the compiled files of ci from ci.Dir.
func (cr *CircuitRegistry) LoadCircuit(ci CircuitInfo) error {
	csPath, pkPath, vkPath := ci.Paths()

	setup, err := common.LoadSetup(csPath, pkPath, vkPath)
	if err != nil {
		return fmt.Errorf("failed to load the circuit: %w", err)
	}

	return cr.Register(ci.Name, newCircuit(setup, ci.InputParser))
}

// LoadOrCompile loads ci, compiling it and running the setup first when its
// files are missing.
func (cr *CircuitRegistry) LoadOrCompile(ci CircuitInfo) error {
	csPath, pkPath, vkPath := ci.Paths()

	setup, err := common.InitCircuit(csPath, pkPath, vkPath, false, ci.Circuit)
	if err != nil {
		return fmt.Errorf("failed to initialize the circuit: %w", err)
	}

	return cr.Register(ci.Name, newCircuit(setup, ci.InputParser))
}

// Get returns a circuit by name
func (cr *CircuitRegistry) Get(name string) (*Circuit, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if c, ok := cr.Circuits[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("circuit %s not found", name)
}

// Loaded reports whether a circuit is registered under name.
func (cr *CircuitRegistry) Loaded(name string) bool {
	_, err := cr.Get(name)
	return err == nil
}

// Register registers a new circuit by user-defined name
func (cr *CircuitRegistry) Register(name string, circuit *Circuit) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if _, ok := cr.Circuits[name]; ok {
		return fmt.Errorf("circuit with name %s already exists", name)
	}
	cr.Circuits[name] = circuit
	return nil
}
