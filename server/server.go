package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mynextid/sod-zk/chain"
	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/pki"
	"github.com/mynextid/sod-zk/server/api"
)

type ServeConfig struct {
	// Server settings
	Host string
	Port int

	// Circuit settings
	CircuitsDir    string
	Circuits       []string // Specific circuits to load (empty = all)
	CompileMissing bool     // compile and set up circuits whose files are missing

	// SOD verification settings
	RootFile          string // trusted root for /sod/verify (PEM, DER or PKCS#7)
	RequireAlignedKey bool

	// Performance settings
	MaxRequestSize  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Security settings
	EnableCORS  bool
	CorsOrigins []string

	// Observability
	EnablePprof bool
	LogLevel    string
	LogFormat   string // "json" or "text"

	// TLS settings
	EnableTLS bool
	CertFile  string
	KeyFile   string
}

func Run(cfg *ServeConfig) error {
	// Validate configuration
	if err := validateServeConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Setup structured logging
	logger := common.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	// Initialize circuit registry
	registry := api.NewCircuitRegistry()

	// Load circuits
	if err := loadCircuits(registry, cfg, logger); err != nil {
		return fmt.Errorf("failed to load circuits: %w", err)
	}

	opts, err := serverOptions(cfg, logger)
	if err != nil {
		return err
	}

	// Create server
	server := api.NewServer(registry, opts...)

	// Setup router with middleware
	r := setupRouter(server, cfg, logger)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:           addr,
		Handler:        r,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", addr, "tls", cfg.EnableTLS)

		var err error
		if cfg.EnableTLS {
			err = httpServer.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server gracefully...")
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// serverOptions builds the API options, loading the trusted root once so a
// bad root file fails at startup.
func serverOptions(cfg *ServeConfig, logger common.Logger) ([]api.ServerOption, error) {
	verifier := chain.NewVerifier(
		chain.WithLogger(logger),
		chain.WithRequireAlignedKey(cfg.RequireAlignedKey),
	)
	opts := []api.ServerOption{
		api.WithLogger(logger),
		api.WithVerifier(verifier),
	}

	if cfg.RootFile != "" {
		root, err := os.ReadFile(cfg.RootFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read trusted root: %w", err)
		}
		roots, err := pki.LoadRoots(root)
		if err != nil {
			return nil, fmt.Errorf("failed to load trusted root: %w", err)
		}
		logger.Info("Loaded trusted roots", "file", cfg.RootFile, "count", len(roots))
		opts = append(opts, api.WithTrustedRoot(root))
	}
	return opts, nil
}

func loadCircuits(registry *api.CircuitRegistry, cfg *ServeConfig, logger common.Logger) error {
	circuitsToLoad := cfg.Circuits
	if len(circuitsToLoad) == 0 {
		// Load all circuits
		for name := range api.CircuitList {
			circuitsToLoad = append(circuitsToLoad, name)
		}
	}

	loaded := 0
	for _, name := range circuitsToLoad {
		ci, ok := api.CircuitList[name]
		if !ok {
			return fmt.Errorf("unknown circuit %s", name)
		}
		ci.Dir = cfg.CircuitsDir

		load := registry.LoadCircuit
		if cfg.CompileMissing {
			load = registry.LoadOrCompile
		}
		if err := load(ci); err != nil {
			logger.Warn("Failed to load circuit", "circuit", name, "error", err)
			continue
		}
		loaded++
		logger.Info("Loaded circuit", "circuit", name)
	}

	// SOD verification works without circuits
	if loaded == 0 {
		logger.Warn("No circuits loaded, only /sod/verify is usable", "dir", cfg.CircuitsDir)
	}

	logger.Info("Circuit loading complete", "loaded", loaded, "total", len(circuitsToLoad))
	return nil
}

func validateServeConfig(cfg *ServeConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}

	if cfg.EnableTLS {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert-file or key-file not provided")
		}
		if _, err := os.Stat(cfg.CertFile); err != nil {
			return fmt.Errorf("cert file not found: %s", cfg.CertFile)
		}
		if _, err := os.Stat(cfg.KeyFile); err != nil {
			return fmt.Errorf("key file not found: %s", cfg.KeyFile)
		}
	}

	if _, err := os.Stat(cfg.CircuitsDir); err != nil && !cfg.CompileMissing {
		return fmt.Errorf("circuits directory not found: %s", cfg.CircuitsDir)
	}

	if cfg.RootFile != "" {
		if _, err := os.Stat(cfg.RootFile); err != nil {
			return fmt.Errorf("root file not found: %s", cfg.RootFile)
		}
	}

	return nil
}
