package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/server/api"
	"github.com/mynextid/sod-zk/sod/sodtest"
)

func testConfig(t *testing.T) *ServeConfig {
	return &ServeConfig{
		Host:           "localhost",
		Port:           8080,
		CircuitsDir:    t.TempDir(),
		MaxRequestSize: 1 << 20,
		WriteTimeout:   10 * time.Second,
		LogLevel:       "error",
	}
}

func postJSON(path string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestValidateServeConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServeConfig)
		wantErr string
	}{
		{"valid", func(*ServeConfig) {}, ""},
		{"bad port", func(c *ServeConfig) { c.Port = 0 }, "invalid port"},
		{"tls without files", func(c *ServeConfig) { c.EnableTLS = true }, "cert-file"},
		{"missing circuits dir", func(c *ServeConfig) { c.CircuitsDir = filepath.Join(c.CircuitsDir, "nope") }, "circuits directory"},
		{"missing circuits dir with compile", func(c *ServeConfig) {
			c.CircuitsDir = filepath.Join(c.CircuitsDir, "nope")
			c.CompileMissing = true
		}, ""},
		{"missing root", func(c *ServeConfig) { c.RootFile = filepath.Join(c.CircuitsDir, "root.pem") }, "root file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			err := validateServeConfig(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCircuits(t *testing.T) {
	cfg := testConfig(t)
	logger := common.NopLogger()

	// an empty directory loads nothing and still starts
	require.NoError(t, loadCircuits(api.NewCircuitRegistry(), cfg, logger))

	cfg.Circuits = []string{"unknown"}
	require.Error(t, loadCircuits(api.NewCircuitRegistry(), cfg, logger))
}

func TestRouterVerifySOD(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})

	cfg := testConfig(t)
	cfg.RootFile = filepath.Join(t.TempDir(), "csca.pem")
	require.NoError(t, os.WriteFile(cfg.RootFile, f.CSCAPEM, 0644))

	logger := common.NopLogger()
	opts, err := serverOptions(cfg, logger)
	require.NoError(t, err)
	router := setupRouter(api.NewServer(api.NewCircuitRegistry(), opts...), cfg, logger)

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("verify with configured root", func(t *testing.T) {
		body, err := json.Marshal(map[string]any{
			"sod":       f.Base64(),
			"reference": f.ReferenceBase64(),
			"inputs":    true,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, postJSON("/sod/verify", body))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp api.SODVerifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Verified)
		require.NotNil(t, resp.Inputs)
		assert.NotEmpty(t, resp.Inputs.DSModulus)
	})

	t.Run("request too large", func(t *testing.T) {
		small := *cfg
		small.MaxRequestSize = 16
		r := setupRouter(api.NewServer(api.NewCircuitRegistry(), opts...), &small, logger)

		body, err := json.Marshal(map[string]any{"sod": f.Base64(), "reference": f.ReferenceBase64()})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, postJSON("/sod/verify", body))
		assert.NotEqual(t, http.StatusOK, rec.Code)
	})

	t.Run("content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sod/verify", bytes.NewReader([]byte("sod=abc")))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("circuit list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/circuits", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestServerOptionsBadRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.RootFile = filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(cfg.RootFile, []byte("not a certificate"), 0644))

	_, err := serverOptions(cfg, common.NopLogger())
	require.Error(t, err)
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, requestLevel(http.StatusOK))
	assert.Equal(t, slog.LevelWarn, requestLevel(http.StatusNotFound))
	assert.Equal(t, slog.LevelError, requestLevel(http.StatusServiceUnavailable))
}
