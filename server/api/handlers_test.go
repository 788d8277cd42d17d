package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynextid/sod-zk/chain"
	dpl "github.com/mynextid/sod-zk/circuits/der-pubkey-lookup"
	cma "github.com/mynextid/sod-zk/circuits/mrz-age"
	seh "github.com/mynextid/sod-zk/circuits/sod-embedded-hash"
	sse "github.com/mynextid/sod-zk/circuits/sod-signature-es256"
	"github.com/mynextid/sod-zk/sod/sodtest"
)

func newTestRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.HandleHealth)
	r.Get("/circuits", s.HandleListCircuits)
	r.Get("/circuits/{circuit}", s.HandleGetCircuit)
	r.Post("/prove/{circuit}", s.HandleProve)
	r.Post("/verify/{circuit}", s.HandleVerify)
	r.Post("/sod/verify", s.HandleVerifySOD)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCircuitEndpoints(t *testing.T) {
	h := newTestRouter(NewServer(NewCircuitRegistry()))

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/circuits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list CircuitListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 4, list.Count)
	assert.Equal(t, dpl.Name, list.Circuits[0].Name)
	assert.Equal(t, cma.Name, list.Circuits[1].Name)
	assert.Equal(t, seh.Name, list.Circuits[2].Name)
	assert.Equal(t, sse.Name, list.Circuits[3].Name)
	assert.False(t, list.Circuits[0].Loaded)

	rec = do(t, h, http.MethodGet, "/circuits/"+seh.Name, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/circuits/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/prove/"+dpl.Name, ProveRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodPost, "/verify/unknown", VerifyRequest{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleVerifySOD(t *testing.T) {
	f := sodtest.MustNew(t, sodtest.Options{})

	t.Run("root from request", func(t *testing.T) {
		h := newTestRouter(NewServer(NewCircuitRegistry()))
		rec := do(t, h, http.MethodPost, "/sod/verify", SODVerifyRequest{
			SOD:          f.Base64(),
			Reference:    f.ReferenceBase64(),
			RootPEM:      string(f.CSCAPEM),
			Inputs:       true,
			ProverInputs: true,
			MinAge:       18,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SODVerifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Verified)
		assert.Empty(t, resp.InputsError)
		require.NotNil(t, resp.Inputs)
		assert.Len(t, resp.Inputs.DSModulus, 17)
		assert.Contains(t, resp.ProverInputs, dpl.Name)
		assert.Contains(t, resp.ProverInputs, seh.Name)
		assert.Contains(t, resp.ProverInputs, cma.Name)
		assert.Equal(t, 1, resp.Result.DataGroup)
		assert.Len(t, resp.Result.Trace, 6)
	})

	t.Run("configured root", func(t *testing.T) {
		h := newTestRouter(NewServer(NewCircuitRegistry(), WithTrustedRoot(f.CSCAPEM)))
		rec := do(t, h, http.MethodPost, "/sod/verify", SODVerifyRequest{
			SOD:       f.Base64(),
			Reference: f.ReferenceBase64(),
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp SODVerifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Verified)
		assert.Nil(t, resp.Inputs)
	})

	t.Run("failed verification", func(t *testing.T) {
		h := newTestRouter(NewServer(NewCircuitRegistry(), WithTrustedRoot(f.CSCAPEM)))
		rec := do(t, h, http.MethodPost, "/sod/verify", SODVerifyRequest{
			SOD:       f.Base64(),
			Reference: "b3RoZXI=",
			Inputs:    true,
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp SODVerifyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Verified)
		assert.Equal(t, chain.ReasonFieldNotFound, resp.Result.Reason)
		assert.Equal(t, chain.StageVerifyEmbeddedHash, resp.Result.Stage)
		assert.Nil(t, resp.Inputs)
	})

	badRequests := []struct {
		name string
		req  any
		code string
	}{
		{"missing reference", SODVerifyRequest{SOD: f.Base64()}, "missing_input"},
		{"bad reference", SODVerifyRequest{SOD: f.Base64(), Reference: "***"}, "invalid_reference_encoding"},
		{"no root", SODVerifyRequest{SOD: f.Base64(), Reference: f.ReferenceBase64()}, "missing_root"},
		{"not json", "sod", "invalid_json"},
	}
	for _, tt := range badRequests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(NewServer(NewCircuitRegistry()))
			rec := do(t, h, http.MethodPost, "/sod/verify", tt.req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewCircuitRegistry()
	require.NoError(t, reg.Register("a", &Circuit{}))
	assert.Error(t, reg.Register("a", &Circuit{}))
	assert.True(t, reg.Loaded("a"))

	_, err := reg.Get("b")
	assert.Error(t, err)

	err = reg.LoadCircuit(CircuitInfo{Name: "missing", Version: 1, Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestCircuitInfoPaths(t *testing.T) {
	ci := CircuitInfo{Name: dpl.Name, Version: 2, Dir: "setup"}
	ccs, pk, vk := ci.Paths()
	assert.Equal(t, "setup/der-pubkey-lookup-2.ccs", ccs)
	assert.Equal(t, "setup/der-pubkey-lookup-2.pk", pk)
	assert.Equal(t, "setup/der-pubkey-lookup-2.vk", vk)
}
