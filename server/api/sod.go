package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mynextid/sod-zk/chain"
	"github.com/mynextid/sod-zk/circuitinput"
	cma "github.com/mynextid/sod-zk/circuits/mrz-age"
	"github.com/mynextid/sod-zk/sod"
)

// SODVerifyRequest asks for a chain verification of one SOD
type SODVerifyRequest struct {
	SOD string `json:"sod"`
	// Reference is the base64 reference data, usually DG1
	Reference string `json:"reference"`
	// RootPEM overrides the trusted root configured on the server
	RootPEM string `json:"root_pem,omitempty"`

	// Inputs requests the circuit input file of a verified SOD
	Inputs bool `json:"inputs,omitempty"`
	// ProverInputs requests prove request bodies for the registered circuits
	ProverInputs bool `json:"prover_inputs,omitempty"`
	// MinAge adds mrz-age prover inputs for this age, as of today
	MinAge int `json:"min_age,omitempty"`
}

// SODVerifyResponse carries the verification result. A failed verification
// is a 200 response with verified=false.
type SODVerifyResponse struct {
	Verified     bool                                `json:"verified"`
	Result       *chain.Result                       `json:"result"`
	Inputs       *circuitinput.Inputs                `json:"inputs,omitempty"`
	ProverInputs map[string]circuitinput.ProverInput `json:"prover_inputs,omitempty"`
	InputsError  string                              `json:"inputs_error,omitempty"`
	Timestamp    time.Time                           `json:"timestamp"`
}

// HandleVerifySOD runs the verification chain over a SOD
func (s *Server) HandleVerifySOD(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request",
			"failed to read request body")
		return
	}

	var req SODVerifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json",
			fmt.Sprintf("failed to parse request: %v", err))
		return
	}

	if req.SOD == "" || req.Reference == "" {
		respondError(w, http.StatusBadRequest, "missing_input",
			"both sod and reference are required")
		return
	}

	reference, err := sod.DecodeBase64(req.Reference)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_reference_encoding",
			fmt.Sprintf("failed to decode reference: %v", err))
		return
	}

	root := s.root
	if req.RootPEM != "" {
		root = []byte(req.RootPEM)
	}
	if len(root) == 0 {
		respondError(w, http.StatusBadRequest, "missing_root",
			"no trusted root configured and none in the request")
		return
	}

	res := s.verifier.Verify(r.Context(), chain.Input{
		SOD:             req.SOD,
		Reference:       reference,
		RootCertificate: root,
	})

	resp := SODVerifyResponse{
		Verified:  res.Verified(),
		Result:    res,
		Timestamp: time.Now(),
	}

	if res.Verified() && req.Inputs {
		if resp.Inputs, err = circuitinput.Build(res, s.inputOpts); err != nil {
			resp.InputsError = err.Error()
		}
	}
	if res.Verified() && req.ProverInputs {
		if resp.ProverInputs, err = circuitinput.ProverInputs(res, reference); err != nil {
			resp.InputsError = err.Error()
		} else if req.MinAge > 0 {
			age, err := circuitinput.AgeProverInput(res, reference, time.Now().UTC(), req.MinAge)
			if err != nil {
				resp.InputsError = err.Error()
			} else {
				resp.ProverInputs[cma.Name] = age
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
