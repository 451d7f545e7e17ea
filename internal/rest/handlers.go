// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// HandlerContext holds dependencies for REST handlers.
type HandlerContext struct {
	// Service executes the passkey ceremonies
	Service *passkey.Service
	// Version is the API version
	Version string
	// HealthChecker manages health check probes
	HealthChecker HealthChecker
}

// HealthChecker defines the interface for health checking.
type HealthChecker interface {
	Live(ctx context.Context) health.CheckResult
	Ready(ctx context.Context) []health.CheckResult
	Startup(ctx context.Context) health.CheckResult
}

// NewHandlerContext creates a new handler context.
func NewHandlerContext(service *passkey.Service, version string) *HandlerContext {
	return &HandlerContext{
		Service: service,
		Version: version,
	}
}

// SetHealthChecker sets the health checker for the handler context.
func (h *HandlerContext) SetHealthChecker(checker HealthChecker) {
	h.HealthChecker = checker
}

// callerFromRequest assembles the ceremony caller context from the request:
// the installation token header plus the authenticated account, when the
// bearer middleware verified one.
func callerFromRequest(r *http.Request) passkey.CallerContext {
	return passkey.CallerContext{
		InstanceToken:    r.Header.Get(InstanceTokenHeader),
		AuthenticatedUID: AuthenticatedUID(r.Context()),
	}
}

// HealthHandler handles GET /health requests.
func (h *HandlerContext) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: h.Version,
	}
	writeJSON(w, resp, http.StatusOK)
}

// AttestationRequestHandler handles POST /v1/attestation/request.
// It issues a registration challenge for the calling installation.
func (h *HandlerContext) AttestationRequestHandler(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.Service.RegisterRequest(r.Context(), callerFromRequest(r))
	if err != nil {
		handleError(w, err)
		return
	}

	metrics.RecordChallengeIssued("registration")
	writeJSON(w, challenge, http.StatusOK)
}

// AttestationResponseHandler handles POST /v1/attestation/response.
// It verifies the authenticator's attestation, stores the new credential and
// returns a session token.
func (h *HandlerContext) AttestationResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req passkey.RegisterResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	result, err := h.Service.RegisterResponse(r.Context(), callerFromRequest(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	metrics.RecordCeremonyVerified("registration", "success")
	writeJSON(w, result, http.StatusOK)
}

// AssertionRequestHandler handles POST /v1/assertion/request.
// It issues an authentication challenge listing the caller's credentials.
func (h *HandlerContext) AssertionRequestHandler(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.Service.SignInRequest(r.Context(), callerFromRequest(r))
	if err != nil {
		handleError(w, err)
		return
	}

	metrics.RecordChallengeIssued("authentication")
	writeJSON(w, challenge, http.StatusOK)
}

// AssertionResponseHandler handles POST /v1/assertion/response.
// It verifies the authenticator's assertion and returns a session token.
func (h *HandlerContext) AssertionResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req passkey.SignInResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest, http.StatusBadRequest)
		return
	}

	result, err := h.Service.SignInResponse(r.Context(), callerFromRequest(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	metrics.RecordCeremonyVerified("authentication", "success")
	writeJSON(w, result, http.StatusOK)
}
