package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anna-protocol/anna/internal/ledger"
	"github.com/anna-protocol/anna/internal/ratelimit"
)

// Options configures a Server.
type Options struct {
	// SubmitRatePerMinute caps attestation submissions per agent address.
	// Zero means 60.
	SubmitRatePerMinute int
}

// Server is the HTTP API over the attestation ledger.
type Server struct {
	ledger       *ledger.Ledger
	log          *zap.Logger
	mux          *http.ServeMux
	submitLimits *ratelimit.Table
}

// New creates a Server with all routes registered.
func New(l *ledger.Ledger, log *zap.Logger, opts Options) *Server {
	rate := opts.SubmitRatePerMinute
	if rate <= 0 {
		rate = 60
	}
	s := &Server{
		ledger:       l,
		log:          log,
		mux:          http.NewServeMux(),
		submitLimits: ratelimit.NewTable(rate, time.Minute),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Identity registry
	s.mux.HandleFunc("POST /api/agents", s.handleRegisterAgent)
	s.mux.HandleFunc("GET /api/agents/count", s.handleAgentCount)
	s.mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	s.mux.HandleFunc("GET /api/agents/address/{address}", s.handleAgentByAddress)
	s.mux.HandleFunc("POST /api/agents/{id}/deactivate", s.handleDeactivateAgent)
	s.mux.HandleFunc("POST /api/agents/{id}/reactivate", s.handleReactivateAgent)

	// Attestation ledger
	s.mux.HandleFunc("POST /api/attestations", s.handleSubmitAttestation)
	s.mux.HandleFunc("GET /api/attestations", s.handleListAttestations)
	s.mux.HandleFunc("GET /api/attestations/count", s.handleAttestationCount)
	s.mux.HandleFunc("GET /api/attestations/{id}", s.handleGetAttestation)
	s.mux.HandleFunc("POST /api/attestations/{id}/verify", s.handleVerifyAttestation)
	s.mux.HandleFunc("POST /api/attestations/{id}/challenge", s.handleChallengeAttestation)

	// Authorized verifiers
	s.mux.HandleFunc("POST /api/verifiers", s.handleAddVerifier)
	s.mux.HandleFunc("DELETE /api/verifiers/{address}", s.handleRemoveVerifier)
	s.mux.HandleFunc("GET /api/verifiers", s.handleListVerifiers)

	// Reputation
	s.mux.HandleFunc("POST /api/reputation/update", s.handleUpdateReputation)
	s.mux.HandleFunc("GET /api/reputation/{address}", s.handleGetReputation)
	s.mux.HandleFunc("GET /api/reputation/{address}/score", s.handleGetScore)

	// Event stream
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "annad",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLedgerError maps a ledger error to its HTTP status and writes it.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	writeError(w, ledgerErrStatus(err), err.Error())
}

// ledgerErrStatus maps the ledger error taxonomy to HTTP status codes.
func ledgerErrStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, ledger.ErrInvalidScore):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotAuthorized),
		errors.Is(err, ledger.ErrNotAuthorizedVerifier),
		errors.Is(err, ledger.ErrIdentityNotRegistered):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrAlreadyRegistered),
		errors.Is(err, ledger.ErrDuplicateAttestation),
		errors.Is(err, ledger.ErrAlreadyVerified),
		errors.Is(err, ledger.ErrAlreadyProcessed),
		errors.Is(err, ledger.ErrNotChallengeable),
		errors.Is(err, ledger.ErrUnderChallenge),
		errors.Is(err, ledger.ErrAttestationPending),
		errors.Is(err, ledger.ErrChallengeWindowExpired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
