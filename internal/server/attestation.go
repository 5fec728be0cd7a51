package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anna-protocol/anna/internal/storage"
)

func (s *Server) handleSubmitAttestation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContentHash   string `json:"content_hash"`
		ReasoningHash string `json:"reasoning_hash"`
		AgentAddress  string `json:"agent_address"`
		ModelVersion  string `json:"model_version"`
		Category      string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if !s.submitLimits.Allow(strings.ToLower(req.AgentAddress)) {
		writeError(w, http.StatusTooManyRequests, "submission rate limit exceeded")
		return
	}

	att, err := s.ledger.SubmitAttestation(req.ContentHash, req.ReasoningHash,
		req.AgentAddress, req.ModelVersion, req.Category, time.Now().Unix())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	s.log.Info("attestation submitted",
		zap.String("attestation_id", att.ID),
		zap.String("agent", att.AgentAddress),
		zap.String("category", att.Category))
	writeJSON(w, http.StatusCreated, att)
}

func (s *Server) handleListAttestations(w http.ResponseWriter, r *http.Request) {
	if agent := r.URL.Query().Get("agent"); agent != "" {
		atts, err := s.ledger.ListAttestationsByAgent(agent)
		if err != nil {
			s.writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, emptyIfNil(atts))
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && status != storage.StatusPending {
		writeError(w, http.StatusBadRequest, "only status=pending listing is supported")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	atts, err := s.ledger.ListPendingAttestations(limit)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(atts))
}

func (s *Server) handleAttestationCount(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		writeError(w, http.StatusBadRequest, "agent query parameter is required")
		return
	}
	n, err := s.ledger.AttestationCount(agent)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total": n})
}

func (s *Server) handleGetAttestation(w http.ResponseWriter, r *http.Request) {
	att, err := s.ledger.GetAttestation(r.PathValue("id"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleVerifyAttestation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller           string `json:"caller"`
		Passed           bool   `json:"passed"`
		ConsistencyScore int    `json:"consistency_score"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	attestationID := r.PathValue("id")
	err := s.ledger.VerifyAttestation(attestationID, req.Caller, req.Passed,
		req.ConsistencyScore, time.Now().Unix())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	s.log.Info("attestation verified",
		zap.String("attestation_id", attestationID),
		zap.String("verifier", req.Caller),
		zap.Bool("passed", req.Passed),
		zap.Int("consistency_score", req.ConsistencyScore))
	writeJSON(w, http.StatusOK, map[string]any{
		"attestation_id": attestationID,
		"passed":         req.Passed,
	})
}

func (s *Server) handleChallengeAttestation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Challenger string `json:"challenger"`
		Reason     string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	attestationID := r.PathValue("id")
	err := s.ledger.ChallengeAttestation(attestationID, req.Challenger, req.Reason, time.Now().Unix())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	s.log.Info("attestation challenged",
		zap.String("attestation_id", attestationID),
		zap.String("challenger", req.Challenger))
	writeJSON(w, http.StatusOK, map[string]string{
		"attestation_id": attestationID,
		"status":         storage.StatusChallenged,
	})
}

func (s *Server) handleAddVerifier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		Caller  string `json:"caller"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.ledger.AddVerifier(req.Address, req.Caller, time.Now().Unix()); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.log.Info("verifier authorized", zap.String("address", req.Address))
	writeJSON(w, http.StatusOK, map[string]string{"address": strings.ToLower(req.Address)})
}

func (s *Server) handleRemoveVerifier(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	caller := r.URL.Query().Get("caller")

	if err := s.ledger.RemoveVerifier(address, caller); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.log.Info("verifier deauthorized", zap.String("address", address))
	writeJSON(w, http.StatusOK, map[string]string{"address": strings.ToLower(address)})
}

func (s *Server) handleListVerifiers(w http.ResponseWriter, r *http.Request) {
	verifiers, err := s.ledger.ListVerifiers()
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(verifiers))
}

// emptyIfNil keeps list responses as [] instead of null.
func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
