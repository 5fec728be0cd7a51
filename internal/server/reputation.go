package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleUpdateReputation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Agent         string `json:"agent"`
		AttestationID string `json:"attestation_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.ledger.UpdateReputation(req.Agent, req.AttestationID, time.Now().Unix())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	s.log.Info("reputation updated",
		zap.String("agent", rec.AgentAddress),
		zap.Int64("score", rec.Score))
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.GetReputation(r.PathValue("address"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetScore(w http.ResponseWriter, r *http.Request) {
	score, err := s.ledger.GetScore(r.PathValue("address"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"score": score})
}
