package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerAddress    string   `json:"owner_address"`
		DID             string   `json:"did"`
		ModelType       string   `json:"model_type"`
		ModelVersion    string   `json:"model_version"`
		Specializations []string `json:"specializations"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := s.ledger.RegisterIdentity(req.OwnerAddress, req.DID, req.ModelType,
		req.ModelVersion, req.Specializations, time.Now().Unix())
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}

	s.log.Info("agent registered",
		zap.Int64("identity_id", id.ID),
		zap.String("owner", id.OwnerAddress))
	writeJSON(w, http.StatusCreated, id)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	identityID, ok := pathID(w, r)
	if !ok {
		return
	}
	id, err := s.ledger.GetMetadata(identityID)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) handleAgentByAddress(w http.ResponseWriter, r *http.Request) {
	identityID, err := s.ledger.IdentityIDByAddress(r.PathValue("address"))
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"identity_id": identityID})
}

func (s *Server) handleAgentCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.TotalIdentities()
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total": n})
}

func (s *Server) handleDeactivateAgent(w http.ResponseWriter, r *http.Request) {
	s.handleSetAgentActive(w, r, false)
}

func (s *Server) handleReactivateAgent(w http.ResponseWriter, r *http.Request) {
	s.handleSetAgentActive(w, r, true)
}

func (s *Server) handleSetAgentActive(w http.ResponseWriter, r *http.Request, active bool) {
	identityID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var err error
	if active {
		err = s.ledger.Reactivate(identityID, req.Caller)
	} else {
		err = s.ledger.Deactivate(identityID, req.Caller)
	}
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity_id": identityID, "active": active})
}

// pathID parses the {id} path segment as an identity ID.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid identity id")
		return 0, false
	}
	return id, true
}
