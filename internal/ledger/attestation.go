package ledger

import (
	"errors"
	"fmt"

	"github.com/anna-protocol/anna/internal/storage"
)

// SubmitAttestation records a new attestation in Pending state and emits
// AttestationSubmitted for the verifier process to observe. The submitting
// address must hold a registered identity, and the derived fingerprint must
// not already exist.
func (l *Ledger) SubmitAttestation(contentHash, reasoningHash, agentAddress, modelVersion, category string, now int64) (*storage.Attestation, error) {
	agent, err := NormalizeAddress(agentAddress)
	if err != nil {
		return nil, err
	}
	content, err := NormalizeHash(contentHash)
	if err != nil {
		return nil, fmt.Errorf("content hash: %w", err)
	}
	reasoning, err := NormalizeHash(reasoningHash)
	if err != nil {
		return nil, fmt.Errorf("reasoning hash: %w", err)
	}
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidArgument)
	}

	mu := l.agentLock(agent)
	mu.Lock()
	defer mu.Unlock()

	if _, err := l.store.GetIdentityByAddress(agent); err != nil {
		return nil, mapStoreErr(err, ErrIdentityNotRegistered)
	}

	id, err := AttestationID(content, reasoning, agent, now)
	if err != nil {
		return nil, err
	}
	exists, err := l.store.HasAttestation(id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateAttestation
	}

	att := &storage.Attestation{
		ID:            id,
		ContentHash:   content,
		ReasoningHash: reasoning,
		AgentAddress:  agent,
		ModelVersion:  modelVersion,
		Category:      category,
		SubmittedAt:   now,
		Status:        storage.StatusPending,
	}
	if err := l.store.CreateAttestation(att); err != nil {
		return nil, err
	}

	l.bus.Publish(Event{Type: EventAttestationSubmitted, Payload: AttestationSubmitted{
		AttestationID: att.ID,
		Agent:         att.AgentAddress,
		Category:      att.Category,
		SubmittedAt:   att.SubmittedAt,
	}})
	return att, nil
}

// VerifyAttestation applies the single terminal verification write:
// Pending -> Verified when passed, Pending -> Rejected otherwise. The caller
// must be an authorized verifier and the outcome can never be overwritten.
func (l *Ledger) VerifyAttestation(attestationID, caller string, passed bool, consistencyScore int, now int64) error {
	verifier, err := NormalizeAddress(caller)
	if err != nil {
		return err
	}
	authorized, err := l.store.IsVerifier(verifier)
	if err != nil {
		return err
	}
	if !authorized {
		return ErrNotAuthorizedVerifier
	}
	if consistencyScore < 0 || consistencyScore > 100 {
		return ErrInvalidScore
	}

	att, err := l.store.GetAttestation(attestationID)
	if err != nil {
		return mapStoreErr(err, ErrNotFound)
	}

	mu := l.agentLock(att.AgentAddress)
	mu.Lock()
	defer mu.Unlock()

	if att.Status != storage.StatusPending {
		return ErrAlreadyVerified
	}

	status := storage.StatusRejected
	if passed {
		status = storage.StatusVerified
	}
	// The conditional update is the correctness backstop against a racing
	// verifier that slipped in between the read above and this write.
	if err := l.store.MarkVerified(attestationID, status, consistencyScore, verifier, now); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrAlreadyVerified
		}
		return err
	}

	l.bus.Publish(Event{Type: EventAttestationVerified, Payload: AttestationVerified{
		AttestationID:    attestationID,
		Verifier:         verifier,
		Status:           status,
		ConsistencyScore: consistencyScore,
	}})
	return nil
}

// ChallengeAttestation disputes a verified or rejected outcome. It must
// arrive within the challenge window after verification; Challenged is
// terminal in this core.
func (l *Ledger) ChallengeAttestation(attestationID, challenger, reason string, now int64) error {
	from, err := NormalizeAddress(challenger)
	if err != nil {
		return err
	}

	att, err := l.store.GetAttestation(attestationID)
	if err != nil {
		return mapStoreErr(err, ErrNotFound)
	}

	mu := l.agentLock(att.AgentAddress)
	mu.Lock()
	defer mu.Unlock()

	switch att.Status {
	case storage.StatusVerified, storage.StatusRejected:
	default:
		return ErrNotChallengeable
	}
	if now > att.VerifiedAt+l.windowSecs {
		return ErrChallengeWindowExpired
	}

	if err := l.store.MarkChallenged(attestationID, from, reason, now); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrNotChallengeable
		}
		return err
	}

	l.bus.Publish(Event{Type: EventAttestationChallenged, Payload: AttestationChallenged{
		AttestationID: attestationID,
		Challenger:    from,
		Reason:        reason,
	}})
	return nil
}

// GetAttestation returns the attestation with the given fingerprint.
func (l *Ledger) GetAttestation(attestationID string) (*storage.Attestation, error) {
	att, err := l.store.GetAttestation(attestationID)
	if err != nil {
		return nil, mapStoreErr(err, ErrNotFound)
	}
	return att, nil
}

// ListPendingAttestations returns up to limit unverified attestations,
// oldest first. This is the polling surface for the verifier process.
func (l *Ledger) ListPendingAttestations(limit int) ([]storage.Attestation, error) {
	if limit <= 0 {
		limit = 100
	}
	return l.store.ListAttestationsByStatus(storage.StatusPending, limit)
}

// ListAttestationsByAgent returns an agent's attestations, newest first.
func (l *Ledger) ListAttestationsByAgent(agentAddress string) ([]storage.Attestation, error) {
	agent, err := NormalizeAddress(agentAddress)
	if err != nil {
		return nil, err
	}
	return l.store.ListAttestationsByAgent(agent)
}

// AttestationCount returns the number of attestations an agent has submitted.
func (l *Ledger) AttestationCount(agentAddress string) (int64, error) {
	agent, err := NormalizeAddress(agentAddress)
	if err != nil {
		return 0, err
	}
	return l.store.CountAttestationsByAgent(agent)
}

// AddVerifier adds an address to the authorized-verifier set. Administrator
// only; idempotent.
func (l *Ledger) AddVerifier(address, caller string, now int64) error {
	addr, err := l.verifierSetArgs(address, caller)
	if err != nil {
		return err
	}

	l.registryMu.Lock()
	defer l.registryMu.Unlock()
	return l.store.AddVerifier(addr, now)
}

// RemoveVerifier removes an address from the authorized-verifier set.
// Administrator only; idempotent.
func (l *Ledger) RemoveVerifier(address, caller string) error {
	addr, err := l.verifierSetArgs(address, caller)
	if err != nil {
		return err
	}

	l.registryMu.Lock()
	defer l.registryMu.Unlock()
	return l.store.RemoveVerifier(addr)
}

// IsAuthorizedVerifier reports membership in the authorized-verifier set.
func (l *Ledger) IsAuthorizedVerifier(address string) (bool, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return false, err
	}
	return l.store.IsVerifier(addr)
}

// ListVerifiers returns the authorized-verifier set.
func (l *Ledger) ListVerifiers() ([]storage.Verifier, error) {
	return l.store.ListVerifiers()
}

func (l *Ledger) verifierSetArgs(address, caller string) (string, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return "", err
	}
	from, err := NormalizeAddress(caller)
	if err != nil {
		return "", err
	}
	if !l.isAdmin(from) {
		return "", ErrNotAuthorized
	}
	return addr, nil
}
