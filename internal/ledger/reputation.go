package ledger

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/anna-protocol/anna/internal/storage"
)

const secondsPerDay = 24 * 60 * 60

// UpdateReputation folds one attestation outcome into the agent's running
// aggregate and recomputes the bounded score. The attestation must have left
// Pending, must belong to the agent, and each attestation is folded exactly
// once: a second call fails with ErrAlreadyProcessed instead of
// double-counting.
func (l *Ledger) UpdateReputation(agentAddress, attestationID string, now int64) (*storage.ReputationRecord, error) {
	agent, err := NormalizeAddress(agentAddress)
	if err != nil {
		return nil, err
	}

	mu := l.agentLock(agent)
	mu.Lock()
	defer mu.Unlock()

	att, err := l.store.GetAttestation(attestationID)
	if err != nil {
		return nil, mapStoreErr(err, ErrNotFound)
	}
	if att.AgentAddress != agent {
		return nil, fmt.Errorf("%w: attestation %s does not belong to agent %s", ErrNotFound, attestationID, agent)
	}
	switch att.Status {
	case storage.StatusPending:
		return nil, ErrAttestationPending
	case storage.StatusChallenged:
		return nil, ErrUnderChallenge
	}
	if att.ReputationApplied {
		return nil, ErrAlreadyProcessed
	}

	rec, err := l.store.GetReputation(agent)
	if errors.Is(err, storage.ErrNotFound) {
		// Lazily created on first fold. RegisteredAt comes from the identity
		// so the age component reflects the agent's real registration time.
		id, idErr := l.store.GetIdentityByAddress(agent)
		if idErr != nil {
			return nil, mapStoreErr(idErr, ErrIdentityNotRegistered)
		}
		rec = &storage.ReputationRecord{
			AgentAddress: agent,
			RegisteredAt: id.RegisteredAt,
		}
	} else if err != nil {
		return nil, err
	}

	rec.TotalAttestations++
	switch att.Status {
	case storage.StatusVerified:
		rec.VerifiedAttestations++
		// Running mean with truncating integer division.
		n := rec.VerifiedAttestations
		rec.AverageConsistencyScore = (rec.AverageConsistencyScore*(n-1) + int64(att.ConsistencyScore)) / n
	case storage.StatusRejected:
		rec.RejectedAttestations++
	}
	rec.Score = computeScore(rec, now)
	rec.LastUpdatedAt = now

	if err := l.store.ApplyReputationUpdate(attestationID, rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}

	l.bus.Publish(Event{Type: EventReputationUpdated, Payload: ReputationUpdated{
		Agent:     agent,
		NewScore:  rec.Score,
		Timestamp: now,
	}})
	return rec, nil
}

// GetReputation returns the aggregate for an agent, or ErrNotFound if no
// outcome has ever been folded for it.
func (l *Ledger) GetReputation(agentAddress string) (*storage.ReputationRecord, error) {
	agent, err := NormalizeAddress(agentAddress)
	if err != nil {
		return nil, err
	}
	rec, err := l.store.GetReputation(agent)
	if err != nil {
		return nil, mapStoreErr(err, ErrNotFound)
	}
	return rec, nil
}

// GetScore returns an agent's reputation score, 0 for agents with no
// reputation record yet.
func (l *Ledger) GetScore(agentAddress string) (int64, error) {
	rec, err := l.GetReputation(agentAddress)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Score, nil
}

// computeScore recomputes the bounded 0-1000 score from the aggregate
// counters alone. All arithmetic is integer with truncation toward zero;
// the result is a consensus-relevant value and must be reproducible, so no
// floating point is used anywhere in this computation.
//
// Weights, in basis points out of 1000: volume 300, consistency 400, age 150.
// Each rejection costs 5 weighted points (10 * 500 / 1000).
func computeScore(rec *storage.ReputationRecord, now int64) int64 {
	// Logarithmic volume component so high-volume agents cannot dominate by
	// spamming: floor(log2(verified+1)) * 10, capped at 100.
	volume := ilog2(rec.VerifiedAttestations+1) * 10
	if volume > 100 {
		volume = 100
	}

	consistency := rec.AverageConsistencyScore

	ageDays := (now - rec.RegisteredAt) / secondsPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	ageScore := int64(100)
	if ageDays <= 365 {
		ageScore = ageDays * 100 / 365
	}

	weighted := (volume*300 + consistency*400 + ageScore*150) / 1000
	penalty := rec.RejectedAttestations * 10 * 500 / 1000
	if weighted <= penalty {
		return 0
	}
	score := (weighted - penalty) * 10
	if score > 1000 {
		score = 1000
	}
	return score
}

// ilog2 returns floor(log2(n)) for n >= 1.
func ilog2(n int64) int64 {
	return int64(bits.Len64(uint64(n))) - 1
}
