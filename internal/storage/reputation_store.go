package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// --- Reputation ---

// GetReputation retrieves the reputation aggregate for an agent.
func (d *DB) GetReputation(address string) (*ReputationRecord, error) {
	r := &ReputationRecord{}
	err := d.db.QueryRow(
		`SELECT agent_address, total_attestations, verified_attestations, rejected_attestations,
		        average_consistency_score, registered_at, last_updated_at, score
		 FROM reputation WHERE agent_address = ?`, address,
	).Scan(&r.AgentAddress, &r.TotalAttestations, &r.VerifiedAttestations,
		&r.RejectedAttestations, &r.AverageConsistencyScore, &r.RegisteredAt,
		&r.LastUpdatedAt, &r.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reputation: %w", err)
	}
	return r, nil
}

// ApplyReputationUpdate stores the new aggregate for an agent and marks the
// source attestation as folded, in one transaction. The reputation_applied
// guard makes the fold idempotent: if another caller already folded this
// attestation the update matches no rows and the whole transaction rolls
// back with ErrConflict.
func (d *DB) ApplyReputationUpdate(attestationID string, rec *ReputationRecord) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin reputation update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE attestations SET reputation_applied = 1
		 WHERE id = ? AND reputation_applied = 0`, attestationID,
	)
	if err != nil {
		return fmt.Errorf("mark reputation applied: %w", err)
	}
	if err := oneRowOr(res, ErrConflict); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO reputation
		 (agent_address, total_attestations, verified_attestations, rejected_attestations,
		  average_consistency_score, registered_at, last_updated_at, score)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(agent_address) DO UPDATE SET
		  total_attestations = excluded.total_attestations,
		  verified_attestations = excluded.verified_attestations,
		  rejected_attestations = excluded.rejected_attestations,
		  average_consistency_score = excluded.average_consistency_score,
		  last_updated_at = excluded.last_updated_at,
		  score = excluded.score`,
		rec.AgentAddress, rec.TotalAttestations, rec.VerifiedAttestations,
		rec.RejectedAttestations, rec.AverageConsistencyScore, rec.RegisteredAt,
		rec.LastUpdatedAt, rec.Score,
	)
	if err != nil {
		return fmt.Errorf("upsert reputation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reputation update: %w", err)
	}
	return nil
}
