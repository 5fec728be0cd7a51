package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// --- Attestation CRUD ---

// CreateAttestation inserts a new attestation record.
func (d *DB) CreateAttestation(a *Attestation) error {
	_, err := d.db.Exec(
		`INSERT INTO attestations
		 (id, content_hash, reasoning_hash, agent_address, model_version, category,
		  submitted_at, status, consistency_score, verifier, verified_at,
		  challenger, challenge_reason, challenged_at, reputation_applied)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ContentHash, a.ReasoningHash, a.AgentAddress, a.ModelVersion,
		a.Category, a.SubmittedAt, a.Status, a.ConsistencyScore, a.Verifier,
		a.VerifiedAt, a.Challenger, a.ChallengeReason, a.ChallengedAt,
		boolToInt(a.ReputationApplied),
	)
	if err != nil {
		return fmt.Errorf("create attestation: %w", err)
	}
	return nil
}

// GetAttestation retrieves an attestation by fingerprint.
func (d *DB) GetAttestation(id string) (*Attestation, error) {
	row := d.db.QueryRow(attestationSelect+` WHERE id = ?`, id)
	return scanAttestation(row.Scan)
}

// HasAttestation reports whether an attestation with this fingerprint exists.
func (d *DB) HasAttestation(id string) (bool, error) {
	var one int
	err := d.db.QueryRow(`SELECT 1 FROM attestations WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has attestation: %w", err)
	}
	return true, nil
}

// MarkVerified moves a pending attestation to its terminal verification
// outcome. The status guard in the WHERE clause is the storage-level backstop
// for single-shot verification; ErrConflict means the record already left
// Pending.
func (d *DB) MarkVerified(id, status string, score int, verifier string, verifiedAt int64) error {
	res, err := d.db.Exec(
		`UPDATE attestations SET status = ?, consistency_score = ?, verifier = ?, verified_at = ?
		 WHERE id = ? AND status = ?`,
		status, score, verifier, verifiedAt, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return oneRowOr(res, ErrConflict)
}

// MarkChallenged moves a verified or rejected attestation to Challenged.
func (d *DB) MarkChallenged(id, challenger, reason string, challengedAt int64) error {
	res, err := d.db.Exec(
		`UPDATE attestations SET status = ?, challenger = ?, challenge_reason = ?, challenged_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		StatusChallenged, challenger, reason, challengedAt, id, StatusVerified, StatusRejected,
	)
	if err != nil {
		return fmt.Errorf("mark challenged: %w", err)
	}
	return oneRowOr(res, ErrConflict)
}

// ListAttestationsByStatus returns up to limit attestations in the given
// status, oldest first. The verifier process polls Pending records this way.
func (d *DB) ListAttestationsByStatus(status string, limit int) ([]Attestation, error) {
	rows, err := d.db.Query(
		attestationSelect+` WHERE status = ? ORDER BY submitted_at ASC LIMIT ?`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list attestations by status: %w", err)
	}
	return collectAttestations(rows)
}

// ListAttestationsByAgent returns all attestations submitted by an agent,
// newest first.
func (d *DB) ListAttestationsByAgent(address string) ([]Attestation, error) {
	rows, err := d.db.Query(
		attestationSelect+` WHERE agent_address = ? ORDER BY submitted_at DESC`,
		address,
	)
	if err != nil {
		return nil, fmt.Errorf("list attestations by agent: %w", err)
	}
	return collectAttestations(rows)
}

// CountAttestationsByAgent returns the number of attestations an agent has
// submitted.
func (d *DB) CountAttestationsByAgent(address string) (int64, error) {
	var n int64
	err := d.db.QueryRow(`SELECT COUNT(*) FROM attestations WHERE agent_address = ?`, address).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attestations by agent: %w", err)
	}
	return n, nil
}

const attestationSelect = `SELECT id, content_hash, reasoning_hash, agent_address, model_version,
	category, submitted_at, status, consistency_score, verifier, verified_at,
	challenger, challenge_reason, challenged_at, reputation_applied
	FROM attestations`

func scanAttestation(scan func(dest ...any) error) (*Attestation, error) {
	a := &Attestation{}
	var applied int
	err := scan(&a.ID, &a.ContentHash, &a.ReasoningHash, &a.AgentAddress,
		&a.ModelVersion, &a.Category, &a.SubmittedAt, &a.Status,
		&a.ConsistencyScore, &a.Verifier, &a.VerifiedAt,
		&a.Challenger, &a.ChallengeReason, &a.ChallengedAt, &applied)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan attestation: %w", err)
	}
	a.ReputationApplied = applied == 1
	return a, nil
}

func collectAttestations(rows *sql.Rows) ([]Attestation, error) {
	defer rows.Close()
	var out []Attestation
	for rows.Next() {
		a, err := scanAttestation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// oneRowOr returns errIfNone when the result affected no rows.
func oneRowOr(res sql.Result, errIfNone error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errIfNone
	}
	return nil
}
