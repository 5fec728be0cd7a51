package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// --- Authorized verifier set ---

// AddVerifier adds an address to the authorized-verifier set. Idempotent.
func (d *DB) AddVerifier(address string, addedAt int64) error {
	_, err := d.db.Exec(
		`INSERT OR IGNORE INTO verifiers (address, added_at) VALUES (?, ?)`,
		address, addedAt,
	)
	if err != nil {
		return fmt.Errorf("add verifier: %w", err)
	}
	return nil
}

// RemoveVerifier removes an address from the authorized-verifier set.
// Idempotent: removing an absent address is not an error.
func (d *DB) RemoveVerifier(address string) error {
	if _, err := d.db.Exec(`DELETE FROM verifiers WHERE address = ?`, address); err != nil {
		return fmt.Errorf("remove verifier: %w", err)
	}
	return nil
}

// IsVerifier reports whether an address is in the authorized-verifier set.
func (d *DB) IsVerifier(address string) (bool, error) {
	var one int
	err := d.db.QueryRow(`SELECT 1 FROM verifiers WHERE address = ?`, address).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is verifier: %w", err)
	}
	return true, nil
}

// ListVerifiers returns all authorized verifiers.
func (d *DB) ListVerifiers() ([]Verifier, error) {
	rows, err := d.db.Query(`SELECT address, added_at FROM verifiers ORDER BY added_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list verifiers: %w", err)
	}
	defer rows.Close()

	var out []Verifier
	for rows.Next() {
		var v Verifier
		if err := rows.Scan(&v.Address, &v.AddedAt); err != nil {
			return nil, fmt.Errorf("scan verifier: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
