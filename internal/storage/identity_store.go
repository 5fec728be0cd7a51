package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// --- Identity CRUD ---

// CreateIdentity inserts a new identity record and fills in the allocated
// sequential ID. The UNIQUE constraint on owner_address is the storage-level
// backstop for the one-identity-per-owner invariant.
func (d *DB) CreateIdentity(id *Identity) error {
	specs, err := json.Marshal(id.Specializations)
	if err != nil {
		return fmt.Errorf("marshal specializations: %w", err)
	}
	res, err := d.db.Exec(
		`INSERT INTO agents (owner_address, did, model_type, model_version, specializations, registered_at, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.OwnerAddress, id.DID, id.ModelType, id.ModelVersion, string(specs),
		id.RegisteredAt, boolToInt(id.Active),
	)
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	allocated, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("identity id: %w", err)
	}
	id.ID = allocated
	return nil
}

// GetIdentity retrieves an identity by its sequential ID.
func (d *DB) GetIdentity(id int64) (*Identity, error) {
	row := d.db.QueryRow(
		`SELECT id, owner_address, did, model_type, model_version, specializations, registered_at, active
		 FROM agents WHERE id = ?`, id,
	)
	return scanIdentity(row)
}

// GetIdentityByAddress retrieves an identity by its owner address.
func (d *DB) GetIdentityByAddress(address string) (*Identity, error) {
	row := d.db.QueryRow(
		`SELECT id, owner_address, did, model_type, model_version, specializations, registered_at, active
		 FROM agents WHERE owner_address = ?`, address,
	)
	return scanIdentity(row)
}

// SetIdentityActive toggles the active flag on an identity.
func (d *DB) SetIdentityActive(id int64, active bool) error {
	res, err := d.db.Exec(`UPDATE agents SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set identity active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set identity active: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountIdentities returns the total number of identities ever registered.
func (d *DB) CountIdentities() (int64, error) {
	var n int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM agents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

func scanIdentity(row *sql.Row) (*Identity, error) {
	id := &Identity{}
	var specs string
	var active int
	err := row.Scan(&id.ID, &id.OwnerAddress, &id.DID, &id.ModelType,
		&id.ModelVersion, &specs, &id.RegisteredAt, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if err := json.Unmarshal([]byte(specs), &id.Specializations); err != nil {
		return nil, fmt.Errorf("unmarshal specializations: %w", err)
	}
	id.Active = active == 1
	return id, nil
}
