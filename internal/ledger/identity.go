package ledger

import (
	"errors"
	"fmt"

	"github.com/anna-protocol/anna/internal/storage"
)

// DIDPrefix is prepended to the lowercase owner address to form the DID.
const DIDPrefix = "did:anna:"

// RegisterIdentity allocates the next sequential identity for ownerAddress.
// An empty did is derived as DIDPrefix plus the normalized owner address.
// Registration is final: one identity per address, never reassigned, never
// deleted. Fails with ErrAlreadyRegistered if the address already holds an
// identity, even a deactivated one.
func (l *Ledger) RegisterIdentity(ownerAddress, did, modelType, modelVersion string, specializations []string, now int64) (*storage.Identity, error) {
	owner, err := NormalizeAddress(ownerAddress)
	if err != nil {
		return nil, err
	}
	if modelType == "" || modelVersion == "" {
		return nil, fmt.Errorf("%w: model type and version are required", ErrInvalidArgument)
	}
	if did == "" {
		did = DIDPrefix + owner
	}
	if specializations == nil {
		specializations = []string{}
	}

	l.registryMu.Lock()
	defer l.registryMu.Unlock()

	_, err = l.store.GetIdentityByAddress(owner)
	if err == nil {
		return nil, ErrAlreadyRegistered
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	id := &storage.Identity{
		OwnerAddress:    owner,
		DID:             did,
		ModelType:       modelType,
		ModelVersion:    modelVersion,
		Specializations: specializations,
		RegisteredAt:    now,
		Active:          true,
	}
	if err := l.store.CreateIdentity(id); err != nil {
		return nil, err
	}

	l.bus.Publish(Event{Type: EventAgentRegistered, Payload: AgentRegistered{
		IdentityID:   id.ID,
		OwnerAddress: id.OwnerAddress,
		DID:          id.DID,
	}})
	return id, nil
}

// Deactivate clears the identity's active flag. Only the identity owner or
// the administrator may call it. History is unaffected.
func (l *Ledger) Deactivate(identityID int64, caller string) error {
	return l.setActive(identityID, caller, false)
}

// Reactivate restores the identity's active flag. Only the identity owner or
// the administrator may call it.
func (l *Ledger) Reactivate(identityID int64, caller string) error {
	return l.setActive(identityID, caller, true)
}

func (l *Ledger) setActive(identityID int64, caller string, active bool) error {
	from, err := NormalizeAddress(caller)
	if err != nil {
		return err
	}

	id, err := l.store.GetIdentity(identityID)
	if err != nil {
		return mapStoreErr(err, ErrNotFound)
	}
	if from != id.OwnerAddress && !l.isAdmin(from) {
		return ErrNotAuthorized
	}

	mu := l.agentLock(id.OwnerAddress)
	mu.Lock()
	defer mu.Unlock()

	if err := l.store.SetIdentityActive(identityID, active); err != nil {
		return mapStoreErr(err, ErrNotFound)
	}

	if active {
		l.bus.Publish(Event{Type: EventAgentReactivated, Payload: AgentReactivated{IdentityID: identityID}})
	} else {
		l.bus.Publish(Event{Type: EventAgentDeactivated, Payload: AgentDeactivated{IdentityID: identityID}})
	}
	return nil
}

// GetMetadata returns the identity record for an allocated ID.
func (l *Ledger) GetMetadata(identityID int64) (*storage.Identity, error) {
	id, err := l.store.GetIdentity(identityID)
	if err != nil {
		return nil, mapStoreErr(err, ErrNotFound)
	}
	return id, nil
}

// IdentityIDByAddress is the reverse lookup used to gate submissions.
// Returns 0 when the address holds no identity.
func (l *Ledger) IdentityIDByAddress(address string) (int64, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return 0, err
	}
	id, err := l.store.GetIdentityByAddress(addr)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id.ID, nil
}

// TotalIdentities returns the number of identities ever registered.
// Monotonically non-decreasing: identities are never deleted.
func (l *Ledger) TotalIdentities() (int64, error) {
	return l.store.CountIdentities()
}
