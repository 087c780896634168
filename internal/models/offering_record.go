package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// OfferingRecord is the local, authoritative record of an offering's lifecycle
// state and ownership. The remote catalog is authoritative only for document
// content; state, issuer and the current content hash live here.
type OfferingRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	State              OfferingState  `gorm:"type:varchar(16);not null;index" json:"state"`
	Issuer             string         `gorm:"index" json:"issuer"`
	CurrentContentHash string         `gorm:"index" json:"current_content_hash"`
	ContractIDs        datatypes.JSON `json:"contract_ids"`

	// PendingRemoteRevoke marks records whose retirement was committed locally
	// while the remote revoke failed. The reconciler retries until it clears.
	PendingRemoteRevoke bool `gorm:"index" json:"pending_remote_revoke"`
}

// TableName keeps the table name stable across gorm naming strategy changes.
func (OfferingRecord) TableName() string { return "offering_records" }

// Contracts decodes the ordered list of contract identifiers referencing this
// offering. A missing or empty column decodes to an empty list.
func (r *OfferingRecord) Contracts() []string {
	if len(r.ContractIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(r.ContractIDs, &ids); err != nil {
		return nil
	}
	return ids
}

// HasContracts reports whether any live contract still references this offering.
func (r *OfferingRecord) HasContracts() bool {
	return len(r.Contracts()) > 0
}

// AddContract appends a contract reference, preserving order. Adding an
// already-present id is a no-op; the returned bool reports whether the list
// changed. Notifications are at-least-once, so this must stay idempotent.
func (r *OfferingRecord) AddContract(contractID string) bool {
	ids := r.Contracts()
	for _, id := range ids {
		if id == contractID {
			return false
		}
	}
	r.setContracts(append(ids, contractID))
	return true
}

// RemoveContract drops a contract reference. Removing an absent id is a no-op.
func (r *OfferingRecord) RemoveContract(contractID string) bool {
	ids := r.Contracts()
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != contractID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(ids) {
		return false
	}
	r.setContracts(kept)
	return true
}

func (r *OfferingRecord) setContracts(ids []string) {
	data, err := json.Marshal(ids)
	if err != nil {
		// a []string cannot fail to marshal
		panic(fmt.Sprintf("marshal contract ids: %v", err))
	}
	r.ContractIDs = datatypes.JSON(data)
}

// TransitionTo moves the record to an explicitly requested state. Only
// IN_DRAFT, RELEASED and REVOKED are valid explicit targets; retirement
// (DELETED/ARCHIVED) resolves its outcome from the contract list and must go
// through Retire. Illegal requests leave the record untouched.
func (r *OfferingRecord) TransitionTo(target OfferingState) error {
	if !r.canTransitionTo(target) {
		return &InvalidTransitionError{From: r.State, To: target}
	}
	r.State = target
	return nil
}

func (r *OfferingRecord) canTransitionTo(target OfferingState) bool {
	if r.State.Terminal() || r.State == target {
		return false
	}

	switch target {
	case StateInDraft:
		return r.State == StateRevoked && !r.HasContracts()
	case StateReleased:
		return r.State == StateInDraft || r.State == StateRevoked
	case StateRevoked:
		return r.State == StateReleased
	}
	return false
}

// Retire resolves the combined delete/archive action: the outcome is computed
// from the current contract list, never chosen by the caller. An offering with
// live contracts is archived, an unreferenced one is deleted. Only draft and
// revoked offerings may retire; the record is untouched on failure.
func (r *OfferingRecord) Retire() (OfferingState, error) {
	if r.State != StateInDraft && r.State != StateRevoked {
		return "", &InvalidTransitionError{From: r.State, To: StateDeleted}
	}

	target := StateDeleted
	if r.HasContracts() {
		target = StateArchived
	}
	r.State = target
	return target, nil
}
