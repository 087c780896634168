package models

import "fmt"

// OfferingState enumerates the lifecycle states of a catalog offering.
type OfferingState string

const (
	StateInDraft  OfferingState = "IN_DRAFT"
	StateReleased OfferingState = "RELEASED"
	StateRevoked  OfferingState = "REVOKED"
	StateDeleted  OfferingState = "DELETED"
	StateArchived OfferingState = "ARCHIVED"
)

// TargetPurged is not a state; it is the request to remove a DELETED record and
// its remote document together. Accepted by the transition API only.
const TargetPurged = "PURGED"

// Rank exposes the informational ordering of states. It plays no role in
// transition legality.
func (s OfferingState) Rank() int {
	switch s {
	case StateInDraft:
		return 10
	case StateReleased:
		return 40
	case StateRevoked:
		return 60
	case StateDeleted:
		return 70
	case StateArchived:
		return 80
	}
	return 0
}

// Valid reports whether s is a known lifecycle state.
func (s OfferingState) Valid() bool {
	switch s {
	case StateInDraft, StateReleased, StateRevoked, StateDeleted, StateArchived:
		return true
	}
	return false
}

// Terminal reports whether no transition may ever leave s.
func (s OfferingState) Terminal() bool {
	return s == StateDeleted || s == StateArchived
}

// ParseOfferingState converts an API string into a state, rejecting unknown values.
func ParseOfferingState(raw string) (OfferingState, error) {
	s := OfferingState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown offering state %q", raw)
	}
	return s, nil
}

// InvalidTransitionError reports an attempt to move between two states the
// lifecycle rules do not connect.
type InvalidTransitionError struct {
	From OfferingState
	To   OfferingState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("offering transition %s -> %s is not allowed", e.From, e.To)
}
