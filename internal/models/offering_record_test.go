package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func record(state OfferingState, contracts ...string) *OfferingRecord {
	r := &OfferingRecord{
		ID:    "urn:offering:test",
		State: state,
	}
	for _, c := range contracts {
		r.AddContract(c)
	}
	return r
}

func TestTransitionTable(t *testing.T) {
	explicitTargets := []OfferingState{StateInDraft, StateReleased, StateRevoked}

	allowed := map[OfferingState]map[OfferingState]bool{
		StateInDraft:  {StateReleased: true},
		StateReleased: {StateRevoked: true},
		StateRevoked:  {StateInDraft: true, StateReleased: true},
		StateDeleted:  {},
		StateArchived: {},
	}

	for from, targets := range allowed {
		for _, to := range explicitTargets {
			r := record(from)
			err := r.TransitionTo(to)
			if targets[to] {
				require.NoError(t, err, "%s -> %s", from, to)
				require.Equal(t, to, r.State)
			} else {
				require.Error(t, err, "%s -> %s", from, to)
				require.Equal(t, from, r.State, "failed transition must not mutate state")

				var ite *InvalidTransitionError
				require.ErrorAs(t, err, &ite)
				require.Equal(t, from, ite.From)
				require.Equal(t, to, ite.To)
			}
		}
	}
}

func TestTransitionSelfLoopsRejected(t *testing.T) {
	for _, s := range []OfferingState{StateInDraft, StateReleased, StateRevoked} {
		r := record(s)
		require.Error(t, r.TransitionTo(s))
		require.Equal(t, s, r.State)
	}
}

func TestRevokedBackToDraftRequiresEmptyContracts(t *testing.T) {
	r := record(StateRevoked, "contract-1")
	require.Error(t, r.TransitionTo(StateInDraft))
	require.Equal(t, StateRevoked, r.State)

	require.True(t, r.RemoveContract("contract-1"))
	require.NoError(t, r.TransitionTo(StateInDraft))
	require.Equal(t, StateInDraft, r.State)
}

func TestRetireOutcomeComputedFromContracts(t *testing.T) {
	cases := []struct {
		name      string
		from      OfferingState
		contracts []string
		want      OfferingState
	}{
		{"draft without contracts", StateInDraft, nil, StateDeleted},
		{"draft with contracts", StateInDraft, []string{"c1"}, StateArchived},
		{"revoked without contracts", StateRevoked, nil, StateDeleted},
		{"revoked with contracts", StateRevoked, []string{"c1", "c2"}, StateArchived},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := record(tc.from, tc.contracts...)
			got, err := r.Retire()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.want, r.State)
		})
	}
}

func TestRetireIllegalStates(t *testing.T) {
	for _, s := range []OfferingState{StateReleased, StateDeleted, StateArchived} {
		r := record(s)
		_, err := r.Retire()
		require.Error(t, err, "retire from %s", s)
		require.Equal(t, s, r.State)
	}
}

func TestContractListIdempotency(t *testing.T) {
	r := record(StateReleased)

	require.True(t, r.AddContract("c1"))
	require.True(t, r.AddContract("c2"))
	require.False(t, r.AddContract("c1"), "duplicate add must be a no-op")
	require.Equal(t, []string{"c1", "c2"}, r.Contracts())

	require.False(t, r.RemoveContract("missing"), "absent remove must be a no-op")
	require.True(t, r.RemoveContract("c1"))
	require.Equal(t, []string{"c2"}, r.Contracts())
	require.True(t, r.HasContracts())

	require.True(t, r.RemoveContract("c2"))
	require.False(t, r.HasContracts())
}

func TestStateRankOrdering(t *testing.T) {
	order := []OfferingState{StateInDraft, StateReleased, StateRevoked, StateDeleted, StateArchived}
	for i := 1; i < len(order); i++ {
		require.Less(t, order[i-1].Rank(), order[i].Rank())
	}
}

func TestParseOfferingState(t *testing.T) {
	s, err := ParseOfferingState("RELEASED")
	require.NoError(t, err)
	require.Equal(t, StateReleased, s)

	_, err = ParseOfferingState("PURGED")
	require.Error(t, err, "PURGED is an action, not a state")

	_, err = ParseOfferingState("released")
	require.Error(t, err)
}
