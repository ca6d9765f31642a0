package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logOf(kinds ...TicketEventKind) []TicketEvent {
	out := make([]TicketEvent, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, TicketEvent{Kind: k})
	}
	return out
}

func TestReplayStatus(t *testing.T) {
	cases := []struct {
		name    string
		log     []TicketEvent
		want    TicketStatus
		created bool
	}{
		{"empty", nil, "", false},
		{"created only", logOf(EventCreated), TicketStatusWaiting, true},
		{"transfer keeps waiting", logOf(EventCreated, EventTransferred), TicketStatusWaiting, true},
		{"recall after serving", logOf(EventCreated, EventCalled, EventServing, EventRecalled), TicketStatusCalled, true},
		{"served", logOf(EventCreated, EventCalled, EventServing, EventTransferred, EventCompleted), TicketStatusCompleted, true},
		{"no show", logOf(EventCreated, EventCalled, EventNoShow), TicketStatusNoShow, true},
		{"missing created", logOf(EventCalled, EventServing), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ReplayStatus(tc.log)
			assert.Equal(t, tc.created, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEventMetaStorage(t *testing.T) {
	counter := "12"
	raw, err := EncodeMeta(CalledMeta{CounterNumber: &counter})
	require.NoError(t, err)
	assert.JSONEq(t, `{"counterNumber":"12"}`, string(raw))

	meta, err := DecodeEventMeta(EventCalled, raw)
	require.NoError(t, err)
	assert.Equal(t, CalledMeta{CounterNumber: &counter}, meta)

	meta, err = DecodeEventMeta(EventTransferred, []byte(`{"counterNumber":null}`))
	require.NoError(t, err)
	assert.Equal(t, TransferredMeta{}, meta)

	raw, err = EncodeMeta(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
	meta, err = DecodeEventMeta(EventServing, raw)
	require.NoError(t, err)
	assert.Nil(t, meta)

	_, err = DecodeEventMeta(EventServing, []byte(`{"x":1}`))
	assert.Error(t, err)
}

func TestPrincipalOrgAccess(t *testing.T) {
	org := "org-1"
	agent := Principal{UserID: "u", Role: RoleAgent, OrgID: &org}
	assert.True(t, agent.CanAccessOrg("org-1"))
	assert.False(t, agent.CanAccessOrg("org-2"))
	assert.False(t, Principal{Role: RoleAdmin}.CanAccessOrg("org-1"))
	assert.True(t, Principal{Role: RoleSuperAdmin}.CanAccessOrg("org-2"))
}
