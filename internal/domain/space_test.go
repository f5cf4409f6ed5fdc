package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSpace() Space {
	return Space{
		ID:      NewID(),
		Name:    "Biology",
		Members: []string{"alice", "bob"},
		Admins:  []string{"alice"},
	}
}

func TestSpace_InviteFlow(t *testing.T) {
	s := newTestSpace()

	changed, err := s.Invite("carol")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StateInvited, s.State("carol"))

	changed, err = s.Invite("carol")
	require.NoError(t, err)
	assert.False(t, changed, "second invite is a no-op")

	_, err = s.Invite("bob")
	assert.ErrorIs(t, err, ErrAlreadyMember)

	require.NoError(t, s.AcceptInvite("carol"))
	assert.Equal(t, StateMember, s.State("carol"))
	assert.NotContains(t, s.Invites, "carol")

	assert.ErrorIs(t, s.AcceptInvite("carol"), ErrUserNotInvited)
	assert.ErrorIs(t, s.DeclineInvite("carol"), ErrUserNotInvited)
}

func TestSpace_DeclineInvite(t *testing.T) {
	s := newTestSpace()
	_, err := s.Invite("carol")
	require.NoError(t, err)

	require.NoError(t, s.DeclineInvite("carol"))
	assert.Equal(t, StateNotMember, s.State("carol"))
}

func TestSpace_RequestFlow(t *testing.T) {
	s := newTestSpace()

	require.NoError(t, s.RequestJoin("dave"))
	assert.Equal(t, StateRequested, s.State("dave"))
	assert.ErrorIs(t, s.RequestJoin("dave"), ErrAlreadyRequested)
	assert.ErrorIs(t, s.RequestJoin("alice"), ErrAlreadyMember)

	require.NoError(t, s.AcceptRequest("dave"))
	assert.Equal(t, StateMember, s.State("dave"))
	assert.ErrorIs(t, s.AcceptRequest("dave"), ErrNotRequested)

	require.NoError(t, s.RequestJoin("erin"))
	require.NoError(t, s.RejectRequest("erin"))
	assert.Equal(t, StateNotMember, s.State("erin"))
	assert.ErrorIs(t, s.RejectRequest("erin"), ErrNotRequested)
}

func TestSpace_Join(t *testing.T) {
	s := newTestSpace()
	assert.ErrorIs(t, s.Join("carol"), ErrSpaceNotJoinable)

	s.Joinable = true
	require.NoError(t, s.Join("carol"))
	assert.True(t, s.IsMember("carol"))
	assert.ErrorIs(t, s.Join("carol"), ErrAlreadyMember)
}

func TestSpace_LeaveAndKick(t *testing.T) {
	s := newTestSpace()

	assert.ErrorIs(t, s.Leave("alice"), ErrSpaceOnlyAdmin)
	assert.ErrorIs(t, s.Leave("zoe"), ErrUserNotMember)
	require.NoError(t, s.Leave("bob"))
	assert.False(t, s.IsMember("bob"))

	assert.ErrorIs(t, s.Kick("bob"), ErrUserNotMember)
	s.Members = append(s.Members, "bob")
	require.NoError(t, s.Kick("bob"))
	assert.Equal(t, StateNotMember, s.State("bob"))
}

func TestSpace_PromoteDemote(t *testing.T) {
	s := newTestSpace()

	assert.ErrorIs(t, s.Promote("alice"), ErrAlreadyAdmin)
	assert.ErrorIs(t, s.Promote("zoe"), ErrUserNotMember)
	assert.ErrorIs(t, s.Demote("alice"), ErrSpaceOnlyAdmin)
	assert.ErrorIs(t, s.Demote("bob"), ErrUserNotAdmin)

	require.NoError(t, s.Promote("bob"))
	assert.Equal(t, StateAdmin, s.State("bob"))
	require.NoError(t, s.Demote("alice"))
	assert.Equal(t, StateMember, s.State("alice"))
	assert.Subset(t, s.Members, s.Admins)
}

func TestSpace_VisibleTo(t *testing.T) {
	s := newTestSpace()
	s.Invisible = true
	assert.True(t, s.VisibleTo("bob"))
	assert.False(t, s.VisibleTo("zoe"))
}
