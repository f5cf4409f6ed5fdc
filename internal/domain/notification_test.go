package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatePending, StateSent))
	assert.True(t, CanTransition(StatePending, StateAcknowledged))
	assert.True(t, CanTransition(StateSent, StateAcknowledged))
	assert.False(t, CanTransition(StateSent, StatePending))
	assert.False(t, CanTransition(StateAcknowledged, StateSent))
	assert.False(t, CanTransition(StateAcknowledged, StateAcknowledged))
}

func TestNotificationType(t *testing.T) {
	assert.True(t, ReminderType("evaluation").Valid())
	assert.False(t, NotificationType("reminder_").Valid())
	assert.False(t, NotificationType("bogus").Valid())

	assert.Equal(t, CategoryMessages, NotifNewMessages.Category())
	assert.Equal(t, CategoryVEInvite, NotifPlanAddedAsPartner.Category())
	assert.Equal(t, CategoryGroupInvite, NotifSpaceInvitation.Category())
	assert.Equal(t, CategorySystem, NotifAchievementLevelUp.Category())
	assert.Equal(t, "reminder", ReminderType("x").Template())
}

func TestProfile_PreferenceFor(t *testing.T) {
	p := Profile{NotificationSettings: map[Category]Preference{CategoryVEInvite: PreferenceNone}}
	assert.Equal(t, PreferenceNone, p.PreferenceFor(CategoryVEInvite))
	assert.Equal(t, PreferenceEmail, p.PreferenceFor(CategoryMessages))

	assert.NoError(t, ValidateNotificationSettings(map[Category]Preference{CategorySystem: PreferenceEmail}))
	assert.Error(t, ValidateNotificationSettings(map[Category]Preference{"other": PreferenceEmail}))
	assert.Error(t, ValidateNotificationSettings(map[Category]Preference{CategorySystem: "sms"}))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0, Level(4))
	assert.Equal(t, 1, Level(5))
	assert.Equal(t, 2, Level(99))
	assert.Equal(t, 4, Level(1000))
}

func TestRoom_NewMessage(t *testing.T) {
	room := Room{ID: NewID(), Members: []string{"alice", "bob", "carol"}}
	online := func(u string) bool { return u == "bob" }

	msg := room.NewMessage("alice", "hi", time.Now(), online)

	assert.Len(t, msg.SendStates, 3)
	state, _ := msg.StateOf("alice")
	assert.Equal(t, StateAcknowledged, state)
	state, _ = msg.StateOf("bob")
	assert.Equal(t, StateSent, state)
	state, _ = msg.StateOf("carol")
	assert.Equal(t, StatePending, state)
	_, ok := msg.StateOf("dave")
	assert.False(t, ok)
}

func TestMemberKey(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, MemberKey([]string{"b", "a", "b"}))
}

func TestTemplates(t *testing.T) {
	space := NewID()
	guest := SpaceTemplate(RoleGuest, space)
	assert.True(t, guest.Allows(CapReadTimeline))
	assert.False(t, guest.Allows(CapPost))
	assert.Equal(t, space.Hex(), guest.Scope)
	assert.True(t, SpaceTemplate(RoleUser, space).Allows(CapWriteWiki))

	assert.False(t, GlobalTemplate(RoleGuest).Allows(CapCreateSpace))
	assert.True(t, GlobalTemplate(RoleUser).Allows(CapCreateSpace))
	assert.True(t, IsCapability(GlobalScope, CapCreateSpace))
	assert.False(t, IsCapability(GlobalScope, CapPost))
	assert.True(t, IsCapability(space.Hex(), CapPost))
}
