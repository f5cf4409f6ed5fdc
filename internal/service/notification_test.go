package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecollab/backend/internal/domain"
)

func newNotificationService(transport *fakeTransport, mailer *fakeMailer, profiles ...domain.Profile) (*NotificationService, *fakeNotificationRepo) {
	repo := newFakeNotificationRepo()
	return NewNotificationService(repo, newFakeProfiles(profiles...), transport, mailer), repo
}

func TestNotificationService_Routing(t *testing.T) {
	ctx := context.Background()
	quiet := user("quiet")
	quiet.NotificationSettings = map[domain.Category]domain.Preference{domain.CategoryVEInvite: domain.PreferenceNone}
	mailed := user("mailed")
	mailed.NotificationSettings = map[domain.Category]domain.Preference{domain.CategoryVEInvite: domain.PreferenceEmail}

	tests := []struct {
		name      string
		to        string
		online    bool
		wantState domain.ReceiveState
		wantStore bool
		wantPush  bool
		wantMail  bool
	}{
		{"none is dropped", "quiet", true, "", false, false, false},
		{"push online", "alice", true, domain.StateSent, true, true, false},
		{"push offline", "alice", false, domain.StatePending, true, false, false},
		{"email online", "mailed", true, domain.StateSent, true, true, true},
		{"email offline", "mailed", false, domain.StatePending, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport()
			if tt.online {
				transport = newFakeTransport(tt.to)
			}
			mailer := &fakeMailer{}
			svc, repo := newNotificationService(transport, mailer, user("alice"), quiet, mailed)

			require.NoError(t, svc.Send(ctx, tt.to, domain.NotifVEInvitation, map[string]any{"from": "bob"}))

			stored, err := repo.FindByRecipient(ctx, tt.to, true)
			require.NoError(t, err)
			if !tt.wantStore {
				assert.Empty(t, stored)
				assert.Empty(t, transport.emitted)
				assert.Empty(t, mailer.sent)
				return
			}
			require.Len(t, stored, 1)
			assert.Equal(t, tt.wantState, stored[0].ReceiveState)
			assert.Equal(t, "bob", stored[0].Payload["from"])

			if tt.wantPush {
				require.Len(t, transport.to("sid-"+tt.to), 1)
				assert.Equal(t, EventNotification, transport.emitted[0].event)
			} else {
				assert.Empty(t, transport.emitted)
			}
			if tt.wantMail {
				require.Len(t, mailer.sent, 1)
				assert.Equal(t, tt.to+"@example.org", mailer.sent[0].email)
				assert.Equal(t, "ve_invitation", mailer.sent[0].template)
			} else {
				assert.Empty(t, mailer.sent)
			}
		})
	}
}

func TestNotificationService_SendRejectsUnknownType(t *testing.T) {
	svc, _ := newNotificationService(newFakeTransport(), &fakeMailer{}, user("alice"))

	err := svc.Send(context.Background(), "alice", "party_invite", nil)
	assert.ErrorIs(t, err, domain.ErrWrongType)

	require.NoError(t, svc.Send(context.Background(), "alice", domain.ReminderType("evaluation"), nil))
}

func TestNotificationService_MailFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	p := user("alice")
	p.NotificationSettings = map[domain.Category]domain.Preference{domain.CategorySystem: domain.PreferenceEmail}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc, repo := newNotificationService(newFakeTransport(), mailer, p)

	require.NoError(t, svc.Send(ctx, "alice", domain.NotifAchievementLevelUp, nil))
	stored, err := repo.FindByRecipient(ctx, "alice", false)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestNotificationService_OfflineReplay(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	svc, repo := newNotificationService(transport, &fakeMailer{}, user("alice"))

	require.NoError(t, svc.Send(ctx, "alice", domain.NotifSpaceInvitation, map[string]any{"space_name": "Biology"}))
	require.NoError(t, svc.Send(ctx, "alice", domain.NotifVEInvitation, nil))
	assert.Empty(t, transport.emitted)

	transport.sids["alice"] = "sid-alice"
	require.NoError(t, svc.Replay(ctx, "alice"))

	pushed := transport.to("sid-alice")
	require.Len(t, pushed, 2)
	first, ok := pushed[0].payload.(domain.Notification)
	require.True(t, ok)
	assert.Equal(t, domain.NotifSpaceInvitation, first.Type)

	stored, err := repo.FindByRecipient(ctx, "alice", false)
	require.NoError(t, err)
	for _, n := range stored {
		assert.Equal(t, domain.StateSent, n.ReceiveState)
	}

	require.NoError(t, svc.Acknowledge(ctx, "alice", stored[0].ID))
	transport.emitted = nil
	require.NoError(t, svc.Replay(ctx, "alice"))
	assert.Len(t, transport.to("sid-alice"), 1, "acknowledged notifications are not replayed")
}

func TestNotificationService_Acknowledge(t *testing.T) {
	ctx := context.Background()
	svc, repo := newNotificationService(newFakeTransport(), &fakeMailer{}, user("alice"), user("bob"))
	require.NoError(t, svc.Send(ctx, "alice", domain.NotifVEInvitation, nil))
	require.NoError(t, svc.Send(ctx, "alice", domain.NotifVEInvitationReply, nil))
	stored, err := repo.FindByRecipient(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	assert.ErrorIs(t, svc.Acknowledge(ctx, "alice", domain.NewID()), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Acknowledge(ctx, "bob", stored[0].ID), domain.ErrNotFound)

	require.NoError(t, svc.Acknowledge(ctx, "alice", stored[0].ID))
	require.NoError(t, svc.Acknowledge(ctx, "alice", stored[0].ID))

	n, err := svc.AcknowledgeAll(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	open, err := svc.List(ctx, "alice", false)
	require.NoError(t, err)
	assert.Empty(t, open)
	all, err := svc.List(ctx, "alice", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
