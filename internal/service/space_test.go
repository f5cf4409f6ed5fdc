package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

func TestSpaceService_Create(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), domain.Profile{Username: "gus", Role: domain.RoleGuest})

	_, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrMissingKey)
	_, err = w.spaces.Create(ctx, "gus", NewSpace{Name: "Guests"})
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)

	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: " Biology ", Joinable: true})
	require.NoError(t, err)
	assert.Equal(t, "Biology", space.Name)
	assert.Equal(t, []string{"alice"}, space.Members)
	assert.Equal(t, []string{"alice"}, space.Admins)
	require.NotNil(t, space.PictureID)
	assert.Equal(t, domain.DefaultGroupPicID, *space.PictureID)

	rules, err := w.aclRepo.FindByScope(ctx, space.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, rules, len(domain.Roles))
}

func TestSpaceService_InvisibleSpaces(t *testing.T) {
	ctx := context.Background()
	w := newWorld(admin("root"), user("alice"), user("bob"))
	hidden, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Hidden", Invisible: true})
	require.NoError(t, err)
	_, err = w.spaces.Create(ctx, "alice", NewSpace{Name: "Open"})
	require.NoError(t, err)

	_, err = w.spaces.Get(ctx, "bob", hidden.ID)
	assert.ErrorIs(t, err, ErrSpaceNotFound)
	_, err = w.spaces.Get(ctx, "root", hidden.ID)
	require.NoError(t, err)

	listed, err := w.spaces.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Open", listed[0].Name)

	listed, err = w.spaces.List(ctx, "root")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestSpaceService_Membership(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"), user("carol"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology"})
	require.NoError(t, err)
	state := func(user string) domain.MembershipState { return w.spaceRepo.byID[space.ID].State(user) }

	assert.ErrorIs(t, w.spaces.Invite(ctx, "bob", space.ID, "carol"), domain.ErrInsufficientPermission)

	require.NoError(t, w.spaces.Invite(ctx, "alice", space.ID, "bob"))
	require.NoError(t, w.spaces.Invite(ctx, "alice", space.ID, "bob"))
	assert.Len(t, w.notifier.of(domain.NotifSpaceInvitation), 1, "a repeated invite does not notify")
	assert.Equal(t, domain.StateInvited, state("bob"))
	invites, err := w.spaces.ListPendingInvites(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, invites, 1)

	require.NoError(t, w.spaces.AcceptInvite(ctx, "bob", space.ID))
	assert.Equal(t, domain.StateMember, state("bob"))
	assert.ErrorIs(t, w.spaces.AcceptInvite(ctx, "bob", space.ID), domain.ErrUserNotInvited)

	assert.ErrorIs(t, w.spaces.Join(ctx, "carol", space.ID), domain.ErrSpaceNotJoinable)
	require.NoError(t, w.spaces.RequestJoin(ctx, "carol", space.ID))
	assert.ErrorIs(t, w.spaces.RequestJoin(ctx, "carol", space.ID), domain.ErrAlreadyRequested)
	requests := w.notifier.of(domain.NotifSpaceJoinRequest)
	require.Len(t, requests, 1)
	assert.Equal(t, "alice", requests[0].to)
	assert.Equal(t, "carol", requests[0].payload["from"])

	_, err = w.spaces.ListJoinRequests(ctx, "bob", space.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)
	pending, err := w.spaces.ListJoinRequests(ctx, "alice", space.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, pending)

	require.NoError(t, w.spaces.AcceptRequest(ctx, "alice", space.ID, "carol"))
	assert.Equal(t, domain.StateMember, state("carol"))

	assert.ErrorIs(t, w.spaces.Leave(ctx, "alice", space.ID), domain.ErrSpaceOnlyAdmin)
	require.NoError(t, w.spaces.Promote(ctx, "alice", space.ID, "bob"))
	assert.ErrorIs(t, w.spaces.Promote(ctx, "alice", space.ID, "bob"), domain.ErrAlreadyAdmin)
	require.NoError(t, w.spaces.Leave(ctx, "alice", space.ID))
	assert.Equal(t, domain.StateNotMember, state("alice"))

	assert.ErrorIs(t, w.spaces.Demote(ctx, "bob", space.ID, "bob"), domain.ErrSpaceOnlyAdmin)
	require.NoError(t, w.spaces.Kick(ctx, "bob", space.ID, "carol"))
	assert.Equal(t, domain.StateNotMember, state("carol"))
}

func TestSpaceService_JoinNeedsCapability(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Open", Joinable: true})
	require.NoError(t, err)
	require.NoError(t, w.acl.SetRule(ctx, "alice", domain.RoleUser, space.ID.Hex(), domain.CapJoinSpace, false))

	assert.ErrorIs(t, w.spaces.Join(ctx, "bob", space.ID), domain.ErrInsufficientPermission)
	assert.ErrorIs(t, w.spaces.RequestJoin(ctx, "bob", space.ID), domain.ErrInsufficientPermission)

	require.NoError(t, w.acl.SetRule(ctx, "alice", domain.RoleUser, space.ID.Hex(), domain.CapJoinSpace, true))
	require.NoError(t, w.spaces.Join(ctx, "bob", space.ID))
	assert.True(t, w.spaceRepo.byID[space.ID].IsMember("bob"))
}

func TestSpaceService_TransitionRetries(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Open", Joinable: true})
	require.NoError(t, err)

	w.spaceRepo.conflicts = maxTransitionAttempts - 1
	require.NoError(t, w.spaces.Join(ctx, "bob", space.ID))
	assert.True(t, w.spaceRepo.byID[space.ID].IsMember("bob"))

	w.spaceRepo.conflicts = maxTransitionAttempts
	err = w.spaces.Leave(ctx, "bob", space.ID)
	assert.ErrorIs(t, err, ErrSpaceStateChanged)
	assert.True(t, w.spaceRepo.byID[space.ID].IsMember("bob"))
}

func TestSpaceService_Update(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology"})
	require.NoError(t, err)

	name := " Chemistry "
	_, err = w.spaces.Update(ctx, "bob", space.ID, repository.SpaceUpdate{Name: &name})
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)

	updated, err := w.spaces.Update(ctx, "alice", space.ID, repository.SpaceUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", updated.Name)

	blank := ""
	_, err = w.spaces.Update(ctx, "alice", space.ID, repository.SpaceUpdate{Name: &blank})
	assert.ErrorIs(t, err, domain.ErrMissingKey)
}

func TestSpaceService_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology"})
	require.NoError(t, err)
	other, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Chemistry"})
	require.NoError(t, err)

	post, err := w.posts.Create(ctx, "alice", NewPost{
		Text:    "slides #lecture",
		Space:   &space.ID,
		Uploads: []Upload{{FileName: "slides.pdf", Data: []byte("pdf")}},
	})
	require.NoError(t, err)
	repoFile, err := w.spaces.AddRepoFile(ctx, "alice", space.ID, Upload{FileName: "notes.txt", Data: []byte("notes")})
	require.NoError(t, err)
	kept, err := w.posts.Create(ctx, "alice", NewPost{Text: "elsewhere", Space: &other.ID})
	require.NoError(t, err)
	require.Len(t, w.blobs.objects, 2)

	assert.ErrorIs(t, w.spaces.Delete(ctx, "bob", space.ID), domain.ErrInsufficientPermission)
	require.NoError(t, w.spaces.Delete(ctx, "alice", space.ID))

	assert.NotContains(t, w.spaceRepo.byID, space.ID)
	assert.NotContains(t, w.postRepo.byID, post.ID)
	assert.Contains(t, w.postRepo.byID, kept.ID)
	assert.NotContains(t, w.blobs.objects, post.Files[0].FileID)
	assert.NotContains(t, w.blobs.objects, repoFile.FileID)
	rules, err := w.aclRepo.FindByScope(ctx, space.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, rules)
	rules, err = w.aclRepo.FindByScope(ctx, other.ID.Hex())
	require.NoError(t, err)
	assert.NotEmpty(t, rules)
}

func TestSpaceService_RepoFiles(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"), user("carol"), domain.Profile{Username: "gus", Role: domain.RoleGuest})
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology", Joinable: true})
	require.NoError(t, err)
	for _, u := range []string{"bob", "carol"} {
		require.NoError(t, w.spaces.Join(ctx, u, space.ID))
	}
	require.NoError(t, w.spaces.Invite(ctx, "alice", space.ID, "gus"))
	require.NoError(t, w.spaces.AcceptInvite(ctx, "gus", space.ID))

	_, err = w.spaces.AddRepoFile(ctx, "gus", space.ID, Upload{FileName: "x.txt"})
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)

	entry, err := w.spaces.AddRepoFile(ctx, "bob", space.ID, Upload{FileName: "notes.txt", Data: []byte("notes")})
	require.NoError(t, err)
	assert.True(t, entry.ManuallyUploaded)

	files, err := w.spaces.GetFiles(ctx, "gus", space.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	obj, err := w.spaces.GetFile(ctx, "gus", space.ID, entry.FileID)
	require.NoError(t, err)
	assert.Equal(t, []byte("notes"), obj.Data)
	_, err = w.spaces.GetFile(ctx, "gus", space.ID, domain.NewID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = w.spaces.GetFiles(ctx, "mallory", space.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)

	assert.ErrorIs(t, w.spaces.RemoveRepoFile(ctx, "carol", space.ID, entry.FileID), domain.ErrInsufficientPermission)
	require.NoError(t, w.spaces.RemoveRepoFile(ctx, "bob", space.ID, entry.FileID))
	assert.Empty(t, w.spaceRepo.byID[space.ID].Files)
	assert.NotContains(t, w.blobs.objects, entry.FileID)

	post, err := w.posts.Create(ctx, "bob", NewPost{Text: "see attached", Space: &space.ID, Uploads: []Upload{{FileName: "a.pdf"}}})
	require.NoError(t, err)
	err = w.spaces.RemoveRepoFile(ctx, "alice", space.ID, post.Files[0].FileID)
	assert.ErrorIs(t, err, domain.ErrPostFileNotDeletable)
}

func TestSpaceService_AddRepoFileCleansUpOnFailure(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology"})
	require.NoError(t, err)
	w.blobs.failPut = true

	_, err = w.spaces.AddRepoFile(ctx, "alice", space.ID, Upload{FileName: "notes.txt"})
	require.Error(t, err)
	assert.Empty(t, w.spaceRepo.byID[space.ID].Files)
}
