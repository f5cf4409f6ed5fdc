package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecollab/backend/internal/domain"
)

// ticking returns a clock that moves one second forward on every reading.
func ticking(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newPostWorld(t *testing.T, profiles ...domain.Profile) *world {
	t.Helper()
	w := newWorld(profiles...)
	w.posts.now = ticking(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	return w
}

func postIDs(posts []domain.Post) []domain.ID {
	ids := make([]domain.ID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestPostService_Create(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology"})
	require.NoError(t, err)

	_, err = w.posts.Create(ctx, "alice", NewPost{Text: "  "})
	assert.ErrorIs(t, err, domain.ErrMissingKey)
	_, err = w.posts.Create(ctx, "bob", NewPost{Text: "hi", Space: &space.ID})
	assert.ErrorIs(t, err, domain.ErrUserNotMember)

	p, err := w.posts.Create(ctx, "alice", NewPost{
		Text:    "New #Climate unit #climate #water",
		Space:   &space.ID,
		Uploads: []Upload{{FileName: "unit.pdf", ContentType: "application/pdf", Data: []byte("pdf")}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"climate", "water"}, p.Tags)
	require.Len(t, p.Files, 1)
	require.NotNil(t, p.Files[0].PostID)
	assert.Equal(t, p.ID, *p.Files[0].PostID)
	assert.False(t, p.Files[0].ManuallyUploaded)

	mirrored := w.spaceRepo.byID[space.ID].Files
	require.Len(t, mirrored, 1)
	assert.Equal(t, p.Files[0].FileID, mirrored[0].FileID)
	assert.Equal(t, 1, w.profileRepo.byName["alice"].Achievements[domain.AchievementPosts])

	explicit, err := w.posts.Create(ctx, "alice", NewPost{Text: "#ignored", Tags: []string{}})
	require.NoError(t, err)
	assert.Empty(t, explicit.Tags)
}

func TestPostService_CreateRespectsPostCapability(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology", Joinable: true})
	require.NoError(t, err)
	require.NoError(t, w.spaces.Join(ctx, "bob", space.ID))
	require.NoError(t, w.acl.SetRule(ctx, "alice", domain.RoleUser, space.ID.Hex(), domain.CapPost, false))

	_, err = w.posts.Create(ctx, "bob", NewPost{Text: "hi", Space: &space.ID})
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)
	_, err = w.posts.Create(ctx, "alice", NewPost{Text: "admins always may", Space: &space.ID})
	require.NoError(t, err)
}

func TestPostService_CreateDiscardsBlobsOnUploadFailure(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"))
	w.blobs.failPut = true

	_, err := w.posts.Create(ctx, "alice", NewPost{Text: "x", Uploads: []Upload{{FileName: "a"}, {FileName: "b"}}})
	require.Error(t, err)
	assert.Empty(t, w.postRepo.byID)
	assert.Empty(t, w.blobs.objects)
}

func TestPostService_DeleteRemovesFiles(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, admin("root"), user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology", Joinable: true})
	require.NoError(t, err)
	require.NoError(t, w.spaces.Join(ctx, "bob", space.ID))

	p, err := w.posts.Create(ctx, "bob", NewPost{Text: "files", Space: &space.ID, Uploads: []Upload{{FileName: "a.pdf"}}})
	require.NoError(t, err)
	q, err := w.posts.Create(ctx, "bob", NewPost{Text: "public"})
	require.NoError(t, err)

	assert.ErrorIs(t, w.posts.Delete(ctx, "carol", q.ID), domain.ErrInsufficientPermission)
	require.NoError(t, w.posts.Delete(ctx, "alice", p.ID), "space admins may delete posts in their space")
	assert.Empty(t, w.spaceRepo.byID[space.ID].Files)
	assert.Empty(t, w.blobs.objects)

	require.NoError(t, w.posts.Delete(ctx, "root", q.ID))
	assert.Empty(t, w.postRepo.byID)
}

func TestPostService_Edit(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"))
	p, err := w.posts.Create(ctx, "alice", NewPost{Text: "draft #one"})
	require.NoError(t, err)

	text := "final #two"
	_, err = w.posts.Edit(ctx, "bob", p.ID, PostEdit{Text: &text})
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)

	edited, err := w.posts.Edit(ctx, "alice", p.ID, PostEdit{Text: &text})
	require.NoError(t, err)
	assert.Equal(t, "final #two", edited.Text)
	assert.Equal(t, []string{"two"}, edited.Tags)
}

func TestPostService_LikeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"))
	p, err := w.posts.Create(ctx, "alice", NewPost{Text: "like me"})
	require.NoError(t, err)

	require.NoError(t, w.posts.Like(ctx, "bob", p.ID))
	assert.ErrorIs(t, w.posts.Like(ctx, "bob", p.ID), domain.ErrNotModified)
	assert.Equal(t, []string{"bob"}, w.postRepo.byID[p.ID].Likers)
	assert.Equal(t, 1, w.profileRepo.byName["bob"].Achievements[domain.AchievementGiveLikes])
	assert.Equal(t, 1, w.profileRepo.byName["alice"].Achievements[domain.AchievementPostsLiked])

	require.NoError(t, w.posts.Like(ctx, "alice", p.ID))
	assert.Equal(t, 1, w.profileRepo.byName["alice"].Achievements[domain.AchievementPostsLiked], "own likes do not count")

	require.NoError(t, w.posts.Unlike(ctx, "bob", p.ID))
	assert.ErrorIs(t, w.posts.Unlike(ctx, "bob", p.ID), domain.ErrNotModified)
}

func TestPostService_Comments(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"), user("carol"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology", Joinable: true})
	require.NoError(t, err)
	require.NoError(t, w.spaces.Join(ctx, "bob", space.ID))
	p, err := w.posts.Create(ctx, "alice", NewPost{Text: "discuss", Space: &space.ID})
	require.NoError(t, err)

	_, err = w.posts.Comment(ctx, "carol", p.ID, "let me in")
	assert.ErrorIs(t, err, ErrPostNotFound)

	c, err := w.posts.Comment(ctx, "bob", p.ID, "nice")
	require.NoError(t, err)
	got, err := w.posts.GetByComment(ctx, "bob", c.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	require.NoError(t, w.posts.PinComment(ctx, "alice", c.ID, true))
	pinned, ok := w.postRepo.byID[p.ID].Comment(c.ID)
	require.True(t, ok)
	assert.True(t, pinned.Pinned)

	require.NoError(t, w.posts.DeleteComment(ctx, "bob", c.ID))
	assert.Empty(t, w.postRepo.byID[p.ID].Comments)
}

func TestPostService_Repost(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"), user("carol"))
	original, err := w.posts.Create(ctx, "alice", NewPost{Text: "original", Uploads: []Upload{{FileName: "a.pdf"}}})
	require.NoError(t, err)

	first, err := w.posts.Repost(ctx, "bob", original.ID, ptr("look"), nil)
	require.NoError(t, err)
	assert.True(t, first.IsRepost)
	assert.Equal(t, "alice", *first.RepostAuthor)
	assert.Equal(t, original.CreationDate, *first.OriginalCreationDate)
	assert.Empty(t, first.Files)

	second, err := w.posts.Repost(ctx, "carol", first.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", *second.RepostAuthor)
	assert.Equal(t, original.CreationDate, *second.OriginalCreationDate)
}

func TestPostService_PersonalTimeline(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"), user("carol"))
	require.NoError(t, w.profiles.Follow(ctx, "alice", "bob"))
	bobs, err := w.spaces.Create(ctx, "bob", NewSpace{Name: "Bob only"})
	require.NoError(t, err)
	shared, err := w.spaces.Create(ctx, "carol", NewSpace{Name: "Shared", Joinable: true})
	require.NoError(t, err)
	require.NoError(t, w.spaces.Join(ctx, "alice", shared.ID))

	own, err := w.posts.Create(ctx, "alice", NewPost{Text: "mine"})
	require.NoError(t, err)
	followed, err := w.posts.Create(ctx, "bob", NewPost{Text: "public"})
	require.NoError(t, err)
	_, err = w.posts.Create(ctx, "bob", NewPost{Text: "private", Space: &bobs.ID})
	require.NoError(t, err)
	inShared, err := w.posts.Create(ctx, "carol", NewPost{Text: "shared", Space: &shared.ID})
	require.NoError(t, err)
	_, err = w.posts.Create(ctx, "carol", NewPost{Text: "unfollowed"})
	require.NoError(t, err)

	posts, err := w.posts.PersonalTimeline(ctx, "alice", TimelinePage{})
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{inShared.ID, followed.ID, own.ID}, postIDs(posts))

	page, err := w.posts.PersonalTimeline(ctx, "alice", TimelinePage{Limit: 1, Before: followed.CreationDate})
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{own.ID}, postIDs(page))
}

func TestPostService_SpaceTimeline(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology"})
	require.NoError(t, err)
	a, err := w.posts.Create(ctx, "alice", NewPost{Text: "first", Space: &space.ID})
	require.NoError(t, err)
	b, err := w.posts.Create(ctx, "alice", NewPost{Text: "second", Space: &space.ID})
	require.NoError(t, err)
	require.NoError(t, w.posts.PinPost(ctx, "alice", a.ID, true))

	_, _, err = w.posts.SpaceTimeline(ctx, "bob", space.ID, TimelinePage{})
	assert.ErrorIs(t, err, domain.ErrInsufficientPermission)

	posts, pinned, err := w.posts.SpaceTimeline(ctx, "alice", space.ID, TimelinePage{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{b.ID, a.ID}, postIDs(posts))
	assert.Equal(t, []domain.ID{a.ID}, postIDs(pinned))

	_, err = w.posts.Get(ctx, "bob", a.ID)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostService_UserAndTagTimelines(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Biology"})
	require.NoError(t, err)
	public, err := w.posts.Create(ctx, "alice", NewPost{Text: "open #Water"})
	require.NoError(t, err)
	_, err = w.posts.Create(ctx, "alice", NewPost{Text: "closed #water", Space: &space.ID})
	require.NoError(t, err)

	posts, err := w.posts.UserTimeline(ctx, "bob", "alice", TimelinePage{})
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{public.ID}, postIDs(posts))

	posts, err = w.posts.TagTimeline(ctx, "bob", "WATER", TimelinePage{})
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{public.ID}, postIDs(posts))

	posts, err = w.posts.TagTimeline(ctx, "alice", "water", TimelinePage{})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestPostService_TimelinesFillPageBehindHiddenPosts(t *testing.T) {
	ctx := context.Background()
	w := newPostWorld(t, user("alice"), user("bob"))
	space, err := w.spaces.Create(ctx, "alice", NewSpace{Name: "Hidden"})
	require.NoError(t, err)

	var public []domain.ID
	for i := 0; i < 3; i++ {
		p, err := w.posts.Create(ctx, "alice", NewPost{Text: "open #soil"})
		require.NoError(t, err)
		public = append([]domain.ID{p.ID}, public...)
	}
	for i := 0; i < 5; i++ {
		_, err := w.posts.Create(ctx, "alice", NewPost{Text: "closed #soil", Space: &space.ID})
		require.NoError(t, err)
	}

	posts, err := w.posts.UserTimeline(ctx, "bob", "alice", TimelinePage{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, public, postIDs(posts))

	posts, err = w.posts.TagTimeline(ctx, "bob", "soil", TimelinePage{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, public, postIDs(posts))

	posts, err = w.posts.UserTimeline(ctx, "bob", "alice", TimelinePage{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, public[:2], postIDs(posts))

	posts, err = w.posts.UserTimeline(ctx, "alice", "alice", TimelinePage{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, posts, 5)
}
