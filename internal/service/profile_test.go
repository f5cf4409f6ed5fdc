package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecollab/backend/internal/domain"
)

func TestProfileService_EnsureProfile(t *testing.T) {
	ctx := context.Background()
	w := newWorld()

	p, err := w.profiles.EnsureProfile(ctx, domain.Principal{Username: "alice", Email: "alice@example.org"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, p.Role)
	assert.Equal(t, domain.DefaultProfilePicID, p.ProfilePic)
	assert.Equal(t, domain.DefaultNotificationSettings(), p.NotificationSettings)

	p, err = w.profiles.EnsureProfile(ctx, domain.Principal{Username: "alice", Email: "alice@uni.example"})
	require.NoError(t, err)
	assert.Equal(t, "alice@uni.example", p.Email)
	assert.Equal(t, "alice@uni.example", w.profileRepo.byName["alice"].Email)
}

func TestProfileService_Follow(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"), user("bob"))

	assert.ErrorIs(t, w.profiles.Follow(ctx, "alice", "alice"), domain.ErrSelfFollow)
	assert.ErrorIs(t, w.profiles.Follow(ctx, "alice", "nobody"), domain.ErrNotFound)

	require.NoError(t, w.profiles.Follow(ctx, "alice", "bob"))
	require.NoError(t, w.profiles.Follow(ctx, "alice", "bob"))
	followers, err := w.profiles.GetFollowers(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, followers)

	require.NoError(t, w.profiles.Unfollow(ctx, "alice", "bob"))
	followers, err = w.profiles.GetFollowers(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestProfileService_SetNotificationSettings(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"))

	merged, err := w.profiles.SetNotificationSettings(ctx, "alice", map[domain.Category]domain.Preference{
		domain.CategorySystem: domain.PreferenceNone,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PreferenceNone, merged[domain.CategorySystem])
	assert.Equal(t, domain.PreferenceEmail, merged[domain.CategoryMessages])
	assert.Len(t, merged, len(domain.Categories))

	_, err = w.profiles.SetNotificationSettings(ctx, "alice", map[domain.Category]domain.Preference{
		"weather": domain.PreferencePush,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidNotificationSettings)
	_, err = w.profiles.SetNotificationSettings(ctx, "alice", map[domain.Category]domain.Preference{
		domain.CategorySystem: "pigeon",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidNotificationSettings)
}

func TestProfileService_IncrementAchievement(t *testing.T) {
	ctx := context.Background()
	w := newWorld(user("alice"))

	require.NoError(t, w.profiles.IncrementAchievement(ctx, "alice", domain.AchievementPosts, 4))
	assert.Empty(t, w.notifier.sent)

	require.NoError(t, w.profiles.IncrementAchievement(ctx, "alice", domain.AchievementPosts, 1))
	levelUps := w.notifier.of(domain.NotifAchievementLevelUp)
	require.Len(t, levelUps, 1)
	assert.Equal(t, "alice", levelUps[0].to)
	assert.Equal(t, 1, levelUps[0].payload["level"])

	require.NoError(t, w.profiles.IncrementAchievement(ctx, "alice", domain.AchievementPosts, 1))
	assert.Len(t, w.notifier.of(domain.NotifAchievementLevelUp), 1)
}

func TestProfileService_Roles(t *testing.T) {
	ctx := context.Background()
	w := newWorld(admin("root"), user("alice"))

	assert.ErrorIs(t, w.profiles.SetRole(ctx, "alice", "alice", domain.RoleAdmin), domain.ErrInsufficientPermission)
	assert.ErrorIs(t, w.profiles.SetRole(ctx, "root", "alice", "owner"), domain.ErrWrongType)
	require.NoError(t, w.profiles.SetRole(ctx, "root", "alice", domain.RoleGuest))
	assert.Equal(t, domain.RoleGuest, w.profileRepo.byName["alice"].Role)

	require.NoError(t, w.profiles.EnsureRole(ctx, "boss", domain.RoleAdmin))
	assert.Equal(t, domain.RoleAdmin, w.profileRepo.byName["boss"].Role)
	require.NoError(t, w.profiles.EnsureRole(ctx, "alice", domain.RoleAdmin))
	assert.Equal(t, domain.RoleAdmin, w.profileRepo.byName["alice"].Role)
}

func TestProfileService_Redact(t *testing.T) {
	ctx := context.Background()
	p := user("alice")
	p.Bio = "offensive"
	p.ProfilePic = domain.NewID()
	w := newWorld(p)

	require.NoError(t, w.profiles.Redact(ctx, "alice"))
	got := w.profileRepo.byName["alice"]
	assert.Empty(t, got.Bio)
	assert.Equal(t, domain.DefaultProfilePicID, got.ProfilePic)
}
