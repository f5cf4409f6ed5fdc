package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrProfileNotFound = repository.ErrProfileNotFound
	ErrProfileExists   = repository.ErrProfileExists
)

type ProfileRepository interface {
	Create(ctx context.Context, p domain.Profile) (domain.Profile, error)
	FindByUsername(ctx context.Context, username string) (domain.Profile, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]domain.Profile, error)
	FindByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error)
	FindFollowers(ctx context.Context, username string) ([]domain.Profile, error)
	Update(ctx context.Context, username string, u domain.ProfileUpdate) error
	SetRole(ctx context.Context, username string, role domain.Role) error
	SetEmail(ctx context.Context, username, email string) error
	SetNotificationSettings(ctx context.Context, username string, settings map[domain.Category]domain.Preference) error
	Follow(ctx context.Context, username, target string) (bool, error)
	Unfollow(ctx context.Context, username, target string) (bool, error)
	IncrementAchievement(ctx context.Context, username, counter string, by int) (int, int, error)
}

type ProfileService struct {
	repo     ProfileRepository
	notifier Notifier
}

func NewProfileService(repo ProfileRepository, notifier Notifier) *ProfileService {
	return &ProfileService{
		repo:     repo,
		notifier: notifier,
	}
}

// EnsureProfile returns the profile of p, creating it on first sight. A changed email is synced
// from the identity provider.
func (s *ProfileService) EnsureProfile(ctx context.Context, p domain.Principal) (domain.Profile, error) {
	profile, err := s.repo.FindByUsername(ctx, p.Username)
	if err == nil {
		if p.Email != "" && profile.Email != p.Email {
			if err := s.repo.SetEmail(ctx, p.Username, p.Email); err != nil {
				return domain.Profile{}, fmt.Errorf("s.repo.SetEmail -> %w", err)
			}
			profile.Email = p.Email
		}
		return profile, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Profile{}, fmt.Errorf("s.repo.FindByUsername -> %w", err)
	}

	created, err := s.repo.Create(ctx, newProfile(p.Username, p.Email, domain.RoleUser))
	if errors.Is(err, domain.ErrAlreadyExists) {
		// another request created it in between
		created, err = s.repo.FindByUsername(ctx, p.Username)
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

func newProfile(username, email string, role domain.Role) domain.Profile {
	return domain.Profile{
		Username:             username,
		Role:                 role,
		Email:                email,
		ProfilePic:           domain.DefaultProfilePicID,
		Follows:              []string{},
		Achievements:         map[string]int{},
		NotificationSettings: domain.DefaultNotificationSettings(),
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, username string) (domain.Profile, error) {
	p, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("s.repo.FindByUsername -> %w", err)
	}

	return p, nil
}

func (s *ProfileService) GetProfiles(ctx context.Context, usernames []string) ([]domain.Profile, error) {
	profiles, err := s.repo.FindByUsernames(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByUsernames -> %w", err)
	}

	return profiles, nil
}

// ListByRole backs the dummy personas listing.
func (s *ProfileService) ListByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	profiles, err := s.repo.FindByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByRole -> %w", err)
	}

	return profiles, nil
}

func (s *ProfileService) Update(ctx context.Context, username string, u domain.ProfileUpdate) (domain.Profile, error) {
	if err := s.repo.Update(ctx, username, u); err != nil {
		return domain.Profile{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return s.GetProfile(ctx, username)
}

func (s *ProfileService) Follow(ctx context.Context, username, target string) error {
	if username == target {
		return domain.ErrSelfFollow
	}
	if _, err := s.repo.FindByUsername(ctx, target); err != nil {
		return fmt.Errorf("s.repo.FindByUsername -> %w", err)
	}
	if _, err := s.repo.Follow(ctx, username, target); err != nil {
		return fmt.Errorf("s.repo.Follow -> %w", err)
	}

	return nil
}

func (s *ProfileService) Unfollow(ctx context.Context, username, target string) error {
	if _, err := s.repo.Unfollow(ctx, username, target); err != nil {
		return fmt.Errorf("s.repo.Unfollow -> %w", err)
	}

	return nil
}

func (s *ProfileService) GetFollowers(ctx context.Context, username string) ([]string, error) {
	followers, err := s.repo.FindFollowers(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindFollowers -> %w", err)
	}
	names := make([]string, 0, len(followers))
	for _, f := range followers {
		names = append(names, f.Username)
	}

	return names, nil
}

// SetNotificationSettings merges settings into the stored ones.
func (s *ProfileService) SetNotificationSettings(ctx context.Context, username string, settings map[domain.Category]domain.Preference) (map[domain.Category]domain.Preference, error) {
	if err := domain.ValidateNotificationSettings(settings); err != nil {
		return nil, err
	}
	p, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByUsername -> %w", err)
	}
	merged := make(map[domain.Category]domain.Preference, len(domain.Categories))
	for _, c := range domain.Categories {
		merged[c] = p.PreferenceFor(c)
	}
	for c, pref := range settings {
		merged[c] = pref
	}
	if err := s.repo.SetNotificationSettings(ctx, username, merged); err != nil {
		return nil, fmt.Errorf("s.repo.SetNotificationSettings -> %w", err)
	}

	return merged, nil
}

// SetRole changes the platform role of username. Only platform admins may do so.
func (s *ProfileService) SetRole(ctx context.Context, actor, username string, role domain.Role) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	a, err := s.repo.FindByUsername(ctx, actor)
	if err != nil {
		return fmt.Errorf("s.repo.FindByUsername -> %w", err)
	}
	if a.Role != domain.RoleAdmin {
		return domain.ErrInsufficientPermission
	}
	if err := s.repo.SetRole(ctx, username, role); err != nil {
		return fmt.Errorf("s.repo.SetRole -> %w", err)
	}

	return nil
}

// EnsureRole creates username with role if missing and sets the role otherwise.
func (s *ProfileService) EnsureRole(ctx context.Context, username string, role domain.Role) error {
	p, err := s.repo.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		if _, err := s.repo.Create(ctx, newProfile(username, "", role)); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Errorf("s.repo.Create -> %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("s.repo.FindByUsername -> %w", err)
	}
	if p.Role == role {
		return nil
	}
	if err := s.repo.SetRole(ctx, username, role); err != nil {
		return fmt.Errorf("s.repo.SetRole -> %w", err)
	}

	return nil
}

// IncrementAchievement bumps counter and notifies username when a level threshold is crossed.
func (s *ProfileService) IncrementAchievement(ctx context.Context, username, counter string, by int) error {
	before, after, err := s.repo.IncrementAchievement(ctx, username, counter, by)
	if err != nil {
		return fmt.Errorf("s.repo.IncrementAchievement -> %w", err)
	}
	if level := domain.Level(after); level > domain.Level(before) {
		payload := map[string]any{"achievement": counter, "level": level}
		if err := s.notifier.Send(ctx, username, domain.NotifAchievementLevelUp, payload); err != nil {
			zap.L().Warn("level up notification failed", zap.String("user", username), zap.Error(err))
		}
	}

	return nil
}

// Redact clears the display metadata of a reported profile.
func (s *ProfileService) Redact(ctx context.Context, username string) error {
	empty := ""
	pic := domain.DefaultProfilePicID
	u := domain.ProfileUpdate{FirstName: &empty, LastName: &empty, Institution: &empty, Bio: &empty, ProfilePic: &pic}
	if err := s.repo.Update(ctx, username, u); err != nil {
		return fmt.Errorf("s.repo.Update -> %w", err)
	}

	return nil
}
