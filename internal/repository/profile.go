package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var (
	ErrProfileExists   = dao.ErrProfileExists
	ErrProfileNotFound = dao.ErrProfileNotFound
)

type ProfileDAO interface {
	Insert(ctx context.Context, profile dao.Profile) (dao.Profile, error)
	FindByUsername(ctx context.Context, username string) (dao.Profile, error)
	FindByUsernames(ctx context.Context, usernames []string) ([]dao.Profile, error)
	FindByRole(ctx context.Context, role string) ([]dao.Profile, error)
	FindFollowers(ctx context.Context, username string) ([]dao.Profile, error)
	Update(ctx context.Context, username string, columns map[string]any) error
	UpdateFollows(ctx context.Context, username string, op dao.ArrayOp) (bool, error)
	IncrementAchievement(ctx context.Context, username, counter string, by int) (int, int, error)
}

type ProfileRepository struct {
	dao ProfileDAO
}

func NewProfileRepository(dao ProfileDAO) *ProfileRepository {
	return &ProfileRepository{
		dao: dao,
	}
}

func (r *ProfileRepository) Create(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	achievements, err := toJSON(nonNilCounters(p.Achievements))
	if err != nil {
		return domain.Profile{}, err
	}
	settings, err := toJSON(p.NotificationSettings)
	if err != nil {
		return domain.Profile{}, err
	}

	created, err := r.dao.Insert(ctx, dao.Profile{
		Username:             p.Username,
		Role:                 string(p.Role),
		FirstName:            p.FirstName,
		LastName:             p.LastName,
		Institution:          p.Institution,
		Bio:                  p.Bio,
		Email:                p.Email,
		ProfilePic:           p.ProfilePic.Hex(),
		Follows:              pq.StringArray(nonNil(p.Follows)),
		Achievements:         achievements,
		NotificationSettings: settings,
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created)
}

func (r *ProfileRepository) FindByUsername(ctx context.Context, username string) (domain.Profile, error) {
	found, err := r.dao.FindByUsername(ctx, username)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("r.dao.FindByUsername -> %w", err)
	}

	return r.daoToDomain(found)
}

// FindByUsernames returns the profiles that exist among usernames.
func (r *ProfileRepository) FindByUsernames(ctx context.Context, usernames []string) ([]domain.Profile, error) {
	found, err := r.dao.FindByUsernames(ctx, usernames)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByUsernames -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *ProfileRepository) FindByRole(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	found, err := r.dao.FindByRole(ctx, string(role))
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByRole -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *ProfileRepository) FindFollowers(ctx context.Context, username string) ([]domain.Profile, error) {
	found, err := r.dao.FindFollowers(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindFollowers -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *ProfileRepository) Update(ctx context.Context, username string, u domain.ProfileUpdate) error {
	columns := map[string]any{}
	if u.FirstName != nil {
		columns["first_name"] = *u.FirstName
	}
	if u.LastName != nil {
		columns["last_name"] = *u.LastName
	}
	if u.Institution != nil {
		columns["institution"] = *u.Institution
	}
	if u.Bio != nil {
		columns["bio"] = *u.Bio
	}
	if u.ProfilePic != nil {
		columns["profile_pic"] = u.ProfilePic.Hex()
	}

	if err := r.dao.Update(ctx, username, columns); err != nil {
		return fmt.Errorf("r.dao.Update -> %w", err)
	}

	return nil
}

func (r *ProfileRepository) SetRole(ctx context.Context, username string, role domain.Role) error {
	if err := r.dao.Update(ctx, username, map[string]any{"role": string(role)}); err != nil {
		return fmt.Errorf("r.dao.Update -> %w", err)
	}

	return nil
}

func (r *ProfileRepository) SetEmail(ctx context.Context, username, email string) error {
	if err := r.dao.Update(ctx, username, map[string]any{"email": email}); err != nil {
		return fmt.Errorf("r.dao.Update -> %w", err)
	}

	return nil
}

func (r *ProfileRepository) SetNotificationSettings(ctx context.Context, username string, settings map[domain.Category]domain.Preference) error {
	raw, err := toJSON(settings)
	if err != nil {
		return err
	}

	if err := r.dao.Update(ctx, username, map[string]any{"notification_settings": raw}); err != nil {
		return fmt.Errorf("r.dao.Update -> %w", err)
	}

	return nil
}

// Follow reports whether target was newly added to the follow list of username.
func (r *ProfileRepository) Follow(ctx context.Context, username, target string) (bool, error) {
	changed, err := r.dao.UpdateFollows(ctx, username, dao.AddTo("follows", target))
	if err != nil {
		return false, fmt.Errorf("r.dao.UpdateFollows -> %w", err)
	}

	return changed, nil
}

func (r *ProfileRepository) Unfollow(ctx context.Context, username, target string) (bool, error) {
	changed, err := r.dao.UpdateFollows(ctx, username, dao.RemoveFrom("follows", target))
	if err != nil {
		return false, fmt.Errorf("r.dao.UpdateFollows -> %w", err)
	}

	return changed, nil
}

func (r *ProfileRepository) IncrementAchievement(ctx context.Context, username, counter string, by int) (int, int, error) {
	before, after, err := r.dao.IncrementAchievement(ctx, username, counter, by)
	if err != nil {
		return 0, 0, fmt.Errorf("r.dao.IncrementAchievement -> %w", err)
	}

	return before, after, nil
}

func (r *ProfileRepository) daoToDomain(p dao.Profile) (domain.Profile, error) {
	achievements, err := fromJSON[map[string]int](p.Achievements)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile %s achievements: %w", p.Username, err)
	}
	settings, err := fromJSON[map[domain.Category]domain.Preference](p.NotificationSettings)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile %s notification settings: %w", p.Username, err)
	}
	pic, _ := domain.ParseID(p.ProfilePic)

	return domain.Profile{
		Username:             p.Username,
		Role:                 domain.Role(p.Role),
		FirstName:            p.FirstName,
		LastName:             p.LastName,
		Institution:          p.Institution,
		Bio:                  p.Bio,
		ProfilePic:           pic,
		Follows:              nonNil(p.Follows),
		Achievements:         nonNilCounters(achievements),
		NotificationSettings: settings,
		Email:                p.Email,
	}, nil
}

func (r *ProfileRepository) daosToDomain(rows []dao.Profile) ([]domain.Profile, error) {
	profiles := make([]domain.Profile, 0, len(rows))
	for _, row := range rows {
		p, err := r.daoToDomain(row)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}

func nonNilCounters(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
