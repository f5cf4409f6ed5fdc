package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vecollab/backend/internal/domain"
)

var (
	ErrProfileExists   = fmt.Errorf("profile %w", domain.ErrAlreadyExists)
	ErrProfileNotFound = fmt.Errorf("profile %w", domain.ErrNotFound)
)

type Profile struct {
	Username string `gorm:"primaryKey"`
	Role     string `gorm:"not null;default:user"`

	FirstName   string
	LastName    string
	Institution string
	Bio         string
	Email       string
	ProfilePic  string `gorm:"type:varchar(24)"`

	Follows              pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Achievements         datatypes.JSON `gorm:"not null;default:'{}'"`
	NotificationSettings datatypes.JSON `gorm:"not null;default:'{}'"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type ProfileDAO struct {
	db *gorm.DB
}

func NewProfileDAO(db *gorm.DB) *ProfileDAO {
	return &ProfileDAO{
		db: db,
	}
}

func (d *ProfileDAO) Insert(ctx context.Context, profile Profile) (Profile, error) {
	result := d.db.WithContext(ctx).Create(&profile)
	if result.Error != nil {
		if isUniqueViolation(result.Error, "") {
			return Profile{}, ErrProfileExists
		}

		return Profile{}, result.Error
	}

	return profile, nil
}

func (d *ProfileDAO) FindByUsername(ctx context.Context, username string) (Profile, error) {
	var profile Profile

	result := d.db.WithContext(ctx).First(&profile, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Profile{}, ErrProfileNotFound
		}

		return Profile{}, result.Error
	}

	return profile, nil
}

func (d *ProfileDAO) FindByUsernames(ctx context.Context, usernames []string) ([]Profile, error) {
	var profiles []Profile
	if len(usernames) == 0 {
		return profiles, nil
	}

	result := d.db.WithContext(ctx).Where("username IN ?", usernames).Find(&profiles)
	if result.Error != nil {
		return nil, result.Error
	}

	return profiles, nil
}

func (d *ProfileDAO) FindByRole(ctx context.Context, role string) ([]Profile, error) {
	var profiles []Profile

	result := d.db.WithContext(ctx).Where("role = ?", role).Order("username").Find(&profiles)
	if result.Error != nil {
		return nil, result.Error
	}

	return profiles, nil
}

// FindFollowers returns the profiles following username.
func (d *ProfileDAO) FindFollowers(ctx context.Context, username string) ([]Profile, error) {
	var profiles []Profile

	result := d.db.WithContext(ctx).Where("? = ANY(follows)", username).Order("username").Find(&profiles)
	if result.Error != nil {
		return nil, result.Error
	}

	return profiles, nil
}

// Update writes the given columns. It fails with ErrProfileNotFound when no row matches.
func (d *ProfileDAO) Update(ctx context.Context, username string, columns map[string]any) error {
	columns["updated_at"] = time.Now().UTC()

	result := d.db.WithContext(ctx).Model(&Profile{}).Where("username = ?", username).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProfileNotFound
	}

	return nil
}

// UpdateFollows applies set operations on the follow list and reports whether a row changed.
func (d *ProfileDAO) UpdateFollows(ctx context.Context, username string, op ArrayOp) (bool, error) {
	guard := "NOT ? = ANY(follows)"
	if op.Remove {
		guard = "? = ANY(follows)"
	}

	result := d.db.WithContext(ctx).Model(&Profile{}).
		Where("username = ?", username).
		Where(guard, op.Value).
		Updates(arrayUpdates([]ArrayOp{op}))
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// IncrementAchievement adds by to counter and returns the value before and after.
func (d *ProfileDAO) IncrementAchievement(ctx context.Context, username, counter string, by int) (int, int, error) {
	var after int

	result := d.db.WithContext(ctx).Raw(
		`UPDATE profiles
		SET achievements = jsonb_set(achievements, ARRAY[?]::text[], to_jsonb(COALESCE((achievements->>?)::int, 0) + ?)),
			updated_at = ?
		WHERE username = ?
		RETURNING (achievements->>?)::int`,
		counter, counter, by, time.Now().UTC(), username, counter,
	).Scan(&after)
	if result.Error != nil {
		return 0, 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, 0, ErrProfileNotFound
	}

	return after - by, after, nil
}
