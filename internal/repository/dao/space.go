package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vecollab/backend/internal/domain"
)

var (
	ErrSpaceExists       = fmt.Errorf("space %w", domain.ErrAlreadyExists)
	ErrSpaceNotFound     = fmt.Errorf("%w: %w", domain.ErrSpaceNotFound, domain.ErrNotFound)
	ErrSpaceStateChanged = fmt.Errorf("space membership %w", domain.ErrConcurrentUpdate)
)

type Space struct {
	ID          string         `gorm:"primaryKey;type:varchar(24)"`
	Name        string         `gorm:"not null;uniqueIndex:idx_spaces_name"`
	Invisible   bool           `gorm:"not null;default:false"`
	Joinable    bool           `gorm:"not null;default:false"`
	Members     pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Admins      pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Invites     pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Requests    pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Files       datatypes.JSON `gorm:"not null;default:'[]'"`
	PictureID   *string        `gorm:"type:varchar(24)"`
	Description string         `gorm:"not null;default:''"`
}

// SpaceFile is the stored shape of an entry in Space.Files.
type SpaceFile struct {
	FileID           string  `json:"file_id"`
	FileName         string  `json:"file_name"`
	Author           string  `json:"author"`
	ManuallyUploaded bool    `json:"manually_uploaded"`
	PostID           *string `json:"post_id,omitempty"`
}

var membershipColumns = map[string]bool{"members": true, "admins": true, "invites": true, "requests": true}

type SpaceDAO struct {
	db *gorm.DB
}

func NewSpaceDAO(db *gorm.DB) *SpaceDAO {
	return &SpaceDAO{
		db: db,
	}
}

func (d *SpaceDAO) Insert(ctx context.Context, space Space) (Space, error) {
	result := d.db.WithContext(ctx).Create(&space)
	if result.Error != nil {
		if isUniqueViolation(result.Error, "") {
			return Space{}, ErrSpaceExists
		}

		return Space{}, result.Error
	}

	return space, nil
}

func (d *SpaceDAO) FindByID(ctx context.Context, id string) (Space, error) {
	var space Space

	result := d.db.WithContext(ctx).First(&space, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Space{}, ErrSpaceNotFound
		}

		return Space{}, result.Error
	}

	return space, nil
}

func (d *SpaceDAO) FindAll(ctx context.Context) ([]Space, error) {
	var spaces []Space

	result := d.db.WithContext(ctx).Order("name").Find(&spaces)
	if result.Error != nil {
		return nil, result.Error
	}

	return spaces, nil
}

// FindByArrayMember returns the spaces whose column (members, admins, invites or requests)
// contains username.
func (d *SpaceDAO) FindByArrayMember(ctx context.Context, column, username string) ([]Space, error) {
	var spaces []Space
	if !membershipColumns[column] {
		return nil, fmt.Errorf("unknown membership column %q", column)
	}

	result := d.db.WithContext(ctx).Where(fmt.Sprintf("? = ANY(%s)", column), username).Order("name").Find(&spaces)
	if result.Error != nil {
		return nil, result.Error
	}

	return spaces, nil
}

// FindIDs returns the id of every space.
func (d *SpaceDAO) FindIDs(ctx context.Context) ([]string, error) {
	var ids []string

	result := d.db.WithContext(ctx).Model(&Space{}).Pluck("id", &ids)
	if result.Error != nil {
		return nil, result.Error
	}

	return ids, nil
}

func (d *SpaceDAO) Update(ctx context.Context, id string, columns map[string]any) error {
	result := d.db.WithContext(ctx).Model(&Space{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		if isUniqueViolation(result.Error, "") {
			return ErrSpaceExists
		}

		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSpaceNotFound
	}

	return nil
}

// Transition applies ops in one statement provided guard still holds for the row. A failed guard
// yields ErrSpaceStateChanged.
func (d *SpaceDAO) Transition(ctx context.Context, id, guard string, guardArgs []any, ops ...ArrayOp) error {
	q := d.db.WithContext(ctx).Model(&Space{}).Where("id = ?", id)
	if guard != "" {
		q = q.Where(guard, guardArgs...)
	}

	result := q.Updates(arrayUpdates(ops))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSpaceStateChanged
	}

	return nil
}

func (d *SpaceDAO) AppendFile(ctx context.Context, id string, file datatypes.JSON) error {
	result := d.db.WithContext(ctx).Model(&Space{}).Where("id = ?", id).
		Update("files", gorm.Expr("files || jsonb_build_array(?::jsonb)", string(file)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSpaceNotFound
	}

	return nil
}

// RemoveFiles drops the entries whose key (file_id or post_id) equals value.
func (d *SpaceDAO) RemoveFiles(ctx context.Context, id, key, value string) error {
	expr := fmt.Sprintf(
		"(SELECT COALESCE(jsonb_agg(e), '[]'::jsonb) FROM jsonb_array_elements(files) e WHERE e->>'%s' IS DISTINCT FROM ?)",
		key,
	)

	result := d.db.WithContext(ctx).Model(&Space{}).Where("id = ?", id).Update("files", gorm.Expr(expr, value))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSpaceNotFound
	}

	return nil
}

func (d *SpaceDAO) Delete(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&Space{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSpaceNotFound
	}

	return nil
}
