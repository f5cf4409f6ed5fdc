package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vecollab/backend/internal/domain"
)

var ErrInvitationNotFound = fmt.Errorf("%w: %w", domain.ErrInvitationNotFound, domain.ErrNotFound)

type Invitation struct {
	ID        string  `gorm:"primaryKey;type:varchar(24)"`
	PlanID    *string `gorm:"type:varchar(24);index"`
	Message   string
	Sender    string `gorm:"not null"`
	Recipient string `gorm:"not null;index"`
	Accepted  *bool

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type InvitationDAO struct {
	db *gorm.DB
}

func NewInvitationDAO(db *gorm.DB) *InvitationDAO {
	return &InvitationDAO{
		db: db,
	}
}

func (d *InvitationDAO) Insert(ctx context.Context, invitation Invitation) (Invitation, error) {
	result := d.db.WithContext(ctx).Create(&invitation)
	if result.Error != nil {
		return Invitation{}, result.Error
	}

	return invitation, nil
}

func (d *InvitationDAO) FindByID(ctx context.Context, id string) (Invitation, error) {
	var invitation Invitation

	result := d.db.WithContext(ctx).First(&invitation, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Invitation{}, ErrInvitationNotFound
		}

		return Invitation{}, result.Error
	}

	return invitation, nil
}

func (d *InvitationDAO) SetReply(ctx context.Context, id string, accepted bool) error {
	result := d.db.WithContext(ctx).Model(&Invitation{}).Where("id = ?", id).Updates(map[string]any{
		"accepted":   accepted,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvitationNotFound
	}

	return nil
}
