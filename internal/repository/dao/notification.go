package dao

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vecollab/backend/internal/domain"
)

var ErrNotificationNotFound = fmt.Errorf("notification %w", domain.ErrNotFound)

type Notification struct {
	ID                string         `gorm:"primaryKey;type:varchar(24)"`
	To                string         `gorm:"column:to_user;not null;index:idx_notifications_to_state,priority:1"`
	Type              string         `gorm:"not null"`
	ReceiveState      string         `gorm:"not null;index:idx_notifications_to_state,priority:2"`
	CreationTimestamp time.Time      `gorm:"not null"`
	Payload           datatypes.JSON `gorm:"not null;default:'{}'"`
}

type NotificationDAO struct {
	db *gorm.DB
}

func NewNotificationDAO(db *gorm.DB) *NotificationDAO {
	return &NotificationDAO{
		db: db,
	}
}

func (d *NotificationDAO) Insert(ctx context.Context, n Notification) (Notification, error) {
	result := d.db.WithContext(ctx).Create(&n)
	if result.Error != nil {
		return Notification{}, result.Error
	}

	return n, nil
}

func (d *NotificationDAO) FindByRecipient(ctx context.Context, to string, includeAcknowledged bool) ([]Notification, error) {
	var notifications []Notification

	q := d.db.WithContext(ctx).Where("to_user = ?", to)
	if !includeAcknowledged {
		q = q.Where("receive_state <> ?", string(domain.StateAcknowledged))
	}
	if result := q.Order("creation_timestamp").Find(&notifications); result.Error != nil {
		return nil, result.Error
	}

	return notifications, nil
}

// Advance moves the given notifications of to forward to state. Rows already at or past state
// are left untouched.
func (d *NotificationDAO) Advance(ctx context.Context, to string, ids []string, state domain.ReceiveState) (int64, error) {
	earlier := earlierStates(state)
	if len(earlier) == 0 {
		return 0, nil
	}

	q := d.db.WithContext(ctx).Model(&Notification{}).
		Where("to_user = ? AND receive_state IN ?", to, earlier)
	if ids != nil {
		if len(ids) == 0 {
			return 0, nil
		}
		q = q.Where("id IN ?", ids)
	}

	result := q.Update("receive_state", string(state))
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (d *NotificationDAO) Exists(ctx context.Context, to, id string) (bool, error) {
	var count int64

	result := d.db.WithContext(ctx).Model(&Notification{}).Where("id = ? AND to_user = ?", id, to).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}

	return count > 0, nil
}

func earlierStates(state domain.ReceiveState) []string {
	var out []string
	for _, s := range []domain.ReceiveState{domain.StatePending, domain.StateSent, domain.StateAcknowledged} {
		if domain.CanTransition(s, state) {
			out = append(out, string(s))
		}
	}
	return out
}
