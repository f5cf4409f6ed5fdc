package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vecollab/backend/internal/domain"
)

var (
	ErrRoomNotFound    = fmt.Errorf("%w: %w", domain.ErrRoomNotFound, domain.ErrNotFound)
	ErrMessageNotFound = fmt.Errorf("%w: %w", domain.ErrMessageNotFound, domain.ErrNotFound)
)

// ChatRoom members are fixed at creation. MemberKey is the sorted member list and, with the
// name, identifies the room.
type ChatRoom struct {
	ID        string         `gorm:"primaryKey;type:varchar(24)"`
	Name      *string        `gorm:""`
	Members   pq.StringArray `gorm:"type:text[];not null"`
	MemberKey string         `gorm:"not null;index"`

	Messages []ChatMessage `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

type ChatMessage struct {
	ID           string    `gorm:"primaryKey;type:varchar(24)"`
	RoomID       string    `gorm:"type:varchar(24);not null;index"`
	Sender       string    `gorm:"not null"`
	CreationDate time.Time `gorm:"not null;index"`
	Text         string    `gorm:"not null"`

	SendStates []ChatSendState `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

type ChatSendState struct {
	MessageID string `gorm:"primaryKey;type:varchar(24)"`
	Username  string `gorm:"primaryKey;index:idx_send_states_user_state,priority:1"`
	RoomID    string `gorm:"type:varchar(24);not null;index"`
	SendState string `gorm:"not null;index:idx_send_states_user_state,priority:2"`
}

// UnreadCount is the number of unacknowledged messages of one recipient.
type UnreadCount struct {
	Username string
	Count    int
}

func MemberKey(members []string) string {
	return strings.Join(domain.MemberKey(members), "\x1f")
}

type ChatDAO struct {
	db *gorm.DB
}

func NewChatDAO(db *gorm.DB) *ChatDAO {
	return &ChatDAO{
		db: db,
	}
}

// FindRoom looks a room up by exact member set and name.
func (d *ChatDAO) FindRoom(ctx context.Context, memberKey string, name *string) (ChatRoom, error) {
	var room ChatRoom

	q := d.db.WithContext(ctx).Where("member_key = ?", memberKey)
	if name == nil {
		q = q.Where("name IS NULL")
	} else {
		q = q.Where("name = ?", *name)
	}
	result := q.First(&room)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ChatRoom{}, ErrRoomNotFound
		}

		return ChatRoom{}, result.Error
	}

	return room, nil
}

// InsertRoomIfAbsent creates the room unless one with the same members and name exists, relying
// on the unique (member_key, name) index, and returns the stored room.
func (d *ChatDAO) InsertRoomIfAbsent(ctx context.Context, room ChatRoom) (ChatRoom, error) {
	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Omit("Messages").Create(&room)
	if result.Error != nil {
		return ChatRoom{}, result.Error
	}

	return d.FindRoom(ctx, room.MemberKey, room.Name)
}

func (d *ChatDAO) FindRoomByID(ctx context.Context, id string, withMessages bool) (ChatRoom, error) {
	var room ChatRoom

	q := d.db.WithContext(ctx)
	if withMessages {
		q = q.Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("creation_date")
		}).Preload("Messages.SendStates")
	}
	result := q.First(&room, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ChatRoom{}, ErrRoomNotFound
		}

		return ChatRoom{}, result.Error
	}

	return room, nil
}

func (d *ChatDAO) FindRoomsByMember(ctx context.Context, username string) ([]ChatRoom, error) {
	var rooms []ChatRoom

	result := d.db.WithContext(ctx).Where("? = ANY(members)", username).Order("id").Find(&rooms)
	if result.Error != nil {
		return nil, result.Error
	}

	return rooms, nil
}

// InsertMessage persists the message and all its send states in one transaction.
func (d *ChatDAO) InsertMessage(ctx context.Context, msg ChatMessage) (ChatMessage, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		states := msg.SendStates
		msg.SendStates = nil
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		if len(states) > 0 {
			if err := tx.Create(&states).Error; err != nil {
				return err
			}
		}
		msg.SendStates = states
		return nil
	})
	if err != nil {
		return ChatMessage{}, err
	}

	return msg, nil
}

// AdvanceStates moves username's entries forward to state. A nil messageIDs selects every message.
func (d *ChatDAO) AdvanceStates(ctx context.Context, username string, messageIDs []string, state domain.ReceiveState) (int64, error) {
	earlier := earlierStates(state)
	if len(earlier) == 0 || (messageIDs != nil && len(messageIDs) == 0) {
		return 0, nil
	}

	q := d.db.WithContext(ctx).Model(&ChatSendState{}).Where("username = ? AND send_state IN ?", username, earlier)
	if messageIDs != nil {
		q = q.Where("message_id IN ?", messageIDs)
	}

	result := q.Update("send_state", string(state))
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (d *ChatDAO) HasSendState(ctx context.Context, username, messageID string) (bool, error) {
	var count int64

	result := d.db.WithContext(ctx).Model(&ChatSendState{}).
		Where("username = ? AND message_id = ?", username, messageID).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}

	return count > 0, nil
}

// FindUnacknowledged returns, per room, the messages holding a not yet acknowledged entry for
// username.
func (d *ChatDAO) FindUnacknowledged(ctx context.Context, username string) ([]ChatMessage, error) {
	var messages []ChatMessage

	result := d.db.WithContext(ctx).
		Joins("JOIN chat_send_states s ON s.message_id = chat_messages.id").
		Where("s.username = ? AND s.send_state <> ?", username, string(domain.StateAcknowledged)).
		Preload("SendStates").
		Order("chat_messages.room_id").Order("chat_messages.creation_date").
		Find(&messages)
	if result.Error != nil {
		return nil, result.Error
	}

	return messages, nil
}

// CountUnreadSince counts, per recipient, messages newer than since that are not acknowledged.
func (d *ChatDAO) CountUnreadSince(ctx context.Context, since time.Time) ([]UnreadCount, error) {
	var counts []UnreadCount

	result := d.db.WithContext(ctx).Model(&ChatSendState{}).
		Select("chat_send_states.username AS username, COUNT(*) AS count").
		Joins("JOIN chat_messages m ON m.id = chat_send_states.message_id").
		Where("m.creation_date >= ? AND chat_send_states.send_state <> ?", since, string(domain.StateAcknowledged)).
		Group("chat_send_states.username").
		Order("chat_send_states.username").
		Scan(&counts)
	if result.Error != nil {
		return nil, result.Error
	}

	return counts, nil
}

func (d *ChatDAO) DeleteRoom(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&ChatRoom{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}

	return nil
}
