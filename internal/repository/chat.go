package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var (
	ErrRoomNotFound    = dao.ErrRoomNotFound
	ErrMessageNotFound = dao.ErrMessageNotFound
)

type UnreadCount = dao.UnreadCount

type ChatDAO interface {
	FindRoom(ctx context.Context, memberKey string, name *string) (dao.ChatRoom, error)
	InsertRoomIfAbsent(ctx context.Context, room dao.ChatRoom) (dao.ChatRoom, error)
	FindRoomByID(ctx context.Context, id string, withMessages bool) (dao.ChatRoom, error)
	FindRoomsByMember(ctx context.Context, username string) ([]dao.ChatRoom, error)
	InsertMessage(ctx context.Context, msg dao.ChatMessage) (dao.ChatMessage, error)
	AdvanceStates(ctx context.Context, username string, messageIDs []string, state domain.ReceiveState) (int64, error)
	HasSendState(ctx context.Context, username, messageID string) (bool, error)
	FindUnacknowledged(ctx context.Context, username string) ([]dao.ChatMessage, error)
	CountUnreadSince(ctx context.Context, since time.Time) ([]dao.UnreadCount, error)
	DeleteRoom(ctx context.Context, id string) error
}

type ChatRepository struct {
	dao ChatDAO
}

func NewChatRepository(dao ChatDAO) *ChatRepository {
	return &ChatRepository{
		dao: dao,
	}
}

// GetOrCreateRoom returns the room whose member set equals members and whose name equals name,
// creating it when missing.
func (r *ChatRepository) GetOrCreateRoom(ctx context.Context, members []string, name *string) (domain.Room, error) {
	normalized := domain.MemberKey(members)
	key := dao.MemberKey(normalized)

	found, err := r.dao.FindRoom(ctx, key, name)
	if err == nil {
		return r.roomToDomain(found), nil
	}
	if !isNotFound(err) {
		return domain.Room{}, fmt.Errorf("r.dao.FindRoom -> %w", err)
	}

	created, err := r.dao.InsertRoomIfAbsent(ctx, dao.ChatRoom{
		ID:        domain.NewID().Hex(),
		Name:      name,
		Members:   pq.StringArray(normalized),
		MemberKey: key,
	})
	if err != nil {
		return domain.Room{}, fmt.Errorf("r.dao.InsertRoomIfAbsent -> %w", err)
	}

	return r.roomToDomain(created), nil
}

func (r *ChatRepository) FindRoom(ctx context.Context, id domain.ID, withMessages bool) (domain.Room, error) {
	found, err := r.dao.FindRoomByID(ctx, id.Hex(), withMessages)
	if err != nil {
		return domain.Room{}, fmt.Errorf("r.dao.FindRoomByID -> %w", err)
	}

	return r.roomToDomain(found), nil
}

func (r *ChatRepository) FindRoomsByMember(ctx context.Context, username string) ([]domain.Room, error) {
	found, err := r.dao.FindRoomsByMember(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindRoomsByMember -> %w", err)
	}

	rooms := make([]domain.Room, 0, len(found))
	for _, row := range found {
		rooms = append(rooms, r.roomToDomain(row))
	}

	return rooms, nil
}

// AddMessage stores msg together with all of its send states.
func (r *ChatRepository) AddMessage(ctx context.Context, roomID domain.ID, msg domain.Message) (domain.Message, error) {
	row := dao.ChatMessage{
		ID:           msg.ID.Hex(),
		RoomID:       roomID.Hex(),
		Sender:       msg.Sender,
		CreationDate: msg.CreationDate,
		Text:         msg.Text,
	}
	for _, s := range msg.SendStates {
		row.SendStates = append(row.SendStates, dao.ChatSendState{
			MessageID: row.ID,
			Username:  s.Username,
			RoomID:    row.RoomID,
			SendState: string(s.SendState),
		})
	}

	created, err := r.dao.InsertMessage(ctx, row)
	if err != nil {
		return domain.Message{}, fmt.Errorf("r.dao.InsertMessage -> %w", err)
	}

	return r.messageToDomain(created), nil
}

// AdvanceStates moves the entries of username forward to state. A nil ids selects every message.
func (r *ChatRepository) AdvanceStates(ctx context.Context, username string, ids []domain.ID, state domain.ReceiveState) (int64, error) {
	var hexIDs []string
	if ids != nil {
		hexIDs = hexes(ids)
	}

	n, err := r.dao.AdvanceStates(ctx, username, hexIDs, state)
	if err != nil {
		return 0, fmt.Errorf("r.dao.AdvanceStates -> %w", err)
	}

	return n, nil
}

func (r *ChatRepository) HasSendState(ctx context.Context, username string, messageID domain.ID) (bool, error) {
	ok, err := r.dao.HasSendState(ctx, username, messageID.Hex())
	if err != nil {
		return false, fmt.Errorf("r.dao.HasSendState -> %w", err)
	}

	return ok, nil
}

// FindUnacknowledged returns the rooms of username that hold unacknowledged messages for them,
// each projected to only those messages.
func (r *ChatRepository) FindUnacknowledged(ctx context.Context, username string) ([]domain.Room, error) {
	messages, err := r.dao.FindUnacknowledged(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindUnacknowledged -> %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	rooms, err := r.dao.FindRoomsByMember(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindRoomsByMember -> %w", err)
	}
	byID := make(map[string]dao.ChatRoom, len(rooms))
	for _, room := range rooms {
		byID[room.ID] = room
	}

	var (
		out   []domain.Room
		index = map[string]int{}
	)
	for _, m := range messages {
		i, ok := index[m.RoomID]
		if !ok {
			room, known := byID[m.RoomID]
			if !known {
				continue
			}
			room.Messages = nil
			out = append(out, r.roomToDomain(room))
			i = len(out) - 1
			index[m.RoomID] = i
		}
		out[i].Messages = append(out[i].Messages, r.messageToDomain(m))
	}

	return out, nil
}

func (r *ChatRepository) CountUnreadSince(ctx context.Context, since time.Time) ([]UnreadCount, error) {
	counts, err := r.dao.CountUnreadSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("r.dao.CountUnreadSince -> %w", err)
	}

	return counts, nil
}

func (r *ChatRepository) DeleteRoom(ctx context.Context, id domain.ID) error {
	if err := r.dao.DeleteRoom(ctx, id.Hex()); err != nil {
		return fmt.Errorf("r.dao.DeleteRoom -> %w", err)
	}

	return nil
}

func (r *ChatRepository) roomToDomain(room dao.ChatRoom) domain.Room {
	id, _ := domain.ParseID(room.ID)
	out := domain.Room{
		ID:       id,
		Name:     room.Name,
		Members:  nonNil(room.Members),
		Messages: []domain.Message{},
	}
	for _, m := range room.Messages {
		out.Messages = append(out.Messages, r.messageToDomain(m))
	}

	return out
}

func (r *ChatRepository) messageToDomain(m dao.ChatMessage) domain.Message {
	id, _ := domain.ParseID(m.ID)
	out := domain.Message{
		ID:           id,
		Sender:       m.Sender,
		CreationDate: m.CreationDate.UTC(),
		Text:         m.Text,
		SendStates:   make([]domain.SendState, 0, len(m.SendStates)),
	}
	for _, s := range m.SendStates {
		out.SendStates = append(out.SendStates, domain.SendState{
			Username:  s.Username,
			SendState: domain.ReceiveState(s.SendState),
		})
	}

	return out
}
