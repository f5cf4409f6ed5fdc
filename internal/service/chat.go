package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/metrics"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrRoomNotFound    = repository.ErrRoomNotFound
	ErrMessageNotFound = repository.ErrMessageNotFound
)

// Transport events of the chat.
const (
	EventNewMessage     = "new_message"
	EventUnreadMessages = "unread_messages"
)

const (
	digestWindow   = 24 * time.Hour
	digestTemplate = "new_messages"
)

type ChatRepository interface {
	GetOrCreateRoom(ctx context.Context, members []string, name *string) (domain.Room, error)
	FindRoom(ctx context.Context, id domain.ID, withMessages bool) (domain.Room, error)
	FindRoomsByMember(ctx context.Context, username string) ([]domain.Room, error)
	AddMessage(ctx context.Context, roomID domain.ID, msg domain.Message) (domain.Message, error)
	AdvanceStates(ctx context.Context, username string, ids []domain.ID, state domain.ReceiveState) (int64, error)
	HasSendState(ctx context.Context, username string, messageID domain.ID) (bool, error)
	FindUnacknowledged(ctx context.Context, username string) ([]domain.Room, error)
	CountUnreadSince(ctx context.Context, since time.Time) ([]repository.UnreadCount, error)
	DeleteRoom(ctx context.Context, id domain.ID) error
}

type ChatService struct {
	repo      ChatRepository
	profiles  RoleLookup
	transport Transport
	mailer    Mailer
	now       func() time.Time
}

func NewChatService(repo ChatRepository, profiles RoleLookup, transport Transport, mailer Mailer) *ChatService {
	return &ChatService{
		repo:      repo,
		profiles:  profiles,
		transport: transport,
		mailer:    mailer,
		now:       time.Now,
	}
}

// GetOrCreateRoom returns the room of exactly members plus actor under name.
func (s *ChatService) GetOrCreateRoom(ctx context.Context, actor string, members []string, name *string) (domain.Room, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		name = nil
	}
	all := append(append(make([]string, 0, len(members)+1), members...), actor)
	room, err := s.repo.GetOrCreateRoom(ctx, all, name)
	if err != nil {
		return domain.Room{}, fmt.Errorf("s.repo.GetOrCreateRoom -> %w", err)
	}

	return room, nil
}

func (s *ChatService) ListRooms(ctx context.Context, username string) ([]domain.Room, error) {
	rooms, err := s.repo.FindRoomsByMember(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindRoomsByMember -> %w", err)
	}

	return rooms, nil
}

func (s *ChatService) memberRoom(ctx context.Context, username string, id domain.ID, withMessages bool) (domain.Room, error) {
	room, err := s.repo.FindRoom(ctx, id, withMessages)
	if err != nil {
		return domain.Room{}, fmt.Errorf("s.repo.FindRoom -> %w", err)
	}
	if !room.IsMember(username) {
		return domain.Room{}, domain.ErrUserNotMember
	}

	return room, nil
}

// GetMessages returns the room with its messages. Members only.
func (s *ChatService) GetMessages(ctx context.Context, username string, id domain.ID) (domain.Room, error) {
	return s.memberRoom(ctx, username, id, true)
}

// SendMessage stores one message and pushes it to the members that are online.
func (s *ChatService) SendMessage(ctx context.Context, sender string, roomID domain.ID, text string) (domain.Message, error) {
	room, err := s.memberRoom(ctx, sender, roomID, false)
	if err != nil {
		return domain.Message{}, err
	}

	sids := map[string]string{}
	online := func(user string) bool {
		sid, ok := s.transport.SidOf(user)
		if ok {
			sids[user] = sid
		}
		return ok
	}
	msg, err := s.repo.AddMessage(ctx, room.ID, room.NewMessage(sender, text, s.now().UTC(), online))
	if err != nil {
		return domain.Message{}, fmt.Errorf("s.repo.AddMessage -> %w", err)
	}

	payload := map[string]any{"room_id": room.ID, "message": msg}
	for user, sid := range sids {
		if user == sender {
			continue
		}
		if err := s.transport.Emit(EventNewMessage, payload, sid); err != nil {
			zap.L().Warn("message push failed", zap.String("to", user), zap.Error(err))
		}
	}

	return msg, nil
}

// Acknowledge flips the entry of username on message id to acknowledged.
func (s *ChatService) Acknowledge(ctx context.Context, username string, id domain.ID) error {
	ok, err := s.repo.HasSendState(ctx, username, id)
	if err != nil {
		return fmt.Errorf("s.repo.HasSendState -> %w", err)
	}
	if !ok {
		return ErrMessageNotFound
	}
	if _, err := s.repo.AdvanceStates(ctx, username, []domain.ID{id}, domain.StateAcknowledged); err != nil {
		return fmt.Errorf("s.repo.AdvanceStates -> %w", err)
	}

	return nil
}

// Replay pushes the unacknowledged messages of username, one event per room, and marks them sent.
func (s *ChatService) Replay(ctx context.Context, username string) error {
	sid, ok := s.transport.SidOf(username)
	if !ok {
		return nil
	}
	rooms, err := s.repo.FindUnacknowledged(ctx, username)
	if err != nil {
		return fmt.Errorf("s.repo.FindUnacknowledged -> %w", err)
	}

	var pushed []domain.ID
	for _, room := range rooms {
		if err := s.transport.Emit(EventUnreadMessages, room, sid); err != nil {
			zap.L().Warn("chat replay interrupted", zap.String("user", username), zap.Error(err))
			break
		}
		for _, m := range room.Messages {
			if state, _ := m.StateOf(username); state == domain.StatePending {
				pushed = append(pushed, m.ID)
			}
		}
	}
	if len(pushed) == 0 {
		return nil
	}
	if _, err := s.repo.AdvanceStates(ctx, username, pushed, domain.StateSent); err != nil {
		return fmt.Errorf("s.repo.AdvanceStates -> %w", err)
	}

	return nil
}

// Digest mails the unread count of the last day to every recipient whose messages preference is
// email. It returns how many mails were sent.
func (s *ChatService) Digest(ctx context.Context) (int, error) {
	counts, err := s.repo.CountUnreadSince(ctx, s.now().UTC().Add(-digestWindow))
	if err != nil {
		return 0, fmt.Errorf("s.repo.CountUnreadSince -> %w", err)
	}

	var (
		sent int
		errs []error
	)
	for _, c := range counts {
		if c.Count == 0 {
			continue
		}
		profile, err := s.profiles.FindByUsername(ctx, c.Username)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				errs = append(errs, fmt.Errorf("s.profiles.FindByUsername(%s) -> %w", c.Username, err))
			}
			continue
		}
		if profile.PreferenceFor(domain.CategoryMessages) != domain.PreferenceEmail || profile.Email == "" {
			continue
		}
		payload := map[string]any{"unread_count": c.Count}
		if err := s.mailer.Send(ctx, c.Username, profile.Email, nil, digestTemplate, payload); err != nil {
			errs = append(errs, fmt.Errorf("s.mailer.Send(%s) -> %w", c.Username, err))
			continue
		}
		metrics.RecordNotification(string(domain.NotifNewMessages), "email")
		sent++
	}

	return sent, errors.Join(errs...)
}

// Room returns a room with its messages regardless of membership. Moderation only.
func (s *ChatService) Room(ctx context.Context, id domain.ID) (domain.Room, error) {
	room, err := s.repo.FindRoom(ctx, id, true)
	if err != nil {
		return domain.Room{}, fmt.Errorf("s.repo.FindRoom -> %w", err)
	}

	return room, nil
}

// DeleteRoom removes a reported room with all of its messages.
func (s *ChatService) DeleteRoom(ctx context.Context, id domain.ID) error {
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("s.repo.DeleteRoom -> %w", err)
	}

	return nil
}
