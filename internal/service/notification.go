package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/metrics"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrNotificationNotFound = repository.ErrNotificationNotFound
	ErrUnknownNotification  = fmt.Errorf("notification type %w", domain.ErrWrongType)
)

// EventNotification is the transport event carrying one notification.
const EventNotification = "notification"

type NotificationRepository interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
	FindByRecipient(ctx context.Context, to string, includeAcknowledged bool) ([]domain.Notification, error)
	Advance(ctx context.Context, to string, ids []domain.ID, state domain.ReceiveState) (int64, error)
	Exists(ctx context.Context, to string, id domain.ID) (bool, error)
}

type NotificationService struct {
	repo      NotificationRepository
	profiles  RoleLookup
	transport Transport
	mailer    Mailer
	now       func() time.Time
}

func NewNotificationService(repo NotificationRepository, profiles RoleLookup, transport Transport, mailer Mailer) *NotificationService {
	return &NotificationService{
		repo:      repo,
		profiles:  profiles,
		transport: transport,
		mailer:    mailer,
		now:       time.Now,
	}
}

// Send delivers a notification of type t to the user to, routed by their preference for the
// category of t. Online recipients get it pushed right away; the others receive it on replay.
func (s *NotificationService) Send(ctx context.Context, to string, t domain.NotificationType, payload map[string]any) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownNotification, t)
	}

	profile, err := s.profiles.FindByUsername(ctx, to)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("s.profiles.FindByUsername -> %w", err)
		}
		profile = domain.Profile{Username: to}
	}
	pref := profile.PreferenceFor(t.Category())
	if pref == domain.PreferenceNone {
		return nil
	}
	if payload == nil {
		payload = map[string]any{}
	}

	n := domain.Notification{
		ID:                domain.NewID(),
		To:                to,
		Type:              t,
		ReceiveState:      domain.StatePending,
		CreationTimestamp: s.now().UTC(),
		Payload:           payload,
	}
	sid, online := s.transport.SidOf(to)
	if online {
		n.ReceiveState = domain.StateSent
	}
	if _, err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("s.repo.Create -> %w", err)
	}
	if online {
		if err := s.transport.Emit(EventNotification, n, sid); err != nil {
			// replay picks it up on the next connect
			zap.L().Warn("notification push failed", zap.String("to", to), zap.Error(err))
		} else {
			metrics.RecordNotification(string(t), "push")
		}
	}

	if pref == domain.PreferenceEmail {
		if profile.Email == "" {
			zap.L().Warn("no email address for notification", zap.String("to", to), zap.String("type", string(t)))
			return nil
		}
		if err := s.mailer.Send(ctx, to, profile.Email, nil, t.Template(), payload); err != nil {
			zap.L().Error("notification mail failed", zap.String("to", to), zap.Error(err))
			return nil
		}
		metrics.RecordNotification(string(t), "email")
	}

	return nil
}

func (s *NotificationService) List(ctx context.Context, username string, includeAcknowledged bool) ([]domain.Notification, error) {
	notifications, err := s.repo.FindByRecipient(ctx, username, includeAcknowledged)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByRecipient -> %w", err)
	}

	return notifications, nil
}

// Acknowledge marks one notification of username as acknowledged. Repeating it is a no-op.
func (s *NotificationService) Acknowledge(ctx context.Context, username string, id domain.ID) error {
	ok, err := s.repo.Exists(ctx, username, id)
	if err != nil {
		return fmt.Errorf("s.repo.Exists -> %w", err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	if _, err := s.repo.Advance(ctx, username, []domain.ID{id}, domain.StateAcknowledged); err != nil {
		return fmt.Errorf("s.repo.Advance -> %w", err)
	}

	return nil
}

func (s *NotificationService) AcknowledgeAll(ctx context.Context, username string) (int64, error) {
	n, err := s.repo.Advance(ctx, username, nil, domain.StateAcknowledged)
	if err != nil {
		return 0, fmt.Errorf("s.repo.Advance -> %w", err)
	}

	return n, nil
}

// Replay pushes every unacknowledged notification of username to its socket and marks the pushed
// ones as sent.
func (s *NotificationService) Replay(ctx context.Context, username string) error {
	sid, ok := s.transport.SidOf(username)
	if !ok {
		return nil
	}
	pending, err := s.repo.FindByRecipient(ctx, username, false)
	if err != nil {
		return fmt.Errorf("s.repo.FindByRecipient -> %w", err)
	}

	pushed := make([]domain.ID, 0, len(pending))
	for _, n := range pending {
		if err := s.transport.Emit(EventNotification, n, sid); err != nil {
			zap.L().Warn("notification replay interrupted", zap.String("user", username), zap.Error(err))
			break
		}
		metrics.RecordNotification(string(n.Type), "push")
		if n.ReceiveState == domain.StatePending {
			pushed = append(pushed, n.ID)
		}
	}
	if len(pushed) == 0 {
		return nil
	}
	if _, err := s.repo.Advance(ctx, username, pushed, domain.StateSent); err != nil {
		return fmt.Errorf("s.repo.Advance -> %w", err)
	}

	return nil
}
