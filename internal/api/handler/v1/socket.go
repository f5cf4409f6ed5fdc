package v1

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/transport"
)

const (
	EventAcknowledgeNotification = "acknowledge_notification"
	EventAcknowledgeMessage      = "acknowledge_message"
)

// SocketHub is the part of the socket hub the client events are registered on.
type SocketHub interface {
	Handle(event string, fn transport.EventHandler)
	OnAuthenticated(fn func(ctx context.Context, username string))
}

// SocketService is implemented by the notification and chat services.
type SocketService interface {
	Acknowledge(ctx context.Context, username string, id domain.ID) error
	Replay(ctx context.Context, username string) error
}

// RegisterSocketEvents wires the acknowledgement events and replays whatever a user missed while
// offline once they authenticate.
func RegisterSocketEvents(hub SocketHub, notifications, chat SocketService) {
	hub.Handle(EventAcknowledgeNotification, acknowledgeEvent(notifications))
	hub.Handle(EventAcknowledgeMessage, acknowledgeEvent(chat))

	hub.OnAuthenticated(func(ctx context.Context, username string) {
		if err := notifications.Replay(ctx, username); err != nil {
			zap.L().Error("notification replay failed", zap.String("username", username), zap.Error(err))
		}
		if err := chat.Replay(ctx, username); err != nil {
			zap.L().Error("message replay failed", zap.String("username", username), zap.Error(err))
		}
	})
}

func acknowledgeEvent(svc SocketService) transport.EventHandler {
	return func(ctx context.Context, username string, data json.RawMessage) (any, error) {
		var payload struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrWrongShape, err)
		}
		id, err := domain.ParseID(payload.ID)
		if err != nil {
			return nil, &domain.FieldError{Kind: domain.ErrWrongType, Field: "_id"}
		}
		if err := svc.Acknowledge(ctx, username, id); err != nil {
			return nil, err
		}

		return map[string]any{"ok": true, "_id": payload.ID}, nil
	}
}
