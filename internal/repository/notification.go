package repository

import (
	"context"
	"fmt"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var ErrNotificationNotFound = dao.ErrNotificationNotFound

type NotificationDAO interface {
	Insert(ctx context.Context, n dao.Notification) (dao.Notification, error)
	FindByRecipient(ctx context.Context, to string, includeAcknowledged bool) ([]dao.Notification, error)
	Advance(ctx context.Context, to string, ids []string, state domain.ReceiveState) (int64, error)
	Exists(ctx context.Context, to, id string) (bool, error)
}

type NotificationRepository struct {
	dao NotificationDAO
}

func NewNotificationRepository(dao NotificationDAO) *NotificationRepository {
	return &NotificationRepository{
		dao: dao,
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	payload, err := toJSON(n.Payload)
	if err != nil {
		return domain.Notification{}, err
	}
	if n.Payload == nil {
		payload = []byte("{}")
	}

	created, err := r.dao.Insert(ctx, dao.Notification{
		ID:                n.ID.Hex(),
		To:                n.To,
		Type:              string(n.Type),
		ReceiveState:      string(n.ReceiveState),
		CreationTimestamp: n.CreationTimestamp,
		Payload:           payload,
	})
	if err != nil {
		return domain.Notification{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created)
}

func (r *NotificationRepository) FindByRecipient(ctx context.Context, to string, includeAcknowledged bool) ([]domain.Notification, error) {
	found, err := r.dao.FindByRecipient(ctx, to, includeAcknowledged)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByRecipient -> %w", err)
	}

	out := make([]domain.Notification, 0, len(found))
	for _, row := range found {
		n, err := r.daoToDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	return out, nil
}

// Advance moves the notifications of to forward to state and returns how many moved. A nil ids
// selects all of them.
func (r *NotificationRepository) Advance(ctx context.Context, to string, ids []domain.ID, state domain.ReceiveState) (int64, error) {
	var hexIDs []string
	if ids != nil {
		hexIDs = hexes(ids)
	}

	n, err := r.dao.Advance(ctx, to, hexIDs, state)
	if err != nil {
		return 0, fmt.Errorf("r.dao.Advance -> %w", err)
	}

	return n, nil
}

func (r *NotificationRepository) Exists(ctx context.Context, to string, id domain.ID) (bool, error) {
	ok, err := r.dao.Exists(ctx, to, id.Hex())
	if err != nil {
		return false, fmt.Errorf("r.dao.Exists -> %w", err)
	}

	return ok, nil
}

func (r *NotificationRepository) daoToDomain(n dao.Notification) (domain.Notification, error) {
	payload, err := fromJSON[map[string]any](n.Payload)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("notification %s payload: %w", n.ID, err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	id, _ := domain.ParseID(n.ID)

	return domain.Notification{
		ID:                id,
		To:                n.To,
		Type:              domain.NotificationType(n.Type),
		ReceiveState:      domain.ReceiveState(n.ReceiveState),
		CreationTimestamp: n.CreationTimestamp.UTC(),
		Payload:           payload,
	}, nil
}
