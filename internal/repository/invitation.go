package repository

import (
	"context"
	"fmt"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var ErrInvitationNotFound = dao.ErrInvitationNotFound

type InvitationDAO interface {
	Insert(ctx context.Context, invitation dao.Invitation) (dao.Invitation, error)
	FindByID(ctx context.Context, id string) (dao.Invitation, error)
	SetReply(ctx context.Context, id string, accepted bool) error
}

type InvitationRepository struct {
	dao InvitationDAO
}

func NewInvitationRepository(dao InvitationDAO) *InvitationRepository {
	return &InvitationRepository{
		dao: dao,
	}
}

func (r *InvitationRepository) Create(ctx context.Context, inv domain.Invitation) (domain.Invitation, error) {
	created, err := r.dao.Insert(ctx, dao.Invitation{
		ID:        inv.ID.Hex(),
		PlanID:    hexOrNil(inv.PlanID),
		Message:   inv.Message,
		Sender:    inv.Sender,
		Recipient: inv.Recipient,
		Accepted:  inv.Accepted,
	})
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *InvitationRepository) FindByID(ctx context.Context, id domain.ID) (domain.Invitation, error) {
	found, err := r.dao.FindByID(ctx, id.Hex())
	if err != nil {
		return domain.Invitation{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *InvitationRepository) SetReply(ctx context.Context, id domain.ID, accepted bool) error {
	if err := r.dao.SetReply(ctx, id.Hex(), accepted); err != nil {
		return fmt.Errorf("r.dao.SetReply -> %w", err)
	}

	return nil
}

func (r *InvitationRepository) daoToDomain(i dao.Invitation) domain.Invitation {
	id, _ := domain.ParseID(i.ID)
	return domain.Invitation{
		ID:        id,
		PlanID:    idOrNil(i.PlanID),
		Message:   i.Message,
		Sender:    i.Sender,
		Recipient: i.Recipient,
		Accepted:  i.Accepted,
	}
}
