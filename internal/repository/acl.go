package repository

import (
	"context"
	"fmt"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var ErrRuleNotFound = dao.ErrRuleNotFound

type ACLDAO interface {
	InsertIfAbsent(ctx context.Context, rules ...dao.ACLRule) error
	Find(ctx context.Context, role, scope string) (dao.ACLRule, error)
	FindByScope(ctx context.Context, scope string) ([]dao.ACLRule, error)
	SetCapability(ctx context.Context, role, scope, capability string, value bool) error
	DeleteByScope(ctx context.Context, scope string) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

type ACLRepository struct {
	dao ACLDAO
}

func NewACLRepository(dao ACLDAO) *ACLRepository {
	return &ACLRepository{
		dao: dao,
	}
}

// Seed stores rules whose (role, scope) has no row yet.
func (r *ACLRepository) Seed(ctx context.Context, rules ...domain.ACLRule) error {
	rows := make([]dao.ACLRule, 0, len(rules))
	for _, rule := range rules {
		caps, err := toJSON(rule.Capabilities)
		if err != nil {
			return err
		}
		rows = append(rows, dao.ACLRule{Role: string(rule.Role), Scope: rule.Scope, Capabilities: caps})
	}

	if err := r.dao.InsertIfAbsent(ctx, rows...); err != nil {
		return fmt.Errorf("r.dao.InsertIfAbsent -> %w", err)
	}

	return nil
}

func (r *ACLRepository) Find(ctx context.Context, role domain.Role, scope string) (domain.ACLRule, error) {
	found, err := r.dao.Find(ctx, string(role), scope)
	if err != nil {
		return domain.ACLRule{}, fmt.Errorf("r.dao.Find -> %w", err)
	}

	return r.daoToDomain(found)
}

func (r *ACLRepository) FindByScope(ctx context.Context, scope string) ([]domain.ACLRule, error) {
	found, err := r.dao.FindByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByScope -> %w", err)
	}

	rules := make([]domain.ACLRule, 0, len(found))
	for _, row := range found {
		rule, err := r.daoToDomain(row)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func (r *ACLRepository) SetCapability(ctx context.Context, role domain.Role, scope string, c domain.Capability, value bool) error {
	if err := r.dao.SetCapability(ctx, string(role), scope, string(c), value); err != nil {
		return fmt.Errorf("r.dao.SetCapability -> %w", err)
	}

	return nil
}

func (r *ACLRepository) DeleteByScope(ctx context.Context, scope string) (int64, error) {
	n, err := r.dao.DeleteByScope(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("r.dao.DeleteByScope -> %w", err)
	}

	return n, nil
}

func (r *ACLRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	n, err := r.dao.DeleteOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("r.dao.DeleteOrphans -> %w", err)
	}

	return n, nil
}

func (r *ACLRepository) daoToDomain(row dao.ACLRule) (domain.ACLRule, error) {
	caps, err := fromJSON[map[domain.Capability]bool](row.Capabilities)
	if err != nil {
		return domain.ACLRule{}, fmt.Errorf("acl rule %s/%s: %w", row.Role, row.Scope, err)
	}
	if caps == nil {
		caps = map[domain.Capability]bool{}
	}

	return domain.ACLRule{Role: domain.Role(row.Role), Scope: row.Scope, Capabilities: caps}, nil
}
