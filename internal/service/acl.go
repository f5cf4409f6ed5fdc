package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrRuleNotFound      = repository.ErrRuleNotFound
	ErrUnknownCapability = fmt.Errorf("capability %w", domain.ErrWrongType)
	ErrUnknownRole       = fmt.Errorf("role %w", domain.ErrWrongType)
)

type ACLRepository interface {
	Seed(ctx context.Context, rules ...domain.ACLRule) error
	Find(ctx context.Context, role domain.Role, scope string) (domain.ACLRule, error)
	FindByScope(ctx context.Context, scope string) ([]domain.ACLRule, error)
	SetCapability(ctx context.Context, role domain.Role, scope string, c domain.Capability, value bool) error
	DeleteByScope(ctx context.Context, scope string) (int64, error)
	DeleteOrphans(ctx context.Context) (int64, error)
}

// RoleLookup resolves the platform role of a user.
type RoleLookup interface {
	FindByUsername(ctx context.Context, username string) (domain.Profile, error)
}

// SpaceLookup resolves a space by id.
type SpaceLookup interface {
	FindByID(ctx context.Context, id domain.ID) (domain.Space, error)
}

type ACLService struct {
	repo     ACLRepository
	profiles RoleLookup
	spaces   SpaceLookup
}

func NewACLService(repo ACLRepository, profiles RoleLookup, spaces SpaceLookup) *ACLService {
	return &ACLService{
		repo:     repo,
		profiles: profiles,
		spaces:   spaces,
	}
}

func (s *ACLService) role(ctx context.Context, username string) (domain.Role, error) {
	p, err := s.profiles.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.RoleGuest, nil
		}
		return "", fmt.Errorf("s.profiles.FindByUsername -> %w", err)
	}
	return p.Role, nil
}

func (s *ACLService) IsPlatformAdmin(ctx context.Context, username string) (bool, error) {
	role, err := s.role(ctx, username)
	if err != nil {
		return false, err
	}
	return role == domain.RoleAdmin, nil
}

// Ask resolves capability c of username in scope. Platform admins hold everything, space admins
// hold every capability of their space. Otherwise the rule of the user's role decides and a missing
// rule denies.
func (s *ACLService) Ask(ctx context.Context, username, scope string, c domain.Capability) (bool, error) {
	role, err := s.role(ctx, username)
	if err != nil {
		return false, err
	}
	if role == domain.RoleAdmin {
		return true, nil
	}
	return s.askRole(ctx, role, scope, c)
}

func (s *ACLService) askRole(ctx context.Context, role domain.Role, scope string, c domain.Capability) (bool, error) {
	rule, err := s.repo.Find(ctx, role, scope)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("s.repo.Find -> %w", err)
	}
	return rule.Allows(c), nil
}

// AskSpace is Ask for the scope of space, counting space admins as holders of every capability.
func (s *ACLService) AskSpace(ctx context.Context, username string, space domain.Space, c domain.Capability) (bool, error) {
	if space.IsAdmin(username) {
		return true, nil
	}
	return s.Ask(ctx, username, space.ID.Hex(), c)
}

// Authority collects what username may do to the posts of space. A nil space yields the platform
// level only.
func (s *ACLService) Authority(ctx context.Context, username string, space *domain.Space) (domain.PostAuthority, error) {
	role, err := s.role(ctx, username)
	if err != nil {
		return domain.PostAuthority{}, err
	}
	a := domain.PostAuthority{
		PlatformAdmin: role == domain.RoleAdmin,
		Capabilities:  map[domain.Capability]bool{},
	}
	if space == nil {
		return a, nil
	}
	a.SpaceAdmin = space.IsAdmin(username)
	a.Member = space.IsMember(username)
	if a.PlatformAdmin || a.SpaceAdmin {
		for _, c := range domain.SpaceCapabilities {
			a.Capabilities[c] = true
		}
		return a, nil
	}
	rule, err := s.repo.Find(ctx, role, space.ID.Hex())
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.PostAuthority{}, fmt.Errorf("s.repo.Find -> %w", err)
	}
	for _, c := range domain.SpaceCapabilities {
		a.Capabilities[c] = rule.Allows(c)
	}
	return a, nil
}

// SeedGlobal stores the global rule of every role that has none yet.
func (s *ACLService) SeedGlobal(ctx context.Context) error {
	rules := make([]domain.ACLRule, 0, len(domain.Roles))
	for _, r := range domain.Roles {
		rules = append(rules, domain.GlobalTemplate(r))
	}
	if err := s.repo.Seed(ctx, rules...); err != nil {
		return fmt.Errorf("s.repo.Seed -> %w", err)
	}
	return nil
}

// SeedSpace stores the template rules of a new space.
func (s *ACLService) SeedSpace(ctx context.Context, spaceID domain.ID) error {
	rules := make([]domain.ACLRule, 0, len(domain.Roles))
	for _, r := range domain.Roles {
		rules = append(rules, domain.SpaceTemplate(r, spaceID))
	}
	if err := s.repo.Seed(ctx, rules...); err != nil {
		return fmt.Errorf("s.repo.Seed -> %w", err)
	}
	return nil
}

// RemoveSpace drops every rule scoped to spaceID. Missing rows are fine.
func (s *ACLService) RemoveSpace(ctx context.Context, spaceID domain.ID) error {
	if _, err := s.repo.DeleteByScope(ctx, spaceID.Hex()); err != nil {
		return fmt.Errorf("s.repo.DeleteByScope -> %w", err)
	}
	return nil
}

// Cleanup removes rules whose space no longer exists.
func (s *ACLService) Cleanup(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("s.repo.DeleteOrphans -> %w", err)
	}
	if n > 0 {
		zap.L().Info("removed orphan acl rules", zap.Int64("count", n))
	}
	return n, nil
}

func (s *ACLService) canManage(ctx context.Context, username, scope string) error {
	admin, err := s.IsPlatformAdmin(ctx, username)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	if scope == domain.GlobalScope {
		return domain.ErrInsufficientPermission
	}
	id, err := domain.ParseID(scope)
	if err != nil {
		return &domain.FieldError{Kind: domain.ErrWrongType, Field: "scope"}
	}
	space, err := s.spaces.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("s.spaces.FindByID -> %w", err)
	}
	if !space.IsAdmin(username) {
		return domain.ErrInsufficientPermission
	}
	return nil
}

// GetRules lists the rules of scope. Managing users only.
func (s *ACLService) GetRules(ctx context.Context, username, scope string) ([]domain.ACLRule, error) {
	if err := s.canManage(ctx, username, scope); err != nil {
		return nil, err
	}
	rules, err := s.repo.FindByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindByScope -> %w", err)
	}
	return rules, nil
}

func (s *ACLService) SetRule(ctx context.Context, username string, role domain.Role, scope string, c domain.Capability, value bool) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	if !domain.IsCapability(scope, c) {
		return ErrUnknownCapability
	}
	if err := s.canManage(ctx, username, scope); err != nil {
		return err
	}
	if err := s.repo.SetCapability(ctx, role, scope, c, value); err != nil {
		return fmt.Errorf("s.repo.SetCapability -> %w", err)
	}
	return nil
}
