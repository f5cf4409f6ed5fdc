package service

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vecollab/backend/internal/domain"
)

//go:embed defaults
var defaults embed.FS

const systemUploader = "system"

var defaultPictures = []struct {
	id   domain.ID
	file string
}{
	{domain.DefaultProfilePicID, "default_profile_pic.png"},
	{domain.DefaultGroupPicID, "default_group_pic.png"},
	{domain.LogoID, "logo.png"},
}

type IndexManager interface {
	Ensure(ctx context.Context, force bool) error
}

type RoleEnsurer interface {
	EnsureRole(ctx context.Context, username string, role domain.Role) error
}

type GlobalRules interface {
	SeedGlobal(ctx context.Context) error
}

type TaxonomyRepository interface {
	IsEmpty(ctx context.Context) (bool, error)
	Put(ctx context.Context, tree any) error
	Get(ctx context.Context) (json.RawMessage, error)
}

type StartupOptions struct {
	InitialAdmin      string
	ForceIndexRebuild bool
}

// StartupService brings a fresh or existing deployment into the state the other services expect.
type StartupService struct {
	indexes  IndexManager
	roles    RoleEnsurer
	rules    GlobalRules
	taxonomy TaxonomyRepository
	blobs    ObjectStore
	admins   AdminCheck
	opts     StartupOptions
}

func NewStartupService(
	indexes IndexManager,
	roles RoleEnsurer,
	rules GlobalRules,
	taxonomy TaxonomyRepository,
	blobs ObjectStore,
	admins AdminCheck,
	opts StartupOptions,
) *StartupService {
	return &StartupService{
		indexes:  indexes,
		roles:    roles,
		rules:    rules,
		taxonomy: taxonomy,
		blobs:    blobs,
		admins:   admins,
		opts:     opts,
	}
}

// Run performs every startup step in order and stops at the first failure.
func (s *StartupService) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"indexes", s.ensureIndexes},
		{"initial admin", s.ensureAdmin},
		{"global rules", s.rules.SeedGlobal},
		{"taxonomy", s.seedTaxonomy},
		{"default pictures", s.uploadDefaults},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("startup %s -> %w", step.name, err)
		}
		zap.L().Info("startup step done", zap.String("step", step.name))
	}

	return nil
}

func (s *StartupService) ensureIndexes(ctx context.Context) error {
	return s.indexes.Ensure(ctx, s.opts.ForceIndexRebuild)
}

// CheckIndexes recreates indexes that went missing. It never rebuilds.
func (s *StartupService) CheckIndexes(ctx context.Context) error {
	return s.indexes.Ensure(ctx, false)
}

func (s *StartupService) ensureAdmin(ctx context.Context) error {
	if s.opts.InitialAdmin == "" {
		return nil
	}
	return s.roles.EnsureRole(ctx, s.opts.InitialAdmin, domain.RoleAdmin)
}

func (s *StartupService) seedTaxonomy(ctx context.Context) error {
	empty, err := s.taxonomy.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("s.taxonomy.IsEmpty -> %w", err)
	}
	if !empty {
		return nil
	}

	raw, err := defaults.ReadFile("defaults/taxonomy.yml")
	if err != nil {
		return err
	}
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("yaml.Unmarshal -> %w", err)
	}
	if err := s.taxonomy.Put(ctx, tree); err != nil {
		return fmt.Errorf("s.taxonomy.Put -> %w", err)
	}

	return nil
}

func (s *StartupService) uploadDefaults(ctx context.Context) error {
	for _, pic := range defaultPictures {
		ok, err := s.blobs.Exists(ctx, pic.id)
		if err != nil {
			return fmt.Errorf("s.blobs.Exists -> %w", err)
		}
		if ok {
			continue
		}
		data, err := defaults.ReadFile("defaults/" + pic.file)
		if err != nil {
			return err
		}
		if err := s.blobs.PutWithID(ctx, pic.id, data, pic.file, "image/png", systemUploader); err != nil {
			return fmt.Errorf("s.blobs.PutWithID -> %w", err)
		}
	}

	return nil
}

// GetTaxonomy returns the material taxonomy as stored.
func (s *StartupService) GetTaxonomy(ctx context.Context) (json.RawMessage, error) {
	tree, err := s.taxonomy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.taxonomy.Get -> %w", err)
	}
	if tree == nil {
		return json.RawMessage("[]"), nil
	}

	return tree, nil
}

// PutTaxonomy replaces the material taxonomy. Platform admins only.
func (s *StartupService) PutTaxonomy(ctx context.Context, actor string, tree any) error {
	ok, err := s.admins.IsPlatformAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientPermission
	}
	if err := s.taxonomy.Put(ctx, tree); err != nil {
		return fmt.Errorf("s.taxonomy.Put -> %w", err)
	}

	return nil
}
