package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

type TaxonomyDAO interface {
	IsEmpty(ctx context.Context) (bool, error)
	Put(ctx context.Context, tree datatypes.JSON) error
	Get(ctx context.Context) (datatypes.JSON, error)
}

type TaxonomyRepository struct {
	dao TaxonomyDAO
}

func NewTaxonomyRepository(dao TaxonomyDAO) *TaxonomyRepository {
	return &TaxonomyRepository{
		dao: dao,
	}
}

func (r *TaxonomyRepository) IsEmpty(ctx context.Context) (bool, error) {
	empty, err := r.dao.IsEmpty(ctx)
	if err != nil {
		return false, fmt.Errorf("r.dao.IsEmpty -> %w", err)
	}

	return empty, nil
}

func (r *TaxonomyRepository) Put(ctx context.Context, tree any) error {
	raw, err := toJSON(tree)
	if err != nil {
		return err
	}

	if err := r.dao.Put(ctx, raw); err != nil {
		return fmt.Errorf("r.dao.Put -> %w", err)
	}

	return nil
}

// Get returns the stored tree as raw JSON, or nil when none is stored.
func (r *TaxonomyRepository) Get(ctx context.Context) (json.RawMessage, error) {
	raw, err := r.dao.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.Get -> %w", err)
	}

	return json.RawMessage(raw), nil
}
