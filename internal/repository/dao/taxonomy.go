package dao

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const taxonomyName = "material_taxonomy"

// Taxonomy holds the material taxonomy tree as a single document.
type Taxonomy struct {
	Name string         `gorm:"primaryKey"`
	Tree datatypes.JSON `gorm:"not null"`
}

type TaxonomyDAO struct {
	db *gorm.DB
}

func NewTaxonomyDAO(db *gorm.DB) *TaxonomyDAO {
	return &TaxonomyDAO{
		db: db,
	}
}

func (d *TaxonomyDAO) IsEmpty(ctx context.Context) (bool, error) {
	var count int64

	result := d.db.WithContext(ctx).Model(&Taxonomy{}).Where("name = ?", taxonomyName).Count(&count)
	if result.Error != nil {
		return false, result.Error
	}

	return count == 0, nil
}

func (d *TaxonomyDAO) Put(ctx context.Context, tree datatypes.JSON) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"tree"}),
	}).Create(&Taxonomy{Name: taxonomyName, Tree: tree}).Error
}

// Get returns the stored tree, or nil when none was loaded yet.
func (d *TaxonomyDAO) Get(ctx context.Context) (datatypes.JSON, error) {
	var taxonomy Taxonomy

	result := d.db.WithContext(ctx).First(&taxonomy, "name = ?", taxonomyName)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, result.Error
	}

	return taxonomy.Tree, nil
}
