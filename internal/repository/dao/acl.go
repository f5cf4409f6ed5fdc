package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vecollab/backend/internal/domain"
)

var ErrRuleNotFound = fmt.Errorf("acl rule %w", domain.ErrNotFound)

const globalScope = "global"

type ACLRule struct {
	Role         string         `gorm:"primaryKey"`
	Scope        string         `gorm:"primaryKey;index"`
	Capabilities datatypes.JSON `gorm:"not null;default:'{}'"`
}

func (ACLRule) TableName() string {
	return "acl_rules"
}

type ACLDAO struct {
	db *gorm.DB
}

func NewACLDAO(db *gorm.DB) *ACLDAO {
	return &ACLDAO{
		db: db,
	}
}

// InsertIfAbsent seeds rules without touching existing rows.
func (d *ACLDAO) InsertIfAbsent(ctx context.Context, rules ...ACLRule) error {
	if len(rules) == 0 {
		return nil
	}

	return d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rules).Error
}

func (d *ACLDAO) Find(ctx context.Context, role, scope string) (ACLRule, error) {
	var rule ACLRule

	result := d.db.WithContext(ctx).First(&rule, "role = ? AND scope = ?", role, scope)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ACLRule{}, ErrRuleNotFound
		}

		return ACLRule{}, result.Error
	}

	return rule, nil
}

func (d *ACLDAO) FindByScope(ctx context.Context, scope string) ([]ACLRule, error) {
	var rules []ACLRule

	result := d.db.WithContext(ctx).Where("scope = ?", scope).Order("role").Find(&rules)
	if result.Error != nil {
		return nil, result.Error
	}

	return rules, nil
}

// SetCapability upserts a single capability of the (role, scope) rule.
func (d *ACLDAO) SetCapability(ctx context.Context, role, scope, capability string, value bool) error {
	return d.db.WithContext(ctx).Exec(
		`INSERT INTO acl_rules (role, scope, capabilities) VALUES (?, ?, jsonb_build_object(?::text, ?::boolean))
		ON CONFLICT (role, scope) DO UPDATE
		SET capabilities = acl_rules.capabilities || jsonb_build_object(?::text, ?::boolean)`,
		role, scope, capability, value, capability, value,
	).Error
}

func (d *ACLDAO) DeleteByScope(ctx context.Context, scope string) (int64, error) {
	result := d.db.WithContext(ctx).Delete(&ACLRule{}, "scope = ?", scope)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// DeleteOrphans removes space-scoped rules whose space no longer exists.
func (d *ACLDAO) DeleteOrphans(ctx context.Context) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("scope <> ? AND NOT EXISTS (SELECT 1 FROM spaces WHERE spaces.id = acl_rules.scope)", globalScope).
		Delete(&ACLRule{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
