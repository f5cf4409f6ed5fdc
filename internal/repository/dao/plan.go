package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vecollab/backend/internal/domain"
)

var (
	ErrPlanExists   = fmt.Errorf("plan %w", domain.ErrAlreadyExists)
	ErrPlanNotFound = fmt.Errorf("plan %w", domain.ErrNotFound)
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// containsPattern matches s literally anywhere in an ILIKE operand.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Plan keeps the serialized plan in Document. The remaining columns are queried, sorted or
// updated atomically and win over the values stored in the body.
type Plan struct {
	ID             string         `gorm:"primaryKey;type:varchar(24)"`
	Author         string         `gorm:"not null;index"`
	ReadAccess     pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	WriteAccess    pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
	Name           string         `gorm:"not null;default:''"`
	IsGoodPractise bool           `gorm:"not null;default:false"`
	Document       datatypes.JSON `gorm:"not null"`

	CreationTimestamp time.Time `gorm:"not null"`
	LastModified      time.Time `gorm:"not null;index"`
}

type PlanAccess string

const (
	AccessOwn    PlanAccess = "own"
	AccessShared PlanAccess = "shared"
	AccessAll    PlanAccess = "all"
)

type PlanFilter struct {
	Username     string
	Access       PlanAccess
	GoodPractise *bool
	Search       string
	SortBy       string
	Descending   bool
	Limit        int
	Offset       int
}

var planSortColumns = map[string]string{
	"name":               "name",
	"last_modified":      "last_modified",
	"creation_timestamp": "creation_timestamp",
}

type PlanDAO struct {
	db *gorm.DB
}

func NewPlanDAO(db *gorm.DB) *PlanDAO {
	return &PlanDAO{
		db: db,
	}
}

func (d *PlanDAO) Insert(ctx context.Context, plan Plan) (Plan, error) {
	result := d.db.WithContext(ctx).Create(&plan)
	if result.Error != nil {
		if isUniqueViolation(result.Error, "") {
			return Plan{}, ErrPlanExists
		}

		return Plan{}, result.Error
	}

	return plan, nil
}

func (d *PlanDAO) FindByID(ctx context.Context, id string) (Plan, error) {
	var plan Plan

	result := d.db.WithContext(ctx).First(&plan, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Plan{}, ErrPlanNotFound
		}

		return Plan{}, result.Error
	}

	return plan, nil
}

func (d *PlanDAO) FindByIDs(ctx context.Context, ids []string) ([]Plan, error) {
	var plans []Plan
	if len(ids) == 0 {
		return plans, nil
	}

	result := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&plans)
	if result.Error != nil {
		return nil, result.Error
	}

	return plans, nil
}

func (d *PlanDAO) List(ctx context.Context, f PlanFilter) ([]Plan, error) {
	var plans []Plan

	q := d.db.WithContext(ctx).Model(&Plan{})
	switch f.Access {
	case AccessOwn:
		q = q.Where("author = ?", f.Username)
	case AccessShared:
		q = q.Where("author <> ? AND (? = ANY(read_access) OR ? = ANY(write_access))", f.Username, f.Username, f.Username)
	default:
		q = q.Where("author = ? OR ? = ANY(read_access) OR ? = ANY(write_access) OR is_good_practise",
			f.Username, f.Username, f.Username)
	}
	if f.GoodPractise != nil {
		q = q.Where("is_good_practise = ?", *f.GoodPractise)
	}
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		q = q.Where(`(name ILIKE ? ESCAPE '\' OR document->>'abstract' ILIKE ? ESCAPE '\'
			OR (document->'topics')::text ILIKE ? ESCAPE '\')`,
			pattern, pattern, pattern)
	}

	column, ok := planSortColumns[f.SortBy]
	if !ok {
		column = "last_modified"
	}
	direction := "ASC"
	if f.Descending {
		direction = "DESC"
	}
	q = q.Order(column + " " + direction).Order("id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	if result := q.Find(&plans); result.Error != nil {
		return nil, result.Error
	}

	return plans, nil
}

// ReplaceDocument overwrites the serialized body and its mirrored columns, leaving ownership,
// access lists and the creation timestamp alone.
func (d *PlanDAO) ReplaceDocument(ctx context.Context, plan Plan) error {
	result := d.db.WithContext(ctx).Model(&Plan{}).Where("id = ?", plan.ID).Updates(map[string]any{
		"name":             plan.Name,
		"is_good_practise": plan.IsGoodPractise,
		"document":         plan.Document,
		"last_modified":    plan.LastModified,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}

	return nil
}

// MergeFields overwrites the given top level keys of the body in a single statement, so
// concurrent edits of different fields do not overwrite each other.
func (d *PlanDAO) MergeFields(ctx context.Context, id string, fields datatypes.JSON, columns map[string]any, lastModified time.Time) error {
	updates := map[string]any{
		"document":      gorm.Expr("document || ?::jsonb", string(fields)),
		"last_modified": lastModified,
	}
	for k, v := range columns {
		updates[k] = v
	}

	result := d.db.WithContext(ctx).Model(&Plan{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}

	return nil
}

// UpdateAccess applies set operations on read_access and write_access. These columns are
// authoritative over the copies held in the body.
func (d *PlanDAO) UpdateAccess(ctx context.Context, id string, ops ...ArrayOp) error {
	result := d.db.WithContext(ctx).Model(&Plan{}).Where("id = ?", id).Updates(arrayUpdates(ops))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}

	return nil
}

func (d *PlanDAO) Delete(ctx context.Context, id string) error {
	result := d.db.WithContext(ctx).Delete(&Plan{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}

	return nil
}
