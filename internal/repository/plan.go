package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var (
	ErrPlanExists   = dao.ErrPlanExists
	ErrPlanNotFound = dao.ErrPlanNotFound
)

type (
	PlanFilter = dao.PlanFilter
	PlanAccess = dao.PlanAccess
)

const (
	AccessOwn    = dao.AccessOwn
	AccessShared = dao.AccessShared
	AccessAll    = dao.AccessAll
)

type PlanDAO interface {
	Insert(ctx context.Context, plan dao.Plan) (dao.Plan, error)
	FindByID(ctx context.Context, id string) (dao.Plan, error)
	FindByIDs(ctx context.Context, ids []string) ([]dao.Plan, error)
	List(ctx context.Context, f dao.PlanFilter) ([]dao.Plan, error)
	ReplaceDocument(ctx context.Context, plan dao.Plan) error
	MergeFields(ctx context.Context, id string, fields datatypes.JSON, columns map[string]any, lastModified time.Time) error
	UpdateAccess(ctx context.Context, id string, ops ...dao.ArrayOp) error
	Delete(ctx context.Context, id string) error
}

type PlanRepository struct {
	dao PlanDAO
}

func NewPlanRepository(dao PlanDAO) *PlanRepository {
	return &PlanRepository{
		dao: dao,
	}
}

func (r *PlanRepository) Create(ctx context.Context, plan domain.VEPlan) (domain.VEPlan, error) {
	row, err := r.domainToDao(plan)
	if err != nil {
		return domain.VEPlan{}, err
	}

	created, err := r.dao.Insert(ctx, row)
	if err != nil {
		return domain.VEPlan{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created)
}

func (r *PlanRepository) FindByID(ctx context.Context, id domain.ID) (domain.VEPlan, error) {
	found, err := r.dao.FindByID(ctx, id.Hex())
	if err != nil {
		return domain.VEPlan{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found)
}

// FindByIDs skips ids that do not exist.
func (r *PlanRepository) FindByIDs(ctx context.Context, ids []domain.ID) ([]domain.VEPlan, error) {
	found, err := r.dao.FindByIDs(ctx, hexes(ids))
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByIDs -> %w", err)
	}

	return r.daosToDomain(found)
}

func (r *PlanRepository) List(ctx context.Context, f PlanFilter) ([]domain.VEPlan, error) {
	found, err := r.dao.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("r.dao.List -> %w", err)
	}

	return r.daosToDomain(found)
}

// Replace stores the whole body of plan. Ownership, access lists and the creation timestamp
// are not touched.
func (r *PlanRepository) Replace(ctx context.Context, plan domain.VEPlan) error {
	row, err := r.domainToDao(plan)
	if err != nil {
		return err
	}

	if err := r.dao.ReplaceDocument(ctx, row); err != nil {
		return fmt.Errorf("r.dao.ReplaceDocument -> %w", err)
	}

	return nil
}

// UpdateFields overwrites the given top level fields of the stored body.
func (r *PlanRepository) UpdateFields(ctx context.Context, id domain.ID, fields map[string]any, lastModified time.Time) error {
	fields["last_modified"] = lastModified
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	columns := map[string]any{}
	if v, ok := fields["name"]; ok {
		name, _ := v.(string)
		columns["name"] = name
	}
	if v, ok := fields["is_good_practise"]; ok {
		columns["is_good_practise"] = v == true
	}

	if err := r.dao.MergeFields(ctx, id.Hex(), datatypes.JSON(raw), columns, lastModified); err != nil {
		return fmt.Errorf("r.dao.MergeFields -> %w", err)
	}

	return nil
}

// GrantAccess adds usernames to read_access and, with write, to write_access as well.
func (r *PlanRepository) GrantAccess(ctx context.Context, id domain.ID, usernames []string, write bool) error {
	var ops []dao.ArrayOp
	for _, u := range usernames {
		ops = append(ops, dao.AddTo("read_access", u))
		if write {
			ops = append(ops, dao.AddTo("write_access", u))
		}
	}
	if len(ops) == 0 {
		return nil
	}

	if err := r.dao.UpdateAccess(ctx, id.Hex(), ops...); err != nil {
		return fmt.Errorf("r.dao.UpdateAccess -> %w", err)
	}

	return nil
}

// RevokeAccess removes usernames from write_access and, with read, from read_access as well.
func (r *PlanRepository) RevokeAccess(ctx context.Context, id domain.ID, usernames []string, read bool) error {
	var ops []dao.ArrayOp
	for _, u := range usernames {
		ops = append(ops, dao.RemoveFrom("write_access", u))
		if read {
			ops = append(ops, dao.RemoveFrom("read_access", u))
		}
	}
	if len(ops) == 0 {
		return nil
	}

	if err := r.dao.UpdateAccess(ctx, id.Hex(), ops...); err != nil {
		return fmt.Errorf("r.dao.UpdateAccess -> %w", err)
	}

	return nil
}

func (r *PlanRepository) Delete(ctx context.Context, id domain.ID) error {
	if err := r.dao.Delete(ctx, id.Hex()); err != nil {
		return fmt.Errorf("r.dao.Delete -> %w", err)
	}

	return nil
}

func (r *PlanRepository) domainToDao(p domain.VEPlan) (dao.Plan, error) {
	doc, err := json.Marshal(p.ToMap())
	if err != nil {
		return dao.Plan{}, fmt.Errorf("json.Marshal -> %w", err)
	}

	row := dao.Plan{
		ID:             p.ID.Hex(),
		Author:         p.Author,
		ReadAccess:     pq.StringArray(nonNil(p.ReadAccess)),
		WriteAccess:    pq.StringArray(nonNil(p.WriteAccess)),
		IsGoodPractise: p.IsGoodPractise,
		Document:       doc,
	}
	if p.Name != nil {
		row.Name = *p.Name
	}
	if p.CreationTimestamp != nil {
		row.CreationTimestamp = *p.CreationTimestamp
	}
	if p.LastModified != nil {
		row.LastModified = *p.LastModified
	}

	return row, nil
}

// daoToDomain decodes the stored body and lays the authoritative columns over it.
func (r *PlanRepository) daoToDomain(row dao.Plan) (domain.VEPlan, error) {
	dec := json.NewDecoder(bytes.NewReader(row.Document))
	dec.UseNumber()

	m := map[string]any{}
	if err := dec.Decode(&m); err != nil {
		return domain.VEPlan{}, fmt.Errorf("plan %s: json.Decode -> %w", row.ID, err)
	}
	m["_id"] = row.ID
	m["author"] = row.Author
	m["read_access"] = []string(row.ReadAccess)
	m["write_access"] = []string(row.WriteAccess)
	m["creation_timestamp"] = row.CreationTimestamp
	m["last_modified"] = row.LastModified
	m["is_good_practise"] = row.IsGoodPractise

	plan, err := domain.VEPlanFromMap(m)
	if err != nil {
		return domain.VEPlan{}, fmt.Errorf("plan %s: domain.VEPlanFromMap -> %w", row.ID, err)
	}

	return plan, nil
}

func (r *PlanRepository) daosToDomain(rows []dao.Plan) ([]domain.VEPlan, error) {
	plans := make([]domain.VEPlan, 0, len(rows))
	for _, row := range rows {
		plan, err := r.daoToDomain(row)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	return plans, nil
}
