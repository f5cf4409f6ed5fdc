package repository

import (
	"context"
	"fmt"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository/dao"
)

var ErrReportNotFound = dao.ErrReportNotFound

type ReportDAO interface {
	Insert(ctx context.Context, report dao.Report) (dao.Report, error)
	FindByID(ctx context.Context, id string) (dao.Report, error)
	FindByState(ctx context.Context, state string) ([]dao.Report, error)
	SetState(ctx context.Context, id, state string) error
}

type ReportRepository struct {
	dao ReportDAO
}

func NewReportRepository(dao ReportDAO) *ReportRepository {
	return &ReportRepository{
		dao: dao,
	}
}

func (r *ReportRepository) Create(ctx context.Context, report domain.Report) (domain.Report, error) {
	created, err := r.dao.Insert(ctx, dao.Report{
		ID:        report.ID.Hex(),
		Type:      string(report.Type),
		ItemID:    report.ItemID,
		Reason:    report.Reason,
		Reporter:  report.Reporter,
		State:     string(report.State),
		Timestamp: report.Timestamp,
	})
	if err != nil {
		return domain.Report{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *ReportRepository) FindByID(ctx context.Context, id domain.ID) (domain.Report, error) {
	found, err := r.dao.FindByID(ctx, id.Hex())
	if err != nil {
		return domain.Report{}, fmt.Errorf("r.dao.FindByID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *ReportRepository) FindOpen(ctx context.Context) ([]domain.Report, error) {
	found, err := r.dao.FindByState(ctx, string(domain.ReportOpen))
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByState -> %w", err)
	}

	reports := make([]domain.Report, 0, len(found))
	for _, row := range found {
		reports = append(reports, r.daoToDomain(row))
	}

	return reports, nil
}

func (r *ReportRepository) Close(ctx context.Context, id domain.ID) error {
	if err := r.dao.SetState(ctx, id.Hex(), string(domain.ReportClosed)); err != nil {
		return fmt.Errorf("r.dao.SetState -> %w", err)
	}

	return nil
}

func (r *ReportRepository) daoToDomain(row dao.Report) domain.Report {
	id, _ := domain.ParseID(row.ID)
	return domain.Report{
		ID:        id,
		Type:      domain.ReportType(row.Type),
		ItemID:    row.ItemID,
		Reason:    row.Reason,
		Reporter:  row.Reporter,
		State:     domain.ReportState(row.State),
		Timestamp: row.Timestamp.UTC(),
	}
}
