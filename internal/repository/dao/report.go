package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vecollab/backend/internal/domain"
)

var ErrReportNotFound = fmt.Errorf("report %w", domain.ErrNotFound)

type Report struct {
	ID        string    `gorm:"primaryKey;type:varchar(24)"`
	Type      string    `gorm:"not null"`
	ItemID    string    `gorm:"not null"`
	Reason    string    `gorm:"not null"`
	Reporter  string    `gorm:"not null"`
	State     string    `gorm:"not null;index"`
	Timestamp time.Time `gorm:"not null"`
}

type ReportDAO struct {
	db *gorm.DB
}

func NewReportDAO(db *gorm.DB) *ReportDAO {
	return &ReportDAO{
		db: db,
	}
}

func (d *ReportDAO) Insert(ctx context.Context, report Report) (Report, error) {
	result := d.db.WithContext(ctx).Create(&report)
	if result.Error != nil {
		return Report{}, result.Error
	}

	return report, nil
}

func (d *ReportDAO) FindByID(ctx context.Context, id string) (Report, error) {
	var report Report

	result := d.db.WithContext(ctx).First(&report, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Report{}, ErrReportNotFound
		}

		return Report{}, result.Error
	}

	return report, nil
}

func (d *ReportDAO) FindByState(ctx context.Context, state string) ([]Report, error) {
	var reports []Report

	result := d.db.WithContext(ctx).Where("state = ?", state).Order("timestamp").Find(&reports)
	if result.Error != nil {
		return nil, result.Error
	}

	return reports, nil
}

func (d *ReportDAO) SetState(ctx context.Context, id, state string) error {
	result := d.db.WithContext(ctx).Model(&Report{}).Where("id = ?", id).Update("state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}

	return nil
}
