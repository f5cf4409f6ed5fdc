package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vecollab/backend/internal/domain"
	"github.com/vecollab/backend/internal/repository"
)

var (
	ErrReportNotFound     = repository.ErrReportNotFound
	ErrUnknownReportType  = fmt.Errorf("report type %w", domain.ErrWrongType)
	ErrMissingReportItem  = &domain.FieldError{Kind: domain.ErrMissingKey, Field: "item_id"}
	ErrMissingReportCause = &domain.FieldError{Kind: domain.ErrMissingKey, Field: "reason"}
)

type ReportRepository interface {
	Create(ctx context.Context, report domain.Report) (domain.Report, error)
	FindByID(ctx context.Context, id domain.ID) (domain.Report, error)
	FindOpen(ctx context.Context) ([]domain.Report, error)
	Close(ctx context.Context, id domain.ID) error
}

type ReportedPosts interface {
	Get(ctx context.Context, actor string, id domain.ID) (domain.Post, error)
	GetByComment(ctx context.Context, actor string, commentID domain.ID) (domain.Post, error)
	Delete(ctx context.Context, actor string, id domain.ID) error
	DeleteComment(ctx context.Context, actor string, commentID domain.ID) error
}

type ReportedPlans interface {
	Lookup(ctx context.Context, id domain.ID) (domain.VEPlan, error)
	Delete(ctx context.Context, id domain.ID, username string) error
}

type ReportedProfiles interface {
	GetProfile(ctx context.Context, username string) (domain.Profile, error)
	Redact(ctx context.Context, username string) error
}

type ReportedSpaces interface {
	Get(ctx context.Context, actor string, id domain.ID) (domain.Space, error)
	Delete(ctx context.Context, actor string, id domain.ID) error
}

type ReportedRooms interface {
	Room(ctx context.Context, id domain.ID) (domain.Room, error)
	DeleteRoom(ctx context.Context, id domain.ID) error
}

// AdminCheck tells platform admins apart.
type AdminCheck interface {
	IsPlatformAdmin(ctx context.Context, username string) (bool, error)
}

type ReportService struct {
	repo     ReportRepository
	admins   AdminCheck
	posts    ReportedPosts
	plans    ReportedPlans
	profiles ReportedProfiles
	spaces   ReportedSpaces
	rooms    ReportedRooms
	now      func() time.Time
}

func NewReportService(
	repo ReportRepository,
	admins AdminCheck,
	posts ReportedPosts,
	plans ReportedPlans,
	profiles ReportedProfiles,
	spaces ReportedSpaces,
	rooms ReportedRooms,
) *ReportService {
	return &ReportService{
		repo:     repo,
		admins:   admins,
		posts:    posts,
		plans:    plans,
		profiles: profiles,
		spaces:   spaces,
		rooms:    rooms,
		now:      time.Now,
	}
}

// ReportedItem is a report together with the item it points at.
type ReportedItem struct {
	Report domain.Report `json:"report"`
	Item   any           `json:"item"`
}

// Create files a report by reporter.
func (s *ReportService) Create(ctx context.Context, reporter string, t domain.ReportType, itemID, reason string) (domain.Report, error) {
	if !t.Valid() {
		return domain.Report{}, ErrUnknownReportType
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Report{}, ErrMissingReportItem
	}
	if t != domain.ReportProfile {
		if _, err := domain.ParseID(itemID); err != nil {
			return domain.Report{}, &domain.FieldError{Kind: domain.ErrWrongType, Field: "item_id"}
		}
	}
	if strings.TrimSpace(reason) == "" {
		return domain.Report{}, ErrMissingReportCause
	}

	report, err := s.repo.Create(ctx, domain.Report{
		ID:        domain.NewID(),
		Type:      t,
		ItemID:    itemID,
		Reason:    reason,
		Reporter:  reporter,
		State:     domain.ReportOpen,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		return domain.Report{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return report, nil
}

func (s *ReportService) requireAdmin(ctx context.Context, actor string) error {
	ok, err := s.admins.IsPlatformAdmin(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientPermission
	}

	return nil
}

func (s *ReportService) ListOpen(ctx context.Context, actor string) ([]domain.Report, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	reports, err := s.repo.FindOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindOpen -> %w", err)
	}

	return reports, nil
}

// Get returns a report with its item resolved. An item that is gone resolves to nil.
func (s *ReportService) Get(ctx context.Context, actor string, id domain.ID) (ReportedItem, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return ReportedItem{}, err
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return ReportedItem{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	item, err := s.resolve(ctx, actor, report)
	if errors.Is(err, domain.ErrNotFound) {
		return ReportedItem{Report: report}, nil
	}
	if err != nil {
		return ReportedItem{}, err
	}

	return ReportedItem{Report: report, Item: item}, nil
}

func (s *ReportService) resolve(ctx context.Context, actor string, report domain.Report) (any, error) {
	if report.Type == domain.ReportProfile {
		return s.profiles.GetProfile(ctx, report.ItemID)
	}
	itemID, err := domain.ParseID(report.ItemID)
	if err != nil {
		return nil, err
	}

	switch report.Type {
	case domain.ReportPost:
		return s.posts.Get(ctx, actor, itemID)
	case domain.ReportComment:
		p, err := s.posts.GetByComment(ctx, actor, itemID)
		if err != nil {
			return nil, err
		}
		c, ok := p.Comment(itemID)
		if !ok {
			return nil, ErrCommentNotFound
		}
		return c, nil
	case domain.ReportPlan:
		return s.plans.Lookup(ctx, itemID)
	case domain.ReportGroup:
		return s.spaces.Get(ctx, actor, itemID)
	case domain.ReportChatroom:
		return s.rooms.Room(ctx, itemID)
	default:
		return nil, ErrUnknownReportType
	}
}

func (s *ReportService) Close(ctx context.Context, actor string, id domain.ID) error {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return err
	}
	if err := s.repo.Close(ctx, id); err != nil {
		return fmt.Errorf("s.repo.Close -> %w", err)
	}

	return nil
}

// DeleteItem removes the reported item through its owner and closes the report. Profiles are
// redacted instead of deleted.
func (s *ReportService) DeleteItem(ctx context.Context, actor string, id domain.ID) error {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return err
	}
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	err = s.deleteItem(ctx, actor, report)
	if errors.Is(err, domain.ErrNotFound) {
		zap.L().Info("reported item already gone", zap.String("report", id.Hex()), zap.String("type", string(report.Type)))
		err = nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.Close(ctx, id); err != nil {
		return fmt.Errorf("s.repo.Close -> %w", err)
	}

	return nil
}

func (s *ReportService) deleteItem(ctx context.Context, actor string, report domain.Report) error {
	if report.Type == domain.ReportProfile {
		return s.profiles.Redact(ctx, report.ItemID)
	}
	itemID, err := domain.ParseID(report.ItemID)
	if err != nil {
		return err
	}

	switch report.Type {
	case domain.ReportPost:
		return s.posts.Delete(ctx, actor, itemID)
	case domain.ReportComment:
		return s.posts.DeleteComment(ctx, actor, itemID)
	case domain.ReportPlan:
		return s.plans.Delete(ctx, itemID, actor)
	case domain.ReportGroup:
		return s.spaces.Delete(ctx, actor, itemID)
	case domain.ReportChatroom:
		return s.rooms.DeleteRoom(ctx, itemID)
	default:
		return ErrUnknownReportType
	}
}
