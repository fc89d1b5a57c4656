package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"marketplace_chat_service/internal/chat/domain"

	"gorm.io/gorm"
)

// ErrReportNotFound report id unknown
var ErrReportNotFound = errors.New("report not found")

// ReportRepository moderation report storage
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	FindByID(ctx context.Context, id string) (*domain.Report, error)
	// List newest first; limit <= 0 means no limit
	List(ctx context.Context, limit, offset int) ([]domain.Report, error)
}

type gormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository create report repository, migrating chat_reports
func NewGormReportRepository(db *gorm.DB) (ReportRepository, error) {
	if err := db.AutoMigrate(&domain.Report{}); err != nil {
		return nil, err
	}
	return &gormReportRepository{db: db}, nil
}

func (r *gormReportRepository) Create(ctx context.Context, report *domain.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *gormReportRepository) FindByID(ctx context.Context, id string) (*domain.Report, error) {
	var report domain.Report
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *gormReportRepository) List(ctx context.Context, limit, offset int) ([]domain.Report, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	reports := []domain.Report{}
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

type memoryReportRepository struct {
	mu      sync.RWMutex
	reports map[string]domain.Report
}

// NewMemoryReportRepository process-local ReportRepository
func NewMemoryReportRepository() ReportRepository {
	return &memoryReportRepository{reports: make(map[string]domain.Report)}
}

func (r *memoryReportRepository) Create(_ context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.ID]; ok {
		return errors.New("duplicate report id")
	}
	r.reports[report.ID] = *report
	return nil
}

func (r *memoryReportRepository) FindByID(_ context.Context, id string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return &report, nil
}

func (r *memoryReportRepository) List(_ context.Context, limit, offset int) ([]domain.Report, error) {
	r.mu.RLock()
	out := make([]domain.Report, 0, len(r.reports))
	for _, rep := range r.reports {
		out = append(out, rep)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(out) {
			return []domain.Report{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
