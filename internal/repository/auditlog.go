package repository

import (
	"context"
	"strings"
	"time"

	"marquee/internal/ledger"
	"marquee/internal/models"

	"gorm.io/gorm"
)

// IntegrityLogRepository persists consistency-check results. It satisfies
// ledger.AuditTrail so the engine can write findings without knowing about
// the database.
type IntegrityLogRepository interface {
	ledger.AuditTrail

	Recent(ctx context.Context, limit int) ([]models.IntegrityLog, error)
}

type integrityLogRepository struct {
	db *gorm.DB
}

// NewIntegrityLogRepository creates a new integrity log repository
func NewIntegrityLogRepository(db *gorm.DB) IntegrityLogRepository {
	return &integrityLogRepository{db: db}
}

func (r *integrityLogRepository) Record(ctx context.Context, at time.Time, checks []ledger.CheckResult) error {
	if len(checks) == 0 {
		return nil
	}
	rows := make([]models.IntegrityLog, 0, len(checks))
	for _, c := range checks {
		rows = append(rows, models.IntegrityLog{
			CheckTime:   at,
			CheckType:   c.CheckType,
			Status:      c.Status,
			IssuesFound: c.IssuesFound,
			AutoFixed:   c.IssuesFixed,
			Details:     strings.Join(c.Details, "; "),
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *integrityLogRepository) Recent(ctx context.Context, limit int) ([]models.IntegrityLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.IntegrityLog
	err := r.db.WithContext(ctx).
		Order("check_time DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// SubmissionLogRepository persists the per-submission audit rows written by
// the HTTP layer after each processed submission.
type SubmissionLogRepository interface {
	Create(ctx context.Context, entry *models.SubmissionLog) error
	Recent(ctx context.Context, limit int) ([]models.SubmissionLog, error)
	ByRequester(ctx context.Context, requesterID string, limit int) ([]models.SubmissionLog, error)
}

type submissionLogRepository struct {
	db *gorm.DB
}

// NewSubmissionLogRepository creates a new submission log repository
func NewSubmissionLogRepository(db *gorm.DB) SubmissionLogRepository {
	return &submissionLogRepository{db: db}
}

func (r *submissionLogRepository) Create(ctx context.Context, entry *models.SubmissionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *submissionLogRepository) Recent(ctx context.Context, limit int) ([]models.SubmissionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.SubmissionLog
	err := r.db.WithContext(ctx).
		Order("submitted_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *submissionLogRepository) ByRequester(ctx context.Context, requesterID string, limit int) ([]models.SubmissionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.SubmissionLog
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("submitted_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
