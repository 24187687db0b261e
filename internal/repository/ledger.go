// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"marquee/internal/ledger"
	"marquee/internal/models"
	"marquee/internal/observability"

	"gorm.io/gorm"
)

// LedgerRepository is the durable record store behind the allocation engine.
// It adds nothing beyond the store contract; policy lives in the engine.
type LedgerRepository interface {
	ledger.RecordStore

	// ActiveByRequester returns the requester's ACTIVE records, oldest first.
	ActiveByRequester(ctx context.Context, requesterID string) ([]models.RequestRecord, error)

	// ActiveCountsByPoster returns how many ACTIVE records each poster holds.
	ActiveCountsByPoster(ctx context.Context) (map[string]int, error)
}

type ledgerRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db, metrics: observability.NewDatabaseMetrics(db)}
}

func (r *ledgerRepository) Append(ctx context.Context, rec *models.RequestRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *ledgerRepository) Scan(ctx context.Context) ([]models.RequestRecord, error) {
	// Full-table read; the auditor is the only caller.
	defer r.metrics.TrackQuery("scan", "request_records")()

	var records []models.RequestRecord
	err := r.db.WithContext(ctx).Find(&records).Error
	return records, err
}

func (r *ledgerRepository) FindActive(ctx context.Context, requesterID, posterID string) (*models.RequestRecord, error) {
	var rec models.RequestRecord
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND poster_id = ? AND status = ?", requesterID, posterID, models.RequestStatusActive).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ledgerRepository) History(ctx context.Context, requesterID, posterID string) ([]models.RequestRecord, error) {
	var records []models.RequestRecord
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND poster_id = ?", requesterID, posterID).
		Find(&records).Error
	return records, err
}

func (r *ledgerRepository) CountActive(ctx context.Context, requesterID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RequestRecord{}).
		Where("requester_id = ? AND status = ?", requesterID, models.RequestStatusActive).
		Count(&count).Error
	return int(count), err
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, requesterID, posterID string, status models.RequestStatus, reason models.ArchiveReason, at time.Time) (ledger.UpdateOutcome, error) {
	// Locate first, then transition by primary key, so exactly one record
	// moves even if the ledger is already in a duplicate-active state.
	rec, err := r.FindActive(ctx, requesterID, posterID)
	if err != nil {
		return ledger.UpdateNotFound, err
	}
	if rec == nil {
		return ledger.UpdateNotFound, nil
	}
	if err := r.SetStatusByRecordID(ctx, rec.ID, status, reason, at); err != nil {
		return ledger.UpdateNotFound, err
	}
	return ledger.UpdateApplied, nil
}

func (r *ledgerRepository) SetStatusByRecordID(ctx context.Context, id uint, status models.RequestStatus, reason models.ArchiveReason, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.RequestRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            status,
			"archive_reason":    reason,
			"status_changed_at": at,
		}).Error
}

func (r *ledgerRepository) DeleteByRecordID(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.RequestRecord{}, id).Error
}

func (r *ledgerRepository) ActivePosterIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.RequestRecord{}).
		Distinct("poster_id").
		Where("status = ?", models.RequestStatusActive).
		Pluck("poster_id", &ids).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *ledgerRepository) ActiveCountsByPoster(ctx context.Context) (map[string]int, error) {
	defer r.metrics.TrackQuery("aggregate", "request_records")()

	type posterCount struct {
		PosterID string
		Count    int
	}
	var rows []posterCount
	err := r.db.WithContext(ctx).
		Model(&models.RequestRecord{}).
		Select("poster_id, count(*) as count").
		Where("status = ?", models.RequestStatusActive).
		Group("poster_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.PosterID] = row.Count
	}
	return out, nil
}

func (r *ledgerRepository) ActiveByRequester(ctx context.Context, requesterID string) ([]models.RequestRecord, error) {
	var records []models.RequestRecord
	err := r.db.WithContext(ctx).
		Where("requester_id = ? AND status = ?", requesterID, models.RequestStatusActive).
		Order("requested_at ASC, id ASC").
		Find(&records).Error
	return records, err
}
