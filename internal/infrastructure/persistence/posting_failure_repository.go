package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPostingFailureRepository implements ledger.PostingFailureRepository using GORM
type GormPostingFailureRepository struct {
	db *gorm.DB
}

func NewGormPostingFailureRepository(db *gorm.DB) *GormPostingFailureRepository {
	return &GormPostingFailureRepository{db: db}
}

// Record keeps one open record per event. A repeated failure bumps its
// attempts and overwrites the last error.
func (r *GormPostingFailureRepository) Record(ctx context.Context, failure *ledger.PostingFailure) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PostingFailureModel
		err := tx.Where("tenant_id = ? AND event_id = ? AND resolved_at IS NULL", failure.TenantID, failure.EventID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(models.PostingFailureModelFromDomain(failure)).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]any{
			"attempts":       gorm.Expr("attempts + 1"),
			"error_code":     failure.ErrorCode,
			"error_message":  failure.ErrorMessage,
			"last_failed_at": failure.LastFailedAt,
		}).Error
	})
}

// FindUnresolved returns open records, most recent failure first.
func (r *GormPostingFailureRepository) FindUnresolved(ctx context.Context, tenantID uuid.UUID, limit int) ([]*ledger.PostingFailure, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.PostingFailureModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND resolved_at IS NULL", tenantID).
		Order("last_failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	failures := make([]*ledger.PostingFailure, len(rows))
	for i := range rows {
		failures[i] = rows[i].ToDomain()
	}
	return failures, nil
}

// MarkResolved closes the open record of an event, if any.
func (r *GormPostingFailureRepository) MarkResolved(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PostingFailureModel{}).
		Where("event_id = ? AND resolved_at IS NULL", eventID).
		Update("resolved_at", at).Error
}

var _ ledger.PostingFailureRepository = (*GormPostingFailureRepository)(nil)
