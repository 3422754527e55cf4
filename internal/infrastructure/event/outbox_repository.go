package event

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Save persists one or more outbox entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEventModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxEventModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindPending retrieves pending entries, oldest first
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit))
}

// FindRetryable retrieves failed entries that are due for retry
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", shared.OutboxStatusFailed, before).
		Order("next_retry_at ASC").
		Limit(limit))
}

// interruptedError is recorded on entries whose delivery never reported back.
const interruptedError = "delivery interrupted before completion"

// ReclaimStale makes entries stuck in PROCESSING since before due for
// retry. The lost attempt counts against the retry budget, so an event that
// keeps killing its processor ends up DEAD instead of looping.
func (r *GormOutboxRepository) ReclaimStale(ctx context.Context, before time.Time) (int64, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEventModel{}).
		Where("status = ? AND updated_at <= ?", shared.OutboxStatusProcessing, before).
		Updates(map[string]any{
			"status": gorm.Expr("CASE WHEN retry_count + 1 >= max_retries THEN ? ELSE ? END",
				string(shared.OutboxStatusDead), string(shared.OutboxStatusFailed)),
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_error":    interruptedError,
			"next_retry_at": now,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}

func (r *GormOutboxRepository) find(db *gorm.DB) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEventModel
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// MarkProcessing claims entries with FOR UPDATE SKIP LOCKED, so two
// processors never deliver the same entry concurrently.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var entries []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entries, err = r.find(tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids, []shared.OutboxStatus{
				shared.OutboxStatusPending,
				shared.OutboxStatusFailed,
			}))
		if err != nil || len(entries) == 0 {
			return err
		}

		claimed := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			claimed[i] = e.ID
		}
		now := time.Now().UTC()
		if err := tx.Model(&models.OutboxEventModel{}).
			Where("id IN ?", claimed).
			Updates(map[string]any{
				"status":     shared.OutboxStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		for _, e := range entries {
			e.Status = shared.OutboxStatusProcessing
			e.UpdatedAt = now
		}
		return nil
	})
	return entries, err
}

// Update writes back the delivery state of an entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(models.OutboxEventModelFromDomain(entry)).Error
}

// DeleteOlderThan deletes sent entries processed before the given time
func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxEventModel{})
	return result.RowsAffected, result.Error
}

// FindDead retrieves dead letter entries with pagination, newest first
func (r *GormOutboxRepository) FindDead(ctx context.Context, q shared.DeadLetterQuery) ([]*shared.OutboxEntry, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("status = ?", string(shared.OutboxStatusDead))
		if q.TenantID != uuid.Nil {
			db = db.Where("tenant_id = ?", q.TenantID)
		}
		if q.EventType != "" {
			db = db.Where("event_type = ?", q.EventType)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEventModel{}).
		Scopes(scope).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	entries, err := r.find(r.db.WithContext(ctx).
		Scopes(scope).
		Order("updated_at DESC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize))
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindByID retrieves a single outbox entry by ID
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEventModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// CountByStatus returns count of entries for each status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status shared.OutboxStatus
		Count  int64
	}

	db := r.db.WithContext(ctx).Model(&models.OutboxEventModel{})
	if tenantID != uuid.Nil {
		db = db.Where("tenant_id = ?", tenantID)
	}
	var results []statusCount
	err := db.
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

// Ensure GormOutboxRepository implements OutboxRepository
var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
