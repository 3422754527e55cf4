package persistence

import (
	"context"
	"errors"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormJournalEntryRepository implements ledger.JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

func (r *GormJournalEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	return r.first(r.db.WithContext(ctx), "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByIDForUpdate locks the header row; lines are only ever rewritten
// under that lock.
func (r *GormJournalEntryRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "tenant_id = ? AND id = ?", tenantID, id)
}

func (r *GormJournalEntryRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, referenceType, referenceID string) (*ledger.JournalEntry, error) {
	return r.first(r.db.WithContext(ctx), "tenant_id = ? AND reference_type = ? AND reference_id = ?", tenantID, referenceType, referenceID)
}

func (r *GormJournalEntryRepository) first(db *gorm.DB, query string, args ...any) (*ledger.JournalEntry, error) {
	var model models.JournalEntryModel
	if err := db.Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := r.db.WithContext(db.Statement.Context).
		Where("journal_entry_id = ?", model.ID).
		Order("line_no").
		Find(&model.Lines).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// referenceConflict targets only the partial unique index on the
// idempotency key. Entry number and primary key collisions still fail.
var referenceConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "tenant_id"}, {Name: "reference_type"}, {Name: "reference_id"}},
	TargetWhere: clause.Where{Exprs: []clause.Expression{
		clause.Expr{SQL: "reference_id <> ''"},
	}},
	DoNothing: true,
}

// Create inserts the header with ON CONFLICT DO NOTHING on the reference
// key and writes the lines only when the header landed. A header that lost
// the race on the reference key leaves nothing behind.
func (r *GormJournalEntryRepository) Create(ctx context.Context, entry *ledger.JournalEntry) error {
	model := models.JournalEntryModelFromDomain(entry)
	db := r.db.WithContext(ctx)
	result := db.
		Clauses(referenceConflict).
		Omit(clause.Associations).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrDuplicateReference.Newf("journal entry for %s/%s already exists", entry.ReferenceType, entry.ReferenceID)
	}
	if len(model.Lines) == 0 {
		return nil
	}
	return db.Create(&model.Lines).Error
}

func (r *GormJournalEntryRepository) Update(ctx context.Context, entry *ledger.JournalEntry) error {
	return r.updateHeader(r.db.WithContext(ctx), entry)
}

func (r *GormJournalEntryRepository) updateHeader(db *gorm.DB, entry *ledger.JournalEntry) error {
	result := db.
		Model(&models.JournalEntryModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", entry.TenantID, entry.ID, entry.Version-1).
		Updates(map[string]any{
			"status":           string(entry.Status),
			"is_reversed":      entry.IsReversed,
			"description":      entry.Description,
			"posted_at":        entry.PostedAt,
			"posted_by":        entry.PostedBy,
			"rejection_reason": entry.RejectionReason,
			"version":          entry.Version,
			"updated_at":       entry.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.Newf("journal entry %s was modified by another transaction", entry.EntryNumber)
	}
	return nil
}

// ReplaceLines bumps the header version and swaps the line set. Callers
// run it inside a transaction.
func (r *GormJournalEntryRepository) ReplaceLines(ctx context.Context, entry *ledger.JournalEntry) error {
	db := r.db.WithContext(ctx)
	if err := r.updateHeader(db, entry); err != nil {
		return err
	}
	if err := db.Where("journal_entry_id = ?", entry.ID).Delete(&models.JournalEntryLineModel{}).Error; err != nil {
		return err
	}
	lines := models.JournalEntryLineModelsFromDomain(entry)
	if len(lines) == 0 {
		return nil
	}
	return db.Create(&lines).Error
}

func (r *GormJournalEntryRepository) CountByReference(ctx context.Context, tenantID uuid.UUID, referenceType, referenceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Where("tenant_id = ? AND reference_type = ? AND reference_id = ?", tenantID, referenceType, referenceID).
		Count(&count).Error
	return count, err
}

var _ ledger.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
