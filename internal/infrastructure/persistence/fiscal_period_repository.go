package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFiscalPeriodRepository implements ledger.FiscalPeriodRepository using GORM
type GormFiscalPeriodRepository struct {
	db *gorm.DB
}

func NewGormFiscalPeriodRepository(db *gorm.DB) *GormFiscalPeriodRepository {
	return &GormFiscalPeriodRepository{db: db}
}

func (r *GormFiscalPeriodRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.FiscalPeriod, error) {
	return r.findByID(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate takes a row lock so a close and a posting into the same
// period serialize.
func (r *GormFiscalPeriodRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.FiscalPeriod, error) {
	return r.findByID(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
}

func (r *GormFiscalPeriodRepository) findByID(db *gorm.DB, tenantID, id uuid.UUID) (*ledger.FiscalPeriod, error) {
	var model models.FiscalPeriodModel
	if err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindCovering locks the covering period's row for the rest of the
// transaction, so a concurrent close waits for the posting to commit.
func (r *GormFiscalPeriodRepository) FindCovering(ctx context.Context, tenantID uuid.UUID, date time.Time) (*ledger.FiscalPeriod, error) {
	day := ledger.DateOf(date)
	var model models.FiscalPeriodModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("tenant_id = ? AND period_start <= ? AND period_end >= ?", tenantID, day, day).
		Order("period_start").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrPeriodNotFound.Newf("no fiscal period covers %s", day.Format(time.DateOnly))
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormFiscalPeriodRepository) FindOverlapping(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]*ledger.FiscalPeriod, error) {
	return r.find(ctx, "tenant_id = ? AND period_start <= ? AND period_end >= ?",
		tenantID, ledger.DateOf(end), ledger.DateOf(start))
}

func (r *GormFiscalPeriodRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*ledger.FiscalPeriod, error) {
	return r.find(ctx, "tenant_id = ?", tenantID)
}

func (r *GormFiscalPeriodRepository) find(ctx context.Context, query string, args ...any) ([]*ledger.FiscalPeriod, error) {
	var rows []models.FiscalPeriodModel
	if err := r.db.WithContext(ctx).Where(query, args...).Order("period_start").Find(&rows).Error; err != nil {
		return nil, err
	}
	periods := make([]*ledger.FiscalPeriod, len(rows))
	for i := range rows {
		periods[i] = rows[i].ToDomain()
	}
	return periods, nil
}

// LockCalendar holds the tenant's calendar until commit, so the overlap
// check and the insert of OpenPeriod see no concurrent opener.
func (r *GormFiscalPeriodRepository) LockCalendar(ctx context.Context, tenantID uuid.UUID) error {
	return lockTenant(ctx, r.db, lockCalendar, tenantID)
}

// Create inserts the period. The exclusion constraint on the tenant's date
// ranges reports an overlap that slipped past the check as ErrPeriodOverlap.
func (r *GormFiscalPeriodRepository) Create(ctx context.Context, period *ledger.FiscalPeriod) error {
	err := r.db.WithContext(ctx).Create(models.FiscalPeriodModelFromDomain(period)).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrExclusionViolation {
		return ledger.ErrPeriodOverlap.Newf("period %s..%s overlaps an existing period",
			period.PeriodStart.Format(time.DateOnly), period.PeriodEnd.Format(time.DateOnly))
	}
	return err
}

func (r *GormFiscalPeriodRepository) Save(ctx context.Context, period *ledger.FiscalPeriod) error {
	result := r.db.WithContext(ctx).
		Model(&models.FiscalPeriodModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", period.TenantID, period.ID, period.Version-1).
		Updates(map[string]any{
			"name":       period.Name,
			"status":     string(period.Status),
			"closed_at":  period.ClosedAt,
			"closed_by":  period.ClosedBy,
			"version":    period.Version,
			"updated_at": period.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.Newf("fiscal period %s was modified by another transaction", period.Name)
	}
	return nil
}

var _ ledger.FiscalPeriodRepository = (*GormFiscalPeriodRepository)(nil)
