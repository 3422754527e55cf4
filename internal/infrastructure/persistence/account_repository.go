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

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

func (r *GormAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Account, error) {
	return r.first(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

func (r *GormAccountRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ledger.Account, error) {
	return r.first(ctx, "tenant_id = ? AND code = ?", tenantID, code)
}

// LockChart holds the tenant's chart until commit, so tree moves are checked
// against a hierarchy no one else is rewriting.
func (r *GormAccountRepository) LockChart(ctx context.Context, tenantID uuid.UUID) error {
	return lockTenant(ctx, r.db, lockChart, tenantID)
}

func (r *GormAccountRepository) first(ctx context.Context, query string, args ...any) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant returns the tenant's accounts ordered by code
func (r *GormAccountRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*ledger.Account, error) {
	return r.find(ctx, "tenant_id = ?", tenantID)
}

func (r *GormAccountRepository) FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]*ledger.Account, error) {
	return r.find(ctx, "tenant_id = ? AND parent_id = ?", tenantID, parentID)
}

func (r *GormAccountRepository) find(ctx context.Context, query string, args ...any) ([]*ledger.Account, error) {
	var rows []models.AccountModel
	if err := r.db.WithContext(ctx).Where(query, args...).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}
	accounts := make([]*ledger.Account, len(rows))
	for i := range rows {
		accounts[i] = rows[i].ToDomain()
	}
	return accounts, nil
}

// CreateIfAbsent inserts with ON CONFLICT (tenant_id, code) DO NOTHING, so
// of two racing resolvers exactly one sees created == true.
func (r *GormAccountRepository) CreateIfAbsent(ctx context.Context, account *ledger.Account) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "code"}},
			DoNothing: true,
		}).
		Create(models.AccountModelFromDomain(account))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Save updates the account if nobody else changed it since it was loaded.
func (r *GormAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", account.TenantID, account.ID, account.Version-1).
		Updates(map[string]any{
			"name":       account.Name,
			"subtype":    account.Subtype,
			"parent_id":  account.ParentID,
			"status":     string(account.Status),
			"version":    account.Version,
			"updated_at": account.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.Newf("account %s was modified by another transaction", account.Code)
	}
	return nil
}

// HasLines reports whether any journal line references the account.
func (r *GormAccountRepository) HasLines(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.JournalEntryLineModel{}).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *GormAccountRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AccountModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ ledger.AccountRepository = (*GormAccountRepository)(nil)
