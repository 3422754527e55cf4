package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateModel holds the columns every ledger aggregate table shares.
// Tenant columns are declared on each model so they can lead its
// composite indexes.
type AggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *AggregateModel) fromRoot(r shared.TenantAggregateRoot) {
	m.ID = r.ID
	m.Version = r.Version
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}

// root rebuilds the domain root from the stored columns.
func (m *AggregateModel) root(tenantID uuid.UUID) shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		ID:        m.ID,
		TenantID:  tenantID,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
