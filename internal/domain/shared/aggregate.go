package shared

import (
	"time"

	"github.com/google/uuid"
)

// AggregateRoot is an aggregate whose pending events a transaction scope
// flushes to the outbox before commit.
type AggregateRoot interface {
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// TenantAggregateRoot carries the identity, optimistic-lock version and
// pending events of an aggregate owned by one tenant. Every ledger query
// filters on TenantID; it is never inferred from ambient state.
type TenantAggregateRoot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time

	events []DomainEvent
}

func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	now := time.Now().UTC()
	return TenantAggregateRoot{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IncrementVersion marks a state change. Repositories update the row only
// where the stored version is Version-1.
func (a *TenantAggregateRoot) IncrementVersion() {
	a.Version++
	a.UpdatedAt = time.Now().UTC()
}

func (a *TenantAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

func (a *TenantAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.events
}

func (a *TenantAggregateRoot) ClearDomainEvents() {
	a.events = nil
}
