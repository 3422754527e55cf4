package ledger

import (
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusClosed PeriodStatus = "closed"
)

// DateOf truncates t to a calendar date at UTC midnight. Entry dates and
// period bounds are compared as dates, never as instants.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FiscalPeriod is an accounting window that gates which dates accept postings.
// Both bounds are inclusive.
type FiscalPeriod struct {
	shared.TenantAggregateRoot
	Name        string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      PeriodStatus
	ClosedAt    *time.Time
	ClosedBy    string
}

// NewFiscalPeriod creates an open period covering [start, end].
func NewFiscalPeriod(tenantID uuid.UUID, name string, start, end time.Time) (*FiscalPeriod, error) {
	if tenantID == uuid.Nil {
		return nil, validationf("tenant id is required")
	}
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return nil, validationf("period end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	if strings.TrimSpace(name) == "" {
		name = start.Format("2006-01")
	}
	return &FiscalPeriod{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		PeriodStart:         start,
		PeriodEnd:           end,
		Status:              PeriodStatusOpen,
	}, nil
}

// Contains reports whether date falls inside the period.
func (p *FiscalPeriod) Contains(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(p.PeriodStart) && !d.After(p.PeriodEnd)
}

// Overlaps reports whether the two periods share at least one date.
func (p *FiscalPeriod) Overlaps(other *FiscalPeriod) bool {
	return !p.PeriodEnd.Before(other.PeriodStart) && !other.PeriodEnd.Before(p.PeriodStart)
}

func (p *FiscalPeriod) IsClosed() bool {
	return p.Status == PeriodStatusClosed
}

// EnsureOpen rejects postings dated inside a closed period.
func (p *FiscalPeriod) EnsureOpen() error {
	if p.IsClosed() {
		return ErrPeriodClosed.Newf("fiscal period %s (%s..%s) is closed",
			p.Name, p.PeriodStart.Format(time.DateOnly), p.PeriodEnd.Format(time.DateOnly))
	}
	return nil
}

// Close moves the period to closed. The transition is one-way.
func (p *FiscalPeriod) Close(actor string, at time.Time) error {
	if p.IsClosed() {
		return ErrPeriodAlreadyClosed.Newf("fiscal period %s is already closed", p.Name)
	}
	if strings.TrimSpace(actor) == "" {
		return validationf("closing principal is required")
	}
	at = at.UTC()
	p.Status = PeriodStatusClosed
	p.ClosedAt = &at
	p.ClosedBy = actor
	p.IncrementVersion()
	p.AddDomainEvent(NewFiscalPeriodClosedEvent(p))
	return nil
}
