package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeFiscalPeriodClosed   = "FiscalPeriodClosed"
	EventTypeJournalEntryPosted   = "JournalEntryPosted"
	EventTypeJournalEntryReversed = "JournalEntryReversed"

	AggregateTypeFiscalPeriod = "FiscalPeriod"
	AggregateTypeJournalEntry = "JournalEntry"
)

// FiscalPeriodClosedEvent notifies external consumers that a period no
// longer accepts postings.
type FiscalPeriodClosedEvent struct {
	shared.BaseDomainEvent
	PeriodID    uuid.UUID `json:"period_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	ClosedBy    string    `json:"closed_by"`
	ClosedAt    time.Time `json:"closed_at"`
}

func NewFiscalPeriodClosedEvent(p *FiscalPeriod) *FiscalPeriodClosedEvent {
	closedAt := time.Now().UTC()
	if p.ClosedAt != nil {
		closedAt = *p.ClosedAt
	}
	return &FiscalPeriodClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEventAt(EventTypeFiscalPeriodClosed, AggregateTypeFiscalPeriod, p.ID, p.TenantID, closedAt),
		PeriodID:        p.ID,
		PeriodStart:     p.PeriodStart,
		PeriodEnd:       p.PeriodEnd,
		ClosedBy:        p.ClosedBy,
		ClosedAt:        closedAt,
	}
}

type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryID       uuid.UUID       `json:"entry_id"`
	EntryNumber   string          `json:"entry_number"`
	EntryType     EntryType       `json:"entry_type"`
	ReferenceType string          `json:"reference_type,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	EntryDate     time.Time       `json:"entry_date"`
	Total         decimal.Decimal `json:"total"`
	LineCount     int             `json:"line_count"`
}

func NewJournalEntryPostedEvent(je *JournalEntry) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, AggregateTypeJournalEntry, je.ID, je.TenantID),
		EntryID:         je.ID,
		EntryNumber:     je.EntryNumber,
		EntryType:       je.EntryType,
		ReferenceType:   je.ReferenceType,
		ReferenceID:     je.ReferenceID,
		EntryDate:       je.EntryDate,
		Total:           je.TotalDebit(),
		LineCount:       len(je.Lines),
	}
}

type JournalEntryReversedEvent struct {
	shared.BaseDomainEvent
	EntryID         uuid.UUID `json:"entry_id"`
	EntryNumber     string    `json:"entry_number"`
	ReversalEntryID uuid.UUID `json:"reversal_entry_id"`
	ReversalNumber  string    `json:"reversal_number"`
	ReversalDate    time.Time `json:"reversal_date"`
}

func NewJournalEntryReversedEvent(source, mirror *JournalEntry) *JournalEntryReversedEvent {
	return &JournalEntryReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryReversed, AggregateTypeJournalEntry, source.ID, source.TenantID),
		EntryID:         source.ID,
		EntryNumber:     source.EntryNumber,
		ReversalEntryID: mirror.ID,
		ReversalNumber:  mirror.EntryNumber,
		ReversalDate:    mirror.EntryDate,
	}
}
