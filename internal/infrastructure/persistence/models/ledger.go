package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountModel is a row of the chart of accounts.
type AccountModel struct {
	AggregateModel
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_accounts_tenant_code,priority:1"`
	Code          string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_accounts_tenant_code,priority:2"`
	Name          string     `gorm:"type:varchar(200);not null"`
	Type          string     `gorm:"type:varchar(20);not null"`
	Subtype       string     `gorm:"type:varchar(50)"`
	NormalBalance string     `gorm:"type:varchar(10);not null"`
	ParentID      *uuid.UUID `gorm:"type:uuid;index"`
	IsSystem      bool       `gorm:"not null;default:false"`
	Status        string     `gorm:"type:varchar(20);not null"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToDomain() *ledger.Account {
	a := &ledger.Account{
		Code:          m.Code,
		Name:          m.Name,
		Type:          ledger.AccountType(m.Type),
		Subtype:       m.Subtype,
		NormalBalance: ledger.NormalBalance(m.NormalBalance),
		ParentID:      m.ParentID,
		IsSystem:      m.IsSystem,
		Status:        ledger.AccountStatus(m.Status),
	}
	a.TenantAggregateRoot = m.root(m.TenantID)
	return a
}

func (m *AccountModel) FromDomain(a *ledger.Account) {
	m.fromRoot(a.TenantAggregateRoot)
	m.TenantID = a.TenantID
	m.Code = a.Code
	m.Name = a.Name
	m.Type = string(a.Type)
	m.Subtype = a.Subtype
	m.NormalBalance = string(a.NormalBalance)
	m.ParentID = a.ParentID
	m.IsSystem = a.IsSystem
	m.Status = string(a.Status)
}

func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// FiscalPeriodModel stores a period's inclusive date range.
type FiscalPeriodModel struct {
	AggregateModel
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index:idx_fiscal_periods_range,priority:1"`
	Name        string    `gorm:"type:varchar(50);not null"`
	PeriodStart time.Time `gorm:"type:date;not null;index:idx_fiscal_periods_range,priority:2"`
	PeriodEnd   time.Time `gorm:"type:date;not null;index:idx_fiscal_periods_range,priority:3"`
	Status      string    `gorm:"type:varchar(20);not null"`
	ClosedAt    *time.Time
	ClosedBy    string `gorm:"type:varchar(100)"`
}

func (FiscalPeriodModel) TableName() string {
	return "fiscal_periods"
}

func (m *FiscalPeriodModel) ToDomain() *ledger.FiscalPeriod {
	p := &ledger.FiscalPeriod{
		Name:        m.Name,
		PeriodStart: ledger.DateOf(m.PeriodStart),
		PeriodEnd:   ledger.DateOf(m.PeriodEnd),
		Status:      ledger.PeriodStatus(m.Status),
		ClosedAt:    m.ClosedAt,
		ClosedBy:    m.ClosedBy,
	}
	p.TenantAggregateRoot = m.root(m.TenantID)
	return p
}

func (m *FiscalPeriodModel) FromDomain(p *ledger.FiscalPeriod) {
	m.fromRoot(p.TenantAggregateRoot)
	m.TenantID = p.TenantID
	m.Name = p.Name
	m.PeriodStart = p.PeriodStart
	m.PeriodEnd = p.PeriodEnd
	m.Status = string(p.Status)
	m.ClosedAt = p.ClosedAt
	m.ClosedBy = p.ClosedBy
}

func FiscalPeriodModelFromDomain(p *ledger.FiscalPeriod) *FiscalPeriodModel {
	m := &FiscalPeriodModel{}
	m.FromDomain(p)
	return m
}

// JournalEntryModel is an entry header. The idempotency key
// (tenant_id, reference_type, reference_id) is unique when present.
type JournalEntryModel struct {
	AggregateModel
	TenantID        uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_journal_entries_number,priority:1;uniqueIndex:idx_journal_entries_reference,priority:1,where:reference_id <> ''"`
	EntryNumber     string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_journal_entries_number,priority:2"`
	EntryType       string     `gorm:"type:varchar(30);not null"`
	ReferenceType   string     `gorm:"type:varchar(50);not null;default:'';uniqueIndex:idx_journal_entries_reference,priority:2"`
	ReferenceID     string     `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_journal_entries_reference,priority:3"`
	EntryDate       time.Time  `gorm:"type:date;not null"`
	FiscalPeriodID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status          string     `gorm:"type:varchar(20);not null"`
	IsReversed      bool       `gorm:"not null;default:false"`
	ReversalOfID    *uuid.UUID `gorm:"type:uuid;index"`
	Description     string     `gorm:"type:text"`
	PostedAt        *time.Time
	PostedBy        string                  `gorm:"type:varchar(100)"`
	RejectionReason string                  `gorm:"type:text"`
	Lines           []JournalEntryLineModel `gorm:"foreignKey:JournalEntryID;constraint:OnDelete:CASCADE"`
}

func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

func (m *JournalEntryModel) ToDomain() *ledger.JournalEntry {
	e := &ledger.JournalEntry{
		EntryNumber:     m.EntryNumber,
		EntryType:       ledger.EntryType(m.EntryType),
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		EntryDate:       ledger.DateOf(m.EntryDate),
		FiscalPeriodID:  m.FiscalPeriodID,
		Status:          ledger.EntryStatus(m.Status),
		IsReversed:      m.IsReversed,
		ReversalOfID:    m.ReversalOfID,
		Description:     m.Description,
		PostedAt:        m.PostedAt,
		PostedBy:        m.PostedBy,
		RejectionReason: m.RejectionReason,
		Lines:           make([]ledger.JournalEntryLine, len(m.Lines)),
	}
	e.TenantAggregateRoot = m.root(m.TenantID)
	for i := range m.Lines {
		e.Lines[i] = m.Lines[i].ToDomain()
	}
	return e
}

func (m *JournalEntryModel) FromDomain(e *ledger.JournalEntry) {
	m.fromRoot(e.TenantAggregateRoot)
	m.TenantID = e.TenantID
	m.EntryNumber = e.EntryNumber
	m.EntryType = string(e.EntryType)
	m.ReferenceType = e.ReferenceType
	m.ReferenceID = e.ReferenceID
	m.EntryDate = e.EntryDate
	m.FiscalPeriodID = e.FiscalPeriodID
	m.Status = string(e.Status)
	m.IsReversed = e.IsReversed
	m.ReversalOfID = e.ReversalOfID
	m.Description = e.Description
	m.PostedAt = e.PostedAt
	m.PostedBy = e.PostedBy
	m.RejectionReason = e.RejectionReason
	m.Lines = JournalEntryLineModelsFromDomain(e)
}

func JournalEntryModelFromDomain(e *ledger.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{}
	m.FromDomain(e)
	return m
}

// JournalEntryLineModel is one leg. Exactly one of the amounts is non-zero.
type JournalEntryLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_journal_lines_account,priority:1"`
	JournalEntryID uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_journal_lines_account,priority:2"`
	LineNo         int             `gorm:"not null"`
	DebitAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreditAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Description    string          `gorm:"type:text"`
}

func (JournalEntryLineModel) TableName() string {
	return "journal_entry_lines"
}

func (m *JournalEntryLineModel) ToDomain() ledger.JournalEntryLine {
	return ledger.JournalEntryLine{
		ID:             m.ID,
		JournalEntryID: m.JournalEntryID,
		AccountID:      m.AccountID,
		LineNo:         m.LineNo,
		DebitAmount:    m.DebitAmount,
		CreditAmount:   m.CreditAmount,
		Description:    m.Description,
	}
}

// JournalEntryLineModelsFromDomain maps the entry's lines, stamping the
// tenant so line queries never need a join to the header.
func JournalEntryLineModelsFromDomain(e *ledger.JournalEntry) []JournalEntryLineModel {
	lines := make([]JournalEntryLineModel, len(e.Lines))
	for i, l := range e.Lines {
		lines[i] = JournalEntryLineModel{
			ID:             l.ID,
			TenantID:       e.TenantID,
			JournalEntryID: e.ID,
			AccountID:      l.AccountID,
			LineNo:         l.LineNo,
			DebitAmount:    l.DebitAmount,
			CreditAmount:   l.CreditAmount,
			Description:    l.Description,
		}
	}
	return lines
}

// PostingFailureModel is a failure-hook record.
type PostingFailureModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_posting_failures_unresolved,priority:1"`
	EventID       uuid.UUID `gorm:"type:uuid;not null;index"`
	EventType     string    `gorm:"type:varchar(100);not null"`
	ReferenceType string    `gorm:"type:varchar(50)"`
	ReferenceID   string    `gorm:"type:varchar(100)"`
	ErrorCode     string    `gorm:"type:varchar(50);not null"`
	ErrorMessage  string    `gorm:"type:text"`
	Attempts      int       `gorm:"not null;default:1"`
	FirstFailedAt time.Time `gorm:"not null"`
	LastFailedAt  time.Time `gorm:"not null;index:idx_posting_failures_unresolved,priority:2"`
	ResolvedAt    *time.Time
}

func (PostingFailureModel) TableName() string {
	return "posting_failures"
}

func (m *PostingFailureModel) ToDomain() *ledger.PostingFailure {
	return &ledger.PostingFailure{
		ID:            m.ID,
		TenantID:      m.TenantID,
		EventID:       m.EventID,
		EventType:     m.EventType,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		ErrorCode:     m.ErrorCode,
		ErrorMessage:  m.ErrorMessage,
		Attempts:      m.Attempts,
		FirstFailedAt: m.FirstFailedAt,
		LastFailedAt:  m.LastFailedAt,
		ResolvedAt:    m.ResolvedAt,
	}
}

func PostingFailureModelFromDomain(f *ledger.PostingFailure) *PostingFailureModel {
	return &PostingFailureModel{
		ID:            f.ID,
		TenantID:      f.TenantID,
		EventID:       f.EventID,
		EventType:     f.EventType,
		ReferenceType: f.ReferenceType,
		ReferenceID:   f.ReferenceID,
		ErrorCode:     f.ErrorCode,
		ErrorMessage:  f.ErrorMessage,
		Attempts:      f.Attempts,
		FirstFailedAt: f.FirstFailedAt,
		LastFailedAt:  f.LastFailedAt,
		ResolvedAt:    f.ResolvedAt,
	}
}

// LedgerModels lists every model for AutoMigrate in tests.
func LedgerModels() []any {
	return []any{
		&AccountModel{},
		&FiscalPeriodModel{},
		&JournalEntryModel{},
		&JournalEntryLineModel{},
		&PostingFailureModel{},
		&OutboxEventModel{},
	}
}
