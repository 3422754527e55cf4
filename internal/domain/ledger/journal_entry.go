package ledger

import (
	"math/big"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerScale is the number of fractional digits stored for every amount
// (decimal(18,4) columns). Balance checks compare integer units at this scale.
const LedgerScale int32 = 4

type EntryStatus string

const (
	EntryStatusDraft    EntryStatus = "draft"
	EntryStatusPending  EntryStatus = "pending"
	EntryStatusPosted   EntryStatus = "posted"
	EntryStatusRejected EntryStatus = "rejected"
	EntryStatusReversed EntryStatus = "reversed"
)

func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusDraft, EntryStatusPending, EntryStatusPosted, EntryStatusRejected, EntryStatusReversed:
		return true
	}
	return false
}

// CanPost is true for the states a posting may start from.
func (s EntryStatus) CanPost() bool {
	return s == EntryStatusDraft || s == EntryStatusPending
}

// IsImmutable is true once the entry has reached the books.
func (s EntryStatus) IsImmutable() bool {
	return s == EntryStatusPosted || s == EntryStatusReversed
}

type EntryType string

const (
	EntryTypeManual              EntryType = "manual"
	EntryTypePayroll             EntryType = "payroll"
	EntryTypeInventory           EntryType = "inventory"
	EntryTypeInventoryAdjustment EntryType = "inventory_adjustment"
	EntryTypeGoodsReceipt        EntryType = "goods_receipt"
	EntryTypeReversal            EntryType = "reversal"
)

// ReferenceTypeReversal keys a mirror entry to the entry it reverses, so the
// idempotency constraint also forbids two reversals of one source.
const ReferenceTypeReversal = "journal_entry_reversal"

// LineSpec is a requested journal line before it is attached to an entry.
type LineSpec struct {
	AccountID   uuid.UUID
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
}

// Debit builds a debit-side line spec.
func Debit(accountID uuid.UUID, amount decimal.Decimal, description string) LineSpec {
	return LineSpec{AccountID: accountID, Debit: amount, Description: description}
}

// Credit builds a credit-side line spec.
func Credit(accountID uuid.UUID, amount decimal.Decimal, description string) LineSpec {
	return LineSpec{AccountID: accountID, Credit: amount, Description: description}
}

// IsZero reports whether both sides are zero; such lines are never persisted.
func (l LineSpec) IsZero() bool {
	return l.Debit.IsZero() && l.Credit.IsZero()
}

// JournalEntryLine is a single debit or credit leg of an entry.
type JournalEntryLine struct {
	ID             uuid.UUID
	JournalEntryID uuid.UUID
	AccountID      uuid.UUID
	LineNo         int
	DebitAmount    decimal.Decimal
	CreditAmount   decimal.Decimal
	Description    string
}

func (l *JournalEntryLine) IsDebit() bool {
	return l.DebitAmount.IsPositive()
}

// JournalEntry is a dated, balanced set of lines.
type JournalEntry struct {
	shared.TenantAggregateRoot
	EntryNumber     string
	EntryType       EntryType
	ReferenceType   string
	ReferenceID     string
	EntryDate       time.Time
	FiscalPeriodID  uuid.UUID
	Status          EntryStatus
	IsReversed      bool
	ReversalOfID    *uuid.UUID
	Description     string
	PostedAt        *time.Time
	PostedBy        string
	RejectionReason string
	Lines           []JournalEntryLine
}

// EntryHeader carries the caller-provided header fields of a new entry.
type EntryHeader struct {
	EntryType     EntryType
	ReferenceType string
	ReferenceID   string
	EntryDate     time.Time
	Description   string
	CreatedBy     string
}

// HasReference reports whether the header carries an idempotency key.
func (h EntryHeader) HasReference() bool {
	return h.ReferenceType != "" && h.ReferenceID != ""
}

// NewJournalEntry creates a draft entry inside period. Zero lines are
// dropped; balance is not required until posting.
func NewJournalEntry(tenantID uuid.UUID, entryNumber string, header EntryHeader, period *FiscalPeriod, specs []LineSpec) (*JournalEntry, error) {
	if tenantID == uuid.Nil {
		return nil, validationf("tenant id is required")
	}
	if strings.TrimSpace(entryNumber) == "" {
		return nil, validationf("entry number cannot be empty")
	}
	if header.EntryDate.IsZero() {
		return nil, validationf("entry date is required")
	}
	if (header.ReferenceType == "") != (header.ReferenceID == "") {
		return nil, validationf("reference type and reference id must be provided together")
	}
	if header.EntryType == "" {
		header.EntryType = EntryTypeManual
	}
	if period == nil || period.TenantID != tenantID {
		return nil, ErrPeriodNotFound.Newf("no fiscal period covers %s", header.EntryDate.Format(time.DateOnly))
	}
	if !period.Contains(header.EntryDate) {
		return nil, ErrPeriodNotFound.Newf("fiscal period %s does not cover %s", period.Name, header.EntryDate.Format(time.DateOnly))
	}
	if err := period.EnsureOpen(); err != nil {
		return nil, err
	}

	je := &JournalEntry{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EntryNumber:         entryNumber,
		EntryType:           header.EntryType,
		ReferenceType:       header.ReferenceType,
		ReferenceID:         header.ReferenceID,
		EntryDate:           DateOf(header.EntryDate),
		FiscalPeriodID:      period.ID,
		Status:              EntryStatusDraft,
		Description:         header.Description,
	}
	if err := je.setLines(specs); err != nil {
		return nil, err
	}
	return je, nil
}

func (je *JournalEntry) setLines(specs []LineSpec) error {
	lines := make([]JournalEntryLine, 0, len(specs))
	for i, spec := range specs {
		if spec.AccountID == uuid.Nil {
			return validationf("line %d: account is required", i+1)
		}
		if spec.Debit.IsNegative() || spec.Credit.IsNegative() {
			return validationf("line %d: amounts cannot be negative", i+1)
		}
		if !spec.Debit.IsZero() && !spec.Credit.IsZero() {
			return validationf("line %d: a line cannot carry both a debit and a credit", i+1)
		}
		if !fitsScale(spec.Debit) || !fitsScale(spec.Credit) {
			return validationf("line %d: amount exceeds %d decimal places", i+1, LedgerScale)
		}
		if spec.IsZero() {
			continue
		}
		lines = append(lines, JournalEntryLine{
			ID:             uuid.New(),
			JournalEntryID: je.ID,
			AccountID:      spec.AccountID,
			LineNo:         len(lines) + 1,
			DebitAmount:    spec.Debit,
			CreditAmount:   spec.Credit,
			Description:    spec.Description,
		})
	}
	je.Lines = lines
	return nil
}

func fitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(LedgerScale))
}

// ReplaceLines swaps the lines of an unposted entry.
func (je *JournalEntry) ReplaceLines(specs []LineSpec) error {
	if je.Status != EntryStatusDraft {
		return shared.ErrInvalidState.Newf("lines of entry %s can only change while draft (status %s)", je.EntryNumber, je.Status)
	}
	if err := je.setLines(specs); err != nil {
		return err
	}
	je.IncrementVersion()
	return nil
}

// TotalDebit sums the debit side.
func (je *JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range je.Lines {
		total = total.Add(l.DebitAmount)
	}
	return total
}

// TotalCredit sums the credit side.
func (je *JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range je.Lines {
		total = total.Add(l.CreditAmount)
	}
	return total
}

// ValidateBalance reports whether debits equal credits exactly, compared
// as integer units at LedgerScale.
func ValidateBalance(lines []JournalEntryLine) bool {
	debit, credit := new(big.Int), new(big.Int)
	for _, l := range lines {
		debit.Add(debit, minorUnits(l.DebitAmount))
		credit.Add(credit, minorUnits(l.CreditAmount))
	}
	return debit.Cmp(credit) == 0
}

// ValidateBalance is the entry-level form of the package function.
func (je *JournalEntry) ValidateBalance() bool {
	return ValidateBalance(je.Lines)
}

func minorUnits(d decimal.Decimal) *big.Int {
	return d.Shift(LedgerScale).Round(0).BigInt()
}

// Submit moves a draft entry to pending.
func (je *JournalEntry) Submit() error {
	if je.Status != EntryStatusDraft {
		return shared.ErrInvalidState.Newf("cannot submit entry %s in %s status", je.EntryNumber, je.Status)
	}
	je.Status = EntryStatusPending
	je.IncrementVersion()
	return nil
}

// Post finalizes the entry. period must be the fiscal period covering the
// entry date as currently stored; a closed period rejects the posting.
func (je *JournalEntry) Post(period *FiscalPeriod, actor string, at time.Time) error {
	if !je.Status.CanPost() {
		return shared.ErrInvalidState.Newf("cannot post entry %s in %s status", je.EntryNumber, je.Status)
	}
	if period == nil || !period.Contains(je.EntryDate) {
		return ErrPeriodNotFound.Newf("no fiscal period covers %s", je.EntryDate.Format(time.DateOnly))
	}
	if err := period.EnsureOpen(); err != nil {
		return err
	}
	if len(je.Lines) == 0 {
		return validationf("entry %s has no lines", je.EntryNumber)
	}
	if !je.ValidateBalance() {
		return ErrUnbalancedEntry.Newf("entry %s is unbalanced: debits %s, credits %s",
			je.EntryNumber, je.TotalDebit().StringFixed(LedgerScale), je.TotalCredit().StringFixed(LedgerScale))
	}
	at = at.UTC()
	je.FiscalPeriodID = period.ID
	je.Status = EntryStatusPosted
	je.PostedAt = &at
	je.PostedBy = actor
	je.IncrementVersion()
	je.AddDomainEvent(NewJournalEntryPostedEvent(je))
	return nil
}

// Reject moves a draft or pending entry to rejected.
func (je *JournalEntry) Reject(reason string) error {
	if !je.Status.CanPost() {
		return shared.ErrInvalidState.Newf("cannot reject entry %s in %s status", je.EntryNumber, je.Status)
	}
	if strings.TrimSpace(reason) == "" {
		return validationf("rejection reason is required")
	}
	je.Status = EntryStatusRejected
	je.RejectionReason = reason
	je.IncrementVersion()
	return nil
}

// Reopen returns a rejected entry to draft for resubmission.
func (je *JournalEntry) Reopen() error {
	if je.Status != EntryStatusRejected {
		return shared.ErrInvalidState.Newf("cannot reopen entry %s in %s status", je.EntryNumber, je.Status)
	}
	je.Status = EntryStatusDraft
	je.RejectionReason = ""
	je.IncrementVersion()
	return nil
}

// EnsureReversible checks that the entry may be reversed. Mirror entries
// are not reversible themselves; the source must be re-posted instead.
func (je *JournalEntry) EnsureReversible() error {
	if je.IsReversed || je.Status == EntryStatusReversed {
		return ErrEntryAlreadyReversed.Newf("entry %s has already been reversed", je.EntryNumber)
	}
	if je.ReversalOfID != nil {
		return ErrEntryAlreadyReversed.Newf("entry %s is itself a reversal", je.EntryNumber)
	}
	if je.Status != EntryStatusPosted {
		return ErrEntryNotPosted.Newf("entry %s is %s, not posted", je.EntryNumber, je.Status)
	}
	return nil
}

// BuildReversal creates the draft mirror of a posted entry: same accounts,
// debit and credit swapped, dated reversalDate.
func (je *JournalEntry) BuildReversal(entryNumber string, reversalDate time.Time, period *FiscalPeriod, actor string) (*JournalEntry, error) {
	if err := je.EnsureReversible(); err != nil {
		return nil, err
	}
	specs := make([]LineSpec, 0, len(je.Lines))
	for _, l := range je.Lines {
		specs = append(specs, LineSpec{
			AccountID:   l.AccountID,
			Debit:       l.CreditAmount,
			Credit:      l.DebitAmount,
			Description: l.Description,
		})
	}
	header := EntryHeader{
		EntryType:     EntryTypeReversal,
		ReferenceType: ReferenceTypeReversal,
		ReferenceID:   je.ID.String(),
		EntryDate:     reversalDate,
		Description:   "Reversal of " + je.EntryNumber,
		CreatedBy:     actor,
	}
	mirror, err := NewJournalEntry(je.TenantID, entryNumber, header, period, specs)
	if err != nil {
		return nil, err
	}
	sourceID := je.ID
	mirror.ReversalOfID = &sourceID
	return mirror, nil
}

// MarkReversed links the source to its posted mirror.
func (je *JournalEntry) MarkReversed(mirror *JournalEntry) error {
	if err := je.EnsureReversible(); err != nil {
		return err
	}
	je.IsReversed = true
	je.Status = EntryStatusReversed
	je.IncrementVersion()
	je.AddDomainEvent(NewJournalEntryReversedEvent(je, mirror))
	return nil
}
