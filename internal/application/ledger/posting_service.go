package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostingService creates, posts and reverses journal entries. Every
// operation runs in exactly one transaction obtained from the scope.
type PostingService struct {
	scope   TransactionScope
	numbers EntryNumberGenerator
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time
}

type PostingServiceOption func(*PostingService)

func WithEntryNumbers(g EntryNumberGenerator) PostingServiceOption {
	return func(s *PostingService) { s.numbers = g }
}

func WithMetrics(m Metrics) PostingServiceOption {
	return func(s *PostingService) { s.metrics = m }
}

// WithClock overrides the time source used for posted_at stamps.
func WithClock(now func() time.Time) PostingServiceOption {
	return func(s *PostingService) { s.now = now }
}

func NewPostingService(scope TransactionScope, logger *zap.Logger, opts ...PostingServiceOption) *PostingService {
	s := &PostingService{
		scope:   scope,
		numbers: NewULIDEntryNumbers("JE"),
		metrics: NoopMetrics(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEntry persists a draft entry. When the header carries a reference
// that already has an entry, the existing entry is returned unchanged.
func (s *PostingService) CreateEntry(ctx context.Context, tenantID uuid.UUID, header ledger.EntryHeader, lines []ledger.LineSpec) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "create_entry")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrReferenceType, header.ReferenceType,
		telemetry.SpanAttrReferenceID, header.ReferenceID,
	)

	start := s.now()
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, _, err = s.create(ctx, repos, tenantID, header, lines, false)
		return err
	})
	s.metrics.ObserveOperation(ctx, "create_entry", time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return entry, nil
}

// CreateAndPost creates an entry directly in posted state. No draft is ever
// visible outside the transaction.
func (s *PostingService) CreateAndPost(ctx context.Context, tenantID uuid.UUID, header ledger.EntryHeader, lines []ledger.LineSpec) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "create_and_post")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrReferenceType, header.ReferenceType,
		telemetry.SpanAttrReferenceID, header.ReferenceID,
	)

	start := s.now()
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, _, err = s.CreateAndPostWith(ctx, repos, tenantID, header, lines)
		return err
	})
	s.metrics.ObserveOperation(ctx, "create_and_post", time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return entry, nil
}

// CreateAndPostWith is CreateAndPost inside a transaction owned by the
// caller. created is false when an entry already existed for the reference.
func (s *PostingService) CreateAndPostWith(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, header ledger.EntryHeader, lines []ledger.LineSpec) (*ledger.JournalEntry, bool, error) {
	return s.create(ctx, repos, tenantID, header, lines, true)
}

func (s *PostingService) create(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, header ledger.EntryHeader, lines []ledger.LineSpec, post bool) (*ledger.JournalEntry, bool, error) {
	if header.HasReference() {
		existing, err := s.findByReference(ctx, repos, tenantID, header)
		if err != nil || existing != nil {
			return existing, false, err
		}
	}

	period, err := repos.PeriodRepo().FindCovering(ctx, tenantID, header.EntryDate)
	if err != nil {
		return nil, false, err
	}
	entry, err := ledger.NewJournalEntry(tenantID, s.numbers.Next(header.EntryDate), header, period, lines)
	if err != nil {
		return nil, false, err
	}
	if post {
		if err := entry.Post(period, header.CreatedBy, s.now()); err != nil {
			return nil, false, err
		}
	}

	if err := repos.EntryRepo().Create(ctx, entry); err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			s.logger.Info("entry created concurrently for reference, returning existing",
				zap.String("tenant_id", tenantID.String()),
				zap.String("reference_type", header.ReferenceType),
				zap.String("reference_id", header.ReferenceID),
			)
			existing, ferr := s.findByReference(ctx, repos, tenantID, header)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing == nil {
				return nil, false, fmt.Errorf("entry for %s/%s vanished after conflict: %w", header.ReferenceType, header.ReferenceID, err)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to save journal entry: %w", err)
	}
	if err := recordPending(ctx, repos.Events(), entry); err != nil {
		return nil, false, fmt.Errorf("failed to record entry events: %w", err)
	}

	if post {
		s.metrics.EntryPosted(ctx, tenantID, string(entry.EntryType), len(entry.Lines))
	}
	s.logger.Info("journal entry created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("entry_number", entry.EntryNumber),
		zap.String("status", string(entry.Status)),
		zap.String("reference_type", entry.ReferenceType),
		zap.String("reference_id", entry.ReferenceID),
		zap.Int("lines", len(entry.Lines)),
	)
	return entry, true, nil
}

// findByReference returns nil, nil when no entry exists for the reference.
func (s *PostingService) findByReference(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, header ledger.EntryHeader) (*ledger.JournalEntry, error) {
	existing, err := repos.EntryRepo().FindByReference(ctx, tenantID, header.ReferenceType, header.ReferenceID)
	if err == nil {
		return existing, nil
	}
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to check existing entry: %w", err)
}

// PostEntry posts a draft or pending entry after re-checking the period
// gate and the balance.
func (s *PostingService) PostEntry(ctx context.Context, tenantID, entryID uuid.UUID, postedBy string) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "post_entry")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), telemetry.SpanAttrEntryID, entryID.String())

	start := s.now()
	var entry *ledger.JournalEntry
	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationPostEntry, ""), func(c context.Context) {
		err = s.scope.Execute(c, func(repos TransactionalRepositories) error {
			e, err := repos.EntryRepo().FindByIDForUpdate(c, tenantID, entryID)
			if err != nil {
				return err
			}
			period, err := repos.PeriodRepo().FindCovering(c, tenantID, e.EntryDate)
			if err != nil {
				return err
			}
			if err := e.Post(period, postedBy, s.now()); err != nil {
				return err
			}
			if err := repos.EntryRepo().Update(c, e); err != nil {
				return fmt.Errorf("failed to update journal entry: %w", err)
			}
			if err := recordPending(c, repos.Events(), e); err != nil {
				return fmt.Errorf("failed to record entry events: %w", err)
			}
			entry = e
			return nil
		})
	})
	s.metrics.ObserveOperation(ctx, "post_entry", time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.EntryPosted(ctx, tenantID, string(entry.EntryType), len(entry.Lines))
	s.logger.Info("journal entry posted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("entry_number", entry.EntryNumber),
		zap.String("total", entry.TotalDebit().StringFixed(ledger.LedgerScale)),
	)
	return entry, nil
}

// ReverseEntry posts the mirror of a posted entry dated reversalDate and
// marks the source reversed. The mirror is returned.
func (s *PostingService) ReverseEntry(ctx context.Context, tenantID, entryID uuid.UUID, reversalDate time.Time, actor string) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", "reverse_entry")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), telemetry.SpanAttrEntryID, entryID.String())

	start := s.now()
	var mirror *ledger.JournalEntry
	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationReverseEntry, ""), func(c context.Context) {
		err = s.scope.Execute(c, func(repos TransactionalRepositories) error {
			source, err := repos.EntryRepo().FindByIDForUpdate(c, tenantID, entryID)
			if err != nil {
				return err
			}
			if err := source.EnsureReversible(); err != nil {
				return err
			}
			period, err := repos.PeriodRepo().FindCovering(c, tenantID, reversalDate)
			if err != nil {
				return err
			}
			m, err := source.BuildReversal(s.numbers.Next(reversalDate), reversalDate, period, actor)
			if err != nil {
				return err
			}
			if err := m.Post(period, actor, s.now()); err != nil {
				return err
			}
			if err := repos.EntryRepo().Create(c, m); err != nil {
				if errors.Is(err, ledger.ErrDuplicateReference) {
					return ledger.ErrEntryAlreadyReversed.Newf("entry %s has already been reversed", source.EntryNumber)
				}
				return fmt.Errorf("failed to save reversal entry: %w", err)
			}
			if err := source.MarkReversed(m); err != nil {
				return err
			}
			if err := repos.EntryRepo().Update(c, source); err != nil {
				return fmt.Errorf("failed to update reversed entry: %w", err)
			}
			if err := recordPending(c, repos.Events(), m, source); err != nil {
				return fmt.Errorf("failed to record reversal events: %w", err)
			}
			mirror = m
			return nil
		})
	})
	s.metrics.ObserveOperation(ctx, "reverse_entry", time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.EntryReversed(ctx, tenantID)
	s.logger.Info("journal entry reversed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("entry_id", entryID.String()),
		zap.String("reversal_entry_id", mirror.ID.String()),
		zap.String("reversal_number", mirror.EntryNumber),
		zap.Time("reversal_date", mirror.EntryDate),
	)
	return mirror, nil
}

// SubmitEntry moves a draft to pending.
func (s *PostingService) SubmitEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	return s.transition(ctx, tenantID, entryID, "submit_entry", (*ledger.JournalEntry).Submit)
}

// RejectEntry moves a draft or pending entry to rejected.
func (s *PostingService) RejectEntry(ctx context.Context, tenantID, entryID uuid.UUID, reason string) (*ledger.JournalEntry, error) {
	return s.transition(ctx, tenantID, entryID, "reject_entry", func(e *ledger.JournalEntry) error {
		return e.Reject(reason)
	})
}

// ReopenEntry returns a rejected entry to draft.
func (s *PostingService) ReopenEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	return s.transition(ctx, tenantID, entryID, "reopen_entry", (*ledger.JournalEntry).Reopen)
}

// ReplaceLines rewrites the lines of a draft entry.
func (s *PostingService) ReplaceLines(ctx context.Context, tenantID, entryID uuid.UUID, lines []ledger.LineSpec) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		e, err := repos.EntryRepo().FindByIDForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if err := e.ReplaceLines(lines); err != nil {
			return err
		}
		if err := repos.EntryRepo().ReplaceLines(ctx, e); err != nil {
			return fmt.Errorf("failed to replace entry lines: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *PostingService) transition(ctx context.Context, tenantID, entryID uuid.UUID, op string, apply func(*ledger.JournalEntry) error) (*ledger.JournalEntry, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "posting", op)
	defer span.End()

	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		e, err := repos.EntryRepo().FindByIDForUpdate(ctx, tenantID, entryID)
		if err != nil {
			return err
		}
		if err := apply(e); err != nil {
			return err
		}
		if err := repos.EntryRepo().Update(ctx, e); err != nil {
			return fmt.Errorf("failed to update journal entry: %w", err)
		}
		entry = e
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("journal entry status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("operation", op),
		zap.String("status", string(entry.Status)),
	)
	return entry, nil
}

// GetEntry loads an entry with its lines.
func (s *PostingService) GetEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, err = repos.EntryRepo().FindByID(ctx, tenantID, entryID)
		return err
	})
	return entry, err
}

// GetEntryByReference loads the entry posted for an upstream document.
func (s *PostingService) GetEntryByReference(ctx context.Context, tenantID uuid.UUID, referenceType, referenceID string) (*ledger.JournalEntry, error) {
	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, err = repos.EntryRepo().FindByReference(ctx, tenantID, referenceType, referenceID)
		return err
	})
	return entry, err
}

// ValidateBalance reports whether the entry's debits equal its credits.
func (s *PostingService) ValidateBalance(entry *ledger.JournalEntry) bool {
	return ledger.ValidateBalance(entry.Lines)
}
