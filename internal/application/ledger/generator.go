package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reference types under which generated entries are keyed.
const (
	ReferenceTypePayroll       = "payroll"
	ReferenceTypeStockMovement = "stock_movement"
	ReferenceTypeGoodsReceipt  = "goods_receipt"
)

// SystemActor is recorded as posted_by on generated entries.
const SystemActor = "system"

// leg is one candidate line of a generated entry, before account lookup.
type leg struct {
	role        AccountRole
	debit       bool
	amount      decimal.Decimal
	description string
}

func debitLeg(role AccountRole, amount decimal.Decimal, description string) leg {
	return leg{role: role, debit: true, amount: amount, description: description}
}

func creditLeg(role AccountRole, amount decimal.Decimal, description string) leg {
	return leg{role: role, amount: amount, description: description}
}

// nonZero drops legs whose amount is zero. It runs before any account is
// resolved so that skipped legs never create accounts.
func nonZero(legs []leg) []leg {
	out := legs[:0:0]
	for _, l := range legs {
		if !l.amount.IsZero() {
			out = append(out, l)
		}
	}
	return out
}

// generatorDeps are shared by every event-driven journal generator.
type generatorDeps struct {
	scope    TransactionScope
	posting  *PostingService
	resolver *AccountResolver
	catalog  *AccountCatalog
	hook     FailureHook
	metrics  Metrics
	logger   *zap.Logger
}

// GeneratorDeps wires a generator. Hook and Metrics may be nil.
type GeneratorDeps struct {
	Scope    TransactionScope
	Posting  *PostingService
	Resolver *AccountResolver
	Catalog  *AccountCatalog
	Hook     FailureHook
	Metrics  Metrics
	Logger   *zap.Logger
}

func (d GeneratorDeps) build() generatorDeps {
	g := generatorDeps{
		scope:    d.Scope,
		posting:  d.Posting,
		resolver: d.Resolver,
		catalog:  d.Catalog,
		hook:     d.Hook,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
	if g.catalog == nil {
		g.catalog = DefaultAccountCatalog()
	}
	if g.hook == nil {
		g.hook = NewLoggingFailureHook(d.Logger)
	}
	if g.metrics == nil {
		g.metrics = NoopMetrics()
	}
	return g
}

// generated describes the outcome of one generator run.
type generated struct {
	entry   *ledger.JournalEntry
	created bool
}

// post runs the shared tail of every generator in one transaction: the
// idempotency lookup, account resolution and CreateAndPost. build returns
// the candidate legs; an empty result skips the document. On failure the
// transaction has rolled back in full and the hook is told.
func (g generatorDeps) post(ctx context.Context, attempt PostingAttempt, header ledger.EntryHeader, build func() ([]leg, error)) (generated, error) {
	var out generated
	err := g.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		out = generated{}
		existing, err := repos.EntryRepo().FindByReference(ctx, attempt.TenantID, attempt.ReferenceType, attempt.ReferenceID)
		if err == nil {
			out.entry = existing
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("failed to check existing entry: %w", err)
		}

		legs, err := build()
		if err != nil {
			return err
		}
		legs = nonZero(legs)
		if len(legs) == 0 {
			return nil
		}

		specs, err := g.resolveLegs(ctx, repos, attempt.TenantID, legs)
		if err != nil {
			return err
		}
		out.entry, out.created, err = g.posting.CreateAndPostWith(ctx, repos, attempt.TenantID, header, specs)
		return err
	})
	if err != nil {
		g.metrics.GeneratorFailed(ctx, attempt.EventType)
		g.hook.OnFailure(ctx, attempt, err)
		return generated{}, err
	}
	g.hook.OnSuccess(ctx, attempt)
	switch {
	case out.entry == nil:
		g.metrics.GeneratorSkipped(ctx, attempt.EventType, "zero_amount")
	case !out.created:
		g.metrics.GeneratorSkipped(ctx, attempt.EventType, "duplicate_reference")
	}
	return out, nil
}

func (g generatorDeps) resolveLegs(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, legs []leg) ([]ledger.LineSpec, error) {
	resolved := make(map[AccountRole]uuid.UUID, len(legs))
	specs := make([]ledger.LineSpec, 0, len(legs))
	for _, l := range legs {
		accountID, ok := resolved[l.role]
		if !ok {
			acc, err := g.resolver.Resolve(ctx, repos.AccountRepo(), g.catalog, tenantID, l.role)
			if err != nil {
				return nil, err
			}
			accountID = acc.ID
			resolved[l.role] = accountID
		}
		amount := l.amount.Round(ledger.LedgerScale)
		if l.debit {
			specs = append(specs, ledger.Debit(accountID, amount, l.description))
		} else {
			specs = append(specs, ledger.Credit(accountID, amount, l.description))
		}
	}
	return specs, nil
}

// logOutcome writes the standard completion line for a generator run.
func (g generatorDeps) logOutcome(attempt PostingAttempt, out generated) {
	fields := []zap.Field{
		zap.String("tenant_id", attempt.TenantID.String()),
		zap.String("reference_type", attempt.ReferenceType),
		zap.String("reference_id", attempt.ReferenceID),
	}
	switch {
	case out.entry == nil:
		g.logger.Info("no journal entry needed, all amounts are zero", fields...)
	case !out.created:
		g.logger.Info("journal entry already exists for reference, skipping",
			append(fields, zap.String("entry_id", out.entry.ID.String()))...)
	default:
		g.logger.Info("journal entry generated",
			append(fields,
				zap.String("entry_id", out.entry.ID.String()),
				zap.String("entry_number", out.entry.EntryNumber),
				zap.Int("lines", len(out.entry.Lines)),
				zap.String("total", out.entry.TotalDebit().StringFixed(ledger.LedgerScale)),
			)...)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
