// Package bootstrap assembles the posting engine from configuration. The
// server and the operator CLI share it so both run the same wiring.
package bootstrap

import (
	"fmt"

	appevent "github.com/erp/ledger/internal/application/event"
	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger holds the services built on one database handle.
type Ledger struct {
	Serializer *event.EventSerializer
	Publisher  *event.OutboxPublisher
	OutboxRepo *event.GormOutboxRepository
	Failures   *persistence.GormPostingFailureRepository
	Scope      *persistence.GormTransactionScope

	Posting  *appledger.PostingService
	Periods  *appledger.FiscalPeriodService
	Accounts *appledger.AccountService
	Outbox   *appevent.OutboxService

	catalog    *appledger.AccountCatalog
	stockRules *appledger.StockPostingRules
	resolver   *appledger.AccountResolver
	metrics    appledger.Metrics
	logger     *zap.Logger
}

// NewLedger wires repositories and services. metrics may be nil.
func NewLedger(cfg *config.Config, db *gorm.DB, metrics appledger.Metrics, logger *zap.Logger) (*Ledger, error) {
	if metrics == nil {
		metrics = appledger.NoopMetrics()
	}

	catalog, err := appledger.NewAccountCatalog(cfg.Ledger.SystemAccounts)
	if err != nil {
		return nil, fmt.Errorf("ledger.system_accounts: %w", err)
	}
	stockRules, err := appledger.NewStockPostingRules(cfg.Ledger.StockContraAccounts, cfg.Ledger.StockExcludedMovements, catalog)
	if err != nil {
		return nil, fmt.Errorf("ledger.stock_contra_accounts: %w", err)
	}

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	publisher := event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Event.MaxRetries))

	retrier := persistence.NewRetrier(cfg.Ledger.TxMaxRetries, cfg.Ledger.TxRetryInitial, logger.Named("retrier"))
	scope := persistence.NewGormTransactionScope(db, publisher, retrier)
	resolver := appledger.NewAccountResolver(cfg.Ledger.AutoCreateAccounts, logger)
	outboxRepo := event.NewGormOutboxRepository(db)

	return &Ledger{
		Serializer: serializer,
		Publisher:  publisher,
		OutboxRepo: outboxRepo,
		Failures:   persistence.NewGormPostingFailureRepository(db),
		Scope:      scope,
		Posting: appledger.NewPostingService(scope, logger,
			appledger.WithEntryNumbers(appledger.NewULIDEntryNumbers(cfg.Ledger.EntryNumberPrefix)),
			appledger.WithMetrics(metrics),
		),
		Periods:    appledger.NewFiscalPeriodService(scope, logger),
		Accounts:   appledger.NewAccountService(scope, resolver, logger),
		Outbox:     appevent.NewOutboxService(outboxRepo, logger),
		catalog:    catalog,
		stockRules: stockRules,
		resolver:   resolver,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Generators returns the journal generators for upstream events. Terminal
// failures are recorded in posting_failures.
func (l *Ledger) Generators() []shared.EventHandler {
	deps := appledger.GeneratorDeps{
		Scope:    l.Scope,
		Posting:  l.Posting,
		Resolver: l.resolver,
		Catalog:  l.catalog,
		Hook:     appledger.NewRecordingFailureHook(l.Failures, l.logger),
		Metrics:  l.metrics,
		Logger:   l.logger,
	}
	return []shared.EventHandler{
		appledger.NewPayrollProcessedHandler(deps),
		appledger.NewStockMovementRecordedHandler(deps, l.stockRules),
		appledger.NewGoodsReceivedHandler(deps),
	}
}
