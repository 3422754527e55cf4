package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FiscalPeriodService owns the period calendar and the closing gate.
type FiscalPeriodService struct {
	scope  TransactionScope
	logger *zap.Logger
	now    func() time.Time
}

func NewFiscalPeriodService(scope TransactionScope, logger *zap.Logger) *FiscalPeriodService {
	return &FiscalPeriodService{scope: scope, logger: logger, now: time.Now}
}

// ResolvePeriodFor returns the period containing date, open or closed.
func (s *FiscalPeriodService) ResolvePeriodFor(ctx context.Context, tenantID uuid.UUID, date time.Time) (*ledger.FiscalPeriod, error) {
	var period *ledger.FiscalPeriod
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		period, err = repos.PeriodRepo().FindCovering(ctx, tenantID, date)
		return err
	})
	return period, err
}

// OpenPeriod adds a period to the tenant's calendar. Ranges may not overlap
// an existing period.
func (s *FiscalPeriodService) OpenPeriod(ctx context.Context, tenantID uuid.UUID, name string, start, end time.Time) (*ledger.FiscalPeriod, error) {
	period, err := ledger.NewFiscalPeriod(tenantID, name, start, end)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.PeriodRepo().LockCalendar(ctx, tenantID); err != nil {
			return fmt.Errorf("failed to lock fiscal calendar: %w", err)
		}
		overlapping, err := repos.PeriodRepo().FindOverlapping(ctx, tenantID, period.PeriodStart, period.PeriodEnd)
		if err != nil {
			return fmt.Errorf("failed to check overlapping periods: %w", err)
		}
		if len(overlapping) > 0 {
			return ledger.ErrPeriodOverlap.Newf("period %s..%s overlaps %s",
				period.PeriodStart.Format(time.DateOnly), period.PeriodEnd.Format(time.DateOnly), overlapping[0].Name)
		}
		return repos.PeriodRepo().Create(ctx, period)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("fiscal period opened",
		zap.String("tenant_id", tenantID.String()),
		zap.String("period_id", period.ID.String()),
		zap.String("name", period.Name),
		zap.Time("period_start", period.PeriodStart),
		zap.Time("period_end", period.PeriodEnd),
	)
	return period, nil
}

// Close performs the one-way open to closed transition. The
// FiscalPeriodClosed event is written to the outbox in the same transaction.
func (s *FiscalPeriodService) Close(ctx context.Context, tenantID, periodID uuid.UUID, actor string) (*ledger.FiscalPeriod, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "fiscal_period", "close")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), telemetry.SpanAttrPeriodID, periodID.String())

	var period *ledger.FiscalPeriod
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		p, err := repos.PeriodRepo().FindByIDForUpdate(ctx, tenantID, periodID)
		if err != nil {
			return err
		}
		if err := p.Close(actor, s.now()); err != nil {
			return err
		}
		if err := repos.PeriodRepo().Save(ctx, p); err != nil {
			return fmt.Errorf("failed to save fiscal period: %w", err)
		}
		if err := recordPending(ctx, repos.Events(), p); err != nil {
			return fmt.Errorf("failed to record period events: %w", err)
		}
		period = p
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("fiscal period close failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("period_id", periodID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	s.logger.Info("fiscal period closed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("period_id", period.ID.String()),
		zap.String("closed_by", period.ClosedBy),
	)
	return period, nil
}

// ListPeriods returns the tenant's periods ordered by start date.
func (s *FiscalPeriodService) ListPeriods(ctx context.Context, tenantID uuid.UUID) ([]*ledger.FiscalPeriod, error) {
	var periods []*ledger.FiscalPeriod
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		periods, err = repos.PeriodRepo().FindAllForTenant(ctx, tenantID)
		return err
	})
	return periods, err
}
