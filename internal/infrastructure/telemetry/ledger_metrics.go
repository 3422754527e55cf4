package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics records posting engine measurements with OpenTelemetry.
type LedgerMetrics struct {
	entriesPosted     *Counter
	linesPosted       *Counter
	entriesReversed   *Counter
	generatorSkipped  *Counter
	generatorFailed   *Counter
	operationDuration *Histogram
	outboxEvents      *Counter
	duplicates        *Counter
}

func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	m := &LedgerMetrics{}
	var err error
	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&m.entriesPosted, "ledger_entries_posted_total", "Journal entries posted", "{entry}"},
		{&m.linesPosted, "ledger_lines_posted_total", "Journal lines posted", "{line}"},
		{&m.entriesReversed, "ledger_entries_reversed_total", "Journal entries reversed", "{entry}"},
		{&m.generatorSkipped, "ledger_generator_skipped_total", "Events that produced no entry", "{event}"},
		{&m.generatorFailed, "ledger_generator_failed_total", "Events whose posting failed", "{event}"},
		{&m.outboxEvents, "ledger_outbox_events_total", "Outbox entries by processing step", "{event}"},
		{&m.duplicates, "ledger_duplicate_deliveries_total", "Deliveries dropped by an existing claim", "{event}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}
	m.operationDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_operation_duration_seconds",
		Description: "Latency of posting engine operations",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LedgerMetrics) EntryPosted(ctx context.Context, tenantID uuid.UUID, entryType string, lines int) {
	attrs := []attribute.KeyValue{AttrTenantID.String(tenantID.String()), AttrEntryType.String(entryType)}
	m.entriesPosted.Inc(ctx, attrs...)
	m.linesPosted.Add(ctx, int64(lines), attrs...)
}

func (m *LedgerMetrics) EntryReversed(ctx context.Context, tenantID uuid.UUID) {
	m.entriesReversed.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

func (m *LedgerMetrics) GeneratorSkipped(ctx context.Context, eventType, reason string) {
	m.generatorSkipped.Inc(ctx, AttrEventType.String(eventType), AttrReason.String(reason))
}

func (m *LedgerMetrics) GeneratorFailed(ctx context.Context, eventType string) {
	m.generatorFailed.Inc(ctx, AttrEventType.String(eventType))
}

// ObserveOperation records the latency of op, labelled with the domain
// error code on failure.
func (m *LedgerMetrics) ObserveOperation(ctx context.Context, op string, elapsed time.Duration, err error) {
	outcome := "ok"
	attrs := []attribute.KeyValue{AttrOperation.String(op)}
	if err != nil {
		outcome = "error"
		code := "INTERNAL"
		var de *shared.DomainError
		if errors.As(err, &de) {
			code = de.Code
		}
		attrs = append(attrs, AttrErrorCode.String(code))
	}
	m.operationDuration.RecordDuration(ctx, elapsed, append(attrs, AttrOutcome.String(outcome))...)
}

// OutboxProcessed counts outbox entries reaching step: sent, retry or dead.
func (m *LedgerMetrics) OutboxProcessed(ctx context.Context, step string, n int) {
	if n <= 0 {
		return
	}
	m.outboxEvents.Add(ctx, int64(n), AttrOutboxStep.String(step))
}

// DuplicateDelivery counts a delivery that found its claim already held.
func (m *LedgerMetrics) DuplicateDelivery(ctx context.Context, handler, eventType string) {
	m.duplicates.Inc(ctx, AttrHandler.String(handler), AttrEventType.String(eventType))
}
