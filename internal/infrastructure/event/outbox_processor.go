package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	RetryBaseBackoff time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration

	// ProcessingTimeout reclaims entries left PROCESSING by a processor
	// that died mid-delivery. Zero disables reclaiming.
	ProcessingTimeout time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		RetryBaseBackoff: shared.DefaultBaseBackoff,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,

		ProcessingTimeout: 10 * time.Minute,
	}
}

// OutboxMetrics counts entries leaving a batch as sent, retry or dead.
type OutboxMetrics interface {
	OutboxProcessed(ctx context.Context, step string, n int)
}

type noopOutboxMetrics struct{}

func (noopOutboxMetrics) OutboxProcessed(context.Context, string, int) {}

// BatchResult summarizes one processing pass.
type BatchResult struct {
	Sent  int
	Retry int
	Dead  int
}

func (r BatchResult) Total() int { return r.Sent + r.Retry + r.Dead }

// OutboxProcessor delivers outbox entries to the event bus in the background.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	eventBus   shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	metrics    OutboxMetrics
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor. metrics may be nil.
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	eventBus shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	metrics OutboxMetrics,
	logger *zap.Logger,
) *OutboxProcessor {
	if metrics == nil {
		metrics = noopOutboxMetrics{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	return &OutboxProcessor{
		repo:       repo,
		eventBus:   eventBus,
		serializer: serializer,
		config:     config,
		metrics:    metrics,
		logger:     logger,
	}
}

// Start starts the background processing
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.processLoop(ctx)

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the processor
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) processLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch reclaims abandoned entries, then delivers one batch of
// pending entries and one batch of failed entries whose retry time has come.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) BatchResult {
	var result BatchResult
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OperationOutboxBatch, ""), func(ctx context.Context) {
		p.reclaimStale(ctx)

		pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
		if err != nil {
			p.logger.Error("failed to find pending entries", zap.Error(err))
			return
		}
		p.processEntries(ctx, pending, &result)

		retryable, err := p.repo.FindRetryable(ctx, time.Now().UTC(), p.config.BatchSize)
		if err != nil {
			p.logger.Error("failed to find retryable entries", zap.Error(err))
			return
		}
		p.processEntries(ctx, retryable, &result)
	})

	p.metrics.OutboxProcessed(ctx, "sent", result.Sent)
	p.metrics.OutboxProcessed(ctx, "retry", result.Retry)
	p.metrics.OutboxProcessed(ctx, "dead", result.Dead)
	return result
}

func (p *OutboxProcessor) reclaimStale(ctx context.Context) {
	if p.config.ProcessingTimeout <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-p.config.ProcessingTimeout)
	n, err := p.repo.ReclaimStale(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to reclaim stale entries", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Warn("rescheduled entries abandoned mid-delivery",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff),
		)
	}
}

func (p *OutboxProcessor) processEntries(ctx context.Context, entries []*shared.OutboxEntry, result *BatchResult) {
	if len(entries) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	// Another instance may have claimed some of these already.
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to mark entries as processing", zap.Error(err))
		return
	}

	for _, entry := range claimed {
		p.processEntry(ctx, entry, result)
	}
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry *shared.OutboxEntry, result *BatchResult) {
	ctx, span := telemetry.StartSpan(ctx, "outbox.deliver",
		telemetry.WithAttribute("event.type", entry.EventType),
		telemetry.WithAttribute("event.id", entry.EventID.String()),
	)
	defer span.End()

	fields := []zap.Field{
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("tenant_id", entry.TenantID.String()),
	}

	deliverErr := p.deliver(ctx, entry)
	if deliverErr == nil {
		entry.MarkSent()
		result.Sent++
		if err := p.repo.Update(ctx, entry); err != nil {
			p.logger.Error("failed to mark entry as sent", append(fields, zap.Error(err))...)
			return
		}
		p.logger.Debug("event delivered", fields...)
		return
	}

	telemetry.RecordError(span, deliverErr)
	p.logger.Error("failed to deliver event", append(fields, zap.Error(deliverErr))...)
	entry.MarkFailed(deliverErr.Error(), p.config.RetryBaseBackoff)
	if entry.IsDead() {
		result.Dead++
		p.logger.Warn("event moved to dead letter queue", append(fields,
			zap.String("aggregate_type", entry.AggregateType),
			zap.String("aggregate_id", entry.AggregateID.String()),
			zap.Int("retry_count", entry.RetryCount),
			zap.String("last_error", entry.LastError),
		)...)
	} else {
		result.Retry++
	}
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("failed to update entry", append(fields, zap.Error(err))...)
	}
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return p.eventBus.Publish(ctx, event)
}

func (p *OutboxProcessor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	interval := p.config.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Cleanup(ctx)
		}
	}
}

// Cleanup removes sent entries older than the retention window.
func (p *OutboxProcessor) Cleanup(ctx context.Context) int64 {
	cutoff := time.Now().UTC().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to cleanup old entries", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		p.logger.Info("cleaned up old outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return deleted
}
