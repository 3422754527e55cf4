package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Metrics receives posting engine measurements. The OpenTelemetry
// implementation lives in infrastructure/telemetry.
type Metrics interface {
	EntryPosted(ctx context.Context, tenantID uuid.UUID, entryType string, lines int)
	EntryReversed(ctx context.Context, tenantID uuid.UUID)
	GeneratorSkipped(ctx context.Context, eventType, reason string)
	GeneratorFailed(ctx context.Context, eventType string)
	ObserveOperation(ctx context.Context, operation string, elapsed time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) EntryPosted(context.Context, uuid.UUID, string, int)            {}
func (noopMetrics) EntryReversed(context.Context, uuid.UUID)                       {}
func (noopMetrics) GeneratorSkipped(context.Context, string, string)               {}
func (noopMetrics) GeneratorFailed(context.Context, string)                        {}
func (noopMetrics) ObserveOperation(context.Context, string, time.Duration, error) {}

// NoopMetrics discards all measurements.
func NoopMetrics() Metrics { return noopMetrics{} }
