package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/erp/ledger/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/erp/ledger/internal/infrastructure/event"

// ErrBusStopped is returned by Publish once Stop has been called.
var ErrBusStopped = errors.New("event bus stopped")

// InMemoryEventBus dispatches events synchronously to their subscribers.
// Handler failures are joined and returned so the outbox processor can
// retry the entry; every subscriber still sees the event.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	tracer   trace.Tracer
	logger   *zap.Logger
	stopped  atomic.Bool
	inflight sync.WaitGroup
}

type BusOption func(*InMemoryEventBus)

// WithTracerProvider traces each dispatch with tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) BusOption {
	return func(b *InMemoryEventBus) {
		b.tracer = tp.Tracer(tracerName)
	}
}

func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers each event to every subscriber of its type.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}
	b.inflight.Add(1)
	defer b.inflight.Done()

	var errs []error
	for _, event := range events {
		for _, sub := range b.registry.handlers(event.EventType()) {
			if err := b.dispatch(ctx, sub, event); err != nil {
				b.logger.Error("Handler failed to process event",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("tenant_id", event.TenantID().String()),
					zap.String("handler", sub.name),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers handler for eventTypes, or for its own EventTypes
// when none are given.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) error {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	if err := b.registry.Register(handler, eventTypes...); err != nil {
		return err
	}
	b.logger.Debug("Handler subscribed",
		zap.String("handler", HandlerName(handler)),
		zap.Strings("event_types", eventTypes),
	)
	return nil
}

// SubscribedTypes lists the event types with at least one subscriber.
func (b *InMemoryEventBus) SubscribedTypes() []string {
	return b.registry.EventTypes()
}

func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("Event bus started", zap.Strings("event_types", b.SubscribedTypes()))
	return nil
}

// Stop rejects new publications and waits for in-flight ones, or for ctx.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatch runs one handler inside its own span and turns a panic into an
// error.
func (b *InMemoryEventBus) dispatch(ctx context.Context, sub subscription, event shared.DomainEvent) (err error) {
	ctx, span := b.tracer.Start(ctx, "event.handle "+event.EventType(),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("event.type", event.EventType()),
			attribute.String("event.id", event.EventID().String()),
			attribute.String("event.handler", sub.name),
			attribute.String("tenant_id", event.TenantID().String()),
		),
	)
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				zap.String("event_type", event.EventType()),
				zap.String("handler", sub.name),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return sub.handler.Handle(ctx, event)
}

var _ shared.EventPublisher = (*InMemoryEventBus)(nil)
