package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	// DefaultClaimTTL is how long a completed delivery blocks redelivery.
	DefaultClaimTTL = 24 * time.Hour
	// DefaultClaimLease bounds how long a running delivery blocks others.
	DefaultClaimLease = 5 * time.Minute
)

// ErrDeliveryInFlight is returned when another attempt holds the lease on
// a delivery. The outbox keeps the entry and retries it later.
var ErrDeliveryInFlight = errors.New("delivery already in flight")

// DuplicateRecorder counts deliveries dropped because they were already
// claimed.
type DuplicateRecorder interface {
	DuplicateDelivery(ctx context.Context, handler, eventType string)
}

type noopDuplicateRecorder struct{}

func (noopDuplicateRecorder) DuplicateDelivery(context.Context, string, string) {}

// IdempotentHandler leases each delivery in a store before running the
// wrapped handler and marks it completed only after the handler returns
// nil, so an event redelivered by the outbox reaches a generator once per
// TTL. A failed or panicking attempt releases its lease; one lost with its
// process expires after the lease duration.
type IdempotentHandler struct {
	handler shared.EventHandler
	name    string
	store   shared.IdempotencyStore
	ttl     time.Duration
	lease   time.Duration
	dupes   DuplicateRecorder
	logger  *zap.Logger
}

type IdempotentHandlerOption func(*IdempotentHandler)

func WithClaimTTL(ttl time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

func WithClaimLease(lease time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if lease > 0 {
			h.lease = lease
		}
	}
}

func WithDuplicateRecorder(r DuplicateRecorder) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if r != nil {
			h.dupes = r
		}
	}
}

func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		name:    HandlerName(handler),
		store:   store,
		ttl:     DefaultClaimTTL,
		lease:   DefaultClaimLease,
		dupes:   noopDuplicateRecorder{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// HandlerName is the name of the wrapped handler, so claims and spans
// are attributed to the generator doing the work.
func (h *IdempotentHandler) HandlerName() string {
	return h.name
}

func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) (err error) {
	key := shared.NewDeliveryKey(h.name, event)
	fields := []zap.Field{
		zap.String("handler", h.name),
		zap.String("event_id", key.EventID.String()),
		zap.String("event_type", event.EventType()),
		zap.String("tenant_id", key.TenantID.String()),
	}

	state, claimErr := h.store.Claim(ctx, key, h.lease)
	switch {
	case claimErr != nil:
		// A broken store must not drop events; the reference key on
		// journal entries still rejects a duplicate posting.
		h.logger.Warn("Idempotency store unavailable, handling anyway", append(fields, zap.Error(claimErr))...)
		return h.handler.Handle(ctx, event)
	case state == shared.ClaimCompleted:
		h.dupes.DuplicateDelivery(ctx, h.name, event.EventType())
		h.logger.Debug("Duplicate delivery skipped", fields...)
		return nil
	case state == shared.ClaimInFlight:
		return fmt.Errorf("%s: %w", key, ErrDeliveryInFlight)
	}

	defer func() {
		if r := recover(); r != nil {
			h.release(ctx, key, fields)
			panic(r)
		}
		if err != nil {
			h.release(ctx, key, fields)
			return
		}
		if cErr := h.store.Complete(context.WithoutCancel(ctx), key, h.ttl); cErr != nil {
			h.logger.Warn("Failed to mark delivery completed", append(fields, zap.Error(cErr))...)
		}
	}()
	return h.handler.Handle(ctx, event)
}

func (h *IdempotentHandler) release(ctx context.Context, key shared.DeliveryKey, fields []zap.Field) {
	if err := h.store.Release(context.WithoutCancel(ctx), key); err != nil {
		h.logger.Warn("Failed to release delivery claim", append(fields, zap.Error(err))...)
	}
}

var (
	_ shared.EventHandler = (*IdempotentHandler)(nil)
	_ shared.NamedHandler = (*IdempotentHandler)(nil)
)

// WrapHandlersWithIdempotency wraps each handler with the same store and options.
func WrapHandlersWithIdempotency(
	handlers []shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) []shared.EventHandler {
	wrapped := make([]shared.EventHandler, len(handlers))
	for i, h := range handlers {
		wrapped[i] = NewIdempotentHandler(h, store, logger, opts...)
	}
	return wrapped
}
