package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string, tenantID uuid.UUID) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), tenantID),
		Data:            "test data",
	}
}

var handlerSeq atomic.Int64

// testHandler records deliveries under a unique name.
type testHandler struct {
	name       string
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	mu         sync.Mutex
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{
		name:       fmt.Sprintf("test-handler-%d", handlerSeq.Add(1)),
		eventTypes: eventTypes,
	}
}

func (h *testHandler) HandlerName() string { return h.name }

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) setError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

func (h *testHandler) getHandled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

type panickingHandler struct{}

func (panickingHandler) Handle(context.Context, shared.DomainEvent) error { panic("boom") }
func (panickingHandler) EventTypes() []string                             { return []string{"TestEvent"} }

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	handler := newTestHandler("TestEvent")
	require.NoError(t, bus.Subscribe(handler))

	event1 := newTestEvent("TestEvent", uuid.New())
	event2 := newTestEvent("TestEvent", uuid.New())
	require.NoError(t, bus.Publish(context.Background(), event1, event2))

	assert.Equal(t, []shared.DomainEvent{event1, event2}, handler.getHandled())
}

func TestInMemoryEventBus_Publish_Routing(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	payroll := newTestHandler("PayrollProcessed")
	stock := newTestHandler("StockMovementRecorded")
	require.NoError(t, bus.Subscribe(payroll))
	require.NoError(t, bus.Subscribe(stock))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("PayrollProcessed", uuid.New())))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("GoodsReceived", uuid.New())))

	assert.Len(t, payroll.getHandled(), 1)
	assert.Empty(t, stock.getHandled())
	assert.Equal(t, []string{"PayrollProcessed", "StockMovementRecorded"}, bus.SubscribedTypes())
}

func TestInMemoryEventBus_Subscribe_ExplicitTypes(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("PayrollProcessed")
	require.NoError(t, bus.Subscribe(handler, "GoodsReceived"))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("PayrollProcessed", uuid.New())))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("GoodsReceived", uuid.New())))

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, "GoodsReceived", handler.getHandled()[0].EventType())
}

func TestInMemoryEventBus_Subscribe_Rejected(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("PayrollProcessed")
	require.NoError(t, bus.Subscribe(handler))

	err := bus.Subscribe(handler)
	assert.ErrorContains(t, err, "already subscribed to PayrollProcessed")

	err = bus.Subscribe(newTestHandler())
	assert.ErrorContains(t, err, "no event types")
}

func TestInMemoryEventBus_Publish_PropagatesHandlerErrors(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())

	failing := newTestHandler("TestEvent")
	failing.setError(errors.New("period closed"))
	healthy := newTestHandler("TestEvent")
	require.NoError(t, bus.Subscribe(failing))
	require.NoError(t, bus.Subscribe(healthy))

	err := bus.Publish(context.Background(), newTestEvent("TestEvent", uuid.New()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), failing.name+": period closed")
	// the failure does not starve the other subscriber
	assert.Len(t, failing.getHandled(), 1)
	assert.Len(t, healthy.getHandled(), 1)
}

func TestInMemoryEventBus_Publish_RecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Subscribe(panickingHandler{}))

	err := bus.Publish(context.Background(), newTestEvent("TestEvent", uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestInMemoryEventBus_TracesEachDispatch(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	bus := NewInMemoryEventBus(zap.NewNop(), WithTracerProvider(tp))
	ok := newTestHandler("TestEvent")
	failing := newTestHandler("TestEvent")
	failing.setError(errors.New("no open fiscal period"))
	require.NoError(t, bus.Subscribe(ok))
	require.NoError(t, bus.Subscribe(failing))

	tenantID := uuid.New()
	require.Error(t, bus.Publish(context.Background(), newTestEvent("TestEvent", tenantID)))

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "event.handle TestEvent", span.Name())
	}

	attrs := func(span sdktrace.ReadOnlySpan) map[string]string {
		out := map[string]string{}
		for _, kv := range span.Attributes() {
			out[string(kv.Key)] = kv.Value.AsString()
		}
		return out
	}
	assert.Equal(t, ok.name, attrs(spans[0])["event.handler"])
	assert.Equal(t, tenantID.String(), attrs(spans[0])["tenant_id"])
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, failing.name, attrs(spans[1])["event.handler"])
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	require.NoError(t, bus.Subscribe(handler))

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("TestEvent", uuid.New())))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))

	err := bus.Publish(context.Background(), newTestEvent("TestEvent", uuid.New()))
	assert.ErrorIs(t, err, ErrBusStopped)
	assert.Len(t, handler.getHandled(), 1)
}
