package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/erp/ledger/internal/domain/shared"
)

// RecordingHandler is an event handler that keeps what it receives, for
// observing what the outbox processor delivers.
type RecordingHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
}

// NewRecordingHandler subscribes to eventTypes.
func NewRecordingHandler(eventTypes ...string) *RecordingHandler {
	return &RecordingHandler{eventTypes: eventTypes}
}

func (h *RecordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *RecordingHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return nil
}

// Handled returns a copy of the received events in arrival order.
func (h *RecordingHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shared.DomainEvent, len(h.handled))
	copy(out, h.handled)
	return out
}

// AggregateIDs returns the aggregate ids of received events of eventType.
func (h *RecordingHandler) AggregateIDs(eventType string) []uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []uuid.UUID
	for _, e := range h.handled {
		if e.EventType() == eventType {
			ids = append(ids, e.AggregateID())
		}
	}
	return ids
}

// WaitForEvents waits until at least n events have been received.
func (h *RecordingHandler) WaitForEvents(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	RequireEventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.handled) >= n
	}, timeout, 20*time.Millisecond, "expected %d delivered events", n)
}
