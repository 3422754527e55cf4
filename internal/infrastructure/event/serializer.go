package event

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// EventSerializer turns events into outbox payloads and back. Decoding
// needs the concrete type, so every event that crosses the outbox is
// registered under its EventType.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]func() shared.DomainEvent
}

func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]func() shared.DomainEvent)}
}

// RegisterEvent registers *T as the type decoded for eventType.
func RegisterEvent[T any, P interface {
	*T
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = func() shared.DomainEvent { return P(new(T)) }
}

func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Deserialize decodes data into a fresh instance of the type registered for
// eventType. The payload must describe an event of that type and carry a
// tenant, since nothing downstream can post without one.
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	if got := event.EventType(); got != "" && got != eventType {
		return nil, fmt.Errorf("payload of %s describes a %s event", eventType, got)
	}
	if event.TenantID() == uuid.Nil {
		return nil, fmt.Errorf("%s payload has no tenant_id", eventType)
	}
	return event, nil
}

func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes returns the registered event types in sorted order.
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.factories))
	for t := range s.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
