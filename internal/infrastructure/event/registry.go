package event

import (
	"fmt"
	"slices"
	"sync"

	"github.com/erp/ledger/internal/domain/shared"
)

// HandlerName is the name a handler goes by in logs, spans and delivery
// claims: its HandlerName when it has one, otherwise its Go type.
func HandlerName(h shared.EventHandler) string {
	if n, ok := h.(shared.NamedHandler); ok {
		return n.HandlerName()
	}
	return fmt.Sprintf("%T", h)
}

type subscription struct {
	name    string
	handler shared.EventHandler
}

// HandlerRegistry maps event types to their subscribers in registration
// order. A handler name may appear only once per event type, so a
// generator wired twice cannot post the same event twice.
type HandlerRegistry struct {
	mu   sync.RWMutex
	subs map[string][]subscription
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{subs: make(map[string][]subscription)}
}

// Register subscribes handler to eventTypes. Nothing is registered when
// any of the types is rejected.
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) error {
	name := HandlerName(handler)
	if len(eventTypes) == 0 {
		return fmt.Errorf("handler %s subscribes to no event types", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range eventTypes {
		if t == "" {
			return fmt.Errorf("handler %s: empty event type", name)
		}
		if slices.Contains(eventTypes[:i], t) ||
			slices.ContainsFunc(r.subs[t], func(s subscription) bool { return s.name == name }) {
			return fmt.Errorf("handler %s is already subscribed to %s", name, t)
		}
	}
	for _, t := range eventTypes {
		r.subs[t] = append(r.subs[t], subscription{name: name, handler: handler})
	}
	return nil
}

// handlers returns the subscribers of eventType.
func (r *HandlerRegistry) handlers(eventType string) []subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.subs[eventType])
}

// EventTypes returns the sorted event types that have subscribers.
func (r *HandlerRegistry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.subs))
	for t := range r.subs {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
