package shared

import "context"

// EventHandler reacts to delivered events. Journal generators are the
// main implementations.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler subscribes to.
	EventTypes() []string
}

// NamedHandler is implemented by handlers, and wrappers of handlers, that
// want a stable name in logs, spans and delivery claims.
type NamedHandler interface {
	HandlerName() string
}

// EventPublisher hands events to their subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// OutboxEventSaver appends events to the outbox inside a transaction.
// tx is the *gorm.DB of that transaction.
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, tx any, events ...DomainEvent) error
}
