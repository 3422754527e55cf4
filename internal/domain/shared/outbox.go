package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second

	// MaxBackoff caps the delay between two attempts.
	MaxBackoff = time.Hour
)

// OutboxEntry is a serialized event awaiting delivery to in-process handlers.
// Upstream events (payroll, inventory, procurement) enter the ledger through
// the same table, so a failed posting is retried and finally dead-lettered
// instead of being dropped.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event in a pending entry owned by the
// event's tenant.
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now().UTC()
	return &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      event.TenantID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (e *OutboxEntry) MarkSent() {
	now := time.Now().UTC()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a failed delivery. Once MaxRetries attempts have
// failed the entry is dead; otherwise the next attempt waits base, 2*base,
// 4*base and so on, up to MaxBackoff.
func (e *OutboxEntry) MarkFailed(errMsg string, base time.Duration) {
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	now := time.Now().UTC()
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = now

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := now.Add(Backoff(base, e.RetryCount))
	e.NextRetryAt = &next
}

// Backoff is the delay before attempt n+1 after n failures.
func Backoff(base time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures && d < MaxBackoff; i++ {
		d *= 2
	}
	return min(d, MaxBackoff)
}

// Replay puts a dead entry back in the pending queue with a fresh retry
// budget. It is the only way out of DEAD.
func (e *OutboxEntry) Replay() error {
	if e.Status != OutboxStatusDead {
		return fmt.Errorf("only dead entries can be replayed, entry is %s", e.Status)
	}
	e.Status = OutboxStatusPending
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// DeadLetterQuery selects dead entries. A nil TenantID and an empty
// EventType match everything.
type DeadLetterQuery struct {
	TenantID  uuid.UUID
	EventType string
	Page      int
	PageSize  int
}

// OutboxRepository stores outbox entries.
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// FindRetryable returns failed entries whose NextRetryAt is before the given time.
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	// ReclaimStale reschedules entries left PROCESSING since before, as if
	// their attempt had failed.
	ReclaimStale(ctx context.Context, before time.Time) (int64, error)
	// FindDead pages through dead entries, most recently failed first.
	FindDead(ctx context.Context, q DeadLetterQuery) ([]*OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// MarkProcessing atomically claims entries and returns the ones claimed.
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	// DeleteOlderThan removes sent entries processed before the given time.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	// CountByStatus counts entries per status, for one tenant or for all
	// when tenantID is nil.
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[OutboxStatus]int64, error)
}
