package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeliveryKey identifies one handler's delivery of one event. Claims are
// scoped per handler so two subscribers of the same event never shadow
// each other.
type DeliveryKey struct {
	Handler  string
	TenantID uuid.UUID
	EventID  uuid.UUID
}

func NewDeliveryKey(handler string, event DomainEvent) DeliveryKey {
	return DeliveryKey{Handler: handler, TenantID: event.TenantID(), EventID: event.EventID()}
}

func (k DeliveryKey) String() string {
	return k.Handler + ":" + k.TenantID.String() + ":" + k.EventID.String()
}

// ClaimState is the outcome of a claim attempt.
type ClaimState int

const (
	// ClaimAcquired means the caller owns the delivery until its lease ends.
	ClaimAcquired ClaimState = iota
	// ClaimInFlight means another attempt holds an unexpired lease. The
	// delivery has not finished and must be retried later.
	ClaimInFlight
	// ClaimCompleted means an earlier attempt finished the delivery.
	ClaimCompleted
)

func (s ClaimState) String() string {
	switch s {
	case ClaimAcquired:
		return "acquired"
	case ClaimInFlight:
		return "in_flight"
	case ClaimCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// IdempotencyStore holds delivery claims in two phases: a short lease while
// the handler runs, then a completion mark kept for the retention TTL. A
// process that dies mid-delivery only leaves the lease behind, which
// expires on its own.
type IdempotencyStore interface {
	// Claim takes a lease on key unless one is held or the delivery is
	// already completed.
	Claim(ctx context.Context, key DeliveryKey, lease time.Duration) (ClaimState, error)
	// Complete turns a held lease into a completion mark kept for ttl.
	Complete(ctx context.Context, key DeliveryKey, ttl time.Duration) error
	// Release drops a lease so a failed delivery can be retried at once.
	Release(ctx context.Context, key DeliveryKey) error
	Close() error
}
