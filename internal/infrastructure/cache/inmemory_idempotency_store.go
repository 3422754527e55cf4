package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

type claim struct {
	completed bool
	expiry    time.Time
}

// InMemoryIdempotencyStore keeps delivery claims in a map. Claims are
// per process, so it only suits single-instance deployments and tests.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	claims map[shared.DeliveryKey]claim
	now    func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts a goroutine
// that drops expired claims every five minutes.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return newInMemoryIdempotencyStore(5*time.Minute, time.Now)
}

func newInMemoryIdempotencyStore(sweepEvery time.Duration, now func() time.Time) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		claims: make(map[shared.DeliveryKey]claim),
		now:    now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.sweepLoop(sweepEvery)
	return s
}

// Claim takes a lease when key is free or its previous claim expired.
func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key shared.DeliveryKey, lease time.Duration) (shared.ClaimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c, ok := s.claims[key]; ok && now.Before(c.expiry) {
		if c.completed {
			return shared.ClaimCompleted, nil
		}
		return shared.ClaimInFlight, nil
	}
	s.claims[key] = claim{expiry: now.Add(lease)}
	return shared.ClaimAcquired, nil
}

func (s *InMemoryIdempotencyStore) Complete(_ context.Context, key shared.DeliveryKey, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[key] = claim{completed: true, expiry: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, key shared.DeliveryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[key]; ok && !c.completed {
		delete(s.claims, key)
	}
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop(every time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, c := range s.claims {
		if !now.Before(c.expiry) {
			delete(s.claims, key)
		}
	}
}

// Len counts held claims, expired ones included until the next sweep.
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
