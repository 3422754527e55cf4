package event

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeOutboxRepo keeps entries in memory and honors the dead letter query.
type fakeOutboxRepo struct {
	entries   map[uuid.UUID]*shared.OutboxEntry
	updateErr error
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *fakeOutboxRepo) add(e *shared.OutboxEntry) *shared.OutboxEntry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.entries[e.ID] = e
	return e
}

func (r *fakeOutboxRepo) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	for _, e := range entries {
		r.add(e)
	}
	return nil
}

func (r *fakeOutboxRepo) FindPending(context.Context, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) ReclaimStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepo) FindRetryable(context.Context, time.Time, int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) FindDead(_ context.Context, q shared.DeadLetterQuery) ([]*shared.OutboxEntry, int64, error) {
	var dead []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status != shared.OutboxStatusDead {
			continue
		}
		if q.TenantID != uuid.Nil && e.TenantID != q.TenantID {
			continue
		}
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		dead = append(dead, e)
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].ID.String() < dead[j].ID.String() })

	total := int64(len(dead))
	start := (q.Page - 1) * q.PageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	return dead[start:min(start+q.PageSize, len(dead))], total, nil
}

func (r *fakeOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOutboxRepo) MarkProcessing(context.Context, []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) Update(_ context.Context, entry *shared.OutboxEntry) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.entries[entry.ID] = entry
	return nil
}

func (r *fakeOutboxRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepo) CountByStatus(_ context.Context, tenantID uuid.UUID) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		if tenantID == uuid.Nil || e.TenantID == tenantID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

func deadPayroll(tenantID uuid.UUID) *shared.OutboxEntry {
	now := time.Now().UTC()
	return &shared.OutboxEntry{
		TenantID:      tenantID,
		EventID:       uuid.New(),
		EventType:     "PayrollProcessed",
		AggregateID:   uuid.New(),
		AggregateType: "PayrollRun",
		Payload:       []byte(`{"payroll_id":"run-1"}`),
		Status:        shared.OutboxStatusDead,
		RetryCount:    5,
		MaxRetries:    5,
		LastError:     "no open fiscal period covers 2024-03-31",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOutboxService_DeadLetters(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	tenantA, tenantB := uuid.New(), uuid.New()

	for range 5 {
		repo.add(deadPayroll(tenantA))
	}
	movement := deadPayroll(tenantB)
	movement.EventType = "StockMovementRecorded"
	repo.add(movement)
	repo.add(&shared.OutboxEntry{TenantID: tenantA, Status: shared.OutboxStatusPending})

	t.Run("all tenants", func(t *testing.T) {
		page, err := svc.DeadLetters(context.Background(), DeadLetterFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(6), page.Total)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, defaultPageSize, page.PageSize)
		for _, e := range page.Entries {
			assert.Equal(t, "DEAD", e.Status)
			assert.Nil(t, e.Payload)
		}
	})

	t.Run("by tenant", func(t *testing.T) {
		page, err := svc.DeadLetters(context.Background(), DeadLetterFilter{TenantID: tenantB})
		require.NoError(t, err)
		require.Len(t, page.Entries, 1)
		assert.Equal(t, movement.ID, page.Entries[0].ID)
	})

	t.Run("by event type with paging", func(t *testing.T) {
		page, err := svc.DeadLetters(context.Background(), DeadLetterFilter{EventType: "PayrollProcessed", Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.Len(t, page.Entries, 2)
	})

	t.Run("page size is capped", func(t *testing.T) {
		page, err := svc.DeadLetters(context.Background(), DeadLetterFilter{PageSize: 1000})
		require.NoError(t, err)
		assert.Equal(t, maxPageSize, page.PageSize)
	})
}

func TestOutboxService_Entry(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	e := repo.add(deadPayroll(uuid.New()))

	dto, err := svc.Entry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payroll_id":"run-1"}`, string(dto.Payload))

	_, err = svc.Entry(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOutboxService_Replay(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	e := repo.add(deadPayroll(uuid.New()))

	dto, err := svc.Replay(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", dto.Status)
	assert.Zero(t, dto.RetryCount)
	assert.Empty(t, dto.LastError)
	assert.Equal(t, shared.OutboxStatusPending, repo.entries[e.ID].Status)
}

func TestOutboxService_Replay_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc := NewOutboxService(newFakeOutboxRepo(), zap.NewNop())
		_, err := svc.Replay(context.Background(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("not dead", func(t *testing.T) {
		repo := newFakeOutboxRepo()
		svc := NewOutboxService(repo, zap.NewNop())
		e := repo.add(&shared.OutboxEntry{Status: shared.OutboxStatusSent})
		_, err := svc.Replay(context.Background(), e.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("update fails", func(t *testing.T) {
		repo := newFakeOutboxRepo()
		repo.updateErr = errors.New("connection reset")
		svc := NewOutboxService(repo, zap.NewNop())
		e := repo.add(deadPayroll(uuid.New()))
		_, err := svc.Replay(context.Background(), e.ID)
		require.Error(t, err)
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "INTERNAL_ERROR", de.Code)
	})
}

func TestOutboxService_ReplayAll(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	tenantA, tenantB := uuid.New(), uuid.New()

	for range 250 {
		repo.add(deadPayroll(tenantA))
	}
	for range 3 {
		repo.add(deadPayroll(tenantB))
	}

	n, err := svc.ReplayAll(context.Background(), DeadLetterFilter{TenantID: tenantA, Page: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(250), n)

	statsA, err := svc.Stats(context.Background(), tenantA)
	require.NoError(t, err)
	assert.Zero(t, statsA.Dead)
	assert.Equal(t, int64(250), statsA.Pending)

	statsB, err := svc.Stats(context.Background(), tenantB)
	require.NoError(t, err)
	assert.Equal(t, int64(3), statsB.Dead)
}

func TestOutboxService_ReplayAll_StopsWhenNothingCanBeReset(t *testing.T) {
	repo := newFakeOutboxRepo()
	repo.updateErr = errors.New("read only transaction")
	svc := NewOutboxService(repo, zap.NewNop())
	for range 150 {
		repo.add(deadPayroll(uuid.New()))
	}

	n, err := svc.ReplayAll(context.Background(), DeadLetterFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxService_Stats(t *testing.T) {
	repo := newFakeOutboxRepo()
	svc := NewOutboxService(repo, zap.NewNop())
	tenantID := uuid.New()

	for _, st := range []shared.OutboxStatus{
		shared.OutboxStatusPending,
		shared.OutboxStatusPending,
		shared.OutboxStatusProcessing,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusSent,
		shared.OutboxStatusFailed,
		shared.OutboxStatusDead,
	} {
		repo.add(&shared.OutboxEntry{TenantID: tenantID, Status: st})
	}
	repo.add(&shared.OutboxEntry{TenantID: uuid.New(), Status: shared.OutboxStatusSent})

	stats, err := svc.Stats(context.Background(), tenantID)
	require.NoError(t, err)
	assert.Equal(t, OutboxStatsDTO{Pending: 2, Processing: 1, Sent: 3, Failed: 1, Dead: 1, Total: 8}, *stats)

	all, err := svc.Stats(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), all.Total)
}
