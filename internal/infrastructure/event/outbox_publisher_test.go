package event

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestPublisher() *OutboxPublisher {
	serializer := NewEventSerializer()
	RegisterEvent[testEvent](serializer, "TestEvent")
	return NewOutboxPublisher(serializer)
}

func countOutbox(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.OutboxEventModel{}).Count(&n).Error)
	return n
}

func TestOutboxPublisher_PublishWithTx(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()
	ctx := context.Background()

	tenantID := uuid.New()
	events := []shared.DomainEvent{
		newTestEvent("TestEvent", tenantID),
		newTestEvent("TestEvent", tenantID),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(ctx, tx, events...)
	})
	require.NoError(t, err)

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, entry := range pending {
		assert.Equal(t, tenantID, entry.TenantID)
		assert.Equal(t, "TestEvent", entry.EventType)
		assert.Contains(t, string(entry.Payload), `"test data"`)
	}
}

func TestOutboxPublisher_PublishWithTx_EmptyEvents(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()

	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.PublishWithTx(context.Background(), tx)
	})
	require.NoError(t, err)
	assert.Zero(t, countOutbox(t, db))
}

func TestOutboxPublisher_PublishWithTx_TransactionRollback(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()
	testErr := errors.New("simulated error")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := publisher.PublishWithTx(context.Background(), tx, newTestEvent("TestEvent", uuid.New())); err != nil {
			return err
		}
		return testErr
	})

	assert.ErrorIs(t, err, testErr)
	assert.Zero(t, countOutbox(t, db))
}

func TestOutboxPublisher_WithMaxRetries(t *testing.T) {
	db := setupOutboxDB(t)
	serializer := NewEventSerializer()
	RegisterEvent[testEvent](serializer, "TestEvent")
	publisher := NewOutboxPublisher(serializer, WithMaxRetries(2))
	ctx := context.Background()

	require.NoError(t, publisher.PublishWithTx(ctx, db, newTestEvent("TestEvent", uuid.New())))

	pending, err := NewGormOutboxRepository(db).FindPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].MaxRetries)
}

func TestOutboxPublisher_RejectsUnregisteredEvent(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()

	err := publisher.PublishWithTx(context.Background(), db, newTestEvent("Unknown", uuid.New()))
	assert.ErrorContains(t, err, "not registered")
	assert.Zero(t, countOutbox(t, db))
}

func TestOutboxPublisher_RejectsEventWithoutTenant(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()

	err := publisher.PublishWithTx(context.Background(), db,
		newTestEvent("TestEvent", uuid.New()),
		newTestEvent("TestEvent", uuid.Nil),
	)
	assert.ErrorContains(t, err, "has no tenant")
	assert.Zero(t, countOutbox(t, db), "the batch is rejected as a whole")
}

func TestOutboxPublisher_SaveEvents(t *testing.T) {
	db := setupOutboxDB(t)
	publisher := newTestPublisher()
	ctx := context.Background()

	t.Run("accepts a gorm transaction", func(t *testing.T) {
		err := publisher.SaveEvents(ctx, db, newTestEvent("TestEvent", uuid.New()))
		require.NoError(t, err)
		assert.Equal(t, int64(1), countOutbox(t, db))
	})

	t.Run("rejects other providers", func(t *testing.T) {
		err := publisher.SaveEvents(ctx, "not a db", newTestEvent("TestEvent", uuid.New()))
		assert.ErrorContains(t, err, "outbox needs a *gorm.DB transaction, got string")
	})

	t.Run("no events is a no-op even without a provider", func(t *testing.T) {
		assert.NoError(t, publisher.SaveEvents(ctx, nil))
	})
}
