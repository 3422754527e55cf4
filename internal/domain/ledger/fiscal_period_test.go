package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestPeriod(t *testing.T, tenantID uuid.UUID, start, end time.Time) *FiscalPeriod {
	p, err := NewFiscalPeriod(tenantID, "", start, end)
	require.NoError(t, err)
	return p
}

func TestFiscalPeriod_Contains(t *testing.T) {
	p := newTestPeriod(t, uuid.New(), date(2024, 3, 1), date(2024, 3, 31))

	assert.Equal(t, "2024-03", p.Name)
	assert.True(t, p.Contains(date(2024, 3, 1)))
	assert.True(t, p.Contains(time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, p.Contains(date(2024, 4, 1)))
	assert.False(t, p.Contains(date(2024, 2, 29)))
}

func TestFiscalPeriod_Overlaps(t *testing.T) {
	tenantID := uuid.New()
	march := newTestPeriod(t, tenantID, date(2024, 3, 1), date(2024, 3, 31))

	assert.True(t, march.Overlaps(newTestPeriod(t, tenantID, date(2024, 3, 31), date(2024, 4, 30))))
	assert.False(t, march.Overlaps(newTestPeriod(t, tenantID, date(2024, 4, 1), date(2024, 4, 30))))
}

func TestNewFiscalPeriod_RejectsInvertedRange(t *testing.T) {
	_, err := NewFiscalPeriod(uuid.New(), "bad", date(2024, 3, 31), date(2024, 3, 1))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestFiscalPeriod_Close(t *testing.T) {
	p := newTestPeriod(t, uuid.New(), date(2024, 3, 1), date(2024, 3, 31))
	at := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, p.EnsureOpen())
	require.NoError(t, p.Close("controller@acme", at))

	assert.True(t, p.IsClosed())
	assert.Equal(t, "controller@acme", p.ClosedBy)
	assert.Equal(t, at, *p.ClosedAt)
	assert.Equal(t, 2, p.Version)
	assert.True(t, errors.Is(p.EnsureOpen(), ErrPeriodClosed))

	events := p.GetDomainEvents()
	require.Len(t, events, 1)
	closed, ok := events[0].(*FiscalPeriodClosedEvent)
	require.True(t, ok)
	assert.Equal(t, p.ID, closed.PeriodID)
	assert.Equal(t, "controller@acme", closed.ClosedBy)
	assert.Equal(t, at, closed.ClosedAt)

	err := p.Close("someone-else", at.Add(time.Hour))
	assert.True(t, errors.Is(err, ErrPeriodAlreadyClosed))
	assert.Equal(t, "controller@acme", p.ClosedBy)
}

func TestFiscalPeriod_CloseRequiresPrincipal(t *testing.T) {
	p := newTestPeriod(t, uuid.New(), date(2024, 3, 1), date(2024, 3, 31))
	assert.True(t, errors.Is(p.Close("", time.Now()), ErrValidation))
	assert.False(t, p.IsClosed())
}
