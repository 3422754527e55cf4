package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordingFailureHook_RecordsDomainCode(t *testing.T) {
	repo := new(MockPostingFailureRepository)
	hook := NewRecordingFailureHook(repo, zap.NewNop())
	attempt := PostingAttempt{
		TenantID:      uuid.New(),
		EventID:       uuid.New(),
		EventType:     "PayrollProcessed",
		ReferenceType: ReferenceTypePayroll,
		ReferenceID:   uuid.New().String(),
	}

	var recorded *ledger.PostingFailure
	repo.On("Record", mock.Anything, mock.AnythingOfType("*ledger.PostingFailure")).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*ledger.PostingFailure) }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hook.OnFailure(ctx, attempt, fmt.Errorf("failed to post payroll: %w", ledger.ErrPeriodClosed.Newf("period 2024-01 is closed")))

	require.NotNil(t, recorded)
	assert.Equal(t, ledger.CodePeriodClosed, recorded.ErrorCode)
	assert.Equal(t, attempt.EventID, recorded.EventID)
	assert.Equal(t, attempt.ReferenceID, recorded.ReferenceID)
	assert.Contains(t, recorded.ErrorMessage, "period 2024-01 is closed")
}

func TestRecordingFailureHook_InternalErrors(t *testing.T) {
	repo := new(MockPostingFailureRepository)
	hook := NewRecordingFailureHook(repo, zap.NewNop())
	repo.On("Record", mock.Anything, mock.MatchedBy(func(f *ledger.PostingFailure) bool {
		return f.ErrorCode == "INTERNAL"
	})).Return(errors.New("db down"))

	hook.OnFailure(bg, PostingAttempt{TenantID: uuid.New(), EventID: uuid.New()}, errors.New("boom"))
	repo.AssertExpectations(t)
}

func TestRecordingFailureHook_OnSuccessResolves(t *testing.T) {
	repo := new(MockPostingFailureRepository)
	hook := NewRecordingFailureHook(repo, zap.NewNop())
	eventID := uuid.New()
	repo.On("MarkResolved", mock.Anything, eventID, mock.Anything).Return(nil)

	hook.OnSuccess(bg, PostingAttempt{EventID: eventID})
	repo.AssertExpectations(t)
}

func TestRecordingFailureHook_NilRepository(t *testing.T) {
	hook := NewRecordingFailureHook(nil, zap.NewNop())
	assert.NotPanics(t, func() {
		hook.OnFailure(bg, PostingAttempt{}, errors.New("boom"))
		hook.OnSuccess(bg, PostingAttempt{})
	})
}

func TestULIDEntryNumbers(t *testing.T) {
	g := NewULIDEntryNumbers("GL")
	a := g.Next(date(2024, 1, 31))
	b := g.Next(date(2024, 1, 31))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^GL-20240131-[0-9A-Z]{26}$`, a)
	assert.Less(t, a, b)

	assert.Regexp(t, `^JE-`, NewULIDEntryNumbers(" ").Next(date(2024, 1, 1)))
}
