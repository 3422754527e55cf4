package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostingAttempt identifies the upstream document a generator worked on.
type PostingAttempt struct {
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	ReferenceType string
	ReferenceID   string
}

// FailureHook is told about the outcome of every generator run after its
// transaction has finished. It never retries anything itself.
type FailureHook interface {
	OnFailure(ctx context.Context, attempt PostingAttempt, err error)
	OnSuccess(ctx context.Context, attempt PostingAttempt)
}

// RecordingFailureHook logs failures and stores them in posting_failures.
// It writes outside the generator's rolled-back transaction.
type RecordingFailureHook struct {
	repo   ledger.PostingFailureRepository
	logger *zap.Logger
}

func NewRecordingFailureHook(repo ledger.PostingFailureRepository, logger *zap.Logger) *RecordingFailureHook {
	return &RecordingFailureHook{repo: repo, logger: logger}
}

func (h *RecordingFailureHook) OnFailure(ctx context.Context, attempt PostingAttempt, err error) {
	code := "INTERNAL"
	var de *shared.DomainError
	if errors.As(err, &de) {
		code = de.Code
	}
	h.logger.Error("journal posting failed",
		zap.String("tenant_id", attempt.TenantID.String()),
		zap.String("event_id", attempt.EventID.String()),
		zap.String("event_type", attempt.EventType),
		zap.String("reference_type", attempt.ReferenceType),
		zap.String("reference_id", attempt.ReferenceID),
		zap.String("error_code", code),
		zap.Error(err),
	)
	if h.repo == nil {
		return
	}
	failure := ledger.NewPostingFailure(attempt.TenantID, attempt.EventID, attempt.EventType,
		attempt.ReferenceType, attempt.ReferenceID, code, err.Error())
	// the generator's context may already be cancelled; the record must still land
	if rerr := h.repo.Record(context.WithoutCancel(ctx), failure); rerr != nil {
		h.logger.Error("failed to record posting failure",
			zap.String("reference_id", attempt.ReferenceID),
			zap.Error(rerr),
		)
	}
}

func (h *RecordingFailureHook) OnSuccess(ctx context.Context, attempt PostingAttempt) {
	if h.repo == nil {
		return
	}
	if err := h.repo.MarkResolved(ctx, attempt.EventID, time.Now().UTC()); err != nil {
		h.logger.Warn("failed to resolve posting failure",
			zap.String("event_id", attempt.EventID.String()),
			zap.Error(err),
		)
	}
}

// LoggingFailureHook only logs. It is used when no failure table is wired.
type LoggingFailureHook struct {
	logger *zap.Logger
}

func NewLoggingFailureHook(logger *zap.Logger) *LoggingFailureHook {
	return &LoggingFailureHook{logger: logger}
}

func (h *LoggingFailureHook) OnFailure(_ context.Context, attempt PostingAttempt, err error) {
	h.logger.Error("journal posting failed",
		zap.String("tenant_id", attempt.TenantID.String()),
		zap.String("event_type", attempt.EventType),
		zap.String("reference_id", attempt.ReferenceID),
		zap.Error(err),
	)
}

func (h *LoggingFailureHook) OnSuccess(context.Context, PostingAttempt) {}

var (
	_ FailureHook = (*RecordingFailureHook)(nil)
	_ FailureHook = (*LoggingFailureHook)(nil)
)
