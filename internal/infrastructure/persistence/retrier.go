package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// PostgreSQL error codes for retryable errors.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// pgErrExclusionViolation is raised by EXCLUDE constraints.
const pgErrExclusionViolation = "23P01"

// Retrier re-runs an operation with exponential backoff when Postgres
// reports a deadlock or a serialization failure. Any other error is
// returned on the first attempt.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          *zap.Logger
}

// NewRetrier creates a retrier. maxRetries of 0 disables retrying.
func NewRetrier(maxRetries int, initialInterval time.Duration, logger *zap.Logger) *Retrier {
	if initialInterval <= 0 {
		initialInterval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		maxRetries:      maxRetries,
		initialInterval: initialInterval,
		maxInterval:     time.Second,
		maxElapsedTime:  10 * time.Second,
		logger:          logger,
	}
}

// Retry executes operation until it succeeds, fails permanently, or the
// retry budget is spent.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0
	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		retryCount++
		if retryCount > r.maxRetries {
			return backoff.Permanent(err)
		}
		r.logger.Warn("Retryable database error, retrying transaction",
			zap.Error(err),
			zap.Int("retry", retryCount),
		)
		return err
	}, backoff.WithContext(b, ctx))
}

func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure:
			return true
		}
	}
	return false
}
