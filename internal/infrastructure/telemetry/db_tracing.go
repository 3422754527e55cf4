package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls GORM query spans.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBName          string
}

// RegisterDBTracing installs otelgorm and a slow-query annotator on db.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	thresh := cfg.SlowQueryThresh
	if thresh <= 0 {
		thresh = 200 * time.Millisecond
	}
	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { annotateQuery(tx, thresh) }

	cb := db.Callback()
	regs := []error{
		cb.Create().Before("gorm:create").Register("ledger_timing:before_create", before),
		cb.Create().After("gorm:create").Register("ledger_timing:after_create", after),
		cb.Query().Before("gorm:query").Register("ledger_timing:before_query", before),
		cb.Query().After("gorm:query").Register("ledger_timing:after_query", after),
		cb.Update().Before("gorm:update").Register("ledger_timing:before_update", before),
		cb.Update().After("gorm:update").Register("ledger_timing:after_update", after),
		cb.Delete().Before("gorm:delete").Register("ledger_timing:before_delete", before),
		cb.Delete().After("gorm:delete").Register("ledger_timing:after_delete", after),
		cb.Row().Before("gorm:row").Register("ledger_timing:before_row", before),
		cb.Row().After("gorm:row").Register("ledger_timing:after_row", after),
		cb.Raw().Before("gorm:raw").Register("ledger_timing:before_raw", before),
		cb.Raw().After("gorm:raw").Register("ledger_timing:after_raw", after),
	}
	if err := errors.Join(regs...); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", thresh),
	)
	return nil
}

type queryStartKey struct{}

func annotateQuery(tx *gorm.DB, thresh time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > thresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
