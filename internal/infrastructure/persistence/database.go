package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database is the GORM handle the repositories share together with the
// pool underneath it.
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

// NewDatabase opens the Postgres pool and verifies it answers. Lock and
// statement timeouts from cfg travel in the DSN as session parameters, so
// a posting stuck behind a period close fails with 55P03 instead of
// waiting forever.
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger, logLevel gormlogger.LogLevel) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 logger.NewGormLogger(log, logLevel),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d, err := wrap(db)
	if err != nil {
		return nil, err
	}
	d.sql.SetMaxOpenConns(cfg.MaxOpenConns)
	d.sql.SetMaxIdleConns(cfg.MaxIdleConns)
	d.sql.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	d.sql.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := d.sql.Ping(); err != nil {
		_ = d.sql.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connected",
		zap.String("database", cfg.DBName),
		zap.Duration("lock_timeout", cfg.LockTimeout),
		zap.Duration("statement_timeout", cfg.StatementTimeout),
	)
	return d, nil
}

func wrap(db *gorm.DB) (*Database, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return &Database{DB: db, sql: sqlDB}, nil
}

// SQL exposes the pool for metrics and migrations.
func (d *Database) SQL() *sql.DB { return d.sql }

// Ping reports whether the pool can reach Postgres. It doubles as the
// readiness check of the server.
func (d *Database) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *Database) Close() error {
	return d.sql.Close()
}
