package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/erp/ledger/internal/bootstrap"
	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type options struct {
	configPath string
	tenant     string
	output     string
	logLevel   string
	timeout    time.Duration
}

// session is one database connection with the ledger services on top.
type session struct {
	ledger *bootstrap.Ledger
	db     *gorm.DB
	close  func() error
}

type opener func(ctx context.Context, opts *options) (*session, error)

type cli struct {
	opts options
	open opener
	out  io.Writer
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	c := &cli{open: open, out: out}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the double-entry posting engine",
		Long:          `ledgerctl manages fiscal periods, journal entries, the chart of accounts and the event outbox of the ledger database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "Path to a config.toml (default: ./config.toml plus ERP_* variables)")
	flags.StringVar(&c.opts.tenant, "tenant", os.Getenv("LEDGER_TENANT_ID"), "Tenant id (env LEDGER_TENANT_ID)")
	flags.StringVarP(&c.opts.output, "output", "o", outputText, "Output format: text or json")
	flags.StringVar(&c.opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.DurationVar(&c.opts.timeout, "timeout", 30*time.Second, "Overall command timeout")

	root.AddCommand(
		c.periodCmd(),
		c.entryCmd(),
		c.accountCmd(),
		c.outboxCmd(),
		c.failuresCmd(),
		c.eventsCmd(),
	)
	return root
}

// run opens a session for the duration of one command.
func (c *cli) run(fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if c.opts.output != outputText && c.opts.output != outputJSON {
			return fmt.Errorf("unknown output format %q", c.opts.output)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), c.opts.timeout)
		defer cancel()

		s, err := c.open(ctx, &c.opts)
		if err != nil {
			return err
		}
		defer func() { _ = s.close() }()
		return fn(ctx, s, args)
	}
}

func (c *cli) tenantID() (uuid.UUID, error) {
	if c.opts.tenant == "" {
		return uuid.Nil, errors.New("--tenant is required")
	}
	id, err := uuid.Parse(c.opts.tenant)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid tenant id %q", c.opts.tenant)
	}
	return id, nil
}

// render writes v as JSON, or calls text with a tab-aligned writer.
func (c *cli) render(v any, text func(w io.Writer)) error {
	if c.opts.output == outputJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

func openSession(ctx context.Context, opts *options) (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{Level: opts.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(opts.logLevel))
	if err != nil {
		return nil, err
	}
	l, err := bootstrap.NewLedger(cfg, db.DB, nil, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("invalid ledger configuration: %w", err)
	}
	return &session{
		ledger: l,
		db:     db.DB.WithContext(ctx),
		close: func() error {
			_ = log.Sync()
			return db.Close()
		},
	}, nil
}

func parseDate(flag, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD, got %q", flag, value)
	}
	return t, nil
}

func parseID(what, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", what, value)
	}
	return id, nil
}

// formatAmount prints two decimals unless the amount carries more.
func formatAmount(d decimal.Decimal) string {
	if d.Equal(d.Round(2)) {
		return d.StringFixed(2)
	}
	return d.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
