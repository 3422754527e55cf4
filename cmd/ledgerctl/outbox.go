package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	appevent "github.com/erp/ledger/internal/application/event"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// scopeTenant returns the --tenant value, or uuid.Nil for every tenant.
func (c *cli) scopeTenant() (uuid.UUID, error) {
	if c.opts.tenant == "" {
		return uuid.Nil, nil
	}
	return c.tenantID()
}

func (c *cli) outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay the event outbox",
		Long: `Outbox commands span every tenant unless --tenant is given. Dead entries
are events, mostly upstream events a journal generator kept rejecting, that
used up their retry budget.`,
	}

	var page, pageSize int
	var eventType string
	deadCmd := &cobra.Command{
		Use:   "dead",
		Short: "List dead-lettered outbox entries",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, s *session, _ []string) error {
			tenantID, err := c.scopeTenant()
			if err != nil {
				return err
			}
			result, err := s.ledger.Outbox.DeadLetters(ctx, appevent.DeadLetterFilter{
				TenantID:  tenantID,
				EventType: eventType,
				Page:      page,
				PageSize:  pageSize,
			})
			if err != nil {
				return err
			}
			return c.render(result, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tEVENT TYPE\tTENANT\tRETRIES\tLAST ERROR")
				for _, e := range result.Entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n", e.ID, e.EventType, e.TenantID, e.RetryCount, e.MaxRetries, e.LastError)
				}
				fmt.Fprintf(w, "\npage %d of %d, %d dead entries\n", result.Page, max(result.TotalPages, 1), result.Total)
			})
		}),
	}
	deadCmd.Flags().IntVar(&page, "page", 1, "Page number")
	deadCmd.Flags().IntVar(&pageSize, "page-size", 20, "Entries per page")
	deadCmd.Flags().StringVar(&eventType, "event-type", "", "Only entries of this event type")

	showCmd := &cobra.Command{
		Use:   "show <outbox-id>",
		Short: "Show one outbox entry with its payload",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			entry, err := c.outboxEntry(ctx, s, args[0])
			if err != nil {
				return err
			}
			return c.render(entry, func(w io.Writer) {
				fmt.Fprintf(w, "ID\t%s\n", entry.ID)
				fmt.Fprintf(w, "Event\t%s %s\n", entry.EventType, entry.EventID)
				fmt.Fprintf(w, "Tenant\t%s\n", entry.TenantID)
				fmt.Fprintf(w, "Status\t%s (%d/%d attempts)\n", entry.Status, entry.RetryCount, entry.MaxRetries)
				if entry.LastError != "" {
					fmt.Fprintf(w, "Last error\t%s\n", entry.LastError)
				}
				fmt.Fprintf(w, "Payload\t%s\n", entry.Payload)
			})
		}),
	}

	var all bool
	var retryType string
	retryCmd := &cobra.Command{
		Use:   "retry [outbox-id]",
		Short: "Send a dead entry, or with --all every dead entry, back to pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			switch {
			case all && len(args) == 0:
				tenantID, err := c.scopeTenant()
				if err != nil {
					return err
				}
				n, err := s.ledger.Outbox.ReplayAll(ctx, appevent.DeadLetterFilter{TenantID: tenantID, EventType: retryType})
				if err != nil {
					return err
				}
				return c.render(map[string]int64{"count": n}, func(w io.Writer) {
					fmt.Fprintf(w, "%d dead entries queued for retry\n", n)
				})
			case !all && len(args) == 1:
				target, err := c.outboxEntry(ctx, s, args[0])
				if err != nil {
					return err
				}
				entry, err := s.ledger.Outbox.Replay(ctx, target.ID)
				if err != nil {
					return err
				}
				return c.render(entry, func(w io.Writer) {
					fmt.Fprintf(w, "Outbox entry %s (%s) is now %s\n", entry.ID, entry.EventType, entry.Status)
				})
			default:
				return errors.New("pass either an outbox id or --all")
			}
		}),
	}
	retryCmd.Flags().BoolVar(&all, "all", false, "Retry every dead entry")
	retryCmd.Flags().StringVar(&retryType, "event-type", "", "With --all, only entries of this event type")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Count outbox entries by status",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, s *session, _ []string) error {
			tenantID, err := c.scopeTenant()
			if err != nil {
				return err
			}
			stats, err := s.ledger.Outbox.Stats(ctx, tenantID)
			if err != nil {
				return err
			}
			return c.render(stats, func(w io.Writer) {
				fmt.Fprintln(w, "PENDING\tPROCESSING\tSENT\tFAILED\tDEAD\tTOTAL")
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\n", stats.Pending, stats.Processing, stats.Sent, stats.Failed, stats.Dead, stats.Total)
			})
		}),
	}

	cmd.AddCommand(deadCmd, showCmd, retryCmd, statsCmd)
	return cmd
}

// outboxEntry loads an entry and hides it when it belongs to a tenant other
// than --tenant.
func (c *cli) outboxEntry(ctx context.Context, s *session, raw string) (*appevent.OutboxEntryDTO, error) {
	id, err := parseID("outbox id", raw)
	if err != nil {
		return nil, err
	}
	tenantID, err := c.scopeTenant()
	if err != nil {
		return nil, err
	}
	entry, err := s.ledger.Outbox.Entry(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenantID != uuid.Nil && entry.TenantID != tenantID {
		return nil, fmt.Errorf("outbox entry %s belongs to another tenant", id)
	}
	return entry, nil
}
