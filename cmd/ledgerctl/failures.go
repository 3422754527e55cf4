package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type failureView struct {
	EventID       string `json:"event_id"`
	EventType     string `json:"event_type"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	ErrorCode     string `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
	Attempts      int    `json:"attempts"`
	LastFailedAt  string `json:"last_failed_at"`
}

func (c *cli) failuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Review upstream events that could not be posted",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List unresolved posting failures, most recent first",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, s *session, _ []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			failures, err := s.ledger.Failures.FindUnresolved(ctx, tenantID, limit)
			if err != nil {
				return err
			}
			views := make([]failureView, 0, len(failures))
			for _, f := range failures {
				views = append(views, failureView{
					EventID:       f.EventID.String(),
					EventType:     f.EventType,
					ReferenceType: f.ReferenceType,
					ReferenceID:   f.ReferenceID,
					ErrorCode:     f.ErrorCode,
					ErrorMessage:  f.ErrorMessage,
					Attempts:      f.Attempts,
					LastFailedAt:  formatTime(&f.LastFailedAt),
				})
			}
			return c.render(views, func(w io.Writer) {
				fmt.Fprintln(w, "EVENT\tTYPE\tREFERENCE\tCODE\tATTEMPTS\tMESSAGE")
				for _, v := range views {
					fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s\t%d\t%s\n", v.EventID, v.EventType, v.ReferenceType, v.ReferenceID, v.ErrorCode, v.Attempts, v.ErrorMessage)
				}
			})
		}),
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of records")

	resolveCmd := &cobra.Command{
		Use:   "resolve <event-id>",
		Short: "Mark the failure recorded for an event as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			eventID, err := parseID("event id", args[0])
			if err != nil {
				return err
			}
			if err := s.ledger.Failures.MarkResolved(ctx, eventID, time.Now().UTC()); err != nil {
				return err
			}
			return c.render(map[string]string{"event_id": eventID.String(), "status": "resolved"}, func(w io.Writer) {
				fmt.Fprintf(w, "Failure for event %s resolved\n", eventID)
			})
		}),
	}

	cmd.AddCommand(listCmd, resolveCmd)
	return cmd
}
