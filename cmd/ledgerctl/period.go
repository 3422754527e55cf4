package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/spf13/cobra"
)

type periodView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Status      string `json:"status"`
	ClosedAt    string `json:"closed_at,omitempty"`
	ClosedBy    string `json:"closed_by,omitempty"`
}

func toPeriodView(p *ledger.FiscalPeriod) periodView {
	v := periodView{
		ID:          p.ID.String(),
		Name:        p.Name,
		PeriodStart: p.PeriodStart.Format(time.DateOnly),
		PeriodEnd:   p.PeriodEnd.Format(time.DateOnly),
		Status:      string(p.Status),
		ClosedBy:    p.ClosedBy,
	}
	if p.ClosedAt != nil {
		v.ClosedAt = formatTime(p.ClosedAt)
	}
	return v
}

func (c *cli) periodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Manage fiscal periods",
	}

	var name, start, end string
	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open a fiscal period",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, s *session, _ []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			from, err := parseDate("start", start)
			if err != nil {
				return err
			}
			to, err := parseDate("end", end)
			if err != nil {
				return err
			}
			p, err := s.ledger.Periods.OpenPeriod(ctx, tenantID, name, from, to)
			if err != nil {
				return err
			}
			return c.printPeriods([]*ledger.FiscalPeriod{p})
		}),
	}
	openCmd.Flags().StringVar(&name, "name", "", "Period name (default: YYYY-MM of the start date)")
	openCmd.Flags().StringVar(&start, "start", "", "First day, YYYY-MM-DD")
	openCmd.Flags().StringVar(&end, "end", "", "Last day, YYYY-MM-DD")
	_ = openCmd.MarkFlagRequired("start")
	_ = openCmd.MarkFlagRequired("end")

	var actor string
	closeCmd := &cobra.Command{
		Use:   "close <period-id>",
		Short: "Close a fiscal period; entries dated inside it are rejected afterwards",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			periodID, err := parseID("period id", args[0])
			if err != nil {
				return err
			}
			p, err := s.ledger.Periods.Close(ctx, tenantID, periodID, actor)
			if err != nil {
				return err
			}
			return c.printPeriods([]*ledger.FiscalPeriod{p})
		}),
	}
	closeCmd.Flags().StringVar(&actor, "actor", "ledgerctl", "Recorded as closed_by")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the tenant's fiscal periods",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, s *session, _ []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			periods, err := s.ledger.Periods.ListPeriods(ctx, tenantID)
			if err != nil {
				return err
			}
			return c.printPeriods(periods)
		}),
	}

	cmd.AddCommand(openCmd, closeCmd, listCmd)
	return cmd
}

func (c *cli) printPeriods(periods []*ledger.FiscalPeriod) error {
	views := make([]periodView, 0, len(periods))
	for _, p := range periods {
		views = append(views, toPeriodView(p))
	}
	return c.render(views, func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tSTATUS\tCLOSED BY")
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", v.ID, v.Name, v.PeriodStart, v.PeriodEnd, v.Status, v.ClosedBy)
		}
	})
}
