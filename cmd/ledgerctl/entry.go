package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type entryView struct {
	ID             string     `json:"id"`
	EntryNumber    string     `json:"entry_number"`
	EntryType      string     `json:"entry_type"`
	ReferenceType  string     `json:"reference_type,omitempty"`
	ReferenceID    string     `json:"reference_id,omitempty"`
	EntryDate      string     `json:"entry_date"`
	FiscalPeriodID string     `json:"fiscal_period_id"`
	Status         string     `json:"status"`
	IsReversed     bool       `json:"is_reversed"`
	ReversalOfID   string     `json:"reversal_of_id,omitempty"`
	Description    string     `json:"description,omitempty"`
	PostedAt       string     `json:"posted_at,omitempty"`
	PostedBy       string     `json:"posted_by,omitempty"`
	TotalDebit     string     `json:"total_debit"`
	TotalCredit    string     `json:"total_credit"`
	Lines          []lineView `json:"lines"`
}

type lineView struct {
	LineNo      int    `json:"line_no"`
	AccountID   string `json:"account_id"`
	AccountCode string `json:"account_code,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Description string `json:"description,omitempty"`
}

func toEntryView(e *ledger.JournalEntry, codes map[uuid.UUID]string) entryView {
	v := entryView{
		ID:             e.ID.String(),
		EntryNumber:    e.EntryNumber,
		EntryType:      string(e.EntryType),
		ReferenceType:  e.ReferenceType,
		ReferenceID:    e.ReferenceID,
		EntryDate:      e.EntryDate.Format(time.DateOnly),
		FiscalPeriodID: e.FiscalPeriodID.String(),
		Status:         string(e.Status),
		IsReversed:     e.IsReversed,
		Description:    e.Description,
		PostedBy:       e.PostedBy,
		TotalDebit:     formatAmount(e.TotalDebit()),
		TotalCredit:    formatAmount(e.TotalCredit()),
		Lines:          make([]lineView, 0, len(e.Lines)),
	}
	if e.ReversalOfID != nil {
		v.ReversalOfID = e.ReversalOfID.String()
	}
	if e.PostedAt != nil {
		v.PostedAt = formatTime(e.PostedAt)
	}
	for _, l := range e.Lines {
		v.Lines = append(v.Lines, lineView{
			LineNo:      l.LineNo,
			AccountID:   l.AccountID.String(),
			AccountCode: codes[l.AccountID],
			Debit:       formatAmount(l.DebitAmount),
			Credit:      formatAmount(l.CreditAmount),
			Description: l.Description,
		})
	}
	return v
}

func (c *cli) entryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Inspect, post and reverse journal entries",
	}

	var reference string
	showCmd := &cobra.Command{
		Use:   "show [entry-id]",
		Short: "Show an entry with its lines",
		Long:  "Show an entry by id, or with --reference <type>/<id> the entry posted for an upstream document.",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			var entry *ledger.JournalEntry
			switch {
			case len(args) == 1 && reference == "":
				entryID, err := parseID("entry id", args[0])
				if err != nil {
					return err
				}
				entry, err = s.ledger.Posting.GetEntry(ctx, tenantID, entryID)
				if err != nil {
					return err
				}
			case len(args) == 0 && reference != "":
				refType, refID, ok := strings.Cut(reference, "/")
				if !ok || refType == "" || refID == "" {
					return fmt.Errorf("--reference must be <type>/<id>, got %q", reference)
				}
				entry, err = s.ledger.Posting.GetEntryByReference(ctx, tenantID, refType, refID)
				if err != nil {
					return err
				}
			default:
				return errors.New("pass either an entry id or --reference")
			}
			return c.printEntry(ctx, s, tenantID, entry)
		}),
	}
	showCmd.Flags().StringVar(&reference, "reference", "", "Look up by <reference_type>/<reference_id>")

	var postActor string
	postCmd := &cobra.Command{
		Use:   "post <entry-id>",
		Short: "Post a draft or pending entry",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			entryID, err := parseID("entry id", args[0])
			if err != nil {
				return err
			}
			entry, err := s.ledger.Posting.PostEntry(ctx, tenantID, entryID, postActor)
			if err != nil {
				return err
			}
			return c.printEntry(ctx, s, tenantID, entry)
		}),
	}
	postCmd.Flags().StringVar(&postActor, "actor", "ledgerctl", "Recorded as posted_by")

	var reverseActor, reverseDate string
	reverseCmd := &cobra.Command{
		Use:   "reverse <entry-id>",
		Short: "Post the mirror of a posted entry and mark the source reversed",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			entryID, err := parseID("entry id", args[0])
			if err != nil {
				return err
			}
			date := ledger.DateOf(time.Now().UTC())
			if reverseDate != "" {
				if date, err = parseDate("date", reverseDate); err != nil {
					return err
				}
			}
			mirror, err := s.ledger.Posting.ReverseEntry(ctx, tenantID, entryID, date, reverseActor)
			if err != nil {
				return err
			}
			return c.printEntry(ctx, s, tenantID, mirror)
		}),
	}
	reverseCmd.Flags().StringVar(&reverseDate, "date", "", "Reversal date, YYYY-MM-DD (default: today)")
	reverseCmd.Flags().StringVar(&reverseActor, "actor", "ledgerctl", "Recorded as posted_by of the mirror entry")

	cmd.AddCommand(showCmd, postCmd, reverseCmd)
	return cmd
}

func (c *cli) printEntry(ctx context.Context, s *session, tenantID uuid.UUID, entry *ledger.JournalEntry) error {
	codes, err := accountCodes(ctx, s, tenantID)
	if err != nil {
		return err
	}
	v := toEntryView(entry, codes)
	return c.render(v, func(w io.Writer) {
		fmt.Fprintf(w, "Entry:\t%s (%s)\n", v.EntryNumber, v.ID)
		fmt.Fprintf(w, "Type:\t%s\n", v.EntryType)
		if v.ReferenceType != "" {
			fmt.Fprintf(w, "Reference:\t%s/%s\n", v.ReferenceType, v.ReferenceID)
		}
		fmt.Fprintf(w, "Date:\t%s\n", v.EntryDate)
		fmt.Fprintf(w, "Status:\t%s\n", v.Status)
		if v.ReversalOfID != "" {
			fmt.Fprintf(w, "Reverses:\t%s\n", v.ReversalOfID)
		}
		if v.Description != "" {
			fmt.Fprintf(w, "Description:\t%s\n", v.Description)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "LINE\tACCOUNT\tDEBIT\tCREDIT\tDESCRIPTION")
		for _, l := range v.Lines {
			account := l.AccountCode
			if account == "" {
				account = l.AccountID
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", l.LineNo, account, l.Debit, l.Credit, l.Description)
		}
		fmt.Fprintf(w, "\tTOTAL\t%s\t%s\t\n", v.TotalDebit, v.TotalCredit)
	})
}

// accountCodes maps account ids to codes for display.
func accountCodes(ctx context.Context, s *session, tenantID uuid.UUID) (map[uuid.UUID]string, error) {
	roots, err := s.ledger.Accounts.Tree(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	codes := make(map[uuid.UUID]string)
	var walk func(nodes []*appNode)
	walk = func(nodes []*appNode) {
		for _, n := range nodes {
			codes[n.Account.ID] = n.Account.Code
			walk(n.Children)
		}
	}
	walk(roots)
	return codes, nil
}
