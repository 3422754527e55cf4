package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/spf13/cobra"
)

type appNode = appledger.AccountNode

type accountView struct {
	ID            string        `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	NormalBalance string        `json:"normal_balance"`
	Status        string        `json:"status"`
	IsSystem      bool          `json:"is_system"`
	Children      []accountView `json:"children,omitempty"`
}

func toAccountView(a *ledger.Account) accountView {
	return accountView{
		ID:            a.ID.String(),
		Code:          a.Code,
		Name:          a.Name,
		Type:          string(a.Type),
		NormalBalance: string(a.NormalBalance),
		Status:        string(a.Status),
		IsSystem:      a.IsSystem,
	}
}

func toAccountTree(nodes []*appNode) []accountView {
	out := make([]accountView, 0, len(nodes))
	for _, n := range nodes {
		v := toAccountView(n.Account)
		v.Children = toAccountTree(n.Children)
		out = append(out, v)
	}
	return out
}

func (c *cli) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and maintain the chart of accounts",
	}

	treeCmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the chart of accounts as a tree",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, s *session, _ []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			roots, err := s.ledger.Accounts.Tree(ctx, tenantID)
			if err != nil {
				return err
			}
			views := toAccountTree(roots)
			return c.render(views, func(w io.Writer) {
				fmt.Fprintln(w, "CODE\tNAME\tTYPE\tSTATUS")
				writeAccountTree(w, views, 0)
			})
		}),
	}

	deactivateCmd := &cobra.Command{
		Use:   "deactivate <code>",
		Short: "Mark a non-system account inactive",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, s *session, args []string) error {
			tenantID, err := c.tenantID()
			if err != nil {
				return err
			}
			acc, err := s.ledger.Accounts.GetByCode(ctx, tenantID, args[0])
			if err != nil {
				return err
			}
			acc, err = s.ledger.Accounts.Deactivate(ctx, tenantID, acc.ID)
			if err != nil {
				return err
			}
			v := toAccountView(acc)
			return c.render(v, func(w io.Writer) {
				fmt.Fprintf(w, "Account %s (%s) is now %s\n", v.Code, v.Name, v.Status)
			})
		}),
	}

	cmd.AddCommand(treeCmd, deactivateCmd)
	return cmd
}

func writeAccountTree(w io.Writer, views []accountView, depth int) {
	for _, v := range views {
		marker := ""
		if v.IsSystem {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%s%s\t%s\t%s\n", strings.Repeat("  ", depth), v.Code, v.Name, marker, v.Type, v.Status)
		writeAccountTree(w, v.Children, depth+1)
	}
}
