package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountService maintains the chart of accounts hierarchy.
type AccountService struct {
	scope    TransactionScope
	resolver *AccountResolver
	logger   *zap.Logger
}

func NewAccountService(scope TransactionScope, resolver *AccountResolver, logger *zap.Logger) *AccountService {
	return &AccountService{scope: scope, resolver: resolver, logger: logger}
}

// AccountNode is an account with its children, as returned by Tree.
type AccountNode struct {
	Account  *ledger.Account
	Children []*AccountNode
}

// CreateAccountRequest describes a user-maintained account.
type CreateAccountRequest struct {
	Code     string
	Name     string
	Type     ledger.AccountType
	Subtype  string
	ParentID *uuid.UUID
}

// CreateAccount adds an account, optionally under a parent.
func (s *AccountService) CreateAccount(ctx context.Context, tenantID uuid.UUID, req CreateAccountRequest) (*ledger.Account, error) {
	acc, err := ledger.NewAccount(tenantID, req.Code, req.Name, req.Type, req.Subtype)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if req.ParentID != nil {
			parent, err := repos.AccountRepo().FindByID(ctx, tenantID, *req.ParentID)
			if err != nil {
				return err
			}
			pid := parent.ID
			acc.ParentID = &pid
		}
		created, err := repos.AccountRepo().CreateIfAbsent(ctx, acc)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		if !created {
			return ledger.ErrValidation.Newf("account code %s already exists", acc.Code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// FindOrCreate exposes the resolver as a standalone transactional operation.
func (s *AccountService) FindOrCreate(ctx context.Context, tenantID uuid.UUID, code string, defaults ledger.AccountDefaults) (*ledger.Account, error) {
	var acc *ledger.Account
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		acc, err = s.resolver.FindOrCreate(ctx, repos.AccountRepo(), tenantID, code, defaults)
		return err
	})
	return acc, err
}

// MoveAccount re-parents an account. A nil parentID makes it a root.
func (s *AccountService) MoveAccount(ctx context.Context, tenantID, accountID uuid.UUID, parentID *uuid.UUID) (*ledger.Account, error) {
	var moved *ledger.Account
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.AccountRepo().LockChart(ctx, tenantID); err != nil {
			return fmt.Errorf("failed to lock chart of accounts: %w", err)
		}
		accounts, err := repos.AccountRepo().FindAllForTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		idx := indexAccounts(accounts)
		acc, ok := idx[accountID]
		if !ok {
			return ledger.ErrAccountNotFound.Newf("account %s not found", accountID)
		}
		var parent *ledger.Account
		var ancestry []uuid.UUID
		if parentID != nil {
			parent, ok = idx[*parentID]
			if !ok {
				return ledger.ErrAccountNotFound.Newf("parent account %s not found", *parentID)
			}
			ancestry = append([]uuid.UUID{parent.ID}, ancestorIDs(idx, parent)...)
		}
		if err := acc.MoveUnder(parent, ancestry); err != nil {
			return err
		}
		if err := repos.AccountRepo().Save(ctx, acc); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		moved = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("account moved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_code", moved.Code),
	)
	return moved, nil
}

// GetByCode loads one account of the tenant by its code.
func (s *AccountService) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ledger.Account, error) {
	var acc *ledger.Account
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		acc, err = repos.AccountRepo().FindByCode(ctx, tenantID, strings.TrimSpace(code))
		return err
	})
	return acc, err
}

// Ancestors returns the parent chain of an account, nearest first.
func (s *AccountService) Ancestors(ctx context.Context, tenantID, accountID uuid.UUID) ([]*ledger.Account, error) {
	var out []*ledger.Account
	err := s.withIndex(ctx, tenantID, func(idx map[uuid.UUID]*ledger.Account) error {
		acc, ok := idx[accountID]
		if !ok {
			return ledger.ErrAccountNotFound.Newf("account %s not found", accountID)
		}
		for _, id := range ancestorIDs(idx, acc) {
			out = append(out, idx[id])
		}
		return nil
	})
	return out, err
}

// Descendants returns every account below accountID, breadth first.
func (s *AccountService) Descendants(ctx context.Context, tenantID, accountID uuid.UUID) ([]*ledger.Account, error) {
	var out []*ledger.Account
	err := s.withIndex(ctx, tenantID, func(idx map[uuid.UUID]*ledger.Account) error {
		if _, ok := idx[accountID]; !ok {
			return ledger.ErrAccountNotFound.Newf("account %s not found", accountID)
		}
		children := childrenIndex(idx)
		queue := []uuid.UUID{accountID}
		seen := map[uuid.UUID]bool{accountID: true}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, c := range children[id] {
				if seen[c.ID] {
					continue
				}
				seen[c.ID] = true
				out = append(out, c)
				queue = append(queue, c.ID)
			}
		}
		return nil
	})
	return out, err
}

// Tree returns the tenant's chart of accounts as a forest ordered by code.
func (s *AccountService) Tree(ctx context.Context, tenantID uuid.UUID) ([]*AccountNode, error) {
	var roots []*AccountNode
	err := s.withIndex(ctx, tenantID, func(idx map[uuid.UUID]*ledger.Account) error {
		children := childrenIndex(idx)
		var build func(acc *ledger.Account) *AccountNode
		build = func(acc *ledger.Account) *AccountNode {
			node := &AccountNode{Account: acc}
			for _, c := range children[acc.ID] {
				node.Children = append(node.Children, build(c))
			}
			return node
		}
		for _, acc := range sortedByCode(idx) {
			if acc.ParentID == nil {
				roots = append(roots, build(acc))
			} else if _, ok := idx[*acc.ParentID]; !ok {
				roots = append(roots, build(acc))
			}
		}
		return nil
	})
	return roots, err
}

// Deactivate marks a non-system account inactive.
func (s *AccountService) Deactivate(ctx context.Context, tenantID, accountID uuid.UUID) (*ledger.Account, error) {
	return s.mutate(ctx, tenantID, accountID, (*ledger.Account).Deactivate)
}

// Activate re-enables an inactive account.
func (s *AccountService) Activate(ctx context.Context, tenantID, accountID uuid.UUID) (*ledger.Account, error) {
	return s.mutate(ctx, tenantID, accountID, (*ledger.Account).Activate)
}

// Delete removes an account that is neither a system account, a parent,
// nor referenced by any journal line.
func (s *AccountService) Delete(ctx context.Context, tenantID, accountID uuid.UUID) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		acc, err := repos.AccountRepo().FindByID(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		used, err := repos.AccountRepo().HasLines(ctx, tenantID, accountID)
		if err != nil {
			return fmt.Errorf("failed to check account usage: %w", err)
		}
		children, err := repos.AccountRepo().FindChildren(ctx, tenantID, accountID)
		if err != nil {
			return fmt.Errorf("failed to load child accounts: %w", err)
		}
		if err := acc.EnsureDeletable(used, len(children) > 0); err != nil {
			return err
		}
		return repos.AccountRepo().Delete(ctx, tenantID, accountID)
	})
}

func (s *AccountService) mutate(ctx context.Context, tenantID, accountID uuid.UUID, apply func(*ledger.Account) error) (*ledger.Account, error) {
	var acc *ledger.Account
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		a, err := repos.AccountRepo().FindByID(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		if err := apply(a); err != nil {
			return err
		}
		if err := repos.AccountRepo().Save(ctx, a); err != nil {
			return fmt.Errorf("failed to save account: %w", err)
		}
		acc = a
		return nil
	})
	return acc, err
}

func (s *AccountService) withIndex(ctx context.Context, tenantID uuid.UUID, fn func(map[uuid.UUID]*ledger.Account) error) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		accounts, err := repos.AccountRepo().FindAllForTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		return fn(indexAccounts(accounts))
	})
}

func indexAccounts(accounts []*ledger.Account) map[uuid.UUID]*ledger.Account {
	idx := make(map[uuid.UUID]*ledger.Account, len(accounts))
	for _, a := range accounts {
		idx[a.ID] = a
	}
	return idx
}

// ancestorIDs walks parent links upward. The visited set stops the walk on
// rows that predate write-time cycle checks.
func ancestorIDs(idx map[uuid.UUID]*ledger.Account, acc *ledger.Account) []uuid.UUID {
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{acc.ID: true}
	for cur := acc; cur.ParentID != nil; {
		parent, ok := idx[*cur.ParentID]
		if !ok || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		ids = append(ids, parent.ID)
		cur = parent
	}
	return ids
}

func childrenIndex(idx map[uuid.UUID]*ledger.Account) map[uuid.UUID][]*ledger.Account {
	children := make(map[uuid.UUID][]*ledger.Account)
	for _, acc := range sortedByCode(idx) {
		if acc.ParentID != nil {
			children[*acc.ParentID] = append(children[*acc.ParentID], acc)
		}
	}
	return children
}

func sortedByCode(idx map[uuid.UUID]*ledger.Account) []*ledger.Account {
	out := make([]*ledger.Account, 0, len(idx))
	for _, a := range idx {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
