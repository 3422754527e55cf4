package ledger

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountType is the top-level classification of a chart-of-accounts node.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// NormalBalance returns the side on which the account type increases.
func (t AccountType) NormalBalance() NormalBalance {
	if t == AccountTypeAsset || t == AccountTypeExpense {
		return NormalBalanceDebit
	}
	return NormalBalanceCredit
}

// NormalBalance is the side (debit or credit) on which an account increases.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "debit"
	NormalBalanceCredit NormalBalance = "credit"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// AccountDefaults describes the account created when a code is resolved
// for the first time.
type AccountDefaults struct {
	Name    string
	Type    AccountType
	Subtype string
}

// Account is a node in a tenant's chart of accounts.
type Account struct {
	shared.TenantAggregateRoot
	Code          string
	Name          string
	Type          AccountType
	Subtype       string
	NormalBalance NormalBalance
	ParentID      *uuid.UUID
	IsSystem      bool
	Status        AccountStatus
}

// NewAccount creates a user-maintained account.
func NewAccount(tenantID uuid.UUID, code, name string, accountType AccountType, subtype string) (*Account, error) {
	code = strings.TrimSpace(code)
	if tenantID == uuid.Nil {
		return nil, validationf("tenant id is required")
	}
	if code == "" {
		return nil, validationf("account code cannot be empty")
	}
	if len(code) > 32 {
		return nil, validationf("account code %q exceeds 32 characters", code)
	}
	if strings.TrimSpace(name) == "" {
		return nil, validationf("account name cannot be empty")
	}
	if !accountType.IsValid() {
		return nil, validationf("invalid account type %q", accountType)
	}
	return &Account{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		Type:                accountType,
		Subtype:             subtype,
		NormalBalance:       accountType.NormalBalance(),
		Status:              AccountStatusActive,
	}, nil
}

// NewSystemAccount creates an account on behalf of the posting engine.
func NewSystemAccount(tenantID uuid.UUID, code string, defaults AccountDefaults) (*Account, error) {
	name := defaults.Name
	if name == "" {
		name = code
	}
	acc, err := NewAccount(tenantID, code, name, defaults.Type, defaults.Subtype)
	if err != nil {
		return nil, err
	}
	acc.IsSystem = true
	return acc, nil
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// MoveUnder re-parents the account. ancestry lists the new parent followed
// by its ancestors up to the root; the move is rejected when it would make
// the account its own ancestor. A nil parent makes the account a root.
func (a *Account) MoveUnder(parent *Account, ancestry []uuid.UUID) error {
	if parent == nil {
		a.ParentID = nil
		a.IncrementVersion()
		return nil
	}
	if parent.TenantID != a.TenantID {
		return ErrAccountNotFound.Newf("parent account %s not found", parent.ID)
	}
	if parent.ID == a.ID {
		return ErrAccountCycle
	}
	for _, id := range ancestry {
		if id == a.ID {
			return ErrAccountCycle.Newf("moving %s under %s would create a cycle", a.Code, parent.Code)
		}
	}
	pid := parent.ID
	a.ParentID = &pid
	a.IncrementVersion()
	return nil
}

// Deactivate hides the account from new postings. System accounts are exempt.
func (a *Account) Deactivate() error {
	if a.IsSystem {
		return ErrSystemAccountReadOnly.Newf("system account %s cannot be deactivated", a.Code)
	}
	if a.Status == AccountStatusInactive {
		return shared.ErrInvalidState.Newf("account %s is already inactive", a.Code)
	}
	a.Status = AccountStatusInactive
	a.IncrementVersion()
	return nil
}

func (a *Account) Activate() error {
	if a.Status == AccountStatusActive {
		return shared.ErrInvalidState.Newf("account %s is already active", a.Code)
	}
	a.Status = AccountStatusActive
	a.IncrementVersion()
	return nil
}

// EnsureDeletable guards hard deletion.
func (a *Account) EnsureDeletable(referencedByLines, hasChildren bool) error {
	if a.IsSystem {
		return ErrSystemAccountReadOnly.Newf("system account %s cannot be deleted", a.Code)
	}
	if referencedByLines {
		return ErrAccountInUse.Newf("account %s is referenced by journal lines", a.Code)
	}
	if hasChildren {
		return ErrAccountInUse.Newf("account %s has child accounts", a.Code)
	}
	return nil
}
