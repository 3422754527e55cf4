package ledger

import (
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
)

// AccountRole names the purpose a system account serves in generated entries.
type AccountRole string

const (
	RoleInventoryAsset          AccountRole = "inventory_asset"
	RoleInventoryInTransit      AccountRole = "inventory_in_transit"
	RoleGoodsReceivedClearing   AccountRole = "goods_received_clearing"
	RoleCostOfGoodsSold         AccountRole = "cost_of_goods_sold"
	RoleInventoryAdjustment     AccountRole = "inventory_adjustment"
	RoleSalaryExpense           AccountRole = "salary_expense"
	RoleEmployerTaxExpense      AccountRole = "employer_tax_expense"
	RoleEmployerBenefitsExpense AccountRole = "employer_benefits_expense"
	RoleEmployeeTaxPayable      AccountRole = "employee_tax_payable"
	RoleSalariesPayable         AccountRole = "salaries_payable"
	RoleEmployerTaxPayable      AccountRole = "employer_tax_payable"
	RoleEmployerBenefitsPayable AccountRole = "employer_benefits_payable"
)

// CatalogEntry is the account a role resolves to.
type CatalogEntry struct {
	Code     string
	Defaults ledger.AccountDefaults
}

func defaultCatalog() map[AccountRole]CatalogEntry {
	entry := func(code, name string, t ledger.AccountType, subtype string) CatalogEntry {
		return CatalogEntry{Code: code, Defaults: ledger.AccountDefaults{Name: name, Type: t, Subtype: subtype}}
	}
	return map[AccountRole]CatalogEntry{
		RoleInventoryAsset:          entry("1400", "Inventory", ledger.AccountTypeAsset, "current_asset"),
		RoleInventoryInTransit:      entry("1410", "Inventory In Transit", ledger.AccountTypeAsset, "current_asset"),
		RoleGoodsReceivedClearing:   entry("2150", "Goods Received Not Invoiced", ledger.AccountTypeLiability, "current_liability"),
		RoleSalariesPayable:         entry("2300", "Salaries Payable", ledger.AccountTypeLiability, "current_liability"),
		RoleEmployeeTaxPayable:      entry("2310", "Employee Tax Payable", ledger.AccountTypeLiability, "current_liability"),
		RoleEmployerTaxPayable:      entry("2320", "Employer Tax Payable", ledger.AccountTypeLiability, "current_liability"),
		RoleEmployerBenefitsPayable: entry("2330", "Employer Benefits Payable", ledger.AccountTypeLiability, "current_liability"),
		RoleCostOfGoodsSold:         entry("5000", "Cost of Goods Sold", ledger.AccountTypeExpense, "cost_of_sales"),
		RoleInventoryAdjustment:     entry("5200", "Inventory Adjustment", ledger.AccountTypeExpense, "operating_expense"),
		RoleSalaryExpense:           entry("6100", "Salary Expense", ledger.AccountTypeExpense, "operating_expense"),
		RoleEmployerTaxExpense:      entry("6110", "Employer Tax Expense", ledger.AccountTypeExpense, "operating_expense"),
		RoleEmployerBenefitsExpense: entry("6120", "Employer Benefits Expense", ledger.AccountTypeExpense, "operating_expense"),
	}
}

// AccountCatalog maps roles to account codes. Codes can be overridden from
// configuration; names and types keep their defaults.
type AccountCatalog struct {
	entries map[AccountRole]CatalogEntry
}

// NewAccountCatalog applies role->code overrides on top of the defaults.
// Unknown roles are rejected so a typo in configuration fails at startup.
func NewAccountCatalog(codeOverrides map[string]string) (*AccountCatalog, error) {
	entries := defaultCatalog()
	for role, code := range codeOverrides {
		r := AccountRole(strings.ToLower(strings.TrimSpace(role)))
		e, ok := entries[r]
		if !ok {
			return nil, fmt.Errorf("unknown account role %q", role)
		}
		if strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("empty account code for role %q", role)
		}
		e.Code = strings.TrimSpace(code)
		entries[r] = e
	}
	return &AccountCatalog{entries: entries}, nil
}

// DefaultAccountCatalog returns the catalog without overrides.
func DefaultAccountCatalog() *AccountCatalog {
	return &AccountCatalog{entries: defaultCatalog()}
}

// Lookup returns the catalog entry for role.
func (c *AccountCatalog) Lookup(role AccountRole) (CatalogEntry, error) {
	e, ok := c.entries[role]
	if !ok {
		return CatalogEntry{}, ledger.ErrAccountNotFound.Newf("no account configured for role %s", role)
	}
	return e, nil
}

// HasRole reports whether role is known.
func (c *AccountCatalog) HasRole(role AccountRole) bool {
	_, ok := c.entries[role]
	return ok
}
