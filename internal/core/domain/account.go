package domain

import (
	"github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of a bank account.
// Accounts are never deleted; closed is terminal.
type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountDormant AccountStatus = "dormant"
	AccountFrozen  AccountStatus = "frozen"
	AccountClosed  AccountStatus = "closed"
)

// AccountType is product configuration shared by all accounts of that type.
// Read-mostly; snapshotted per operation.
type AccountType struct {
	Code                   string          `json:"code"`
	Name                   string          `json:"name"`
	MinimumBalance         decimal.Decimal `json:"minimumBalance"`
	MonthlyMaintenanceFee  decimal.Decimal `json:"monthlyMaintenanceFee"`
	InterestRate           decimal.Decimal `json:"interestRate"` // annual, e.g. 0.045
	WithdrawalLimitDaily   decimal.Decimal `json:"withdrawalLimitDaily"`
	WithdrawalLimitMonthly decimal.Decimal `json:"withdrawalLimitMonthly"`
	AllowsOverdraft        bool            `json:"allowsOverdraft"`
	IsActive               bool            `json:"isActive"`
}

// Account is a customer bank account. Balance is the ledger balance (funds of
// record); AvailableBalance is what may be spent, which tracks Balance except
// where overdraft is permitted. Balances are mutated exclusively by the
// transaction engine through the ledger repository's atomic posting path.
type Account struct {
	AccountID        string          `json:"accountID"`
	AccountNumber    string          `json:"accountNumber"`
	CustomerID       string          `json:"customerID"`
	HolderName       string          `json:"holderName"`
	AccountTypeCode  string          `json:"accountTypeCode"`
	BranchCode       string          `json:"branchCode"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Status           AccountStatus   `json:"status"`
	OverdraftLimit   decimal.Decimal `json:"overdraftLimit"`
	PINHash          string          `json:"-"`
	AuditFields
}

// IsActive reports whether the account may participate in transactions.
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}

// AvailableFor reports whether a debit of total can be covered by the
// available balance plus any overdraft headroom.
func (a *Account) AvailableFor(total decimal.Decimal) bool {
	return a.AvailableBalance.Add(a.OverdraftLimit).GreaterThanOrEqual(total)
}
