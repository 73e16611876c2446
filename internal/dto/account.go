package dto

import (
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// OpenAccountRequest creates a new account, optionally seeded with an opening
// balance posted as the first deposit.
type OpenAccountRequest struct {
	CustomerID      string          `json:"customerID" binding:"required"`
	HolderName      string          `json:"holderName" binding:"required"`
	AccountTypeCode string          `json:"accountTypeCode" binding:"required"`
	BranchCode      string          `json:"branchCode" binding:"required"`
	OpeningBalance  decimal.Decimal `json:"openingBalance"`
	PIN             string          `json:"pin,omitempty"`
}

// AccountResponse is the API shape of an account.
type AccountResponse struct {
	AccountID        string               `json:"accountID"`
	AccountNumber    string               `json:"accountNumber"`
	HolderName       string               `json:"holderName"`
	AccountTypeCode  string               `json:"accountTypeCode"`
	Balance          decimal.Decimal      `json:"balance"`
	AvailableBalance decimal.Decimal      `json:"availableBalance"`
	Status           domain.AccountStatus `json:"status"`
}

// BalanceResponse answers GetBalance.
type BalanceResponse struct {
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
}

// VerifyAccountResponse answers VerifyAccount for transfer beneficiary checks.
type VerifyAccountResponse struct {
	HolderName      string `json:"holderName"`
	AccountTypeName string `json:"accountTypeName"`
}

// ToAccountResponse maps a domain account to its API shape.
func ToAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:        a.AccountID,
		AccountNumber:    a.AccountNumber,
		HolderName:       a.HolderName,
		AccountTypeCode:  a.AccountTypeCode,
		Balance:          a.Balance,
		AvailableBalance: a.AvailableBalance,
		Status:           a.Status,
	}
}
