package dto

import (
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// DepositRequest credits cash into an account. Fee is deducted from the
// deposited cash, so the net credit is amount minus fee.
type DepositRequest struct {
	AccountID      string          `json:"accountID" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Channel        domain.Channel  `json:"channel" binding:"required"`
	AgentID        string          `json:"agentID,omitempty"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// WithdrawRequest debits amount plus fee from an account.
type WithdrawRequest struct {
	AccountID      string          `json:"accountID" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Channel        domain.Channel  `json:"channel" binding:"required"`
	AgentID        string          `json:"agentID,omitempty"`
	PIN            string          `json:"pin,omitempty"`
	Description    string          `json:"description,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// TransferRequest moves amount from the source account to the account with
// the given number. The fee is charged once, to the sender.
type TransferRequest struct {
	SourceAccountID   string          `json:"sourceAccountID" binding:"required"`
	DestAccountNumber string          `json:"destAccountNumber" binding:"required,acctnumber"`
	Amount            decimal.Decimal `json:"amount" binding:"required"`
	Reference         string          `json:"reference,omitempty"`
	Channel           domain.Channel  `json:"channel" binding:"required"`
	IdempotencyKey    string          `json:"idempotencyKey,omitempty"`
}

// BillPaymentRequest pays a catalogued biller from an account.
type BillPaymentRequest struct {
	AccountID      string          `json:"accountID" binding:"required"`
	ServiceID      string          `json:"serviceID" binding:"required"`
	BillAccountRef string          `json:"billAccountRef" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Channel        domain.Channel  `json:"channel" binding:"required"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// DisburseLoanRequest credits an approved loan's principal to the borrower.
type DisburseLoanRequest struct {
	ApplicationID string `json:"applicationID" binding:"required"`
}

// RepayLoanRequest debits a repayment and applies it to the loan.
type RepayLoanRequest struct {
	LoanID         string          `json:"loanID" binding:"required"`
	AccountID      string          `json:"accountID" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Channel        domain.Channel  `json:"channel" binding:"required"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

// ReversalRequest undoes a completed transaction with an inverse entry.
type ReversalRequest struct {
	TransactionID string `json:"transactionID" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

// InterestCreditRequest posts earned interest into an account.
type InterestCreditRequest struct {
	AccountID string          `json:"accountID" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// TransactionResult is returned by every engine operation that commits.
type TransactionResult struct {
	TransactionID string                   `json:"transactionID"`
	Status        domain.TransactionStatus `json:"status"`
	NewBalance    decimal.Decimal          `json:"newBalance"`
	FeeCharged    decimal.Decimal          `json:"feeCharged"`
}

// TransactionResponse is the read shape of one ledger entry.
type TransactionResponse struct {
	TransactionID string                   `json:"transactionID"`
	AccountID     string                   `json:"accountID"`
	Type          domain.TransactionType   `json:"type"`
	Direction     domain.Direction         `json:"direction"`
	Amount        decimal.Decimal          `json:"amount"`
	Fee           decimal.Decimal          `json:"fee"`
	TotalAmount   decimal.Decimal          `json:"totalAmount"`
	BalanceAfter  decimal.Decimal          `json:"balanceAfter"`
	Channel       domain.Channel           `json:"channel"`
	Status        domain.TransactionStatus `json:"status"`
	Reference     string                   `json:"reference,omitempty"`
	Description   string                   `json:"description,omitempty"`
	CreatedAt     string                   `json:"createdAt"`
}

// ToTransactionResponse maps a ledger entry to its API shape.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID: t.TransactionID,
		AccountID:     t.AccountID,
		Type:          t.Type,
		Direction:     t.Direction,
		Amount:        t.Amount,
		Fee:           t.Fee,
		TotalAmount:   t.TotalAmount,
		BalanceAfter:  t.BalanceAfter,
		Channel:       t.Channel,
		Status:        t.Status,
		Reference:     t.Reference,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
