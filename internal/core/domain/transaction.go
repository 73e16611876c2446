package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates every balance-affecting operation kind. The
// engine switches over this set exhaustively; adding a kind is a
// compile-visible change, not a new magic string.
type TransactionType string

const (
	TxnDeposit          TransactionType = "deposit"
	TxnWithdrawal       TransactionType = "withdrawal"
	TxnTransfer         TransactionType = "transfer"
	TxnBillPayment      TransactionType = "bill_payment"
	TxnLoanDisbursement TransactionType = "loan_disbursement"
	TxnLoanRepayment    TransactionType = "loan_repayment"
	TxnFeeCharge        TransactionType = "fee_charge"
	TxnInterestCredit   TransactionType = "interest_credit"
	TxnReversal         TransactionType = "reversal"
)

// TransactionStatus is the ledger entry state. Completed entries are immutable;
// the only sanctioned undo is a new reversal entry.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
	TxnCancelled TransactionStatus = "cancelled"
	TxnReversed  TransactionStatus = "reversed"
)

// Direction of a ledger entry relative to its owning account.
type Direction string

const (
	DirDebit  Direction = "debit"
	DirCredit Direction = "credit"
)

// Transaction is one immutable ledger entry. TotalAmount is the full balance
// effect (amount plus fee for debits, amount net of fee for fee-from-deposit
// credits). BalanceBefore/BalanceAfter are captured at mutation time under the
// account row lock, so replaying completed entries in creation order from the
// opening balance reproduces the live balance.
type Transaction struct {
	TransactionID     string            `json:"transactionID"`
	AccountID         string            `json:"accountID"`
	Type              TransactionType   `json:"type"`
	Direction         Direction         `json:"direction"`
	Amount            decimal.Decimal   `json:"amount"`
	Fee               decimal.Decimal   `json:"fee"`
	TotalAmount       decimal.Decimal   `json:"totalAmount"`
	BalanceBefore     decimal.Decimal   `json:"balanceBefore"`
	BalanceAfter      decimal.Decimal   `json:"balanceAfter"`
	Channel           Channel           `json:"channel"`
	Reference         string            `json:"reference"`
	Description       string            `json:"description"`
	Status            TransactionStatus `json:"status"`
	CounterpartyID    string            `json:"counterpartyID,omitempty"`    // other account of a transfer pair
	PairTransactionID string            `json:"pairTransactionID,omitempty"` // linked entry of a transfer pair
	ReversesID        string            `json:"reversesID,omitempty"`        // entry undone by this reversal
	IdempotencyKey    string            `json:"idempotencyKey,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	ProcessedAt       time.Time         `json:"processedAt"`
}

// SignedEffect is the entry's effect on the account balance: negative for
// debits, positive for credits.
func (t *Transaction) SignedEffect() decimal.Decimal {
	if t.Direction == DirDebit {
		return t.TotalAmount.Neg()
	}
	return t.TotalAmount
}

// NewTransactionID generates a time-ordered, collision-resistant reference of
// the form TXN20060102150405123, matching the numbering customers already see
// on receipts.
func NewTransactionID(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		// crypto/rand failing means the platform is broken; fall back to the
		// nanosecond tail rather than panic inside the money path.
		return fmt.Sprintf("TXN%s%03d", now.Format("20060102150405"), now.Nanosecond()%1000)
	}
	return fmt.Sprintf("TXN%s%03d", now.Format("20060102150405"), n.Int64())
}

// NewTransactionPair generates the linked references for a transfer's debit
// and credit legs. Both legs carry the same timestamp, so the random tails
// alone keep them apart; the ids are redrawn until they differ.
func NewTransactionPair(now time.Time) (debitID, creditID string) {
	debitID = NewTransactionID(now)
	for i := 0; i < 8; i++ {
		creditID = NewTransactionID(now)
		if creditID != debitID {
			return debitID, creditID
		}
	}
	// crypto/rand is down and the fallback tail is deterministic; nudge the
	// clock by a nanosecond to change the tail without moving the timestamp.
	return debitID, NewTransactionID(now.Add(time.Nanosecond))
}
