package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is a read-only projection over the ledger for a date range.
// Derived entirely from completed entries; never stored back.
type Statement struct {
	AccountID      string          `json:"accountID"`
	AccountNumber  string          `json:"accountNumber"`
	FromDate       time.Time       `json:"fromDate"`
	ToDate         time.Time       `json:"toDate"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
	TotalCredits   decimal.Decimal `json:"totalCredits"`
	TotalDebits    decimal.Decimal `json:"totalDebits"`
	Entries        []Transaction   `json:"entries"`
}
