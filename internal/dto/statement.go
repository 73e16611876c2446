package dto

import (
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// StatementResponse is the API shape of a derived statement.
type StatementResponse struct {
	AccountNumber  string                `json:"accountNumber"`
	FromDate       string                `json:"fromDate"`
	ToDate         string                `json:"toDate"`
	OpeningBalance decimal.Decimal       `json:"openingBalance"`
	ClosingBalance decimal.Decimal       `json:"closingBalance"`
	TotalCredits   decimal.Decimal       `json:"totalCredits"`
	TotalDebits    decimal.Decimal       `json:"totalDebits"`
	Entries        []TransactionResponse `json:"entries"`
}

// ToStatementResponse maps a statement projection to its API shape.
func ToStatementResponse(s *domain.Statement) StatementResponse {
	entries := make([]TransactionResponse, len(s.Entries))
	for i := range s.Entries {
		entries[i] = ToTransactionResponse(&s.Entries[i])
	}
	return StatementResponse{
		AccountNumber:  s.AccountNumber,
		FromDate:       s.FromDate.Format("2006-01-02"),
		ToDate:         s.ToDate.Format("2006-01-02"),
		OpeningBalance: s.OpeningBalance,
		ClosingBalance: s.ClosingBalance,
		TotalCredits:   s.TotalCredits,
		TotalDebits:    s.TotalDebits,
		Entries:        entries,
	}
}
