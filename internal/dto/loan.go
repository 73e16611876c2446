package dto

import (
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// LoanResponse is the API shape of a loan.
type LoanResponse struct {
	LoanID               string            `json:"loanID"`
	LoanNumber           string            `json:"loanNumber"`
	PrincipalAmount      decimal.Decimal   `json:"principalAmount"`
	AnnualRate           decimal.Decimal   `json:"annualRate"`
	TenureMonths         int               `json:"tenureMonths"`
	MonthlyInstallment   decimal.Decimal   `json:"monthlyInstallment"`
	OutstandingPrincipal decimal.Decimal   `json:"outstandingPrincipal"`
	OutstandingInterest  decimal.Decimal   `json:"outstandingInterest"`
	TotalPaid            decimal.Decimal   `json:"totalPaid"`
	Status               domain.LoanStatus `json:"status"`
}

// ToLoanResponse maps a domain loan to its API shape.
func ToLoanResponse(l *domain.Loan) LoanResponse {
	return LoanResponse{
		LoanID:               l.LoanID,
		LoanNumber:           l.LoanNumber,
		PrincipalAmount:      l.PrincipalAmount,
		AnnualRate:           l.AnnualRate,
		TenureMonths:         l.TenureMonths,
		MonthlyInstallment:   l.MonthlyInstallment,
		OutstandingPrincipal: l.OutstandingPrincipal,
		OutstandingInterest:  l.OutstandingInterest,
		TotalPaid:            l.TotalPaid,
		Status:               l.Status,
	}
}
