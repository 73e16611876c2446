package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a disbursed loan.
type LoanStatus string

const (
	LoanActive     LoanStatus = "active"
	LoanPaidOff    LoanStatus = "paid_off"
	LoanDefaulted  LoanStatus = "defaulted"
	LoanWrittenOff LoanStatus = "written_off"
)

// ApplicationStatus is the state of a loan application. Only approved
// applications may be disbursed; underwriting itself is out of scope.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationDisbursed ApplicationStatus = "disbursed"
)

// LoanApplication is the approved request the engine disburses against.
type LoanApplication struct {
	ApplicationID   string            `json:"applicationID"`
	ApplicantID     string            `json:"applicantID"`
	AccountID       string            `json:"accountID"`
	RequestedAmount decimal.Decimal   `json:"requestedAmount"`
	ApprovedAmount  decimal.Decimal   `json:"approvedAmount"`
	AnnualRate      decimal.Decimal   `json:"annualRate"` // e.g. 0.12 for 12%
	TenureMonths    int               `json:"tenureMonths"`
	Status          ApplicationStatus `json:"status"`
	AuditFields
}

// Loan is an active loan. Aggregates are mutated only through repayment
// application; the loan becomes paid_off once both outstanding figures reach
// zero.
type Loan struct {
	LoanID               string          `json:"loanID"`
	LoanNumber           string          `json:"loanNumber"`
	ApplicationID        string          `json:"applicationID"`
	BorrowerID           string          `json:"borrowerID"`
	AccountID            string          `json:"accountID"`
	PrincipalAmount      decimal.Decimal `json:"principalAmount"`
	AnnualRate           decimal.Decimal `json:"annualRate"`
	TenureMonths         int             `json:"tenureMonths"`
	MonthlyInstallment   decimal.Decimal `json:"monthlyInstallment"`
	OutstandingPrincipal decimal.Decimal `json:"outstandingPrincipal"`
	OutstandingInterest  decimal.Decimal `json:"outstandingInterest"`
	TotalPaid            decimal.Decimal `json:"totalPaid"`
	DisbursedAt          time.Time       `json:"disbursedAt"`
	Status               LoanStatus      `json:"status"`
	AuditFields
}

// LoanPayment records one applied repayment with its interest/principal split.
type LoanPayment struct {
	PaymentID       string          `json:"paymentID"`
	LoanID          string          `json:"loanID"`
	TransactionID   string          `json:"transactionID"`
	Amount          decimal.Decimal `json:"amount"`
	PrincipalAmount decimal.Decimal `json:"principalAmount"`
	InterestAmount  decimal.Decimal `json:"interestAmount"`
	Channel         Channel         `json:"channel"`
	PaidAt          time.Time       `json:"paidAt"`
}

// NewLoanNumber generates the customer-facing loan reference,
// LN20060102150405123. The random tail keeps same-second disbursements off
// the unique loan_number constraint.
func NewLoanNumber(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return fmt.Sprintf("LN%s%03d", now.Format("20060102150405"), now.Nanosecond()%1000)
	}
	return fmt.Sprintf("LN%s%03d", now.Format("20060102150405"), n.Int64())
}
