// Package amortization implements equal-monthly-installment loan math.
// All functions are pure; the loan service is the only consumer.
package amortization

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// precision used for intermediate division; results are rounded to 2dp.
const divPrecision = 12

// EMI computes the fixed monthly installment for a principal at an annual
// rate over n months:
//
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1)   for monthly rate r > 0
//	EMI = P / n                             for r == 0
//
// The result is rounded half-up to 2 decimal places.
func EMI(principal decimal.Decimal, annualRate decimal.Decimal, months int) (decimal.Decimal, error) {
	if months <= 0 {
		return decimal.Zero, fmt.Errorf("tenure must be at least one month, got %d", months)
	}
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("principal must be positive, got %s", principal)
	}
	if annualRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("annual rate must not be negative, got %s", annualRate)
	}

	n := decimal.NewFromInt(int64(months))
	r := MonthlyRate(annualRate)
	if r.IsZero() {
		return principal.DivRound(n, 2), nil
	}

	compound := decimal.New(1, 0).Add(r).Pow(n)
	numerator := principal.Mul(r).Mul(compound)
	denominator := compound.Sub(decimal.New(1, 0))
	return numerator.DivRound(denominator, 2), nil
}

// MonthlyRate converts an annual rate to its monthly equivalent.
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.DivRound(decimal.NewFromInt(12), divPrecision)
}

// Split is the interest/principal decomposition of one repayment.
type Split struct {
	Interest  decimal.Decimal
	Principal decimal.Decimal
	// Excess is any payment beyond what clears the outstanding principal.
	Excess decimal.Decimal
}

// SplitPayment applies a repayment interest-first: interest due is
// outstandingPrincipal * monthlyRate; whatever remains goes to principal,
// clamped so principal never overshoots the outstanding amount.
func SplitPayment(outstandingPrincipal, monthlyRate, payment decimal.Decimal) Split {
	interestDue := outstandingPrincipal.Mul(monthlyRate).Round(2)

	if payment.LessThanOrEqual(interestDue) {
		// Short payment: all interest, principal untouched.
		return Split{Interest: payment, Principal: decimal.Zero, Excess: decimal.Zero}
	}

	principalPart := payment.Sub(interestDue)
	if principalPart.GreaterThan(outstandingPrincipal) {
		return Split{
			Interest:  interestDue,
			Principal: outstandingPrincipal,
			Excess:    principalPart.Sub(outstandingPrincipal),
		}
	}
	return Split{Interest: interestDue, Principal: principalPart, Excess: decimal.Zero}
}
