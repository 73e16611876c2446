package amortization_test

import (
	"testing"

	"github.com/pesacore/corebanking/internal/utils/amortization"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestEMI(t *testing.T) {
	tests := []struct {
		name       string
		principal  string
		annualRate string
		months     int
		want       string
	}{
		{
			name:       "12% over 12 months",
			principal:  "120000",
			annualRate: "0.12",
			months:     12,
			want:       "10661.85",
		},
		{
			name:       "zero rate divides principal evenly",
			principal:  "12000",
			annualRate: "0",
			months:     12,
			want:       "1000",
		},
		{
			name:       "single month repays everything plus one month interest",
			principal:  "10000",
			annualRate: "0.12",
			months:     1,
			want:       "10100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := amortization.EMI(d(tt.principal), d(tt.annualRate), tt.months)
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "EMI = %s, want %s", got, tt.want)
		})
	}
}

func TestEMIRejectsBadInput(t *testing.T) {
	_, err := amortization.EMI(d("1000"), d("0.1"), 0)
	assert.Error(t, err)

	_, err = amortization.EMI(d("0"), d("0.1"), 12)
	assert.Error(t, err)

	_, err = amortization.EMI(d("1000"), d("-0.1"), 12)
	assert.Error(t, err)
}

// A full schedule of on-time EMI payments must clear the loan to within one
// currency unit.
func TestFullScheduleClearsLoan(t *testing.T) {
	principal := d("120000")
	rate := d("0.12")
	months := 12

	emi, err := amortization.EMI(principal, rate, months)
	require.NoError(t, err)

	monthlyRate := amortization.MonthlyRate(rate)
	outstanding := principal
	totalInterest := decimal.Zero

	for i := 0; i < months; i++ {
		payment := emi
		if i == months-1 {
			// Final installment settles whatever remains, absorbing rounding.
			payment = outstanding.Add(outstanding.Mul(monthlyRate).Round(2))
		}
		split := amortization.SplitPayment(outstanding, monthlyRate, payment)
		outstanding = outstanding.Sub(split.Principal)
		totalInterest = totalInterest.Add(split.Interest)
	}

	assert.True(t, outstanding.Abs().LessThanOrEqual(d("1")),
		"outstanding principal after full schedule: %s", outstanding)
	assert.True(t, totalInterest.GreaterThan(decimal.Zero))
}

func TestSplitPayment(t *testing.T) {
	monthlyRate := d("0.01")

	t.Run("interest then principal", func(t *testing.T) {
		split := amortization.SplitPayment(d("100000"), monthlyRate, d("10000"))
		assert.True(t, split.Interest.Equal(d("1000")), "interest %s", split.Interest)
		assert.True(t, split.Principal.Equal(d("9000")), "principal %s", split.Principal)
		assert.True(t, split.Excess.IsZero())
	})

	t.Run("short payment is all interest", func(t *testing.T) {
		split := amortization.SplitPayment(d("100000"), monthlyRate, d("600"))
		assert.True(t, split.Interest.Equal(d("600")))
		assert.True(t, split.Principal.IsZero())
	})

	t.Run("overpayment clamps principal and reports excess", func(t *testing.T) {
		split := amortization.SplitPayment(d("500"), monthlyRate, d("1000"))
		assert.True(t, split.Interest.Equal(d("5")))
		assert.True(t, split.Principal.Equal(d("500")))
		assert.True(t, split.Excess.Equal(d("495")))
	})
}
