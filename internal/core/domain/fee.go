package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeOpType keys the fee schedule. Mirrors the bank's published tariff guide.
type FeeOpType string

const (
	FeeAgentDeposit        FeeOpType = "agent_deposit"
	FeeAgentWithdrawal     FeeOpType = "agent_withdrawal"
	FeeATMWithdrawalOnUs   FeeOpType = "atm_withdrawal_on_us"
	FeeATMWithdrawalOffUs  FeeOpType = "atm_withdrawal_off_us"
	FeeMobileTransferOwn   FeeOpType = "mobile_transfer_own"
	FeeMobileTransferOther FeeOpType = "mobile_transfer_other"
	FeeBillPayment         FeeOpType = "bill_payment"
	FeeLoanProcessing      FeeOpType = "loan_processing"
	FeeAccountMaintenance  FeeOpType = "account_maintenance"
)

// FeeSchedule is one tariff row: fee = max(fixed, amount*percentage), clamped
// to [min, max]. MaximumFee of zero means no cap. Rows carry an effective
// window; administration of rows is outside the engine.
type FeeSchedule struct {
	OpType        FeeOpType       `json:"opType"`
	FixedFee      decimal.Decimal `json:"fixedFee"`
	PercentageFee decimal.Decimal `json:"percentageFee"` // percent, e.g. 1.5 means 1.5%
	MinimumFee    decimal.Decimal `json:"minimumFee"`
	MaximumFee    decimal.Decimal `json:"maximumFee"`
	IsActive      bool            `json:"isActive"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
}

// EffectiveAt reports whether the row applies at the given instant.
func (f *FeeSchedule) EffectiveAt(at time.Time) bool {
	if !f.IsActive || at.Before(f.EffectiveFrom) {
		return false
	}
	return f.EffectiveTo == nil || at.Before(*f.EffectiveTo)
}

// BillService is a payee in the bill payment catalog (utility, telecom, ...).
// Fee overrides the bill_payment schedule when set.
type BillService struct {
	ServiceID string          `json:"serviceID"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Category  string          `json:"category"`
	Fee       decimal.Decimal `json:"fee"`
	IsActive  bool            `json:"isActive"`
}
