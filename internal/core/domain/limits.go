package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LimitEntityKind distinguishes whose ceilings a counter row tracks.
type LimitEntityKind string

const (
	LimitEntityUser  LimitEntityKind = "user"
	LimitEntityAgent LimitEntityKind = "agent"
)

// LimitOpKind selects which counters an operation consumes. Users accrue
// per-operation counters; agents accrue one total across everything they
// handle, matching how agency banking float is controlled.
type LimitOpKind string

const (
	LimitOpWithdrawal LimitOpKind = "withdrawal"
	LimitOpTransfer   LimitOpKind = "transfer"
	LimitOpAgentTotal LimitOpKind = "agent_total"
)

// LimitSettings are the configured ceilings for one entity. Zero-valued
// ceilings are treated as configured (a zero ceiling blocks the operation);
// absence of a row falls back to system defaults.
type LimitSettings struct {
	EntityID               string          `json:"entityID"`
	EntityKind             LimitEntityKind `json:"entityKind"`
	SingleTransactionLimit decimal.Decimal `json:"singleTransactionLimit"`
	DailyWithdrawalLimit   decimal.Decimal `json:"dailyWithdrawalLimit"`
	DailyTransferLimit     decimal.Decimal `json:"dailyTransferLimit"`
	MonthlyWithdrawalLimit decimal.Decimal `json:"monthlyWithdrawalLimit"`
	MonthlyTransferLimit   decimal.Decimal `json:"monthlyTransferLimit"`
	DailyTotalLimit        decimal.Decimal `json:"dailyTotalLimit"`   // agent entities
	MonthlyTotalLimit      decimal.Decimal `json:"monthlyTotalLimit"` // agent entities
}

// CeilingsFor returns the daily and monthly ceilings that govern an
// operation kind, with the names used in rejection reasons.
func (s *LimitSettings) CeilingsFor(op LimitOpKind) (daily, monthly decimal.Decimal, dailyName, monthlyName string) {
	switch op {
	case LimitOpWithdrawal:
		return s.DailyWithdrawalLimit, s.MonthlyWithdrawalLimit, "daily_withdrawal", "monthly_withdrawal"
	case LimitOpTransfer:
		return s.DailyTransferLimit, s.MonthlyTransferLimit, "daily_transfer", "monthly_transfer"
	default:
		return s.DailyTotalLimit, s.MonthlyTotalLimit, "agent_daily_total", "agent_monthly_total"
	}
}

// LimitUsage is the rolling consumption against the ceilings. Counters only
// accumulate operations that reached completed status; the engine applies
// deltas inside the same atomic scope as the balance mutation.
type LimitUsage struct {
	EntityID           string          `json:"entityID"`
	EntityKind         LimitEntityKind `json:"entityKind"`
	DailyWithdrawals   decimal.Decimal `json:"dailyWithdrawals"`
	DailyTransfers     decimal.Decimal `json:"dailyTransfers"`
	MonthlyWithdrawals decimal.Decimal `json:"monthlyWithdrawals"`
	MonthlyTransfers   decimal.Decimal `json:"monthlyTransfers"`
	DailyTotal         decimal.Decimal `json:"dailyTotal"`
	MonthlyTotal       decimal.Decimal `json:"monthlyTotal"`
	LastResetDate      time.Time       `json:"lastResetDate"`
}

// RolloverTo zeroes the daily counters when asOf is a later calendar day than
// the last reset, and the monthly counters when the month boundary was
// crossed, then stamps the reset date. Evaluation always happens on the
// rolled-over view.
func (u *LimitUsage) RolloverTo(asOf time.Time) {
	last := u.LastResetDate
	if last.Year() == asOf.Year() && last.YearDay() == asOf.YearDay() {
		return
	}
	u.DailyWithdrawals = decimal.Zero
	u.DailyTransfers = decimal.Zero
	u.DailyTotal = decimal.Zero
	if last.Year() != asOf.Year() || last.Month() != asOf.Month() {
		u.MonthlyWithdrawals = decimal.Zero
		u.MonthlyTransfers = decimal.Zero
		u.MonthlyTotal = decimal.Zero
	}
	u.LastResetDate = asOf
}

// Consumed returns the current daily and monthly counters for an operation
// kind.
func (u *LimitUsage) Consumed(op LimitOpKind) (daily, monthly decimal.Decimal) {
	switch op {
	case LimitOpWithdrawal:
		return u.DailyWithdrawals, u.MonthlyWithdrawals
	case LimitOpTransfer:
		return u.DailyTransfers, u.MonthlyTransfers
	default:
		return u.DailyTotal, u.MonthlyTotal
	}
}

// Apply folds an increment into the counters for an operation kind. The
// caller is responsible for rolling over first.
func (u *LimitUsage) Apply(op LimitOpKind, amount decimal.Decimal) {
	switch op {
	case LimitOpWithdrawal:
		u.DailyWithdrawals = u.DailyWithdrawals.Add(amount)
		u.MonthlyWithdrawals = u.MonthlyWithdrawals.Add(amount)
	case LimitOpTransfer:
		u.DailyTransfers = u.DailyTransfers.Add(amount)
		u.MonthlyTransfers = u.MonthlyTransfers.Add(amount)
	default:
		u.DailyTotal = u.DailyTotal.Add(amount)
		u.MonthlyTotal = u.MonthlyTotal.Add(amount)
	}
}

// LimitDelta is a counter increment applied at commit time, inside the same
// storage transaction as the balance mutation. It carries the ceilings that
// were checked so the store can re-verify them under the counter lock:
// two operations racing the same counter cannot both commit past a ceiling.
type LimitDelta struct {
	EntityID       string
	EntityKind     LimitEntityKind
	OpKind         LimitOpKind
	Amount         decimal.Decimal
	AsOf           time.Time
	DailyCeiling   decimal.Decimal
	MonthlyCeiling decimal.Decimal
	DailyName      string
	MonthlyName    string
}
