package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// FeeSvcFacade prices an operation. Deterministic for identical inputs, so
// the engine may call it again for display without drift.
type FeeSvcFacade interface {
	Calculate(ctx context.Context, opType domain.FeeOpType, amount decimal.Decimal, asOf time.Time) (decimal.Decimal, error)
}
