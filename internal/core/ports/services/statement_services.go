package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// StatementSvcFacade derives statements from the ledger. Read-only.
type StatementSvcFacade interface {
	Build(ctx context.Context, accountID string, from, to time.Time) (*domain.Statement, error)
	// ReplayBalance folds every settled entry up to asOf into a balance from
	// zero. It must agree with the stored account balance.
	ReplayBalance(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error)
}
