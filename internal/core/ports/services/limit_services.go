package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// LimitSvcFacade answers "would this operation exceed a ceiling" questions.
// It never writes: counter consumption rides in the engine's atomic posting.
type LimitSvcFacade interface {
	// CheckAndReserve validates against the entity's ceilings in order:
	// single transaction, then daily, then monthly. The first violated
	// ceiling determines the *apperrors.LimitExceededError returned. On
	// success it returns the counter delta, carrying the checked ceilings,
	// for the engine to include in its atomic posting.
	CheckAndReserve(ctx context.Context, entityID string, entityKind domain.LimitEntityKind, opKind domain.LimitOpKind, amount decimal.Decimal, asOf time.Time) (*domain.LimitDelta, error)
}
