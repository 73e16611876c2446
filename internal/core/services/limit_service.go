package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
)

// limitService evaluates rolling transaction ceilings. It reads settings and
// usage; the counters themselves are only written through the engine's atomic
// posting, so a passed check and its consumption can never commit separately.
type limitService struct {
	limitRepo portsrepo.LimitRepository
	defaults  domain.LimitSettings
}

// NewLimitService creates the limit tracker. Entities without a configured
// settings row fall back to the supplied defaults, matching how the upstream
// system provisions limits lazily on first use.
func NewLimitService(limitRepo portsrepo.LimitRepository, defaults domain.LimitSettings) portssvc.LimitSvcFacade {
	return &limitService{limitRepo: limitRepo, defaults: defaults}
}

var _ portssvc.LimitSvcFacade = (*limitService)(nil)

// CheckAndReserve validates ceilings cheapest-first: per-transaction (no
// counter read needed), then daily, then monthly. Counters are evaluated on
// the rolled-over view for asOf, so the first operation after midnight sees
// zeroed daily totals before any write has stamped the reset.
func (s *limitService) CheckAndReserve(ctx context.Context, entityID string, entityKind domain.LimitEntityKind, opKind domain.LimitOpKind, amount decimal.Decimal, asOf time.Time) (*domain.LimitDelta, error) {
	settings, err := s.limitRepo.FindLimitSettings(ctx, entityID, entityKind)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to load limit settings for %s: %w", entityID, err)
		}
		def := s.defaults
		def.EntityID = entityID
		def.EntityKind = entityKind
		settings = &def
	}

	if amount.GreaterThan(settings.SingleTransactionLimit) {
		return nil, &apperrors.LimitExceededError{
			Ceiling: "single_transaction",
			Limit:   settings.SingleTransactionLimit.StringFixed(2),
		}
	}

	usage, err := s.limitRepo.FindLimitUsage(ctx, entityID, entityKind)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("failed to load limit usage for %s: %w", entityID, err)
		}
		usage = &domain.LimitUsage{EntityID: entityID, EntityKind: entityKind, LastResetDate: asOf}
	}
	usage.RolloverTo(asOf)

	dailyCeiling, monthlyCeiling, dailyName, monthlyName := settings.CeilingsFor(opKind)
	daily, monthly := usage.Consumed(opKind)

	if daily.Add(amount).GreaterThan(dailyCeiling) {
		return nil, &apperrors.LimitExceededError{Ceiling: dailyName, Limit: dailyCeiling.StringFixed(2)}
	}
	if monthly.Add(amount).GreaterThan(monthlyCeiling) {
		return nil, &apperrors.LimitExceededError{Ceiling: monthlyName, Limit: monthlyCeiling.StringFixed(2)}
	}

	return &domain.LimitDelta{
		EntityID:       entityID,
		EntityKind:     entityKind,
		OpKind:         opKind,
		Amount:         amount,
		AsOf:           asOf,
		DailyCeiling:   dailyCeiling,
		MonthlyCeiling: monthlyCeiling,
		DailyName:      dailyName,
		MonthlyName:    monthlyName,
	}, nil
}
