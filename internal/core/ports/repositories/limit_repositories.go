package repositories

import (
	"context"

	"github.com/pesacore/corebanking/internal/core/domain"
)

// LimitRepository reads limit configuration and rolling usage. Usage writes
// happen exclusively through the posting path so counters can never drift
// from the money they account for.
type LimitRepository interface {
	FindLimitSettings(ctx context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitSettings, error)
	FindLimitUsage(ctx context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitUsage, error)
}
