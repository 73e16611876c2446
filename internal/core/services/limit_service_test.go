package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	"github.com/pesacore/corebanking/internal/core/services"
)

type MockLimitRepository struct {
	mock.Mock
}

var _ portsrepo.LimitRepository = (*MockLimitRepository)(nil)

func (m *MockLimitRepository) FindLimitSettings(ctx context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitSettings, error) {
	args := m.Called(ctx, entityID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LimitSettings), args.Error(1)
}

func (m *MockLimitRepository) FindLimitUsage(ctx context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitUsage, error) {
	args := m.Called(ctx, entityID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LimitUsage), args.Error(1)
}

const testCustomerID = "cust-42"

func TestCheckAndReserveSingleTransactionCeiling(t *testing.T) {
	limitRepo := new(MockLimitRepository)
	settings := testLimitDefaults()
	settings.SingleTransactionLimit = dec("50000")
	limitRepo.On("FindLimitSettings", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(&settings, nil)

	svc := services.NewLimitService(limitRepo, testLimitDefaults())
	_, err := svc.CheckAndReserve(context.Background(), testCustomerID, domain.LimitEntityUser, domain.LimitOpWithdrawal, dec("50001"), testNow)
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	var limitErr *apperrors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "single_transaction", limitErr.Ceiling)
	assert.Equal(t, "50000.00", limitErr.Limit)
	limitRepo.AssertNotCalled(t, "FindLimitUsage", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckAndReserveDailyCeiling(t *testing.T) {
	limitRepo := new(MockLimitRepository)
	settings := testLimitDefaults()
	settings.DailyWithdrawalLimit = dec("40000")
	usage := &domain.LimitUsage{
		EntityID:         testCustomerID,
		EntityKind:       domain.LimitEntityUser,
		DailyWithdrawals: dec("30000"),
		LastResetDate:    testNow,
	}
	limitRepo.On("FindLimitSettings", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(&settings, nil)
	limitRepo.On("FindLimitUsage", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(usage, nil)

	svc := services.NewLimitService(limitRepo, testLimitDefaults())
	_, err := svc.CheckAndReserve(context.Background(), testCustomerID, domain.LimitEntityUser, domain.LimitOpWithdrawal, dec("15000"), testNow)
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	var limitErr *apperrors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "daily_withdrawal", limitErr.Ceiling)
}

func TestCheckAndReserveMonthlyCeilingSurvivesDailyRollover(t *testing.T) {
	limitRepo := new(MockLimitRepository)
	settings := testLimitDefaults()
	settings.MonthlyTransferLimit = dec("100000")
	usage := &domain.LimitUsage{
		EntityID:         testCustomerID,
		EntityKind:       domain.LimitEntityUser,
		DailyTransfers:   dec("90000"),
		MonthlyTransfers: dec("90000"),
		LastResetDate:    testNow.AddDate(0, 0, -1),
	}
	limitRepo.On("FindLimitSettings", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(&settings, nil)
	limitRepo.On("FindLimitUsage", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(usage, nil)

	svc := services.NewLimitService(limitRepo, testLimitDefaults())
	_, err := svc.CheckAndReserve(context.Background(), testCustomerID, domain.LimitEntityUser, domain.LimitOpTransfer, dec("20000"), testNow)
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	var limitErr *apperrors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "monthly_transfer", limitErr.Ceiling, "daily counter rolls over, monthly must not")
}

func TestCheckAndReserveRollsOverStaleCounters(t *testing.T) {
	limitRepo := new(MockLimitRepository)
	settings := testLimitDefaults()
	settings.DailyWithdrawalLimit = dec("40000")
	usage := &domain.LimitUsage{
		EntityID:           testCustomerID,
		EntityKind:         domain.LimitEntityUser,
		DailyWithdrawals:   dec("39999"),
		MonthlyWithdrawals: dec("39999"),
		LastResetDate:      testNow.AddDate(0, -2, 0),
	}
	limitRepo.On("FindLimitSettings", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(&settings, nil)
	limitRepo.On("FindLimitUsage", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(usage, nil)

	svc := services.NewLimitService(limitRepo, testLimitDefaults())
	delta, err := svc.CheckAndReserve(context.Background(), testCustomerID, domain.LimitEntityUser, domain.LimitOpWithdrawal, dec("35000"), testNow)
	require.NoError(t, err, "counters from a previous month must not count against today")
	assert.True(t, delta.Amount.Equal(dec("35000")))
}

func TestCheckAndReserveFallsBackToDefaults(t *testing.T) {
	limitRepo := new(MockLimitRepository)
	limitRepo.On("FindLimitSettings", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(nil, apperrors.ErrNotFound)
	limitRepo.On("FindLimitUsage", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(nil, apperrors.ErrNotFound)

	defaults := testLimitDefaults()
	svc := services.NewLimitService(limitRepo, defaults)
	delta, err := svc.CheckAndReserve(context.Background(), testCustomerID, domain.LimitEntityUser, domain.LimitOpWithdrawal, dec("99999"), testNow)
	require.NoError(t, err)

	assert.Equal(t, testCustomerID, delta.EntityID)
	assert.Equal(t, domain.LimitEntityUser, delta.EntityKind)
	assert.Equal(t, domain.LimitOpWithdrawal, delta.OpKind)
	assert.True(t, delta.DailyCeiling.Equal(defaults.DailyWithdrawalLimit))
	assert.True(t, delta.MonthlyCeiling.Equal(defaults.MonthlyWithdrawalLimit))
	assert.Equal(t, "daily_withdrawal", delta.DailyName)
	assert.Equal(t, "monthly_withdrawal", delta.MonthlyName)
	assert.Equal(t, testNow, delta.AsOf)
}

func TestCheckAndReserveZeroCeilingBlocks(t *testing.T) {
	limitRepo := new(MockLimitRepository)
	settings := testLimitDefaults()
	settings.DailyTransferLimit = dec("0")
	limitRepo.On("FindLimitSettings", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(&settings, nil)
	limitRepo.On("FindLimitUsage", mock.Anything, testCustomerID, domain.LimitEntityUser).Return(nil, apperrors.ErrNotFound)

	svc := services.NewLimitService(limitRepo, testLimitDefaults())
	_, err := svc.CheckAndReserve(context.Background(), testCustomerID, domain.LimitEntityUser, domain.LimitOpTransfer, dec("1"), testNow)
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)
}

func TestCheckAndReserveAgentTotalCountsEverything(t *testing.T) {
	limitRepo := new(MockLimitRepository)
	settings := testLimitDefaults()
	settings.DailyTotalLimit = dec("500000")
	usage := &domain.LimitUsage{
		EntityID:      "agent-7",
		EntityKind:    domain.LimitEntityAgent,
		DailyTotal:    dec("499000"),
		LastResetDate: testNow,
	}
	limitRepo.On("FindLimitSettings", mock.Anything, "agent-7", domain.LimitEntityAgent).Return(&settings, nil)
	limitRepo.On("FindLimitUsage", mock.Anything, "agent-7", domain.LimitEntityAgent).Return(usage, nil)

	svc := services.NewLimitService(limitRepo, testLimitDefaults())
	_, err := svc.CheckAndReserve(context.Background(), "agent-7", domain.LimitEntityAgent, domain.LimitOpAgentTotal, dec("2000"), testNow)
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	var limitErr *apperrors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "agent_daily_total", limitErr.Ceiling)
}
