package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	"github.com/pesacore/corebanking/internal/core/services"
)

type MockLedgerRepository struct {
	mock.Mock
}

var _ portsrepo.LedgerRepository = (*MockLedgerRepository)(nil)

func (m *MockLedgerRepository) SavePosting(ctx context.Context, posting portsrepo.Posting) error {
	args := m.Called(ctx, posting)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) FindTransactionsByIdempotencyKey(ctx context.Context, key string) ([]domain.Transaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) ListTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error) {
	args := m.Called(ctx, accountID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) BalanceAsOf(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID, at)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func statementEntry(direction domain.Direction, total string, status domain.TransactionStatus) domain.Transaction {
	return domain.Transaction{
		TransactionID: domain.NewTransactionID(testNow),
		AccountID:     "acc-1",
		Type:          domain.TxnDeposit,
		Direction:     direction,
		Amount:        dec(total),
		TotalAmount:   dec(total),
		Status:        status,
		CreatedAt:     testNow,
	}
}

func TestBuildStatement(t *testing.T) {
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	accountRepo := new(MockAccountRepository)
	accountRepo.On("FindAccountByID", mock.Anything, "acc-1").Return(&domain.Account{
		AccountID:     "acc-1",
		AccountNumber: "0141234567",
		Status:        domain.AccountActive,
	}, nil)

	ledgerRepo := new(MockLedgerRepository)
	ledgerRepo.On("BalanceAsOf", mock.Anything, "acc-1", from).Return(dec("2500"), nil)
	ledgerRepo.On("ListTransactionsByAccount", mock.Anything, "acc-1", from, to).Return([]domain.Transaction{
		statementEntry(domain.DirCredit, "1000", domain.TxnCompleted),
		statementEntry(domain.DirDebit, "400", domain.TxnCompleted),
		statementEntry(domain.DirDebit, "9999", domain.TxnFailed),
		statementEntry(domain.DirCredit, "250", domain.TxnReversed),
	}, nil)

	svc := services.NewStatementService(accountRepo, ledgerRepo)
	statement, err := svc.Build(context.Background(), "acc-1", from, to)
	require.NoError(t, err)

	assert.Equal(t, "0141234567", statement.AccountNumber)
	assert.True(t, statement.OpeningBalance.Equal(dec("2500")))
	// failed entries never counted; reversed ones stay visible
	assert.Len(t, statement.Entries, 3)
	assert.True(t, statement.TotalCredits.Equal(dec("1250")), "credits %s", statement.TotalCredits)
	assert.True(t, statement.TotalDebits.Equal(dec("400")))
	assert.True(t, statement.ClosingBalance.Equal(dec("3350")), "closing %s", statement.ClosingBalance)
}

func TestBuildStatementEmptyRange(t *testing.T) {
	from := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	accountRepo := new(MockAccountRepository)
	accountRepo.On("FindAccountByID", mock.Anything, "acc-1").Return(&domain.Account{
		AccountID:     "acc-1",
		AccountNumber: "0141234567",
	}, nil)

	ledgerRepo := new(MockLedgerRepository)
	ledgerRepo.On("BalanceAsOf", mock.Anything, "acc-1", from).Return(decimal.Zero, nil)
	ledgerRepo.On("ListTransactionsByAccount", mock.Anything, "acc-1", from, to).Return([]domain.Transaction{}, nil)

	svc := services.NewStatementService(accountRepo, ledgerRepo)
	statement, err := svc.Build(context.Background(), "acc-1", from, to)
	require.NoError(t, err)

	assert.Empty(t, statement.Entries)
	assert.True(t, statement.ClosingBalance.Equal(statement.OpeningBalance))
}

func TestReplayBalanceFoldsSettledEntries(t *testing.T) {
	asOf := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	accountRepo := new(MockAccountRepository)
	ledgerRepo := new(MockLedgerRepository)
	ledgerRepo.On("ListTransactionsByAccount", mock.Anything, "acc-1", time.Time{}, asOf).Return([]domain.Transaction{
		statementEntry(domain.DirCredit, "5000", domain.TxnCompleted),
		statementEntry(domain.DirDebit, "1200", domain.TxnCompleted),
		statementEntry(domain.DirDebit, "9999", domain.TxnFailed),
		statementEntry(domain.DirDebit, "300", domain.TxnReversed),
		statementEntry(domain.DirCredit, "300", domain.TxnCompleted),
	}, nil)

	svc := services.NewStatementService(accountRepo, ledgerRepo)
	balance, err := svc.ReplayBalance(context.Background(), "acc-1", asOf)
	require.NoError(t, err)

	// the reversed debit and its reversal credit cancel out
	assert.True(t, balance.Equal(dec("3800")), "replayed %s", balance)
}
