package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	"github.com/pesacore/corebanking/internal/core/ports/gateways"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/core/services"
	"github.com/pesacore/corebanking/internal/dto"
)

// memStore is an in-memory implementation of every repository, honoring the
// posting contract: SavePosting is one critical section that re-verifies
// funds and ceilings before anything becomes visible.
type memStore struct {
	mu           sync.Mutex
	accounts     map[string]*domain.Account
	entries      []domain.Transaction
	usage        map[string]*domain.LimitUsage
	settings     map[string]*domain.LimitSettings
	schedules    map[domain.FeeOpType]*domain.FeeSchedule
	billServices map[string]*domain.BillService
	applications map[string]*domain.LoanApplication
	loans        map[string]*domain.Loan
	payments     []domain.LoanPayment
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     make(map[string]*domain.Account),
		usage:        make(map[string]*domain.LimitUsage),
		settings:     make(map[string]*domain.LimitSettings),
		schedules:    make(map[domain.FeeOpType]*domain.FeeSchedule),
		billServices: make(map[string]*domain.BillService),
		applications: make(map[string]*domain.LoanApplication),
		loans:        make(map[string]*domain.Loan),
	}
}

func usageKey(entityID string, kind domain.LimitEntityKind) string {
	return entityID + "/" + string(kind)
}

// --- AccountRepository ---

func (s *memStore) CreateAccount(_ context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.AccountID]; ok {
		return apperrors.ErrDuplicate
	}
	s.accounts[account.AccountID] = &account
	return nil
}

func (s *memStore) FindAccountByID(_ context.Context, accountID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *memStore) FindAccountByNumber(_ context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if account.AccountNumber == accountNumber {
			copied := *account
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memStore) UpdateAccountStatus(_ context.Context, accountID string, status domain.AccountStatus, updatedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return apperrors.ErrNotFound
	}
	account.Status = status
	account.LastUpdatedBy = updatedBy
	account.LastUpdatedAt = at
	return nil
}

func (s *memStore) FindAccountType(_ context.Context, code string) (*domain.AccountType, error) {
	return &domain.AccountType{Code: code, Name: "Savings", IsActive: true}, nil
}

// --- LedgerRepository ---

func (s *memStore) SavePosting(_ context.Context, posting portsrepo.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountIDs := make([]string, 0, len(posting.BalanceChanges))
	for accID := range posting.BalanceChanges {
		accountIDs = append(accountIDs, accID)
	}
	sort.Strings(accountIDs)

	for _, accID := range accountIDs {
		account, ok := s.accounts[accID]
		if !ok {
			return apperrors.ErrNotFound
		}
		delta := posting.BalanceChanges[accID]
		if delta.IsNegative() && account.AvailableBalance.Add(account.OverdraftLimit).Add(delta).IsNegative() {
			return apperrors.ErrInsufficientFunds
		}
	}

	for i := range posting.Entries {
		e := &posting.Entries[i]
		if e.IdempotencyKey == "" {
			continue
		}
		for _, existing := range s.entries {
			if existing.IdempotencyKey == e.IdempotencyKey {
				return apperrors.ErrDuplicate
			}
		}
	}

	for i := range posting.LimitDeltas {
		delta := &posting.LimitDeltas[i]
		key := usageKey(delta.EntityID, delta.EntityKind)
		usage, ok := s.usage[key]
		if !ok {
			usage = &domain.LimitUsage{EntityID: delta.EntityID, EntityKind: delta.EntityKind, LastResetDate: delta.AsOf}
		}
		usage.RolloverTo(delta.AsOf)
		daily, monthly := usage.Consumed(delta.OpKind)
		if daily.Add(delta.Amount).GreaterThan(delta.DailyCeiling) {
			return &apperrors.LimitExceededError{Ceiling: delta.DailyName, Limit: delta.DailyCeiling.StringFixed(2)}
		}
		if monthly.Add(delta.Amount).GreaterThan(delta.MonthlyCeiling) {
			return &apperrors.LimitExceededError{Ceiling: delta.MonthlyName, Limit: delta.MonthlyCeiling.StringFixed(2)}
		}
		usage.Apply(delta.OpKind, delta.Amount)
		s.usage[key] = usage
	}

	for _, id := range posting.ReversedIDs {
		flipped := false
		for i := range s.entries {
			if s.entries[i].TransactionID == id && s.entries[i].Status == domain.TxnCompleted {
				s.entries[i].Status = domain.TxnReversed
				s.entries[i].ProcessedAt = posting.ReversedAt
				flipped = true
				break
			}
		}
		if !flipped {
			return fmt.Errorf("%w: transaction %s is no longer completed, cannot reverse", apperrors.ErrValidation, id)
		}
	}

	running := make(map[string]decimal.Decimal, len(accountIDs))
	for _, accID := range accountIDs {
		running[accID] = s.accounts[accID].Balance
	}
	for i := range posting.Entries {
		e := &posting.Entries[i]
		e.BalanceBefore = running[e.AccountID]
		e.BalanceAfter = e.BalanceBefore.Add(e.SignedEffect())
		running[e.AccountID] = e.BalanceAfter
		s.entries = append(s.entries, *e)
	}
	for accID, delta := range posting.BalanceChanges {
		account := s.accounts[accID]
		account.Balance = account.Balance.Add(delta)
		account.AvailableBalance = account.AvailableBalance.Add(delta)
	}
	return nil
}

func (s *memStore) FindTransactionByID(_ context.Context, transactionID string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].TransactionID == transactionID {
			copied := s.entries[i]
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memStore) FindTransactionsByIdempotencyKey(_ context.Context, key string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for i := range s.entries {
		if s.entries[i].IdempotencyKey == key {
			out = append(out, s.entries[i])
		}
	}
	if len(out) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return out, nil
}

func (s *memStore) ListTransactionsByAccount(_ context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for i := range s.entries {
		e := s.entries[i]
		if e.AccountID == accountID && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) BalanceAsOf(_ context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance := decimal.Zero
	for i := range s.entries {
		e := s.entries[i]
		if e.AccountID == accountID && e.CreatedAt.Before(at) {
			balance = e.BalanceAfter
		}
	}
	return balance, nil
}

// --- LimitRepository ---

func (s *memStore) FindLimitSettings(_ context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.settings[usageKey(entityID, kind)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *settings
	return &copied, nil
}

func (s *memStore) FindLimitUsage(_ context.Context, entityID string, kind domain.LimitEntityKind) (*domain.LimitUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	usage, ok := s.usage[usageKey(entityID, kind)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *usage
	return &copied, nil
}

// --- FeeScheduleRepository ---

func (s *memStore) FindFeeSchedule(_ context.Context, opType domain.FeeOpType, at time.Time) (*domain.FeeSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.schedules[opType]
	if !ok || !row.EffectiveAt(at) {
		return nil, apperrors.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (s *memStore) FindBillService(_ context.Context, serviceID string) (*domain.BillService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.billServices[serviceID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *svc
	return &copied, nil
}

// --- LoanRepository ---

func (s *memStore) FindApplicationByID(_ context.Context, applicationID string) (*domain.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[applicationID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (s *memStore) MarkApplicationDisbursed(_ context.Context, applicationID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[applicationID]
	if !ok || app.Status != domain.ApplicationApproved {
		return apperrors.ErrNotFound
	}
	app.Status = domain.ApplicationDisbursed
	app.LastUpdatedAt = at
	return nil
}

func (s *memStore) CreateLoan(_ context.Context, loan domain.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[loan.LoanID] = &loan
	return nil
}

func (s *memStore) FindLoanByID(_ context.Context, loanID string) (*domain.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loan, ok := s.loans[loanID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *loan
	return &copied, nil
}

func (s *memStore) UpdateLoanAggregates(_ context.Context, loan domain.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[loan.LoanID]; !ok {
		return apperrors.ErrNotFound
	}
	s.loans[loan.LoanID] = &loan
	return nil
}

func (s *memStore) CreateLoanPayment(_ context.Context, payment domain.LoanPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, payment)
	return nil
}

func (s *memStore) ListLoanPayments(_ context.Context, loanID string) ([]domain.LoanPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LoanPayment
	for _, p := range s.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeBiller records deliveries and can be made to fail.
type fakeBiller struct {
	mu       sync.Mutex
	fail     bool
	received []gateways.BillerNotification
}

func (b *fakeBiller) Notify(_ context.Context, n gateways.BillerNotification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("aggregator unreachable")
	}
	b.received = append(b.received, n)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

// generous defaults so fees and funds, not limits, decide most tests
func testLimitDefaults() domain.LimitSettings {
	return domain.LimitSettings{
		SingleTransactionLimit: dec("500000"),
		DailyWithdrawalLimit:   dec("100000"),
		DailyTransferLimit:     dec("1000000"),
		MonthlyWithdrawalLimit: dec("1000000"),
		MonthlyTransferLimit:   dec("5000000"),
		DailyTotalLimit:        dec("500000"),
		MonthlyTotalLimit:      dec("10000000"),
	}
}

type engineFixture struct {
	store  *memStore
	biller *fakeBiller
	engine portssvc.TransactionEngineSvcFacade
	loans  portssvc.LoanSvcFacade
}

func newEngineFixture(t *testing.T, defaults domain.LimitSettings) *engineFixture {
	t.Helper()
	store := newMemStore()
	biller := &fakeBiller{}
	repos := portsrepo.RepositoryProvider{
		AccountRepo: store,
		LedgerRepo:  store,
		LimitRepo:   store,
		FeeRepo:     store,
		LoanRepo:    store,
	}
	limitSvc := services.NewLimitService(store, defaults)
	feeSvc := services.NewFeeService(store)
	loanSvc := services.NewLoanService(store)
	engine := services.NewTransactionEngine(repos, limitSvc, feeSvc, loanSvc, biller, nil,
		services.WithClock(func() time.Time { return testNow }))
	return &engineFixture{store: store, biller: biller, engine: engine, loans: loanSvc}
}

func (f *engineFixture) addAccount(balance string) *domain.Account {
	account := &domain.Account{
		AccountID:        uuid.NewString(),
		AccountNumber:    "001" + uuid.NewString()[:7],
		CustomerID:       uuid.NewString(),
		HolderName:       "Jane Wanjiku",
		AccountTypeCode:  "SAV",
		BranchCode:       "001",
		Balance:          dec(balance),
		AvailableBalance: dec(balance),
		Status:           domain.AccountActive,
		OverdraftLimit:   decimal.Zero,
	}
	f.store.accounts[account.AccountID] = account
	return account
}

func (f *engineFixture) balance(accountID string) decimal.Decimal {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return f.store.accounts[accountID].Balance
}

func TestDepositCreditsNetOfAgentFee(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")

	result, err := f.engine.Deposit(context.Background(), dto.DepositRequest{
		AccountID: account.AccountID,
		Amount:    dec("1000"),
		Channel:   domain.ChannelAgent,
		AgentID:   "agent-1",
	})
	require.NoError(t, err)

	// default agent deposit tariff is 10, deducted from the cash handed in
	assert.True(t, result.NewBalance.Equal(dec("990")), "got %s", result.NewBalance)
	assert.True(t, result.FeeCharged.Equal(dec("10")))
	assert.True(t, f.balance(account.AccountID).Equal(dec("990")))
}

func TestDepositBranchChannelNoFee(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("50")

	result, err := f.engine.Deposit(context.Background(), dto.DepositRequest{
		AccountID: account.AccountID,
		Amount:    dec("200"),
		Channel:   domain.ChannelBranch,
	})
	require.NoError(t, err)
	assert.True(t, result.FeeCharged.IsZero())
	assert.True(t, result.NewBalance.Equal(dec("250")))
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")

	_, err := f.engine.Deposit(context.Background(), dto.DepositRequest{
		AccountID: account.AccountID,
		Amount:    dec("-5"),
		Channel:   domain.ChannelBranch,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDepositInactiveAccountRejected(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")
	f.store.accounts[account.AccountID].Status = domain.AccountFrozen

	_, err := f.engine.Deposit(context.Background(), dto.DepositRequest{
		AccountID: account.AccountID,
		Amount:    dec("100"),
		Channel:   domain.ChannelBranch,
	})
	assert.ErrorIs(t, err, apperrors.ErrAccountNotActive)
	assert.True(t, f.balance(account.AccountID).IsZero())
}

func TestWithdrawDebitsAmountPlusFee(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("1000")

	result, err := f.engine.Withdraw(context.Background(), dto.WithdrawRequest{
		AccountID: account.AccountID,
		Amount:    dec("900"),
		Channel:   domain.ChannelAgent,
	})
	require.NoError(t, err)

	// default agent withdrawal tariff is 35, charged on top
	assert.True(t, result.FeeCharged.Equal(dec("35")))
	assert.True(t, f.balance(account.AccountID).Equal(dec("65")))
}

func TestWithdrawFailsWhenFeeBreaksFunds(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("1000")

	_, err := f.engine.Withdraw(context.Background(), dto.WithdrawRequest{
		AccountID: account.AccountID,
		Amount:    dec("1000"),
		Channel:   domain.ChannelAgent,
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
	assert.True(t, f.balance(account.AccountID).Equal(dec("1000")), "rejection must not move money")
}

func TestWithdrawDailyLimitExceeded(t *testing.T) {
	defaults := testLimitDefaults()
	defaults.DailyWithdrawalLimit = dec("40000")
	f := newEngineFixture(t, defaults)
	account := f.addAccount("100000")

	_, err := f.engine.Withdraw(context.Background(), dto.WithdrawRequest{
		AccountID: account.AccountID,
		Amount:    dec("30000"),
		Channel:   domain.ChannelAgent,
	})
	require.NoError(t, err)

	_, err = f.engine.Withdraw(context.Background(), dto.WithdrawRequest{
		AccountID: account.AccountID,
		Amount:    dec("15000"),
		Channel:   domain.ChannelAgent,
	})
	require.ErrorIs(t, err, apperrors.ErrLimitExceeded)

	var limitErr *apperrors.LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "daily_withdrawal", limitErr.Ceiling)
}

func TestConcurrentWithdrawalsCannotOverdraw(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	f.store.schedules[domain.FeeATMWithdrawalOnUs] = scheduleRow("0", "0", "0", "0")
	account := f.addAccount("1000")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Withdraw(context.Background(), dto.WithdrawRequest{
				AccountID: account.AccountID,
				Amount:    dec("700"),
				Channel:   domain.ChannelATM,
			})
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
			failed++
		}
	}
	require.Equal(t, 1, failed, "exactly one of the two withdrawals must fail")
	assert.True(t, f.balance(account.AccountID).Equal(dec("300")))
}

func TestTransferMovesMoneyAtomicallyWithOneFee(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	source := f.addAccount("1000")
	dest := f.addAccount("0")

	result, err := f.engine.Transfer(context.Background(), dto.TransferRequest{
		SourceAccountID:   source.AccountID,
		DestAccountNumber: dest.AccountNumber,
		Amount:            dec("500"),
		Channel:           domain.ChannelMobile,
	})
	require.NoError(t, err)

	// default own-bank transfer tariff is 25, sender pays it
	assert.True(t, result.FeeCharged.Equal(dec("25")))
	assert.True(t, f.balance(source.AccountID).Equal(dec("475")))
	assert.True(t, f.balance(dest.AccountID).Equal(dec("500")))

	entries, err := f.store.ListTransactionsByAccount(context.Background(), dest.AccountID, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	credit := entries[0]
	assert.Equal(t, domain.DirCredit, credit.Direction)
	assert.Equal(t, result.TransactionID, credit.PairTransactionID)
	assert.True(t, credit.Fee.IsZero(), "beneficiary never pays the fee")
}

func TestTransferToSameAccountRejected(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	source := f.addAccount("1000")

	_, err := f.engine.Transfer(context.Background(), dto.TransferRequest{
		SourceAccountID:   source.AccountID,
		DestAccountNumber: source.AccountNumber,
		Amount:            dec("100"),
		Channel:           domain.ChannelMobile,
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.True(t, f.balance(source.AccountID).Equal(dec("1000")))
}

func TestTransferToInactiveBeneficiaryRejected(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	source := f.addAccount("1000")
	dest := f.addAccount("0")
	f.store.accounts[dest.AccountID].Status = domain.AccountDormant

	_, err := f.engine.Transfer(context.Background(), dto.TransferRequest{
		SourceAccountID:   source.AccountID,
		DestAccountNumber: dest.AccountNumber,
		Amount:            dec("100"),
		Channel:           domain.ChannelMobile,
	})
	assert.ErrorIs(t, err, apperrors.ErrAccountNotActive)
	assert.True(t, f.balance(source.AccountID).Equal(dec("1000")))
}

func TestIdempotentReplayReturnsOriginalResult(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")

	req := dto.DepositRequest{
		AccountID:      account.AccountID,
		Amount:         dec("300"),
		Channel:        domain.ChannelBranch,
		IdempotencyKey: "dep-key-1",
	}
	first, err := f.engine.Deposit(context.Background(), req)
	require.NoError(t, err)

	second, err := f.engine.Deposit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.True(t, f.balance(account.AccountID).Equal(dec("300")), "resubmission must not credit twice")
}

func TestIdempotentTransferReplayDoesNotDoubleApply(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	source := f.addAccount("1000")
	dest := f.addAccount("0")

	req := dto.TransferRequest{
		SourceAccountID:   source.AccountID,
		DestAccountNumber: dest.AccountNumber,
		Amount:            dec("200"),
		Channel:           domain.ChannelMobile,
		IdempotencyKey:    "xfer-key-1",
	}
	first, err := f.engine.Transfer(context.Background(), req)
	require.NoError(t, err)

	second, err := f.engine.Transfer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.True(t, f.balance(source.AccountID).Equal(dec("775")), "200 plus the 25 fee, once")
	assert.True(t, f.balance(dest.AccountID).Equal(dec("200")))
}

func TestReverseTransferUndoesBothLegs(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	source := f.addAccount("1000")
	dest := f.addAccount("0")

	result, err := f.engine.Transfer(context.Background(), dto.TransferRequest{
		SourceAccountID:   source.AccountID,
		DestAccountNumber: dest.AccountNumber,
		Amount:            dec("400"),
		Channel:           domain.ChannelMobile,
	})
	require.NoError(t, err)

	_, err = f.engine.Reverse(context.Background(), dto.ReversalRequest{
		TransactionID: result.TransactionID,
		Reason:        "teller keyed wrong beneficiary",
	})
	require.NoError(t, err)

	assert.True(t, f.balance(source.AccountID).Equal(dec("1000")))
	assert.True(t, f.balance(dest.AccountID).Equal(dec("0")))

	original, err := f.store.FindTransactionByID(context.Background(), result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnReversed, original.Status)
}

func TestReversalOfReversalRejected(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("500")

	dep, err := f.engine.Deposit(context.Background(), dto.DepositRequest{
		AccountID: account.AccountID, Amount: dec("100"), Channel: domain.ChannelBranch,
	})
	require.NoError(t, err)

	rev, err := f.engine.Reverse(context.Background(), dto.ReversalRequest{TransactionID: dep.TransactionID, Reason: "dup"})
	require.NoError(t, err)

	_, err = f.engine.Reverse(context.Background(), dto.ReversalRequest{TransactionID: rev.TransactionID, Reason: "undo the undo"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// staleLedger pins transaction reads to a snapshot taken before any reversal
// committed, so a second reversal's status pre-check sees the same completed
// entry a concurrent database connection would.
type staleLedger struct {
	*memStore
	snapshot map[string]domain.Transaction
}

func (s *staleLedger) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	if e, ok := s.snapshot[transactionID]; ok {
		copied := e
		return &copied, nil
	}
	return s.memStore.FindTransactionByID(ctx, transactionID)
}

func TestRacingReversalsApplyOnce(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")
	ctx := context.Background()

	dep, err := f.engine.Deposit(ctx, dto.DepositRequest{
		AccountID: account.AccountID, Amount: dec("100"), Channel: domain.ChannelBranch,
	})
	require.NoError(t, err)

	original, err := f.store.FindTransactionByID(ctx, dep.TransactionID)
	require.NoError(t, err)

	stale := &staleLedger{memStore: f.store, snapshot: map[string]domain.Transaction{
		original.TransactionID: *original,
	}}
	repos := portsrepo.RepositoryProvider{
		AccountRepo: f.store,
		LedgerRepo:  stale,
		LimitRepo:   f.store,
		FeeRepo:     f.store,
		LoanRepo:    f.store,
	}
	racer := services.NewTransactionEngine(repos,
		services.NewLimitService(f.store, testLimitDefaults()),
		services.NewFeeService(f.store), services.NewLoanService(f.store),
		f.biller, nil, services.WithClock(func() time.Time { return testNow }))

	_, err = racer.Reverse(ctx, dto.ReversalRequest{TransactionID: dep.TransactionID, Reason: "duplicate posting"})
	require.NoError(t, err)

	// both calls saw a completed original; the commit-time status flip must
	// reject the loser instead of moving the money again
	_, err = racer.Reverse(ctx, dto.ReversalRequest{TransactionID: dep.TransactionID, Reason: "duplicate posting"})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	assert.True(t, f.balance(account.AccountID).Equal(dec("0")), "balance %s", f.balance(account.AccountID))

	reversals := 0
	for i := range f.store.entries {
		if f.store.entries[i].Type == domain.TxnReversal {
			reversals++
		}
	}
	assert.Equal(t, 1, reversals)
}

func TestPayBillUsesServiceFeeAndSurvivesBillerOutage(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("5000")
	f.store.billServices["svc-power"] = &domain.BillService{
		ServiceID: "svc-power", Name: "Kenya Power", Code: "KPLC", Category: "utility",
		Fee: dec("45"), IsActive: true,
	}
	f.biller.fail = true

	result, err := f.engine.PayBill(context.Background(), dto.BillPaymentRequest{
		AccountID:      account.AccountID,
		ServiceID:      "svc-power",
		BillAccountRef: "meter-778",
		Amount:         dec("1200"),
		Channel:        domain.ChannelMobile,
	})
	require.NoError(t, err, "biller outage must not fail the committed debit")
	assert.True(t, result.FeeCharged.Equal(dec("45")))
	assert.True(t, f.balance(account.AccountID).Equal(dec("3755")))
}

func TestDisburseAndRepayLoan(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")
	appID := uuid.NewString()
	f.store.applications[appID] = &domain.LoanApplication{
		ApplicationID:   appID,
		ApplicantID:     account.CustomerID,
		AccountID:       account.AccountID,
		RequestedAmount: dec("120000"),
		ApprovedAmount:  dec("120000"),
		AnnualRate:      dec("0.12"),
		TenureMonths:    12,
		Status:          domain.ApplicationApproved,
	}

	result, err := f.engine.DisburseLoan(context.Background(), dto.DisburseLoanRequest{ApplicationID: appID})
	require.NoError(t, err)

	// loan processing has no schedule row in this fixture, default is zero
	assert.True(t, result.FeeCharged.IsZero())
	assert.True(t, f.balance(account.AccountID).Equal(dec("120000")))

	f.store.mu.Lock()
	require.Len(t, f.store.loans, 1)
	var loan *domain.Loan
	for _, l := range f.store.loans {
		loan = l
	}
	f.store.mu.Unlock()
	assert.True(t, loan.MonthlyInstallment.Equal(dec("10661.85")), "got %s", loan.MonthlyInstallment)
	assert.Equal(t, domain.ApplicationDisbursed, f.store.applications[appID].Status)

	_, err = f.engine.RepayLoan(context.Background(), dto.RepayLoanRequest{
		LoanID:    loan.LoanID,
		AccountID: account.AccountID,
		Amount:    dec("10661.85"),
		Channel:   domain.ChannelMobile,
	})
	require.NoError(t, err)

	updated, err := f.loans.GetLoan(context.Background(), loan.LoanID)
	require.NoError(t, err)
	// first month: interest 1200.00, principal 9461.85
	assert.True(t, updated.OutstandingPrincipal.Equal(dec("110538.15")), "got %s", updated.OutstandingPrincipal)
	assert.True(t, updated.TotalPaid.Equal(dec("10661.85")))
	assert.True(t, f.balance(account.AccountID).Equal(dec("109338.15")))

	payments, err := f.store.ListLoanPayments(context.Background(), loan.LoanID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].InterestAmount.Equal(dec("1200")))
	assert.True(t, payments[0].PrincipalAmount.Equal(dec("9461.85")))
}

func TestDisburseRejectsUnapprovedApplication(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")
	appID := uuid.NewString()
	f.store.applications[appID] = &domain.LoanApplication{
		ApplicationID:  appID,
		AccountID:      account.AccountID,
		ApprovedAmount: dec("50000"),
		AnnualRate:     dec("0.10"),
		TenureMonths:   6,
		Status:         domain.ApplicationPending,
	}

	_, err := f.engine.DisburseLoan(context.Background(), dto.DisburseLoanRequest{ApplicationID: appID})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.True(t, f.balance(account.AccountID).IsZero())
}

func TestCreditInterest(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("10000")

	result, err := f.engine.CreditInterest(context.Background(), dto.InterestCreditRequest{
		AccountID: account.AccountID,
		Amount:    dec("37.50"),
	})
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(dec("10037.50")))
}

// Replaying completed entries in order from zero must reproduce the live
// balance, including across a reversal.
func TestLedgerReplayReproducesBalance(t *testing.T) {
	f := newEngineFixture(t, testLimitDefaults())
	account := f.addAccount("0")
	other := f.addAccount("0")
	ctx := context.Background()

	_, err := f.engine.Deposit(ctx, dto.DepositRequest{AccountID: account.AccountID, Amount: dec("5000"), Channel: domain.ChannelBranch})
	require.NoError(t, err)
	_, err = f.engine.Withdraw(ctx, dto.WithdrawRequest{AccountID: account.AccountID, Amount: dec("1000"), Channel: domain.ChannelAgent})
	require.NoError(t, err)
	transfer, err := f.engine.Transfer(ctx, dto.TransferRequest{
		SourceAccountID: account.AccountID, DestAccountNumber: other.AccountNumber,
		Amount: dec("500"), Channel: domain.ChannelMobile,
	})
	require.NoError(t, err)
	_, err = f.engine.Reverse(ctx, dto.ReversalRequest{TransactionID: transfer.TransactionID, Reason: "customer dispute"})
	require.NoError(t, err)

	entries, err := f.store.ListTransactionsByAccount(ctx, account.AccountID, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)

	replayed := decimal.Zero
	for i := range entries {
		e := entries[i]
		if e.Status == domain.TxnCompleted || e.Status == domain.TxnReversed {
			replayed = replayed.Add(e.SignedEffect())
		}
		assert.True(t, e.BalanceAfter.Equal(e.BalanceBefore.Add(e.SignedEffect())),
			"entry %s breaks before/after bookkeeping", e.TransactionID)
	}
	assert.True(t, replayed.Equal(f.balance(account.AccountID)),
		"replay %s, live %s", replayed, f.balance(account.AccountID))

	statements := services.NewStatementService(f.store, f.store)
	folded, err := statements.ReplayBalance(ctx, account.AccountID, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, folded.Equal(f.balance(account.AccountID)),
		"statement replay %s, live %s", folded, f.balance(account.AccountID))
}
