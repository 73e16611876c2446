package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	"github.com/pesacore/corebanking/internal/core/ports/gateways"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/dto"
	"github.com/pesacore/corebanking/internal/infra/observability"
	"github.com/pesacore/corebanking/internal/middleware"
)

// commitRetries bounds how many times a posting is retried after the store
// reports a serialization conflict before the failure surfaces to the caller.
const commitRetries = 3

// engineService is the transaction engine: the only component that moves
// money. Every operation is validated, priced, and committed as a single
// atomic posting covering balances, ledger entries, and limit counters.
type engineService struct {
	accountRepo portsrepo.AccountRepository
	ledgerRepo  portsrepo.LedgerRepository
	loanRepo    portsrepo.LoanRepository
	feeRepo     portsrepo.FeeScheduleRepository
	limitSvc    portssvc.LimitSvcFacade
	feeSvc      portssvc.FeeSvcFacade
	loanSvc     portssvc.LoanSvcFacade
	biller      gateways.BillerGateway
	metrics     *observability.Metrics
	now         func() time.Time
}

// EngineOption customises engine construction.
type EngineOption func(*engineService)

// WithClock overrides the engine's clock. Used by tests to pin rollover and
// timestamp behavior.
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineService) { e.now = now }
}

// NewTransactionEngine creates the engine.
func NewTransactionEngine(
	repos portsrepo.RepositoryProvider,
	limitSvc portssvc.LimitSvcFacade,
	feeSvc portssvc.FeeSvcFacade,
	loanSvc portssvc.LoanSvcFacade,
	biller gateways.BillerGateway,
	metrics *observability.Metrics,
	opts ...EngineOption,
) portssvc.TransactionEngineSvcFacade {
	e := &engineService{
		accountRepo: repos.AccountRepo,
		ledgerRepo:  repos.LedgerRepo,
		loanRepo:    repos.LoanRepo,
		feeRepo:     repos.FeeRepo,
		limitSvc:    limitSvc,
		feeSvc:      feeSvc,
		loanSvc:     loanSvc,
		biller:      biller,
		metrics:     metrics,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ portssvc.TransactionEngineSvcFacade = (*engineService)(nil)

// Deposit credits cash into an account. The fee is deducted from the
// deposited cash, so the account is credited amount minus fee. This mirrors
// over-the-counter behavior where the customer hands in the gross amount.
func (e *engineService) Deposit(ctx context.Context, req dto.DepositRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	if replay, err := e.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	account, err := e.loadActiveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, e.reject(err)
	}

	fee := decimal.Zero
	if req.Channel == domain.ChannelAgent {
		fee, err = e.feeSvc.Calculate(ctx, domain.FeeAgentDeposit, req.Amount, start)
		if err != nil {
			return nil, fmt.Errorf("failed to price deposit: %w", err)
		}
	}
	net := req.Amount.Sub(fee)
	if net.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: deposit of %s does not cover the %s fee",
			apperrors.ErrValidation, req.Amount.StringFixed(2), fee.StringFixed(2))
	}

	var deltas []domain.LimitDelta
	if req.AgentID != "" {
		delta, err := e.limitSvc.CheckAndReserve(ctx, req.AgentID, domain.LimitEntityAgent, domain.LimitOpAgentTotal, req.Amount, start)
		if err != nil {
			return nil, e.reject(err)
		}
		deltas = append(deltas, *delta)
	}

	entry := domain.Transaction{
		TransactionID:  domain.NewTransactionID(start),
		AccountID:      account.AccountID,
		Type:           domain.TxnDeposit,
		Direction:      domain.DirCredit,
		Amount:         req.Amount,
		Fee:            fee,
		TotalAmount:    net,
		Channel:        req.Channel,
		Description:    orDefault(req.Description, "Cash deposit"),
		Status:         domain.TxnCompleted,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      start,
		ProcessedAt:    start,
	}

	posting := portsrepo.Posting{
		Entries:        []domain.Transaction{entry},
		BalanceChanges: map[string]decimal.Decimal{account.AccountID: net},
		LimitDeltas:    deltas,
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	e.observe("deposit", start)
	logger.Info("Deposit completed",
		slog.String("transaction_id", posting.Entries[0].TransactionID),
		slog.String("account_id", account.AccountID),
		slog.String("amount", req.Amount.String()),
		slog.String("fee", fee.String()))
	return resultOf(&posting.Entries[0]), nil
}

// Withdraw debits amount plus fee from an account, subject to the single,
// daily, and monthly withdrawal ceilings.
func (e *engineService) Withdraw(ctx context.Context, req dto.WithdrawRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	if replay, err := e.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	account, err := e.loadActiveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, e.reject(err)
	}

	delta, err := e.limitSvc.CheckAndReserve(ctx, account.CustomerID, domain.LimitEntityUser, domain.LimitOpWithdrawal, req.Amount, start)
	if err != nil {
		return nil, e.reject(err)
	}
	deltas := []domain.LimitDelta{*delta}
	if req.AgentID != "" {
		agentDelta, err := e.limitSvc.CheckAndReserve(ctx, req.AgentID, domain.LimitEntityAgent, domain.LimitOpAgentTotal, req.Amount, start)
		if err != nil {
			return nil, e.reject(err)
		}
		deltas = append(deltas, *agentDelta)
	}

	feeOp := domain.FeeAgentWithdrawal
	if req.Channel == domain.ChannelATM {
		feeOp = domain.FeeATMWithdrawalOnUs
	}
	fee, err := e.feeSvc.Calculate(ctx, feeOp, req.Amount, start)
	if err != nil {
		return nil, fmt.Errorf("failed to price withdrawal: %w", err)
	}
	total := req.Amount.Add(fee)

	// The posting re-checks funds under the row lock; this check only gives
	// the caller a specific error before pricing work is wasted.
	if !account.AvailableFor(total) {
		return nil, e.reject(fmt.Errorf("%w: available %s, required %s",
			apperrors.ErrInsufficientFunds, account.AvailableBalance.StringFixed(2), total.StringFixed(2)))
	}

	entry := domain.Transaction{
		TransactionID:  domain.NewTransactionID(start),
		AccountID:      account.AccountID,
		Type:           domain.TxnWithdrawal,
		Direction:      domain.DirDebit,
		Amount:         req.Amount,
		Fee:            fee,
		TotalAmount:    total,
		Channel:        req.Channel,
		Description:    orDefault(req.Description, "Cash withdrawal"),
		Status:         domain.TxnCompleted,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      start,
		ProcessedAt:    start,
	}

	posting := portsrepo.Posting{
		Entries:        []domain.Transaction{entry},
		BalanceChanges: map[string]decimal.Decimal{account.AccountID: total.Neg()},
		LimitDeltas:    deltas,
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	e.observe("withdrawal", start)
	logger.Info("Withdrawal completed",
		slog.String("transaction_id", posting.Entries[0].TransactionID),
		slog.String("account_id", account.AccountID),
		slog.String("amount", req.Amount.String()),
		slog.String("fee", fee.String()))
	return resultOf(&posting.Entries[0]), nil
}

// Transfer moves amount between two accounts of this bank. The fee is
// charged once, to the sender. The debit and credit entries are a linked
// pair committed in one posting: both exist or neither does.
func (e *engineService) Transfer(ctx context.Context, req dto.TransferRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	if replay, err := e.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	source, err := e.loadActiveAccount(ctx, req.SourceAccountID)
	if err != nil {
		return nil, e.reject(err)
	}
	dest, err := e.accountRepo.FindAccountByNumber(ctx, req.DestAccountNumber)
	if err != nil {
		return nil, e.reject(fmt.Errorf("beneficiary %s: %w", req.DestAccountNumber, err))
	}
	if !dest.IsActive() {
		return nil, e.reject(fmt.Errorf("beneficiary %s: %w", req.DestAccountNumber, apperrors.ErrAccountNotActive))
	}
	if dest.AccountID == source.AccountID {
		return nil, e.reject(fmt.Errorf("%w: cannot transfer to the same account", apperrors.ErrValidation))
	}

	delta, err := e.limitSvc.CheckAndReserve(ctx, source.CustomerID, domain.LimitEntityUser, domain.LimitOpTransfer, req.Amount, start)
	if err != nil {
		return nil, e.reject(err)
	}

	feeOp := domain.FeeMobileTransferOwn
	fee, err := e.feeSvc.Calculate(ctx, feeOp, req.Amount, start)
	if err != nil {
		return nil, fmt.Errorf("failed to price transfer: %w", err)
	}
	total := req.Amount.Add(fee)

	if !source.AvailableFor(total) {
		return nil, e.reject(fmt.Errorf("%w: available %s, required %s",
			apperrors.ErrInsufficientFunds, source.AvailableBalance.StringFixed(2), total.StringFixed(2)))
	}

	debitID, creditID := domain.NewTransactionPair(start)
	debit := domain.Transaction{
		TransactionID:     debitID,
		AccountID:         source.AccountID,
		Type:              domain.TxnTransfer,
		Direction:         domain.DirDebit,
		Amount:            req.Amount,
		Fee:               fee,
		TotalAmount:       total,
		Channel:           req.Channel,
		Reference:         req.Reference,
		Description:       fmt.Sprintf("Transfer to %s", dest.AccountNumber),
		Status:            domain.TxnCompleted,
		CounterpartyID:    dest.AccountID,
		PairTransactionID: creditID,
		IdempotencyKey:    req.IdempotencyKey,
		CreatedAt:         start,
		ProcessedAt:       start,
	}
	credit := domain.Transaction{
		TransactionID:     creditID,
		AccountID:         dest.AccountID,
		Type:              domain.TxnTransfer,
		Direction:         domain.DirCredit,
		Amount:            req.Amount,
		Fee:               decimal.Zero,
		TotalAmount:       req.Amount,
		Channel:           req.Channel,
		Reference:         req.Reference,
		Description:       fmt.Sprintf("Transfer from %s", source.AccountNumber),
		Status:            domain.TxnCompleted,
		CounterpartyID:    source.AccountID,
		PairTransactionID: debitID,
		CreatedAt:         start,
		ProcessedAt:       start,
	}

	posting := portsrepo.Posting{
		Entries: []domain.Transaction{debit, credit},
		BalanceChanges: map[string]decimal.Decimal{
			source.AccountID: total.Neg(),
			dest.AccountID:   req.Amount,
		},
		LimitDeltas: []domain.LimitDelta{*delta},
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	e.observe("transfer", start)
	logger.Info("Transfer completed",
		slog.String("transaction_id", debitID),
		slog.String("source_account", source.AccountID),
		slog.String("dest_account", dest.AccountID),
		slog.String("amount", req.Amount.String()),
		slog.String("fee", fee.String()))
	return resultOf(&posting.Entries[0]), nil
}

// PayBill debits a bill payment from an account. The biller is notified
// after commit through the circuit-broken gateway; a failed notification is
// flagged for out-of-band retry, it never unwinds the debit.
func (e *engineService) PayBill(ctx context.Context, req dto.BillPaymentRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	if replay, err := e.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	account, err := e.loadActiveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, e.reject(err)
	}
	service, err := e.feeRepo.FindBillService(ctx, req.ServiceID)
	if err != nil {
		return nil, e.reject(fmt.Errorf("bill service %s: %w", req.ServiceID, err))
	}
	if !service.IsActive {
		return nil, e.reject(fmt.Errorf("%w: bill service %s is inactive", apperrors.ErrValidation, req.ServiceID))
	}

	delta, err := e.limitSvc.CheckAndReserve(ctx, account.CustomerID, domain.LimitEntityUser, domain.LimitOpWithdrawal, req.Amount, start)
	if err != nil {
		return nil, e.reject(err)
	}

	// A per-service fee overrides the general bill payment tariff.
	fee := service.Fee
	if fee.IsZero() {
		fee, err = e.feeSvc.Calculate(ctx, domain.FeeBillPayment, req.Amount, start)
		if err != nil {
			return nil, fmt.Errorf("failed to price bill payment: %w", err)
		}
	}
	total := req.Amount.Add(fee)

	if !account.AvailableFor(total) {
		return nil, e.reject(fmt.Errorf("%w: available %s, required %s",
			apperrors.ErrInsufficientFunds, account.AvailableBalance.StringFixed(2), total.StringFixed(2)))
	}

	entry := domain.Transaction{
		TransactionID:  domain.NewTransactionID(start),
		AccountID:      account.AccountID,
		Type:           domain.TxnBillPayment,
		Direction:      domain.DirDebit,
		Amount:         req.Amount,
		Fee:            fee,
		TotalAmount:    total,
		Channel:        req.Channel,
		Reference:      req.BillAccountRef,
		Description:    fmt.Sprintf("Bill payment to %s", service.Name),
		Status:         domain.TxnCompleted,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      start,
		ProcessedAt:    start,
	}

	posting := portsrepo.Posting{
		Entries:        []domain.Transaction{entry},
		BalanceChanges: map[string]decimal.Decimal{account.AccountID: total.Neg()},
		LimitDeltas:    []domain.LimitDelta{*delta},
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	if e.biller != nil {
		notification := gateways.BillerNotification{
			ServiceID:      service.ServiceID,
			BillAccountRef: req.BillAccountRef,
			Amount:         req.Amount,
			TransactionID:  posting.Entries[0].TransactionID,
		}
		if err := e.biller.Notify(ctx, notification); err != nil {
			// The debit stands; delivery is retried out of band.
			if e.metrics != nil {
				e.metrics.IncrExternalError("biller")
			}
			logger.Error("Biller notification failed, queued for retry",
				slog.String("transaction_id", posting.Entries[0].TransactionID),
				slog.String("service_id", service.ServiceID),
				slog.String("error", err.Error()))
		}
	}

	e.observe("bill_payment", start)
	logger.Info("Bill payment completed",
		slog.String("transaction_id", posting.Entries[0].TransactionID),
		slog.String("service_id", service.ServiceID),
		slog.String("amount", req.Amount.String()))
	return resultOf(&posting.Entries[0]), nil
}

// DisburseLoan credits an approved application's principal, net of any loan
// processing fee, to the borrower's account and activates the loan.
// Disbursements do not consume the borrower's transfer or withdrawal limits.
func (e *engineService) DisburseLoan(ctx context.Context, req dto.DisburseLoanRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	loan, err := e.loanSvc.PrepareDisbursement(ctx, req.ApplicationID, start)
	if err != nil {
		return nil, e.reject(err)
	}
	account, err := e.loadActiveAccount(ctx, loan.AccountID)
	if err != nil {
		return nil, e.reject(err)
	}

	fee, err := e.feeSvc.Calculate(ctx, domain.FeeLoanProcessing, loan.PrincipalAmount, start)
	if err != nil {
		return nil, fmt.Errorf("failed to price loan processing: %w", err)
	}
	net := loan.PrincipalAmount.Sub(fee)
	if net.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: processing fee %s consumes the whole principal",
			apperrors.ErrValidation, fee.StringFixed(2))
	}

	entry := domain.Transaction{
		TransactionID: domain.NewTransactionID(start),
		AccountID:     account.AccountID,
		Type:          domain.TxnLoanDisbursement,
		Direction:     domain.DirCredit,
		Amount:        loan.PrincipalAmount,
		Fee:           fee,
		TotalAmount:   net,
		Channel:       domain.ChannelBranch,
		Reference:     loan.LoanNumber,
		Description:   fmt.Sprintf("Loan disbursement %s", loan.LoanNumber),
		Status:        domain.TxnCompleted,
		CreatedAt:     start,
		ProcessedAt:   start,
	}

	posting := portsrepo.Posting{
		Entries:        []domain.Transaction{entry},
		BalanceChanges: map[string]decimal.Decimal{account.AccountID: net},
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	// The loan record rides outside the posting; if it cannot be persisted
	// the credit is compensated with a reversal so money and loans agree.
	if err := e.loanRepo.CreateLoan(ctx, *loan); err != nil {
		logger.Error("Failed to persist loan after disbursement, compensating",
			slog.String("loan_id", loan.LoanID), slog.String("error", err.Error()))
		e.compensate(ctx, &posting.Entries[0])
		return nil, fmt.Errorf("failed to persist loan: %w", err)
	}
	if err := e.loanRepo.MarkApplicationDisbursed(ctx, req.ApplicationID, start); err != nil {
		logger.Error("Failed to mark application disbursed",
			slog.String("application_id", req.ApplicationID), slog.String("error", err.Error()))
	}

	e.observe("loan_disbursement", start)
	logger.Info("Loan disbursed",
		slog.String("loan_id", loan.LoanID),
		slog.String("account_id", account.AccountID),
		slog.String("principal", loan.PrincipalAmount.String()),
		slog.String("installment", loan.MonthlyInstallment.String()))
	return resultOf(&posting.Entries[0]), nil
}

// RepayLoan debits a repayment from the paying account and applies it to the
// loan interest-first. Repayments do not consume user limits.
func (e *engineService) RepayLoan(ctx context.Context, req dto.RepayLoanRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	if replay, err := e.replayIdempotent(ctx, req.IdempotencyKey); replay != nil || err != nil {
		return replay, err
	}
	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}

	account, err := e.loadActiveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, e.reject(err)
	}

	transactionID := domain.NewTransactionID(start)
	// Pure split computation first: an invalid repayment must be rejected
	// before any money moves.
	application, err := e.loanSvc.ApplyRepayment(ctx, req.LoanID, req.Amount, req.Channel, transactionID, start)
	if err != nil {
		return nil, e.reject(err)
	}

	if !account.AvailableFor(req.Amount) {
		return nil, e.reject(fmt.Errorf("%w: available %s, required %s",
			apperrors.ErrInsufficientFunds, account.AvailableBalance.StringFixed(2), req.Amount.StringFixed(2)))
	}

	entry := domain.Transaction{
		TransactionID:  transactionID,
		AccountID:      account.AccountID,
		Type:           domain.TxnLoanRepayment,
		Direction:      domain.DirDebit,
		Amount:         req.Amount,
		Fee:            decimal.Zero,
		TotalAmount:    req.Amount,
		Channel:        req.Channel,
		Reference:      application.Loan.LoanNumber,
		Description:    fmt.Sprintf("Loan repayment %s", application.Loan.LoanNumber),
		Status:         domain.TxnCompleted,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      start,
		ProcessedAt:    start,
	}

	posting := portsrepo.Posting{
		Entries:        []domain.Transaction{entry},
		BalanceChanges: map[string]decimal.Decimal{account.AccountID: req.Amount.Neg()},
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	if err := e.loanRepo.UpdateLoanAggregates(ctx, application.Loan); err != nil {
		logger.Error("Failed to update loan after repayment, compensating",
			slog.String("loan_id", application.Loan.LoanID), slog.String("error", err.Error()))
		e.compensate(ctx, &posting.Entries[0])
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	if err := e.loanRepo.CreateLoanPayment(ctx, application.Payment); err != nil {
		logger.Error("Failed to record loan payment",
			slog.String("loan_id", application.Loan.LoanID), slog.String("error", err.Error()))
	}

	e.observe("loan_repayment", start)
	logger.Info("Loan repayment applied",
		slog.String("loan_id", application.Loan.LoanID),
		slog.String("principal_component", application.Payment.PrincipalAmount.String()),
		slog.String("interest_component", application.Payment.InterestAmount.String()),
		slog.Bool("paid_off", application.PaidOff))
	return resultOf(&posting.Entries[0]), nil
}

// Reverse undoes a completed transaction with a new inverse entry; for a
// transfer both legs are reversed in one posting. Completed entries are
// never edited in place.
func (e *engineService) Reverse(ctx context.Context, req dto.ReversalRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	original, err := e.ledgerRepo.FindTransactionByID(ctx, req.TransactionID)
	if err != nil {
		return nil, e.reject(fmt.Errorf("transaction %s: %w", req.TransactionID, err))
	}
	if original.Status != domain.TxnCompleted {
		return nil, e.reject(fmt.Errorf("%w: only completed transactions can be reversed, %s is %s",
			apperrors.ErrValidation, original.TransactionID, original.Status))
	}
	if original.Type == domain.TxnReversal {
		return nil, e.reject(fmt.Errorf("%w: reversals cannot be reversed", apperrors.ErrValidation))
	}

	originals := []*domain.Transaction{original}
	if original.PairTransactionID != "" {
		pair, err := e.ledgerRepo.FindTransactionByID(ctx, original.PairTransactionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transfer pair %s: %w", original.PairTransactionID, err)
		}
		if pair.Status == domain.TxnCompleted {
			originals = append(originals, pair)
		}
	}

	entries := make([]domain.Transaction, 0, len(originals))
	changes := make(map[string]decimal.Decimal, len(originals))
	reversedIDs := make([]string, 0, len(originals))
	for _, o := range originals {
		inverse := domain.DirCredit
		if o.Direction == domain.DirCredit {
			inverse = domain.DirDebit
		}
		entries = append(entries, domain.Transaction{
			TransactionID: domain.NewTransactionID(start),
			AccountID:     o.AccountID,
			Type:          domain.TxnReversal,
			Direction:     inverse,
			Amount:        o.TotalAmount,
			Fee:           decimal.Zero,
			TotalAmount:   o.TotalAmount,
			Channel:       o.Channel,
			Reference:     o.TransactionID,
			Description:   fmt.Sprintf("Reversal of %s: %s", o.TransactionID, req.Reason),
			Status:        domain.TxnCompleted,
			ReversesID:    o.TransactionID,
			CreatedAt:     start,
			ProcessedAt:   start,
		})
		changes[o.AccountID] = changes[o.AccountID].Add(o.SignedEffect().Neg())
		reversedIDs = append(reversedIDs, o.TransactionID)
	}

	// The originals' status flip rides in the posting so a racing reversal
	// of the same entry fails instead of double-applying the money.
	posting := portsrepo.Posting{
		Entries:        entries,
		BalanceChanges: changes,
		ReversedIDs:    reversedIDs,
		ReversedAt:     start,
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	e.observe("reversal", start)
	logger.Info("Transaction reversed",
		slog.String("original_id", original.TransactionID),
		slog.String("reversal_id", posting.Entries[0].TransactionID))
	return resultOf(&posting.Entries[0]), nil
}

// CreditInterest posts earned interest into an account.
func (e *engineService) CreditInterest(ctx context.Context, req dto.InterestCreditRequest) (*dto.TransactionResult, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	start := e.now()

	if err := requirePositive(req.Amount); err != nil {
		return nil, err
	}
	account, err := e.loadActiveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, e.reject(err)
	}

	entry := domain.Transaction{
		TransactionID: domain.NewTransactionID(start),
		AccountID:     account.AccountID,
		Type:          domain.TxnInterestCredit,
		Direction:     domain.DirCredit,
		Amount:        req.Amount,
		Fee:           decimal.Zero,
		TotalAmount:   req.Amount,
		Channel:       domain.ChannelBranch,
		Description:   "Interest credit",
		Status:        domain.TxnCompleted,
		CreatedAt:     start,
		ProcessedAt:   start,
	}

	posting := portsrepo.Posting{
		Entries:        []domain.Transaction{entry},
		BalanceChanges: map[string]decimal.Decimal{account.AccountID: req.Amount},
	}
	if err := e.commit(ctx, &posting); err != nil {
		return nil, e.reject(err)
	}

	e.observe("interest_credit", start)
	logger.Info("Interest credited",
		slog.String("account_id", account.AccountID),
		slog.String("amount", req.Amount.String()))
	return resultOf(&posting.Entries[0]), nil
}

// commit pushes a posting through the ledger with bounded retry on
// serialization conflicts. Everything else surfaces immediately.
func (e *engineService) commit(ctx context.Context, posting *portsrepo.Posting) error {
	var err error
	for attempt := 0; attempt < commitRetries; attempt++ {
		err = e.ledgerRepo.SavePosting(ctx, *posting)
		if err == nil || !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		if e.metrics != nil {
			e.metrics.IncrPostingRetry()
		}
		middleware.GetLoggerFromCtx(ctx).Warn("Posting conflicted, retrying",
			slog.Int("attempt", attempt+1))
	}
	return err
}

// compensate posts the inverse of a just-committed entry when a follow-up
// write failed, so the saga never leaves money moved without its record.
func (e *engineService) compensate(ctx context.Context, entry *domain.Transaction) {
	inverse := domain.DirCredit
	change := entry.TotalAmount
	if entry.Direction == domain.DirCredit {
		inverse = domain.DirDebit
		change = change.Neg()
	}
	now := e.now()
	posting := portsrepo.Posting{
		Entries: []domain.Transaction{{
			TransactionID: domain.NewTransactionID(now),
			AccountID:     entry.AccountID,
			Type:          domain.TxnReversal,
			Direction:     inverse,
			Amount:        entry.TotalAmount,
			TotalAmount:   entry.TotalAmount,
			Channel:       entry.Channel,
			Reference:     entry.TransactionID,
			Description:   fmt.Sprintf("Compensating reversal of %s", entry.TransactionID),
			Status:        domain.TxnCompleted,
			ReversesID:    entry.TransactionID,
			CreatedAt:     now,
			ProcessedAt:   now,
		}},
		BalanceChanges: map[string]decimal.Decimal{entry.AccountID: change},
		ReversedIDs:    []string{entry.TransactionID},
		ReversedAt:     now,
	}
	if err := e.commit(ctx, &posting); err != nil {
		middleware.GetLoggerFromCtx(ctx).Error("Compensation failed, manual reconciliation required",
			slog.String("transaction_id", entry.TransactionID),
			slog.String("error", err.Error()))
	}
}

// replayIdempotent returns the original result when the caller resubmits a
// key that already committed. A caller that timed out must not assume the
// operation did not commit; resubmitting with the same key resolves it.
func (e *engineService) replayIdempotent(ctx context.Context, key string) (*dto.TransactionResult, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := e.ledgerRepo.FindTransactionsByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if len(existing) == 0 {
		return nil, nil
	}
	middleware.GetLoggerFromCtx(ctx).Info("Idempotent replay",
		slog.String("idempotency_key", key),
		slog.String("transaction_id", existing[0].TransactionID))
	return resultOf(&existing[0]), nil
}

func (e *engineService) loadActiveAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := e.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountID, err)
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account %s: %w", accountID, apperrors.ErrAccountNotActive)
	}
	return account, nil
}

// reject counts a rejection before handing the error back unchanged.
func (e *engineService) reject(err error) error {
	if e.metrics != nil {
		e.metrics.IncrRejection(rejectionLabel(err))
	}
	return err
}

func (e *engineService) observe(operation string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.IncrTransaction(operation)
	e.metrics.RecordDuration(operation, e.now().Sub(start))
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, apperrors.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, apperrors.ErrAccountNotActive):
		return "account_not_active"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation"
	case errors.Is(err, apperrors.ErrConflict):
		return "conflict"
	default:
		return "storage"
	}
}

func requirePositive(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive, got %s", apperrors.ErrValidation, amount)
	}
	return nil
}

func resultOf(entry *domain.Transaction) *dto.TransactionResult {
	return &dto.TransactionResult{
		TransactionID: entry.TransactionID,
		Status:        entry.Status,
		NewBalance:    entry.BalanceAfter,
		FeeCharged:    entry.Fee,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
