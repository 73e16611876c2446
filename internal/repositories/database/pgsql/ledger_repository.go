package pgsql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pesacore/corebanking/internal/apperrors"
	"github.com/pesacore/corebanking/internal/core/domain"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
)

type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates the repository for the transaction log and
// the atomic posting path.
func newPgxLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepository {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerRepository = (*PgxLedgerRepository)(nil)

const transactionColumns = `transaction_id, account_id, txn_type, direction, amount, fee, total_amount,
	balance_before, balance_after, channel, reference, description, status,
	counterparty_id, pair_transaction_id, reverses_id, idempotency_key, created_at, processed_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.TransactionID, &t.AccountID, &t.Type, &t.Direction, &t.Amount, &t.Fee, &t.TotalAmount,
		&t.BalanceBefore, &t.BalanceAfter, &t.Channel, &t.Reference, &t.Description, &t.Status,
		&t.CounterpartyID, &t.PairTransactionID, &t.ReversesID, &t.IdempotencyKey, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type lockedAccount struct {
	balance          decimal.Decimal
	availableBalance decimal.Decimal
	overdraftLimit   decimal.Decimal
}

// SavePosting commits a posting in one database transaction: accounts locked
// in sorted order, funds re-verified under lock, entries appended with
// running balances, limit counters rolled over and re-checked against the
// ceilings the caller validated.
func (r *PgxLedgerRepository) SavePosting(ctx context.Context, posting portsrepo.Posting) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx) // no-op once committed

	locked, err := r.lockAccounts(ctx, tx, posting.BalanceChanges)
	if err != nil {
		return err
	}

	// Funds re-check under lock. The engine checked earlier without a lock;
	// this check is the one that holds.
	for accID, delta := range posting.BalanceChanges {
		if delta.IsNegative() {
			acc := locked[accID]
			if acc.availableBalance.Add(acc.overdraftLimit).Add(delta).IsNegative() {
				return fmt.Errorf("%w: account %s cannot cover %s",
					apperrors.ErrInsufficientFunds, accID, delta.Neg().StringFixed(2))
			}
		}
	}

	if err := r.flagReversed(ctx, tx, posting.ReversedIDs, posting.ReversedAt); err != nil {
		return err
	}

	if err := r.applyBalanceChanges(ctx, tx, posting.BalanceChanges); err != nil {
		return err
	}

	if err := r.insertEntries(ctx, tx, posting.Entries, locked); err != nil {
		return err
	}

	for i := range posting.LimitDeltas {
		if err := r.applyLimitDelta(ctx, tx, &posting.LimitDeltas[i]); err != nil {
			return err
		}
	}

	if err := r.Commit(ctx, tx); err != nil {
		if isSerializationFailure(err) {
			return apperrors.ErrConflict
		}
		return err
	}
	return nil
}

// lockAccounts takes row locks on every touched account in sorted id order so
// concurrent postings over the same accounts serialize instead of deadlocking.
func (r *PgxLedgerRepository) lockAccounts(ctx context.Context, tx pgx.Tx, changes map[string]decimal.Decimal) (map[string]lockedAccount, error) {
	accountIDs := make([]string, 0, len(changes))
	for accID := range changes {
		accountIDs = append(accountIDs, accID)
	}
	sort.Strings(accountIDs)

	locked := make(map[string]lockedAccount, len(accountIDs))
	for _, accID := range accountIDs {
		var acc lockedAccount
		err := tx.QueryRow(ctx,
			`SELECT balance, available_balance, overdraft_limit FROM accounts WHERE account_id = $1 FOR UPDATE;`,
			accID,
		).Scan(&acc.balance, &acc.availableBalance, &acc.overdraftLimit)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("account %s: %w", accID, apperrors.ErrNotFound)
			}
			if isSerializationFailure(err) {
				return nil, apperrors.ErrConflict
			}
			return nil, apperrors.NewAppError(500, "failed to lock account "+accID, err)
		}
		locked[accID] = acc
	}
	return locked, nil
}

func (r *PgxLedgerRepository) applyBalanceChanges(ctx context.Context, tx pgx.Tx, changes map[string]decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET balance = balance + $2, available_balance = available_balance + $2, last_updated_at = now()
		WHERE account_id = $1;
	`
	for accID, delta := range changes {
		if _, err := tx.Exec(ctx, query, accID, delta); err != nil {
			return apperrors.NewAppError(500, "failed to update balance of account "+accID, err)
		}
	}
	return nil
}

// insertEntries appends the ledger rows, stamping the running balance onto
// each entry in slice order so the caller sees the committed figures.
func (r *PgxLedgerRepository) insertEntries(ctx context.Context, tx pgx.Tx, entries []domain.Transaction, locked map[string]lockedAccount) error {
	running := make(map[string]decimal.Decimal, len(locked))
	for accID, acc := range locked {
		running[accID] = acc.balance
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19);
	`
	batch := &pgx.Batch{}
	for i := range entries {
		e := &entries[i]
		before, ok := running[e.AccountID]
		if !ok {
			return apperrors.NewAppError(500, "entry account "+e.AccountID+" missing from balance changes", nil)
		}
		e.BalanceBefore = before
		e.BalanceAfter = before.Add(e.SignedEffect())
		running[e.AccountID] = e.BalanceAfter

		batch.Queue(query,
			e.TransactionID, e.AccountID, e.Type, e.Direction, e.Amount, e.Fee, e.TotalAmount,
			e.BalanceBefore, e.BalanceAfter, e.Channel, e.Reference, e.Description, e.Status,
			e.CounterpartyID, e.PairTransactionID, e.ReversesID, e.IdempotencyKey, e.CreatedAt, e.ProcessedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: transaction id or idempotency key already used", apperrors.ErrDuplicate)
			}
			return apperrors.NewAppError(500, "failed to insert ledger entries", err)
		}
	}
	return nil
}

// applyLimitDelta locks the counter row (creating it on first use), rolls it
// over to the delta's date, re-checks the ceilings the caller validated, and
// folds the increment in.
func (r *PgxLedgerRepository) applyLimitDelta(ctx context.Context, tx pgx.Tx, delta *domain.LimitDelta) error {
	usage := domain.LimitUsage{
		EntityID:      delta.EntityID,
		EntityKind:    delta.EntityKind,
		LastResetDate: delta.AsOf,
	}
	err := tx.QueryRow(ctx, `
		SELECT daily_withdrawals, daily_transfers, monthly_withdrawals, monthly_transfers,
			daily_total, monthly_total, last_reset_date
		FROM limit_usage WHERE entity_id = $1 AND entity_kind = $2 FOR UPDATE;
	`, delta.EntityID, delta.EntityKind).Scan(
		&usage.DailyWithdrawals, &usage.DailyTransfers, &usage.MonthlyWithdrawals, &usage.MonthlyTransfers,
		&usage.DailyTotal, &usage.MonthlyTotal, &usage.LastResetDate,
	)
	exists := true
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			if isSerializationFailure(err) {
				return apperrors.ErrConflict
			}
			return apperrors.NewAppError(500, "failed to lock limit counters for "+delta.EntityID, err)
		}
		exists = false
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

	if exists {
		_, err = tx.Exec(ctx, `
			UPDATE limit_usage
			SET daily_withdrawals = $3, daily_transfers = $4, monthly_withdrawals = $5,
				monthly_transfers = $6, daily_total = $7, monthly_total = $8, last_reset_date = $9
			WHERE entity_id = $1 AND entity_kind = $2;
		`, usage.EntityID, usage.EntityKind,
			usage.DailyWithdrawals, usage.DailyTransfers, usage.MonthlyWithdrawals,
			usage.MonthlyTransfers, usage.DailyTotal, usage.MonthlyTotal, usage.LastResetDate)
	} else {
		// Two first-use inserts can race; the unique violation surfaces as a
		// conflict so the engine retries onto the UPDATE path.
		_, err = tx.Exec(ctx, `
			INSERT INTO limit_usage (entity_id, entity_kind, daily_withdrawals, daily_transfers,
				monthly_withdrawals, monthly_transfers, daily_total, monthly_total, last_reset_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
		`, usage.EntityID, usage.EntityKind,
			usage.DailyWithdrawals, usage.DailyTransfers, usage.MonthlyWithdrawals,
			usage.MonthlyTransfers, usage.DailyTotal, usage.MonthlyTotal, usage.LastResetDate)
		if err != nil && isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
	}
	if err != nil {
		return apperrors.NewAppError(500, "failed to persist limit counters for "+delta.EntityID, err)
	}
	return nil
}

// FindTransactionByID retrieves one ledger entry.
func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1;`
	txn, err := scanTransaction(r.Pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find transaction %s: %w", transactionID, err)
	}
	return txn, nil
}

// FindTransactionsByIdempotencyKey retrieves the entries committed under a key.
func (r *PgxLedgerRepository) FindTransactionsByIdempotencyKey(ctx context.Context, key string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1 ORDER BY created_at;`
	rows, err := r.Pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query idempotency key: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	if len(txns) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return txns, nil
}

// ListTransactionsByAccount returns an account's entries within [from, to),
// oldest first.
func (r *PgxLedgerRepository) ListTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at, transaction_id;
	`
	rows, err := r.Pool.Query(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions of account %s: %w", accountID, err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txns, nil
}

// BalanceAsOf derives the balance at an instant from the last stamped entry
// before it; an account with no prior entries was at zero.
func (r *PgxLedgerRepository) BalanceAsOf(ctx context.Context, accountID string, at time.Time) (decimal.Decimal, error) {
	query := `
		SELECT balance_after FROM transactions
		WHERE account_id = $1 AND created_at < $2
		ORDER BY created_at DESC, transaction_id DESC
		LIMIT 1;
	`
	var balance decimal.Decimal
	err := r.Pool.QueryRow(ctx, query, accountID, at).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to derive balance of account %s: %w", accountID, err)
	}
	return balance, nil
}

// flagReversed flips the reversed originals from completed to reversed
// inside the posting's transaction. The conditional UPDATE is the check that
// holds: a racing reversal that already flipped an entry leaves 0 rows here
// and the whole posting rolls back.
func (r *PgxLedgerRepository) flagReversed(ctx context.Context, tx pgx.Tx, reversedIDs []string, at time.Time) error {
	query := `
		UPDATE transactions SET status = $2, processed_at = $3
		WHERE transaction_id = $1 AND status = $4;
	`
	for _, id := range reversedIDs {
		tag, err := tx.Exec(ctx, query, id, domain.TxnReversed, at, domain.TxnCompleted)
		if err != nil {
			if isSerializationFailure(err) {
				return apperrors.ErrConflict
			}
			return apperrors.NewAppError(500, "failed to mark transaction "+id+" reversed", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: transaction %s is no longer completed, cannot reverse",
				apperrors.ErrValidation, id)
		}
	}
	return nil
}
