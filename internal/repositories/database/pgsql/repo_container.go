package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
)

// NewRepositoryProvider wires every Postgres repository over one pool.
func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		AccountRepo: newPgxAccountRepository(dbPool),
		LedgerRepo:  newPgxLedgerRepository(dbPool),
		LimitRepo:   newPgxLimitRepository(dbPool),
		FeeRepo:     newPgxFeeScheduleRepository(dbPool),
		LoanRepo:    newPgxLoanRepository(dbPool),
	}
}
