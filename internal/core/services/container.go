package services

import (
	"github.com/pesacore/corebanking/internal/core/domain"
	"github.com/pesacore/corebanking/internal/core/ports/gateways"
	portsrepo "github.com/pesacore/corebanking/internal/core/ports/repositories"
	portssvc "github.com/pesacore/corebanking/internal/core/ports/services"
	"github.com/pesacore/corebanking/internal/infra/observability"
)

// NewServicesProvider wires every service facade over the given repositories.
func NewServicesProvider(
	repos portsrepo.RepositoryProvider,
	limitDefaults domain.LimitSettings,
	biller gateways.BillerGateway,
	metrics *observability.Metrics,
) *portssvc.ServicesProvider {
	limitSvc := NewLimitService(repos.LimitRepo, limitDefaults)
	feeSvc := NewFeeService(repos.FeeRepo)
	loanSvc := NewLoanService(repos.LoanRepo)

	return &portssvc.ServicesProvider{
		Engine:    NewTransactionEngine(repos, limitSvc, feeSvc, loanSvc, biller, metrics),
		Account:   NewAccountService(repos.AccountRepo),
		Limit:     limitSvc,
		Fee:       feeSvc,
		Loan:      loanSvc,
		Statement: NewStatementService(repos.AccountRepo, repos.LedgerRepo),
	}
}
