package services

// ServicesProvider bundles every service facade for handler wiring.
type ServicesProvider struct {
	Engine    TransactionEngineSvcFacade
	Account   AccountSvcFacade
	Limit     LimitSvcFacade
	Fee       FeeSvcFacade
	Loan      LoanSvcFacade
	Statement StatementSvcFacade
}
