package gateways

import (
	"context"

	"github.com/shopspring/decimal"
)

// BillerNotification is the payload delivered to an external bill payee after
// the paying account has been debited.
type BillerNotification struct {
	ServiceID      string
	BillAccountRef string
	Amount         decimal.Decimal
	TransactionID  string
}

// BillerGateway delivers payment notifications to external billers. Delivery
// happens after commit; a failed delivery never unwinds the debit, it is
// reported for retry out of band.
type BillerGateway interface {
	Notify(ctx context.Context, n BillerNotification) error
}
