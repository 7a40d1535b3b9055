package types

type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
)

// RequiresReference reports whether evidence for this method must carry a reference.
func (m PaymentMethod) RequiresReference() bool {
	return m != PaymentMethodCash
}

type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
)

type InvoiceStatus string

const (
	InvoiceStatusPaid InvoiceStatus = "paid"
)
