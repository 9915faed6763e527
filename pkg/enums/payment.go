package enums

// PaymentMethod is chosen once at checkout and never re-derived.
type PaymentMethod string

const (
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodGCash PaymentMethod = "gcash"
	PaymentMethodCOD   PaymentMethod = "cod"
)

var paymentMethods = []PaymentMethod{PaymentMethodCard, PaymentMethodGCash, PaymentMethodCOD}

func (m PaymentMethod) String() string { return string(m) }

func (m PaymentMethod) IsValid() bool { return known(paymentMethods, m) }

// IsDeferred is true when funds arrive after the order exists, confirmed from
// a second device.
func (m PaymentMethod) IsDeferred() bool {
	return m == PaymentMethodGCash
}

// SettlesAtCheckout is true when the order is paid the moment it is created.
func (m PaymentMethod) SettlesAtCheckout() bool {
	return m == PaymentMethodCard
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", paymentMethods, value)
}

// PaymentStatus is the settlement state stored on an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
)

var paymentStatuses = []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusUnpaid}

func (s PaymentStatus) String() string { return string(s) }

func (s PaymentStatus) IsValid() bool { return known(paymentStatuses, s) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", paymentStatuses, value)
}
