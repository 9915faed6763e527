package enums

import "slices"

// OrderStatus is the fulfillment status of an order.
type OrderStatus string

const (
	OrderStatusToPay     OrderStatus = "to_pay"
	OrderStatusToShip    OrderStatus = "to_ship"
	OrderStatusToReceive OrderStatus = "to_receive"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRefund    OrderStatus = "refund"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusToPay,
	OrderStatusToShip,
	OrderStatusToReceive,
	OrderStatusCompleted,
	OrderStatusRefund,
	OrderStatusCancelled,
}

// forward progression; refund and cancelled sit outside it.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusToPay:     1,
	OrderStatusToShip:    2,
	OrderStatusToReceive: 3,
	OrderStatusCompleted: 4,
}

// OrderStatuses returns every known status in display order.
func OrderStatuses() []OrderStatus {
	return slices.Clone(validOrderStatuses)
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return known(validOrderStatuses, s) }

// IsTerminal reports whether no further status change is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusRefund
}

// Voids reports whether entering this status resets payment state.
func (s OrderStatus) Voids() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefund
}

// Rank returns the position along to_pay -> completed, or 0 for statuses off that path.
func (s OrderStatus) Rank() int {
	return orderStatusRank[s]
}

// ParseOrderStatus accepts the stored lower-case form only.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse("order status", validOrderStatuses, value)
}
