package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// StatusValuePaid is the manual payment override accepted by SetStatus in
// addition to the order statuses.
const StatusValuePaid = "paid"

// StatusChange is the planned effect of an operator status request.
type StatusChange struct {
	From          enums.OrderStatus
	To            enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	PaidAt        *time.Time
	// MarkedPaid is set when this change records a payment.
	MarkedPaid bool
	Updates    map[string]any
}

// Changed reports whether status or payment state moves.
func (c StatusChange) Changed(prev *models.Order) bool {
	if c.From != c.To || c.PaymentStatus != prev.PaymentStatus {
		return true
	}
	if (c.PaidAt == nil) != (prev.PaidAt == nil) {
		return true
	}
	return false
}

// PlanStatusChange decides what setting value on order does.
//
// Terminal statuses accept only their own value, which re-applies the
// payment reset for cancelled and refund. Along to_pay -> completed moves may
// skip steps but never go back. Entering cancelled or refund clears payment.
func PlanStatusChange(order *models.Order, value string, now time.Time) (StatusChange, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	change := StatusChange{
		From:          order.Status,
		To:            order.Status,
		PaymentStatus: order.PaymentStatus,
		PaidAt:        order.PaidAt,
		Updates:       map[string]any{},
	}

	if value == StatusValuePaid {
		if order.Status.Voids() {
			return StatusChange{}, stateConflict(order.Status, value)
		}
		if order.Status == enums.OrderStatusToPay {
			change.To = enums.OrderStatusToShip
			change.Updates["status"] = change.To
		}
		if !order.IsPaid() {
			paidAt := now.UTC()
			change.PaymentStatus = enums.PaymentStatusPaid
			change.PaidAt = &paidAt
			change.MarkedPaid = true
			change.Updates["payment_status"] = change.PaymentStatus
			change.Updates["paid_at"] = paidAt
		}
		return change, nil
	}

	target, err := enums.ParseOrderStatus(value)
	if err != nil {
		return StatusChange{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
			WithDetails(map[string]string{"status": fmt.Sprintf("must be one of %s or %s", statusList(), StatusValuePaid)})
	}

	switch {
	case order.Status.IsTerminal() && target != order.Status:
		return StatusChange{}, stateConflict(order.Status, value)
	case target.Voids():
		// reachable from every open status
	case target.Rank() < order.Status.Rank():
		return StatusChange{}, stateConflict(order.Status, value)
	}

	change.To = target
	if target != order.Status {
		change.Updates["status"] = target
	}
	if target.Voids() {
		change.PaymentStatus = enums.PaymentStatusUnpaid
		change.PaidAt = nil
		change.Updates["payment_status"] = enums.PaymentStatusUnpaid
		change.Updates["paid_at"] = nil
	}
	return change, nil
}

func stateConflict(from enums.OrderStatus, value string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "status change not allowed").
		WithDetails(map[string]string{"from": string(from), "to": value})
}

func statusList() string {
	parts := make([]string, 0, 6)
	for _, s := range enums.OrderStatuses() {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ", ")
}
