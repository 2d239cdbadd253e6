package domain

import (
	"time"

	"github.com/shoplite/cartkit/money"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentCard    PaymentMethod = "CARD"
	PaymentWallet  PaymentMethod = "WALLET"
	PaymentGateway PaymentMethod = "GATEWAY"
)

// ViaGateway reports whether the method settles through the external
// payment gateway and therefore needs the two-phase verify flow.
func (m PaymentMethod) ViaGateway() bool {
	return m == PaymentCard || m == PaymentWallet || m == PaymentGateway
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentCard, PaymentWallet, PaymentGateway:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
	PaymentVerified   PaymentStatus = "VERIFIED"
	PaymentFailed     PaymentStatus = "FAILED"
)

var paymentRank = map[PaymentStatus]int{
	PaymentPending:    0,
	PaymentAuthorized: 1,
	PaymentVerified:   2,
}

// CanBecome reports whether a payment status transition is allowed.
// Settlement only moves forward; Failed is reachable from any unsettled
// state but a Verified payment never regresses.
func (s PaymentStatus) CanBecome(next PaymentStatus) bool {
	if s == next {
		return false
	}
	if next == PaymentFailed {
		return s != PaymentVerified && s != PaymentFailed
	}
	cur, ok := paymentRank[s]
	if !ok {
		return false
	}
	nxt, ok := paymentRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

type OrderStatus string

const (
	OrderConfirmed      OrderStatus = "CONFIRMED"
	OrderPacking        OrderStatus = "PACKING"
	OrderShipped        OrderStatus = "SHIPPED"
	OrderInTransit      OrderStatus = "IN_TRANSIT"
	OrderOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered      OrderStatus = "DELIVERED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

var orderRank = map[OrderStatus]int{
	OrderConfirmed:      0,
	OrderPacking:        1,
	OrderShipped:        2,
	OrderInTransit:      3,
	OrderOutForDelivery: 4,
	OrderDelivered:      5,
}

// Terminal reports whether no further status changes are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanBecome implements the forward-only tracking rule: statuses advance
// through the fixed delivery sequence, Cancelled is reachable from any
// non-terminal state, and anything else (including regressions caused by
// out-of-order tracking events) is rejected.
func (s OrderStatus) CanBecome(next OrderStatus) bool {
	if s.Terminal() || s == next {
		return false
	}
	if next == OrderCancelled {
		return true
	}
	cur, ok := orderRank[s]
	if !ok {
		return false
	}
	nxt, ok := orderRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Order is the durable result of a completed checkout. Lines, address and
// totals are immutable once created; only the two status fields move, and
// only forward.
type Order struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	Lines         []CartLine      `json:"lines"`
	Address       AddressSnapshot `json:"address"`
	Method        PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Status        OrderStatus     `json:"status"`
	Totals        money.Totals    `json:"totals"`

	// GatewayOrderRef is the gateway-side order reference returned at
	// creation time for gateway-settled methods; empty for COD.
	GatewayOrderRef string `json:"gateway_order_ref,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
