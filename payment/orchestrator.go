// Package payment drives order placement: one round trip for
// cash-on-delivery, a create → authorize → verify handshake for
// gateway-settled methods. Whatever happens, the resulting order lands in
// the local ledger so history survives backend outages, and a payment is
// only ever reported as settled after its callback verifies.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shoplite/cartkit/checkout"
	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/money"
	"github.com/shoplite/cartkit/orderstore"
	"github.com/shoplite/cartkit/remote"
	"github.com/shoplite/cartkit/telemetry"
)

var (
	ErrAlreadyPlacing      = errors.New("payment: an order placement for this session is already in flight")
	ErrInvalidSessionState = errors.New("payment: session is not ready for placement")
	ErrOrderCreation       = errors.New("payment: order creation failed")
	ErrVerificationFailed  = errors.New("payment: gateway signature verification failed")
)

// OrderService is the slice of the remote order service the orchestrator
// needs.
type OrderService interface {
	Create(ctx context.Context, req remote.CreateOrderRequest) (*remote.CreateOrderResponse, error)
}

// CartClearer clears the cart store after a successful cart-mode order.
type CartClearer interface {
	Clear(ctx context.Context)
}

type Orchestrator struct {
	orders   OrderService
	ledger   *orderstore.Store
	cart     CartClearer
	verifier *Verifier
	log      *slog.Logger
	metrics  *telemetry.Metrics

	mu       sync.Mutex
	inflight map[string]struct{} // session ids with placement in flight
}

func NewOrchestrator(orders OrderService, ledger *orderstore.Store, cart CartClearer, verifier *Verifier, log *slog.Logger, metrics *telemetry.Metrics) *Orchestrator {
	return &Orchestrator{
		orders:   orders,
		ledger:   ledger,
		cart:     cart,
		verifier: verifier,
		log:      log,
		metrics:  metrics,
		inflight: make(map[string]struct{}),
	}
}

// acquire guards against duplicate submission: a second PlaceOrder for
// the same session while one is in flight is rejected, not duplicated.
func (o *Orchestrator) acquire(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[sessionID]; busy {
		return ErrAlreadyPlacing
	}
	o.inflight[sessionID] = struct{}{}
	return nil
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, sessionID)
}

// PlaceOrder places the order for a reviewed session.
//
// For COD the returned order is terminal: paymentStatus Verified, cart
// cleared (cart mode only). For gateway methods the order is created with
// paymentStatus Pending and the session stays in Placing; the caller
// hands the order's gateway reference to the gateway and finishes with
// VerifyPayment or AbortPayment.
func (o *Orchestrator) PlaceOrder(ctx context.Context, sess *checkout.Session) (*domain.Order, error) {
	if err := o.acquire(sess.ID()); err != nil {
		return nil, err
	}

	if err := sess.BeginPlacing(); err != nil {
		o.release(sess.ID())
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionState, err)
	}

	req := remote.CreateOrderRequest{
		SessionID: sess.ID(),
		Lines:     sess.Lines(),
		Address:   sess.Address(),
		Method:    sess.Method(),
		Amount:    sess.Totals().GrandTotal,
		Currency:  money.Currency,
	}

	if sess.Method().ViaGateway() {
		return o.placeGateway(ctx, sess, req)
	}
	defer o.release(sess.ID())
	return o.placeCOD(ctx, sess, req)
}

// placeCOD is fire-and-forget: there is no payment to authorize, so a
// failed remote create degrades to a locally-recorded order instead of
// failing the purchase.
func (o *Orchestrator) placeCOD(ctx context.Context, sess *checkout.Session, req remote.CreateOrderRequest) (*domain.Order, error) {
	orderID := uuid.NewString()
	if resp, err := o.orders.Create(ctx, req); err != nil {
		o.log.Warn("remote order create failed, recording locally", "session_id", sess.ID(), "err", err)
	} else if resp.OrderID != "" {
		orderID = resp.OrderID
	}

	order := o.buildOrder(orderID, sess, req)
	order.PaymentStatus = domain.PaymentVerified

	if err := o.ledger.Append(ctx, order); err != nil {
		o.log.Error("order ledger append failed", "order_id", order.ID, "err", err)
	}
	o.finishPlacement(ctx, sess)
	o.metrics.OrdersPlaced.WithLabelValues(string(req.Method), "confirmed").Inc()
	return order, nil
}

// placeGateway creates the order with payment pending. Order creation is
// the step that obtains the gateway reference, so unlike COD it cannot
// degrade locally: without the backend there is nothing to charge
// against.
func (o *Orchestrator) placeGateway(ctx context.Context, sess *checkout.Session, req remote.CreateOrderRequest) (*domain.Order, error) {
	resp, err := o.orders.Create(ctx, req)
	if err != nil {
		o.release(sess.ID())
		sess.MarkFailed("order creation failed")
		o.metrics.OrdersPlaced.WithLabelValues(string(req.Method), "create_failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrOrderCreation, err)
	}

	orderID := resp.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	order := o.buildOrder(orderID, sess, req)
	order.PaymentStatus = domain.PaymentPending
	order.GatewayOrderRef = resp.GatewayOrderRef

	if err := o.ledger.Append(ctx, order); err != nil {
		o.log.Error("order ledger append failed", "order_id", order.ID, "err", err)
	}
	// The in-flight guard stays held until VerifyPayment or AbortPayment.
	return order, nil
}

// VerifyPayment settles a gateway order. The callback must carry a valid
// signature over this order's gateway reference; anything else marks the
// payment failed but keeps the order on record, since a charge may have
// succeeded even when the callback is broken.
func (o *Orchestrator) VerifyPayment(ctx context.Context, sess *checkout.Session, orderID string, cb GatewayCallback) (*domain.Order, error) {
	defer o.release(sess.ID())

	order, err := o.ledger.GetByID(ctx, orderID)
	if err != nil {
		sess.MarkFailed("order not found during verification")
		return nil, err
	}

	if cb.GatewayOrderRef != order.GatewayOrderRef || !o.verifier.Verify(cb) {
		o.metrics.VerificationFailures.Inc()
		o.metrics.OrdersPlaced.WithLabelValues(string(order.Method), "verification_failed").Inc()
		if _, err := o.ledger.SetPaymentStatus(ctx, orderID, domain.PaymentFailed, "signature verification failed"); err != nil {
			o.log.Error("marking payment failed in ledger", "order_id", orderID, "err", err)
		}
		sess.MarkFailed("payment verification failed")
		return nil, ErrVerificationFailed
	}

	if _, err := o.ledger.SetPaymentStatus(ctx, orderID, domain.PaymentVerified, ""); err != nil {
		o.log.Error("marking payment verified in ledger", "order_id", orderID, "err", err)
	}
	o.finishPlacement(ctx, sess)
	o.metrics.OrdersPlaced.WithLabelValues(string(order.Method), "verified").Inc()
	return o.ledger.GetByID(ctx, orderID)
}

// AbortPayment records a user-abandoned gateway flow. The order stays in
// the ledger as failed and retryable; it is never deleted.
func (o *Orchestrator) AbortPayment(ctx context.Context, sess *checkout.Session, orderID, reason string) error {
	defer o.release(sess.ID())

	if reason == "" {
		reason = "payment aborted"
	}
	changed, err := o.ledger.SetPaymentStatus(ctx, orderID, domain.PaymentFailed, reason)
	if err != nil {
		return err
	}
	if !changed {
		// The payment already settled or already failed. A stale abort,
		// e.g. the user closing the gateway window after the success
		// callback landed, must not reopen the session.
		o.log.Info("payment abort ignored, status unchanged", "order_id", orderID)
		return nil
	}
	sess.MarkFailed(reason)
	o.metrics.OrdersPlaced.WithLabelValues("gateway", "aborted").Inc()
	return nil
}

// finishPlacement applies the success side effects: terminal session
// state, and the one-time cart clear for cart-mode sessions. Direct-mode
// sessions never touch the cart store, and a session that already
// settled is left alone so a duplicated callback cannot clear twice.
func (o *Orchestrator) finishPlacement(ctx context.Context, sess *checkout.Session) {
	if !sess.MarkPlaced() {
		return
	}
	if sess.Mode() == checkout.CartMode {
		o.cart.Clear(ctx)
	}
}

func (o *Orchestrator) buildOrder(orderID string, sess *checkout.Session, req remote.CreateOrderRequest) *domain.Order {
	now := time.Now()
	return &domain.Order{
		ID:        orderID,
		SessionID: sess.ID(),
		Lines:     req.Lines,
		Address:   req.Address,
		Method:    req.Method,
		Status:    domain.OrderConfirmed,
		Totals:    sess.Totals(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
