// Package cartkit is an embeddable shopping-cart and checkout
// orchestration library for a multi-seller marketplace shell. It owns
// the cart lifecycle, the multi-step checkout state machine, payment
// orchestration with gateway verification, and a durable local ledger
// that keeps the whole flow usable when the backend is unreachable.
package cartkit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/shoplite/cartkit/cartstore"
	"github.com/shoplite/cartkit/checkout"
	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/kv"
	"github.com/shoplite/cartkit/money"
	"github.com/shoplite/cartkit/orderstore"
	"github.com/shoplite/cartkit/payment"
	"github.com/shoplite/cartkit/remote"
	"github.com/shoplite/cartkit/telemetry"
)

var ErrNotRetryable = errors.New("cartkit: only failed-payment orders can be retried")

// App is the composition root: one instance per user session, shared by
// every UI component. All state flows through the stores it owns.
type App struct {
	Cart     *cartstore.Store
	Ledger   *orderstore.Store
	Payments *payment.Orchestrator

	orders    *remote.OrderClient
	addresses *remote.AddressClient
	cache     kv.Store
	log       *slog.Logger
	tracker   *orderstore.Tracker
	gatherer  prometheus.Gatherer

	cancel  context.CancelFunc
	closers []func() error
}

// New wires the library from config. The returned App must be closed.
func New(cfg Config) (*App, error) {
	log := telemetry.NewLogger()
	reg := cfg.Metrics
	gatherer := prometheus.Gatherer(prometheus.DefaultGatherer)
	if reg == nil {
		r := prometheus.NewRegistry()
		reg = r
		gatherer = r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	metrics := telemetry.NewMetrics(reg)

	app := &App{log: log, gatherer: gatherer}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		app.cache = kv.NewRedisStore(client)
		app.closers = append(app.closers, client.Close)
	} else {
		store, err := kv.OpenSQLite(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		app.cache = store
		app.closers = append(app.closers, store.Close)
	}

	cartClient := remote.NewCartClient(cfg.CartServiceURL, cfg.RequestTimeout)
	app.orders = remote.NewOrderClient(cfg.OrderServiceURL, cfg.RequestTimeout)
	app.addresses = remote.NewAddressClient(cfg.AddressServiceURL, cfg.RequestTimeout)

	app.Cart = cartstore.New(cartClient, app.cache, log, metrics)
	app.Ledger = orderstore.Open(context.Background(), app.cache, log)
	app.Payments = payment.NewOrchestrator(app.orders, app.Ledger, app.Cart, payment.NewVerifier(cfg.GatewaySecret), log, metrics)

	if len(cfg.KafkaBrokers) > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		app.cancel = cancel
		app.tracker = orderstore.NewTracker(app.Ledger, log, metrics, cfg.KafkaBrokers...)
		go app.tracker.Run(ctx)
	}

	return app, nil
}

// MetricsHandler exposes the library's collectors for the shell to mount
// on its scrape endpoint.
func (a *App) MetricsHandler() http.Handler {
	return telemetry.Handler(a.gatherer)
}

func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.tracker != nil {
		a.tracker.Close()
	}
	var firstErr error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Load hydrates the cart from the durable cache and reconciles it with
// the remote cart service in the background.
func (a *App) Load(ctx context.Context) {
	a.Cart.Load(ctx)
}

// BeginCheckout snapshots the cart into a new cart-mode session and
// pre-selects the address and payment method remembered from the user's
// last checkout, when present.
func (a *App) BeginCheckout(ctx context.Context) (*checkout.Session, error) {
	sess, err := checkout.NewFromCart(a.Cart.Snapshot())
	if err != nil {
		return nil, err
	}
	a.prefill(ctx, sess)
	return sess, nil
}

// BuyNow starts a direct-mode session for a single product, bypassing
// the cart entirely.
func (a *App) BuyNow(ctx context.Context, line domain.CartLine) (*checkout.Session, error) {
	sess, err := checkout.NewDirect(line)
	if err != nil {
		return nil, err
	}
	a.prefill(ctx, sess)
	return sess, nil
}

// RetryOrder seeds a fresh isolated session from a failed-payment order,
// so a broken gateway flow can be re-attempted without rebuilding the
// cart.
func (a *App) RetryOrder(ctx context.Context, orderID string) (*checkout.Session, error) {
	order, err := a.Ledger.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentFailed {
		return nil, ErrNotRetryable
	}
	sess, err := checkout.NewIsolated(order.Lines)
	if err != nil {
		return nil, err
	}
	if !order.Address.Empty() {
		_ = sess.SelectAddress(order.Address)
		_ = sess.SelectPayment(order.Method)
	}
	return sess, nil
}

// prefill applies the remembered address and payment selections. Both
// are conveniences; failures here never block checkout.
func (a *App) prefill(ctx context.Context, sess *checkout.Session) {
	raw, err := a.cache.Get(ctx, kv.KeySelectedAddress)
	if err != nil {
		return
	}
	var addr domain.AddressSnapshot
	if err := json.Unmarshal(raw, &addr); err != nil || addr.Empty() {
		return
	}
	if err := sess.SelectAddress(addr); err != nil {
		return
	}

	raw, err = a.cache.Get(ctx, kv.KeySelectedPayment)
	if err != nil {
		return
	}
	var method domain.PaymentMethod
	if err := json.Unmarshal(raw, &method); err != nil {
		return
	}
	_ = sess.SelectPayment(method)
}

// SelectAddress records the chosen delivery address on the session and
// remembers it for the next checkout.
func (a *App) SelectAddress(ctx context.Context, sess *checkout.Session, addr domain.AddressSnapshot) error {
	if err := sess.SelectAddress(addr); err != nil {
		return err
	}
	if raw, err := json.Marshal(addr); err == nil {
		if err := a.cache.Set(ctx, kv.KeySelectedAddress, raw); err != nil {
			a.log.Warn("remembering address failed", "err", err)
		}
	}
	return nil
}

// SelectAddressByID resolves an address id through the address provider
// and applies it. When the provider is unreachable and the remembered
// address matches the id, the remembered snapshot is used instead.
func (a *App) SelectAddressByID(ctx context.Context, sess *checkout.Session, addressID string) error {
	addr, err := a.addresses.Get(ctx, addressID)
	if err != nil {
		a.log.Warn("address lookup failed, trying remembered address", "address_id", addressID, "err", err)
		raw, cacheErr := a.cache.Get(ctx, kv.KeySelectedAddress)
		if cacheErr != nil {
			return err
		}
		var stored domain.AddressSnapshot
		if json.Unmarshal(raw, &stored) != nil || stored.ID != addressID {
			return err
		}
		addr = stored
	}
	return a.SelectAddress(ctx, sess, addr)
}

// SelectPayment records the payment method on the session and remembers
// it for the next checkout.
func (a *App) SelectPayment(ctx context.Context, sess *checkout.Session, method domain.PaymentMethod) error {
	if err := sess.SelectPayment(method); err != nil {
		return err
	}
	if raw, err := json.Marshal(method); err == nil {
		if err := a.cache.Set(ctx, kv.KeySelectedPayment, raw); err != nil {
			a.log.Warn("remembering payment method failed", "err", err)
		}
	}
	return nil
}

// Review moves the session to the review step and returns its totals.
func (a *App) Review(sess *checkout.Session) (money.Totals, error) {
	return sess.Review()
}

// PlaceOrder, VerifyPayment and AbortPayment delegate to the payment
// orchestrator; they exist so shells only ever hold an *App.

func (a *App) PlaceOrder(ctx context.Context, sess *checkout.Session) (*domain.Order, error) {
	return a.Payments.PlaceOrder(ctx, sess)
}

func (a *App) VerifyPayment(ctx context.Context, sess *checkout.Session, orderID string, cb payment.GatewayCallback) (*domain.Order, error) {
	return a.Payments.VerifyPayment(ctx, sess, orderID, cb)
}

func (a *App) AbortPayment(ctx context.Context, sess *checkout.Session, orderID, reason string) error {
	return a.Payments.AbortPayment(ctx, sess, orderID, reason)
}

// OrderHistory merges the remote order history with the local ledger.
// Remote rows are authoritative for orders both sides know; locally
// recorded orders the backend has not seen yet are appended after them.
// When the order service is unreachable the local ledger alone is
// returned, so history stays visible offline.
func (a *App) OrderHistory(ctx context.Context) []domain.Order {
	local := a.Ledger.List(ctx)

	remoteOrders, err := a.orders.List(ctx)
	if err != nil {
		a.log.Warn("remote order history unavailable, serving local ledger", "err", err)
		return local
	}

	seen := make(map[string]struct{}, len(remoteOrders))
	for _, o := range remoteOrders {
		seen[o.ID] = struct{}{}
	}
	merged := remoteOrders
	for _, o := range local {
		if _, ok := seen[o.ID]; !ok {
			merged = append(merged, o)
		}
	}
	return merged
}
