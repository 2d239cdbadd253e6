package cartkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplite/cartkit/checkout"
	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/payment"
)

// deadServer returns a base URL with nothing listening on it, so every
// call fails like a network outage.
func deadServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func fakeOrderService(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/orders", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"order_id":"srv-1","gateway_order_ref":"gw_1","currency":"INR"}}`))
	})
	r.Get("/orders", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"srv-0","payment_status":"VERIFIED","status":"DELIVERED"}]}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, orderURL string) *App {
	t.Helper()
	app, err := New(Config{
		CartServiceURL:    deadServer(t), // cart backend offline throughout
		OrderServiceURL:   orderURL,
		AddressServiceURL: deadServer(t),
		GatewaySecret:     "merchant-secret",
		CachePath:         filepath.Join(t.TempDir(), "cache.db"),
		RequestTimeout:    2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func addLine(t *testing.T, app *App) {
	t.Helper()
	_, err := app.Cart.AddLine(context.Background(), domain.CartLine{
		ProductID: "p1", SellerID: "s1", ProductName: "Kettle", UnitPrice: 50000, Quantity: 1,
	})
	require.NoError(t, err)
}

func TestCheckoutFlow_CODWithOfflineCart(t *testing.T) {
	orders := fakeOrderService(t)
	app := newTestApp(t, orders.URL)
	ctx := context.Background()

	addLine(t, app)
	assert.Equal(t, 1, app.Cart.ItemCount())

	sess, err := app.BeginCheckout(ctx)
	require.NoError(t, err)

	addr := domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma", Lines: []string{"12 MG Road"}}
	require.NoError(t, app.SelectAddress(ctx, sess, addr))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentCOD))

	totals, err := app.Review(sess)
	require.NoError(t, err)
	assert.EqualValues(t, 50000, totals.Subtotal)

	order, err := app.PlaceOrder(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", order.ID)
	assert.Equal(t, domain.PaymentVerified, order.PaymentStatus)

	// Cart-mode success clears the cart.
	assert.Zero(t, app.Cart.ItemCount())
}

func TestBeginCheckout_PrefillsRememberedSelections(t *testing.T) {
	app := newTestApp(t, fakeOrderService(t).URL)
	ctx := context.Background()

	addLine(t, app)
	sess, err := app.BeginCheckout(ctx)
	require.NoError(t, err)
	require.NoError(t, app.SelectAddress(ctx, sess, domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma"}))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentCOD))
	require.NoError(t, sess.Cancel())

	addLine(t, app)
	next, err := app.BeginCheckout(ctx)
	require.NoError(t, err)

	assert.Equal(t, "a-1", next.Address().ID)
	assert.Equal(t, domain.PaymentCOD, next.Method())
	assert.Equal(t, checkout.StatePaymentSelected, next.State())
}

func TestBuyNow_NeverTouchesCart(t *testing.T) {
	app := newTestApp(t, fakeOrderService(t).URL)
	ctx := context.Background()

	addLine(t, app)
	sess, err := app.BuyNow(ctx, domain.CartLine{ProductID: "p9", SellerID: "s2", UnitPrice: 9900, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, app.SelectAddress(ctx, sess, domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma"}))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentCOD))
	_, err = app.Review(sess)
	require.NoError(t, err)

	_, err = app.PlaceOrder(ctx, sess)
	require.NoError(t, err)

	assert.Equal(t, 1, app.Cart.ItemCount(), "direct-mode success must leave the cart untouched")
}

func TestGatewayAbortThenRetry(t *testing.T) {
	app := newTestApp(t, fakeOrderService(t).URL)
	ctx := context.Background()

	sess, err := app.BuyNow(ctx, domain.CartLine{ProductID: "p9", SellerID: "s2", UnitPrice: 9900, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, app.SelectAddress(ctx, sess, domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma"}))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentCard))
	_, err = app.Review(sess)
	require.NoError(t, err)

	order, err := app.PlaceOrder(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)

	require.NoError(t, app.AbortPayment(ctx, sess, order.ID, "user closed gateway window"))

	// The failed order is still on record and seeds a retry session.
	retry, err := app.RetryOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, checkout.DirectMode, retry.Mode())
	assert.Equal(t, "a-1", retry.Address().ID)

	totals, err := app.Review(retry)
	require.NoError(t, err)
	assert.Equal(t, order.Totals, totals)
}

func TestVerifyPayment_EndToEnd(t *testing.T) {
	app := newTestApp(t, fakeOrderService(t).URL)
	ctx := context.Background()

	addLine(t, app)
	sess, err := app.BeginCheckout(ctx)
	require.NoError(t, err)
	require.NoError(t, app.SelectAddress(ctx, sess, domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma"}))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentWallet))
	_, err = app.Review(sess)
	require.NoError(t, err)

	order, err := app.PlaceOrder(ctx, sess)
	require.NoError(t, err)

	cb := payment.GatewayCallback{GatewayOrderRef: order.GatewayOrderRef, PaymentID: "pay_7"}
	cb.Signature = payment.NewVerifier("merchant-secret").Sign(cb.GatewayOrderRef, cb.PaymentID)

	settled, err := app.VerifyPayment(ctx, sess, order.ID, cb)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentVerified, settled.PaymentStatus)
	assert.Zero(t, app.Cart.ItemCount())
}

func TestOrderHistory_MergesRemoteAndLocal(t *testing.T) {
	app := newTestApp(t, fakeOrderService(t).URL)
	ctx := context.Background()

	// "srv-1" is known to both sides after this COD placement; "srv-0"
	// only remotely.
	addLine(t, app)
	sess, err := app.BeginCheckout(ctx)
	require.NoError(t, err)
	require.NoError(t, app.SelectAddress(ctx, sess, domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma"}))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentCOD))
	_, err = app.Review(sess)
	require.NoError(t, err)
	_, err = app.PlaceOrder(ctx, sess)
	require.NoError(t, err)

	history := app.OrderHistory(ctx)
	ids := make([]string, 0, len(history))
	for _, o := range history {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"srv-0", "srv-1"}, ids)
}

func TestOrderHistory_FallsBackToLedger(t *testing.T) {
	app := newTestApp(t, deadServer(t))
	ctx := context.Background()

	addLine(t, app)
	sess, err := app.BeginCheckout(ctx)
	require.NoError(t, err)
	require.NoError(t, app.SelectAddress(ctx, sess, domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma"}))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentCOD))
	_, err = app.Review(sess)
	require.NoError(t, err)
	order, err := app.PlaceOrder(ctx, sess)
	require.NoError(t, err)

	history := app.OrderHistory(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, order.ID, history[0].ID)
}

func TestMetricsHandler_ServesCollectors(t *testing.T) {
	orders := fakeOrderService(t)
	app := newTestApp(t, orders.URL)
	ctx := context.Background()

	addLine(t, app)
	sess, err := app.BeginCheckout(ctx)
	require.NoError(t, err)
	require.NoError(t, app.SelectAddress(ctx, sess, domain.AddressSnapshot{ID: "a-1", Name: "R. Sharma"}))
	require.NoError(t, app.SelectPayment(ctx, sess, domain.PaymentCOD))
	_, err = app.Review(sess)
	require.NoError(t, err)
	_, err = app.PlaceOrder(ctx, sess)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	app.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "cartkit_cart_fallbacks_total")
	assert.Contains(t, body, "cartkit_orders_placed_total")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CARTKIT_CART_URL", "http://cart.internal")
	t.Setenv("CARTKIT_REQUEST_TIMEOUT", "20s")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://cart.internal", cfg.CartServiceURL)
	assert.Equal(t, 20*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "cartkit.db", cfg.CachePath)
}
