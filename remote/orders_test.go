package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/money"
)

func testLine(productID, sellerID string, qty int) domain.CartLine {
	return domain.CartLine{
		ProductID: productID,
		SellerID:  sellerID,
		UnitPrice: 10000,
		Quantity:  qty,
	}
}

func TestOrderClient_CreateReturnsGatewayParams(t *testing.T) {
	var got CreateOrderRequest
	r := chi.NewRouter()
	r.Post("/orders", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"order_id":"o-9","gateway_order_ref":"gw_abc","amount":56900,"currency":"INR","gateway_key_id":"key_test"}}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := NewOrderClient(srv.URL, time.Second)
	resp, err := client.Create(context.Background(), CreateOrderRequest{
		SessionID: "sess-1",
		Lines:     []domain.CartLine{testLine("p1", "s1", 1)},
		Method:    domain.PaymentCard,
		Amount:    money.Paise(56900),
		Currency:  money.Currency,
	})
	require.NoError(t, err)

	assert.Equal(t, "o-9", resp.OrderID)
	assert.Equal(t, "gw_abc", resp.GatewayOrderRef)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.EqualValues(t, 56900, got.Amount)
}

func TestOrderClient_ListDropsIDLessRows(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/orders", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"o-1","payment_status":"VERIFIED","status":"SHIPPED","lines":[{"product_id":"p1","quantity":1,"unit_price":100}]},
			{"payment_status":"PENDING"}
		]}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := NewOrderClient(srv.URL, time.Second)
	orders, err := client.List(context.Background())
	require.NoError(t, err)

	require.Len(t, orders, 1)
	assert.Equal(t, "o-1", orders[0].ID)
	assert.Equal(t, domain.OrderShipped, orders[0].Status)
	require.Len(t, orders[0].Lines, 1)
}

func TestAddressClient_Get(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/addresses/{id}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "a-1", chi.URLParam(req, "id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"a-1","name":"R. Sharma","lines":["12 MG Road","Bengaluru"],"phone":"+91-900000000"}}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := NewAddressClient(srv.URL, time.Second)
	snap, err := client.Get(context.Background(), "a-1")
	require.NoError(t, err)

	assert.Equal(t, "R. Sharma", snap.Name)
	assert.Len(t, snap.Lines, 2)
}
