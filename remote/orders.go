package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/money"
)

// OrderClient talks to the remote order service.
type OrderClient struct {
	c *Client
}

func NewOrderClient(baseURL string, timeout time.Duration) *OrderClient {
	return &OrderClient{c: NewClient("order-service", baseURL, timeout)}
}

type CreateOrderRequest struct {
	SessionID string                 `json:"session_id"`
	Lines     []domain.CartLine      `json:"lines"`
	Address   domain.AddressSnapshot `json:"address"`
	Method    domain.PaymentMethod   `json:"payment_method"`
	Amount    money.Paise            `json:"amount"`
	Currency  string                 `json:"currency"`
}

type CreateOrderResponse struct {
	OrderID string `json:"order_id"`

	// Gateway authorization parameters, present for gateway-settled
	// methods only. They are handed to the external gateway SDK.
	GatewayOrderRef string `json:"gateway_order_ref,omitempty"`
	Amount          int64  `json:"amount,omitempty"`
	Currency        string `json:"currency,omitempty"`
	GatewayKeyID    string `json:"gateway_key_id,omitempty"`
}

func (oc *OrderClient) Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	var resp CreateOrderResponse
	if err := oc.c.do(ctx, http.MethodPost, "/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type wireOrder struct {
	ID            string                 `json:"id"`
	SessionID     string                 `json:"session_id"`
	Lines         []wireCartItem         `json:"lines"`
	Address       domain.AddressSnapshot `json:"address"`
	Method        string                 `json:"payment_method"`
	PaymentStatus string                 `json:"payment_status"`
	Status        string                 `json:"status"`
	Totals        money.Totals           `json:"totals"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func (w wireOrder) toOrder() domain.Order {
	o := domain.Order{
		ID:            w.ID,
		SessionID:     w.SessionID,
		Address:       w.Address,
		Method:        domain.PaymentMethod(w.Method),
		PaymentStatus: domain.PaymentStatus(w.PaymentStatus),
		Status:        domain.OrderStatus(w.Status),
		Totals:        w.Totals,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
	for _, it := range w.Lines {
		o.Lines = append(o.Lines, it.toLine())
	}
	return o
}

// List fetches the remote order history, newest first per the service
// contract. Orders with no id are dropped at the boundary.
func (oc *OrderClient) List(ctx context.Context) ([]domain.Order, error) {
	var wire []wireOrder
	if err := oc.c.do(ctx, http.MethodGet, "/orders", nil, &wire); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(wire))
	for _, w := range wire {
		if w.ID == "" {
			continue
		}
		orders = append(orders, w.toOrder())
	}
	return orders, nil
}
