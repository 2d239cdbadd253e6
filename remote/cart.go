package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/money"
)

// CartClient talks to the remote cart service.
type CartClient struct {
	c *Client
}

func NewCartClient(baseURL string, timeout time.Duration) *CartClient {
	return &CartClient{c: NewClient("cart-service", baseURL, timeout)}
}

// wireCartItem covers both item shapes seen in the wild: flat fields, or
// a nested product object carrying id/seller/name/price.
type wireCartItem struct {
	ProductID string            `json:"product_id"`
	SellerID  string            `json:"seller_id"`
	Name      string            `json:"name"`
	UnitPrice int64             `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	Variation map[string]string `json:"variation,omitempty"`
	Product   *wireProduct      `json:"product,omitempty"`
}

type wireProduct struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
}

func (it wireCartItem) toLine() domain.CartLine {
	line := domain.CartLine{
		ProductID:   it.ProductID,
		SellerID:    it.SellerID,
		ProductName: it.Name,
		UnitPrice:   money.Paise(it.UnitPrice),
		Quantity:    it.Quantity,
		Variation:   it.Variation,
	}
	if it.Product != nil {
		if line.ProductID == "" {
			line.ProductID = it.Product.ID
		}
		if line.SellerID == "" {
			line.SellerID = it.Product.SellerID
		}
		if line.ProductName == "" {
			line.ProductName = it.Product.Name
		}
		if line.UnitPrice == 0 {
			line.UnitPrice = money.Paise(it.Product.Price)
		}
	}
	return line
}

type wireCart struct {
	Items     []wireCartItem `json:"items"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Fetch returns the authoritative server-side cart, normalized. Lines
// with no product id or a non-positive quantity are dropped rather than
// propagated into the core.
func (cc *CartClient) Fetch(ctx context.Context) (*domain.Cart, error) {
	var wire wireCart
	if err := cc.c.do(ctx, http.MethodGet, "/cart", nil, &wire); err != nil {
		return nil, err
	}
	cart := &domain.Cart{UpdatedAt: wire.UpdatedAt}
	for _, it := range wire.Items {
		line := it.toLine()
		if line.ProductID == "" || line.Quantity <= 0 {
			continue
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart, nil
}

func (cc *CartClient) AddLine(ctx context.Context, line domain.CartLine) error {
	req := map[string]any{
		"product_id": line.ProductID,
		"seller_id":  line.SellerID,
		"quantity":   line.Quantity,
	}
	if len(line.Variation) > 0 {
		req["variation"] = line.Variation
	}
	return cc.c.do(ctx, http.MethodPost, "/cart/items", req, nil)
}

func (cc *CartClient) RemoveLine(ctx context.Context, productID string) error {
	return cc.c.do(ctx, http.MethodDelete, "/cart/items/"+productID, nil, nil)
}

func (cc *CartClient) SetQuantity(ctx context.Context, productID string, quantity int) error {
	req := map[string]any{"quantity": quantity}
	return cc.c.do(ctx, http.MethodPut, fmt.Sprintf("/cart/items/%s", productID), req, nil)
}

func (cc *CartClient) Clear(ctx context.Context) error {
	return cc.c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}
