package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/shoplite/cartkit/domain"
)

// AddressClient resolves address ids from the zone/address provider into
// display snapshots. The provider owns the records; checkout only needs
// the snapshot it captures onto the session.
type AddressClient struct {
	c *Client
}

func NewAddressClient(baseURL string, timeout time.Duration) *AddressClient {
	return &AddressClient{c: NewClient("address-service", baseURL, timeout)}
}

func (ac *AddressClient) Get(ctx context.Context, addressID string) (domain.AddressSnapshot, error) {
	var snap domain.AddressSnapshot
	if err := ac.c.do(ctx, http.MethodGet, "/addresses/"+addressID, nil, &snap); err != nil {
		return domain.AddressSnapshot{}, err
	}
	return snap, nil
}
