// Package kv is the durable local cache: a string-keyed store of JSON
// blobs that survives restarts and acts as the source of truth whenever
// the remote services are unreachable.
package kv

import (
	"context"
	"errors"
)

// Well-known keys. Only these are written by the library; shells must go
// through the owning component rather than writing keys directly.
const (
	KeyCart            = "cart"
	KeyOrders          = "mockOrders"
	KeySelectedAddress = "selectedAddress"
	KeySelectedPayment = "selectedPayment"
)

// ErrMiss is returned by Get for an absent key. Absence is an expected
// state (fresh install, cleared cache), never a failure.
var ErrMiss = errors.New("kv: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
