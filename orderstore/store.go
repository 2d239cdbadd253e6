// Package orderstore keeps the durable local ledger of placed orders so
// order history stays visible when the remote order service is not. The
// ledger is append-only: rows are never deleted, and only the two status
// fields ever change, monotonically.
package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/kv"
)

var (
	ErrOrderNotFound  = errors.New("orderstore: order not found")
	ErrDuplicateOrder = errors.New("orderstore: order already recorded")
	ErrInvalidOrder   = errors.New("orderstore: order id is required")
)

// Store is a process-wide singleton backed by the durable cache under a
// single key. The full ledger is small (one user's orders), so it is
// rewritten wholesale on change, the same way the cart is.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	seq    []string // insertion order of ids

	cache kv.Store
	log   *slog.Logger
}

// Open hydrates the ledger from the durable cache. A missing key is an
// empty ledger; a malformed entry is logged and discarded rather than
// blocking order history entirely.
func Open(ctx context.Context, cache kv.Store, log *slog.Logger) *Store {
	s := &Store{
		orders: make(map[string]*domain.Order),
		cache:  cache,
		log:    log,
	}

	raw, err := cache.Get(ctx, kv.KeyOrders)
	if errors.Is(err, kv.ErrMiss) {
		return s
	}
	if err != nil {
		log.Warn("order ledger read failed, starting empty", "err", err)
		return s
	}
	var stored []domain.Order
	if err := json.Unmarshal(raw, &stored); err != nil {
		log.Warn("order ledger malformed, starting empty", "err", err)
		return s
	}
	for i := range stored {
		o := stored[i]
		s.orders[o.ID] = &o
		s.seq = append(s.seq, o.ID)
	}
	return s
}

// Append records a new order. Order ids are unique; a second append for
// the same id is rejected, which is what makes double placement visible.
func (s *Store) Append(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		return ErrInvalidOrder
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return ErrDuplicateOrder
	}
	cp := *order
	s.orders[cp.ID] = &cp
	s.seq = append(s.seq, cp.ID)
	s.persistLocked(ctx)
	return nil
}

func (s *Store) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// List returns the ledger newest first.
func (s *Store) List(_ context.Context) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.seq))
	for i := len(s.seq) - 1; i >= 0; i-- {
		out = append(out, *s.orders[s.seq[i]])
	}
	return out
}

// UpdateStatus advances an order through the delivery sequence. A status
// earlier than (or equal to) the current one is a no-op, not an error,
// which absorbs out-of-order tracking events. The returned flag reports
// whether anything changed.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, ErrOrderNotFound
	}
	if !o.Status.CanBecome(next) {
		return false, nil
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	return true, nil
}

// SetPaymentStatus moves the payment state machine forward. Regressions
// (notably away from Verified) are no-ops.
func (s *Store) SetPaymentStatus(ctx context.Context, orderID string, next domain.PaymentStatus, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, ErrOrderNotFound
	}
	if !o.PaymentStatus.CanBecome(next) {
		return false, nil
	}
	o.PaymentStatus = next
	o.FailureReason = reason
	o.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	return true, nil
}

func (s *Store) persistLocked(ctx context.Context) {
	stored := make([]domain.Order, 0, len(s.seq))
	for _, id := range s.seq {
		stored = append(stored, *s.orders[id])
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		s.log.Error("order ledger marshal failed, cache not updated", "err", err)
		return
	}
	if err := s.cache.Set(ctx, kv.KeyOrders, raw); err != nil {
		s.log.Warn("order ledger write failed", "err", err)
	}
}
