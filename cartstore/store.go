// Package cartstore owns the canonical in-memory cart and its offline
// behavior: hydrate from the durable cache first, reconcile against the
// remote cart service when it answers, and degrade every mutation to
// local persistence when it does not. No user-facing mutation fails
// outright because the backend is unreachable.
package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/kv"
	"github.com/shoplite/cartkit/money"
	"github.com/shoplite/cartkit/telemetry"
)

// RemoteCart is the slice of the cart service this store needs.
// Consumers define this interface, not the HTTP implementation.
type RemoteCart interface {
	Fetch(ctx context.Context) (*domain.Cart, error)
	AddLine(ctx context.Context, line domain.CartLine) error
	RemoveLine(ctx context.Context, productID string) error
	SetQuantity(ctx context.Context, productID string, quantity int) error
	Clear(ctx context.Context) error
}

var (
	ErrInvalidQuantity = errors.New("cartstore: quantity must be at least 1")
	ErrMissingProduct  = errors.New("cartstore: product id is required")
)

// Store is the process-wide cart singleton. All mutations go through its
// methods and are applied in invocation order: each mutating call holds
// the store lock across its (bounded) remote attempt, and the async
// reconcile discards its result if any mutation raced past it.
type Store struct {
	mu   sync.Mutex
	cart domain.Cart
	seq  uint64 // bumped by every local mutation

	remote  RemoteCart
	cache   kv.Store
	sfg     singleflight.Group
	log     *slog.Logger
	metrics *telemetry.Metrics
}

func New(remote RemoteCart, cache kv.Store, log *slog.Logger, metrics *telemetry.Metrics) *Store {
	return &Store{
		remote:  remote,
		cache:   cache,
		log:     log,
		metrics: metrics,
	}
}

// Load hydrates the cart from the durable cache synchronously, then kicks
// off a background reconcile against the remote service. It never fails:
// a missing cache key means an empty cart, a malformed one is logged and
// discarded.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	s.hydrateLocked(ctx)
	s.mu.Unlock()

	go func() {
		_ = s.Reconcile(context.Background())
	}()
}

func (s *Store) hydrateLocked(ctx context.Context) {
	raw, err := s.cache.Get(ctx, kv.KeyCart)
	if errors.Is(err, kv.ErrMiss) {
		s.cart = domain.Cart{}
		return
	}
	if err != nil {
		s.log.Warn("cart cache read failed, starting empty", "err", err)
		s.cart = domain.Cart{}
		return
	}
	var cart domain.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		s.log.Warn("cart cache entry malformed, starting empty", "err", err)
		s.cart = domain.Cart{}
		return
	}
	s.cart = cart
}

// Reconcile fetches the remote cart and, if no local mutation happened in
// the meantime, replaces local state with it and rewrites the durable
// cache. Concurrent calls collapse into one fetch. On remote failure the
// local cart stays authoritative.
func (s *Store) Reconcile(ctx context.Context) error {
	_, err, _ := s.sfg.Do("reconcile", func() (interface{}, error) {
		s.mu.Lock()
		before := s.seq
		s.mu.Unlock()

		cart, err := s.remote.Fetch(ctx)
		if err != nil {
			s.metrics.ReconcileFailures.Inc()
			s.log.Warn("remote cart fetch failed, keeping local cart", "err", err)
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.seq != before {
			// A user mutation won the race; its state is newer than
			// this fetch. Drop the fetch, the next reconcile catches up.
			return nil, nil
		}
		s.cart = *cart
		s.persistLocked(ctx)
		return nil, nil
	})
	return err
}

// AddLine adds a product to the cart. The remote add is attempted first;
// on any remote failure the line is merged locally instead, so the only
// errors a caller sees are validation errors. The returned flag reports
// whether the remote service accepted the mutation.
func (s *Store) AddLine(ctx context.Context, line domain.CartLine) (synced bool, err error) {
	if line.ProductID == "" {
		return false, ErrMissingProduct
	}
	if line.Quantity < 1 {
		return false, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++

	if err := s.remote.AddLine(ctx, line); err == nil {
		if cart, err := s.remote.Fetch(ctx); err == nil {
			s.cart = *cart
			s.persistLocked(ctx)
			return true, nil
		}
		// Add landed but the refetch did not; fall through to the
		// local merge so the user still sees the line.
	}

	s.metrics.CartFallbacks.Inc()
	s.mergeLocked(line)
	s.persistLocked(ctx)
	return false, nil
}

// mergeLocked folds a line into the cart: same product+seller+variation
// increments the quantity, anything else appends.
func (s *Store) mergeLocked(line domain.CartLine) {
	key := line.MergeKey()
	for i := range s.cart.Lines {
		if s.cart.Lines[i].MergeKey() == key {
			s.cart.Lines[i].Quantity += line.Quantity
			s.cart.UpdatedAt = time.Now()
			return
		}
	}
	s.cart.Lines = append(s.cart.Lines, line)
	s.cart.UpdatedAt = time.Now()
}

// RemoveLine removes a product from the cart. Removing an absent line is
// a no-op. The remote removal is best-effort.
func (s *Store) RemoveLine(ctx context.Context, productID string) (synced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++

	synced = true
	if err := s.remote.RemoveLine(ctx, productID); err != nil {
		s.metrics.CartFallbacks.Inc()
		s.log.Warn("remote cart remove failed, removing locally", "product_id", productID, "err", err)
		synced = false
	}
	s.removeLocked(productID)
	s.persistLocked(ctx)
	return synced
}

func (s *Store) removeLocked(productID string) {
	kept := s.cart.Lines[:0]
	for _, l := range s.cart.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	s.cart.Lines = kept
	s.cart.UpdatedAt = time.Now()
}

// SetQuantity replaces the stored quantity for a product. A quantity of
// zero or less means "remove". It never creates a line that does not
// already exist.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) (synced bool) {
	if quantity <= 0 {
		return s.RemoveLine(ctx, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists := false
	for i := range s.cart.Lines {
		if s.cart.Lines[i].ProductID == productID {
			exists = true
			break
		}
	}
	if !exists {
		return false
	}

	s.seq++
	synced = true
	if err := s.remote.SetQuantity(ctx, productID, quantity); err != nil {
		s.metrics.CartFallbacks.Inc()
		s.log.Warn("remote quantity update failed, updating locally", "product_id", productID, "err", err)
		synced = false
	}
	for i := range s.cart.Lines {
		if s.cart.Lines[i].ProductID == productID {
			s.cart.Lines[i].Quantity = quantity
		}
	}
	s.cart.UpdatedAt = time.Now()
	s.persistLocked(ctx)
	return synced
}

// Clear empties the cart in memory, in the durable cache, and (best
// effort) on the remote service. Called once after a successful order.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++

	if err := s.remote.Clear(ctx); err != nil {
		s.log.Warn("remote cart clear failed, clearing locally", "err", err)
	}
	s.cart = domain.Cart{UpdatedAt: time.Now()}
	if err := s.cache.Delete(ctx, kv.KeyCart); err != nil {
		s.log.Warn("cart cache delete failed", "err", err)
	}
}

// Total is the exact subtotal over all lines. Malformed lines count as
// zero, so a damaged cache yields a smaller total rather than a failure.
func (s *Store) Total() money.Paise {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Subtotal()
}

// ItemCount feeds the UI badge.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// Snapshot returns a deep copy of the current lines for checkout seeding.
// The copy never aliases live cart state.
func (s *Store) Snapshot() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.CloneLines()
}

func (s *Store) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.cart)
	if err != nil {
		s.log.Error("cart marshal failed, cache not updated", "err", err)
		return
	}
	if err := s.cache.Set(ctx, kv.KeyCart, raw); err != nil {
		s.log.Warn("cart cache write failed", "err", err)
	}
}
