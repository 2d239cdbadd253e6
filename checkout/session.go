// Package checkout models one checkout attempt as a single-use state
// machine. A session snapshots its lines when it is created and never
// reads live cart state again, so mid-checkout cart changes cannot race
// the totals shown at review time.
package checkout

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/shoplite/cartkit/domain"
	"github.com/shoplite/cartkit/money"
)

type Mode string

const (
	// CartMode sessions are seeded from the cart store snapshot and
	// clear the cart on success.
	CartMode Mode = "CART"
	// DirectMode ("buy now") sessions carry exactly one externally
	// supplied line and never touch the cart store.
	DirectMode Mode = "DIRECT"
)

type State string

const (
	StateSeeding         State = "SEEDING"
	StateAddressSelected State = "ADDRESS_SELECTED"
	StatePaymentSelected State = "PAYMENT_SELECTED"
	StateReviewing       State = "REVIEWING"
	StatePlacing         State = "PLACING"
	StatePlaced          State = "PLACED"
	StateCancelled       State = "CANCELLED"
)

var (
	ErrEmptyCart      = errors.New("checkout: cannot start checkout with an empty cart")
	ErrNoAddress      = errors.New("checkout: a delivery address is required")
	ErrNoPayment      = errors.New("checkout: a payment method is required")
	ErrInvalidPayment = errors.New("checkout: unknown payment method")
	ErrInvalidState   = errors.New("checkout: operation not allowed in current state")
	ErrPlacing        = errors.New("checkout: cannot cancel while order placement is in flight")
)

// Session is exclusively owned by one checkout flow. It is discarded on
// success, cancellation or navigation away; it is never persisted or
// shared across sessions.
type Session struct {
	mu sync.Mutex

	id      string
	mode    Mode
	state   State
	lines   []domain.CartLine
	address domain.AddressSnapshot
	method  domain.PaymentMethod
	totals  money.Totals

	// lastError carries the reason of the most recent failed placement
	// while the user is back in Reviewing.
	lastError string
}

// NewFromCart seeds a cart-mode session from a cart snapshot.
func NewFromCart(snapshot []domain.CartLine) (*Session, error) {
	if len(snapshot) == 0 {
		return nil, ErrEmptyCart
	}
	seed := domain.Cart{Lines: snapshot}
	return &Session{
		id:    uuid.NewString(),
		mode:  CartMode,
		state: StateSeeding,
		lines: seed.CloneLines(),
	}, nil
}

// NewDirect seeds a direct-mode ("buy now") session from a single line.
func NewDirect(line domain.CartLine) (*Session, error) {
	if line.ProductID == "" || line.Quantity < 1 {
		return nil, ErrEmptyCart
	}
	return NewIsolated([]domain.CartLine{line})
}

// NewIsolated seeds a direct-mode session from an arbitrary snapshot,
// used when retrying a failed order: the lines come from the recorded
// order, and success must not clear whatever the cart holds now.
func NewIsolated(lines []domain.CartLine) (*Session, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	seed := domain.Cart{Lines: lines}
	return &Session{
		id:    uuid.NewString(),
		mode:  DirectMode,
		state: StateSeeding,
		lines: seed.CloneLines(),
	}, nil
}

func (s *Session) ID() string { return s.id }
func (s *Session) Mode() Mode { return s.mode }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Lines returns the immutable snapshot. Callers get a copy.
func (s *Session) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Session) Address() domain.AddressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

func (s *Session) Method() domain.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

func (s *Session) Totals() money.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// LastError reports why the most recent placement attempt failed, empty
// if none has.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// SelectAddress records the delivery address. Allowed until placement
// begins; re-selecting while reviewing drops the session back to the
// address step so totals are recomputed against the new address.
func (s *Session) SelectAddress(addr domain.AddressSnapshot) error {
	if addr.Empty() {
		return ErrNoAddress
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateSeeding, StateAddressSelected, StatePaymentSelected, StateReviewing:
		s.address = addr
		if s.state == StateSeeding || s.state == StateReviewing {
			s.state = StateAddressSelected
		}
		return nil
	default:
		return ErrInvalidState
	}
}

// SelectPayment records the payment method. Requires an address.
func (s *Session) SelectPayment(method domain.PaymentMethod) error {
	if !method.Valid() {
		return ErrInvalidPayment
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateAddressSelected, StatePaymentSelected, StateReviewing:
		s.method = method
		s.state = StatePaymentSelected
		return nil
	case StateSeeding:
		return ErrNoAddress
	default:
		return ErrInvalidState
	}
}

// Review recomputes the totals from the immutable snapshot and moves the
// session to Reviewing. Repeated calls are idempotent: the snapshot never
// changes, so neither do the totals.
func (s *Session) Review() (money.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePaymentSelected, StateReviewing:
	case StateSeeding:
		return money.Totals{}, ErrNoAddress
	case StateAddressSelected:
		return money.Totals{}, ErrNoPayment
	default:
		return money.Totals{}, ErrInvalidState
	}

	var subtotal money.Paise
	for _, l := range s.lines {
		subtotal += l.Total()
	}
	s.totals = money.Compute(subtotal)
	s.state = StateReviewing
	return s.totals, nil
}

// BeginPlacing is called by the payment orchestrator when placement
// starts. Only a fully reviewed session may be placed.
func (s *Session) BeginPlacing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing {
		return ErrInvalidState
	}
	if s.address.Empty() {
		return ErrNoAddress
	}
	if !s.method.Valid() {
		return ErrNoPayment
	}
	s.state = StatePlacing
	s.lastError = ""
	return nil
}

// MarkPlaced finishes the session. Terminal; the returned flag reports
// whether this call performed the transition, so success side effects
// run exactly once even when callbacks arrive more than once.
func (s *Session) MarkPlaced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePlaced, StateCancelled:
		return false
	}
	s.state = StatePlaced
	return true
}

// MarkFailed records the failure reason and returns the user to
// Reviewing, from where placement can be retried. A no-op on terminal
// states: a stale failure signal must not reopen a settled session.
func (s *Session) MarkFailed(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePlaced, StateCancelled:
		return
	}
	s.state = StateReviewing
	s.lastError = reason
}

// Cancel discards the session. Permitted from any state except while an
// order placement call is in flight, and a no-op on terminal states.
// Cancelling applies no side effects anywhere else.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StatePlacing:
		return ErrPlacing
	case StatePlaced, StateCancelled:
		return nil
	}
	s.state = StateCancelled
	return nil
}
