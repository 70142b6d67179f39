package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/freshpress/api/internal/domain"
)

var (
	// ErrCartInvalidInput indicates the caller supplied invalid cart parameters.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartLineNotFound indicates the referenced line index does not exist.
	ErrCartLineNotFound = errors.New("cart: line not found")
)

// CartServiceDeps wires the dependencies required by the cart service.
type CartServiceDeps struct {
	Clock func() time.Time
	IDGen func() string
}

// cartService keeps guest carts in memory keyed by session cookie. Checkout
// snapshots the lines into the transaction, so losing a cart on restart costs
// nothing durable.
type cartService struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	now   func() time.Time
	newID func() string
}

// NewCartService constructs an in-memory CartService.
func NewCartService(deps CartServiceDeps) CartService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGen
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &cartService{
		carts: make(map[string]*domain.Cart),
		now: func() time.Time {
			return clock().UTC()
		},
		newID: newID,
	}
}

// NewSessionID mints a fresh cart session identifier.
func (s *cartService) NewSessionID() string {
	return s.newID()
}

// GetCart returns the cart for the session, creating an empty one on first use.
func (s *cartService) GetCart(_ context.Context, sessionID string) (domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(sessionID).Clone(), nil
}

// AddItem merges the line into the session cart.
func (s *cartService) AddItem(_ context.Context, sessionID string, line domain.CartLine) (domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}
	if strings.TrimSpace(line.Product.ID) == "" || line.Quantity <= 0 || line.Product.UnitCost < 0 {
		return domain.Cart{}, ErrCartInvalidInput
	}
	for _, addon := range line.Addons {
		if strings.TrimSpace(addon.Name) == "" || addon.Price < 0 {
			return domain.Cart{}, ErrCartInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.lookupLocked(sessionID)
	cart.Add(line.Product, line.Quantity, line.Addons)
	cart.UpdatedAt = s.now()
	return cart.Clone(), nil
}

// UpdateQuantity sets the quantity for an existing line.
func (s *cartService) UpdateQuantity(_ context.Context, sessionID string, index, quantity int) (domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || quantity < 1 {
		return domain.Cart{}, ErrCartInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.lookupLocked(sessionID)
	if !cart.SetQuantity(index, quantity) {
		return domain.Cart{}, ErrCartLineNotFound
	}
	cart.UpdatedAt = s.now()
	return cart.Clone(), nil
}

// RemoveItem drops a line from the cart.
func (s *cartService) RemoveItem(_ context.Context, sessionID string, index int) (domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.lookupLocked(sessionID)
	if !cart.Remove(index) {
		return domain.Cart{}, ErrCartLineNotFound
	}
	cart.UpdatedAt = s.now()
	return cart.Clone(), nil
}

// ClearCart empties the session cart.
func (s *cartService) ClearCart(_ context.Context, sessionID string) (domain.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cart := s.lookupLocked(sessionID)
	cart.Clear()
	cart.UpdatedAt = s.now()
	return cart.Clone(), nil
}

func (s *cartService) lookupLocked(sessionID string) *domain.Cart {
	if cart, ok := s.carts[sessionID]; ok {
		return cart
	}
	now := s.now()
	cart := &domain.Cart{SessionID: sessionID, CreatedAt: now, UpdatedAt: now}
	s.carts[sessionID] = cart
	return cart
}
