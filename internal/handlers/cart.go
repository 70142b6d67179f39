package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/platform/httpx"
	"github.com/freshpress/api/internal/services"
)

const (
	maxCartBodySize   = 16 * 1024
	cartSessionCookie = "cart_session"
	cartSessionMaxAge = 30 * 24 * 60 * 60
)

// CartHandlers exposes the session cart endpoints. The session rides a
// cookie; no authentication is involved because guest checkout is the norm.
type CartHandlers struct {
	carts  services.CartService
	secure bool
}

// CartOption customises construction of CartHandlers.
type CartOption func(*CartHandlers)

// WithSecureCartCookie marks the session cookie Secure, for TLS deployments.
func WithSecureCartCookie(secure bool) CartOption {
	return func(h *CartHandlers) {
		h.secure = secure
	}
}

// NewCartHandlers constructs handlers around the cart service.
func NewCartHandlers(carts services.CartService, opts ...CartOption) *CartHandlers {
	h := &CartHandlers{carts: carts}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the /api/cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{index}", h.updateQuantity)
	r.Delete("/items/{index}", h.removeItem)
	r.Delete("/", h.clearCart)
}

type cartPayload struct {
	SessionID string            `json:"sessionId"`
	Items     []lineItemPayload `json:"items"`
	Subtotal  float64           `json:"subtotal"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	return cartPayload{
		SessionID: cart.SessionID,
		Items:     buildLineItemPayloads(cart.Lines),
		Subtotal:  cart.Subtotal().Float(),
	}
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := h.sessionID(w, r)
	cart, err := h.carts.GetCart(ctx, sessionID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := h.sessionID(w, r)

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req cartLineRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.AddItem(ctx, sessionID, req.toDomain())
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

func (h *CartHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := h.sessionID(w, r)
	index, ok := parseLineIndex(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, sessionID, index, *req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := h.sessionID(w, r)
	index, ok := parseLineIndex(ctx, w, r)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, sessionID, index)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sessionID := h.sessionID(w, r)
	cart, err := h.carts.ClearCart(ctx, sessionID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"cart": buildCartPayload(cart)})
}

// sessionID returns the session from the cart cookie, minting and setting a
// new one on first contact.
func (h *CartHandlers) sessionID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(cartSessionCookie); err == nil {
		if id := strings.TrimSpace(cookie.Value); id != "" {
			return id
		}
	}

	id := h.carts.NewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     cartSessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   cartSessionMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func parseLineIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "index"))
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "index must be a non-negative integer", http.StatusBadRequest))
		return 0, false
	}
	return index, true
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartLineNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_line_not_found", "no cart line at that index", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "failed to process cart request", http.StatusInternalServerError))
	}
}
