package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/platform/httpx"
	"github.com/freshpress/api/internal/platform/mail"
	"github.com/freshpress/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

// Stored strings originate from buyer input; strip any markup before they
// reach the confirmation page.
var orderTextPolicy = bluemonday.StrictPolicy()

// OrderHandlers exposes the public order lookup, the confirmation page, and
// the vendor fulfilment endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs handlers around the order service.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes wires the public /api/orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}", h.getOrder)
}

// VendorRoutes wires the vendor order endpoints onto the authenticated group.
func (h *OrderHandlers) VendorRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderID}/status", h.updateStatus)
}

// PageRoutes wires the root-level confirmation page.
func (h *OrderHandlers) PageRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/order-confirmation/{orderID}", h.confirmationPage)
}

type orderPayload struct {
	ID              string            `json:"id"`
	OrderNumber     string            `json:"orderNumber"`
	TransactionID   string            `json:"transactionId"`
	Items           []lineItemPayload `json:"items"`
	Subtotal        float64           `json:"subtotal"`
	Shipping        float64           `json:"shipping"`
	Total           float64           `json:"total"`
	CustomerEmail   string            `json:"customerEmail"`
	CustomerName    string            `json:"customerName,omitempty"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"paymentStatus"`
	PaymentID       string            `json:"paymentId,omitempty"`
	PaymentMode     string            `json:"paymentMode,omitempty"`
	ShippingAddress addressPayload    `json:"shippingAddress"`
	PhoneNumber     string            `json:"phoneNumber,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	UpdatedAt       string            `json:"updatedAt"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	return orderPayload{
		ID:              order.ID,
		OrderNumber:     mail.OrderNumber(order.ID),
		TransactionID:   order.TransactionID,
		Items:           buildLineItemPayloads(order.Items),
		Subtotal:        order.Subtotal.Float(),
		Shipping:        order.Shipping.Float(),
		Total:           order.Total.Float(),
		CustomerEmail:   order.CustomerEmail,
		CustomerName:    order.CustomerName,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		PaymentID:       order.PaymentID,
		PaymentMode:     order.PaymentMode,
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		PhoneNumber:     order.PhoneNumber,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := services.OrderListQuery{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		query.Limit = limit
	}

	orders, err := h.orders.ListOrders(ctx, query)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payloads := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		payloads = append(payloads, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"orders": payloads})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, orderID, strings.TrimSpace(req.Status))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *OrderHandlers) confirmationPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) || errors.Is(err, services.ErrOrderInvalidInput) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "failed to load order", http.StatusInternalServerError)
		return
	}

	view := buildConfirmationPageView(order)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := confirmationPageTemplate.Execute(w, view); err != nil {
		// Headers are gone; nothing useful left to send.
		return
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

type confirmationPageLine struct {
	Title    string
	Quantity int
	Addons   string
	Total    string
}

type confirmationPageView struct {
	OrderNumber  string
	CustomerName string
	Status       string
	Lines        []confirmationPageLine
	Subtotal     string
	Shipping     string
	Total        string
	Address      []string
}

func buildConfirmationPageView(order domain.Order) confirmationPageView {
	clean := func(s string) string {
		return strings.TrimSpace(orderTextPolicy.Sanitize(s))
	}

	view := confirmationPageView{
		OrderNumber:  mail.OrderNumber(order.ID),
		CustomerName: clean(order.CustomerName),
		Status:       string(order.Status),
		Subtotal:     order.Subtotal.String(),
		Shipping:     order.Shipping.String(),
		Total:        order.Total.String(),
	}
	for _, line := range order.Items {
		names := make([]string, 0, len(line.Addons))
		for _, addon := range line.Addons {
			names = append(names, clean(addon.Name))
		}
		view.Lines = append(view.Lines, confirmationPageLine{
			Title:    clean(line.Product.Title),
			Quantity: line.Quantity,
			Addons:   strings.Join(names, ", "),
			Total:    line.Total().String(),
		})
	}

	addr := order.ShippingAddress
	for _, part := range []string{addr.FullName, addr.AddressLine1, addr.AddressLine2, addr.Area} {
		if cleaned := clean(part); cleaned != "" {
			view.Address = append(view.Address, cleaned)
		}
	}
	cityParts := make([]string, 0, 3)
	for _, part := range []string{addr.City, addr.State, addr.PinCode} {
		if cleaned := clean(part); cleaned != "" {
			cityParts = append(cityParts, cleaned)
		}
	}
	if len(cityParts) > 0 {
		view.Address = append(view.Address, strings.Join(cityParts, ", "))
	}
	return view
}

var confirmationPageTemplate = template.Must(template.New("order_confirmation_page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Order Confirmed - Fresh Press</title>
</head>
<body style="font-family: Arial, sans-serif; color: #2d3436; max-width: 640px; margin: 2rem auto;">
  <h1 style="color: #27ae60;">Order confirmed</h1>
  <p>Order <strong>#{{.OrderNumber}}</strong>{{if .CustomerName}} for {{.CustomerName}}{{end}} is {{.Status}}.</p>
  <table style="width: 100%; border-collapse: collapse;">
    <tr>
      <th style="text-align: left; border-bottom: 1px solid #dfe6e9; padding: 6px;">Item</th>
      <th style="text-align: right; border-bottom: 1px solid #dfe6e9; padding: 6px;">Qty</th>
      <th style="text-align: right; border-bottom: 1px solid #dfe6e9; padding: 6px;">Total</th>
    </tr>
    {{range .Lines}}
    <tr>
      <td style="padding: 6px;">{{.Title}}{{if .Addons}} <small>(+ {{.Addons}})</small>{{end}}</td>
      <td style="text-align: right; padding: 6px;">{{.Quantity}}</td>
      <td style="text-align: right; padding: 6px;">${{.Total}}</td>
    </tr>
    {{end}}
  </table>
  <p style="text-align: right;">
    Subtotal: ${{.Subtotal}}<br>
    Shipping: ${{.Shipping}}<br>
    <strong>Total: ${{.Total}}</strong>
  </p>
  {{if .Address}}
  <h2>Delivery address</h2>
  <p>{{range .Address}}{{.}}<br>{{end}}</p>
  {{end}}
</body>
</html>
`))
