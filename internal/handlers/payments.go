package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/freshpress/api/internal/payments"
	"github.com/freshpress/api/internal/platform/httpx"
	"github.com/freshpress/api/internal/platform/requestctx"
	"github.com/freshpress/api/internal/services"
)

const maxCheckoutBodySize = 128 * 1024

// PaymentHandlers exposes checkout initiation and the gateway callback
// endpoints. The callbacks carry no session; authenticity comes from
// reconciling against the server-side transaction record.
type PaymentHandlers struct {
	checkout   services.CheckoutService
	reconciler services.ReconciliationService
	baseURL    string
}

// PaymentOption customises construction of PaymentHandlers.
type PaymentOption func(*PaymentHandlers)

// WithPaymentFrontendBaseURL sets the base URL redirect targets are built on.
// Empty keeps redirects relative, which suits a same-origin frontend.
func WithPaymentFrontendBaseURL(baseURL string) PaymentOption {
	return func(h *PaymentHandlers) {
		h.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// NewPaymentHandlers constructs handlers for the payment flow.
func NewPaymentHandlers(checkout services.CheckoutService, reconciler services.ReconciliationService, opts ...PaymentOption) *PaymentHandlers {
	h := &PaymentHandlers{
		checkout:   checkout,
		reconciler: reconciler,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the payment endpoints onto the /api group.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/initiate-payment", h.initiatePayment)
	r.Post("/payu-webhook", h.webhook)
	r.Get("/payment-success", h.paymentSuccess)
	r.Post("/payment-success", h.paymentSuccess)
	r.Get("/payment-failure", h.paymentFailure)
	r.Post("/payment-failure", h.paymentFailure)
}

type initiatePaymentRequest struct {
	CartItems []cartLineRequest `json:"cartItems"`
	UserData  struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Phone     string `json:"phone"`
		UserID    string `json:"userId"`
	} `json:"userData"`
	ShippingAddress addressRequest `json:"shippingAddress"`
}

type initiatePaymentResponse struct {
	TransactionID string           `json:"transactionId"`
	Payment       payments.Request `json:"payment"`
}

func (h *PaymentHandlers) initiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req initiatePaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.InitiatePaymentCommand{
		UserID: strings.TrimSpace(req.UserData.UserID),
		Customer: services.CustomerInfo{
			Email:     strings.TrimSpace(req.UserData.Email),
			FirstName: strings.TrimSpace(req.UserData.FirstName),
			LastName:  strings.TrimSpace(req.UserData.LastName),
			Phone:     strings.TrimSpace(req.UserData.Phone),
		},
		ShippingAddress: req.ShippingAddress.toDomain(),
	}
	for _, item := range req.CartItems {
		cmd.Items = append(cmd.Items, item.toDomain())
	}

	result, err := h.checkout.InitiatePayment(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCheckoutInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrCheckoutUnavailable):
			httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "could not persist transaction", http.StatusServiceUnavailable))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to initiate payment", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, initiatePaymentResponse{
		TransactionID: result.TransactionID,
		Payment:       result.Payment,
	})
}

func (h *PaymentHandlers) webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reconciler == nil {
		httpx.WriteError(ctx, w, httpx.NewError("reconciler_unavailable", "reconciliation service is unavailable", http.StatusServiceUnavailable))
		return
	}

	notification, err := parseNotification(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if notification.TxnID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "txnid is required", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(notification.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	outcome, err := h.reconciler.Reconcile(ctx, notification.TxnID, services.PaymentOutcome{
		Success:       notification.Succeeded(),
		PaymentID:     notification.MihpayID,
		Mode:          notification.Mode,
		FailureReason: notification.ErrorMessage,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReconcileNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("transaction_not_found", "no transaction for txnid", http.StatusNotFound))
		case errors.Is(err, services.ErrReconcileInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrReconcileUnavailable):
			httpx.WriteError(ctx, w, httpx.NewError("reconciler_unavailable", "reconciliation temporarily unavailable", http.StatusServiceUnavailable))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("reconcile_error", "failed to reconcile payment", http.StatusInternalServerError))
		}
		return
	}

	payload := map[string]any{"result": string(outcome.Status)}
	if outcome.OrderID != "" {
		payload["orderId"] = outcome.OrderID
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PaymentHandlers) paymentSuccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txnID, notification := callbackParams(r)
	if txnID == "" {
		h.redirectFailure(w, r, "missing_transaction_id")
		return
	}
	if h.reconciler == nil {
		h.redirectFailure(w, r, "server_error")
		return
	}

	outcome, err := h.reconciler.Reconcile(ctx, txnID, services.PaymentOutcome{
		Success:   true,
		PaymentID: notification.MihpayID,
		Mode:      notification.Mode,
	})
	if err != nil {
		if errors.Is(err, services.ErrReconcileNotFound) {
			h.redirectFailure(w, r, "transaction_not_found")
			return
		}
		requestctx.Logger(ctx).Error("payment success reconciliation failed",
			zap.String("txnId", txnID), zap.Error(err))
		h.redirectFailure(w, r, "server_error")
		return
	}

	http.Redirect(w, r, h.baseURL+"/order-confirmation/"+url.PathEscape(outcome.OrderID), http.StatusFound)
}

func (h *PaymentHandlers) paymentFailure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txnID, notification := callbackParams(r)
	if txnID == "" {
		h.redirectFailure(w, r, "missing_transaction_id")
		return
	}

	if h.reconciler != nil {
		_, err := h.reconciler.Reconcile(ctx, txnID, services.PaymentOutcome{
			Success:       false,
			FailureReason: notification.ErrorMessage,
		})
		if err != nil && !errors.Is(err, services.ErrReconcileNotFound) {
			requestctx.Logger(ctx).Warn("payment failure reconciliation failed",
				zap.String("txnId", txnID), zap.Error(err))
		}
	}

	target := h.baseURL + "/payment-failure?transactionId=" + url.QueryEscape(txnID)
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *PaymentHandlers) redirectFailure(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.baseURL+"/payment-failure?error="+url.QueryEscape(code), http.StatusFound)
}

// callbackParams extracts the transaction id and any gateway fields from a
// browser redirect (query string) or a gateway form post.
func callbackParams(r *http.Request) (string, payments.Notification) {
	notification := payments.Notification{}
	if r == nil {
		return "", notification
	}
	_ = r.ParseForm()

	lookup := func(keys ...string) string {
		for _, key := range keys {
			if v := strings.TrimSpace(r.Form.Get(key)); v != "" {
				return v
			}
		}
		return ""
	}

	notification.TxnID = lookup("transactionId", "txnid")
	notification.Status = lookup("status")
	notification.Mode = lookup("mode")
	notification.MihpayID = lookup("mihpayid")
	notification.ErrorMessage = lookup("error_Message", "error")
	return notification.TxnID, notification
}

func parseNotification(r *http.Request) (payments.Notification, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		body, err := readLimitedBody(r, maxCheckoutBodySize)
		if err != nil {
			return payments.Notification{}, err
		}
		var notification payments.Notification
		if err := json.Unmarshal(body, &notification); err != nil {
			return payments.Notification{}, errors.New("invalid JSON payload")
		}
		notification.TxnID = strings.TrimSpace(notification.TxnID)
		return notification, nil
	}

	if err := r.ParseForm(); err != nil {
		return payments.Notification{}, errors.New("invalid form payload")
	}
	return payments.Notification{
		TxnID:        strings.TrimSpace(r.Form.Get("txnid")),
		Status:       strings.TrimSpace(r.Form.Get("status")),
		Amount:       strings.TrimSpace(r.Form.Get("amount")),
		Mode:         strings.TrimSpace(r.Form.Get("mode")),
		MihpayID:     strings.TrimSpace(r.Form.Get("mihpayid")),
		ErrorMessage: strings.TrimSpace(r.Form.Get("error_Message")),
	}, nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}
