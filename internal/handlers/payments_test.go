package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/freshpress/api/internal/payments"
	"github.com/freshpress/api/internal/services"
)

type stubCheckoutService struct {
	result services.InitiatePaymentResult
	err    error
	gotCmd services.InitiatePaymentCommand
}

func (s *stubCheckoutService) InitiatePayment(_ context.Context, cmd services.InitiatePaymentCommand) (services.InitiatePaymentResult, error) {
	s.gotCmd = cmd
	return s.result, s.err
}

type stubReconciliationService struct {
	outcome    services.ReconcileOutcome
	err        error
	gotTxnID   string
	gotOutcome services.PaymentOutcome
	calls      int
}

func (s *stubReconciliationService) Reconcile(_ context.Context, txnID string, outcome services.PaymentOutcome) (services.ReconcileOutcome, error) {
	s.calls++
	s.gotTxnID = txnID
	s.gotOutcome = outcome
	return s.outcome, s.err
}

func newPaymentTestRouter(checkout services.CheckoutService, reconciler services.ReconciliationService) http.Handler {
	h := NewPaymentHandlers(checkout, reconciler)
	return NewRouter(WithPaymentRoutes(h.Routes))
}

func TestInitiatePaymentEndpoint(t *testing.T) {
	checkout := &stubCheckoutService{
		result: services.InitiatePaymentResult{
			TransactionID: "TXN_01ABC",
			Payment:       payments.Request{TxnID: "TXN_01ABC", Amount: "25.96", Hash: "deadbeef"},
		},
	}
	router := newPaymentTestRouter(checkout, &stubReconciliationService{})

	body := `{
		"cartItems": [{"productId": "prod_mango", "title": "Mango Tango", "unitCost": 5.99, "quantity": 2,
			"addons": [{"name": "Chia Seeds", "price": 1.00}]}],
		"userData": {"email": "priya@example.com", "firstName": "Priya", "phone": "9876543210"},
		"shippingAddress": {"fullName": "Priya Sharma", "city": "Pune", "pinCode": "411001"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/initiate-payment", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		TransactionID string           `json:"transactionId"`
		Payment       payments.Request `json:"payment"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.TransactionID != "TXN_01ABC" || resp.Payment.Hash != "deadbeef" {
		t.Fatalf("unexpected response %+v", resp)
	}

	if len(checkout.gotCmd.Items) != 1 || checkout.gotCmd.Items[0].Product.UnitCost != 599 {
		t.Fatalf("unexpected command items %+v", checkout.gotCmd.Items)
	}
	if checkout.gotCmd.Customer.Email != "priya@example.com" {
		t.Fatalf("unexpected customer %+v", checkout.gotCmd.Customer)
	}
}

func TestInitiatePaymentEndpointInvalidInput(t *testing.T) {
	checkout := &stubCheckoutService{err: services.ErrCheckoutInvalidInput}
	router := newPaymentTestRouter(checkout, &stubReconciliationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/initiate-payment", strings.NewReader(`{"cartItems": []}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWebhookSuccessOutcome(t *testing.T) {
	reconciler := &stubReconciliationService{
		outcome: services.ReconcileOutcome{Status: services.ReconcileStatusOrderCreated, OrderID: "ord_01X"},
	}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	form := url.Values{}
	form.Set("txnid", "TXN_01ABC")
	form.Set("status", "success")
	form.Set("mode", "UPI")
	form.Set("mihpayid", "mih123")

	req := httptest.NewRequest(http.MethodPost, "/api/payu-webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if reconciler.gotTxnID != "TXN_01ABC" {
		t.Fatalf("unexpected txn id %q", reconciler.gotTxnID)
	}
	if !reconciler.gotOutcome.Success || reconciler.gotOutcome.PaymentID != "mih123" || reconciler.gotOutcome.Mode != "UPI" {
		t.Fatalf("unexpected outcome %+v", reconciler.gotOutcome)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["result"] != "order_created" || resp["orderId"] != "ord_01X" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestWebhookFailureOutcomeCarriesReason(t *testing.T) {
	reconciler := &stubReconciliationService{
		outcome: services.ReconcileOutcome{Status: services.ReconcileStatusMarkedFailed},
	}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	form := url.Values{}
	form.Set("txnid", "TXN_01ABC")
	form.Set("status", "failure")
	form.Set("error_Message", "Insufficient funds")

	req := httptest.NewRequest(http.MethodPost, "/api/payu-webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if reconciler.gotOutcome.Success {
		t.Fatal("expected failure outcome")
	}
	if reconciler.gotOutcome.FailureReason != "Insufficient funds" {
		t.Fatalf("unexpected reason %q", reconciler.gotOutcome.FailureReason)
	}
}

func TestWebhookRequiresTxnID(t *testing.T) {
	router := newPaymentTestRouter(&stubCheckoutService{}, &stubReconciliationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/payu-webhook", strings.NewReader("status=success"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestWebhookRequiresStatus(t *testing.T) {
	reconciler := &stubReconciliationService{}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	req := httptest.NewRequest(http.MethodPost, "/api/payu-webhook", strings.NewReader("txnid=TXN_1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	// A notification without a verdict must not touch the transaction.
	if reconciler.calls != 0 {
		t.Fatalf("expected no reconcile call, got %d", reconciler.calls)
	}
}

func TestWebhookUnknownTransaction(t *testing.T) {
	reconciler := &stubReconciliationService{err: services.ErrReconcileNotFound}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	req := httptest.NewRequest(http.MethodPost, "/api/payu-webhook", strings.NewReader("txnid=TXN_missing"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPaymentSuccessRedirectsToConfirmation(t *testing.T) {
	reconciler := &stubReconciliationService{
		outcome: services.ReconcileOutcome{Status: services.ReconcileStatusOrderCreated, OrderID: "ord_01X"},
	}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	req := httptest.NewRequest(http.MethodGet, "/api/payment-success?transactionId=TXN_01ABC", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/order-confirmation/ord_01X" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if !reconciler.gotOutcome.Success {
		t.Fatal("expected success outcome")
	}
}

func TestPaymentSuccessMissingTransactionID(t *testing.T) {
	reconciler := &stubReconciliationService{}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	req := httptest.NewRequest(http.MethodGet, "/api/payment-success", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/payment-failure?error=missing_transaction_id" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if reconciler.calls != 0 {
		t.Fatal("expected no reconciliation without a transaction id")
	}
}

func TestPaymentSuccessUnknownTransaction(t *testing.T) {
	reconciler := &stubReconciliationService{err: services.ErrReconcileNotFound}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	req := httptest.NewRequest(http.MethodGet, "/api/payment-success?transactionId=TXN_missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if loc := rr.Header().Get("Location"); loc != "/payment-failure?error=transaction_not_found" {
		t.Fatalf("unexpected redirect %q", loc)
	}
}

func TestPaymentSuccessServerError(t *testing.T) {
	reconciler := &stubReconciliationService{err: services.ErrReconcileUnavailable}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	req := httptest.NewRequest(http.MethodGet, "/api/payment-success?transactionId=TXN_01ABC", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if loc := rr.Header().Get("Location"); loc != "/payment-failure?error=server_error" {
		t.Fatalf("unexpected redirect %q", loc)
	}
}

func TestPaymentFailureMarksAndRedirects(t *testing.T) {
	reconciler := &stubReconciliationService{
		outcome: services.ReconcileOutcome{Status: services.ReconcileStatusMarkedFailed},
	}
	router := newPaymentTestRouter(&stubCheckoutService{}, reconciler)

	req := httptest.NewRequest(http.MethodGet, "/api/payment-failure?transactionId=TXN_01ABC&error_Message=Declined", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/payment-failure?transactionId=TXN_01ABC" {
		t.Fatalf("unexpected redirect %q", loc)
	}
	if reconciler.gotOutcome.Success {
		t.Fatal("expected failure outcome")
	}
	if reconciler.gotOutcome.FailureReason != "Declined" {
		t.Fatalf("unexpected reason %q", reconciler.gotOutcome.FailureReason)
	}
}

func TestPaymentFrontendBaseURLPrefix(t *testing.T) {
	reconciler := &stubReconciliationService{
		outcome: services.ReconcileOutcome{Status: services.ReconcileStatusOrderCreated, OrderID: "ord_01X"},
	}
	h := NewPaymentHandlers(&stubCheckoutService{}, reconciler,
		WithPaymentFrontendBaseURL("https://freshpress.example/"))
	router := NewRouter(WithPaymentRoutes(h.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/payment-success?transactionId=TXN_01ABC", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if loc := rr.Header().Get("Location"); loc != "https://freshpress.example/order-confirmation/ord_01X" {
		t.Fatalf("unexpected redirect %q", loc)
	}
}
