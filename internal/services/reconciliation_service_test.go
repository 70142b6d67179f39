package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/repositories"
)

type stubRepoErr struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoErr) Error() string       { return "stub repository error" }
func (e stubRepoErr) IsNotFound() bool    { return e.notFound }
func (e stubRepoErr) IsConflict() bool    { return e.conflict }
func (e stubRepoErr) IsUnavailable() bool { return e.unavailable }

type stubOrderRepo struct {
	findByTxnFn  func(txnID string) (domain.Order, error)
	confirmFn    func(req repositories.OrderConfirmRequest) (repositories.OrderConfirmResult, error)
	findFn       func(orderID string) (domain.Order, error)
	listFn       func(filter repositories.OrderListFilter) ([]domain.Order, error)
	updateFn     func(orderID string, status domain.OrderStatus) (domain.Order, error)
	confirmCalls int
}

func (s *stubOrderRepo) Confirm(_ context.Context, req repositories.OrderConfirmRequest) (repositories.OrderConfirmResult, error) {
	s.confirmCalls++
	if s.confirmFn != nil {
		return s.confirmFn(req)
	}
	return repositories.OrderConfirmResult{}, errors.New("confirm not stubbed")
}

func (s *stubOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(orderID)
	}
	return domain.Order{}, stubRepoErr{notFound: true}
}

func (s *stubOrderRepo) FindByTransactionID(_ context.Context, txnID string) (domain.Order, error) {
	if s.findByTxnFn != nil {
		return s.findByTxnFn(txnID)
	}
	return domain.Order{}, stubRepoErr{notFound: true}
}

func (s *stubOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if s.listFn != nil {
		return s.listFn(filter)
	}
	return nil, nil
}

func (s *stubOrderRepo) UpdateStatus(_ context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if s.updateFn != nil {
		return s.updateFn(orderID, status)
	}
	return domain.Order{}, stubRepoErr{notFound: true}
}

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) SendOrderConfirmation(_ context.Context, order domain.Order) error {
	m.sent = append(m.sent, order.ID)
	return m.err
}

type recordingPublisher struct {
	published []string
	err       error
}

func (p *recordingPublisher) OrderCreated(_ context.Context, order domain.Order) error {
	p.published = append(p.published, order.ID)
	return p.err
}

func newTestReconciliationService(t *testing.T, txns *stubTransactionRepo, orders *stubOrderRepo, mailer OrderMailer, events EventPublisher) ReconciliationService {
	t.Helper()
	svc, err := NewReconciliationService(ReconciliationServiceDeps{
		Transactions: txns,
		Orders:       orders,
		Mailer:       mailer,
		Events:       events,
		Clock:        func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
		IDGen:        func() string { return "01RECULID" },
	})
	if err != nil {
		t.Fatalf("NewReconciliationService returned error: %v", err)
	}
	return svc
}

func TestReconcileAlreadyProcessedIsReadOnly(t *testing.T) {
	orders := &stubOrderRepo{
		findByTxnFn: func(txnID string) (domain.Order, error) {
			return domain.Order{ID: "ord_existing", TransactionID: txnID}, nil
		},
	}
	txns := &stubTransactionRepo{}
	svc := newTestReconciliationService(t, txns, orders, nil, nil)

	outcome, err := svc.Reconcile(context.Background(), "TXN_1", PaymentOutcome{Success: true})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Status != ReconcileStatusAlreadyProcessed || outcome.OrderID != "ord_existing" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if orders.confirmCalls != 0 {
		t.Fatal("expected no confirmation attempt for already-processed payment")
	}
	if txns.findCalls != 0 || txns.markCalls != 0 {
		t.Fatal("expected no transaction reads or writes for already-processed payment")
	}
}

func TestReconcileUnknownTransaction(t *testing.T) {
	txns := &stubTransactionRepo{
		findFn: func(string) (domain.Transaction, error) {
			return domain.Transaction{}, stubRepoErr{notFound: true}
		},
	}
	svc := newTestReconciliationService(t, txns, &stubOrderRepo{}, nil, nil)

	_, err := svc.Reconcile(context.Background(), "TXN_missing", PaymentOutcome{Success: true})
	if !errors.Is(err, ErrReconcileNotFound) {
		t.Fatalf("expected ErrReconcileNotFound, got %v", err)
	}
}

func TestReconcileSuccessCreatesOrderAndNotifies(t *testing.T) {
	orders := &stubOrderRepo{
		confirmFn: func(req repositories.OrderConfirmRequest) (repositories.OrderConfirmResult, error) {
			if req.OrderID != "ord_01RECULID" {
				return repositories.OrderConfirmResult{}, errors.New("unexpected order id " + req.OrderID)
			}
			return repositories.OrderConfirmResult{
				Order:   domain.Order{ID: req.OrderID, TransactionID: req.TransactionID, Total: 2596},
				Created: true,
				StockWarnings: []domain.StockWarning{
					{ProductID: "prod_kale", Requested: 3, Available: 1},
				},
			}, nil
		},
	}
	mailer := &recordingMailer{err: errors.New("smtp down")}
	events := &recordingPublisher{}
	svc := newTestReconciliationService(t, &stubTransactionRepo{}, orders, mailer, events)

	outcome, err := svc.Reconcile(context.Background(), "TXN_1", PaymentOutcome{Success: true, PaymentID: "mih123", Mode: "UPI"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Status != ReconcileStatusOrderCreated || outcome.OrderID != "ord_01RECULID" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(outcome.StockWarnings) != 1 {
		t.Fatalf("expected stock warning to propagate, got %+v", outcome.StockWarnings)
	}

	// The mailer failed but reconciliation still succeeded and still published.
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email attempt, got %d", len(mailer.sent))
	}
	if len(events.published) != 1 || events.published[0] != "ord_01RECULID" {
		t.Fatalf("expected order.created publish, got %v", events.published)
	}
}

func TestReconcileDuplicateConfirmation(t *testing.T) {
	orders := &stubOrderRepo{
		confirmFn: func(req repositories.OrderConfirmRequest) (repositories.OrderConfirmResult, error) {
			return repositories.OrderConfirmResult{
				Order:   domain.Order{ID: "ord_first", TransactionID: req.TransactionID},
				Created: false,
			}, nil
		},
	}
	mailer := &recordingMailer{}
	svc := newTestReconciliationService(t, &stubTransactionRepo{}, orders, mailer, nil)

	outcome, err := svc.Reconcile(context.Background(), "TXN_1", PaymentOutcome{Success: true})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Status != ReconcileStatusAlreadyProcessed || outcome.OrderID != "ord_first" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("duplicate confirmation must not re-send email")
	}
}

func TestReconcileFailureMarksTransaction(t *testing.T) {
	txns := &stubTransactionRepo{}
	svc := newTestReconciliationService(t, txns, &stubOrderRepo{}, nil, nil)

	outcome, err := svc.Reconcile(context.Background(), "TXN_1", PaymentOutcome{Success: false, FailureReason: "Insufficient funds"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Status != ReconcileStatusMarkedFailed {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if txns.markCalls != 1 || txns.lastReason != "Insufficient funds" {
		t.Fatalf("expected MarkFailed with reason, got calls=%d reason=%q", txns.markCalls, txns.lastReason)
	}
}

func TestReconcileFailureDefaultsReason(t *testing.T) {
	txns := &stubTransactionRepo{}
	svc := newTestReconciliationService(t, txns, &stubOrderRepo{}, nil, nil)

	if _, err := svc.Reconcile(context.Background(), "TXN_1", PaymentOutcome{Success: false}); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if txns.lastReason != "Payment failed" {
		t.Fatalf("expected default failure reason, got %q", txns.lastReason)
	}
}

func TestReconcileLateFailureAfterCompletion(t *testing.T) {
	txns := &stubTransactionRepo{
		markFn: func(txnID, _ string) (domain.Transaction, error) {
			return domain.Transaction{
				ID:      txnID,
				Status:  domain.TransactionStatusCompleted,
				OrderID: "ord_done",
			}, nil
		},
	}
	svc := newTestReconciliationService(t, txns, &stubOrderRepo{}, nil, nil)

	outcome, err := svc.Reconcile(context.Background(), "TXN_1", PaymentOutcome{Success: false, FailureReason: "late callback"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if outcome.Status != ReconcileStatusAlreadyProcessed || outcome.OrderID != "ord_done" {
		t.Fatalf("expected completed transaction to win over late failure, got %+v", outcome)
	}
}
