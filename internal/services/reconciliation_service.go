package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/platform/requestctx"
	"github.com/freshpress/api/internal/repositories"
)

const orderIDPrefix = "ord_"

var (
	// ErrReconcileInvalidInput indicates a missing or malformed transaction reference.
	ErrReconcileInvalidInput = errors.New("reconcile: invalid input")
	// ErrReconcileNotFound indicates no transaction exists for the supplied ID.
	ErrReconcileNotFound = errors.New("reconcile: transaction not found")
	// ErrReconcileUnavailable indicates persistence failed and the caller may retry.
	ErrReconcileUnavailable = errors.New("reconcile: unavailable")
)

// ReconciliationServiceDeps wires the dependencies required by the reconciliation service.
type ReconciliationServiceDeps struct {
	Transactions repositories.TransactionRepository
	Orders       repositories.OrderRepository
	// Mailer and Events are optional; nil disables the corresponding side effect.
	Mailer OrderMailer
	Events EventPublisher
	Clock  func() time.Time
	IDGen  func() string
}

type reconciliationService struct {
	transactions repositories.TransactionRepository
	orders       repositories.OrderRepository
	mailer       OrderMailer
	events       EventPublisher
	now          func() time.Time
	newID        func() string
}

// NewReconciliationService constructs a ReconciliationService validating required dependencies.
func NewReconciliationService(deps ReconciliationServiceDeps) (ReconciliationService, error) {
	if deps.Transactions == nil {
		return nil, errors.New("reconciliation service: transaction repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("reconciliation service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGen
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}

	return &reconciliationService{
		transactions: deps.Transactions,
		orders:       deps.Orders,
		mailer:       deps.Mailer,
		events:       deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		newID: newID,
	}, nil
}

// Reconcile settles the transaction against the gateway outcome. The webhook
// and the browser redirect both land here, in any order and any number of
// times; at most one order ever exists per transaction ID.
func (s *reconciliationService) Reconcile(ctx context.Context, txnID string, outcome PaymentOutcome) (ReconcileOutcome, error) {
	if s == nil || s.transactions == nil || s.orders == nil {
		return ReconcileOutcome{}, ErrReconcileUnavailable
	}
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return ReconcileOutcome{}, ErrReconcileInvalidInput
	}
	logger := requestctx.Logger(ctx).With(zap.String("txn_id", txnID))

	// Cheap pre-check outside any transaction: a replayed notification for an
	// already-settled payment must stay read-only.
	existing, err := s.orders.FindByTransactionID(ctx, txnID)
	switch {
	case err == nil:
		logger.Info("reconcile: order already exists", zap.String("order_id", existing.ID))
		return ReconcileOutcome{Status: ReconcileStatusAlreadyProcessed, OrderID: existing.ID}, nil
	case repositories.IsNotFound(err):
		// Continue.
	default:
		logger.Error("reconcile: order lookup failed", zap.Error(err))
		return ReconcileOutcome{}, ErrReconcileUnavailable
	}

	if _, err := s.transactions.FindByID(ctx, txnID); err != nil {
		if repositories.IsNotFound(err) {
			return ReconcileOutcome{}, ErrReconcileNotFound
		}
		logger.Error("reconcile: transaction lookup failed", zap.Error(err))
		return ReconcileOutcome{}, ErrReconcileUnavailable
	}

	if !outcome.Success {
		return s.markFailed(ctx, logger, txnID, outcome.FailureReason)
	}

	result, err := s.orders.Confirm(ctx, repositories.OrderConfirmRequest{
		TransactionID: txnID,
		OrderID:       orderIDPrefix + s.newID(),
		PaymentID:     strings.TrimSpace(outcome.PaymentID),
		PaymentMode:   strings.TrimSpace(outcome.Mode),
		ConfirmedAt:   s.now(),
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return ReconcileOutcome{}, ErrReconcileNotFound
		}
		logger.Error("reconcile: confirm failed", zap.Error(err))
		return ReconcileOutcome{}, ErrReconcileUnavailable
	}

	if !result.Created {
		logger.Info("reconcile: order already exists", zap.String("order_id", result.Order.ID))
		return ReconcileOutcome{Status: ReconcileStatusAlreadyProcessed, OrderID: result.Order.ID}, nil
	}

	for _, warning := range result.StockWarnings {
		logger.Warn("reconcile: insufficient stock for order line",
			zap.String("order_id", result.Order.ID),
			zap.String("product_id", warning.ProductID),
			zap.Int("requested", warning.Requested),
			zap.Int("available", warning.Available),
		)
	}

	s.notifyOrderCreated(ctx, logger, result.Order)

	logger.Info("reconcile: order created",
		zap.String("order_id", result.Order.ID),
		zap.String("total", result.Order.Total.String()),
	)
	return ReconcileOutcome{
		Status:        ReconcileStatusOrderCreated,
		OrderID:       result.Order.ID,
		StockWarnings: result.StockWarnings,
	}, nil
}

func (s *reconciliationService) markFailed(ctx context.Context, logger *zap.Logger, txnID, reason string) (ReconcileOutcome, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Payment failed"
	}

	txn, err := s.transactions.MarkFailed(ctx, txnID, reason)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ReconcileOutcome{}, ErrReconcileNotFound
		}
		logger.Error("reconcile: mark failed errored", zap.Error(err))
		return ReconcileOutcome{}, ErrReconcileUnavailable
	}

	// A completed transaction is never downgraded; report the existing order.
	if txn.Status == domain.TransactionStatusCompleted {
		logger.Info("reconcile: failure ignored for completed transaction", zap.String("order_id", txn.OrderID))
		return ReconcileOutcome{Status: ReconcileStatusAlreadyProcessed, OrderID: txn.OrderID}, nil
	}

	logger.Info("reconcile: transaction marked failed", zap.String("reason", reason))
	return ReconcileOutcome{Status: ReconcileStatusMarkedFailed}, nil
}

// notifyOrderCreated runs the best-effort side effects. Neither failure is
// ever surfaced to the payment flow.
func (s *reconciliationService) notifyOrderCreated(ctx context.Context, logger *zap.Logger, order domain.Order) {
	if s.mailer != nil {
		if err := s.mailer.SendOrderConfirmation(ctx, order); err != nil {
			logger.Warn("reconcile: confirmation email failed",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}
	if s.events != nil {
		if err := s.events.OrderCreated(ctx, order); err != nil {
			logger.Warn("reconcile: order.created publish failed",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}
	}
}
