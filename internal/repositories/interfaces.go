package repositories

import (
	"context"
	"time"

	"github.com/freshpress/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// TransactionRepository persists payment transactions keyed by their txnid.
type TransactionRepository interface {
	// Create stores a new pending transaction. The ID must be unique.
	Create(ctx context.Context, txn domain.Transaction) error
	FindByID(ctx context.Context, txnID string) (domain.Transaction, error)
	// MarkFailed records a failed payment outcome. Transactions already in a
	// terminal state are left untouched and returned as-is.
	MarkFailed(ctx context.Context, txnID, reason string) (domain.Transaction, error)
	// ExpirePending fails pending transactions created before the cutoff,
	// returning how many were transitioned.
	ExpirePending(ctx context.Context, cutoff time.Time, reason string, limit int) (int, error)
}

// OrderConfirmRequest carries the inputs for confirming a paid transaction.
type OrderConfirmRequest struct {
	TransactionID string
	// OrderID is the identifier used if a new order document is created.
	OrderID string
	// PaymentID is the gateway-side payment identifier, when known.
	PaymentID   string
	PaymentMode string
	ConfirmedAt time.Time
}

// OrderConfirmResult reports the outcome of a confirmation attempt.
type OrderConfirmResult struct {
	Order domain.Order
	// Created is false when an order for the transaction already existed.
	Created bool
	// StockWarnings lists items whose stock could not cover the ordered
	// quantity. The order is still confirmed; fulfilment follows up manually.
	StockWarnings []domain.StockWarning
}

// OrderListFilter narrows vendor order listings.
type OrderListFilter struct {
	Status domain.OrderStatus
	Limit  int
}

// OrderRepository persists confirmed orders.
type OrderRepository interface {
	// Confirm atomically creates the order for a paid transaction, marks the
	// transaction completed, and decrements product stock. Calling it again
	// for the same transaction returns the existing order.
	Confirm(ctx context.Context, req OrderConfirmRequest) (OrderConfirmResult, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByTransactionID(ctx context.Context, txnID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error)
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Category string
	Featured *bool
	Limit    int
}

// ProductRepository persists the product catalog and stock levels.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
	SetStock(ctx context.Context, productID string, stock int) (domain.Product, error)
}
