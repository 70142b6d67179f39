package services

import (
	"context"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/payments"
)

// CustomerInfo is the buyer identity captured at checkout.
type CustomerInfo struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// InitiatePaymentCommand carries the checkout payload from the storefront.
type InitiatePaymentCommand struct {
	UserID          string
	Items           []domain.CartLine
	Customer        CustomerInfo
	ShippingAddress domain.Address
}

// InitiatePaymentResult returns the persisted transaction ID and the signed
// gateway request for the browser to post.
type InitiatePaymentResult struct {
	TransactionID string
	Payment       payments.Request
}

// CheckoutService turns a cart into a pending transaction and a signed
// hosted-checkout request.
type CheckoutService interface {
	InitiatePayment(ctx context.Context, cmd InitiatePaymentCommand) (InitiatePaymentResult, error)
}

// PaymentOutcome is the gateway's verdict for a transaction, from either the
// server-to-server webhook or the browser redirect.
type PaymentOutcome struct {
	Success       bool
	PaymentID     string
	Mode          string
	FailureReason string
}

// ReconcileStatus classifies what reconciliation did.
type ReconcileStatus string

const (
	ReconcileStatusOrderCreated     ReconcileStatus = "order_created"
	ReconcileStatusAlreadyProcessed ReconcileStatus = "already_processed"
	ReconcileStatusMarkedFailed     ReconcileStatus = "marked_failed"
)

// ReconcileOutcome reports the result of a reconciliation attempt.
type ReconcileOutcome struct {
	Status        ReconcileStatus
	OrderID       string
	StockWarnings []domain.StockWarning
}

// ReconciliationService settles a transaction against the gateway outcome.
// Safe to call any number of times per transaction ID.
type ReconciliationService interface {
	Reconcile(ctx context.Context, txnID string, outcome PaymentOutcome) (ReconcileOutcome, error)
}

// OrderListQuery filters vendor order listings.
type OrderListQuery struct {
	Status string
	Limit  int
}

// OrderService exposes order lookups and the vendor fulfilment lifecycle.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status string) (domain.Order, error)
}

// ProductListQuery filters and sorts public catalog listings.
type ProductListQuery struct {
	Category    string
	SortBy      string // "price" or "title"; empty preserves repository order
	InStockOnly bool
	Limit       int
}

// ProductInput is the vendor payload for creating or updating a product.
type ProductInput struct {
	Title        string
	Description  string
	Category     string
	OriginalCost domain.Cents
	CurrentCost  domain.Cents
	ImageURL     string
	Tags         []string
	Featured     bool
	Stock        int
}

// CatalogService manages the juice catalog.
type CatalogService interface {
	ListProducts(ctx context.Context, query ProductListQuery) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, productID string, input ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	SetStock(ctx context.Context, productID string, stock int) (domain.Product, error)
}

// CartService stores per-session carts for the storefront.
type CartService interface {
	NewSessionID() string
	GetCart(ctx context.Context, sessionID string) (domain.Cart, error)
	AddItem(ctx context.Context, sessionID string, line domain.CartLine) (domain.Cart, error)
	UpdateQuantity(ctx context.Context, sessionID string, index, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID string, index int) (domain.Cart, error)
	ClearCart(ctx context.Context, sessionID string) (domain.Cart, error)
}

// OrderMailer sends buyer-facing order email. Implementations must be safe for
// best-effort use; reconciliation never propagates mailer errors.
type OrderMailer interface {
	SendOrderConfirmation(ctx context.Context, order domain.Order) error
}

// EventPublisher emits integration events for downstream consumers.
type EventPublisher interface {
	OrderCreated(ctx context.Context, order domain.Order) error
}
