package domain

import (
	"time"
)

// Product is a catalog document maintained by the vendor dashboard.
type Product struct {
	ID           string
	Title        string
	Description  string
	Category     string
	OriginalCost Cents
	CurrentCost  Cents
	ImageURL     string
	Tags         []string
	InStock      bool
	Featured     bool
	Stock        int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Addon is an optional named, priced modifier attached to a cart line.
type Addon struct {
	Name  string
	Price Cents
}

// ProductRef is the snapshot of a product embedded in cart lines, transactions
// and orders. Orders must render what the buyer saw, so the snapshot is copied
// forward rather than re-read from the catalog.
type ProductRef struct {
	ID       string
	Title    string
	UnitCost Cents
}

// CartLine couples a product snapshot with a quantity and the chosen add-ons.
type CartLine struct {
	Product  ProductRef
	Quantity int
	Addons   []Addon
}

// Total returns (unit price + sum of add-on prices) x quantity.
func (l CartLine) Total() Cents {
	unit := l.Product.UnitCost
	for _, addon := range l.Addons {
		unit += addon.Price
	}
	return unit * Cents(l.Quantity)
}

// Address is the buyer-supplied shipping destination.
type Address struct {
	FullName     string
	AddressLine1 string
	AddressLine2 string
	Area         string
	City         string
	State        string
	PinCode      string
	PhoneNumber  string
}

// TransactionStatus is the overall lifecycle of a pending-payment record.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// PaymentStatus tracks the gateway outcome on a transaction.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Transaction is the durable pending-payment record created before the buyer
// is redirected to the payment gateway. Its ID doubles as the idempotency key
// for the whole confirmation flow: completed and failed are both terminal and
// a transaction is never deleted.
type Transaction struct {
	ID              string
	UserID          string
	Items           []CartLine
	Subtotal        Cents
	Shipping        Cents
	Total           Cents
	CustomerEmail   string
	CustomerName    string
	Status          TransactionStatus
	PaymentStatus   PaymentStatus
	FailureReason   string
	OrderID         string
	ShippingAddress Address
	PhoneNumber     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the transaction already reached a final status.
func (t Transaction) Terminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// OrderStatus is the vendor-facing fulfillment lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is created at most once per transaction ID by payment reconciliation.
// The payment flow never touches it again; only vendor order management moves
// the fulfillment status.
type Order struct {
	ID              string
	TransactionID   string
	UserID          string
	Items           []CartLine
	Subtotal        Cents
	Shipping        Cents
	Total           Cents
	CustomerEmail   string
	CustomerName    string
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentID       string
	PaymentMode     string
	ShippingAddress Address
	PhoneNumber     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StockWarning records a line item whose stock could not be decremented during
// order creation. Under-stock is a soft condition: the order still goes
// through and the discrepancy is logged for the vendor.
type StockWarning struct {
	ProductID string
	Requested int
	Available int
}
