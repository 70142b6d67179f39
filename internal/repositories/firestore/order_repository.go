package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/freshpress/api/internal/domain"
	pfirestore "github.com/freshpress/api/internal/platform/firestore"
	"github.com/freshpress/api/internal/repositories"
)

const defaultOrderListLimit = 100

// OrderRepository persists confirmed orders and owns the payment confirmation
// transaction spanning orders, transactions, and product stock.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[domain.Order]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base, err := pfirestore.NewBaseRepository(provider, ordersCollection, decodeOrderSnapshot)
	if err != nil {
		return nil, err
	}
	return &OrderRepository{provider: provider, base: base}, nil
}

func decodeOrderSnapshot(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(snap.Ref.ID, doc), nil
}

// Confirm turns a paid transaction into an order exactly once. Within a single
// Firestore transaction it checks for an existing order with the same txnid,
// creates the order, marks the transaction completed, and decrements product
// stock. All document reads happen before the first write; the Firestore
// client rejects reads issued after a write.
func (r *OrderRepository) Confirm(ctx context.Context, req repositories.OrderConfirmRequest) (repositories.OrderConfirmResult, error) {
	if r == nil || r.base == nil {
		return repositories.OrderConfirmResult{}, errors.New("order repository not initialised")
	}
	txnID := strings.TrimSpace(req.TransactionID)
	if txnID == "" {
		return repositories.OrderConfirmResult{}, errors.New("order repository: transaction id is required")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return repositories.OrderConfirmResult{}, errors.New("order repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.OrderConfirmResult{}, err
	}
	orders := client.Collection(ordersCollection)
	txns := client.Collection(transactionsCollection)
	products := client.Collection(productsCollection)

	var result repositories.OrderConfirmResult
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = repositories.OrderConfirmResult{}

		// Read 1: an order for this txnid may already exist.
		dupIter := tx.Documents(orders.Where("transactionId", "==", txnID).Limit(1))
		defer dupIter.Stop()
		dupSnap, err := dupIter.Next()
		if err != nil && !errors.Is(err, iterator.Done) {
			return pfirestore.WrapError("orders.confirm", err)
		}
		if dupSnap != nil {
			existing, err := decodeOrderSnapshot(dupSnap)
			if err != nil {
				return pfirestore.WrapError("orders.confirm", err)
			}
			result = repositories.OrderConfirmResult{Order: existing, Created: false}
			return nil
		}

		// Read 2: the transaction being confirmed.
		txnSnap, err := tx.Get(txns.Doc(txnID))
		if err != nil {
			return pfirestore.WrapError("orders.confirm", err)
		}
		txn, err := decodeTransactionSnapshot(txnSnap)
		if err != nil {
			return pfirestore.WrapError("orders.confirm", err)
		}

		// Reads 3..n: current stock for every distinct product on the transaction.
		quantities := aggregateQuantities(txn.Items)
		type stockWrite struct {
			ref      *firestore.DocumentRef
			newStock int
		}
		var stockWrites []stockWrite
		var warnings []domain.StockWarning
		for _, pq := range quantities {
			ref := products.Doc(pq.productID)
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					warnings = append(warnings, domain.StockWarning{
						ProductID: pq.productID,
						Requested: pq.quantity,
						Available: 0,
					})
					continue
				}
				return pfirestore.WrapError("orders.confirm", err)
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return pfirestore.WrapError("orders.confirm", err)
			}
			if doc.Stock < pq.quantity {
				warnings = append(warnings, domain.StockWarning{
					ProductID: pq.productID,
					Requested: pq.quantity,
					Available: doc.Stock,
				})
				continue
			}
			stockWrites = append(stockWrites, stockWrite{ref: ref, newStock: doc.Stock - pq.quantity})
		}

		confirmedAt := req.ConfirmedAt
		if confirmedAt.IsZero() {
			confirmedAt = time.Now()
		}
		confirmedAt = confirmedAt.UTC()

		order := domain.Order{
			ID:              orderID,
			TransactionID:   txnID,
			UserID:          txn.UserID,
			Items:           txn.Items,
			Subtotal:        txn.Subtotal,
			Shipping:        txn.Shipping,
			Total:           txn.Total,
			CustomerEmail:   txn.CustomerEmail,
			CustomerName:    txn.CustomerName,
			Status:          domain.OrderStatusPending,
			PaymentStatus:   domain.PaymentStatusSuccess,
			PaymentID:       strings.TrimSpace(req.PaymentID),
			PaymentMode:     strings.TrimSpace(req.PaymentMode),
			ShippingAddress: txn.ShippingAddress,
			PhoneNumber:     txn.PhoneNumber,
			CreatedAt:       confirmedAt,
			UpdatedAt:       confirmedAt,
		}

		// Writes.
		if err := tx.Create(orders.Doc(orderID), encodeOrder(order)); err != nil {
			return pfirestore.WrapError("orders.confirm", err)
		}
		if err := tx.Update(txns.Doc(txnID), []firestore.Update{
			{Path: "status", Value: string(domain.TransactionStatusCompleted)},
			{Path: "paymentStatus", Value: string(domain.PaymentStatusSuccess)},
			{Path: "orderId", Value: orderID},
			{Path: "failureReason", Value: ""},
			{Path: "updatedAt", Value: confirmedAt},
		}); err != nil {
			return pfirestore.WrapError("orders.confirm", err)
		}
		for _, write := range stockWrites {
			if err := tx.Update(write.ref, []firestore.Update{
				{Path: "stock", Value: write.newStock},
				{Path: "inStock", Value: write.newStock > 0},
				{Path: "updatedAt", Value: confirmedAt},
			}); err != nil {
				return pfirestore.WrapError("orders.confirm", err)
			}
		}

		result = repositories.OrderConfirmResult{
			Order:         order,
			Created:       true,
			StockWarnings: warnings,
		}
		return nil
	})
	if err != nil {
		return repositories.OrderConfirmResult{}, err
	}
	return result, nil
}

type productQuantity struct {
	productID string
	quantity  int
}

// aggregateQuantities sums quantities per product while keeping first-seen order.
func aggregateQuantities(lines []domain.CartLine) []productQuantity {
	index := make(map[string]int, len(lines))
	out := make([]productQuantity, 0, len(lines))
	for _, line := range lines {
		pid := strings.TrimSpace(line.Product.ID)
		if pid == "" || line.Quantity <= 0 {
			continue
		}
		if i, ok := index[pid]; ok {
			out[i].quantity += line.Quantity
			continue
		}
		index[pid] = len(out)
		out = append(out, productQuantity{productID: pid, quantity: line.Quantity})
	}
	return out
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	return r.base.Get(ctx, orderID)
}

// FindByTransactionID fetches the order created for the given txnid, if any.
func (r *OrderRepository) FindByTransactionID(ctx context.Context, txnID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	txnID = strings.TrimSpace(txnID)
	if txnID == "" {
		return domain.Order{}, errors.New("order repository: transaction id is required")
	}

	orders, err := r.base.QueryAll(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("transactionId", "==", txnID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, pfirestore.WrapError("orders.find_by_transaction", status.Error(codes.NotFound, "order not found"))
	}
	return orders[0], nil
}

// List returns orders for the vendor dashboard, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOrderListLimit
	}

	return r.base.QueryAll(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		return q.OrderBy("createdAt", firestore.Desc).Limit(limit)
	})
}

// UpdateStatus moves the order through the fulfilment lifecycle.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	if err := r.base.Update(ctx, orderID, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}); err != nil {
		return domain.Order{}, err
	}
	return r.base.Get(ctx, orderID)
}
