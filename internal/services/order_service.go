package services

import (
	"context"
	"errors"
	"strings"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid order parameters.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates no order exists for the supplied ID.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderUnavailable indicates order persistence is currently unavailable.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// statusTransitions is the vendor fulfilment lifecycle. Orders are cancellable
// until they ship.
var statusTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusCompleted},
	domain.OrderStatusDelivered:  {domain.OrderStatusCompleted},
}

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
}

type orderService struct {
	orders repositories.OrderRepository
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	return &orderService{orders: deps.Orders}, nil
}

// GetOrder fetches a single order.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, ErrOrderUnavailable
	}
	return order, nil
}

// ListOrders returns orders for the vendor dashboard, optionally filtered by status.
func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) ([]domain.Order, error) {
	if s == nil || s.orders == nil {
		return nil, ErrOrderUnavailable
	}

	filter := repositories.OrderListFilter{Limit: query.Limit}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := parseOrderStatus(raw)
		if !ok {
			return nil, ErrOrderInvalidInput
		}
		filter.Status = status
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, ErrOrderUnavailable
	}
	return orders, nil
}

// UpdateStatus moves an order through the fulfilment lifecycle, rejecting
// transitions the lifecycle does not allow.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status string) (domain.Order, error) {
	if s == nil || s.orders == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	next, ok := parseOrderStatus(status)
	if !ok {
		return domain.Order{}, ErrOrderInvalidInput
	}

	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, ErrOrderUnavailable
	}

	if current.Status == next {
		return current, nil
	}
	if !transitionAllowed(current.Status, next) {
		return domain.Order{}, ErrOrderInvalidTransition
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, next)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, ErrOrderUnavailable
	}
	return updated, nil
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func parseOrderStatus(raw string) (domain.OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped,
		domain.OrderStatusDelivered, domain.OrderStatusCompleted, domain.OrderStatusCancelled:
		return status, true
	default:
		return "", false
	}
}
