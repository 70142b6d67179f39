package services

import (
	"context"
	"errors"
	"testing"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/repositories"
)

func newTestOrderService(t *testing.T, orders *stubOrderRepo) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{Orders: orders})
	if err != nil {
		t.Fatalf("NewOrderService returned error: %v", err)
	}
	return svc
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newTestOrderService(t, &stubOrderRepo{})
	if _, err := svc.GetOrder(context.Background(), "ord_missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	svc := newTestOrderService(t, &stubOrderRepo{})
	if _, err := svc.ListOrders(context.Background(), OrderListQuery{Status: "teleported"}); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestListOrdersPassesStatusFilter(t *testing.T) {
	var gotFilter repositories.OrderListFilter
	orders := &stubOrderRepo{
		listFn: func(filter repositories.OrderListFilter) ([]domain.Order, error) {
			gotFilter = filter
			return []domain.Order{{ID: "ord_1"}}, nil
		},
	}
	svc := newTestOrderService(t, orders)

	result, err := svc.ListOrders(context.Background(), OrderListQuery{Status: "Shipped", Limit: 10})
	if err != nil {
		t.Fatalf("ListOrders returned error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected one order, got %d", len(result))
	}
	if gotFilter.Status != domain.OrderStatusShipped || gotFilter.Limit != 10 {
		t.Fatalf("unexpected filter %+v", gotFilter)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		current domain.OrderStatus
		next    string
		allowed bool
	}{
		{"pending to processing", domain.OrderStatusPending, "processing", true},
		{"pending to cancelled", domain.OrderStatusPending, "cancelled", true},
		{"pending to delivered", domain.OrderStatusPending, "delivered", false},
		{"processing to shipped", domain.OrderStatusProcessing, "shipped", true},
		{"shipped to cancelled", domain.OrderStatusShipped, "cancelled", false},
		{"shipped to delivered", domain.OrderStatusShipped, "delivered", true},
		{"delivered to completed", domain.OrderStatusDelivered, "completed", true},
		{"completed is terminal", domain.OrderStatusCompleted, "processing", false},
		{"cancelled is terminal", domain.OrderStatusCancelled, "processing", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderRepo{
				findFn: func(orderID string) (domain.Order, error) {
					return domain.Order{ID: orderID, Status: tc.current}, nil
				},
				updateFn: func(orderID string, status domain.OrderStatus) (domain.Order, error) {
					return domain.Order{ID: orderID, Status: status}, nil
				},
			}
			svc := newTestOrderService(t, orders)

			updated, err := svc.UpdateStatus(context.Background(), "ord_1", tc.next)
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected transition to succeed, got %v", err)
				}
				if string(updated.Status) != tc.next {
					t.Fatalf("expected status %s, got %s", tc.next, updated.Status)
				}
				return
			}
			if !errors.Is(err, ErrOrderInvalidTransition) {
				t.Fatalf("expected ErrOrderInvalidTransition, got %v", err)
			}
		})
	}
}

func TestUpdateStatusSameStatusIsNoop(t *testing.T) {
	updateCalled := false
	orders := &stubOrderRepo{
		findFn: func(orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusProcessing}, nil
		},
		updateFn: func(orderID string, status domain.OrderStatus) (domain.Order, error) {
			updateCalled = true
			return domain.Order{ID: orderID, Status: status}, nil
		},
	}
	svc := newTestOrderService(t, orders)

	order, err := svc.UpdateStatus(context.Background(), "ord_1", "processing")
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if order.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if updateCalled {
		t.Fatal("expected no write for a no-op status update")
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestOrderService(t, &stubOrderRepo{})
	if _, err := svc.UpdateStatus(context.Background(), "ord_1", "warp_speed"); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}
