package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/payments"
	"github.com/freshpress/api/internal/platform/requestctx"
	"github.com/freshpress/api/internal/repositories"
)

const txnIDPrefix = "TXN_"

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid checkout parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// paymentRequestBuilder abstracts payments.PayU for easier testing.
type paymentRequestBuilder interface {
	BuildRequest(params payments.RequestParams) payments.Request
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Transactions          repositories.TransactionRepository
	Gateway               paymentRequestBuilder
	ShippingFee           domain.Cents
	FreeShippingThreshold domain.Cents
	PublicBaseURL         string
	Clock                 func() time.Time
	IDGen                 func() string
}

type checkoutService struct {
	transactions          repositories.TransactionRepository
	gateway               paymentRequestBuilder
	shippingFee           domain.Cents
	freeShippingThreshold domain.Cents
	publicBaseURL         string
	now                   func() time.Time
	newID                 func() string
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Transactions == nil {
		return nil, errors.New("checkout service: transaction repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("checkout service: payment gateway is required")
	}
	if deps.ShippingFee < 0 || deps.FreeShippingThreshold < 0 {
		return nil, errors.New("checkout service: shipping configuration is invalid")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGen
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}

	return &checkoutService{
		transactions:          deps.Transactions,
		gateway:               deps.Gateway,
		shippingFee:           deps.ShippingFee,
		freeShippingThreshold: deps.FreeShippingThreshold,
		publicBaseURL:         strings.TrimRight(strings.TrimSpace(deps.PublicBaseURL), "/"),
		now: func() time.Time {
			return clock().UTC()
		},
		newID: newID,
	}, nil
}

// InitiatePayment prices the cart, durably records a pending transaction, and
// returns the signed gateway request. The transaction is persisted before the
// response so an abandoned redirect still leaves an auditable record.
func (s *checkoutService) InitiatePayment(ctx context.Context, cmd InitiatePaymentCommand) (InitiatePaymentResult, error) {
	if s == nil || s.transactions == nil || s.gateway == nil {
		return InitiatePaymentResult{}, ErrCheckoutUnavailable
	}

	email := strings.TrimSpace(cmd.Customer.Email)
	if email == "" {
		return InitiatePaymentResult{}, ErrCheckoutInvalidInput
	}
	if len(cmd.Items) == 0 {
		return InitiatePaymentResult{}, ErrCheckoutInvalidInput
	}
	for _, line := range cmd.Items {
		if strings.TrimSpace(line.Product.ID) == "" || line.Quantity <= 0 || line.Product.UnitCost < 0 {
			return InitiatePaymentResult{}, ErrCheckoutInvalidInput
		}
		for _, addon := range line.Addons {
			if addon.Price < 0 {
				return InitiatePaymentResult{}, ErrCheckoutInvalidInput
			}
		}
	}

	var subtotal domain.Cents
	for _, line := range cmd.Items {
		subtotal += line.Total()
	}
	shipping := s.shippingFee
	if subtotal >= s.freeShippingThreshold {
		shipping = 0
	}
	total := subtotal + shipping

	now := s.now()
	txnID := txnIDPrefix + s.newID()
	customerName := strings.TrimSpace(strings.TrimSpace(cmd.Customer.FirstName) + " " + strings.TrimSpace(cmd.Customer.LastName))

	txn := domain.Transaction{
		ID:              txnID,
		UserID:          strings.TrimSpace(cmd.UserID),
		Items:           cmd.Items,
		Subtotal:        subtotal,
		Shipping:        shipping,
		Total:           total,
		CustomerEmail:   email,
		CustomerName:    customerName,
		Status:          domain.TransactionStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		ShippingAddress: cmd.ShippingAddress,
		PhoneNumber:     strings.TrimSpace(cmd.Customer.Phone),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.transactions.Create(ctx, txn); err != nil {
		requestctx.Logger(ctx).Error("checkout: persist transaction failed",
			zap.String("txn_id", txnID),
			zap.Error(err),
		)
		return InitiatePaymentResult{}, ErrCheckoutUnavailable
	}

	request := s.gateway.BuildRequest(payments.RequestParams{
		TxnID:      txnID,
		Amount:     total.String(),
		FirstName:  strings.TrimSpace(cmd.Customer.FirstName),
		Email:      email,
		Phone:      strings.TrimSpace(cmd.Customer.Phone),
		SuccessURL: s.publicBaseURL + "/api/payment-success",
		FailureURL: s.publicBaseURL + "/api/payment-failure",
	})

	requestctx.Logger(ctx).Info("checkout: payment initiated",
		zap.String("txn_id", txnID),
		zap.String("amount", total.String()),
		zap.Int("items", len(cmd.Items)),
	)

	return InitiatePaymentResult{TransactionID: txnID, Payment: request}, nil
}
