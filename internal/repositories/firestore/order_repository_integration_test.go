//go:build integration

package firestore

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/freshpress/api/internal/domain"
	pconfig "github.com/freshpress/api/internal/platform/config"
	pfirestore "github.com/freshpress/api/internal/platform/firestore"
	"github.com/freshpress/api/internal/repositories"
)

func TestOrderRepositoryConfirmIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "orders-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close()
	})

	transactions, err := NewTransactionRepository(provider)
	if err != nil {
		t.Fatalf("new transaction repository: %v", err)
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	seeded := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := products.Create(ctx, domain.Product{
		ID: "prod_mango", Title: "Mango Tango", CurrentCost: 599,
		InStock: true, Stock: 10, CreatedAt: seeded, UpdatedAt: seeded,
	}); err != nil {
		t.Fatalf("seed mango: %v", err)
	}
	if err := products.Create(ctx, domain.Product{
		ID: "prod_chia", Title: "Chia Boost", CurrentCost: 399,
		InStock: true, Stock: 1, CreatedAt: seeded, UpdatedAt: seeded,
	}); err != nil {
		t.Fatalf("seed chia: %v", err)
	}

	const txnID = "TXN_01JCONFIRM"
	if err := transactions.Create(ctx, domain.Transaction{
		ID: txnID,
		Items: []domain.CartLine{
			{Product: domain.ProductRef{ID: "prod_mango", Title: "Mango Tango", UnitCost: 599}, Quantity: 2},
			{Product: domain.ProductRef{ID: "prod_chia", Title: "Chia Boost", UnitCost: 399}, Quantity: 3},
		},
		Subtotal:      2395,
		Shipping:      599,
		Total:         2994,
		CustomerEmail: "priya@example.com",
		CustomerName:  "Priya Sharma",
		Status:        domain.TransactionStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     seeded,
		UpdatedAt:     seeded,
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}

	// Webhook and redirect race each other in production; every caller must
	// land on the same order and stock must move exactly once.
	const workers = 8
	results := make([]repositories.OrderConfirmResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = orders.Confirm(ctx, repositories.OrderConfirmRequest{
				TransactionID: txnID,
				OrderID:       fmt.Sprintf("ord_attempt%02d", idx),
				PaymentID:     "mih123",
				PaymentMode:   "UPI",
				ConfirmedAt:   seeded.Add(time.Minute),
			})
		}(i)
	}
	wg.Wait()

	created := 0
	var orderID string
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("confirm %d: %v", i, errs[i])
		}
		if results[i].Created {
			created++
		}
		if orderID == "" {
			orderID = results[i].Order.ID
		}
		if results[i].Order.ID != orderID {
			t.Fatalf("confirm %d returned order %q, want %q", i, results[i].Order.ID, orderID)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one creation, got %d", created)
	}

	order, err := orders.FindByTransactionID(ctx, txnID)
	if err != nil {
		t.Fatalf("find order by txnid: %v", err)
	}
	if order.ID != orderID || order.PaymentID != "mih123" || order.PaymentMode != "UPI" {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.PaymentStatus != domain.PaymentStatusSuccess {
		t.Fatalf("expected payment status success, got %s", order.PaymentStatus)
	}

	txn, err := transactions.FindByID(ctx, txnID)
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if txn.Status != domain.TransactionStatusCompleted || txn.OrderID != orderID {
		t.Fatalf("expected completed transaction linked to %s, got %+v", orderID, txn)
	}

	mango, err := products.FindByID(ctx, "prod_mango")
	if err != nil {
		t.Fatalf("find mango: %v", err)
	}
	if mango.Stock != 8 {
		t.Fatalf("expected mango stock 8, got %d", mango.Stock)
	}

	// Three ordered against one in stock: the decrement is skipped, the count
	// never goes negative, and the discrepancy surfaces as a warning.
	chia, err := products.FindByID(ctx, "prod_chia")
	if err != nil {
		t.Fatalf("find chia: %v", err)
	}
	if chia.Stock != 1 {
		t.Fatalf("expected chia stock untouched at 1, got %d", chia.Stock)
	}

	for i := 0; i < workers; i++ {
		if !results[i].Created {
			continue
		}
		if len(results[i].StockWarnings) != 1 {
			t.Fatalf("expected one stock warning, got %+v", results[i].StockWarnings)
		}
		warning := results[i].StockWarnings[0]
		if warning.ProductID != "prod_chia" || warning.Requested != 3 || warning.Available != 1 {
			t.Fatalf("unexpected stock warning %+v", warning)
		}
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
