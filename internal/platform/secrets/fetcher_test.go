package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretClient struct {
	responses map[string]string
	err       error
	calls     int
}

func (s *stubSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	value, ok := s.responses[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (s *stubSecretClient) Close() error { return nil }

func TestResolveFetchesAndCaches(t *testing.T) {
	client := &stubSecretClient{responses: map[string]string{
		"projects/freshpress-test/secrets/payu-salt/versions/latest": "salty",
	}}
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithDefaultProject("freshpress-test"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	for i := 0; i < 3; i++ {
		value, err := fetcher.Resolve(context.Background(), "secret://payu-salt")
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if value != "salty" {
			t.Fatalf("expected salty, got %s", value)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected one backend call, got %d", client.calls)
	}
}

func TestResolveFullResourcePath(t *testing.T) {
	client := &stubSecretClient{responses: map[string]string{
		"projects/other/secrets/smtp/versions/3": "hunter2",
	}}
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://projects/other/secrets/smtp/versions/3")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "hunter2" {
		t.Fatalf("expected hunter2, got %s", value)
	}
}

func TestResolveFallsBackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, ".secrets.local")
	contents := "# local secrets\nsecret://payu-salt=local-salt\n"
	if err := os.WriteFile(fallback, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	client := &stubSecretClient{err: status.Error(codes.PermissionDenied, "denied")}
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithDefaultProject("freshpress-test"),
		WithFallbackFile(fallback),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://payu-salt")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "local-salt" {
		t.Fatalf("expected local-salt, got %s", value)
	}
}

func TestResolveRejectsUnknownScheme(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(&stubSecretClient{}),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}

	_, err = fetcher.Resolve(context.Background(), "vault://payu-salt")
	if err == nil || !strings.Contains(err.Error(), "unsupported scheme") {
		t.Fatalf("expected unsupported scheme error, got %v", err)
	}
}
