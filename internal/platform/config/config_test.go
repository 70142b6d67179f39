package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"FP_FIREBASE_PROJECT_ID": "freshpress-test",
		"FP_PAYU_MERCHANT_KEY":   "merchant-key",
		"FP_PAYU_SALT":           "merchant-salt",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "freshpress-test" {
		t.Fatalf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "freshpress-test" {
		t.Fatalf("expected events project to default to firebase project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Checkout.ShippingFee != 599 {
		t.Fatalf("expected default shipping fee 599, got %d", cfg.Checkout.ShippingFee)
	}
	if cfg.Checkout.FreeShippingThreshold != 5000 {
		t.Fatalf("expected default free shipping threshold 5000, got %d", cfg.Checkout.FreeShippingThreshold)
	}
	if cfg.Checkout.PaymentExpiryTTL != 24*time.Hour {
		t.Fatalf("expected default payment expiry 24h, got %s", cfg.Checkout.PaymentExpiryTTL)
	}
	if cfg.Events.Topic != "order-events" {
		t.Fatalf("expected default order topic, got %s", cfg.Events.Topic)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["FP_SERVER_PORT"] = "9090"
	env["FP_CHECKOUT_SHIPPING_FEE_CENTS"] = "750"
	env["FP_CHECKOUT_PAYMENT_EXPIRY_TTL"] = "30m"
	env["FP_CORS_ALLOWED_ORIGINS"] = "https://freshpress.example, https://admin.freshpress.example"

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Checkout.ShippingFee != 750 {
		t.Fatalf("expected shipping fee override, got %d", cfg.Checkout.ShippingFee)
	}
	if cfg.Checkout.PaymentExpiryTTL != 30*time.Minute {
		t.Fatalf("expected expiry override, got %s", cfg.Checkout.PaymentExpiryTTL)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://admin.freshpress.example" {
		t.Fatalf("unexpected cors origins: %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	env := baseEnv()
	delete(env, "FP_PAYU_SALT")

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(validation.Error(), "PayU.Salt") {
		t.Fatalf("expected PayU.Salt in validation error, got %s", validation.Error())
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["FP_PAYU_SALT"] = "secret://projects/p/secrets/payu-salt/versions/latest"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://projects/p/secrets/payu-salt/versions/latest" {
			return "", errors.New("unexpected ref " + ref)
		}
		return "resolved-salt", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PayU.Salt != "resolved-salt" {
		t.Fatalf("expected resolved salt, got %s", cfg.PayU.Salt)
	}
}

func TestLoadSecretResolverFailure(t *testing.T) {
	env := baseEnv()
	env["FP_SMTP_HOST"] = "smtp.example.com"
	env["FP_SMTP_FROM"] = "orders@freshpress.example"
	env["FP_SMTP_PASSWORD"] = "sm://projects/p/secrets/smtp/versions/1"

	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("backend down")
	})

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if !strings.HasPrefix(secretErr.Ref, "secret://") {
		t.Fatalf("expected normalized secret ref, got %s", secretErr.Ref)
	}
}
