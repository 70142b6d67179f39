package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile               = ".env"
	defaultPort                  = "8080"
	defaultReadTimeout           = 15 * time.Second
	defaultWriteTimeout          = 30 * time.Second
	defaultIdleTimeout           = 120 * time.Second
	defaultShippingFee           = 599
	defaultFreeShippingThreshold = 5000
	defaultPaymentExpiryTTL      = 24 * time.Hour
	defaultPaymentSweepInterval  = time.Hour
	defaultSMTPPort              = 587
	defaultOrderTopic            = "order-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	PayU      PayUConfig
	Checkout  CheckoutConfig
	SMTP      SMTPConfig
	Events    EventsConfig
	CORS      CORSConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for vendor token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PayUConfig collects merchant credentials for the hosted checkout.
type PayUConfig struct {
	MerchantKey string
	Salt        string
	BaseURL     string
	ProductInfo string
}

// CheckoutConfig controls pricing and the pending payment window.
type CheckoutConfig struct {
	ShippingFee           int64
	FreeShippingThreshold int64
	PublicBaseURL         string
	PaymentExpiryTTL      time.Duration
	PaymentSweepInterval  time.Duration
}

// SMTPConfig carries confirmation email delivery settings. Delivery is
// disabled when Host is empty.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EventsConfig names the Pub/Sub topic order events are published to.
// Publishing is disabled when Topic is empty.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values
// in the map take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env
// overrides, environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "FP_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "FP_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "FP_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "FP_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "FP_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "FP_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FP_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FP_FIRESTORE_EMULATOR_HOST", ""),
		},
		PayU: PayUConfig{
			MerchantKey: stringWithDefault(lookup, "FP_PAYU_MERCHANT_KEY", ""),
			Salt:        stringWithDefault(lookup, "FP_PAYU_SALT", ""),
			BaseURL:     stringWithDefault(lookup, "FP_PAYU_BASE_URL", ""),
			ProductInfo: stringWithDefault(lookup, "FP_PAYU_PRODUCT_INFO", ""),
		},
		Checkout: CheckoutConfig{
			ShippingFee:           int64WithDefault(lookup, "FP_CHECKOUT_SHIPPING_FEE_CENTS", defaultShippingFee),
			FreeShippingThreshold: int64WithDefault(lookup, "FP_CHECKOUT_FREE_SHIPPING_CENTS", defaultFreeShippingThreshold),
			PublicBaseURL:         stringWithDefault(lookup, "FP_CHECKOUT_PUBLIC_BASE_URL", ""),
			PaymentExpiryTTL:      durationWithDefault(lookup, "FP_CHECKOUT_PAYMENT_EXPIRY_TTL", defaultPaymentExpiryTTL),
			PaymentSweepInterval:  durationWithDefault(lookup, "FP_CHECKOUT_PAYMENT_SWEEP_INTERVAL", defaultPaymentSweepInterval),
		},
		SMTP: SMTPConfig{
			Host:     stringWithDefault(lookup, "FP_SMTP_HOST", ""),
			Port:     intWithDefault(lookup, "FP_SMTP_PORT", defaultSMTPPort),
			Username: stringWithDefault(lookup, "FP_SMTP_USERNAME", ""),
			Password: stringWithDefault(lookup, "FP_SMTP_PASSWORD", ""),
			From:     stringWithDefault(lookup, "FP_SMTP_FROM", ""),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "FP_PUBSUB_PROJECT_ID", ""),
			Topic:     stringWithDefault(lookup, "FP_PUBSUB_ORDER_TOPIC", defaultOrderTopic),
		},
		CORS: CORSConfig{
			AllowedOrigins: csvWithDefault(lookup, "FP_CORS_ALLOWED_ORIGINS"),
		},
	}

	// Firestore and Pub/Sub projects default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"PayU.MerchantKey", &cfg.PayU.MerchantKey},
		{"PayU.Salt", &cfg.PayU.Salt},
		{"SMTP.Password", &cfg.SMTP.Password},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if strings.TrimSpace(cfg.PayU.MerchantKey) == "" {
		missing = append(missing, "PayU.MerchantKey")
	}
	if strings.TrimSpace(cfg.PayU.Salt) == "" {
		missing = append(missing, "PayU.Salt")
	}
	if cfg.Checkout.ShippingFee < 0 {
		missing = append(missing, "Checkout.ShippingFee")
	}
	if cfg.Checkout.FreeShippingThreshold < 0 {
		missing = append(missing, "Checkout.FreeShippingThreshold")
	}
	if cfg.Checkout.PaymentExpiryTTL <= 0 {
		missing = append(missing, "Checkout.PaymentExpiryTTL")
	}
	if cfg.Checkout.PaymentSweepInterval <= 0 {
		missing = append(missing, "Checkout.PaymentSweepInterval")
	}
	if cfg.SMTP.Host != "" && cfg.SMTP.From == "" {
		missing = append(missing, "SMTP.From")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
