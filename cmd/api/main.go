package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/freshpress/api/internal/domain"
	"github.com/freshpress/api/internal/handlers"
	"github.com/freshpress/api/internal/payments"
	"github.com/freshpress/api/internal/platform/auth"
	"github.com/freshpress/api/internal/platform/config"
	pfirestore "github.com/freshpress/api/internal/platform/firestore"
	"github.com/freshpress/api/internal/platform/jobs"
	"github.com/freshpress/api/internal/platform/mail"
	"github.com/freshpress/api/internal/platform/observability"
	"github.com/freshpress/api/internal/platform/secrets"
	firestoreRepo "github.com/freshpress/api/internal/repositories/firestore"
	"github.com/freshpress/api/internal/services"

	"github.com/oklog/ulid/v2"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(defaultSecretProject()),
		secrets.WithFallbackFile(".secrets.local"),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	transactionRepo, err := firestoreRepo.NewTransactionRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise transaction repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}

	gateway, err := payments.NewPayU(payments.PayUConfig{
		MerchantKey: cfg.PayU.MerchantKey,
		Salt:        cfg.PayU.Salt,
		BaseURL:     cfg.PayU.BaseURL,
		ProductInfo: cfg.PayU.ProductInfo,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment gateway", zap.Error(err))
	}

	var orderMailer services.OrderMailer
	if strings.TrimSpace(cfg.SMTP.Host) != "" {
		smtpMailer, err := mail.NewSMTPOrderMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			logger.Fatal("failed to initialise order mailer", zap.Error(err))
		}
		orderMailer = smtpMailer
	} else {
		logger.Info("confirmation email disabled; no smtp host configured")
	}

	var orderEvents services.EventPublisher
	if strings.TrimSpace(cfg.Events.ProjectID) != "" && strings.TrimSpace(cfg.Events.Topic) != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(cfg.Events.Topic)
		defer topic.Stop()
		publisher, err := jobs.NewPubSubOrderPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		orderEvents = publisher
	} else {
		logger.Info("order events disabled; no pubsub topic configured")
	}

	newID := func() string { return ulid.Make().String() }

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Transactions:          transactionRepo,
		Gateway:               gateway,
		ShippingFee:           domain.Cents(cfg.Checkout.ShippingFee),
		FreeShippingThreshold: domain.Cents(cfg.Checkout.FreeShippingThreshold),
		PublicBaseURL:         cfg.Checkout.PublicBaseURL,
		Clock:                 time.Now,
		IDGen:                 newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	reconciliationService, err := services.NewReconciliationService(services.ReconciliationServiceDeps{
		Transactions: transactionRepo,
		Orders:       orderRepo,
		Mailer:       orderMailer,
		Events:       orderEvents,
		Clock:        time.Now,
		IDGen:        newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise reconciliation service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders: orderRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: productRepo,
		Clock:    time.Now,
		IDGen:    newID,
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	cartService := services.NewCartService(services.CartServiceDeps{
		Clock: time.Now,
		IDGen: newID,
	})

	sweeper, err := services.NewExpirySweeper(services.ExpirySweeperDeps{
		Transactions: transactionRepo,
		TTL:          cfg.Checkout.PaymentExpiryTTL,
		Interval:     cfg.Checkout.PaymentSweepInterval,
		Logger:       logger.Named("sweeper"),
		Clock:        time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise expiry sweeper", zap.Error(err))
	}
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(sweepCtx)
	}()

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		})
		middlewares = append(middlewares, corsMiddleware.Handler)
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthVersion(buildVersion()),
		handlers.WithReadinessCheck("firestore", firestoreCheck(firestoreClient)),
	)

	paymentHandlers := handlers.NewPaymentHandlers(checkoutService, reconciliationService,
		handlers.WithPaymentFrontendBaseURL(cfg.Checkout.PublicBaseURL),
	)
	orderHandlers := handlers.NewOrderHandlers(orderService)
	productHandlers := handlers.NewProductHandlers(catalogService)
	cartHandlers := handlers.NewCartHandlers(cartService)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithPageRoutes(orderHandlers.PageRoutes),
		handlers.WithVendorRoutes(orderHandlers.VendorRoutes),
		handlers.WithVendorRoutes(productHandlers.VendorRoutes),
	}

	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
		}
		authenticator := auth.NewAuthenticator(verifier)
		opts = append(opts, handlers.WithVendorMiddlewares(
			authenticator.RequireFirebaseAuth(auth.RoleVendor, auth.RoleAdmin),
		))
	} else {
		logger.Warn("vendor authentication disabled; no firebase project configured")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("fresh press api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	stopSweeper()
	<-sweeperDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// defaultSecretProject picks the project secrets are fetched from before the
// full configuration, which may itself reference secrets, is loaded.
func defaultSecretProject() string {
	for _, key := range []string{"FP_FIRESTORE_PROJECT_ID", "FP_FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func traceProjectID(cfg config.Config) string {
	if v := strings.TrimSpace(cfg.Firestore.ProjectID); v != "" {
		return v
	}
	return strings.TrimSpace(cfg.Firebase.ProjectID)
}

func buildVersion() string {
	if v := strings.TrimSpace(os.Getenv("FP_BUILD_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func firestoreCheck(client *firestore.Client) handlers.ReadinessCheck {
	return func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		defer cancel()
		iter := client.Collections(probeCtx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
