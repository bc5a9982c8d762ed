package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/application/catalog"
	appcheckout "github.com/Zhima-Mochi/marketplace-checkout/internal/application/checkout"
	appinventory "github.com/Zhima-Mochi/marketplace-checkout/internal/application/inventory"
	appnotification "github.com/Zhima-Mochi/marketplace-checkout/internal/application/notification"
	apporder "github.com/Zhima-Mochi/marketplace-checkout/internal/application/order"
	apppayment "github.com/Zhima-Mochi/marketplace-checkout/internal/application/payment"
	appwebhook "github.com/Zhima-Mochi/marketplace-checkout/internal/application/webhook"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/config"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	dominventory "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/inventory"
	domnotification "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/id"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/moderation"
	infraobs "github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/paymentprovider"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/rabbitmq"
	infraredis "github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/infrastructure/token"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"
	httppresentation "github.com/Zhima-Mochi/marketplace-checkout/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/marketplace-checkout/internal/presentation/worker"

	"github.com/shopspring/decimal"
)

// productStore is what both repositories offer: catalog reads and writes
// plus the atomic stock decrement.
type productStore interface {
	domcatalog.Repository
	dominventory.Store
}

func main() {
	configDir := flag.String("config", getenvDefault("CHECKOUT_CONFIG_DIR", "configs"), "directory holding base.yaml")
	envName := flag.String("env", getenvDefault("CHECKOUT_ENV", ""), "environment overlay, e.g. dev or prod")
	flag.Parse()

	if err := run(*configDir, *envName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir, envName string) error {
	cfg, err := config.Load(configDir, envName)
	if err != nil {
		return err
	}

	logger, syncLogs, err := zaplogger.New(zaplogger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, observability.F("service", cfg.App.Name), observability.F("env", cfg.App.Env))
	if err != nil {
		return err
	}
	defer func() { _ = syncLogs() }()

	metrics, err := prometrics.New("")
	if err != nil {
		return err
	}
	oteltrace.InstallPropagator()
	tel := infraobs.New(oteltrace.New(cfg.App.Name), logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("shutdown_close_failed", observability.F("error", err.Error()))
			}
		}
	}()

	// Storage: Postgres when a DSN is configured, in-memory otherwise.
	var (
		products productStore
		orders   domorder.Repository
	)
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		closers = append(closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		products, orders = postgres.NewProductRepository(db), postgres.NewOrderRepository(db)
		logger.Info("storage_selected", observability.F("backend", "postgres"))
	} else {
		mem := memory.NewProductRepository()
		products, orders = mem, memory.NewOrderRepository()
		logger.Info("storage_selected", observability.F("backend", "memory"))
	}
	if cfg.App.SeedDemo {
		if err := seedCatalog(ctx, products, cfg.Payment.Currency); err != nil {
			return err
		}
	}

	var ledger dompayment.EventLedger = memory.NewEventLedger(cfg.Redis.TTL)
	if cfg.Redis.Addr != "" {
		rdb, err := infraredis.NewClient(ctx, infraredis.ClientOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		closers = append(closers, rdb.Close)
		ledger = infraredis.NewEventLedger(rdb, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
	}

	var mailer domnotification.Sender = memory.NewMailbox(logger)
	if cfg.RabbitMQ.URL != "" {
		conn, ch, err := rabbitmq.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		closers = append(closers, conn.Close)
		pub, err := rabbitmq.NewMailPublisher(ch, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			return err
		}
		mailer = pub
	}

	bus := outbox.NewBus(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		exporter := kafka.NewPublisher(kafka.WriterConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, cfg.App.Name)
		closers = append(closers, exporter.Close)
		workerpresentation.NewEventBridge(exporter, tel).Start(bus, outbox.AllEvents)
	}
	bus.Start(ctx)

	var provider dompayment.Provider
	if cfg.Payment.SecretKey != "" {
		provider = paymentprovider.NewClient(paymentprovider.Config{
			APIBase:   cfg.Payment.APIBase,
			SecretKey: cfg.Payment.SecretKey,
			Timeout:   cfg.Payment.Timeout,
		}, nil)
	} else {
		logger.Warn("payment_provider_disabled", observability.F("reason", "payment.secret_key not set"))
	}

	var classifier domcatalog.Classifier
	if cfg.Moderation.APIBase != "" && cfg.Moderation.APIKey != "" {
		classifier = moderation.New(moderation.Config{
			APIBase: cfg.Moderation.APIBase,
			APIKey:  cfg.Moderation.APIKey,
			Model:   cfg.Moderation.Model,
			Timeout: cfg.Moderation.Timeout,
		}, nil)
	}

	ids := id.NewUUIDGenerator()
	tokens := token.NewIssuer(cfg.Token.Secret, cfg.Token.Issuer, cfg.Token.TTL)
	links := appcheckout.Links{PublicURL: cfg.App.PublicURL, ThankYouPath: cfg.App.ThankYouPath}

	findProduct := appcatalog.NewFindActiveProductUseCase(products, tel)
	reviewProduct := appcatalog.NewReviewProductUseCase(products, classifier, ids, tel)
	createOrder := apporder.NewCreateOrderUseCase(orders, findProduct, ids, domorder.NewNumberGenerator(), bus, tel)
	getOrder := apporder.NewGetOrderUseCase(orders, tel)
	createSession := apppayment.NewCreateSessionUseCase(provider, orders, cfg.Payment.Timeout, tel)
	startCheckout := appcheckout.NewStartCheckoutUseCase(createOrder, createSession, tokens, links, tel)
	decrement := appinventory.NewDecrementUseCase(products, bus, tel)
	confirm := appnotification.NewSendConfirmationUseCase(mailer, cfg.App.InvoiceURL, tel)
	reconcile := appwebhook.NewReconcileUseCase(
		paymentprovider.NewVerifier(cfg.Payment.SignatureTolerance, cfg.Payment.WebhookSecret),
		ledger, orders, decrement, confirm, bus, tel,
	)

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Checkout:     startCheckout,
		Orders:       createOrder,
		OrderView:    getOrder,
		Webhooks:     reconcile,
		Products:     reviewProduct,
		Tokens:       tokens,
		Links:        links,
		AdminToken:   cfg.App.AdminToken,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Metrics:      metrics.Handler(),
	}, tel)

	server := &http.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}

	timeout := cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
	bus.Stop(shutdownCtx)
	return nil
}

// seedCatalog stores a demo product unless it already exists.
func seedCatalog(ctx context.Context, products domcatalog.Repository, currency string) error {
	const slug = "lamp"
	if _, err := products.FindBySlug(ctx, slug); err == nil {
		return nil
	} else if !errors.Is(err, domcatalog.ErrNotFound) {
		return err
	}
	return products.Save(ctx, &domcatalog.Product{
		ID:          id.NewUUIDGenerator().NewID(),
		Slug:        slug,
		Name:        "Brass Desk Lamp",
		Description: "Hand finished brass desk lamp.",
		Price:       decimal.RequireFromString("129.00"),
		Currency:    currency,
		Inventory:   10,
		Status:      domcatalog.StatusActive,
		Validation:  domcatalog.ManualOverride(domcatalog.ValidationChecked),
		UpdatedAt:   time.Now().UTC(),
	})
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
