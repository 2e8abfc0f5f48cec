package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billvault/checkout-service/internal/app/background"
	"github.com/billvault/checkout-service/internal/config"
	deliveryhttp "github.com/billvault/checkout-service/internal/delivery/http"
	"github.com/billvault/checkout-service/internal/domain"
	"github.com/billvault/checkout-service/internal/infrastructure/fulfillment"
	"github.com/billvault/checkout-service/internal/infrastructure/gateway"
	publisher "github.com/billvault/checkout-service/internal/infrastructure/kafka"
	"github.com/billvault/checkout-service/internal/infrastructure/ledger"
	"github.com/billvault/checkout-service/internal/infrastructure/logger"
	"github.com/billvault/checkout-service/internal/infrastructure/metrics"
	"github.com/billvault/checkout-service/internal/infrastructure/migrate"
	"github.com/billvault/checkout-service/internal/infrastructure/postgres"
	"github.com/billvault/checkout-service/internal/infrastructure/postgres/repository"
	"github.com/billvault/checkout-service/internal/usecase/checkout"
	"github.com/billvault/checkout-service/internal/usecase/reconciler"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()
	slog.SetDefault(logger.New(cfg.LogConfig))

	// Init database
	db := postgres.MustInitDB(cfg)
	if cfg.CheckoutDB.MigrationsPath != "" {
		if err := migrate.RunMigrations(db, cfg.CheckoutDB.MigrationsPath); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Init transaction repo
	transactionRepo := repository.NewDefaultTransactionRepository(db)

	// External actors
	ledgerClient := ledger.NewHTTPLedger(fmt.Sprintf("http://%s:%s", cfg.LedgerService.Host, cfg.LedgerService.Port))
	gatewayClient := gateway.NewHTTPGateway(cfg.PaymentGateway)
	providerClient := fulfillment.NewHTTPProvider(cfg.FulfillmentService)

	// Kafka lifecycle events
	brokers := []string{fmt.Sprintf("%s:%s", cfg.KafkaService.Host, cfg.KafkaService.Port)}
	kafkaPublisher := publisher.NewDefaultKafkaPublisher(brokers, cfg.KafkaService.Topic)

	checkoutMetrics := metrics.NewCheckoutMetrics()
	policies := domain.NewPolicyRegistry(policiesFromConfig(cfg)...)

	// Init checkout usecase
	uc := checkout.NewDefaultCheckoutUsecase(
		transactionRepo,
		ledgerClient,
		gatewayClient,
		providerClient,
		policies,
		kafkaPublisher,
		checkoutMetrics,
		checkout.ReconcilerSettings{
			MinPollInterval: cfg.Reconciler.MinPollInterval,
			MaxPollInterval: cfg.Reconciler.MaxPollInterval,
			MaxAttempts:     cfg.Reconciler.MaxAttempts,
			StaleFundingAge: cfg.Reconciler.StaleFundingAge,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reconciliation workers
	poller := reconciler.NewPoller(transactionRepo, uc, checkoutMetrics, cfg.Reconciler)
	tasks := background.NewBackgroundTasks(poller)
	tasks.StartAll(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler:           deliveryhttp.NewRouter(uc, cfg.HTTPServer.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("http server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func policiesFromConfig(cfg *config.CheckoutConfig) []domain.ServicePolicy {
	policies := make([]domain.ServicePolicy, 0, len(cfg.ServicePolicies))
	for _, p := range cfg.ServicePolicies {
		policies = append(policies, domain.ServicePolicy{
			Kind:                domain.ServiceKind(p.Kind),
			MinAmountMinorUnits: p.MinAmount,
			MaxAmountMinorUnits: p.MaxAmount,
			WalletOnly:          p.WalletOnly,
			RequiredFields:      p.RequiredFields,
		})
	}
	return policies
}
