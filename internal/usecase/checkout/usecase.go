package checkout

import (
	"context"
	"log"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
	publisher "github.com/billvault/checkout-service/internal/infrastructure/kafka"
	"github.com/billvault/checkout-service/internal/infrastructure/metrics"
	checkoutdto "github.com/billvault/checkout-service/internal/usecase/dto/checkout"
	"github.com/jaevor/go-nanoid"
)

type CheckoutUsecase interface {
	Submit(ctx context.Context, input *checkoutdto.SubmitIntentInput) (*checkoutdto.TransactionOutput, error)
	ConfirmFunding(ctx context.Context, transactionID, gatewayReference string) (*checkoutdto.TransactionOutput, error)

	GetStatus(transactionID string) (*checkoutdto.TransactionOutput, error)
	GetTransactionByID(transactionID string) (*domain.Transaction, error)
	ListTransactions(filter domain.TransactionFilter, page, limit int64) ([]*domain.Transaction, int64, error)
	GetEvents(transactionID string) ([]*domain.TransactionEvent, error)

	// Reconciliation entry points, invoked on claimed transactions only.
	ResolveFunding(ctx context.Context, tx *domain.Transaction) error
	ResolveFulfillment(ctx context.Context, tx *domain.Transaction) error
}

// LifecyclePublisher is the slice of the kafka publisher the usecase needs.
type LifecyclePublisher interface {
	PublishTransaction(event publisher.TransactionEvent) error
	PublishReconciliationAlert(alert publisher.ReconciliationAlert) error
}

type ReconcilerSettings struct {
	MinPollInterval time.Duration
	MaxPollInterval time.Duration
	MaxAttempts     int32
	StaleFundingAge time.Duration
}

type DefaultCheckoutUsecase struct {
	TransactionRepo domain.TransactionRepository
	Ledger          domain.Ledger
	Gateway         domain.PaymentGateway
	Provider        domain.FulfillmentProvider
	Policies        *domain.PolicyRegistry
	Publisher       LifecyclePublisher
	Metrics         *metrics.CheckoutMetrics
	Reconciler      ReconcilerSettings

	newEventID func() string
}

func NewDefaultCheckoutUsecase(
	transactionRepo domain.TransactionRepository,
	ledger domain.Ledger,
	gateway domain.PaymentGateway,
	provider domain.FulfillmentProvider,
	policies *domain.PolicyRegistry,
	lifecyclePublisher LifecyclePublisher,
	checkoutMetrics *metrics.CheckoutMetrics,
	reconciler ReconcilerSettings) *DefaultCheckoutUsecase {

	idGenerator, err := nanoid.Standard(15)
	if err != nil {
		log.Fatalf("failed to init event id generator: %v", err)
	}

	return &DefaultCheckoutUsecase{
		TransactionRepo: transactionRepo,
		Ledger:          ledger,
		Gateway:         gateway,
		Provider:        provider,
		Policies:        policies,
		Publisher:       lifecyclePublisher,
		Metrics:         checkoutMetrics,
		Reconciler:      reconciler,
		newEventID:      idGenerator,
	}
}
