package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/billvault/checkout-service/internal/config"
	"github.com/billvault/checkout-service/internal/domain"
	"github.com/billvault/checkout-service/internal/infrastructure/metrics"
)

// Resolver is the slice of the checkout usecase the poller drives.
type Resolver interface {
	ResolveFunding(ctx context.Context, tx *domain.Transaction) error
	ResolveFulfillment(ctx context.Context, tx *domain.Transaction) error
}

// Poller sweeps non-terminal transactions toward a terminal state. Safe to
// run from multiple processes: each sweep claims its batch through a lease,
// so no two workers act on the same transaction at once.
type Poller struct {
	TransactionRepo domain.TransactionRepository
	Resolver        Resolver
	Metrics         *metrics.CheckoutMetrics

	SweepInterval time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
}

func NewPoller(transactionRepo domain.TransactionRepository, resolver Resolver, checkoutMetrics *metrics.CheckoutMetrics, cfg config.Reconciler) *Poller {
	return &Poller{
		TransactionRepo: transactionRepo,
		Resolver:        resolver,
		Metrics:         checkoutMetrics,
		SweepInterval:   cfg.SweepInterval,
		LeaseTTL:        cfg.LeaseTTL,
		BatchSize:       cfg.BatchSize,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Sweep(ctx); err != nil {
				slog.Error("reconciliation sweep failed", "error", err.Error())
			}
		}
	}
}

func (p *Poller) Sweep(ctx context.Context) error {
	claimed, err := p.TransactionRepo.ClaimPollable(time.Now(), p.LeaseTTL, p.BatchSize)
	if err != nil {
		return err
	}
	p.Metrics.ReconcilerClaimedGauge.Set(float64(len(claimed)))

	for _, tx := range claimed {
		if err := p.resolve(ctx, tx); err != nil {
			slog.Error("failed to resolve transaction",
				"transaction_id", tx.ID, "state", string(tx.State), "error", err.Error())
		}
	}
	return nil
}

func (p *Poller) resolve(ctx context.Context, tx *domain.Transaction) error {
	switch tx.State {
	case domain.StateCreated, domain.StateFundingPending:
		return p.Resolver.ResolveFunding(ctx, tx)
	case domain.StateFulfilling, domain.StateProviderPending:
		return p.Resolver.ResolveFulfillment(ctx, tx)
	}
	return nil
}
