package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
	checkoutdto "github.com/billvault/checkout-service/internal/usecase/dto/checkout"
	"github.com/google/uuid"
)

// Submit converts a purchase intent into a transaction and drives it as far
// as the external actors allow within the request. The transaction row is
// persisted before any external call, so a crash mid-request leaves a
// resumable FUNDING_PENDING row for the reconciler.
func (uc *DefaultCheckoutUsecase) Submit(ctx context.Context, input *checkoutdto.SubmitIntentInput) (*checkoutdto.TransactionOutput, error) {
	if input.AmountMinorUnits <= 0 {
		return nil, &domain.ValidationError{Field: "amountMinorUnits", Message: "amount must be positive"}
	}

	policy, ok := uc.Policies.Get(input.ServiceKind)
	if !ok {
		return nil, &domain.ValidationError{Field: "serviceKind", Message: "unknown service kind"}
	}
	if input.FundingMethod != domain.FundingWallet && input.FundingMethod != domain.FundingGateway {
		return nil, &domain.ValidationError{Field: "fundingMethod", Message: "unknown funding method"}
	}
	if err := policy.ValidateIntent(input.AmountMinorUnits, input.FundingMethod, input.Payload); err != nil {
		return nil, err
	}

	// Client retry de-duplication: a known token returns the original
	// transaction, whatever state it has reached since.
	if input.ClientToken != "" {
		existing, err := uc.TransactionRepo.GetTransactionByClientToken(input.UserID, input.ClientToken)
		if err == nil {
			return uc.outputFor(existing), nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, err
		}
	}

	now := time.Now()
	tx := &domain.Transaction{
		ID:               uuid.NewString(),
		UserID:           input.UserID,
		ServiceKind:      input.ServiceKind,
		FundingMethod:    input.FundingMethod,
		AmountMinorUnits: input.AmountMinorUnits,
		Payload:          input.Payload,
		ClientToken:      input.ClientToken,
		CallbackURL:      input.CallbackURL,
		State:            domain.StateCreated,
		NextPollAt:       now.Add(uc.Reconciler.MinPollInterval),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.TransactionRepo.CreateTransaction(tx); err != nil {
		// Two racing retries with the same token: the loser re-reads the
		// winner's row.
		if input.ClientToken != "" {
			if existing, lookupErr := uc.TransactionRepo.GetTransactionByClientToken(input.UserID, input.ClientToken); lookupErr == nil {
				return uc.outputFor(existing), nil
			}
		}
		return nil, err
	}
	uc.appendEvent(tx.ID, "", domain.StateCreated, domain.ActorOrchestrator, "intent accepted")
	uc.Metrics.RecordCreated(string(tx.ServiceKind), string(tx.FundingMethod))

	if err := uc.transition(tx, domain.StateFundingPending, domain.ActorOrchestrator, "funding initiated", domain.TransactionPatch{}); err != nil {
		return nil, err
	}

	switch tx.FundingMethod {
	case domain.FundingWallet:
		if err := uc.fundFromWallet(ctx, tx); err != nil {
			return nil, err
		}
		return uc.outputFor(tx), nil
	default:
		redirectURL, err := uc.initGatewayCharge(ctx, tx)
		if err != nil {
			return nil, err
		}
		out := uc.outputFor(tx)
		out.RedirectURL = redirectURL
		return out, nil
	}
}

func (uc *DefaultCheckoutUsecase) outputFor(tx *domain.Transaction) *checkoutdto.TransactionOutput {
	return checkoutdto.FromTransaction(tx)
}

// logTransient records an adapter error that leaves the transaction in its
// current state for the reconciler. Never surfaced to the client as failure.
func logTransient(tx *domain.Transaction, stage string, err error) {
	slog.Warn("transient error, leaving transaction for reconciler",
		"transaction_id", tx.ID, "state", string(tx.State), "stage", stage, "error", err.Error())
}
