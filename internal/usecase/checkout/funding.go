package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
	publisher "github.com/billvault/checkout-service/internal/infrastructure/kafka"
	checkoutdto "github.com/billvault/checkout-service/internal/usecase/dto/checkout"
)

// fundFromWallet drives the WALLET funding step. The debit is idempotent on
// the transaction id, so a transient failure simply leaves the transaction
// in FUNDING_PENDING for the reconciler to re-drive.
func (uc *DefaultCheckoutUsecase) fundFromWallet(ctx context.Context, tx *domain.Transaction) error {
	_, err := uc.Ledger.Debit(ctx, tx.UserID, tx.AmountMinorUnits, tx.ID)
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return uc.failTransaction(tx, domain.ActorOrchestrator, &domain.FailureReason{
			Code:    domain.ReasonInsufficientFunds,
			Message: "wallet balance below purchase amount",
		})
	}
	if err != nil {
		logTransient(tx, "wallet debit", err)
		return nil
	}

	if err := uc.transition(tx, domain.StateFundsSecured, domain.ActorOrchestrator, "wallet debit succeeded", domain.TransactionPatch{}); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return nil
		}
		return err
	}

	return uc.startFulfillment(ctx, tx, domain.ActorOrchestrator)
}

// initGatewayCharge opens a charge with the external gateway and stores the
// reference. The transaction stays FUNDING_PENDING until ConfirmFunding or
// the reconciler verifies the charge.
func (uc *DefaultCheckoutUsecase) initGatewayCharge(ctx context.Context, tx *domain.Transaction) (string, error) {
	chargeInit, err := uc.Gateway.Initialize(ctx, tx.ID, tx.AmountMinorUnits)
	if err != nil {
		// No reference was issued, so no charge can settle: a safe local
		// failure with no funds moved.
		if failErr := uc.failTransaction(tx, domain.ActorOrchestrator, &domain.FailureReason{
			Code:    domain.ReasonGatewayUnavailable,
			Message: "gateway charge initialization failed",
		}); failErr != nil {
			return "", failErr
		}
		return "", nil
	}

	reference := chargeInit.GatewayReference
	patch := domain.TransactionPatch{GatewayReference: &reference}
	if err := uc.TransactionRepo.UpdateFields(tx.ID, patch); err != nil {
		return "", err
	}
	applyPatch(tx, patch)

	return chargeInit.RedirectURL, nil
}

// ConfirmFunding verifies a gateway charge, invoked when the client returns
// from the gateway redirect or by the gateway's callback. Repeats after a
// verdict are no-ops returning the reached state.
func (uc *DefaultCheckoutUsecase) ConfirmFunding(ctx context.Context, transactionID, gatewayReference string) (*checkoutdto.TransactionOutput, error) {
	tx, err := uc.TransactionRepo.GetTransactionByID(transactionID)
	if err != nil {
		return nil, err
	}

	if tx.State != domain.StateFundingPending {
		return uc.outputFor(tx), nil
	}
	if tx.GatewayReference == "" || tx.GatewayReference != gatewayReference {
		return nil, &domain.ValidationError{Field: "gatewayReference", Message: "reference does not match this transaction"}
	}

	status, err := uc.Gateway.Verify(ctx, gatewayReference)
	if err != nil {
		// Ambiguous: stay FUNDING_PENDING, the reconciler verifies again.
		logTransient(tx, "gateway verify", err)
		return uc.outputFor(tx), nil
	}

	switch status {
	case domain.ChargeSuccess:
		if err := uc.transition(tx, domain.StateFundsSecured, domain.ActorOrchestrator, "gateway charge verified", domain.TransactionPatch{}); err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				// A concurrent worker won; report whatever it reached.
				uc.checkLateCharge(tx)
				current, fetchErr := uc.TransactionRepo.GetTransactionByID(transactionID)
				if fetchErr != nil {
					return nil, fetchErr
				}
				return uc.outputFor(current), nil
			}
			return nil, err
		}
		if err := uc.startFulfillment(ctx, tx, domain.ActorOrchestrator); err != nil {
			return nil, err
		}
		return uc.outputFor(tx), nil

	case domain.ChargeFailed:
		if err := uc.failTransaction(tx, domain.ActorOrchestrator, &domain.FailureReason{
			Code:    domain.ReasonPaymentDeclined,
			Message: "gateway reported the charge as failed",
		}); err != nil {
			return nil, err
		}
		return uc.outputFor(tx), nil

	default:
		return uc.outputFor(tx), nil
	}
}

// ResolveFunding re-drives a claimed CREATED or FUNDING_PENDING
// transaction from the reconciler.
func (uc *DefaultCheckoutUsecase) ResolveFunding(ctx context.Context, tx *domain.Transaction) error {
	if tx.State == domain.StateCreated {
		// Crash between persisting the row and the funding transition:
		// resume where the original request stopped.
		if err := uc.transition(tx, domain.StateFundingPending, domain.ActorReconciler, "funding initiated on reconcile", domain.TransactionPatch{}); err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				return nil
			}
			return err
		}
	}
	if tx.State != domain.StateFundingPending {
		return nil
	}

	if tx.FundingMethod == domain.FundingWallet {
		return uc.resolveWalletFunding(ctx, tx)
	}
	return uc.resolveGatewayFunding(ctx, tx)
}

func (uc *DefaultCheckoutUsecase) resolveWalletFunding(ctx context.Context, tx *domain.Transaction) error {
	_, err := uc.Ledger.Debit(ctx, tx.UserID, tx.AmountMinorUnits, tx.ID)
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return uc.failTransaction(tx, domain.ActorReconciler, &domain.FailureReason{
			Code:    domain.ReasonInsufficientFunds,
			Message: "wallet balance below purchase amount",
		})
	}
	if err != nil {
		return uc.bumpOrFailFunding(tx, "ledger unreachable while re-driving wallet debit")
	}

	if err := uc.transition(tx, domain.StateFundsSecured, domain.ActorReconciler, "wallet debit succeeded on reconcile", domain.TransactionPatch{}); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return nil
		}
		return err
	}
	return uc.startFulfillment(ctx, tx, domain.ActorReconciler)
}

func (uc *DefaultCheckoutUsecase) resolveGatewayFunding(ctx context.Context, tx *domain.Transaction) error {
	// A row without a reference means the crash happened between persisting
	// the transaction and initializing the charge: nothing external exists,
	// so initialize is retried with the same key until the staleness bound.
	if tx.GatewayReference == "" {
		if time.Since(tx.CreatedAt) > uc.Reconciler.StaleFundingAge {
			return uc.failTransaction(tx, domain.ActorReconciler, &domain.FailureReason{
				Code:    domain.ReasonStaleFunding,
				Message: "funding was never initialized",
			})
		}

		chargeInit, err := uc.Gateway.Initialize(ctx, tx.ID, tx.AmountMinorUnits)
		if err != nil {
			uc.Metrics.RecordPoll("initialize_error")
			return uc.bumpOrFailFunding(tx, "gateway charge could not be initialized")
		}

		reference := chargeInit.GatewayReference
		patch := domain.TransactionPatch{GatewayReference: &reference}
		if err := uc.TransactionRepo.UpdateFields(tx.ID, patch); err != nil {
			return err
		}
		applyPatch(tx, patch)
		return uc.bumpPoll(tx)
	}

	status, err := uc.Gateway.Verify(ctx, tx.GatewayReference)
	if err != nil {
		uc.Metrics.RecordPoll("verify_error")
		return uc.bumpOrFailFunding(tx, "gateway unreachable while verifying charge")
	}

	switch status {
	case domain.ChargeSuccess:
		uc.Metrics.RecordPoll("funding_secured")
		if err := uc.transition(tx, domain.StateFundsSecured, domain.ActorReconciler, "gateway charge verified on reconcile", domain.TransactionPatch{}); err != nil {
			if errors.Is(err, domain.ErrStateConflict) {
				uc.checkLateCharge(tx)
				return nil
			}
			return err
		}
		return uc.startFulfillment(ctx, tx, domain.ActorReconciler)

	case domain.ChargeFailed:
		uc.Metrics.RecordPoll("funding_declined")
		return uc.failTransaction(tx, domain.ActorReconciler, &domain.FailureReason{
			Code:    domain.ReasonPaymentDeclined,
			Message: "gateway reported the charge as failed",
		})

	default:
		uc.Metrics.RecordPoll("funding_still_pending")
		return uc.bumpOrFailFunding(tx, "gateway charge never confirmed")
	}
}

// bumpOrFailFunding increments the poll counter and either reschedules or,
// past the attempt ceiling, fails the transaction. Funds were never secured
// in any of these paths, so FAILED keeps the money with the user.
func (uc *DefaultCheckoutUsecase) bumpOrFailFunding(tx *domain.Transaction, ceilingMessage string) error {
	attempts := tx.Attempts + 1
	if attempts >= uc.Reconciler.MaxAttempts {
		return uc.failTransaction(tx, domain.ActorReconciler, &domain.FailureReason{
			Code:    domain.ReasonStaleFunding,
			Message: ceilingMessage,
		})
	}

	nextPollAt := uc.nextBackoff(attempts)
	patch := domain.TransactionPatch{Attempts: &attempts, NextPollAt: &nextPollAt}
	if err := uc.TransactionRepo.UpdateFields(tx.ID, patch); err != nil {
		return err
	}
	applyPatch(tx, patch)
	return nil
}

// bumpPoll reschedules without counting toward the ceiling.
func (uc *DefaultCheckoutUsecase) bumpPoll(tx *domain.Transaction) error {
	nextPollAt := uc.nextBackoff(tx.Attempts)
	patch := domain.TransactionPatch{NextPollAt: &nextPollAt}
	if err := uc.TransactionRepo.UpdateFields(tx.ID, patch); err != nil {
		return err
	}
	applyPatch(tx, patch)
	return nil
}

// checkLateCharge handles a gateway success that lost the race against a
// stale-funding failure. Terminal states never flip, so this raises an
// operational alert for manual compensation instead.
func (uc *DefaultCheckoutUsecase) checkLateCharge(tx *domain.Transaction) {
	current, err := uc.TransactionRepo.GetTransactionByID(tx.ID)
	if err != nil {
		slog.Error("failed to re-read transaction after funding conflict", "transaction_id", tx.ID, "error", err.Error())
		return
	}
	if current.State != domain.StateFailed {
		return
	}

	slog.Error("gateway charge succeeded after failure, manual reconciliation required",
		"transaction_id", tx.ID, "gateway_reference", tx.GatewayReference)
	uc.Metrics.RecordAlert()

	alert := publisher.ReconciliationAlert{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		AmountMinor:   tx.AmountMinorUnits,
		Detail:        "gateway reported success for a failed transaction",
	}
	go func() {
		if err := uc.Publisher.PublishReconciliationAlert(alert); err != nil {
			slog.Error("failed to publish reconciliation alert", "transaction_id", alert.TransactionID, "error", err.Error())
		}
	}()
}
