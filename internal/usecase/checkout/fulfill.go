package checkout

import (
	"context"
	"errors"
	"log/slog"

	"github.com/billvault/checkout-service/internal/domain"
	publisher "github.com/billvault/checkout-service/internal/infrastructure/kafka"
)

// startFulfillment submits the purchase to the provider once funds are
// secured. The transaction id is the idempotency key, so the submit can be
// repeated by the reconciler without delivering twice.
func (uc *DefaultCheckoutUsecase) startFulfillment(ctx context.Context, tx *domain.Transaction, actor string) error {
	if err := uc.transition(tx, domain.StateFulfilling, actor, "fulfillment request submitted", domain.TransactionPatch{}); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return nil
		}
		return err
	}

	result, err := uc.Provider.Submit(ctx, tx.ID, tx.ServiceKind, tx.Payload, tx.AmountMinorUnits)
	if err != nil {
		// Stays FULFILLING: the reconciler re-submits with the same key.
		logTransient(tx, "fulfillment submit", err)
		return nil
	}

	return uc.applyFulfillmentResult(ctx, tx, result, actor)
}

func (uc *DefaultCheckoutUsecase) applyFulfillmentResult(ctx context.Context, tx *domain.Transaction, result *domain.FulfillmentResult, actor string) error {
	switch result.Status {
	case domain.FulfillmentSuccess:
		return uc.settle(tx, result, actor)

	case domain.FulfillmentFailed:
		return uc.refundTransaction(ctx, tx, actor, &domain.FailureReason{
			Code:    domain.ReasonProviderRejected,
			Message: "provider rejected the purchase",
		})

	default:
		requestID := result.ProviderRequestID
		nextPollAt := uc.nextBackoff(tx.Attempts)
		err := uc.transition(tx, domain.StateProviderPending, actor, "provider accepted, awaiting terminal result", domain.TransactionPatch{
			ProviderRequestID: &requestID,
			NextPollAt:        &nextPollAt,
		})
		if errors.Is(err, domain.ErrStateConflict) {
			return nil
		}
		return err
	}
}

// ResolveFulfillment advances a claimed FULFILLING or PROVIDER_PENDING
// transaction from the reconciler.
func (uc *DefaultCheckoutUsecase) ResolveFulfillment(ctx context.Context, tx *domain.Transaction) error {
	switch tx.State {
	case domain.StateFulfilling:
		// Crash or network loss mid-submit: re-submit with the same key to
		// learn what, if anything, the provider recorded.
		result, err := uc.Provider.Submit(ctx, tx.ID, tx.ServiceKind, tx.Payload, tx.AmountMinorUnits)
		if err != nil {
			uc.Metrics.RecordPoll("submit_error")
			return uc.bumpOrTimeoutFulfillment(ctx, tx)
		}
		return uc.applyFulfillmentResult(ctx, tx, result, domain.ActorReconciler)

	case domain.StateProviderPending:
		result, err := uc.Provider.QueryStatus(ctx, tx.ProviderRequestID)
		if err != nil {
			uc.Metrics.RecordPoll("query_error")
			return uc.bumpOrTimeoutFulfillment(ctx, tx)
		}

		switch result.Status {
		case domain.FulfillmentSuccess:
			uc.Metrics.RecordPoll("settled")
			return uc.settle(tx, result, domain.ActorReconciler)
		case domain.FulfillmentFailed:
			uc.Metrics.RecordPoll("provider_rejected")
			return uc.refundTransaction(ctx, tx, domain.ActorReconciler, &domain.FailureReason{
				Code:    domain.ReasonProviderRejected,
				Message: "provider reported the purchase as failed",
			})
		default:
			uc.Metrics.RecordPoll("still_pending")
			return uc.bumpOrTimeoutFulfillment(ctx, tx)
		}
	}

	return nil
}

// bumpOrTimeoutFulfillment counts the poll and either reschedules with
// backoff or, past the ceiling, refunds. Refund-on-timeout is a policy
// choice: the user gets their money back instead of a transaction stuck
// forever; a provider success arriving later raises an alert, never a
// state change.
func (uc *DefaultCheckoutUsecase) bumpOrTimeoutFulfillment(ctx context.Context, tx *domain.Transaction) error {
	attempts := tx.Attempts + 1
	if attempts >= uc.Reconciler.MaxAttempts {
		patch := domain.TransactionPatch{Attempts: &attempts}
		if err := uc.TransactionRepo.UpdateFields(tx.ID, patch); err != nil {
			return err
		}
		applyPatch(tx, patch)
		return uc.refundTransaction(ctx, tx, domain.ActorReconciler, &domain.FailureReason{
			Code:    domain.ReasonProviderTimeout,
			Message: "provider did not report a terminal result within the attempt ceiling",
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

func (uc *DefaultCheckoutUsecase) settle(tx *domain.Transaction, result *domain.FulfillmentResult, actor string) error {
	patch := domain.TransactionPatch{}
	if result.DeliveredArtifact != "" {
		artifact := result.DeliveredArtifact
		patch.DeliveredArtifact = &artifact
	}

	if err := uc.transition(tx, domain.StateSettled, actor, "provider reported success", patch); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			uc.checkLateSuccess(tx)
			return nil
		}
		return err
	}

	uc.Metrics.RecordSettled(string(tx.ServiceKind), string(tx.FundingMethod), tx.AmountMinorUnits, uc.terminalSeconds(tx))
	uc.notifyTerminal(tx)
	return nil
}

func (uc *DefaultCheckoutUsecase) refundTransaction(ctx context.Context, tx *domain.Transaction, actor string, reason *domain.FailureReason) error {
	// Compensating credit first: REFUNDED is only reached once the money
	// is back. A transient credit failure leaves the transaction where it
	// is for the next poll.
	if _, err := uc.Ledger.Credit(ctx, tx.UserID, tx.AmountMinorUnits, tx.RefundIdempotencyKey()); err != nil {
		logTransient(tx, "compensating credit", err)
		return nil
	}

	if err := uc.transition(tx, domain.StateRefunded, actor, reason.Message, domain.TransactionPatch{FailureReason: reason}); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return nil
		}
		return err
	}

	uc.Metrics.RecordRefunded(string(tx.ServiceKind), reason.Code, tx.AmountMinorUnits, uc.terminalSeconds(tx))
	uc.notifyTerminal(tx)
	return nil
}

// failTransaction moves a transaction to FAILED. Only legal while no funds
// were secured, which the state machine enforces.
func (uc *DefaultCheckoutUsecase) failTransaction(tx *domain.Transaction, actor string, reason *domain.FailureReason) error {
	if err := uc.transition(tx, domain.StateFailed, actor, reason.Message, domain.TransactionPatch{FailureReason: reason}); err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			return nil
		}
		return err
	}

	uc.Metrics.RecordFailed(string(tx.ServiceKind), reason.Code)
	uc.notifyTerminal(tx)
	return nil
}

// checkLateSuccess handles a provider success that lost the race against a
// refund. Terminal states never flip, so this raises an operational alert
// for manual compensation instead.
func (uc *DefaultCheckoutUsecase) checkLateSuccess(tx *domain.Transaction) {
	current, err := uc.TransactionRepo.GetTransactionByID(tx.ID)
	if err != nil {
		slog.Error("failed to re-read transaction after settle conflict", "transaction_id", tx.ID, "error", err.Error())
		return
	}
	if current.State != domain.StateRefunded {
		return
	}

	slog.Error("provider delivered after refund, manual reconciliation required",
		"transaction_id", tx.ID, "provider_request_id", tx.ProviderRequestID)
	uc.Metrics.RecordAlert()

	alert := publisher.ReconciliationAlert{
		TransactionID:     tx.ID,
		UserID:            tx.UserID,
		ProviderRequestID: tx.ProviderRequestID,
		AmountMinor:       tx.AmountMinorUnits,
		Detail:            "provider reported success for a refunded transaction",
	}
	go func() {
		if err := uc.Publisher.PublishReconciliationAlert(alert); err != nil {
			slog.Error("failed to publish reconciliation alert", "transaction_id", alert.TransactionID, "error", err.Error())
		}
	}()
}
