package checkout

import (
	"log/slog"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
	publisher "github.com/billvault/checkout-service/internal/infrastructure/kafka"
	"github.com/billvault/checkout-service/internal/infrastructure/notifier"
)

// transition moves tx to a new state through the conditional repository
// write, keeps the in-memory entity in sync and appends the audit event.
// ErrStateConflict means another worker already moved the row.
func (uc *DefaultCheckoutUsecase) transition(tx *domain.Transaction, to domain.TransactionState, actor, reason string, patch domain.TransactionPatch) error {
	if !domain.CanTransition(tx.State, to) {
		return domain.ErrStateConflict
	}

	from := tx.State
	if err := uc.TransactionRepo.TransitionState(tx.ID, from, to, patch); err != nil {
		return err
	}

	tx.State = to
	tx.UpdatedAt = time.Now()
	if to.Terminal() {
		now := time.Now()
		tx.TerminalAt = &now
	}
	applyPatch(tx, patch)

	uc.appendEvent(tx.ID, from, to, actor, reason)
	return nil
}

func applyPatch(tx *domain.Transaction, patch domain.TransactionPatch) {
	if patch.GatewayReference != nil {
		tx.GatewayReference = *patch.GatewayReference
	}
	if patch.ProviderRequestID != nil {
		tx.ProviderRequestID = *patch.ProviderRequestID
	}
	if patch.DeliveredArtifact != nil {
		tx.DeliveredArtifact = *patch.DeliveredArtifact
	}
	if patch.FailureReason != nil {
		tx.FailureReason = patch.FailureReason
	}
	if patch.Attempts != nil {
		tx.Attempts = *patch.Attempts
	}
	if patch.NextPollAt != nil {
		tx.NextPollAt = *patch.NextPollAt
	}
}

func (uc *DefaultCheckoutUsecase) appendEvent(transactionID string, from, to domain.TransactionState, actor, reason string) {
	event := &domain.TransactionEvent{
		ID:            uc.newEventID(),
		TransactionID: transactionID,
		FromState:     from,
		ToState:       to,
		Actor:         actor,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}
	if err := uc.TransactionRepo.AppendEvent(event); err != nil {
		slog.Error("failed to append transaction event",
			"transaction_id", transactionID, "to_state", string(to), "error", err.Error())
	}
}

// notifyTerminal publishes the lifecycle event and fires the merchant
// callback. Both are non-critical: the transaction is already terminal.
func (uc *DefaultCheckoutUsecase) notifyTerminal(tx *domain.Transaction) {
	event := publisher.TransactionEvent{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		ServiceKind:   string(tx.ServiceKind),
		State:         string(tx.State),
		AmountMinor:   tx.AmountMinorUnits,
	}
	if tx.FailureReason != nil {
		event.FailureCode = tx.FailureReason.Code
	}

	go func(event publisher.TransactionEvent) {
		if err := uc.Publisher.PublishTransaction(event); err != nil {
			slog.Error("failed to publish transaction event",
				"transaction_id", event.TransactionID, "state", event.State, "error", err.Error())
		}
	}(event)

	if tx.CallbackURL != "" {
		payload := notifier.CallbackPayload{
			TransactionID:     tx.ID,
			State:             string(tx.State),
			DeliveredArtifact: tx.DeliveredArtifact,
		}
		if tx.FailureReason != nil {
			payload.FailureCode = tx.FailureReason.Code
		}
		notifier.SendCallback(tx.CallbackURL, payload)
	}
}

// nextBackoff doubles the poll interval per attempt, capped at the
// configured maximum.
func (uc *DefaultCheckoutUsecase) nextBackoff(attempts int32) time.Time {
	interval := uc.Reconciler.MinPollInterval
	for i := int32(0); i < attempts; i++ {
		interval *= 2
		if interval >= uc.Reconciler.MaxPollInterval {
			interval = uc.Reconciler.MaxPollInterval
			break
		}
	}
	return time.Now().Add(interval)
}

func (uc *DefaultCheckoutUsecase) terminalSeconds(tx *domain.Transaction) float64 {
	if tx.TerminalAt == nil {
		return 0
	}
	return tx.TerminalAt.Sub(tx.CreatedAt).Seconds()
}
