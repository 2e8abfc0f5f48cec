package mappers

import (
	"encoding/json"

	"github.com/billvault/checkout-service/internal/domain"
	"github.com/billvault/checkout-service/internal/infrastructure/postgres/models"
)

func ToGORMTransaction(tx *domain.Transaction) *models.TransactionModel {
	payloadJSON := "{}"
	if len(tx.Payload) > 0 {
		if b, err := json.Marshal(tx.Payload); err == nil {
			payloadJSON = string(b)
		}
	}

	model := &models.TransactionModel{
		ID:                tx.ID,
		UserID:            tx.UserID,
		ServiceKind:       string(tx.ServiceKind),
		FundingMethod:     string(tx.FundingMethod),
		AmountMinorUnits:  tx.AmountMinorUnits,
		PayloadJSON:       payloadJSON,
		CallbackURL:       tx.CallbackURL,
		GatewayReference:  tx.GatewayReference,
		ProviderRequestID: tx.ProviderRequestID,
		DeliveredArtifact: tx.DeliveredArtifact,
		State:             string(tx.State),
		Attempts:          tx.Attempts,
		NextPollAt:        tx.NextPollAt,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
		TerminalAt:        tx.TerminalAt,
	}

	// The pair is nullable so that transactions without a client token never
	// collide on the unique index.
	if tx.ClientToken != "" {
		token := tx.ClientToken
		userID := tx.UserID
		model.ClientToken = &token
		model.ClientTokenUserID = &userID
	}

	if tx.FailureReason != nil {
		model.FailureCode = tx.FailureReason.Code
		model.FailureMessage = tx.FailureReason.Message
	}

	return model
}

func ToDomainTransaction(model *models.TransactionModel) *domain.Transaction {
	payload := map[string]string{}
	_ = json.Unmarshal([]byte(model.PayloadJSON), &payload)

	tx := &domain.Transaction{
		ID:                model.ID,
		UserID:            model.UserID,
		ServiceKind:       domain.ServiceKind(model.ServiceKind),
		FundingMethod:     domain.FundingMethod(model.FundingMethod),
		AmountMinorUnits:  model.AmountMinorUnits,
		Payload:           payload,
		CallbackURL:       model.CallbackURL,
		GatewayReference:  model.GatewayReference,
		ProviderRequestID: model.ProviderRequestID,
		DeliveredArtifact: model.DeliveredArtifact,
		State:             domain.TransactionState(model.State),
		Attempts:          model.Attempts,
		NextPollAt:        model.NextPollAt,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
		TerminalAt:        model.TerminalAt,
	}

	if model.ClientToken != nil {
		tx.ClientToken = *model.ClientToken
	}

	if model.FailureCode != "" {
		tx.FailureReason = &domain.FailureReason{
			Code:    model.FailureCode,
			Message: model.FailureMessage,
		}
	}

	return tx
}

func ToGORMTransactionEvent(event *domain.TransactionEvent) *models.TransactionEventModel {
	return &models.TransactionEventModel{
		ID:            event.ID,
		TransactionID: event.TransactionID,
		FromState:     string(event.FromState),
		ToState:       string(event.ToState),
		Actor:         event.Actor,
		Reason:        event.Reason,
		CreatedAt:     event.CreatedAt,
	}
}

func ToDomainTransactionEvent(model *models.TransactionEventModel) *domain.TransactionEvent {
	return &domain.TransactionEvent{
		ID:            model.ID,
		TransactionID: model.TransactionID,
		FromState:     domain.TransactionState(model.FromState),
		ToState:       domain.TransactionState(model.ToState),
		Actor:         model.Actor,
		Reason:        model.Reason,
		CreatedAt:     model.CreatedAt,
	}
}
