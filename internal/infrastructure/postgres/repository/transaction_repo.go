package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
	"github.com/billvault/checkout-service/internal/infrastructure/postgres/mappers"
	"github.com/billvault/checkout-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

// CREATED is pollable too: a crash between persisting the row and the
// funding transition must leave something the reconciler can pick up.
var pollableStates = []string{
	string(domain.StateCreated),
	string(domain.StateFundingPending),
	string(domain.StateFulfilling),
	string(domain.StateProviderPending),
}

type DefaultTransactionRepository struct {
	DB *gorm.DB
}

func NewDefaultTransactionRepository(db *gorm.DB) *DefaultTransactionRepository {
	return &DefaultTransactionRepository{DB: db}
}

func (r *DefaultTransactionRepository) CreateTransaction(tx *domain.Transaction) error {
	model := mappers.ToGORMTransaction(tx)
	if err := r.DB.Create(model).Error; err != nil {
		return err
	}
	return nil
}

func (r *DefaultTransactionRepository) GetTransactionByID(id string) (*domain.Transaction, error) {
	var model models.TransactionModel
	if err := r.DB.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return mappers.ToDomainTransaction(&model), nil
}

func (r *DefaultTransactionRepository) GetTransactionByClientToken(userID, clientToken string) (*domain.Transaction, error) {
	var model models.TransactionModel
	err := r.DB.
		First(&model, "client_token_user_id = ? AND client_token = ?", userID, clientToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return mappers.ToDomainTransaction(&model), nil
}

func (r *DefaultTransactionRepository) TransitionState(id string, from, to domain.TransactionState, patch domain.TransactionPatch) error {
	updates := map[string]interface{}{
		"state":      string(to),
		"updated_at": time.Now(),
	}
	if to.Terminal() {
		updates["terminal_at"] = time.Now()
		updates["lease_until"] = nil
	}
	if patch.GatewayReference != nil {
		updates["gateway_reference"] = *patch.GatewayReference
	}
	if patch.ProviderRequestID != nil {
		updates["provider_request_id"] = *patch.ProviderRequestID
	}
	if patch.DeliveredArtifact != nil {
		updates["delivered_artifact"] = *patch.DeliveredArtifact
	}
	if patch.FailureReason != nil {
		updates["failure_code"] = patch.FailureReason.Code
		updates["failure_message"] = patch.FailureReason.Message
	}
	if patch.Attempts != nil {
		updates["attempts"] = *patch.Attempts
	}
	if patch.NextPollAt != nil {
		updates["next_poll_at"] = *patch.NextPollAt
	}

	// Conditional on the current state: a concurrent worker that already
	// moved the row on gets RowsAffected == 0, never a double transition.
	res := r.DB.Model(&models.TransactionModel{}).
		Where("id = ? AND state = ?", id, string(from)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.DB.Model(&models.TransactionModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrTransactionNotFound
		}
		return domain.ErrStateConflict
	}
	return nil
}

func (r *DefaultTransactionRepository) UpdateFields(id string, patch domain.TransactionPatch) error {
	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if patch.GatewayReference != nil {
		updates["gateway_reference"] = *patch.GatewayReference
	}
	if patch.ProviderRequestID != nil {
		updates["provider_request_id"] = *patch.ProviderRequestID
	}
	if patch.DeliveredArtifact != nil {
		updates["delivered_artifact"] = *patch.DeliveredArtifact
	}
	if patch.FailureReason != nil {
		updates["failure_code"] = patch.FailureReason.Code
		updates["failure_message"] = patch.FailureReason.Message
	}
	if patch.Attempts != nil {
		updates["attempts"] = *patch.Attempts
	}
	if patch.NextPollAt != nil {
		updates["next_poll_at"] = *patch.NextPollAt
	}

	res := r.DB.Model(&models.TransactionModel{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *DefaultTransactionRepository) ListTransactions(filter domain.TransactionFilter, page, limit int64) ([]*domain.Transaction, int64, error) {
	var transactionModels []models.TransactionModel
	var total int64

	baseQuery := r.DB.Model(&models.TransactionModel{})
	if filter.UserID != "" {
		baseQuery = baseQuery.Where("user_id = ?", filter.UserID)
	}
	if filter.State != "" {
		baseQuery = baseQuery.Where("state = ?", string(filter.State))
	}

	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	offset := (page - 1) * limit
	err := baseQuery.
		Order("created_at DESC").
		Offset(int(offset)).
		Limit(int(limit)).
		Find(&transactionModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find transactions: %w", err)
	}

	transactions := make([]*domain.Transaction, len(transactionModels))
	for i, model := range transactionModels {
		transactions[i] = mappers.ToDomainTransaction(&model)
	}

	return transactions, total, nil
}

func (r *DefaultTransactionRepository) ClaimPollable(now time.Time, lease time.Duration, limit int) ([]*domain.Transaction, error) {
	var candidates []models.TransactionModel
	err := r.DB.
		Where("state IN ?", pollableStates).
		Where("next_poll_at <= ?", now).
		Where("lease_until IS NULL OR lease_until < ?", now).
		Order("next_poll_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	leaseUntil := now.Add(lease)
	claimed := make([]*domain.Transaction, 0, len(candidates))
	for i := range candidates {
		// Second conditional write wins the claim. Losing it means another
		// worker got there first between the select and now.
		res := r.DB.Model(&models.TransactionModel{}).
			Where("id = ? AND (lease_until IS NULL OR lease_until < ?)", candidates[i].ID, now).
			Update("lease_until", leaseUntil)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			claimed = append(claimed, mappers.ToDomainTransaction(&candidates[i]))
		}
	}

	return claimed, nil
}

func (r *DefaultTransactionRepository) AppendEvent(event *domain.TransactionEvent) error {
	model := mappers.ToGORMTransactionEvent(event)
	return r.DB.Create(model).Error
}

func (r *DefaultTransactionRepository) GetEventsByTransactionID(transactionID string) ([]*domain.TransactionEvent, error) {
	var eventModels []models.TransactionEventModel
	err := r.DB.
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&eventModels).Error
	if err != nil {
		return nil, err
	}

	events := make([]*domain.TransactionEvent, len(eventModels))
	for i, model := range eventModels {
		events[i] = mappers.ToDomainTransactionEvent(&model)
	}
	return events, nil
}
