package checkout

import (
	"github.com/billvault/checkout-service/internal/domain"
	checkoutdto "github.com/billvault/checkout-service/internal/usecase/dto/checkout"
)

func (uc *DefaultCheckoutUsecase) GetStatus(transactionID string) (*checkoutdto.TransactionOutput, error) {
	tx, err := uc.TransactionRepo.GetTransactionByID(transactionID)
	if err != nil {
		return nil, err
	}
	return uc.outputFor(tx), nil
}

func (uc *DefaultCheckoutUsecase) GetTransactionByID(transactionID string) (*domain.Transaction, error) {
	return uc.TransactionRepo.GetTransactionByID(transactionID)
}

func (uc *DefaultCheckoutUsecase) ListTransactions(filter domain.TransactionFilter, page, limit int64) ([]*domain.Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return uc.TransactionRepo.ListTransactions(filter, page, limit)
}

func (uc *DefaultCheckoutUsecase) GetEvents(transactionID string) ([]*domain.TransactionEvent, error) {
	if _, err := uc.TransactionRepo.GetTransactionByID(transactionID); err != nil {
		return nil, err
	}
	return uc.TransactionRepo.GetEventsByTransactionID(transactionID)
}
