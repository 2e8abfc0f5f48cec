package checkoutdto

import "github.com/billvault/checkout-service/internal/domain"

type TransactionOutput struct {
	TransactionID     string
	State             domain.TransactionState
	RedirectURL       string
	DeliveredArtifact string
	FailureReason     *domain.FailureReason
}

func FromTransaction(tx *domain.Transaction) *TransactionOutput {
	return &TransactionOutput{
		TransactionID:     tx.ID,
		State:             tx.State,
		DeliveredArtifact: tx.DeliveredArtifact,
		FailureReason:     tx.FailureReason,
	}
}
