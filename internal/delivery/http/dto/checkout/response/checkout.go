package response

import "time"

type TransactionResponse struct {
	TransactionID     string `json:"transaction_id"`
	State             string `json:"state"`
	RedirectURL       string `json:"redirect_url,omitempty"`
	DeliveredArtifact string `json:"delivered_artifact,omitempty"`
	FailureCode       string `json:"failure_code,omitempty"`
	FailureMessage    string `json:"failure_message,omitempty"`
}

type TransactionListResponse struct {
	Transactions []TransactionSummary `json:"transactions"`
	Total        int64                `json:"total"`
	Page         int64                `json:"page"`
	Limit        int64                `json:"limit"`
}

type TransactionSummary struct {
	TransactionID    string    `json:"transaction_id"`
	ServiceKind      string    `json:"service_kind"`
	FundingMethod    string    `json:"funding_method"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
}

type EventResponse struct {
	ID        string    `json:"id"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
