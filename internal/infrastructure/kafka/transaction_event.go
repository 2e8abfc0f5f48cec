package publisher

// TransactionEvent is the lifecycle event emitted for downstream
// notification and reporting consumers.
type TransactionEvent struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	ServiceKind   string `json:"service_kind"`
	State         string `json:"state"`
	AmountMinor   int64  `json:"amount_minor_units"`
	FailureCode   string `json:"failure_code,omitempty"`
}

// ReconciliationAlert is raised when a provider reports success for a
// transaction that was already refunded by timeout. It never changes the
// transaction; operations resolve it manually.
type ReconciliationAlert struct {
	TransactionID     string `json:"transaction_id"`
	UserID            string `json:"user_id"`
	ProviderRequestID string `json:"provider_request_id"`
	AmountMinor       int64  `json:"amount_minor_units"`
	Detail            string `json:"detail"`
}
