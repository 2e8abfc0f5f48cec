package domain

import "time"

// TransactionPatch carries the optional fields written together with a
// state transition. Nil fields are left untouched.
type TransactionPatch struct {
	GatewayReference  *string
	ProviderRequestID *string
	DeliveredArtifact *string
	FailureReason     *FailureReason
	Attempts          *int32
	NextPollAt        *time.Time
}

type TransactionFilter struct {
	UserID string
	State  TransactionState
}

type TransactionRepository interface {
	CreateTransaction(tx *Transaction) error
	GetTransactionByID(id string) (*Transaction, error)
	GetTransactionByClientToken(userID, clientToken string) (*Transaction, error)

	// TransitionState updates a transaction from -> to conditionally on the
	// current state, applying patch in the same write. It returns
	// ErrStateConflict when the row is no longer in the from state, which is
	// how concurrent orchestrator instances lose gracefully.
	TransitionState(id string, from, to TransactionState, patch TransactionPatch) error

	// UpdateFields applies patch without a state transition (gateway
	// reference after initialize, poll attempts and backoff bookkeeping).
	UpdateFields(id string, patch TransactionPatch) error

	ListTransactions(filter TransactionFilter, page, limit int64) ([]*Transaction, int64, error)

	// ClaimPollable leases up to limit non-terminal transactions that are due
	// for a poll (next_poll_at <= now, lease expired). Claimed rows are
	// invisible to other workers until the lease expires.
	ClaimPollable(now time.Time, lease time.Duration, limit int) ([]*Transaction, error)

	AppendEvent(event *TransactionEvent) error
	GetEventsByTransactionID(transactionID string) ([]*TransactionEvent, error)
}
