package domain

import "time"

// Transition actors recorded in the event log.
const (
	ActorOrchestrator = "orchestrator"
	ActorReconciler   = "reconciler"
)

// TransactionEvent is one append-only row per state transition, kept for
// audit and for diagnosing stuck transactions.
type TransactionEvent struct {
	ID            string
	TransactionID string
	FromState     TransactionState
	ToState       TransactionState
	Actor         string
	Reason        string
	CreatedAt     time.Time
}
