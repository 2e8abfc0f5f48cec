package domain

import "context"

type LedgerResult struct {
	NewBalanceMinorUnits int64
}

// Ledger is the wallet posting port. Both operations are idempotent on the
// caller-supplied key: a repeated call returns the original result without
// posting again.
type Ledger interface {
	Debit(ctx context.Context, userID string, amountMinorUnits int64, idempotencyKey string) (*LedgerResult, error)
	Credit(ctx context.Context, userID string, amountMinorUnits int64, idempotencyKey string) (*LedgerResult, error)
}
