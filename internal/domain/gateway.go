package domain

import "context"

type ChargeStatus string

const (
	ChargePending ChargeStatus = "PENDING"
	ChargeSuccess ChargeStatus = "SUCCESS"
	ChargeFailed  ChargeStatus = "FAILED"
)

type ChargeInit struct {
	GatewayReference string
	RedirectURL      string
}

// PaymentGateway wraps the external card/bank rail. Initialize is idempotent
// on the caller-supplied key; Verify is read-only and safe to repeat.
type PaymentGateway interface {
	Initialize(ctx context.Context, idempotencyKey string, amountMinorUnits int64) (*ChargeInit, error)
	Verify(ctx context.Context, gatewayReference string) (ChargeStatus, error)
}
