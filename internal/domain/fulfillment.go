package domain

import "context"

type FulfillmentStatus string

const (
	FulfillmentPending FulfillmentStatus = "PENDING"
	FulfillmentSuccess FulfillmentStatus = "SUCCESS"
	FulfillmentFailed  FulfillmentStatus = "FAILED"
)

type FulfillmentResult struct {
	Status            FulfillmentStatus
	ProviderRequestID string
	DeliveredArtifact string
}

// FulfillmentProvider wraps the external delivery provider (airtime credit,
// PIN, token, ticket). Submit is idempotent on the caller-supplied key;
// QueryStatus is read-only and safe to repeat.
type FulfillmentProvider interface {
	Submit(ctx context.Context, idempotencyKey string, kind ServiceKind, payload map[string]string, amountMinorUnits int64) (*FulfillmentResult, error)
	QueryStatus(ctx context.Context, providerRequestID string) (*FulfillmentResult, error)
}
