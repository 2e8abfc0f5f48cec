package checkout

import (
	"context"
	"testing"

	"github.com/billvault/checkout-service/internal/domain"
	checkoutdto "github.com/billvault/checkout-service/internal/usecase/dto/checkout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func airtimeIntent(userID string, amount int64) *checkoutdto.SubmitIntentInput {
	return &checkoutdto.SubmitIntentInput{
		UserID:           userID,
		ServiceKind:      domain.ServiceAirtime,
		FundingMethod:    domain.FundingWallet,
		AmountMinorUnits: amount,
		Payload:          map[string]string{"msisdn": "2348012345678"},
	}
}

func TestSubmitWalletSyncSuccess(t *testing.T) {
	env := newTestEnv()
	env.ledger.balances["user-1"] = 5_000
	env.provider.submitQueue = []*domain.FulfillmentResult{
		{Status: domain.FulfillmentSuccess, ProviderRequestID: "prov-1", DeliveredArtifact: "PIN-4711"},
	}

	out, err := env.uc.Submit(context.Background(), airtimeIntent("user-1", 1_000))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSettled, out.State)
	assert.Equal(t, "PIN-4711", out.DeliveredArtifact)
	assert.Nil(t, out.FailureReason)

	// The debit was posted exactly once, keyed by the transaction id.
	posted, ok := env.ledger.posted(out.TransactionID)
	require.True(t, ok)
	assert.Equal(t, int64(1_000), posted)
	assert.Equal(t, int64(4_000), env.ledger.balance("user-1"))
	assert.Equal(t, []string{out.TransactionID}, env.provider.submitKeys)

	stored, err := env.repo.GetTransactionByID(out.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSettled, stored.State)
	assert.NotNil(t, stored.TerminalAt)
}

func TestSubmitInsufficientFunds(t *testing.T) {
	env := newTestEnv()
	env.ledger.balances["user-1"] = 500

	out, err := env.uc.Submit(context.Background(), airtimeIntent("user-1", 1_000))
	require.NoError(t, err)

	assert.Equal(t, domain.StateFailed, out.State)
	require.NotNil(t, out.FailureReason)
	assert.Equal(t, domain.ReasonInsufficientFunds, out.FailureReason.Code)

	// No money moved and the provider was never contacted.
	assert.Equal(t, int64(500), env.ledger.balance("user-1"))
	assert.Equal(t, 0, env.provider.submitCount())
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name  string
		input *checkoutdto.SubmitIntentInput
		field string
	}{
		{
			name: "non-positive amount",
			input: &checkoutdto.SubmitIntentInput{
				UserID: "u", ServiceKind: domain.ServiceAirtime,
				FundingMethod: domain.FundingWallet, AmountMinorUnits: 0,
			},
			field: "amountMinorUnits",
		},
		{
			name: "unknown service kind",
			input: &checkoutdto.SubmitIntentInput{
				UserID: "u", ServiceKind: "LOTTERY",
				FundingMethod: domain.FundingWallet, AmountMinorUnits: 1_000,
			},
			field: "serviceKind",
		},
		{
			name: "unknown funding method",
			input: &checkoutdto.SubmitIntentInput{
				UserID: "u", ServiceKind: domain.ServiceAirtime,
				FundingMethod: "CHEQUE", AmountMinorUnits: 1_000,
			},
			field: "fundingMethod",
		},
		{
			name: "amount below minimum",
			input: &checkoutdto.SubmitIntentInput{
				UserID: "u", ServiceKind: domain.ServiceAirtime,
				FundingMethod: domain.FundingWallet, AmountMinorUnits: 50,
				Payload: map[string]string{"msisdn": "2348012345678"},
			},
			field: "amountMinorUnits",
		},
		{
			name: "missing required payload field",
			input: &checkoutdto.SubmitIntentInput{
				UserID: "u", ServiceKind: domain.ServiceAirtime,
				FundingMethod: domain.FundingWallet, AmountMinorUnits: 1_000,
			},
			field: "msisdn",
		},
		{
			name: "wallet-only service over gateway",
			input: &checkoutdto.SubmitIntentInput{
				UserID: "u", ServiceKind: domain.ServiceTransfer,
				FundingMethod: domain.FundingGateway, AmountMinorUnits: 1_000,
				Payload: map[string]string{"account_number": "0123456789"},
			},
			field: "fundingMethod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.uc.Submit(context.Background(), tt.input)
			assert.Nil(t, out)

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}

	// Nothing was persisted or charged for any rejected intent.
	assert.Empty(t, env.repo.txs)
	assert.Equal(t, 0, env.ledger.debitCalls)
}

func TestSubmitClientTokenDedup(t *testing.T) {
	env := newTestEnv()
	env.ledger.balances["user-1"] = 5_000
	env.provider.submitQueue = []*domain.FulfillmentResult{
		{Status: domain.FulfillmentSuccess, ProviderRequestID: "prov-1"},
	}

	intent := airtimeIntent("user-1", 1_000)
	intent.ClientToken = "retry-token-1"

	first, err := env.uc.Submit(context.Background(), intent)
	require.NoError(t, err)
	require.Equal(t, domain.StateSettled, first.State)

	second, err := env.uc.Submit(context.Background(), intent)
	require.NoError(t, err)

	// The retry returns the original transaction in whatever state it
	// reached, without debiting or fulfilling again.
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, domain.StateSettled, second.State)
	assert.Equal(t, 1, env.ledger.debitCalls)
	assert.Equal(t, 1, env.provider.submitCount())
	assert.Len(t, env.repo.txs, 1)
}

func TestSubmitTransientDebitLeavesFundingPending(t *testing.T) {
	env := newTestEnv()
	env.ledger.balances["user-1"] = 5_000
	env.ledger.debitErr = context.DeadlineExceeded

	out, err := env.uc.Submit(context.Background(), airtimeIntent("user-1", 1_000))
	require.NoError(t, err)

	// Ambiguous ledger outcome is not a failure: the reconciler re-drives
	// the idempotent debit later.
	assert.Equal(t, domain.StateFundingPending, out.State)
	assert.Nil(t, out.FailureReason)
	assert.Equal(t, 0, env.provider.submitCount())
}

func TestSubmitGatewayReturnsRedirect(t *testing.T) {
	env := newTestEnv()
	intent := airtimeIntent("user-1", 1_000)
	intent.FundingMethod = domain.FundingGateway

	out, err := env.uc.Submit(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, domain.StateFundingPending, out.State)
	assert.Equal(t, "https://gateway.test/pay/chg_test_1", out.RedirectURL)

	stored, err := env.repo.GetTransactionByID(out.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "chg_test_1", stored.GatewayReference)
	assert.Equal(t, 0, env.ledger.debitCalls)
}

func TestSubmitGatewayInitFailure(t *testing.T) {
	env := newTestEnv()
	env.gateway.initErr = context.DeadlineExceeded

	intent := airtimeIntent("user-1", 1_000)
	intent.FundingMethod = domain.FundingGateway

	out, err := env.uc.Submit(context.Background(), intent)
	require.NoError(t, err)

	// No charge reference exists, so failing locally is safe.
	assert.Equal(t, domain.StateFailed, out.State)
	require.NotNil(t, out.FailureReason)
	assert.Equal(t, domain.ReasonGatewayUnavailable, out.FailureReason.Code)
}

func TestSubmitWritesAuditTrail(t *testing.T) {
	env := newTestEnv()
	env.ledger.balances["user-1"] = 5_000
	env.provider.submitQueue = []*domain.FulfillmentResult{
		{Status: domain.FulfillmentSuccess, ProviderRequestID: "prov-1"},
	}

	out, err := env.uc.Submit(context.Background(), airtimeIntent("user-1", 1_000))
	require.NoError(t, err)

	events, err := env.uc.GetEvents(out.TransactionID)
	require.NoError(t, err)
	require.Len(t, events, 5)

	states := make([]domain.TransactionState, 0, len(events))
	for _, event := range events {
		states = append(states, event.ToState)
	}
	assert.Equal(t, []domain.TransactionState{
		domain.StateCreated,
		domain.StateFundingPending,
		domain.StateFundsSecured,
		domain.StateFulfilling,
		domain.StateSettled,
	}, states)
}
