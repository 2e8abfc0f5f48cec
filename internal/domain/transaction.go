package domain

import "time"

type TransactionState string

const (
	StateCreated         TransactionState = "CREATED"
	StateFundingPending  TransactionState = "FUNDING_PENDING"
	StateFundsSecured    TransactionState = "FUNDS_SECURED"
	StateFulfilling      TransactionState = "FULFILLING"
	StateProviderPending TransactionState = "PROVIDER_PENDING"
	StateSettled         TransactionState = "SETTLED"
	StateRefunded        TransactionState = "REFUNDED"
	StateFailed          TransactionState = "FAILED"
)

type ServiceKind string

const (
	ServiceAirtime     ServiceKind = "AIRTIME"
	ServiceData        ServiceKind = "DATA"
	ServiceElectricity ServiceKind = "ELECTRICITY"
	ServiceCable       ServiceKind = "CABLE"
	ServiceEducation   ServiceKind = "EDUCATION"
	ServiceInsurance   ServiceKind = "INSURANCE"
	ServiceTicket      ServiceKind = "TICKET"
	ServiceTransfer    ServiceKind = "TRANSFER"
)

type FundingMethod string

const (
	FundingWallet  FundingMethod = "WALLET"
	FundingGateway FundingMethod = "GATEWAY"
)

// FailureReason is the structured reason stored on a transaction that
// reached FAILED or REFUNDED.
type FailureReason struct {
	Code    string
	Message string
}

const (
	ReasonInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ReasonPaymentDeclined    = "PAYMENT_DECLINED"
	ReasonProviderRejected   = "PROVIDER_REJECTED"
	ReasonProviderTimeout    = "PROVIDER_TIMEOUT"
	ReasonGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ReasonStaleFunding       = "STALE_FUNDING"
)

// Transaction is the unit of work: one purchase intent driven from CREATED
// to a terminal state. Amounts are integer minor units, never floats.
type Transaction struct {
	ID                string
	UserID            string
	ServiceKind       ServiceKind
	FundingMethod     FundingMethod
	AmountMinorUnits  int64
	Payload           map[string]string
	ClientToken       string
	CallbackURL       string
	GatewayReference  string
	ProviderRequestID string
	DeliveredArtifact string
	State             TransactionState
	FailureReason     *FailureReason
	Attempts          int32
	NextPollAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	TerminalAt        *time.Time
}

func (s TransactionState) Terminal() bool {
	switch s {
	case StateSettled, StateRefunded, StateFailed:
		return true
	}
	return false
}

var transitions = map[TransactionState][]TransactionState{
	StateCreated:         {StateFundingPending},
	StateFundingPending:  {StateFundsSecured, StateFailed},
	StateFundsSecured:    {StateFulfilling},
	StateFulfilling:      {StateSettled, StateProviderPending, StateRefunded},
	StateProviderPending: {StateSettled, StateRefunded},
}

// CanTransition reports whether from -> to is a legal state machine edge.
// Terminal states have no outgoing edges.
func CanTransition(from, to TransactionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RefundIdempotencyKey is the ledger posting key for the compensating
// credit of a transaction. It differs from the debit key so both postings
// can coexist for the same transaction.
func (t *Transaction) RefundIdempotencyKey() string {
	return t.ID + ":refund"
}
