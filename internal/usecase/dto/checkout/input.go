package checkoutdto

import "github.com/billvault/checkout-service/internal/domain"

type SubmitIntentInput struct {
	UserID           string
	ServiceKind      domain.ServiceKind
	FundingMethod    domain.FundingMethod
	AmountMinorUnits int64
	Payload          map[string]string
	ClientToken      string
	CallbackURL      string
}
