package request

type SubmitRequest struct {
	UserID           string            `json:"user_id"`
	ServiceKind      string            `json:"service_kind"`
	FundingMethod    string            `json:"funding_method"`
	AmountMinorUnits int64             `json:"amount_minor_units"`
	Payload          map[string]string `json:"payload"`
	ClientToken      string            `json:"client_token,omitempty"`
	CallbackURL      string            `json:"callback_url,omitempty"`
}

type ConfirmFundingRequest struct {
	GatewayReference string `json:"gateway_reference"`
}
