package domain

import "fmt"

// ServicePolicy is the per-service purchase policy registered at startup:
// amount bounds, allowed funding methods and required payload fields.
type ServicePolicy struct {
	Kind                ServiceKind
	MinAmountMinorUnits int64
	MaxAmountMinorUnits int64
	WalletOnly          bool
	RequiredFields      []string
}

func (p ServicePolicy) ValidateIntent(amountMinorUnits int64, method FundingMethod, payload map[string]string) error {
	if amountMinorUnits < p.MinAmountMinorUnits {
		return &ValidationError{
			Field:   "amountMinorUnits",
			Message: fmt.Sprintf("amount below minimum %d for %s", p.MinAmountMinorUnits, p.Kind),
		}
	}
	if p.MaxAmountMinorUnits > 0 && amountMinorUnits > p.MaxAmountMinorUnits {
		return &ValidationError{
			Field:   "amountMinorUnits",
			Message: fmt.Sprintf("amount above maximum %d for %s", p.MaxAmountMinorUnits, p.Kind),
		}
	}
	if p.WalletOnly && method != FundingWallet {
		return &ValidationError{
			Field:   "fundingMethod",
			Message: fmt.Sprintf("%s is wallet-only", p.Kind),
		}
	}
	for _, field := range p.RequiredFields {
		if payload[field] == "" {
			return &ValidationError{
				Field:   field,
				Message: fmt.Sprintf("payload field %q is required for %s", field, p.Kind),
			}
		}
	}
	return nil
}

type PolicyRegistry struct {
	policies map[ServiceKind]ServicePolicy
}

func NewPolicyRegistry(policies ...ServicePolicy) *PolicyRegistry {
	r := &PolicyRegistry{policies: make(map[ServiceKind]ServicePolicy, len(policies))}
	for _, p := range policies {
		r.policies[p.Kind] = p
	}
	return r
}

func (r *PolicyRegistry) Get(kind ServiceKind) (ServicePolicy, bool) {
	p, ok := r.policies[kind]
	return p, ok
}
