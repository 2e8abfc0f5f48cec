package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrStateConflict       = errors.New("transaction state conflict")
	ErrUnknownService      = errors.New("unknown service kind")
	ErrGatewayDeclined     = errors.New("gateway charge declined")
)

// ValidationError rejects an intent before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
