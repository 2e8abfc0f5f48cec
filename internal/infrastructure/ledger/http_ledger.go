package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/billvault/checkout-service/internal/domain"
)

type postingRequest struct {
	UserID           string `json:"user_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	IdempotencyKey   string `json:"idempotency_key"`
}

type postingResponse struct {
	NewBalanceMinorUnits int64 `json:"new_balance_minor_units"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPLedger talks to the wallet ledger service. Both postings are
// idempotent server-side, so transport retries are safe.
type HTTPLedger struct {
	Address string
	client  *http.Client
}

func NewHTTPLedger(address string) *HTTPLedger {
	return &HTTPLedger{
		Address: address,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (l *HTTPLedger) Debit(ctx context.Context, userID string, amountMinorUnits int64, idempotencyKey string) (*domain.LedgerResult, error) {
	return l.post(ctx, "/wallets/debit", userID, amountMinorUnits, idempotencyKey)
}

func (l *HTTPLedger) Credit(ctx context.Context, userID string, amountMinorUnits int64, idempotencyKey string) (*domain.LedgerResult, error) {
	return l.post(ctx, "/wallets/credit", userID, amountMinorUnits, idempotencyKey)
}

func (l *HTTPLedger) post(ctx context.Context, path, userID string, amountMinorUnits int64, idempotencyKey string) (*domain.LedgerResult, error) {
	requestBodyBytes, err := json.Marshal(postingRequest{
		UserID:           userID,
		AmountMinorUnits: amountMinorUnits,
		IdempotencyKey:   idempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		result, retryable, err := l.doPost(ctx, path, requestBodyBytes)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("ledger %s: %w", path, lastErr)
}

func (l *HTTPLedger) doPost(ctx context.Context, path string, body []byte) (*domain.LedgerResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.Address+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := l.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, true, err
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var posting postingResponse
		if err := json.Unmarshal(responseBodyBytes, &posting); err != nil {
			return nil, false, err
		}
		return &domain.LedgerResult{NewBalanceMinorUnits: posting.NewBalanceMinorUnits}, false, nil
	}

	if response.StatusCode >= 500 {
		return nil, true, fmt.Errorf("ledger returned status %d", response.StatusCode)
	}

	var errResp errorResponse
	if err := json.Unmarshal(responseBodyBytes, &errResp); err != nil {
		return nil, false, fmt.Errorf("ledger returned status %d", response.StatusCode)
	}
	if errResp.Code == "INSUFFICIENT_FUNDS" {
		return nil, false, domain.ErrInsufficientFunds
	}
	return nil, false, errors.New(errResp.Error)
}
