package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/billvault/checkout-service/internal/config"
	"github.com/billvault/checkout-service/internal/domain"
)

type submitRequest struct {
	ServiceKind      string            `json:"service_kind"`
	AmountMinorUnits int64             `json:"amount_minor_units"`
	Payload          map[string]string `json:"payload"`
}

type providerResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	Artifact  string `json:"artifact,omitempty"`
}

// HTTPProvider wraps the external catalog/delivery aggregator. Submit sends
// the transaction id as the idempotency key, so retries re-attach to the
// original provider request instead of delivering twice.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPProvider(cfg config.FulfillmentService) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Submit(ctx context.Context, idempotencyKey string, kind domain.ServiceKind, payload map[string]string, amountMinorUnits int64) (*domain.FulfillmentResult, error) {
	body, err := json.Marshal(submitRequest{
		ServiceKind:      string(kind),
		AmountMinorUnits: amountMinorUnits,
		Payload:          payload,
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

		result, retryable, err := p.doSubmit(ctx, idempotencyKey, body)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fulfillment submit: %w", lastErr)
}

func (p *HTTPProvider) doSubmit(ctx context.Context, idempotencyKey string, body []byte) (*domain.FulfillmentResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/purchases", bytes.NewBuffer(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", p.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	response, err := p.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, true, err
	}

	if response.StatusCode >= 500 {
		return nil, true, fmt.Errorf("provider returned status %d", response.StatusCode)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, false, fmt.Errorf("provider returned status %d", response.StatusCode)
	}

	result, err := parseProviderResponse(responseBodyBytes)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

func (p *HTTPProvider) QueryStatus(ctx context.Context, providerRequestID string) (*domain.FulfillmentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/purchases/"+providerRequestID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", p.apiKey)

	response, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("provider status query returned status %d", response.StatusCode)
	}

	return parseProviderResponse(responseBodyBytes)
}

func parseProviderResponse(body []byte) (*domain.FulfillmentResult, error) {
	var resp providerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	var status domain.FulfillmentStatus
	switch resp.Status {
	case "SUCCESS":
		status = domain.FulfillmentSuccess
	case "FAILED":
		status = domain.FulfillmentFailed
	case "PENDING":
		status = domain.FulfillmentPending
	default:
		return nil, fmt.Errorf("provider returned unknown status %q", resp.Status)
	}

	return &domain.FulfillmentResult{
		Status:            status,
		ProviderRequestID: resp.RequestID,
		DeliveredArtifact: resp.Artifact,
	}, nil
}
