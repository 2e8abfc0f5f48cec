package gateway

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

type initializeRequest struct {
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Reference        string `json:"reference"`
}

type initializeResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

type verifyResponse struct {
	Status string `json:"status"`
}

// HTTPGateway wraps the external card/bank payment provider. Initialize
// carries the transaction id as the provider reference, so a transport
// retry can never open a second charge.
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPGateway(cfg config.PaymentGateway) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGateway) Initialize(ctx context.Context, idempotencyKey string, amountMinorUnits int64) (*domain.ChargeInit, error) {
	body, err := json.Marshal(initializeRequest{
		AmountMinorUnits: amountMinorUnits,
		Reference:        idempotencyKey,
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

		init, retryable, err := g.doInitialize(ctx, idempotencyKey, body)
		if err == nil {
			return init, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("gateway initialize: %w", lastErr)
}

func (g *HTTPGateway) doInitialize(ctx context.Context, idempotencyKey string, body []byte) (*domain.ChargeInit, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewBuffer(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	response, err := g.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, true, err
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var initResp initializeResponse
		if err := json.Unmarshal(responseBodyBytes, &initResp); err != nil {
			return nil, false, err
		}
		return &domain.ChargeInit{
			GatewayReference: initResp.Reference,
			RedirectURL:      initResp.AuthorizationURL,
		}, false, nil
	}

	if response.StatusCode >= 500 {
		return nil, true, fmt.Errorf("gateway returned status %d", response.StatusCode)
	}
	return nil, false, fmt.Errorf("gateway returned status %d", response.StatusCode)
}

func (g *HTTPGateway) Verify(ctx context.Context, gatewayReference string) (domain.ChargeStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/charges/"+gatewayReference, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	response, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("gateway verify returned status %d", response.StatusCode)
	}

	var verify verifyResponse
	if err := json.Unmarshal(responseBodyBytes, &verify); err != nil {
		return "", err
	}

	switch verify.Status {
	case "SUCCESS":
		return domain.ChargeSuccess, nil
	case "FAILED":
		return domain.ChargeFailed, nil
	case "PENDING":
		return domain.ChargePending, nil
	}
	return "", fmt.Errorf("gateway verify returned unknown status %q", verify.Status)
}
