package notifier

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
)

type CallbackPayload struct {
	TransactionID     string `json:"transaction_id"`
	State             string `json:"state"`
	FailureCode       string `json:"failure_code,omitempty"`
	DeliveredArtifact string `json:"delivered_artifact,omitempty"`
}

// SendCallback notifies the merchant-supplied callback URL of a terminal
// state. Fire-and-forget: delivery failures are logged, never retried, and
// never block or fail the transaction.
func SendCallback(callbackURL string, payload CallbackPayload) {
	go func() {
		body, err := json.Marshal(payload)
		if err != nil {
			slog.Error("failed to marshal callback", "error", err.Error())
			return
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewBuffer(body))
		if err != nil {
			slog.Error("failed to create callback request", "error", err.Error())
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			slog.Error("callback failed", "url", callbackURL, "error", err.Error())
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			slog.Info("callback sent", "url", callbackURL, "transaction_id", payload.TransactionID)
		} else {
			slog.Error("callback returned error status", "url", callbackURL, "status", resp.StatusCode)
		}
	}()
}
