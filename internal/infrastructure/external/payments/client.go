package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/service"
	"github.com/hostfold/renewal-engine/internal/domain/valueobject"
)

// DefaultTimeout for gateway HTTP requests
const DefaultTimeout = 30 * time.Second

// Config represents payment gateway client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an HTTP client for the payment gateway. It satisfies
// service.PaymentGateway.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new payment gateway client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

type chargeRequest struct {
	PaymentMethod string `json:"payment_method"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
}

type chargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"` // succeeded | declined
	DeclineReason string `json:"decline_reason,omitempty"`
}

// Charge charges a stored payment method. The idempotency key is forwarded
// in the Idempotency-Key header so the gateway deduplicates retried charges.
func (c *Client) Charge(ctx context.Context, paymentMethodID string, amount valueobject.Money, idempotencyKey string) (*service.ChargeResult, error) {
	body, err := json.Marshal(chargeRequest{
		PaymentMethod: paymentMethodID,
		AmountMinor:   amount.AmountMinor,
		Currency:      amount.Currency,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: gateway returned %d", domainerrors.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, domainerrors.ErrPaymentDeclined
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return nil, fmt.Errorf("%w: unexpected status %d", domainerrors.ErrGatewayUnavailable, resp.StatusCode)
	}

	var parsed chargeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrGatewayUnavailable, err)
	}

	if parsed.Status == "declined" {
		c.logger.Info("charge declined",
			zap.String("idempotency_key", idempotencyKey),
			zap.String("decline_reason", parsed.DeclineReason),
		)
		return nil, fmt.Errorf("%w: %s", domainerrors.ErrPaymentDeclined, parsed.DeclineReason)
	}

	return &service.ChargeResult{TransactionID: parsed.ID}, nil
}
