package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	domainerrors "github.com/hostfold/renewal-engine/internal/domain/errors"
	"github.com/hostfold/renewal-engine/internal/domain/service"
)

// DefaultTimeout for registrar HTTP requests
const DefaultTimeout = 30 * time.Second

// Config represents registrar client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an HTTP client for the upstream registrar API. It satisfies
// service.Registrar.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new registrar client
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

type extendRequest struct {
	Years int `json:"years"`
}

type extendResponse struct {
	ConfirmationID string    `json:"confirmation_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Extend pushes a domain's registration out by the given number of years.
// The idempotency key travels in the Idempotency-Key header; registrar-side
// deduplication is best effort.
func (c *Client) Extend(ctx context.Context, domainName string, years int, idempotencyKey string) (*service.ExtendResult, error) {
	body, err := json.Marshal(extendRequest{Years: years})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1/domains/%s/extend", c.config.BaseURL, url.PathEscape(domainName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrRegistrarExtendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Warn("registrar extend rejected",
			zap.String("domain", domainName),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: registrar returned %d", domainerrors.ErrRegistrarExtendFailed, resp.StatusCode)
	}

	var parsed extendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrRegistrarExtendFailed, err)
	}
	if parsed.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("%w: response missing expiration", domainerrors.ErrRegistrarExtendFailed)
	}

	return &service.ExtendResult{
		ConfirmationID: parsed.ConfirmationID,
		NewExpiresAt:   parsed.ExpiresAt,
	}, nil
}
