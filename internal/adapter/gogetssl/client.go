// Package gogetssl adapts the external CA reseller API to the
// domain.Provisioner port. It owns the call timeout, retry-with-backoff for
// transient failures, and the translation of raw provider payloads into the
// closed *domain.ProviderError taxonomy; nothing above this package ever
// sees a raw payload shape.
package gogetssl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/croftlabs/certbill/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRetryBase = 2 * time.Second
	defaultMaxTries  = 3
)

// Compile-time check: Client implements domain.Provisioner.
var _ domain.Provisioner = (*Client)(nil)

// Client calls the CA reseller HTTP API.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	retryBase time.Duration
	maxTries  uint
	log       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetryBase overrides the initial backoff interval.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) { c.retryBase = d }
}

// WithMaxTries overrides the attempt cap.
func WithMaxTries(n uint) Option {
	return func(c *Client) { c.maxTries = n }
}

// New creates a client for the given API endpoint.
func New(baseURL, apiKey string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: defaultTimeout},
		retryBase: defaultRetryBase,
		maxTries:  defaultMaxTries,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddDomain registers a domain under a provider account. "Already exists" is
// reclassified as success: the provider has the domain, which is the state
// the saga wanted, typically after a retried call whose first attempt landed.
func (c *Client) AddDomain(ctx context.Context, accountExternalID, domainName, idempotencyToken string) (domain.ProvisionResult, error) {
	res, err := c.call(ctx, "/domains/add", map[string]string{
		"account_id":        accountExternalID,
		"domain":            domainName,
		"idempotency_token": idempotencyToken,
	})
	if err != nil {
		var pe *domain.ProviderError
		if errors.As(err, &pe) && pe.Kind == domain.ProviderAlreadyExists {
			return domain.ProvisionResult{}, nil
		}
		return domain.ProvisionResult{}, err
	}
	return domain.ProvisionResult{OrderRef: res.OrderID}, nil
}

// RemoveDomain drops a domain from a provider account.
func (c *Client) RemoveDomain(ctx context.Context, accountExternalID, domainName string) error {
	_, err := c.call(ctx, "/domains/remove", map[string]string{
		"account_id": accountExternalID,
		"domain":     domainName,
	})
	return err
}

type apiResponse struct {
	Success bool      `json:"success"`
	OrderID string    `json:"order_id"`
	Error   *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call runs one logical API call with exponential backoff. Only retriable
// kinds (rate-limit, 5xx, timeout) are attempted again; validation-class
// rejections abort immediately.
func (c *Client) call(ctx context.Context, path string, payload map[string]string) (*apiResponse, error) {
	operation := func() (*apiResponse, error) {
		res, err := c.doOnce(ctx, path, payload)
		if err != nil {
			var pe *domain.ProviderError
			if errors.As(err, &pe) && !pe.Kind.Retriable() {
				return nil, backoff.Permanent(err)
			}
			c.log.WarnContext(ctx, "provider call failed",
				"path", path, "error", err)
			return nil, err
		}
		return res, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBase
	b.Multiplier = 2
	b.RandomizationFactor = 0

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxTries),
	)
}

func (c *Client) doOnce(ctx context.Context, path string, payload map[string]string) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if kind, ok := classifyStatus(resp.StatusCode); ok {
		return nil, &domain.ProviderError{
			Kind:    kind,
			Message: fmt.Sprintf("%s returned HTTP %d", path, resp.StatusCode),
		}
	}

	var res apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &domain.ProviderError{
			Kind:    domain.ProviderServerError,
			Message: "undecodable response: " + err.Error(),
		}
	}

	if !res.Success {
		return nil, classifyCode(res.Error)
	}

	return &res, nil
}

func classifyTransport(err error) *domain.ProviderError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &domain.ProviderError{Kind: domain.ProviderTimeout, Message: err.Error()}
	}
	return &domain.ProviderError{Kind: domain.ProviderServerError, Message: err.Error()}
}

// classifyStatus maps non-2xx responses; 2xx carries its outcome in the body.
func classifyStatus(status int) (domain.ProviderErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ProviderUnauthorized, true
	case status == http.StatusTooManyRequests:
		return domain.ProviderRateLimited, true
	case status >= 500:
		return domain.ProviderServerError, true
	default:
		return domain.ProviderMalformed, true
	}
}

func classifyCode(apiErr *apiError) *domain.ProviderError {
	if apiErr == nil {
		return &domain.ProviderError{Kind: domain.ProviderServerError, Message: "provider reported failure without detail"}
	}

	kind := domain.ProviderMalformed
	switch apiErr.Code {
	case "domain_already_exists":
		kind = domain.ProviderAlreadyExists
	case "rate_limited":
		kind = domain.ProviderRateLimited
	case "subscription_expired":
		kind = domain.ProviderSubscriptionExpired
	case "unauthorized":
		kind = domain.ProviderUnauthorized
	case "internal_error":
		kind = domain.ProviderServerError
	}

	return &domain.ProviderError{Kind: kind, Message: apiErr.Message}
}
