package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/account-reconciler/internal/logging"
	"golang.org/x/time/rate"
)

// Default HTTP client tuning. The validation service drives real browser
// sessions per account, so calls are slow and the request budget is small.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 5
	DefaultBurst             = 5
)

// Service endpoints.
const (
	pathListAccounts  = "/getAccounts"
	pathListValidated = "/getValidAccounts"
	pathDeleteAccount = "/deleteAccount"
)

// HTTPClient talks to the validation service over HTTP with client-side rate
// limiting.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

// HTTPClientConfig holds construction options for the HTTP client.
type HTTPClientConfig struct {
	// BaseURL of the validation service. Required.
	BaseURL string
	// Timeout per request. Default: 30s.
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls. Default: 5.
	RequestsPerSecond float64
	// Burst is the limiter burst size. Default: 5.
	Burst int
	// Logger for request failures. Optional.
	Logger *logging.Logger
}

// NewHTTPClient creates a rate-limited HTTP client for the validation
// service.
func NewHTTPClient(cfg *HTTPClientConfig) (*HTTPClient, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("validator base URL cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.WithField("component", "validator"),
	}, nil
}

// ListAccounts returns an unvalidated roster snapshot.
func (c *HTTPClient) ListAccounts(ctx context.Context) (*Response, error) {
	return c.getJSON(ctx, pathListAccounts, nil)
}

// ListValidatedAccounts validates and returns the roster, scoped to one
// account when id is non-nil.
func (c *HTTPClient) ListValidatedAccounts(ctx context.Context, id *int64) (*Response, error) {
	var query url.Values
	if id != nil {
		query = url.Values{"id": []string{strconv.FormatInt(*id, 10)}}
	}
	return c.getJSON(ctx, pathListValidated, query)
}

// DeleteAccount removes an account on the remote side.
func (c *HTTPClient) DeleteAccount(ctx context.Context, id int64) (*Response, error) {
	query := url.Values{"id": []string{strconv.FormatInt(id, 10)}}
	return c.getJSON(ctx, pathDeleteAccount, query)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s returned HTTP %d", path, resp.StatusCode)
	}

	var envelope Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return &envelope, nil
}
