// Package imds reads the identity of the instance the tool runs on from the OCI Instance
// Metadata Service (IMDSv2). It is only consulted when metadata lookups are enabled.
package imds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is the link-local IMDSv2 base URL.
const DefaultEndpoint = "http://169.254.169.254/opc/v2"

const (
	defaultTimeout     = 2 * time.Second
	defaultMaxAttempts = 3
	defaultBackoff     = 200 * time.Millisecond
	authorization      = "Bearer Oracle"
	instancePath       = "/instance/"
)

var (
	errRetryableStatus  = errors.New("imds: retryable status code")
	errUnexpectedStatus = errors.New("imds: unexpected status code")
	errExhaustedRetries = errors.New("imds: exhausted retry budget")
	errTransport        = errors.New("imds: request execution failed")
	errIncomplete       = errors.New("imds: instance document is missing its id")
)

// Instance is the subset of the instance metadata document the resolver uses.
type Instance struct {
	ID                  string `json:"id"`
	DisplayName         string `json:"displayName"`
	CompartmentID       string `json:"compartmentId"`
	TenancyID           string `json:"tenantId"`
	Region              string `json:"region"`
	CanonicalRegionName string `json:"canonicalRegionName"`
	AvailabilityDomain  string `json:"availabilityDomain"`
	FaultDomain         string `json:"faultDomain"`
	Shape               string `json:"shape"`
}

// CanonicalRegion prefers the canonical name (us-ashburn-1) over the short key (iad).
func (i Instance) CanonicalRegion() string {
	if i.CanonicalRegionName != "" {
		return i.CanonicalRegionName
	}

	return i.Region
}

type settings struct {
	endpoint    string
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// Option adjusts a Client during construction.
type Option func(*settings)

// WithEndpoint overrides the metadata base URL.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			s.endpoint = trimmed
		}
	}
}

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(attempts int) Option {
	return func(s *settings) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
	}
}

// WithBackoff overrides the delay between attempts.
func WithBackoff(delay time.Duration) Option {
	return func(s *settings) {
		if delay > 0 {
			s.backoff = delay
		}
	}
}

// WithLogger reports retries at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Client fetches the instance metadata document.
type Client struct {
	http        *http.Client
	endpoint    string
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// New builds a Client. A nil httpClient gets a private client with a short timeout.
func New(httpClient *http.Client, opts ...Option) *Client {
	cfg := settings{
		endpoint:    DefaultEndpoint,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		http:        httpClient,
		endpoint:    strings.TrimRight(cfg.endpoint, "/"),
		maxAttempts: cfg.maxAttempts,
		backoff:     cfg.backoff,
		logger:      cfg.logger,
	}
}

// Instance returns the metadata document of the running instance.
func (c *Client) Instance(ctx context.Context) (Instance, error) {
	payload, err := c.get(ctx, instancePath)
	if err != nil {
		return Instance{}, err
	}

	var instance Instance

	err = json.Unmarshal(payload, &instance)
	if err != nil {
		return Instance{}, fmt.Errorf("decode instance document: %w", err)
	}

	if strings.TrimSpace(instance.ID) == "" {
		return Instance{}, errIncomplete
	}

	return instance, nil
}

// InstanceID returns the OCID of the running instance.
func (c *Client) InstanceID(ctx context.Context) (string, error) {
	payload, err := c.get(ctx, instancePath+"id")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(payload)), nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.endpoint + path

	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		payload, retry, err := c.attempt(ctx, url)
		if err == nil {
			return payload, nil
		}

		if !retry {
			return nil, err
		}

		lastErr = err

		c.logger.Debug("metadata request failed",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt == c.maxAttempts {
			break
		}

		timer := time.NewTimer(c.backoff)

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil, fmt.Errorf("wait to retry %s: %w", path, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%w: %w", errExhaustedRetries, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build metadata request: %w", err)
	}

	request.Header.Set("Authorization", authorization)

	response, err := c.http.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("%w: %w", errTransport, ctx.Err())
		}

		return nil, true, fmt.Errorf("%w: %w", errTransport, err)
	}

	body, readErr := io.ReadAll(response.Body)
	closeErr := response.Body.Close()

	err = errors.Join(readErr, closeErr)
	if err != nil {
		return nil, false, fmt.Errorf("read metadata response: %w", err)
	}

	switch {
	case response.StatusCode == http.StatusOK:
		return body, false, nil
	case retryable(response.StatusCode):
		return nil, true, fmt.Errorf("%w: %d", errRetryableStatus, response.StatusCode)
	default:
		return nil, false, fmt.Errorf(
			"%w: %d (%s)",
			errUnexpectedStatus,
			response.StatusCode,
			strings.TrimSpace(string(body)),
		)
	}
}

func retryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return status >= http.StatusInternalServerError && status != http.StatusNotImplemented
	}
}
