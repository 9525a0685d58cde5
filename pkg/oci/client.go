// Package oci hosts a typed client for the Oracle Cloud Infrastructure control-plane APIs
// the GPU cluster tooling inspects and provisions.
package oci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oracle/oci-go-sdk/v65/announcementsservice"
	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/common/auth"
	"github.com/oracle/oci-go-sdk/v65/containerengine"
	"github.com/oracle/oci-go-sdk/v65/core"
	"github.com/oracle/oci-go-sdk/v65/identity"
	"github.com/oracle/oci-go-sdk/v65/identitydomains"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// AuthAPIKey authenticates with the API signing key of an OCI config file profile.
	AuthAPIKey = "api_key"
	// AuthInstancePrincipal authenticates as the instance the tool runs on.
	AuthInstancePrincipal = "instance_principal"

	defaultRequestsPerSecond = 10
	defaultBurst             = 4
	defaultPageLimit         = 1000
)

var userHomeDir = os.UserHomeDir //nolint:gochecknoglobals // replaceable for tests

var (
	errUnsupportedAuth = errors.New("oci: unsupported auth method")
	errMissingProvider = errors.New("oci: configuration provider is required")
)

// Observer receives one notification per API call. It is used for run metrics.
type Observer interface {
	ObserveRequest(operation string, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, error) {}

// Config configures New.
type Config struct {
	Provider          common.ConfigurationProvider
	Region            string
	RequestsPerSecond float64
	Burst             int
	Observer          Observer
	Logger            *zap.Logger
}

// Client issues typed calls against the compute, network, identity, identity domains,
// container engine and announcements services. One Client is built per process and its SDK clients are reused for
// every call.
type Client struct {
	compute       computeAPI
	network       networkAPI
	blockstorage  blockstorageAPI
	identity      identityAPI
	containers    containerEngineAPI
	announcements announcementsAPI
	domains       func(endpoint string) (identityDomainsAPI, error)

	limiter  *rate.Limiter
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

// NewConfigurationProvider returns the SDK configuration provider for the chosen auth method.
//
//nolint:ireturn // the SDK models providers as an interface.
func NewConfigurationProvider(method, configPath, profile string) (common.ConfigurationProvider, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", AuthAPIKey:
		if strings.TrimSpace(configPath) == "" {
			return common.DefaultConfigProvider(), nil
		}

		return common.CustomProfileConfigProvider(expandHome(configPath), profile), nil
	case AuthInstancePrincipal:
		provider, err := auth.InstancePrincipalConfigurationProvider()
		if err != nil {
			return nil, fmt.Errorf("build instance principal provider: %w", err)
		}

		return provider, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedAuth, method)
	}
}

// New constructs a Client backed by the OCI Go SDK.
func New(cfg Config) (*Client, error) {
	if cfg.Provider == nil {
		return nil, errMissingProvider
	}

	computeClient, err := core.NewComputeClientWithConfigurationProvider(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("create compute client: %w", err)
	}

	networkClient, err := core.NewVirtualNetworkClientWithConfigurationProvider(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("create virtual network client: %w", err)
	}

	blockstorageClient, err := core.NewBlockstorageClientWithConfigurationProvider(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("create blockstorage client: %w", err)
	}

	identityClient, err := identity.NewIdentityClientWithConfigurationProvider(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("create identity client: %w", err)
	}

	containerClient, err := containerengine.NewContainerEngineClientWithConfigurationProvider(
		cfg.Provider,
	)
	if err != nil {
		return nil, fmt.Errorf("create container engine client: %w", err)
	}

	announcementClient, err := announcementsservice.NewAnnouncementClientWithConfigurationProvider(
		cfg.Provider,
	)
	if err != nil {
		return nil, fmt.Errorf("create announcements client: %w", err)
	}

	if region := strings.TrimSpace(cfg.Region); region != "" {
		computeClient.SetRegion(region)
		networkClient.SetRegion(region)
		blockstorageClient.SetRegion(region)
		identityClient.SetRegion(region)
		containerClient.SetRegion(region)
		announcementClient.SetRegion(region)
	}

	svc := services{
		compute:       &computeClient,
		network:       &networkClient,
		blockstorage:  &blockstorageClient,
		identity:      &identityClient,
		containers:    &containerClient,
		announcements: &announcementClient,
		domains: func(endpoint string) (identityDomainsAPI, error) {
			domainClient, domainErr := identitydomains.NewIdentityDomainsClientWithConfigurationProvider(
				cfg.Provider,
				endpoint,
			)
			if domainErr != nil {
				return nil, fmt.Errorf("create identity domains client: %w", domainErr)
			}

			return &domainClient, nil
		},
	}

	return newClient(svc, cfg), nil
}

type services struct {
	compute       computeAPI
	network       networkAPI
	blockstorage  blockstorageAPI
	identity      identityAPI
	containers    containerEngineAPI
	announcements announcementsAPI
	domains       func(endpoint string) (identityDomainsAPI, error)
}

func newClient(svc services, cfg Config) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		compute:       svc.compute,
		network:       svc.network,
		blockstorage:  svc.blockstorage,
		identity:      svc.identity,
		containers:    svc.containers,
		announcements: svc.announcements,
		domains:       svc.domains,
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
		observer:      observer,
		logger:        logger,
		now:           time.Now,
	}
}

// do paces, executes and accounts for one API call. Calls are never retried.
func (c *Client) do(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	if c == nil {
		return errNilClient
	}

	waitErr := c.limiter.Wait(ctx)
	if waitErr != nil {
		return wrapRequestError(operation, fmt.Errorf("wait for request budget: %w", waitErr))
	}

	started := c.now()
	err := call(ctx)
	c.observer.ObserveRequest(operation, err)

	if err != nil {
		c.logger.Debug(
			"oci request failed",
			zap.String("operation", operation),
			zap.Duration("elapsed", c.now().Sub(started)),
			zap.Error(err),
		)

		return wrapRequestError(operation, err)
	}

	c.logger.Debug(
		"oci request completed",
		zap.String("operation", operation),
		zap.Duration("elapsed", c.now().Sub(started)),
	)

	return nil
}

// listAll follows opc-next-page until the listing is exhausted.
func listAll[T any](
	ctx context.Context,
	c *Client,
	operation string,
	fetch func(ctx context.Context, page *string) ([]T, *string, error),
) (Page[T], error) {
	var pageToken *string

	items := make([]T, 0)

	for {
		var (
			batch []T
			next  *string
		)

		err := c.do(ctx, operation, func(ctx context.Context) error {
			var fetchErr error

			batch, next, fetchErr = fetch(ctx, pageToken)

			return fetchErr
		})
		if err != nil {
			return Page[T]{}, err
		}

		items = append(items, batch...)

		pageToken = normalizePageToken(next)
		if pageToken == nil {
			break
		}
	}

	return Page[T]{Data: items}, nil
}

func normalizePageToken(token *string) *string {
	if token == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*token)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}

// noRetry disables the SDK's default retry policy for a single request.
func noRetry() common.RequestMetadata {
	policy := common.NoRetryPolicy()

	return common.RequestMetadata{RetryPolicy: &policy}
}

func pageLimit() *int {
	return common.Int(defaultPageLimit)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}

	return *value
}

func derefInt64(value *int64) int64 {
	if value == nil {
		return 0
	}

	return *value
}

func derefBool(value *bool) bool {
	return value != nil && *value
}

func sdkTime(value *common.SDKTime) *time.Time {
	if value == nil {
		return nil
	}

	converted := value.Time

	return &converted
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := userHomeDir()
	if err != nil || home == "" {
		return path
	}

	return home + path[1:]
}
