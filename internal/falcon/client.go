// Package falcon assembles an authenticated Falcon API client from configuration.
//
// A Client owns one credential cache. It is created empty by New, filled by the
// first call that needs a token, replaced on every refresh and cleared by Close.
package falcon

import (
	"net/http"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/circuitbreaker"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	commonhttp "github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/http"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/ratelimit"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/config"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/dispatch"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/oauth2"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/transport"
)

// Client bundles the token provider, transport and dispatcher for one account
type Client struct {
	cache      *oauth2.Cache
	provider   *oauth2.Provider
	transport  *transport.Transport
	dispatcher *dispatch.Dispatcher
	breakers   []*circuitbreaker.Breaker
	limiter    ratelimit.Limiter
	logger     logging.Logger
}

type options struct {
	logger    logging.Logger
	catalog   *catalog.Catalog
	roundTrip http.RoundTripper
}

// Option customizes New
type Option func(*options)

// WithLogger sets the logger shared by every component
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCatalog replaces the default operation catalog
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithRoundTripper sets the underlying HTTP transport
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) { o.roundTrip = rt }
}

// New validates cfg and wires a client. No network call is made.
func New(cfg config.Falcon, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.GetGlobalLogger()
	}
	if o.catalog == nil {
		o.catalog = catalog.Default()
	}

	httpOpts := []commonhttp.ClientOption{
		commonhttp.WithTimeout(cfg.HTTPTimeout),
		commonhttp.WithUserAgent(cfg.UserAgent),
	}
	if o.roundTrip != nil {
		httpOpts = append(httpOpts, commonhttp.WithTransport(o.roundTrip))
	}
	httpClient := commonhttp.NewHTTPClient(httpOpts...)

	oauthBreaker := circuitbreaker.NewGoBreaker("falcon-oauth2", circuitbreaker.OAuthConfig, o.logger)
	apiBreaker := circuitbreaker.NewGoBreaker("falcon-api", circuitbreaker.APIConfig, o.logger)

	cache := oauth2.NewCache()
	provider, err := oauth2.NewProvider(oauth2.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		BaseURL:      cfg.BaseURL,
	}, cache,
		oauth2.WithHTTPClient(httpClient),
		oauth2.WithSafetyMargin(cfg.TokenSafetyMargin),
		oauth2.WithBreaker(oauthBreaker),
		oauth2.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	var rateLimiter ratelimit.Limiter
	transportOpts := []transport.Option{
		transport.WithHTTPClient(httpClient),
		transport.WithBreaker(apiBreaker),
		transport.WithLogger(o.logger),
	}
	if cfg.RateLimitRPS > 0 {
		limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
			Enabled:           true,
		})
		if err != nil {
			return nil, errors.ConfigError(err.Error())
		}
		transportOpts = append(transportOpts, transport.WithRateLimiter(limiter))
		rateLimiter = limiter
	}

	tr := transport.New(cfg.BaseURL, provider, transportOpts...)

	return &Client{
		cache:      cache,
		provider:   provider,
		transport:  tr,
		dispatcher: dispatch.New(o.catalog, tr, o.logger),
		breakers:   []*circuitbreaker.Breaker{oauthBreaker, apiBreaker},
		limiter:    rateLimiter,
		logger:     o.logger,
	}, nil
}

// Dispatcher returns the batching dispatcher
func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// Provider returns the token provider
func (c *Client) Provider() *oauth2.Provider {
	return c.provider
}

// Transport returns the authenticated transport
func (c *Client) Transport() *transport.Transport {
	return c.transport
}

// BreakerStats reports the state of the token and API circuit breakers
func (c *Client) BreakerStats() []circuitbreaker.Stats {
	stats := make([]circuitbreaker.Stats, 0, len(c.breakers))
	for _, b := range c.breakers {
		stats = append(stats, b.Stats())
	}
	return stats
}

// LimiterStats reports the outbound rate limiter, or nil when throttling is off
func (c *Client) LimiterStats() *ratelimit.Stats {
	if c.limiter == nil {
		return nil
	}
	stats := c.limiter.Stats()
	return &stats
}

// Close discards the cached credential
func (c *Client) Close() error {
	c.cache.Clear()
	c.logger.Debug("Falcon client closed")
	return nil
}
