package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/circuitbreaker"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultSafetyMargin is how long before expiry a cached token is considered stale
const DefaultSafetyMargin = 30 * time.Second

// maxTokenResponseSize bounds the token endpoint body we are willing to read
const maxTokenResponseSize = 1 << 20

// Provider exchanges client credentials for bearer tokens and keeps the current one cached
type Provider struct {
	creds        Credentials
	cache        *Cache
	httpClient   *http.Client
	breaker      *circuitbreaker.Breaker
	logger       logging.Logger
	safetyMargin time.Duration
	now          func() time.Time

	sf singleflight.Group
}

// Option configures the Provider
type Option func(*Provider)

// WithHTTPClient sets the HTTP client used for token requests
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithSafetyMargin sets how long before expiry the token is refreshed
func WithSafetyMargin(d time.Duration) Option {
	return func(p *Provider) { p.safetyMargin = d }
}

// WithBreaker sets the circuit breaker guarding the token endpoint
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(p *Provider) { p.breaker = b }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates a token provider backed by cache
func NewProvider(creds Credentials, cache *Cache, opts ...Option) (*Provider, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.ConfigError("client id and client secret are required")
	}
	if _, err := url.ParseRequestURI(creds.TokenURL()); err != nil || creds.BaseURL == "" {
		return nil, errors.ConfigError(fmt.Sprintf("invalid base url %q", creds.BaseURL))
	}
	if cache == nil {
		cache = NewCache()
	}

	p := &Provider{
		creds:        creds,
		cache:        cache,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		safetyMargin: DefaultSafetyMargin,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = logging.GetGlobalLogger()
	}
	if p.breaker == nil {
		p.breaker = circuitbreaker.NewGoBreaker("falcon-oauth2", circuitbreaker.OAuthConfig, p.logger)
	}
	if p.safetyMargin < 0 {
		p.safetyMargin = 0
	}

	return p, nil
}

// GetValidToken returns the cached token, exchanging credentials first when it is missing or about to expire
func (p *Provider) GetValidToken(ctx context.Context) (*Token, error) {
	if token, ok := p.cache.Get(p.now(), p.safetyMargin); ok {
		return token, nil
	}
	return p.refresh(ctx)
}

// ForceRefresh replaces the token after the API rejected stale.
// If another caller already replaced it, the newer token is returned without an exchange.
func (p *Provider) ForceRefresh(ctx context.Context, stale *Token) (*Token, error) {
	if current, ok := p.cache.Get(p.now(), p.safetyMargin); ok && (stale == nil || current.AccessToken != stale.AccessToken) {
		return current, nil
	}

	if p.cache.InvalidateIf(stale) {
		p.logger.Debug("Discarded rejected Falcon token")
	}
	return p.refresh(ctx)
}

// Invalidate drops the cached token
func (p *Provider) Invalidate() {
	p.cache.Clear()
}

// TokenSource adapts the provider to golang.org/x/oauth2 so other HTTP clients can reuse it
func (p *Provider) TokenSource(ctx context.Context) xoauth2.TokenSource {
	return &tokenSource{ctx: ctx, provider: p}
}

type tokenSource struct {
	ctx      context.Context
	provider *Provider
}

func (s *tokenSource) Token() (*xoauth2.Token, error) {
	token, err := s.provider.GetValidToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &xoauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		Expiry:      token.ExpiresAt,
	}, nil
}

// refresh runs one exchange shared by every concurrent caller. The exchange is
// detached from the caller that started it and bounded by the HTTP client
// timeout; each caller stops waiting when its own context ends.
func (p *Provider) refresh(ctx context.Context) (*Token, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := p.sf.DoChan("token", func() (interface{}, error) {
		// another flight may have stored a token while we waited
		if token, ok := p.cache.Get(p.now(), p.safetyMargin); ok {
			return token, nil
		}

		token, err := p.exchange(flightCtx)
		if err != nil {
			return nil, err
		}
		p.cache.Store(token)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return nil, errors.TransportError("gave up waiting for token exchange", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			p.logger.Debug("Joined in-flight Falcon token exchange")
		}
		return res.Val.(*Token), nil
	}
}

func (p *Provider) exchange(ctx context.Context) (*Token, error) {
	form := url.Values{
		"client_id":     {p.creds.ClientID},
		"client_secret": {p.creds.ClientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.creds.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.TransportError("failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var (
		status int
		body   []byte
	)
	start := p.now()
	err = p.breaker.Execute(ctx, func() error {
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return errors.TransportError("token request failed", err)
		}
		defer resp.Body.Close()

		status = resp.StatusCode
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
		if err != nil {
			return errors.TransportError("failed to read token response", err)
		}
		if status < 200 || status > 299 {
			authErr := errors.AuthError(fmt.Sprintf("token endpoint returned HTTP %d", status))
			authErr.StatusCode = status
			authErr.Body = string(body)
			return authErr
		}
		return nil
	})
	if err != nil {
		p.logger.Warn("Falcon token exchange failed",
			logging.Field{Key: "status", Value: status},
			logging.Err(err),
		)
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.AuthErrorWithCause("malformed token response", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.AuthError("token response has no access_token")
	}
	if tokenResp.ExpiresIn <= 0 {
		return nil, errors.AuthError(fmt.Sprintf("token response has invalid expires_in %d", tokenResp.ExpiresIn))
	}

	tokenType := tokenResp.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	token := &Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   start.Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}

	p.logger.Info("Falcon token refreshed",
		logging.Field{Key: "expires_in", Value: tokenResp.ExpiresIn},
		logging.Field{Key: "expires_at", Value: token.ExpiresAt},
	)
	return token, nil
}
