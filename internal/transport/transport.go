// Package transport sends authenticated requests described by catalog operations to the Falcon API
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/circuitbreaker"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/ratelimit"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/oauth2"
	"github.com/google/uuid"
)

// maxResponseSize bounds how much of a response body is read
const maxResponseSize = 32 << 20

// TokenSource supplies bearer tokens and replaces rejected ones
type TokenSource interface {
	GetValidToken(ctx context.Context) (*oauth2.Token, error)
	ForceRefresh(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error)
}

// Request carries the per-call parts of an operation
type Request struct {
	PathParams map[string]string
	Query      url.Values
	// Body is JSON encoded when non-nil
	Body interface{}
}

// Response is a decoded 2xx response
type Response struct {
	StatusCode int
	Body       []byte
	Envelope   Envelope
	RequestID  string
}

// Transport executes catalog operations
type Transport struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
	limiter ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

// Option configures the Transport
type Option func(*Transport)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithRateLimiter throttles outbound attempts
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(t *Transport) { t.limiter = l }
}

// WithBreaker sets the circuit breaker guarding API calls
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(t *Transport) { t.breaker = b }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// New creates a transport for the API at baseURL
func New(baseURL string, tokens TokenSource, opts ...Option) *Transport {
	t := &Transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logging.GetGlobalLogger()
	}
	if t.breaker == nil {
		t.breaker = circuitbreaker.NewGoBreaker("falcon-api", circuitbreaker.APIConfig, t.logger)
	}
	return t
}

// Call executes op once, retrying a single time with a fresh token when the
// first attempt is rejected with 401 or 403.
func (t *Transport) Call(ctx context.Context, op catalog.Operation, req Request) (*Response, error) {
	path, err := op.BuildPath(req.PathParams)
	if err != nil {
		return nil, err
	}

	target := t.baseURL + path
	if encoded := op.BuildQuery(req.Query).Encode(); encoded != "" {
		target += "?" + encoded
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, errors.InvalidArgumentError(fmt.Sprintf("request body for %s is not serializable: %v", op.Name, err))
		}
	}

	token, err := t.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.attempt(ctx, op, target, body, token)
	if err != nil {
		return nil, err
	}

	if isAuthFailure(resp.StatusCode) {
		t.logger.WithContext(ctx).Info("Falcon rejected token, refreshing once",
			logging.Field{Key: "operation", Value: op.Name},
			logging.Field{Key: "status", Value: resp.StatusCode},
		)

		token, err = t.tokens.ForceRefresh(ctx, token)
		if err != nil {
			return nil, err
		}

		resp, err = t.attempt(ctx, op, target, body, token)
		if err != nil {
			return nil, err
		}
		if isAuthFailure(resp.StatusCode) {
			authErr := errors.AuthError(fmt.Sprintf("%s rejected after credential refresh", op.Name))
			authErr.StatusCode = resp.StatusCode
			authErr.Body = string(resp.Body)
			return nil, authErr
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.RemoteError(resp.StatusCode, string(resp.Body)).
			WithContext("operation", op.Name).
			WithContext("request_id", resp.RequestID)
	}

	if len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, &resp.Envelope); err != nil {
			return nil, errors.TransportError(fmt.Sprintf("malformed response body from %s", op.Name), err)
		}
	}

	if len(resp.Envelope.Errors) > 0 {
		t.logger.WithContext(ctx).Warn("Falcon reported errors in a successful response",
			logging.Field{Key: "operation", Value: op.Name},
			logging.Field{Key: "errors", Value: resp.Envelope.Errors},
		)
	}

	return resp, nil
}

// attempt sends one request. 5xx responses come back as RemoteError so the
// breaker counts them; every other status is returned for Call to classify.
func (t *Transport) attempt(ctx context.Context, op catalog.Operation, target string, body []byte, token *oauth2.Token) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, errors.TransportError("rate limiter wait aborted", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, op.Method, target, reader)
	if err != nil {
		return nil, errors.TransportError(fmt.Sprintf("failed to build request for %s", op.Name), err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Authorization", token.AuthorizationHeader())
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-Id", requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp := &Response{RequestID: requestID}
	start := time.Now()
	err = t.breaker.Execute(ctx, func() error {
		httpResp, err := t.client.Do(httpReq)
		if err != nil {
			return errors.TransportError(fmt.Sprintf("%s %s failed", op.Method, op.Name), err)
		}
		defer httpResp.Body.Close()

		resp.StatusCode = httpResp.StatusCode
		resp.Body, err = io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		if err != nil {
			return errors.TransportError(fmt.Sprintf("failed to read %s response", op.Name), err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return errors.RemoteError(resp.StatusCode, string(resp.Body)).
				WithContext("operation", op.Name).
				WithContext("request_id", requestID)
		}
		return nil
	})

	t.logger.WithContext(ctx).Debug("Falcon API call",
		logging.Field{Key: "operation", Value: op.Name},
		logging.Field{Key: "method", Value: op.Method},
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		logging.Field{Key: "request_id", Value: requestID},
	)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func isAuthFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
