package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/circuitbreaker"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/ratelimit"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/oauth2"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransport(t *testing.T, fake *testutil.FakeFalcon, opts ...Option) *Transport {
	t.Helper()

	provider, err := oauth2.NewProvider(oauth2.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      fake.URL(),
	}, oauth2.NewCache())
	require.NoError(t, err)

	opts = append([]Option{WithBreaker(circuitbreaker.NewGoBreaker(t.Name(), circuitbreaker.APIConfig, nil))}, opts...)
	return New(fake.URL(), provider, opts...)
}

func resolve(t *testing.T, name string) catalog.Operation {
	t.Helper()
	op, err := catalog.Default().Resolve(name)
	require.NoError(t, err)
	return op
}

// staticTokens hands out a fixed token and counts forced refreshes
type staticTokens struct {
	refreshes int32
}

func (s *staticTokens) GetValidToken(context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "static", TokenType: "bearer", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (s *staticTokens) ForceRefresh(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
	atomic.AddInt32(&s.refreshes, 1)
	return s.GetValidToken(ctx)
}

func TestCall_Success(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", testutil.EchoIDs("ids"))

	tr := newTestTransport(t, fake)
	op := resolve(t, catalog.DevicesGet)

	resp, err := tr.Call(context.Background(), op, Request{Body: map[string][]string{"ids": {"a", "b"}}})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, resp.Envelope.Resources, 2)
	assert.JSONEq(t, `{"id":"a"}`, string(resp.Envelope.Resources[0]))
	assert.NotEmpty(t, resp.RequestID)

	assert.Equal(t, 2, fake.CallCount(), "one token exchange plus one business call")
	assert.Equal(t, 1, fake.TokenCalls())

	api := fake.APIRequests()
	require.Len(t, api, 1)
	assert.Equal(t, "Bearer token-1", api[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", api[0].Header.Get("Content-Type"))
	assert.Equal(t, resp.RequestID, api[0].Header.Get("X-Request-Id"))
	assert.JSONEq(t, `{"ids":["a","b"]}`, string(api[0].Body))
}

func TestCall_ReusesToken(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", testutil.EchoIDs("ids"))

	tr := newTestTransport(t, fake)
	op := resolve(t, catalog.DevicesGet)

	for i := 0; i < 5; i++ {
		_, err := tr.Call(context.Background(), op, Request{Body: map[string][]string{"ids": {"a"}}})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, fake.TokenCalls())
	assert.Len(t, fake.APIRequests(), 5)
}

func TestCall_QueryIDsAndDefaults(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodGet, "/devices/entities/online-state/v1", testutil.EchoIDs("ids"))
	fake.Handle(http.MethodPost, "/iocs/entities/indicators/v1", testutil.EchoIDs("indicators"))

	tr := newTestTransport(t, fake)

	resp, err := tr.Call(context.Background(), resolve(t, catalog.DevicesOnlineState), Request{
		Query: url.Values{"ids": {"a b", "c&d"}},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Envelope.Resources, 2)

	_, err = tr.Call(context.Background(), resolve(t, catalog.IOCsCreate), Request{
		Body: map[string]interface{}{"indicators": []interface{}{}},
	})
	require.NoError(t, err)

	api := fake.APIRequests()
	require.Len(t, api, 2)
	assert.Equal(t, []string{"a b", "c&d"}, api[0].Query["ids"])
	assert.Empty(t, api[0].Body)
	assert.Equal(t, "false", api[1].Query.Get("retrodetects"))
	assert.Equal(t, "true", api[1].Query.Get("ignore_warnings"))
}

func TestCall_PathParams(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodGet, "/things/{id}/detail", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteResources(w, []string{r.URL.EscapedPath()})
	})

	tr := newTestTransport(t, fake)
	op := catalog.Operation{Name: "things.detail", Method: http.MethodGet, PathTemplate: "/things/{id}/detail"}

	resp, err := tr.Call(context.Background(), op, Request{PathParams: map[string]string{"id": "x y"}})
	require.NoError(t, err)
	assert.JSONEq(t, `"/things/x%20y/detail"`, string(resp.Envelope.Resources[0]))

	_, err = tr.Call(context.Background(), op, Request{})
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Len(t, fake.APIRequests(), 1, "missing path parameter never reaches the network")
}

func TestCall_RetriesOnceAfterRevokedToken(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/incidents/entities/incidents/GET/v1", testutil.EchoIDs("ids"))

	tr := newTestTransport(t, fake)
	op := resolve(t, catalog.IncidentsGet)
	body := map[string][]string{"ids": {"inc:1"}}

	_, err := tr.Call(context.Background(), op, Request{Body: body})
	require.NoError(t, err)

	fake.RevokeTokens()

	resp, err := tr.Call(context.Background(), op, Request{Body: body})
	require.NoError(t, err)
	assert.Len(t, resp.Envelope.Resources, 1)

	assert.Equal(t, 2, fake.TokenCalls())
	api := fake.APIRequests()
	require.Len(t, api, 3)
	assert.Equal(t, "Bearer token-1", api[1].Header.Get("Authorization"))
	assert.Equal(t, "Bearer token-2", api[2].Header.Get("Authorization"))
}

func TestCall_RefreshesExpiredTokenBeforeCalling(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", testutil.EchoIDs("ids"))

	now := time.Now()
	provider, err := oauth2.NewProvider(oauth2.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      fake.URL(),
	}, oauth2.NewCache(), oauth2.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	tr := New(fake.URL(), provider, WithBreaker(circuitbreaker.NewGoBreaker(t.Name(), circuitbreaker.APIConfig, nil)))

	op := resolve(t, catalog.DevicesGet)
	body := map[string][]string{"ids": {"a"}}

	_, err = tr.Call(context.Background(), op, Request{Body: body})
	require.NoError(t, err)

	// token-1 is still accepted by the API but sits inside the 30s safety margin
	now = now.Add(1780 * time.Second)
	_, err = tr.Call(context.Background(), op, Request{Body: body})
	require.NoError(t, err)

	paths := make([]string, 0, 4)
	for _, req := range fake.Requests() {
		paths = append(paths, req.Path)
	}
	assert.Equal(t, []string{
		"/oauth2/token",
		"/devices/entities/devices/v2",
		"/oauth2/token",
		"/devices/entities/devices/v2",
	}, paths)

	api := fake.APIRequests()
	require.Len(t, api, 2)
	assert.Equal(t, "Bearer token-1", api[0].Header.Get("Authorization"))
	assert.Equal(t, "Bearer token-2", api[1].Header.Get("Authorization"))
}

func TestCall_PersistentAuthFailure(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			fake := testutil.NewFakeFalcon(t)
			fake.Handle(http.MethodPost, "/alerts/entities/alerts/v2", func(w http.ResponseWriter, r *http.Request) {
				testutil.WriteErrors(w, status, "denied")
			})

			tr := newTestTransport(t, fake)
			_, err := tr.Call(context.Background(), resolve(t, catalog.AlertsGet), Request{
				Body: map[string][]string{"composite_ids": {"x"}},
			})

			require.Error(t, err)
			assert.True(t, errors.IsAuth(err))
			assert.Equal(t, status, errors.StatusCode(err))
			assert.Len(t, fake.APIRequests(), 2, "exactly one retry")
			assert.Equal(t, 2, fake.TokenCalls())
		})
	}
}

func TestCall_RemoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"bad request", http.StatusBadRequest},
		{"rate limited", http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeFalcon(t)
			fake.Handle(http.MethodGet, "/policy/entities/prevention/v1", func(w http.ResponseWriter, r *http.Request) {
				testutil.WriteErrors(w, tt.status, "nope")
			})

			tr := newTestTransport(t, fake)
			_, err := tr.Call(context.Background(), resolve(t, catalog.PreventionGet), Request{
				Query: url.Values{"ids": {"p1"}},
			})

			require.Error(t, err)
			assert.True(t, errors.IsRemote(err))
			assert.Equal(t, tt.status, errors.StatusCode(err))
			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Contains(t, appErr.Body, "nope")
			assert.Len(t, fake.APIRequests(), 1, "no retry")
		})
	}
}

func TestCall_MalformedBody(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>proxy</html>"))
	})

	tr := newTestTransport(t, fake)
	_, err := tr.Call(context.Background(), resolve(t, catalog.DevicesGet), Request{
		Body: map[string][]string{"ids": {"a"}},
	})
	assert.True(t, errors.IsTransport(err))
}

func TestCall_EmptySuccessBody(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodDelete, "/iocs/entities/indicators/v1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tr := newTestTransport(t, fake)
	resp, err := tr.Call(context.Background(), resolve(t, catalog.IOCsDelete), Request{
		Query: url.Values{"ids": {"i1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Envelope.Resources)
}

func TestCall_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	tokens := &staticTokens{}
	tr := New(baseURL, tokens, WithBreaker(circuitbreaker.NewGoBreaker(t.Name(), circuitbreaker.APIConfig, nil)))

	_, err := tr.Call(context.Background(), resolve(t, catalog.DevicesGet), Request{
		Body: map[string][]string{"ids": {"a"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Zero(t, atomic.LoadInt32(&tokens.refreshes))
}

func TestCall_TimeoutLeavesTokenAlone(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		testutil.WriteResources(w, []string{})
	})

	tr := newTestTransport(t, fake, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	op := resolve(t, catalog.DevicesGet)

	_, err := tr.Call(context.Background(), op, Request{Body: map[string][]string{"ids": {"a"}}})
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))

	_, _ = tr.Call(context.Background(), op, Request{Body: map[string][]string{"ids": {"a"}}})
	assert.Equal(t, 1, fake.TokenCalls(), "a timeout does not invalidate the cached token")
}

func TestCall_TokenExchangeFailure(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.SetTokenResponse(http.StatusUnauthorized, `{"errors":[{"code":401,"message":"access denied, invalid client"}]}`)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", testutil.EchoIDs("ids"))

	tr := newTestTransport(t, fake)
	_, err := tr.Call(context.Background(), resolve(t, catalog.DevicesGet), Request{
		Body: map[string][]string{"ids": {"a"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsAuth(err))
	assert.Empty(t, fake.APIRequests())
}

func TestCall_UnserializableBody(t *testing.T) {
	tr := New("http://127.0.0.1:1", &staticTokens{})
	_, err := tr.Call(context.Background(), resolve(t, catalog.DevicesGet), Request{
		Body: map[string]interface{}{"bad": make(chan int)},
	})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCall_RateLimiterCancelled(t *testing.T) {
	limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{RequestsPerSecond: 0.01, BurstSize: 1, Enabled: true})
	require.NoError(t, err)
	require.True(t, limiter.TryAcquire())

	tr := New("http://127.0.0.1:1", &staticTokens{}, WithRateLimiter(limiter))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.Call(ctx, resolve(t, catalog.DevicesGet), Request{
		Body: map[string][]string{"ids": {"a"}},
	})
	assert.True(t, errors.IsTransport(err))
}

func TestEnvelope_Decode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		resources  int
		offset     Cursor
		total      int
		after      string
		errorCount int
	}{
		{
			name:      "numeric offset",
			body:      `{"meta":{"pagination":{"offset":100,"limit":100,"total":250}},"resources":["a","b"],"errors":[]}`,
			resources: 2, offset: "100", total: 250,
		},
		{
			name:      "scroll offset",
			body:      `{"meta":{"pagination":{"offset":"FQoGZXIvYXdzE","limit":5000,"total":3}},"resources":["a"]}`,
			resources: 1, offset: "FQoGZXIvYXdzE", total: 3,
		},
		{
			name:      "after cursor",
			body:      `{"meta":{"pagination":{"limit":2,"total":9,"after":"WzE2MDAsImlkIl0="}},"resources":["a","b"]}`,
			resources: 2, after: "WzE2MDAsImlkIl0=", total: 9,
		},
		{
			name:       "null resources with errors",
			body:       `{"meta":{},"resources":null,"errors":[{"code":404,"message":"not found","id":"x"}]}`,
			errorCount: 1,
		},
		{
			name:      "single object resource",
			body:      `{"meta":{},"resources":{"id":"solo"}}`,
			resources: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env Envelope
			require.NoError(t, json.Unmarshal([]byte(tt.body), &env))
			assert.Len(t, env.Resources, tt.resources)
			assert.Len(t, env.Errors, tt.errorCount)
			if env.Meta.Pagination != nil {
				assert.Equal(t, tt.offset, env.Meta.Pagination.Offset)
				assert.Equal(t, tt.total, env.Meta.Pagination.Total)
				assert.Equal(t, tt.after, env.Meta.Pagination.After)
			}
		})
	}
}

func TestCursor_Int(t *testing.T) {
	n, ok := Cursor("40").Int()
	assert.True(t, ok)
	assert.Equal(t, 40, n)

	_, ok = Cursor("abc").Int()
	assert.False(t, ok)

	var c Cursor
	require.NoError(t, json.Unmarshal([]byte("null"), &c))
	assert.Equal(t, Cursor(""), c)
}
