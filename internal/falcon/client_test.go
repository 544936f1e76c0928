package falcon

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/catalog"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/circuitbreaker"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/config"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/dispatch"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) config.Falcon {
	return config.Falcon{
		BaseURL:           baseURL,
		ClientID:          "client",
		ClientSecret:      "secret",
		HTTPTimeout:       5 * time.Second,
		TokenSafetyMargin: 30 * time.Second,
		RateLimitRPS:      100,
		RateLimitBurst:    10,
		UserAgent:         "connector-test/1.0",
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig("https://api.crowdstrike.com")
	cfg.ClientSecret = ""

	client, err := New(cfg)
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Equal(t, errors.ErrTypeConfig, errors.GetType(err))
}

func TestNew_NoNetworkUntilUsed(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)

	client, err := New(testConfig(fake.URL()))
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 0, fake.CallCount())
}

func TestClient_EndToEnd(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", testutil.EchoIDs("ids"))

	client, err := New(testConfig(fake.URL()))
	require.NoError(t, err)

	ctx := context.Background()
	records, err := dispatch.Collect(client.Dispatcher().Dispatch(ctx, catalog.DevicesGet, []string{"h1", "h2"}, dispatch.Params{}))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	api := fake.APIRequests()
	require.Len(t, api, 1)
	assert.Equal(t, "connector-test/1.0", api[0].Header.Get("User-Agent"))
	assert.Equal(t, 1, fake.TokenCalls())

	// the cached token survives until Close
	_, err = dispatch.Collect(client.Dispatcher().Dispatch(ctx, catalog.DevicesGet, []string{"h3"}, dispatch.Params{}))
	require.NoError(t, err)
	assert.Equal(t, 1, fake.TokenCalls())

	require.NoError(t, client.Close())
	_, err = dispatch.Collect(client.Dispatcher().Dispatch(ctx, catalog.DevicesGet, []string{"h4"}, dispatch.Params{}))
	require.NoError(t, err)
	assert.Equal(t, 2, fake.TokenCalls())

	stats := client.BreakerStats()
	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.Equal(t, circuitbreaker.StateClosed.String(), s.State)
	}

	limiter := client.LimiterStats()
	require.NotNil(t, limiter)
	assert.Equal(t, float64(100), limiter.RequestsPerSecond)
	assert.Equal(t, 10, limiter.BurstSize)
}

func TestClient_LimiterDisabled(t *testing.T) {
	cfg := testConfig("https://api.crowdstrike.com")
	cfg.RateLimitRPS = 0

	client, err := New(cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.Nil(t, client.LimiterStats())
}

func TestClient_RetriesOnceAfterRevocation(t *testing.T) {
	fake := testutil.NewFakeFalcon(t)
	fake.Handle(http.MethodPost, "/devices/entities/devices/v2", testutil.EchoIDs("ids"))

	client, err := New(testConfig(fake.URL()))
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	token, err := client.Provider().GetValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", token.AccessToken)

	fake.RevokeTokens()

	records, err := dispatch.Collect(client.Dispatcher().Dispatch(ctx, catalog.DevicesGet, []string{"h1"}, dispatch.Params{}))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	api := fake.APIRequests()
	require.Len(t, api, 2)
	assert.Equal(t, "Bearer token-1", api[0].Header.Get("Authorization"))
	assert.Equal(t, "Bearer token-2", api[1].Header.Get("Authorization"))
}
