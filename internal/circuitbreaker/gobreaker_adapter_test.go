package circuitbreaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(maxFailures int) Config {
	return Config{
		MaxFailures:           maxFailures,
		Timeout:               50 * time.Millisecond,
		MaxConcurrentRequests: 1,
	}
}

func TestBreaker(t *testing.T) {
	logger := logging.GetGlobalLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := NewGoBreaker("test-basic", testConfig(2), logger)

		assert.Equal(t, StateClosed, cb.State())
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "test-basic", cb.Name())
	})

	t.Run("transport failures open the breaker", func(t *testing.T) {
		cb := NewGoBreaker("test-failures", testConfig(3), logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error {
				return errors.TransportError(fmt.Sprintf("failure %d", i), nil)
			})
			assert.Error(t, err)
		}
		assert.Equal(t, StateOpen, cb.State())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("must not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsTransport(err))
		assert.Contains(t, err.Error(), "open")
	})

	t.Run("half-open recovers", func(t *testing.T) {
		cb := NewGoBreaker("test-half-open", testConfig(2), logger)

		for i := 0; i < 2; i++ {
			_ = cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		}
		assert.Equal(t, StateOpen, cb.State())

		time.Sleep(70 * time.Millisecond)
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("client side outcomes do not trip", func(t *testing.T) {
		cb := NewGoBreaker("test-client-errors", testConfig(2), logger)

		outcomes := []error{
			errors.InvalidArgumentError("empty ids"),
			errors.AuthError("bad credentials"),
			errors.RemoteError(404, "not found"),
			errors.RemoteError(400, "bad request"),
			errors.UnknownOperationError("nope"),
		}
		for _, outcome := range outcomes {
			err := cb.Execute(context.Background(), func() error { return outcome })
			assert.Equal(t, outcome, err)
		}
		assert.Equal(t, StateClosed, cb.State())

		for i := 0; i < 2; i++ {
			_ = cb.Execute(context.Background(), func() error { return errors.RemoteError(503, "unavailable") })
		}
		assert.Equal(t, StateOpen, cb.State())
	})

	t.Run("cancelled context is rejected without counting", func(t *testing.T) {
		cb := NewGoBreaker("test-cancelled", testConfig(1), logger)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := cb.Execute(ctx, func() error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, errors.IsTransport(err))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("stats", func(t *testing.T) {
		cb := NewGoBreaker("test-stats", testConfig(10), logger)

		for i := 0; i < 3; i++ {
			_ = cb.Execute(context.Background(), func() error { return nil })
		}
		for i := 0; i < 2; i++ {
			_ = cb.Execute(context.Background(), func() error { return fmt.Errorf("failure") })
		}

		stats := cb.Stats()
		assert.Equal(t, "test-stats", stats.Name)
		assert.Equal(t, "closed", stats.State)
		assert.Equal(t, uint32(5), stats.Requests)
		assert.Equal(t, uint32(2), stats.Failures)
		assert.Equal(t, uint32(2), stats.ConsecutiveFailures)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := NewGoBreaker("test-invalid", Config{}, nil)
		assert.Equal(t, StateClosed, cb.State())
	})
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, APIConfig.Validate())
	assert.NoError(t, OAuthConfig.Validate())
	assert.Error(t, Config{Timeout: time.Second, MaxConcurrentRequests: 1}.Validate())
	assert.Error(t, Config{MaxFailures: 1, MaxConcurrentRequests: 1}.Validate())
	assert.Error(t, Config{MaxFailures: 1, Timeout: time.Second}.Validate())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
