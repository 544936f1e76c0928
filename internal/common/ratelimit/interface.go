package ratelimit

import (
	"context"
)

// Limiter defines the rate limiting operations used by the transport and the serve mode
type Limiter interface {
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	TryAcquire() bool

	// Key-based rate limiting for per-caller restrictions
	TryAcquireForKey(key string) bool

	Stats() Stats
}

// Stats is a point-in-time view of a limiter
type Stats struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	BurstSize         int     `json:"burst_size"`
	// AvailableTokens is the unkeyed bucket level; it goes negative while callers queue in Wait
	AvailableTokens float64 `json:"available_tokens"`
	ActiveKeys      int     `json:"active_keys"`
}
