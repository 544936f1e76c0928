// Package handlers exposes the action registry over HTTP
package handlers

import (
	"context"
	"encoding/json"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/actions"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/circuitbreaker"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/ratelimit"
)

// Runner executes registered actions
type Runner interface {
	Names() []string
	Lookup(name string) (actions.Action, error)
	Run(ctx context.Context, name string, raw json.RawMessage) (actions.Result, error)
}

// StatusReporter reports client-side protection state for the health check
type StatusReporter interface {
	BreakerStats() []circuitbreaker.Stats
	LimiterStats() *ratelimit.Stats
}

type Handlers struct {
	runner  Runner
	status  StatusReporter
	version string
	logger  logging.Logger
}

// New creates the HTTP handlers. status may be nil.
func New(runner Runner, status StatusReporter, version string, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		runner:  runner,
		status:  status,
		version: version,
		logger:  logger,
	}
}
