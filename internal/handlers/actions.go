package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/circuitbreaker"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/gorilla/mux"
)

// maxArgsSize bounds an action request body
const maxArgsSize = 10 << 20

// ActionInfo describes a registered action
type ActionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RunAction handles POST /actions/{name}. The body is the action's JSON arguments.
func (h *Handlers) RunAction(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxArgsSize))
	if err != nil {
		WriteError(w, r, errors.InvalidArgumentError(fmt.Sprintf("failed to read arguments: %v", err)))
		return
	}

	h.logger.WithContext(r.Context()).Debug("Action requested",
		logging.Field{Key: "action", Value: name},
		logging.Field{Key: "args_bytes", Value: len(raw)},
	)

	result, err := h.runner.Run(r.Context(), name, json.RawMessage(raw))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{Result: result})
}

// ListActions handles GET /actions
func (h *Handlers) ListActions(w http.ResponseWriter, r *http.Request) {
	names := h.runner.Names()
	infos := make([]ActionInfo, 0, len(names))
	for _, name := range names {
		info := ActionInfo{Name: name}
		if action, err := h.runner.Lookup(name); err == nil {
			info.Description = action.Description()
		}
		infos = append(infos, info)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": infos})
}

// HealthCheck handles GET /health. An open breaker reports the service as degraded.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	status := http.StatusOK
	if h.status != nil {
		stats := h.status.BreakerStats()
		health["breakers"] = stats
		for _, s := range stats {
			if s.State == circuitbreaker.StateOpen.String() {
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		if limiter := h.status.LimiterStats(); limiter != nil {
			health["rate_limit"] = limiter
		}
	}

	writeJSON(w, status, health)
}

// Routes registers the handlers on r. protected wraps the /actions routes only.
func (h *Handlers) Routes(r *mux.Router, protected ...mux.MiddlewareFunc) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/actions").Subrouter()
	api.Use(protected...)
	api.HandleFunc("", h.ListActions).Methods(http.MethodGet)
	api.HandleFunc("/{name}", h.RunAction).Methods(http.MethodPost)
}
