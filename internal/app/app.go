package app

import (
	"net/http"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/actions"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/auth"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/logging"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/ratelimit"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/config"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/falcon"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/handlers"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/middleware"
	"github.com/gorilla/mux"
)

// App holds all the application dependencies
type App struct {
	Config *config.Config
	Client *falcon.Client
	Runner *actions.Runner
	Auth   *auth.Auth
	Logger logging.Logger
}

// New wires the Falcon client and the action registry. No network call is made.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	client, err := falcon.New(cfg.Falcon, falcon.WithLogger(logging.GetGlobalLogger()))
	if err != nil {
		return nil, err
	}
	app.Client = client

	runner, err := actions.NewRunner(client.Dispatcher(), client.Provider(), nil)
	if err != nil {
		return nil, errors.InternalError("failed to register actions", err)
	}
	app.Runner = runner

	if cfg.JWTSecret != "" {
		app.Auth, err = auth.New(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Router builds the serve-mode HTTP handler
func (app *App) Router() (http.Handler, error) {
	var protected []mux.MiddlewareFunc

	if rps := app.Config.APIRateLimit; rps > 0 {
		limiter, err := ratelimit.NewLocalLimiter(ratelimit.Config{
			RequestsPerSecond: rps,
			BurstSize:         int(rps) * 2,
			Enabled:           true,
		})
		if err != nil {
			return nil, errors.ConfigError(err.Error())
		}
		protected = append(protected, middleware.RateLimit(limiter, handlers.WriteError))
	}

	if app.Auth != nil {
		protected = append(protected, app.Auth.RequireAuth(handlers.WriteError))
	} else {
		app.Logger.Warn("API_JWT_SECRET is not set, action endpoints are unauthenticated")
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		handlers.WriteError(w, req, errors.NotFoundError("route "+req.URL.Path))
	})
	handlers.New(app.Runner, app.Client, config.Version, nil).Routes(r, protected...)

	return middleware.RequestID(middleware.LoggingMiddleware(nil)(r)), nil
}

// Cleanup releases the cached credential
func (app *App) Cleanup() {
	if app.Client != nil {
		_ = app.Client.Close()
	}
}
