// Package config loads connector configuration from environment variables.
//
// Values come from the process environment, optionally seeded from a .env
// file by the caller (see app.Execute). Load never fails: unset or unparsable
// values fall back to their defaults, and Validate reports everything that is
// still wrong in a single error.
//
// Environment Variables:
//
// Falcon API:
//   - FALCON_BASE_URL: API base URL (default: https://api.crowdstrike.com)
//   - FALCON_CLIENT_ID: OAuth2 client id (required)
//   - FALCON_CLIENT_SECRET: OAuth2 client secret (required)
//   - FALCON_HTTP_TIMEOUT: per-request timeout (default: 30s)
//   - FALCON_TOKEN_SAFETY_MARGIN: refresh tokens this long before expiry (default: 30s)
//   - FALCON_RATE_LIMIT_RPS: outbound requests per second, 0 disables (default: 50)
//   - FALCON_RATE_LIMIT_BURST: outbound burst size (default: 10)
//   - FALCON_USER_AGENT: User-Agent header (default: crowdstrike-falcon-connector/<version>)
//
// Serve mode:
//   - PORT: listen port (default: 8080)
//   - API_JWT_SECRET: when set, requests must carry an HS256 bearer JWT (minimum 32 characters)
//   - API_RATE_LIMIT_RPS: per-client request rate, 0 disables (default: 10)
//
// Logging:
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_FORMAT: console or json (default: console)
//   - LOG_FILE: write logs to this file instead of stderr
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Falcon.Validate(); err != nil {
//		return err
//	}
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/utils"
	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/validation"
)

// Version is stamped at build time with -ldflags "-X .../internal/config.Version=..."
var Version = "dev"

// DefaultBaseURL is the US-1 Falcon cloud
const DefaultBaseURL = "https://api.crowdstrike.com"

// Config holds all configuration values for the connector
type Config struct {
	Falcon Falcon `validate:"-"`

	// Serve mode settings
	Port         string  `validate:"required,numeric"`
	JWTSecret    string  `validate:"omitempty,min=32"`
	APIRateLimit float64 `validate:"gte=0"`

	LogLevel string `validate:"oneof=debug info warn warning error"`
	LogFile  string
}

// Falcon holds the API account and client tuning
type Falcon struct {
	BaseURL           string        `validate:"required,url"`
	ClientID          string        `validate:"required"`
	ClientSecret      string        `validate:"required"`
	HTTPTimeout       time.Duration `validate:"duration"`
	TokenSafetyMargin time.Duration `validate:"gte=0"`
	RateLimitRPS      float64       `validate:"gte=0"`
	RateLimitBurst    int           `validate:"gte=1"`
	UserAgent         string
}

// Load creates a Config with values loaded from environment variables.
// It does not validate; call Validate or Falcon.Validate before use.
func Load() *Config {
	return &Config{
		Falcon:       LoadFalcon(),
		Port:         getEnv("PORT", "8080"),
		JWTSecret:    getEnv("API_JWT_SECRET", ""),
		APIRateLimit: getFloatEnv("API_RATE_LIMIT_RPS", 10),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:      getEnv("LOG_FILE", ""),
	}
}

// LoadFalcon reads only the Falcon account settings
func LoadFalcon() Falcon {
	return Falcon{
		BaseURL:           strings.TrimRight(getEnv("FALCON_BASE_URL", DefaultBaseURL), "/"),
		ClientID:          getEnv("FALCON_CLIENT_ID", ""),
		ClientSecret:      getEnv("FALCON_CLIENT_SECRET", ""),
		HTTPTimeout:       getDurationEnv("FALCON_HTTP_TIMEOUT", 30*time.Second),
		TokenSafetyMargin: getDurationEnv("FALCON_TOKEN_SAFETY_MARGIN", 30*time.Second),
		RateLimitRPS:      getFloatEnv("FALCON_RATE_LIMIT_RPS", 50),
		RateLimitBurst:    getIntEnv("FALCON_RATE_LIMIT_BURST", 10),
		UserAgent:         getEnv("FALCON_USER_AGENT", "crowdstrike-falcon-connector/"+Version),
	}
}

// Validate checks the whole configuration, reporting every problem at once
func (c *Config) Validate() error {
	v := validation.NewValidator()
	v.Validate(c.Falcon.Validate)
	v.Validate(func() error { return checkStruct(c) })
	v.ValidateIf(c.Port != "", func() error {
		port, err := strconv.Atoi(c.Port)
		if err != nil || port < 1 || port > 65535 {
			return errors.ConfigError("PORT must be a valid port number between 1 and 65535")
		}
		return nil
	})
	return wrap(v.Error())
}

// Validate checks the Falcon account settings
func (f Falcon) Validate() error {
	v := validation.NewValidatorWithPrefix("falcon")
	v.RequireURL(f.BaseURL, "FALCON_BASE_URL")
	v.Validate(func() error { return checkStruct(f) })
	return wrap(v.Error())
}

var structValidator = validation.NewCentralizedValidator()

func checkStruct(s interface{}) error {
	failures := structValidator.Check(s)
	if len(failures) == 0 {
		return nil
	}

	v := validation.NewValidator()
	for _, failure := range failures {
		f := failure
		v.Validate(func() error { return errors.ConfigError(f.Message) })
	}
	return v.Error()
}

func wrap(err error) error {
	if err == nil || errors.IsType(err, errors.ErrTypeConfig) {
		return err
	}
	return errors.ConfigError(err.Error())
}

// getEnv retrieves an environment variable value or returns a default value if not set
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings, days, weeks or a bare number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := utils.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if parsed, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return parsed
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if parsed, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return parsed
	}
	return defaultValue
}
