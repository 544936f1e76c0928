package oauth2

import (
	"strings"
	"time"
)

// Credentials identify one Falcon API client
type Credentials struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// TokenURL returns the client-credentials exchange endpoint
func (c Credentials) TokenURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/oauth2/token"
}

// TokenResponse is the body returned by the token endpoint
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token is a bearer credential with an absolute expiry
type Token struct {
	AccessToken string    `json:"-"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ValidAt reports whether the token can still be used at now, keeping margin in reserve
func (t *Token) ValidAt(now time.Time, margin time.Duration) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Add(margin).Before(t.ExpiresAt)
}

// AuthorizationHeader formats the token for the Authorization header
func (t *Token) AuthorizationHeader() string {
	return "Bearer " + t.AccessToken
}
