// Package auth guards the serve-mode action endpoint with HS256 bearer JWTs
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is set on every token minted by Issue
const Issuer = "falcon-connector"

// Claims are the JWT claims accepted by the serve mode
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret []byte
	now    func() time.Time
}

// New creates an authenticator; an empty secret is a configuration error
func New(secret string) (*Auth, error) {
	if secret == "" {
		return nil, errors.ConfigError("JWT secret is required")
	}
	return &Auth{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl
func (a *Auth) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.InvalidArgumentError("user id should not be empty")
	}
	if ttl <= 0 {
		return "", errors.InvalidArgumentError(fmt.Sprintf("token lifetime must be positive, got %s", ttl))
	}

	now := a.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// Validate parses and verifies a signed token
func (a *Auth) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.UnauthorizedError(fmt.Sprintf("invalid token: %v", err))
	}
	if !parsed.Valid {
		return nil, errors.UnauthorizedError("invalid token")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token and passes the
// caller identity on in the X-User-ID header.
func (a *Auth) RequireAuth(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				onError(w, r, errors.UnauthorizedError("missing bearer token"))
				return
			}

			claims, err := a.Validate(strings.TrimSpace(token))
			if err != nil {
				onError(w, r, err)
				return
			}

			r.Header.Set("X-User-ID", claims.UserID)
			next.ServeHTTP(w, r)
		})
	}
}
