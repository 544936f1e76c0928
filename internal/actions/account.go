package actions

import (
	"context"

	"github.com/Akonis-cybersecurity/CrowdStrike-Akonis-automation-library/internal/common/errors"
)

type noArgs struct{}

func accountActions() []Action {
	return []Action{
		define("validate_credentials", "Check that the configured client can obtain a token",
			func(ctx context.Context, r *Runner, _ noArgs) (Result, error) {
				if r.tokens == nil {
					return nil, errors.ConfigError("no token source configured")
				}
				token, err := r.tokens.TokenSource(ctx).Token()
				if err != nil {
					return nil, err
				}
				if !token.Valid() {
					return nil, errors.AuthError("token source returned an expired token")
				}
				return Result{"valid": true}, nil
			}),
	}
}
