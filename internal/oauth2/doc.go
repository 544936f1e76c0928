// Package oauth2 obtains and caches the bearer token used against the Falcon API.
//
// Falcon issues tokens through the client-credentials exchange at
// {base_url}/oauth2/token. Tokens live for about 30 minutes and cannot be
// refreshed; a new exchange replaces the cached token wholesale.
//
// # Usage
//
//	cache := oauth2.NewCache()
//	provider, err := oauth2.NewProvider(oauth2.Credentials{
//	    ClientID:     "id",
//	    ClientSecret: "secret",
//	    BaseURL:      "https://api.crowdstrike.com",
//	}, cache)
//
//	token, err := provider.GetValidToken(ctx)
//	req.Header.Set("Authorization", token.AuthorizationHeader())
//
// When the API rejects a token with 401 or 403, callers hand the rejected
// token back through ForceRefresh. Only the first caller holding that token
// triggers an exchange; the others receive the replacement.
//
// Concurrent callers that find the cache empty or expired share a single
// in-flight exchange.
package oauth2
