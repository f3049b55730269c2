package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var AccessTokenCookieName string = "access_token"

const (
	discoveryRetries    = 5
	discoveryRetryDelay = 10 * time.Second
)

// Config describes the authorization-code login flow against an OIDC
// provider.
type Config struct {
	BaseUri     string
	LoginConfig oauth2.Config
}

// BuildAuthConfig discovers the provider at authProviderUrl and returns the
// login flow configuration together with the provider itself.
func BuildAuthConfig(ctx context.Context, clientID, clientSecret, authProviderUrl, redirectUrl string) (*Config, *oidc.Provider, error) {
	provider, err := loadOIDCConfig(ctx, authProviderUrl, discoveryRetries, discoveryRetryDelay)
	if err != nil {
		return nil, nil, err
	}

	config := &Config{
		LoginConfig: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  redirectUrl,
			Scopes:       []string{"profile", "email", oidc.ScopeOpenID},
		},
		BaseUri: authProviderUrl,
	}
	return config, provider, nil
}

func loadOIDCConfig(ctx context.Context, authProviderUrl string, retries int, delay time.Duration) (*oidc.Provider, error) {
	var provider *oidc.Provider
	var err error
	for i := 0; i < retries; i++ {
		provider, err = oidc.NewProvider(ctx, authProviderUrl)
		if err == nil {
			return provider, nil
		}
		slog.Warn("could not load OIDC config", "attempt", i+1, "url", authProviderUrl, "err", err)
		if i+1 < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, err
}
