package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jwt"

	"github.com/mrshanahan/notes-service/pkg/notes"
)

// RoleClaim is the private claim carrying the caller's role. Tokens without
// it are treated as regular users.
const RoleClaim = "role"

// MinSecretLength is the shortest accepted HS256 shared secret.
const MinSecretLength = 32

// Verifier turns a bearer token into the caller's identity. Every failure is
// reported as a *notes.AuthenticationError.
type Verifier interface {
	Verify(ctx context.Context, token string) (notes.Identity, error)
}

// SecretVerifier accepts HS256 tokens signed with a shared secret.
type SecretVerifier struct {
	secret []byte
}

func NewSecretVerifier(secret string) (*SecretVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters", MinSecretLength)
	}
	return &SecretVerifier{secret: []byte(secret)}, nil
}

func (v *SecretVerifier) Verify(_ context.Context, tokenString string) (notes.Identity, error) {
	if tokenString == "" {
		return nil, &notes.AuthenticationError{Reason: "missing token"}
	}
	token, err := jwt.ParseString(tokenString,
		jwt.WithVerify(jwa.HS256, v.secret),
		jwt.WithValidate(true),
	)
	if err != nil {
		return nil, &notes.AuthenticationError{Reason: "invalid token: " + err.Error()}
	}
	return identityFromToken(token)
}

// IssueToken signs an HS256 token for userID. It is used by the client
// tooling and tests to mint tokens the SecretVerifier accepts.
func IssueToken(secret string, userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.New()
	if err := token.Set(jwt.SubjectKey, userID.String()); err != nil {
		return "", err
	}
	if err := token.Set(jwt.IssuedAtKey, now); err != nil {
		return "", err
	}
	if err := token.Set(jwt.ExpirationKey, now.Add(ttl)); err != nil {
		return "", err
	}
	if role != "" {
		if err := token.Set(RoleClaim, role); err != nil {
			return "", err
		}
	}
	signed, err := jwt.Sign(token, jwa.HS256, []byte(secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

// KeySetVerifier accepts tokens issued by an OIDC provider, verified
// against the provider's published key set. The key set is refreshed in the
// background for as long as the construction context lives.
type KeySetVerifier struct {
	issuer  string
	jwksURI string
	keys    *jwk.AutoRefresh
}

// NewKeySetVerifier resolves the provider's jwks_uri from its discovery
// document and starts refreshing the key set.
func NewKeySetVerifier(ctx context.Context, provider *oidc.Provider, issuer string) (*KeySetVerifier, error) {
	var claims struct {
		JWKsURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&claims); err != nil {
		return nil, fmt.Errorf("could not read OIDC discovery document: %w", err)
	}
	if claims.JWKsURI == "" {
		return nil, errors.New("OIDC discovery document has no jwks_uri")
	}

	keys := jwk.NewAutoRefresh(ctx)
	keys.Configure(claims.JWKsURI, jwk.WithMinRefreshInterval(15*time.Minute))
	if _, err := keys.Refresh(ctx, claims.JWKsURI); err != nil {
		return nil, fmt.Errorf("could not fetch JWKS from %s: %w", claims.JWKsURI, err)
	}
	return &KeySetVerifier{issuer: issuer, jwksURI: claims.JWKsURI, keys: keys}, nil
}

func (v *KeySetVerifier) Verify(ctx context.Context, tokenString string) (notes.Identity, error) {
	if tokenString == "" {
		return nil, &notes.AuthenticationError{Reason: "missing token"}
	}
	set, err := v.keys.Fetch(ctx, v.jwksURI)
	if err != nil {
		return nil, &notes.AuthenticationError{Reason: "signing keys unavailable: " + err.Error()}
	}
	token, err := jwt.ParseString(tokenString,
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return nil, &notes.AuthenticationError{Reason: "invalid token: " + err.Error()}
	}
	return identityFromToken(token)
}

func identityFromToken(token jwt.Token) (notes.Identity, error) {
	userID, err := uuid.Parse(token.Subject())
	if err != nil {
		return nil, &notes.AuthenticationError{Reason: "token subject is not a user id"}
	}
	role := notes.RoleUser
	if raw, ok := token.Get(RoleClaim); ok {
		s, ok := raw.(string)
		if !ok {
			return nil, &notes.AuthenticationError{Reason: "role claim is not a string"}
		}
		role = s
	}
	return notes.IdentityFromRole(userID, role)
}
