package notes

import (
	"context"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the authenticated caller of an operation. The set of
// implementations is closed: Owner and Administrator.
type Identity interface {
	UserID() uuid.UUID
	Role() string
	identity()
}

// Owner is a regular user. It can only see and change its own notes.
type Owner struct {
	ID uuid.UUID
}

func (o Owner) UserID() uuid.UUID { return o.ID }
func (o Owner) Role() string      { return RoleUser }
func (Owner) identity()           {}

// Administrator may act on any note and may target another owner when
// creating or listing.
type Administrator struct {
	ID uuid.UUID
}

func (a Administrator) UserID() uuid.UUID { return a.ID }
func (a Administrator) Role() string      { return RoleAdmin }
func (Administrator) identity()           {}

// IdentityFromRole builds the identity variant for a verified user id and
// role claim. Unknown roles are rejected.
func IdentityFromRole(userID uuid.UUID, role string) (Identity, error) {
	if userID == uuid.Nil {
		return nil, &AuthenticationError{Reason: "missing user id"}
	}
	switch role {
	case RoleUser, "":
		return Owner{ID: userID}, nil
	case RoleAdmin:
		return Administrator{ID: userID}, nil
	default:
		return nil, &AuthenticationError{Reason: "invalid role: " + role}
	}
}

type identityContextKey struct{}
type requestIDContextKey struct{}

// WithIdentity attaches the caller identity to ctx.
func WithIdentity(ctx context.Context, who Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, who)
}

// IdentityFrom returns the identity attached by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	who, ok := ctx.Value(identityContextKey{}).(Identity)
	return who, ok && who != nil
}

// WithRequestID attaches a correlation token to ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestID returns the correlation token attached to ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
