package kernel

import "context"

// RequestIdentity is the authenticated identity resolved for a single
// request. It is attached to the request context by the auth middleware and
// passed explicitly to anything that needs it; there is no process-global
// "current user".
type RequestIdentity struct {
	Sub        string   `json:"sub"`
	UserID     UserID   `json:"user_id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Department string   `json:"department"`
	Roles      []string `json:"roles"`
}

// IsValid reports whether the identity resolves to a concrete user.
func (ri *RequestIdentity) IsValid() bool {
	return ri != nil && !ri.UserID.IsEmpty()
}

// HasRole reports whether the identity carries the given role name.
func (ri *RequestIdentity) HasRole(role string) bool {
	if ri == nil {
		return false
	}
	for _, r := range ri.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity carries at least one of the roles.
func (ri *RequestIdentity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if ri.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey string

const (
	// IdentityContextKey stores the *RequestIdentity in a context.Context
	IdentityContextKey contextKey = "request_identity"

	// RequestIDKey stores the request correlation id
	RequestIDKey contextKey = "request_id"
)

// WithIdentity returns a context carrying the resolved identity.
func WithIdentity(ctx context.Context, identity *RequestIdentity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}

// IdentityFrom extracts the resolved identity from a context, if any.
func IdentityFrom(ctx context.Context) (*RequestIdentity, bool) {
	identity, ok := ctx.Value(IdentityContextKey).(*RequestIdentity)
	return identity, ok && identity.IsValid()
}
