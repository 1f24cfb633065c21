package auth

import (
	"context"
	"time"

	"github.com/protomil/core/pkg/iam/user"
)

// TokenCodec mints and verifies signed claim-bearing tokens. Verification
// failures are classified return values, never panics, so callers cannot
// skip a failure path.
type TokenCodec interface {
	MintAccess(claims *TokenClaims) (string, error)
	MintRefresh(claims *TokenClaims) (string, error)
	MintPair(claims *TokenClaims) (*TokenPair, error)
	Verify(token string) (*TokenClaims, *VerifyError)
	IsExpired(token string) bool
	IsRefreshToken(token string) bool
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// StatusSyncer pushes the local account state to the identity provider.
// Login uses it best-effort; failures never block a login.
type StatusSyncer interface {
	SyncLocalToRemote(ctx context.Context, u *user.User) error
}
