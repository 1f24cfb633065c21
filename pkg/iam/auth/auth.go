// Package auth is the authentication core: token mint/verify, cookie
// transport, the in-process session cache, the login state machine and the
// per-request middleware.
package auth

import (
	"net/http"
	"time"

	"github.com/protomil/core/pkg/errx"
	"github.com/protomil/core/pkg/kernel"
)

// TokenKind discriminates access from refresh tokens. A token's kind is
// fixed at mint time; a refresh token is never accepted where an access
// token is required, and vice versa.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// TokenClaims is the identity payload carried by a signed token. A fresh
// set is built on every mint; instances are never mutated after minting.
type TokenClaims struct {
	Sub        string        `json:"sub"`
	UserID     kernel.UserID `json:"user_id"`
	Email      string        `json:"email"`
	FirstName  string        `json:"first_name"`
	LastName   string        `json:"last_name"`
	Department string        `json:"department"`
	Roles      []string      `json:"roles"`
	Kind       TokenKind     `json:"token_type"`
	IssuedAt   time.Time     `json:"issued_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
	TokenID    string        `json:"token_id"`
}

// Identity converts claims into the request identity attached downstream.
func (c *TokenClaims) Identity() *kernel.RequestIdentity {
	return &kernel.RequestIdentity{
		Sub:        c.Sub,
		UserID:     c.UserID,
		Email:      c.Email,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Department: c.Department,
		Roles:      append([]string(nil), c.Roles...),
	}
}

// TokenPair is the product of one login or refresh event. Never mutated,
// only superseded.
type TokenPair struct {
	AccessToken       string    `json:"access_token"`
	RefreshToken      string    `json:"refresh_token"`
	AccessTTLSeconds  int       `json:"access_expires_in"`
	RefreshTTLSeconds int       `json:"refresh_expires_in"`
	IssuedAt          time.Time `json:"issued_at"`
}

// LoginRequest carries the credentials presented to the login endpoint.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	UserID     kernel.UserID `json:"user_id"`
	Email      string        `json:"email"`
	FirstName  string        `json:"first_name"`
	LastName   string        `json:"last_name"`
	Department string        `json:"department"`
	Roles      []string      `json:"roles"`
	Tokens     *TokenPair    `json:"tokens"`
	LoginTime  time.Time     `json:"login_time"`
	RememberMe bool          `json:"remember_me"`
}

// Error registry. Authentication failures share one deliberately vague
// message so callers cannot tell a wrong password from a missing account.

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeInvalidCredentials = ErrRegistry.Register("INVALID_CREDENTIALS", errx.TypeAuthentication, http.StatusUnauthorized, "Invalid email or password")
	CodeEmailNotVerified   = ErrRegistry.Register("EMAIL_NOT_VERIFIED", errx.TypeBusiness, http.StatusUnprocessableEntity, "Email not verified. Please check your email for verification code.")
	CodePendingApproval    = ErrRegistry.Register("PENDING_APPROVAL", errx.TypeBusiness, http.StatusUnprocessableEntity, "Your account is pending administrator approval.")
	CodeAccountSuspended   = ErrRegistry.Register("ACCOUNT_SUSPENDED", errx.TypeBusiness, http.StatusUnprocessableEntity, "Your account has been suspended. Please contact support.")
	CodeAccountInactive    = ErrRegistry.Register("ACCOUNT_INACTIVE", errx.TypeBusiness, http.StatusUnprocessableEntity, "Your account is inactive. Please contact support.")
	CodeAccountStatus      = ErrRegistry.Register("ACCOUNT_STATUS", errx.TypeBusiness, http.StatusUnprocessableEntity, "Account status error. Please contact support.")
	CodeTooManyAttempts    = ErrRegistry.Register("TOO_MANY_ATTEMPTS", errx.TypeExternal, http.StatusTooManyRequests, "Too many login attempts. Please try again later.")
	CodeServiceUnavailable = ErrRegistry.Register("SERVICE_UNAVAILABLE", errx.TypeExternal, http.StatusServiceUnavailable, "Authentication service unavailable. Please try again later.")
	CodeSessionUnavailable = ErrRegistry.Register("SESSION_UNAVAILABLE", errx.TypeAuthentication, http.StatusUnauthorized, "Unable to load user session")
	CodeUnauthenticated    = ErrRegistry.Register("UNAUTHENTICATED", errx.TypeAuthentication, http.StatusUnauthorized, "Authentication required")
	CodeVerificationFailed = ErrRegistry.Register("VERIFICATION_FAILED", errx.TypeBusiness, http.StatusUnprocessableEntity, "Email verification failed. The code may be invalid or expired.")
)

func ErrInvalidCredentials() *errx.Error { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrEmailNotVerified() *errx.Error   { return ErrRegistry.New(CodeEmailNotVerified) }
func ErrPendingApproval() *errx.Error    { return ErrRegistry.New(CodePendingApproval) }
func ErrAccountSuspended() *errx.Error   { return ErrRegistry.New(CodeAccountSuspended) }
func ErrAccountInactive() *errx.Error    { return ErrRegistry.New(CodeAccountInactive) }
func ErrAccountStatus() *errx.Error      { return ErrRegistry.New(CodeAccountStatus) }
func ErrTooManyAttempts() *errx.Error    { return ErrRegistry.New(CodeTooManyAttempts) }
func ErrServiceUnavailable() *errx.Error { return ErrRegistry.New(CodeServiceUnavailable) }
func ErrSessionUnavailable() *errx.Error { return ErrRegistry.New(CodeSessionUnavailable) }
func ErrUnauthenticated() *errx.Error    { return ErrRegistry.New(CodeUnauthenticated) }
func ErrVerificationFailed() *errx.Error { return ErrRegistry.New(CodeVerificationFailed) }
