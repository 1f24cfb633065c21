// Package idp defines the gateway to the external identity provider. The
// provider owns credential verification and account confirmation/enabled
// state; everything else about a user lives in the local store.
package idp

import (
	"context"
	"net/http"
	"strings"

	"github.com/protomil/core/pkg/errx"
)

// ConfirmationState is the provider-side email confirmation state.
type ConfirmationState string

const (
	Unconfirmed ConfirmationState = "UNCONFIRMED"
	Confirmed   ConfirmationState = "CONFIRMED"
)

// Custom attribute names mirrored into the provider.
const (
	AttrApprovalStatus = "custom:approval_status"
	AttrLocalUserID    = "custom:local_user_id"
	AttrUserRoles      = "custom:user_roles"
	AttrDepartment     = "custom:department"
)

// AuthResult is the provider's answer to a successful authentication.
type AuthResult struct {
	Sub          string
	AccessToken  string
	RefreshToken string
	IDToken      string
	ExpiresIn    int
}

// RemoteAccount is a point-in-time snapshot of the provider's view of an
// account. Never cached beyond a single reconciliation pass.
type RemoteAccount struct {
	Exists            bool
	ConfirmationState ConfirmationState
	Enabled           bool
	ApprovalAttribute string
	Attributes        map[string]string
}

// Provider is the gateway contract. Every implementation maps its native
// error surface onto the Fault taxonomy below and bounds each call with the
// context deadline.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) (*AuthResult, error)
	GetUser(ctx context.Context, username string) (*RemoteAccount, error)
	SetEnabled(ctx context.Context, username string) error
	SetDisabled(ctx context.Context, username string) error
	UpdateAttributes(ctx context.Context, username string, attrs map[string]string) error
	ResendConfirmation(ctx context.Context, username string) error
	ConfirmSignUp(ctx context.Context, username, code string) error
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
}

// Fault classifies provider failures.
type Fault string

const (
	FaultInvalidCredentials Fault = "INVALID_CREDENTIALS"
	FaultNotConfirmed       Fault = "NOT_CONFIRMED"
	FaultNotFound           Fault = "NOT_FOUND"
	FaultRateLimited        Fault = "RATE_LIMITED"
	FaultConfigError        Fault = "CONFIG_ERROR"
	FaultUnavailable        Fault = "UNAVAILABLE"
)

var ErrRegistry = errx.NewRegistry("IDP")

var faultCodes = map[Fault]*errx.ErrorCode{
	FaultInvalidCredentials: ErrRegistry.Register(string(FaultInvalidCredentials), errx.TypeAuthentication, http.StatusUnauthorized, "Invalid credentials"),
	FaultNotConfirmed:       ErrRegistry.Register(string(FaultNotConfirmed), errx.TypeBusiness, http.StatusUnprocessableEntity, "Account not confirmed"),
	FaultNotFound:           ErrRegistry.Register(string(FaultNotFound), errx.TypeNotFound, http.StatusNotFound, "Account not found at identity provider"),
	FaultRateLimited:        ErrRegistry.Register(string(FaultRateLimited), errx.TypeExternal, http.StatusTooManyRequests, "Identity provider rate limit exceeded"),
	FaultConfigError:        ErrRegistry.Register(string(FaultConfigError), errx.TypeInternal, http.StatusInternalServerError, "Identity provider misconfigured"),
	FaultUnavailable:        ErrRegistry.Register(string(FaultUnavailable), errx.TypeExternal, http.StatusServiceUnavailable, "Identity provider unavailable"),
}

// Err builds a classified provider error for the given fault.
func Err(fault Fault) *errx.Error {
	return ErrRegistry.New(faultCodes[fault])
}

// ErrWithCause builds a classified provider error wrapping the native cause.
func ErrWithCause(fault Fault, cause error) *errx.Error {
	return ErrRegistry.NewWithCause(faultCodes[fault], cause)
}

// FaultOf extracts the fault classification from an error returned by a
// Provider. Unclassified errors report FaultUnavailable, false.
func FaultOf(err error) (Fault, bool) {
	typed := errx.As(err)
	if typed == nil {
		return FaultUnavailable, false
	}
	code, ok := strings.CutPrefix(typed.Code, "IDP_")
	if !ok {
		return FaultUnavailable, false
	}
	fault := Fault(code)
	if _, known := faultCodes[fault]; !known {
		return FaultUnavailable, false
	}
	return fault, true
}

// IsFault reports whether err carries the given fault classification.
func IsFault(err error, fault Fault) bool {
	got, ok := FaultOf(err)
	return ok && got == fault
}
