package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/protomil/core/pkg/errx"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/kernel"
	"github.com/protomil/core/pkg/logx"
)

// Service runs the login state machine and owns the session lifecycle. The
// identity provider is the credential authority; the local store is the
// authority on whether the account may use the system.
type Service struct {
	users    user.Store
	roles    user.RoleStore
	provider idp.Provider
	codec    TokenCodec
	sessions *SessionCache
	syncer   StatusSyncer // optional, best effort
}

func NewService(users user.Store, roles user.RoleStore, provider idp.Provider, codec TokenCodec, sessions *SessionCache, syncer StatusSyncer) *Service {
	return &Service{
		users:    users,
		roles:    roles,
		provider: provider,
		codec:    codec,
		sessions: sessions,
		syncer:   syncer,
	}
}

// Login authenticates the credentials against the provider, gates on the
// local account status, creates a session and mints the token pair. Every
// rejection is a typed error; credential and existence failures share one
// message.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials()
	}

	log := logx.WithField("email", email)

	if _, err := s.provider.Authenticate(ctx, email, req.Password); err != nil {
		return nil, s.mapAuthFault(err, log)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			// Provider knows the account, we do not. Reconciliation will
			// surface it; the caller only sees a credential failure.
			log.Warn("authenticated at provider but no local record")
			return nil, ErrInvalidCredentials()
		}
		log.WithError(err).Error("local user lookup failed during login")
		return nil, ErrServiceUnavailable().WithCause(err)
	}

	if err := s.gateStatus(u.Status); err != nil {
		log.WithField("status", u.Status.String()).Info("login rejected by account status")
		return nil, err
	}

	roles, err := s.roles.RoleNames(ctx, u.ID)
	if err != nil {
		log.WithError(err).Error("role lookup failed during login")
		return nil, ErrServiceUnavailable().WithCause(err)
	}

	session := s.sessions.Create(u, roles)

	pair, err := s.codec.MintPair(s.claimsFor(session))
	if err != nil {
		s.sessions.Remove(u.ID)
		log.WithError(err).Error("token mint failed")
		return nil, ErrServiceUnavailable().WithCause(err)
	}

	if err := s.users.RecordLogin(ctx, u.ID); err != nil {
		log.WithError(err).Warn("failed to record login timestamp")
	}
	if s.syncer != nil {
		if err := s.syncer.SyncLocalToRemote(ctx, u); err != nil {
			log.WithError(err).Warn("post-login status sync failed")
		}
	}

	log.WithField("userId", u.ID.String()).Info("login succeeded")

	return &LoginResult{
		UserID:     u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Department: u.Department,
		Roles:      session.Roles,
		Tokens:     pair,
		LoginTime:  time.Now(),
		RememberMe: req.RememberMe,
	}, nil
}

// CurrentClaims resolves fresh claims for the user, preferring the session
// cache and rebuilding from the store after a restart or sweep. Only active
// accounts can be rebuilt.
func (s *Service) CurrentClaims(ctx context.Context, id kernel.UserID) (*TokenClaims, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, ErrSessionUnavailable().WithCause(err)
	}
	if session == nil {
		session, err = s.rebuildSession(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	return s.claimsFor(session), nil
}

// Logout drops the user's session. Token cookies are cleared at the
// transport layer; the tokens themselves simply age out.
func (s *Service) Logout(id kernel.UserID) {
	s.sessions.Remove(id)
	logx.WithField("userId", id.String()).Info("logout completed")
}

// VerifyEmail confirms the provider-side sign-up code and advances a
// locally pending account to the approval queue.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(code) == "" {
		return ErrVerificationFailed()
	}

	if err := s.provider.ConfirmSignUp(ctx, email, code); err != nil {
		if fault, ok := idp.FaultOf(err); ok {
			switch fault {
			case idp.FaultRateLimited:
				return ErrTooManyAttempts().WithCause(err)
			case idp.FaultUnavailable, idp.FaultConfigError:
				return ErrServiceUnavailable().WithCause(err)
			}
		}
		return ErrVerificationFailed().WithCause(err)
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			logx.WithField("email", email).Warn("verified email has no local record")
			return nil
		}
		return ErrServiceUnavailable().WithCause(err)
	}

	if u.Status == user.StatusPendingVerification {
		if err := s.users.UpdateStatus(ctx, u.ID, user.StatusPendingApproval); err != nil {
			return ErrServiceUnavailable().WithCause(err)
		}
		u.Status = user.StatusPendingApproval
		if s.syncer != nil {
			if err := s.syncer.SyncLocalToRemote(ctx, u); err != nil {
				logx.WithError(err).WithField("email", email).Warn("post-verification status sync failed")
			}
		}
	}
	return nil
}

// ResendVerification asks the provider to re-send the confirmation code.
// Unknown accounts succeed silently so the endpoint cannot be used to probe
// for registered emails.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	err := s.provider.ResendConfirmation(ctx, email)
	if err == nil {
		return nil
	}
	if fault, ok := idp.FaultOf(err); ok {
		switch fault {
		case idp.FaultNotFound:
			logx.WithField("email", email).Debug("resend requested for unknown account")
			return nil
		case idp.FaultRateLimited:
			return ErrTooManyAttempts().WithCause(err)
		}
	}
	return ErrServiceUnavailable().WithCause(err)
}

func (s *Service) rebuildSession(ctx context.Context, id kernel.UserID) (*Session, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionUnavailable()
		}
		return nil, ErrSessionUnavailable().WithCause(err)
	}
	if !u.Status.LoginAllowed() {
		return nil, ErrSessionUnavailable()
	}
	roles, err := s.roles.RoleNames(ctx, u.ID)
	if err != nil {
		return nil, ErrSessionUnavailable().WithCause(err)
	}
	return s.sessions.Create(u, roles), nil
}

func (s *Service) claimsFor(session *Session) *TokenClaims {
	return &TokenClaims{
		Sub:        session.Sub,
		UserID:     session.UserID,
		Email:      session.Email,
		FirstName:  session.FirstName,
		LastName:   session.LastName,
		Department: session.Department,
		Roles:      append([]string(nil), session.Roles...),
	}
}

// gateStatus maps the local account status to the login outcome. A deleted
// account is indistinguishable from a bad password.
func (s *Service) gateStatus(status user.AccountStatus) error {
	switch status {
	case user.StatusActive:
		return nil
	case user.StatusPendingVerification:
		return ErrEmailNotVerified()
	case user.StatusPendingApproval:
		return ErrPendingApproval()
	case user.StatusSuspended:
		return ErrAccountSuspended()
	case user.StatusInactive:
		return ErrAccountInactive()
	case user.StatusDeleted:
		return ErrInvalidCredentials()
	default:
		// REJECTED, SYNC_FAILURE and anything unexpected.
		return ErrAccountStatus()
	}
}

func (s *Service) mapAuthFault(err error, log *logx.Entry) error {
	fault, ok := idp.FaultOf(err)
	if !ok {
		log.WithError(err).Error("provider authentication failed")
		return ErrServiceUnavailable().WithCause(err)
	}
	switch fault {
	case idp.FaultInvalidCredentials, idp.FaultNotFound:
		log.Info("login rejected: bad credentials or unknown account")
		return ErrInvalidCredentials()
	case idp.FaultNotConfirmed:
		return ErrEmailNotVerified()
	case idp.FaultRateLimited:
		return ErrTooManyAttempts().WithCause(err)
	default:
		log.WithError(err).Error("provider unavailable during login")
		return ErrServiceUnavailable().WithCause(err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isNotFound(err error) bool {
	var e *errx.Error
	return errors.As(err, &e) && e.IsType(errx.TypeNotFound)
}
