package statussync

import (
	"context"
	"errors"
	"strings"

	"github.com/protomil/core/pkg/errx"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/kernel"
	"github.com/protomil/core/pkg/logx"
)

// Service validates and repairs local/remote account consistency.
type Service struct {
	users    user.Store
	roles    user.RoleStore
	provider idp.Provider
}

func NewService(users user.Store, roles user.RoleStore, provider idp.Provider) *Service {
	return &Service{users: users, roles: roles, provider: provider}
}

// Validate compares the account behind an email against the provider's view
// without changing anything. A missing local record is itself drift: the
// provider must never know an account the store does not.
func (s *Service) Validate(ctx context.Context, email string) (*ConsistencyResult, error) {
	result := &ConsistencyResult{Email: email}

	remote, err := s.provider.GetUser(ctx, email)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}
	result.RemoteExists = remote.Exists
	result.RemoteConfirmation = remote.ConfirmationState
	result.RemoteEnabled = remote.Enabled

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		var e *errx.Error
		if errors.As(err, &e) && e.IsType(errx.TypeNotFound) {
			result.Issue = "no local record for this email"
			return result, nil
		}
		return nil, ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}

	result.LocalExists = true
	result.LocalStatus = u.Status
	result.Consistent, result.Issue = check(u.Status, remote)
	return result, nil
}

// SyncLocalToRemote pushes the local account state to the provider: the
// mirrored custom attributes plus the enable/disable flag. Terminal local
// statuses only disable; the remote record is never deleted here.
func (s *Service) SyncLocalToRemote(ctx context.Context, u *user.User) error {
	log := logx.WithFields(logx.Fields{"email": u.Email, "status": u.Status.String()})

	roles, err := s.roles.RoleNames(ctx, u.ID)
	if err != nil {
		return ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}

	attrs := map[string]string{
		idp.AttrApprovalStatus: u.Status.String(),
		idp.AttrLocalUserID:    u.ID.String(),
		idp.AttrUserRoles:      strings.Join(roles, ","),
		idp.AttrDepartment:     u.Department,
	}
	if err := s.provider.UpdateAttributes(ctx, u.Email, attrs); err != nil {
		if idp.IsFault(err, idp.FaultNotFound) {
			log.Warn("cannot sync attributes, remote account missing")
			return ErrRegistry.NewWithCause(CodeRemoteGone, err)
		}
		return ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}

	if u.Status == user.StatusActive {
		err = s.provider.SetEnabled(ctx, u.Email)
	} else {
		err = s.provider.SetDisabled(ctx, u.Email)
	}
	if err != nil {
		return ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}

	log.Debug("local state pushed to provider")
	return nil
}

// SyncRemoteToLocal pulls the provider's view and repairs the local status
// where the remote is authoritative. An unclassifiable remote state lands
// the account in the approval queue rather than granting access.
func (s *Service) SyncRemoteToLocal(ctx context.Context, u *user.User) error {
	log := logx.WithFields(logx.Fields{"email": u.Email, "status": u.Status.String()})

	remote, err := s.provider.GetUser(ctx, u.Email)
	if err != nil {
		return ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}

	target, changed := s.deriveLocalStatus(u.Status, remote, log)
	if !changed {
		return nil
	}

	if err := s.users.UpdateStatus(ctx, u.ID, target); err != nil {
		return ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}
	log.WithField("newStatus", target.String()).Info("local status repaired from provider state")
	return nil
}

// deriveLocalStatus maps the provider snapshot to the local status it
// implies. In this direction the mirrored approval attribute is
// authoritative; an unparseable value parks the account in the approval
// queue rather than granting access.
func (s *Service) deriveLocalStatus(current user.AccountStatus, remote *idp.RemoteAccount, log *logx.Entry) (user.AccountStatus, bool) {
	// Terminal local states stay terminal regardless of the remote.
	if current == user.StatusRejected || current == user.StatusDeleted {
		return current, false
	}

	if !remote.Exists {
		return user.StatusSyncFailure, current != user.StatusSyncFailure
	}

	// Confirmation belongs to the provider and overrides the attribute.
	if remote.ConfirmationState == idp.Unconfirmed {
		return user.StatusPendingVerification, current != user.StatusPendingVerification
	}

	target, ok := user.ParseStatus(remote.ApprovalAttribute)
	if !ok {
		log.WithField("attribute", remote.ApprovalAttribute).
			Warn("unrecognized remote approval attribute, parking in approval queue")
		target = user.StatusPendingApproval
	}
	return target, target != current
}

// ForceStatus writes the status locally and then pushes it to the provider.
// The local write is the source of truth: a remote failure leaves the local
// change in place and is reported, not rolled back.
func (s *Service) ForceStatus(ctx context.Context, id kernel.UserID, status user.AccountStatus) (*ForceStatusResult, error) {
	if _, ok := user.ParseStatus(status.String()); !ok {
		return nil, ErrRegistry.New(CodeInvalidState)
	}

	result := &ForceStatusResult{UserID: id, Status: status}

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		var e *errx.Error
		if errors.As(err, &e) && e.IsType(errx.TypeNotFound) {
			return nil, err
		}
		return nil, ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}

	if err := s.users.UpdateStatus(ctx, id, status); err != nil {
		return nil, ErrRegistry.NewWithCause(CodeSyncFailed, err)
	}
	result.LocalUpdated = true
	u.Status = status

	if err := s.SyncLocalToRemote(ctx, u); err != nil {
		logx.WithError(err).WithField("email", u.Email).Warn("forced status not propagated to provider")
		result.RemoteError = err.Error()
		return result, nil
	}
	result.RemoteSynced = true
	return result, nil
}
