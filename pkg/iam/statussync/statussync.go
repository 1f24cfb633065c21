// Package statussync reconciles the local account store with the identity
// provider. The local store is authoritative for approval state; the
// provider is authoritative for email confirmation.
package statussync

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/protomil/core/pkg/errx"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("SYNC")

var (
	CodeSyncFailed   = ErrRegistry.Register("SYNC_FAILED", errx.TypeExternal, http.StatusServiceUnavailable, "Status synchronization failed")
	CodeRemoteGone   = ErrRegistry.Register("REMOTE_GONE", errx.TypeBusiness, http.StatusConflict, "Account missing at identity provider")
	CodeInvalidState = ErrRegistry.Register("INVALID_STATE", errx.TypeValidation, http.StatusBadRequest, "Invalid target account status")
)

// ConsistencyResult is the verdict of one local-versus-remote comparison.
type ConsistencyResult struct {
	Email              string                `json:"email"`
	Consistent         bool                  `json:"consistent"`
	LocalExists        bool                  `json:"local_exists"`
	LocalStatus        user.AccountStatus    `json:"local_status,omitempty"`
	RemoteExists       bool                  `json:"remote_exists"`
	RemoteConfirmation idp.ConfirmationState `json:"remote_confirmation,omitempty"`
	RemoteEnabled      bool                  `json:"remote_enabled"`
	Issue              string                `json:"issue,omitempty"`
}

// ForceStatusResult reports the partially-independent outcomes of a forced
// status change: the local write and the remote push can succeed or fail
// separately.
type ForceStatusResult struct {
	UserID       kernel.UserID      `json:"user_id"`
	Status       user.AccountStatus `json:"status"`
	LocalUpdated bool               `json:"local_updated"`
	RemoteSynced bool               `json:"remote_synced"`
	RemoteError  string             `json:"remote_error,omitempty"`
}

// expectation is the remote state a local status implies.
type expectation struct {
	exists       bool
	confirmation idp.ConfirmationState
	enabled      bool
	anyEnabled   bool
}

// expectations is the consistency mapping table. REJECTED and DELETED
// accounts are expected to have no usable remote record.
var expectations = map[user.AccountStatus]expectation{
	user.StatusPendingVerification: {exists: true, confirmation: idp.Unconfirmed, anyEnabled: true},
	user.StatusPendingApproval:     {exists: true, confirmation: idp.Confirmed, enabled: false},
	user.StatusActive:              {exists: true, confirmation: idp.Confirmed, enabled: true},
	user.StatusSuspended:           {exists: true, confirmation: idp.Confirmed, enabled: false},
	user.StatusInactive:            {exists: true, confirmation: idp.Confirmed, enabled: false},
	user.StatusRejected:            {exists: false},
	user.StatusDeleted:             {exists: false},
}

// check compares a remote snapshot against the expectation for a local
// status. Every mismatched field is named in the diagnostic, not just the
// first one found. SYNC_FAILURE has no expectation: it is already known-bad.
func check(status user.AccountStatus, remote *idp.RemoteAccount) (bool, string) {
	exp, ok := expectations[status]
	if !ok {
		return false, "local status has no defined remote expectation"
	}
	if !exp.exists {
		if remote.Exists && remote.Enabled {
			return false, "terminal local status but remote account is still enabled"
		}
		return true, ""
	}
	if !remote.Exists {
		return false, "local account has no remote record"
	}

	var issues []string
	if remote.ApprovalAttribute != status.String() {
		issues = append(issues, fmt.Sprintf("approval attribute mismatch (local %q, remote %q)", status.String(), remote.ApprovalAttribute))
	}
	if remote.ConfirmationState != exp.confirmation {
		issues = append(issues, fmt.Sprintf("confirmation state mismatch (expected %s, remote %s)", exp.confirmation, remote.ConfirmationState))
	}
	if !exp.anyEnabled && remote.Enabled != exp.enabled {
		issues = append(issues, fmt.Sprintf("enabled flag mismatch (expected %t, remote %t)", exp.enabled, remote.Enabled))
	}
	if len(issues) > 0 {
		return false, strings.Join(issues, "; ")
	}
	return true, ""
}
