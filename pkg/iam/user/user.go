package user

import (
	"net/http"
	"time"

	"github.com/protomil/core/pkg/errx"
	"github.com/protomil/core/pkg/kernel"
)

// AccountStatus is the local approval lifecycle of an account. The external
// identity provider tracks confirmation and enabled state independently; the
// statussync package reconciles the two.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "PENDING_VERIFICATION"
	StatusPendingApproval     AccountStatus = "PENDING_APPROVAL"
	StatusActive              AccountStatus = "ACTIVE"
	StatusSuspended           AccountStatus = "SUSPENDED"
	StatusInactive            AccountStatus = "INACTIVE"
	StatusRejected            AccountStatus = "REJECTED"
	StatusDeleted             AccountStatus = "DELETED"
	StatusSyncFailure         AccountStatus = "SYNC_FAILURE"
)

// ParseStatus maps a stored status string back to an AccountStatus.
func ParseStatus(s string) (AccountStatus, bool) {
	switch AccountStatus(s) {
	case StatusPendingVerification, StatusPendingApproval, StatusActive,
		StatusSuspended, StatusInactive, StatusRejected, StatusDeleted,
		StatusSyncFailure:
		return AccountStatus(s), true
	}
	return "", false
}

func (s AccountStatus) String() string { return string(s) }

// LoginAllowed reports whether an account in this status may log in.
func (s AccountStatus) LoginAllowed() bool { return s == StatusActive }

// IsPending reports whether the account is waiting on verification or approval.
func (s AccountStatus) IsPending() bool {
	return s == StatusPendingVerification || s == StatusPendingApproval
}

// NeedsAdminIntervention reports whether an administrator has to act before
// the account can recover.
func (s AccountStatus) NeedsAdminIntervention() bool {
	return s == StatusSyncFailure || s == StatusSuspended
}

// User is the local account record.
type User struct {
	ID          kernel.UserID `db:"id" json:"id"`
	Sub         string        `db:"idp_sub" json:"sub"`
	Email       string        `db:"email" json:"email"`
	FirstName   string        `db:"first_name" json:"first_name"`
	LastName    string        `db:"last_name" json:"last_name"`
	Department  string        `db:"department" json:"department"`
	Status      AccountStatus `db:"status" json:"status"`
	LastLoginAt *time.Time    `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// Role is a named role grantable to users.
type Role struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// ListOptions pages through the user population.
type ListOptions struct {
	Page     int // 1-based
	PageSize int
}

// Error registry

var ErrRegistry = errx.NewRegistry("USER")

var (
	CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeConflict = ErrRegistry.Register("CONFLICT", errx.TypeValidation, http.StatusConflict, "User already exists")
)

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }
func ErrConflict() *errx.Error { return ErrRegistry.New(CodeConflict) }
