package user

import (
	"context"

	"github.com/protomil/core/pkg/kernel"
)

// Store is the contract for the local user record store.
type Store interface {
	FindByID(ctx context.Context, id kernel.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateStatus(ctx context.Context, id kernel.UserID, status AccountStatus) error
	RecordLogin(ctx context.Context, id kernel.UserID) error
	ListByStatus(ctx context.Context, status AccountStatus, opts ListOptions) ([]*User, error)
	ListAll(ctx context.Context, opts ListOptions) ([]*User, error)
}

// RoleStore is the contract for role-name lookups.
type RoleStore interface {
	RoleNames(ctx context.Context, id kernel.UserID) ([]string, error)
}
