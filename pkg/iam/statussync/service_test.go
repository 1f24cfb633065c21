package statussync_test

import (
	"context"
	"strings"
	"testing"

	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/iam/idp/idpmock"
	"github.com/protomil/core/pkg/iam/statussync"
	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/kernel"
)

// fakeStore implements user.Store and user.RoleStore over maps.
type fakeStore struct {
	byID  map[kernel.UserID]*user.User
	roles map[kernel.UserID][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:  make(map[kernel.UserID]*user.User),
		roles: make(map[kernel.UserID][]string),
	}
}

func (f *fakeStore) add(u *user.User, roles ...string) {
	f.byID[u.ID] = u
	f.roles[u.ID] = roles
}

func (f *fakeStore) FindByID(_ context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound()
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound()
}

func (f *fakeStore) UpdateStatus(_ context.Context, id kernel.UserID, status user.AccountStatus) error {
	u, ok := f.byID[id]
	if !ok {
		return user.ErrNotFound()
	}
	u.Status = status
	return nil
}

func (f *fakeStore) RecordLogin(_ context.Context, _ kernel.UserID) error { return nil }

func (f *fakeStore) ListByStatus(_ context.Context, status user.AccountStatus, _ user.ListOptions) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.byID {
		if u.Status == status {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(_ context.Context, _ user.ListOptions) ([]*user.User, error) {
	var out []*user.User
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) RoleNames(_ context.Context, id kernel.UserID) ([]string, error) {
	return f.roles[id], nil
}

func syncUser(status user.AccountStatus) *user.User {
	return &user.User{
		ID:         kernel.UserIDFrom("11111111-2222-3333-4444-555555555555"),
		Sub:        idpmock.Sub("jane@example.com"),
		Email:      "jane@example.com",
		FirstName:  "Jane",
		LastName:   "Doe",
		Department: "ASSEMBLY",
		Status:     status,
	}
}

func newSyncFixture(t *testing.T, status user.AccountStatus) (*statussync.Service, *fakeStore, *idpmock.Provider, *user.User) {
	t.Helper()
	store := newFakeStore()
	provider := idpmock.New()
	u := syncUser(status)
	store.add(u, "TECHNICIAN")
	return statussync.NewService(store, store, provider), store, provider, u
}

// remoteAttrs builds the mirrored attribute set a synced remote would carry.
func remoteAttrs(status user.AccountStatus) map[string]string {
	return map[string]string{idp.AttrApprovalStatus: status.String()}
}

// --- Validate ---

func TestService_ValidateConsistentActive(t *testing.T) {
	service, _, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Confirmed, true, remoteAttrs(user.StatusActive))

	result, err := service.Validate(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Consistent {
		t.Fatalf("expected consistent, got issue %q", result.Issue)
	}
	if !result.LocalExists {
		t.Fatal("local record not reported")
	}
}

func TestService_ValidateActiveButRemoteDisabled(t *testing.T) {
	service, _, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Confirmed, false, remoteAttrs(user.StatusActive))

	result, err := service.Validate(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Consistent {
		t.Fatal("expected inconsistency")
	}
	if !strings.Contains(result.Issue, "enabled flag mismatch") {
		t.Fatalf("unexpected issue: %q", result.Issue)
	}
}

func TestService_ValidateApprovalAttributeMismatch(t *testing.T) {
	// Confirmation and enabled flag agree; the mirrored attribute alone
	// must still flag the drift.
	service, _, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Confirmed, true, remoteAttrs(user.StatusSuspended))

	result, err := service.Validate(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Consistent {
		t.Fatal("expected inconsistency for approval attribute drift")
	}
	if !strings.Contains(result.Issue, "approval attribute mismatch") ||
		!strings.Contains(result.Issue, "SUSPENDED") || !strings.Contains(result.Issue, "ACTIVE") {
		t.Fatalf("issue does not name the mismatched values: %q", result.Issue)
	}
}

func TestService_ValidateNamesEveryMismatchedField(t *testing.T) {
	service, _, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Confirmed, false, remoteAttrs(user.StatusSuspended))

	result, err := service.Validate(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Consistent {
		t.Fatal("expected inconsistency")
	}
	if !strings.Contains(result.Issue, "approval attribute mismatch") ||
		!strings.Contains(result.Issue, "enabled flag mismatch") {
		t.Fatalf("expected both mismatches in diagnostic, got %q", result.Issue)
	}
}

func TestService_ValidateMissingRemote(t *testing.T) {
	service, _, _, u := newSyncFixture(t, user.StatusActive)

	result, err := service.Validate(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Consistent || result.RemoteExists {
		t.Fatalf("expected missing-remote inconsistency, got %+v", result)
	}
}

func TestService_ValidateMissingLocal(t *testing.T) {
	service, _, provider, _ := newSyncFixture(t, user.StatusActive)
	provider.Seed("stray@example.com", idp.Confirmed, true, nil)

	result, err := service.Validate(context.Background(), "stray@example.com")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Consistent || result.LocalExists {
		t.Fatalf("expected missing-local inconsistency, got %+v", result)
	}
	if result.Issue == "" || !result.RemoteExists {
		t.Fatalf("expected a diagnostic with the remote view reported, got %+v", result)
	}
}

func TestService_ValidatePendingVerificationIgnoresEnabledFlag(t *testing.T) {
	service, _, provider, u := newSyncFixture(t, user.StatusPendingVerification)
	provider.Seed(u.Email, idp.Unconfirmed, true, remoteAttrs(user.StatusPendingVerification))

	result, err := service.Validate(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Consistent {
		t.Fatalf("unconfirmed remote matches pending verification, got issue %q", result.Issue)
	}
}

func TestService_ValidateDeletedWithEnabledRemote(t *testing.T) {
	service, _, provider, u := newSyncFixture(t, user.StatusDeleted)
	provider.Seed(u.Email, idp.Confirmed, true, nil)

	result, err := service.Validate(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Consistent {
		t.Fatal("an enabled remote for a deleted local account is drift")
	}
}

// --- local → remote ---

func TestService_SyncLocalToRemotePushesAttributesAndFlag(t *testing.T) {
	service, _, provider, u := newSyncFixture(t, user.StatusSuspended)
	provider.Seed(u.Email, idp.Confirmed, true, nil)

	if err := service.SyncLocalToRemote(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}

	remote, err := provider.GetUser(context.Background(), u.Email)
	if err != nil {
		t.Fatalf("get remote: %v", err)
	}
	if remote.Enabled {
		t.Fatal("suspended account must disable the remote")
	}
	if remote.Attributes[idp.AttrApprovalStatus] != "SUSPENDED" {
		t.Fatalf("approval attribute not pushed: %v", remote.Attributes)
	}
	if remote.Attributes[idp.AttrUserRoles] != "TECHNICIAN" {
		t.Fatalf("roles attribute not pushed: %v", remote.Attributes)
	}
	if remote.Attributes[idp.AttrLocalUserID] != u.ID.String() {
		t.Fatalf("local id attribute not pushed: %v", remote.Attributes)
	}
}

func TestService_SyncLocalToRemoteEnablesActive(t *testing.T) {
	service, _, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Confirmed, false, nil)

	if err := service.SyncLocalToRemote(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}

	remote, _ := provider.GetUser(context.Background(), u.Email)
	if !remote.Enabled {
		t.Fatal("active account must enable the remote")
	}
}

func TestService_SyncLocalToRemoteMissingRemote(t *testing.T) {
	service, _, _, u := newSyncFixture(t, user.StatusActive)

	err := service.SyncLocalToRemote(context.Background(), u)
	if err == nil {
		t.Fatal("expected an error for a missing remote account")
	}
}

// --- remote → local ---

func TestService_SyncRemoteToLocalRepairsUnconfirmed(t *testing.T) {
	service, store, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Unconfirmed, true, nil)

	if err := service.SyncRemoteToLocal(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.byID[u.ID].Status != user.StatusPendingVerification {
		t.Fatalf("expected PENDING_VERIFICATION, got %s", store.byID[u.ID].Status)
	}
}

func TestService_SyncRemoteToLocalMissingRemoteMarksFailure(t *testing.T) {
	service, store, _, u := newSyncFixture(t, user.StatusActive)

	if err := service.SyncRemoteToLocal(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.byID[u.ID].Status != user.StatusSyncFailure {
		t.Fatalf("expected SYNC_FAILURE, got %s", store.byID[u.ID].Status)
	}
}

func TestService_SyncRemoteToLocalAppliesApprovalAttribute(t *testing.T) {
	// The mirrored attribute is what comes back, not a guess from the
	// confirmation/enabled pair.
	service, store, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Confirmed, true, remoteAttrs(user.StatusSuspended))

	if err := service.SyncRemoteToLocal(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.byID[u.ID].Status != user.StatusSuspended {
		t.Fatalf("expected SUSPENDED from remote attribute, got %s", store.byID[u.ID].Status)
	}
}

func TestService_SyncRemoteToLocalUnknownAttributeParksInApprovalQueue(t *testing.T) {
	service, store, provider, u := newSyncFixture(t, user.StatusActive)
	provider.Seed(u.Email, idp.Confirmed, true, map[string]string{idp.AttrApprovalStatus: "NO_SUCH_STATUS"})

	if err := service.SyncRemoteToLocal(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.byID[u.ID].Status != user.StatusPendingApproval {
		t.Fatalf("expected PENDING_APPROVAL fallback, got %s", store.byID[u.ID].Status)
	}
}

func TestService_SyncRemoteToLocalMatchingAttributeWritesNothing(t *testing.T) {
	service, store, provider, u := newSyncFixture(t, user.StatusSuspended)
	provider.Seed(u.Email, idp.Confirmed, false, remoteAttrs(user.StatusSuspended))

	if err := service.SyncRemoteToLocal(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.byID[u.ID].Status != user.StatusSuspended {
		t.Fatalf("suspended status lost: %s", store.byID[u.ID].Status)
	}
}

func TestService_SyncRemoteToLocalTerminalStatusesUntouched(t *testing.T) {
	service, store, provider, u := newSyncFixture(t, user.StatusRejected)
	provider.Seed(u.Email, idp.Confirmed, true, nil)

	if err := service.SyncRemoteToLocal(context.Background(), u); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if store.byID[u.ID].Status != user.StatusRejected {
		t.Fatalf("terminal status changed: %s", store.byID[u.ID].Status)
	}
}

// --- ForceStatus ---

func TestService_ForceStatusFullSuccess(t *testing.T) {
	service, store, provider, u := newSyncFixture(t, user.StatusPendingApproval)
	provider.Seed(u.Email, idp.Confirmed, false, nil)

	result, err := service.ForceStatus(context.Background(), u.ID, user.StatusActive)
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if !result.LocalUpdated || !result.RemoteSynced {
		t.Fatalf("expected full success, got %+v", result)
	}
	if store.byID[u.ID].Status != user.StatusActive {
		t.Fatalf("local status not written: %s", store.byID[u.ID].Status)
	}

	remote, _ := provider.GetUser(context.Background(), u.Email)
	if !remote.Enabled {
		t.Fatal("remote not enabled after forced activation")
	}
}

func TestService_ForceStatusPartialSuccess(t *testing.T) {
	// No remote account: the local write sticks, the push is reported failed.
	service, store, _, u := newSyncFixture(t, user.StatusActive)

	result, err := service.ForceStatus(context.Background(), u.ID, user.StatusSuspended)
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if !result.LocalUpdated {
		t.Fatal("local write must succeed")
	}
	if result.RemoteSynced || result.RemoteError == "" {
		t.Fatalf("expected a reported remote failure, got %+v", result)
	}
	if store.byID[u.ID].Status != user.StatusSuspended {
		t.Fatalf("local status rolled back: %s", store.byID[u.ID].Status)
	}
}

func TestService_ForceStatusRejectsUnknownStatus(t *testing.T) {
	service, _, _, u := newSyncFixture(t, user.StatusActive)

	if _, err := service.ForceStatus(context.Background(), u.ID, user.AccountStatus("BOGUS")); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestService_ForceStatusUnknownUser(t *testing.T) {
	service, _, _, _ := newSyncFixture(t, user.StatusActive)

	if _, err := service.ForceStatus(context.Background(), kernel.UserIDFrom("ghost"), user.StatusActive); err == nil {
		t.Fatal("expected not-found error")
	}
}
