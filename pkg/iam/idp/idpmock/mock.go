// Package idpmock is the deterministic stand-in used when the external
// identity provider integration is disabled. Identities are derived from the
// username, so fixtures are stable across processes and test runs.
package idpmock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/logx"
)

var subNamespace = uuid.MustParse("8e2f5a1c-0b7d-4f7e-9c3a-5d1e6b2a9f40")

// Sub returns the deterministic subject identifier for a username.
func Sub(username string) string {
	return uuid.NewSHA1(subNamespace, []byte(username)).String()
}

type account struct {
	sub       string
	confirmed bool
	enabled   bool
	attrs     map[string]string
}

// Provider is an in-memory idp.Provider with deterministic identities.
// Unknown usernames are provisioned as confirmed and enabled on first
// authentication so the development login flow works without setup.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*account
}

func New() *Provider {
	logx.Warn("identity provider disabled, using deterministic mock accounts")
	return &Provider{accounts: make(map[string]*account)}
}

// Seed registers a fixture account.
func (p *Provider) Seed(username string, state idp.ConfirmationState, enabled bool, attrs map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	p.accounts[username] = &account{
		sub:       Sub(username),
		confirmed: state == idp.Confirmed,
		enabled:   enabled,
		attrs:     copied,
	}
}

func (p *Provider) Authenticate(ctx context.Context, username, password string) (*idp.AuthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[username]
	if !ok {
		acct = &account{sub: Sub(username), confirmed: true, enabled: true, attrs: map[string]string{}}
		p.accounts[username] = acct
	}
	if !acct.confirmed {
		return nil, idp.Err(idp.FaultNotConfirmed)
	}
	if !acct.enabled {
		return nil, idp.Err(idp.FaultInvalidCredentials)
	}

	return &idp.AuthResult{
		Sub:          acct.sub,
		AccessToken:  fmt.Sprintf("mock-access-%s", acct.sub),
		RefreshToken: fmt.Sprintf("mock-refresh-%s", acct.sub),
		IDToken:      fmt.Sprintf("mock-id-%s", acct.sub),
		ExpiresIn:    1800,
	}, nil
}

func (p *Provider) GetUser(ctx context.Context, username string) (*idp.RemoteAccount, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[username]
	if !ok {
		return &idp.RemoteAccount{Exists: false}, nil
	}

	attrs := make(map[string]string, len(acct.attrs)+1)
	for k, v := range acct.attrs {
		attrs[k] = v
	}
	attrs["sub"] = acct.sub

	state := idp.Confirmed
	if !acct.confirmed {
		state = idp.Unconfirmed
	}

	return &idp.RemoteAccount{
		Exists:            true,
		ConfirmationState: state,
		Enabled:           acct.enabled,
		ApprovalAttribute: attrs[idp.AttrApprovalStatus],
		Attributes:        attrs,
	}, nil
}

func (p *Provider) SetEnabled(ctx context.Context, username string) error {
	return p.mutate(username, func(a *account) { a.enabled = true })
}

func (p *Provider) SetDisabled(ctx context.Context, username string) error {
	return p.mutate(username, func(a *account) { a.enabled = false })
}

func (p *Provider) UpdateAttributes(ctx context.Context, username string, attrs map[string]string) error {
	return p.mutate(username, func(a *account) {
		for k, v := range attrs {
			a.attrs[k] = v
		}
	})
}

func (p *Provider) ResendConfirmation(ctx context.Context, username string) error {
	return p.mutate(username, func(a *account) {})
}

func (p *Provider) ConfirmSignUp(ctx context.Context, username, code string) error {
	if code == "" {
		return idp.Err(idp.FaultInvalidCredentials).WithDetail("reason", "empty confirmation code")
	}
	return p.mutate(username, func(a *account) { a.confirmed = true })
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*idp.AuthResult, error) {
	return &idp.AuthResult{
		AccessToken:  "mock-refreshed-access",
		RefreshToken: refreshToken,
		IDToken:      "mock-refreshed-id",
		ExpiresIn:    1800,
	}, nil
}

func (p *Provider) mutate(username string, fn func(*account)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[username]
	if !ok {
		return idp.Err(idp.FaultNotFound).WithDetail("username", username)
	}
	fn(acct)
	return nil
}
