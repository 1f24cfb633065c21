package auth

import (
	"context"
	"sync"
	"time"

	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/kernel"
	"github.com/protomil/core/pkg/logx"
)

// Session is the in-process record of a logged-in user. Roles are refreshed
// from the store on every read so a grant takes effect on the next request
// without re-login.
type Session struct {
	UserID        kernel.UserID
	Sub           string
	Email         string
	FirstName     string
	LastName      string
	Department    string
	Roles         []string
	Active        bool
	CreatedAt     time.Time
	LastSeenAt    time.Time
	InvalidatedAt *time.Time
}

// Identity projects the session onto a request identity.
func (s *Session) Identity() *kernel.RequestIdentity {
	return &kernel.RequestIdentity{
		Sub:        s.Sub,
		UserID:     s.UserID,
		Email:      s.Email,
		FirstName:  s.FirstName,
		LastName:   s.LastName,
		Department: s.Department,
		Roles:      append([]string(nil), s.Roles...),
	}
}

// SessionCache holds live sessions keyed by user id. All methods are safe
// for concurrent use.
type SessionCache struct {
	mu       sync.Mutex
	sessions map[kernel.UserID]*Session
	roles    user.RoleStore
	nowFunc  func() time.Time
}

func NewSessionCache(roles user.RoleStore) *SessionCache {
	return &SessionCache{
		sessions: make(map[kernel.UserID]*Session),
		roles:    roles,
		nowFunc:  time.Now,
	}
}

// Create registers a session for the user, replacing any existing one.
func (c *SessionCache) Create(u *user.User, roles []string) *Session {
	now := c.nowFunc()
	s := &Session{
		UserID:     u.ID,
		Sub:        u.Sub,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Department: u.Department,
		Roles:      append([]string(nil), roles...),
		Active:     true,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	c.mu.Lock()
	c.sessions[u.ID] = s
	c.mu.Unlock()

	return c.snapshot(s)
}

// Get returns a copy of the user's active session with roles refreshed from
// the store, or (nil, nil) on a miss. An invalidated entry is a miss too: the
// caller rebuilds from the store, which re-gates on account status. A role
// lookup failure keeps the cached roles rather than dropping the session.
func (c *SessionCache) Get(ctx context.Context, id kernel.UserID) (*Session, error) {
	c.mu.Lock()
	s, ok := c.sessions[id]
	live := ok && s.Active
	c.mu.Unlock()
	if !live {
		return nil, nil
	}

	// Role lookup happens outside the lock; the write-back below re-checks
	// that the session still exists.
	roles, err := c.roles.RoleNames(ctx, id)
	if err != nil {
		logx.WithError(err).WithField("userId", id.String()).
			Warn("role refresh failed, serving cached roles")
		roles = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok = c.sessions[id]
	if !ok || !s.Active {
		return nil, nil
	}
	if roles != nil {
		s.Roles = roles
	}
	s.LastSeenAt = c.nowFunc()
	return c.snapshot(s), nil
}

// Invalidate marks the session inactive without removing it, so the sweep
// can account for it. Unknown ids are a no-op.
func (c *SessionCache) Invalidate(id kernel.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[id]; ok && s.Active {
		s.Active = false
		now := c.nowFunc()
		s.InvalidatedAt = &now
	}
}

// Remove drops the session entirely.
func (c *SessionCache) Remove(id kernel.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

// HasActive reports whether the user has a live, active session.
func (c *SessionCache) HasActive(id kernel.UserID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return ok && s.Active
}

// ActiveCount returns the number of active sessions.
func (c *SessionCache) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sessions {
		if s.Active {
			n++
		}
	}
	return n
}

// Sweep removes sessions that are inactive or idle past the threshold and
// returns how many were dropped.
func (c *SessionCache) Sweep(now time.Time, idleThreshold time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, s := range c.sessions {
		if !s.Active || now.Sub(s.LastSeenAt) > idleThreshold {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs the periodic sweep until ctx is done.
func (c *SessionCache) StartSweeper(ctx context.Context, interval, idleThreshold time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := c.Sweep(now, idleThreshold); removed > 0 {
					logx.WithField("removed", removed).Debug("session sweep completed")
				}
			}
		}
	}()
}

// snapshot copies the session so callers can't mutate cache state. Must be
// called with the lock held (or on a freshly built session).
func (c *SessionCache) snapshot(s *Session) *Session {
	cp := *s
	cp.Roles = append([]string(nil), s.Roles...)
	return &cp
}
