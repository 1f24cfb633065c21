package statussync

import (
	"context"
	"time"

	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/logx"
)

const (
	schedulerPageSize   = 100
	pendingAgeWarnAfter = 7 * 24 * time.Hour
)

// Scheduler drives the periodic reconciliation passes: a full sweep of the
// whole population, a spot-check of active accounts, and an audit of stale
// pending registrations.
type Scheduler struct {
	service *Service
	users   user.Store
	cfg     config.CognitoConfig
}

func NewScheduler(service *Service, users user.Store, cfg config.CognitoConfig) *Scheduler {
	return &Scheduler{service: service, users: users, cfg: cfg}
}

// Start launches the reconciliation loops. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.SyncEnabled {
		logx.Info("status sync scheduler disabled")
		return
	}

	go s.loop(ctx, s.cfg.FullSyncInterval, "full sync", s.runFullSync)
	go s.loop(ctx, s.cfg.SpotCheckInterval, "active spot-check", s.runActiveSpotCheck)
	go s.loop(ctx, s.cfg.PendingAuditPeriod, "pending audit", s.runPendingAudit)

	logx.WithFields(logx.Fields{
		"fullSyncInterval":   s.cfg.FullSyncInterval.String(),
		"spotCheckInterval":  s.cfg.SpotCheckInterval.String(),
		"pendingAuditPeriod": s.cfg.PendingAuditPeriod.String(),
	}).Info("status sync scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, name string, run func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// runFullSync walks every local account, repairs local state from the
// provider, then pushes the repaired state back.
func (s *Scheduler) runFullSync(ctx context.Context) {
	start := time.Now()
	checked, failed := 0, 0

	s.eachUser(ctx, func(u *user.User) {
		checked++
		if err := s.service.SyncRemoteToLocal(ctx, u); err != nil {
			failed++
			logx.WithError(err).WithField("email", u.Email).Warn("full sync: remote-to-local pass failed")
			return
		}
		if err := s.service.SyncLocalToRemote(ctx, u); err != nil {
			failed++
			logx.WithError(err).WithField("email", u.Email).Warn("full sync: local-to-remote pass failed")
		}
	})

	logx.WithFields(logx.Fields{
		"checked":  checked,
		"failed":   failed,
		"duration": time.Since(start).String(),
	}).Info("full status sync completed")
}

// runActiveSpotCheck validates active accounts only and flags drift without
// repairing it. Repairs belong to the full sync.
func (s *Scheduler) runActiveSpotCheck(ctx context.Context) {
	inconsistent := 0

	s.eachByStatus(ctx, user.StatusActive, func(u *user.User) {
		result, err := s.service.Validate(ctx, u.Email)
		if err != nil {
			logx.WithError(err).WithField("email", u.Email).Warn("spot-check validation failed")
			return
		}
		if !result.Consistent {
			inconsistent++
			logx.WithFields(logx.Fields{
				"email": u.Email,
				"issue": result.Issue,
			}).Warn("active account inconsistent with provider")
		}
	})

	if inconsistent > 0 {
		logx.WithField("inconsistent", inconsistent).Warn("active spot-check found drift")
	} else {
		logx.Debug("active spot-check clean")
	}
}

// runPendingAudit flags registrations stuck in a pending state for over a
// week so an operator can chase them.
func (s *Scheduler) runPendingAudit(ctx context.Context) {
	cutoff := time.Now().Add(-pendingAgeWarnAfter)
	stale := 0

	for _, status := range []user.AccountStatus{user.StatusPendingVerification, user.StatusPendingApproval} {
		s.eachByStatus(ctx, status, func(u *user.User) {
			if u.CreatedAt.Before(cutoff) {
				stale++
				logx.WithFields(logx.Fields{
					"email":     u.Email,
					"status":    u.Status.String(),
					"createdAt": u.CreatedAt.Format(time.RFC3339),
				}).Warn("registration pending for over a week")
			}
		})
	}

	if stale > 0 {
		logx.WithField("stale", stale).Warn("pending audit found stale registrations")
	}
}

func (s *Scheduler) eachUser(ctx context.Context, fn func(*user.User)) {
	for page := 1; ; page++ {
		users, err := s.users.ListAll(ctx, user.ListOptions{Page: page, PageSize: schedulerPageSize})
		if err != nil {
			logx.WithError(err).Error("scheduler user listing failed")
			return
		}
		for _, u := range users {
			if ctx.Err() != nil {
				return
			}
			fn(u)
		}
		if len(users) < schedulerPageSize {
			return
		}
	}
}

func (s *Scheduler) eachByStatus(ctx context.Context, status user.AccountStatus, fn func(*user.User)) {
	for page := 1; ; page++ {
		users, err := s.users.ListByStatus(ctx, status, user.ListOptions{Page: page, PageSize: schedulerPageSize})
		if err != nil {
			logx.WithError(err).Error("scheduler user listing failed")
			return
		}
		for _, u := range users {
			if ctx.Err() != nil {
				return
			}
			fn(u)
		}
		if len(users) < schedulerPageSize {
			return
		}
	}
}
