// Package iamcontainer wires the IAM dependency graph.
package iamcontainer

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/iam/auth"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/iam/statussync"
	"github.com/protomil/core/pkg/iam/user"
	"github.com/protomil/core/pkg/iam/user/userinfra"
	"github.com/protomil/core/pkg/logx"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// No hidden globals — everything comes through here.
// ---------------------------------------------------------------------------

type Deps struct {
	DB  *sqlx.DB
	Cfg *config.Config

	// Provider is the identity-provider gateway, chosen by cmd/ (Cognito or
	// the in-memory mock).
	Provider idp.Provider
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module.
// Only expose what other modules or cmd/ actually need.
// ---------------------------------------------------------------------------

type Container struct {
	UserStore   user.Store
	AuthService *auth.Service
	SyncService *statussync.Service

	AuthHandlers   *auth.Handlers
	AuthMiddleware *auth.Middleware

	Sessions  *auth.SessionCache
	Scheduler *statussync.Scheduler

	cfg *config.Config
}

// New constructs the IAM graph. Order matters: infra → services → handlers
// → middleware.
func New(deps Deps) *Container {
	logx.Info("🔧 Wiring IAM container...")

	store := userinfra.NewPostgresUserStore(deps.DB)

	codec := auth.NewJWTCodec(deps.Cfg.Security)
	cookies := auth.NewCookieTransport(deps.Cfg.Security.Cookies)
	sessions := auth.NewSessionCache(store)

	syncService := statussync.NewService(store, store, deps.Provider)
	authService := auth.NewService(store, store, deps.Provider, codec, sessions, syncService)

	handlers := auth.NewHandlers(authService, codec, cookies)
	middleware := auth.NewMiddleware(codec, cookies, authService, auth.DefaultMiddlewareConfig())

	scheduler := statussync.NewScheduler(syncService, store, deps.Cfg.Cognito)

	logx.Info("✅ IAM container wired")

	return &Container{
		UserStore:      store,
		AuthService:    authService,
		SyncService:    syncService,
		AuthHandlers:   handlers,
		AuthMiddleware: middleware,
		Sessions:       sessions,
		Scheduler:      scheduler,
		cfg:            deps.Cfg,
	}
}

// StartBackgroundServices launches the session sweeper and the status sync
// scheduler. They run until ctx is cancelled.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	c.Sessions.StartSweeper(ctx, c.cfg.Session.SweepInterval, c.cfg.Session.IdleThreshold)
	logx.WithFields(logx.Fields{
		"sweepInterval": c.cfg.Session.SweepInterval.String(),
		"idleThreshold": c.cfg.Session.IdleThreshold.String(),
	}).Info("session sweeper started")

	c.Scheduler.Start(ctx)
}
