package auth

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/protomil/core/pkg/kernel"
	"github.com/protomil/core/pkg/logx"
)

// IdentityLocal is the fiber locals key the middleware stores the resolved
// identity under.
const IdentityLocal = "identity"

// MiddlewareConfig routes paths into public, protected and pass-through
// classes. Prefix matching only.
type MiddlewareConfig struct {
	PublicPrefixes    []string
	ProtectedPrefixes []string
	APIPrefix         string
	LoginPath         string
}

// DefaultMiddlewareConfig mirrors the application's route map.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		PublicPrefixes: []string{
			"/api/v1/auth/login",
			"/api/v1/auth/verify-email",
			"/api/v1/auth/resend-verification",
			"/wireframes/login",
			"/wireframes/register",
			"/health",
			"/static/",
		},
		ProtectedPrefixes: []string{"/api/", "/wireframes/"},
		APIPrefix:         "/api/",
		LoginPath:         "/wireframes/login",
	}
}

// Middleware authenticates each request from the cookie pair. An expired or
// invalid access token is refreshed once, transparently; a bad refresh token
// clears every auth cookie so the browser starts clean.
type Middleware struct {
	codec   TokenCodec
	cookies *CookieTransport
	service *Service
	cfg     MiddlewareConfig
}

func NewMiddleware(codec TokenCodec, cookies *CookieTransport, service *Service, cfg MiddlewareConfig) *Middleware {
	return &Middleware{codec: codec, cookies: cookies, service: service, cfg: cfg}
}

// Handler returns the fiber handler. Anything that is not provably
// authenticated on a protected path is rejected; errors never fall through
// to an authenticated state.
func (m *Middleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if m.isPublic(path) {
			return c.Next()
		}

		if claims := m.resolve(c); claims != nil {
			m.attach(c, claims)
			return c.Next()
		}

		if !m.isProtected(path) {
			return c.Next()
		}
		return m.deny(c)
	}
}

// resolve returns valid access claims for the request, refreshing once when
// the access token fails verification, or nil when the request is
// unauthenticated.
func (m *Middleware) resolve(c *fiber.Ctx) *TokenClaims {
	access := m.cookies.ReadAccessToken(c)
	if access != "" {
		claims, verr := m.codec.Verify(access)
		if verr == nil && claims.Kind == KindAccess {
			return claims
		}
		// Expired, tampered or mis-kinded tokens all take the refresh path;
		// the refresh token decides whether the session survives.
		if verr != nil && verr.Reason != ReasonExpired {
			logx.WithField("reason", string(verr.Reason)).Warn("invalid access token, attempting refresh")
		}
	}

	refresh := m.cookies.ReadRefreshToken(c)
	if refresh == "" {
		return nil
	}

	refClaims, verr := m.codec.Verify(refresh)
	if verr != nil || refClaims.Kind != KindRefresh {
		m.cookies.Clear(c)
		return nil
	}

	claims, err := m.service.CurrentClaims(c.UserContext(), refClaims.UserID)
	if err != nil {
		logx.WithError(err).WithField("userId", refClaims.UserID.String()).
			Debug("session rebuild failed during refresh")
		m.cookies.Clear(c)
		return nil
	}

	token, err := m.codec.MintAccess(claims)
	if err != nil {
		logx.WithError(err).Error("access token mint failed during refresh")
		return nil
	}
	// Only the access cookie changes; the refresh token keeps its original
	// expiry so the session window is not silently extended.
	m.cookies.UpdateAccessToken(c, token, int(m.codec.AccessTTL().Seconds()))
	return claims
}

func (m *Middleware) attach(c *fiber.Ctx, claims *TokenClaims) {
	identity := claims.Identity()
	c.Locals(IdentityLocal, identity)
	c.SetUserContext(kernel.WithIdentity(c.UserContext(), identity))
}

func (m *Middleware) deny(c *fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), m.cfg.APIPrefix) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "Authentication failed",
			"message": "Valid authentication credentials are required",
		})
	}
	target := m.cfg.LoginPath + "?redirect=" + url.QueryEscape(c.OriginalURL())
	return c.Redirect(target, fiber.StatusFound)
}

func (m *Middleware) isPublic(path string) bool {
	return hasAnyPrefix(path, m.cfg.PublicPrefixes)
}

func (m *Middleware) isProtected(path string) bool {
	return hasAnyPrefix(path, m.cfg.ProtectedPrefixes)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// IdentityFromCtx returns the identity the middleware attached, or nil on
// an unauthenticated request.
func IdentityFromCtx(c *fiber.Ctx) *kernel.RequestIdentity {
	identity, _ := c.Locals(IdentityLocal).(*kernel.RequestIdentity)
	return identity
}
