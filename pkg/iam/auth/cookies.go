package auth

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/logx"
)

// Cookie names shared with the frontend.
const (
	AccessTokenCookie  = "ACCESS_TOKEN"
	RefreshTokenCookie = "REFRESH_TOKEN"
	UserInfoCookie     = "USER_INFO"
)

// CookieTransport writes and clears the auth cookie triplet. Token cookies
// are HttpOnly; USER_INFO is script-readable so the UI can render the user
// without an extra round trip.
type CookieTransport struct {
	cfg config.CookieConfig
}

func NewCookieTransport(cfg config.CookieConfig) *CookieTransport {
	return &CookieTransport{cfg: cfg}
}

// userInfoPayload is the script-readable projection of the session. It never
// contains tokens.
type userInfoPayload struct {
	UserID     string   `json:"userId"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Department string   `json:"department,omitempty"`
	Roles      []string `json:"roles"`
}

// Set writes all three cookies for a fresh login. Token cookies always live
// exactly as long as the token inside them; only USER_INFO toggles between a
// persistent cookie (rememberMe) and one that dies with the browser.
func (t *CookieTransport) Set(c *fiber.Ctx, pair *TokenPair, claims *TokenClaims, rememberMe bool) {
	infoMaxAge := 0
	if rememberMe {
		infoMaxAge = pair.RefreshTTLSeconds
	}

	t.write(c, AccessTokenCookie, pair.AccessToken, pair.AccessTTLSeconds, true)
	t.write(c, RefreshTokenCookie, pair.RefreshToken, pair.RefreshTTLSeconds, true)
	t.write(c, UserInfoCookie, t.encodeUserInfo(claims), infoMaxAge, false)
}

// UpdateAccessToken replaces only the access token cookie, leaving the
// refresh token and user info untouched. Used on the silent refresh path.
func (t *CookieTransport) UpdateAccessToken(c *fiber.Ctx, accessToken string, ttlSeconds int) {
	t.write(c, AccessTokenCookie, accessToken, ttlSeconds, true)
}

// Clear expires all three cookies.
func (t *CookieTransport) Clear(c *fiber.Ctx) {
	t.expire(c, AccessTokenCookie, true)
	t.expire(c, RefreshTokenCookie, true)
	t.expire(c, UserInfoCookie, false)
}

// ReadAccessToken returns the raw access token cookie, empty when absent.
func (t *CookieTransport) ReadAccessToken(c *fiber.Ctx) string {
	return c.Cookies(AccessTokenCookie)
}

// ReadRefreshToken returns the raw refresh token cookie, empty when absent.
func (t *CookieTransport) ReadRefreshToken(c *fiber.Ctx) string {
	return c.Cookies(RefreshTokenCookie)
}

// ReadUserInfo returns the raw user info cookie, empty when absent.
func (t *CookieTransport) ReadUserInfo(c *fiber.Ctx) string {
	return c.Cookies(UserInfoCookie)
}

func (t *CookieTransport) encodeUserInfo(claims *TokenClaims) string {
	payload := userInfoPayload{
		UserID:     claims.UserID.String(),
		Email:      claims.Email,
		FirstName:  claims.FirstName,
		LastName:   claims.LastName,
		Department: claims.Department,
		Roles:      claims.Roles,
	}
	if payload.Roles == nil {
		payload.Roles = []string{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logx.WithError(err).Error("failed to encode user info cookie")
		return ""
	}
	return url.QueryEscape(string(raw))
}

func (t *CookieTransport) write(c *fiber.Ctx, name, value string, maxAge int, httpOnly bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     t.cfg.Path,
		Domain:   t.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   t.cfg.Secure,
		HTTPOnly: httpOnly,
		SameSite: t.cfg.SameSite,
	})
}

func (t *CookieTransport) expire(c *fiber.Ctx, name string, httpOnly bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     t.cfg.Path,
		Domain:   t.cfg.Domain,
		Expires:  time.Now().Add(-time.Hour),
		Secure:   t.cfg.Secure,
		HTTPOnly: httpOnly,
		SameSite: t.cfg.SameSite,
	})
}
