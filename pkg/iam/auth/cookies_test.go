package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/iam/auth"
)

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func setCookiesViaApp(t *testing.T, rememberMe bool) []*http.Cookie {
	t.Helper()

	transport := auth.NewCookieTransport(config.CookieConfig{
		Secure:   true,
		SameSite: "Strict",
		Path:     "/",
	})
	pair := &auth.TokenPair{
		AccessToken:       "access-token",
		RefreshToken:      "refresh-token",
		AccessTTLSeconds:  1800,
		RefreshTTLSeconds: 7200,
		IssuedAt:          time.Now(),
	}

	app := fiber.New()
	app.Get("/login", func(c *fiber.Ctx) error {
		transport.Set(c, pair, testClaims(), rememberMe)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp.Cookies()
}

func TestCookieTransport_SetWritesTriplet(t *testing.T) {
	cookies := setCookiesViaApp(t, true)

	access := cookieByName(cookies, auth.AccessTokenCookie)
	refresh := cookieByName(cookies, auth.RefreshTokenCookie)
	info := cookieByName(cookies, auth.UserInfoCookie)
	if access == nil || refresh == nil || info == nil {
		t.Fatalf("expected all three cookies, got %v", cookies)
	}

	if !access.HttpOnly || !refresh.HttpOnly {
		t.Fatal("token cookies must be HttpOnly")
	}
	if info.HttpOnly {
		t.Fatal("USER_INFO must be script-readable")
	}
	if !access.Secure || !refresh.Secure || !info.Secure {
		t.Fatal("all cookies must carry the Secure attribute")
	}

	// Token cookies live as long as the tokens they carry; remember-me
	// only makes USER_INFO persistent.
	if access.MaxAge != 1800 || refresh.MaxAge != 7200 {
		t.Fatalf("token cookie lifetimes must match token TTLs, got %d/%d", access.MaxAge, refresh.MaxAge)
	}
	if info.MaxAge != 7200 {
		t.Fatalf("expected persistent USER_INFO with MaxAge 7200, got %d", info.MaxAge)
	}
}

func TestCookieTransport_TokenLifetimesIgnoreRememberMe(t *testing.T) {
	cookies := setCookiesViaApp(t, false)

	access := cookieByName(cookies, auth.AccessTokenCookie)
	refresh := cookieByName(cookies, auth.RefreshTokenCookie)
	info := cookieByName(cookies, auth.UserInfoCookie)
	if access == nil || refresh == nil || info == nil {
		t.Fatalf("expected all three cookies, got %v", cookies)
	}

	if access.MaxAge != 1800 || refresh.MaxAge != 7200 {
		t.Fatalf("token cookie lifetimes must match token TTLs, got %d/%d", access.MaxAge, refresh.MaxAge)
	}
	if info.MaxAge > 0 {
		t.Fatalf("USER_INFO must be a session cookie without remember-me, got MaxAge %d", info.MaxAge)
	}
}

func TestCookieTransport_UserInfoPayload(t *testing.T) {
	cookies := setCookiesViaApp(t, false)

	info := cookieByName(cookies, auth.UserInfoCookie)
	if info == nil {
		t.Fatal("missing USER_INFO cookie")
	}

	raw, err := url.QueryUnescape(info.Value)
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}

	var payload struct {
		UserID string   `json:"userId"`
		Email  string   `json:"email"`
		Roles  []string `json:"roles"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Email != "jane@example.com" || len(payload.Roles) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.UserID == "" {
		t.Fatal("payload missing user id")
	}
}

func TestCookieTransport_Clear(t *testing.T) {
	transport := auth.NewCookieTransport(config.CookieConfig{Path: "/"})

	app := fiber.New()
	app.Get("/logout", func(c *fiber.Ctx) error {
		transport.Clear(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/logout", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie, auth.UserInfoCookie} {
		c := cookieByName(resp.Cookies(), name)
		if c == nil {
			t.Fatalf("missing expired cookie %s", name)
		}
		if c.Value != "" || !c.Expires.Before(time.Now()) {
			t.Fatalf("%s not expired: value=%q expires=%v", name, c.Value, c.Expires)
		}
	}
}

func TestCookieTransport_Readers(t *testing.T) {
	transport := auth.NewCookieTransport(config.CookieConfig{Path: "/"})

	app := fiber.New()
	app.Get("/inspect", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"access":  transport.ReadAccessToken(c),
			"refresh": transport.ReadRefreshToken(c),
			"info":    transport.ReadUserInfo(c),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/inspect", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: "acc"})
	req.AddCookie(&http.Cookie{Name: auth.UserInfoCookie, Value: "info"})

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["access"] != "acc" || body["info"] != "info" {
		t.Fatalf("unexpected reads: %v", body)
	}
	if body["refresh"] != "" {
		t.Fatalf("absent cookie should read empty, got %q", body["refresh"])
	}
}

func TestCookieTransport_UserInfoRolesNeverNull(t *testing.T) {
	transport := auth.NewCookieTransport(config.CookieConfig{Path: "/"})
	claims := testClaims()
	claims.Roles = nil
	pair := &auth.TokenPair{
		AccessToken:       "access-token",
		RefreshToken:      "refresh-token",
		AccessTTLSeconds:  1800,
		RefreshTTLSeconds: 7200,
		IssuedAt:          time.Now(),
	}

	app := fiber.New()
	app.Get("/login", func(c *fiber.Ctx) error {
		transport.Set(c, pair, claims, false)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	info := cookieByName(resp.Cookies(), auth.UserInfoCookie)
	if info == nil {
		t.Fatal("missing USER_INFO cookie")
	}
	raw, err := url.QueryUnescape(info.Value)
	if err != nil {
		t.Fatalf("unescape: %v", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(payload["roles"]) != "[]" {
		t.Fatalf("roles must serialize as an empty array, got %s", payload["roles"])
	}
}
