package auth_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/errx"
	"github.com/protomil/core/pkg/iam/auth"
	"github.com/protomil/core/pkg/iam/idp"
	"github.com/protomil/core/pkg/iam/idp/idpmock"
	"github.com/protomil/core/pkg/iam/user"
)

type handlersFixture struct {
	app   *fiber.App
	store *fakeUserStore
	user  *user.User
}

func newHandlersFixture(t *testing.T) *handlersFixture {
	t.Helper()

	store := newFakeUserStore()
	provider := idpmock.New()
	codec := testCodec(t)
	cookies := auth.NewCookieTransport(config.CookieConfig{Path: "/"})
	sessions := auth.NewSessionCache(store)

	u := testUser("u1")
	u.Sub = idpmock.Sub(u.Email)
	store.add(u, "TECHNICIAN")
	provider.Seed(u.Email, idp.Confirmed, true, nil)

	service := auth.NewService(store, store, provider, codec, sessions, nil)
	mw := auth.NewMiddleware(codec, cookies, service, auth.DefaultMiddlewareConfig())
	handlers := auth.NewHandlers(service, codec, cookies)

	app := fiber.New(fiber.Config{ErrorHandler: errx.FiberErrorHandler})
	app.Use(mw.Handler())
	handlers.RegisterRoutes(app)

	return &handlersFixture{app: app, store: store, user: u}
}

func (f *handlersFixture) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return body
}

func TestHandlers_LoginSetsCookies(t *testing.T) {
	f := newHandlersFixture(t)

	resp := f.postJSON(t, "/api/v1/auth/login",
		`{"email":"u1@example.com","password":"secret","remember_me":true}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie, auth.UserInfoCookie} {
		c := cookieByName(resp.Cookies(), name)
		if c == nil || c.Value == "" {
			t.Fatalf("missing cookie %s", name)
		}
	}

	body := decodeJSON(t, resp)
	userBody, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("missing user object: %v", body)
	}
	if userBody["email"] != "u1@example.com" {
		t.Fatalf("unexpected user: %v", userBody)
	}
	// Tokens travel in cookies only.
	if _, leaked := body["tokens"]; leaked {
		t.Fatal("tokens must not appear in the response body")
	}
}

func TestHandlers_LoginRejectionIsClassified(t *testing.T) {
	f := newHandlersFixture(t)
	f.store.byID[f.user.ID].Status = user.StatusPendingApproval

	resp := f.postJSON(t, "/api/v1/auth/login",
		`{"email":"u1@example.com","password":"secret"}`)
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}

	body := decodeJSON(t, resp)
	if body["code"] != "AUTH_PENDING_APPROVAL" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestHandlers_MeRequiresAuthentication(t *testing.T) {
	f := newHandlersFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestHandlers_LoginThenMe(t *testing.T) {
	f := newHandlersFixture(t)

	login := f.postJSON(t, "/api/v1/auth/login",
		`{"email":"u1@example.com","password":"secret"}`)
	access := cookieByName(login.Cookies(), auth.AccessTokenCookie)
	if access == nil {
		t.Fatal("login did not set an access cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: access.Value})
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON(t, resp)
	if body["email"] != "u1@example.com" {
		t.Fatalf("unexpected identity: %v", body)
	}
}

func TestHandlers_LogoutClearsCookies(t *testing.T) {
	f := newHandlersFixture(t)

	login := f.postJSON(t, "/api/v1/auth/login",
		`{"email":"u1@example.com","password":"secret"}`)
	access := cookieByName(login.Cookies(), auth.AccessTokenCookie)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: access.Value})
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cleared := cookieByName(resp.Cookies(), auth.AccessTokenCookie)
	if cleared == nil || cleared.Value != "" {
		t.Fatal("logout must clear the access cookie")
	}
}

func TestHandlers_RefreshReissuesAccessOnly(t *testing.T) {
	f := newHandlersFixture(t)

	login := f.postJSON(t, "/api/v1/auth/login",
		`{"email":"u1@example.com","password":"secret"}`)
	refresh := cookieByName(login.Cookies(), auth.RefreshTokenCookie)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: refresh.Value})
	resp, err := f.app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if c := cookieByName(resp.Cookies(), auth.AccessTokenCookie); c == nil || c.Value == "" {
		t.Fatal("expected a fresh access cookie")
	}
	if c := cookieByName(resp.Cookies(), auth.RefreshTokenCookie); c != nil {
		t.Fatal("refresh token must not be rotated")
	}
}

func TestHandlers_VerifyEmailFlow(t *testing.T) {
	f := newHandlersFixture(t)
	f.store.byID[f.user.ID].Status = user.StatusPendingVerification

	resp := f.postJSON(t, "/api/v1/auth/verify-email",
		`{"email":"u1@example.com","code":"123456"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if f.store.byID[f.user.ID].Status != user.StatusPendingApproval {
		t.Fatalf("expected PENDING_APPROVAL, got %s", f.store.byID[f.user.ID].Status)
	}
}

func TestHandlers_ResendVerificationAlwaysSucceeds(t *testing.T) {
	f := newHandlersFixture(t)

	for _, email := range []string{"u1@example.com", "ghost@example.com"} {
		resp := f.postJSON(t, "/api/v1/auth/resend-verification",
			`{"email":"`+email+`"}`)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", email, resp.StatusCode)
		}
	}
}
