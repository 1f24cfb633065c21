package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/protomil/core/pkg/errx"
)

// Handlers exposes the auth endpoints. Errors flow to the global errx
// error handler; only success shapes are built here.
type Handlers struct {
	service *Service
	codec   TokenCodec
	cookies *CookieTransport
}

func NewHandlers(service *Service, codec TokenCodec, cookies *CookieTransport) *Handlers {
	return &Handlers{service: service, codec: codec, cookies: cookies}
}

// RegisterRoutes mounts the auth endpoints under /api/v1/auth.
func (h *Handlers) RegisterRoutes(app fiber.Router) {
	grp := app.Group("/api/v1/auth")
	grp.Post("/login", h.Login)
	grp.Post("/logout", h.Logout)
	grp.Post("/refresh", h.Refresh)
	grp.Get("/me", h.Me)
	grp.Post("/verify-email", h.VerifyEmail)
	grp.Post("/resend-verification", h.ResendVerification)
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resendVerificationRequest struct {
	Email string `json:"email"`
}

// Login authenticates the credentials, sets the cookie triplet and returns
// the login result. Tokens are delivered in cookies only, never in the body.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}

	result, err := h.service.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	claims := &TokenClaims{
		UserID:     result.UserID,
		Email:      result.Email,
		FirstName:  result.FirstName,
		LastName:   result.LastName,
		Department: result.Department,
		Roles:      result.Roles,
	}
	h.cookies.Set(c, result.Tokens, claims, result.RememberMe)

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":         result.UserID.String(),
			"email":      result.Email,
			"firstName":  result.FirstName,
			"lastName":   result.LastName,
			"department": result.Department,
			"roles":      result.Roles,
		},
		"loginTime":  result.LoginTime,
		"rememberMe": result.RememberMe,
	})
}

// Logout drops the session and expires the cookies. Safe to call without a
// valid session.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	if identity := IdentityFromCtx(c); identity != nil {
		h.service.Logout(identity.UserID)
	} else if token := h.cookies.ReadRefreshToken(c); token != "" {
		if claims, verr := h.codec.Verify(token); verr == nil {
			h.service.Logout(claims.UserID)
		}
	}
	h.cookies.Clear(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Refresh exchanges a valid refresh cookie for a new access cookie. The
// refresh token itself is not rotated.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	token := h.cookies.ReadRefreshToken(c)
	if token == "" {
		return ErrUnauthenticated()
	}

	refClaims, verr := h.codec.Verify(token)
	if verr != nil || refClaims.Kind != KindRefresh {
		h.cookies.Clear(c)
		return ErrUnauthenticated()
	}

	claims, err := h.service.CurrentClaims(c.UserContext(), refClaims.UserID)
	if err != nil {
		h.cookies.Clear(c)
		return err
	}

	access, err := h.codec.MintAccess(claims)
	if err != nil {
		return ErrServiceUnavailable().WithCause(err)
	}
	h.cookies.UpdateAccessToken(c, access, int(h.codec.AccessTTL().Seconds()))

	return c.JSON(fiber.Map{
		"message":   "Token refreshed",
		"expiresIn": int(h.codec.AccessTTL().Seconds()),
	})
}

// Me returns the authenticated identity attached by the middleware.
func (h *Handlers) Me(c *fiber.Ctx) error {
	identity := IdentityFromCtx(c)
	if identity == nil {
		return ErrUnauthenticated()
	}
	return c.JSON(fiber.Map{
		"id":         identity.UserID.String(),
		"email":      identity.Email,
		"firstName":  identity.FirstName,
		"lastName":   identity.LastName,
		"department": identity.Department,
		"roles":      identity.Roles,
	})
}

// VerifyEmail confirms the sign-up code and moves the account into the
// approval queue.
func (h *Handlers) VerifyEmail(c *fiber.Ctx) error {
	var req verifyEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}
	if err := h.service.VerifyEmail(c.UserContext(), req.Email, req.Code); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Email verified. Your account is awaiting administrator approval."})
}

// ResendVerification re-sends the confirmation code. Always answers the
// same way for known and unknown emails.
func (h *Handlers) ResendVerification(c *fiber.Ctx) error {
	var req resendVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body").WithCause(err)
	}
	if err := h.service.ResendVerification(c.UserContext(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "If the account exists, a verification code has been sent."})
}
