package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/protomil/core/pkg/config"
	"github.com/protomil/core/pkg/kernel"
	"github.com/protomil/core/pkg/logx"
)

// VerifyReason classifies why token verification failed.
type VerifyReason string

const (
	ReasonExpired      VerifyReason = "EXPIRED"
	ReasonMalformed    VerifyReason = "MALFORMED"
	ReasonBadSignature VerifyReason = "BAD_SIGNATURE"
	ReasonUnsupported  VerifyReason = "UNSUPPORTED"
	ReasonUnknown      VerifyReason = "UNKNOWN"
)

// VerifyError is the classified outcome of a failed verification. It is a
// plain value; attacker-controlled input can never produce a panic here.
type VerifyError struct {
	Reason VerifyReason
	cause  error
}

func (e *VerifyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("token verification failed (%s): %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("token verification failed (%s)", e.Reason)
}

func (e *VerifyError) Unwrap() error { return e.cause }

// jwtClaims is the wire shape of the signed payload. Refresh tokens carry
// only sub, userId and tokenType.
type jwtClaims struct {
	UserID     string   `json:"userId"`
	Email      string   `json:"email,omitempty"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Department string   `json:"department,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	TokenType  string   `json:"tokenType"`
	jwt.RegisteredClaims
}

// JWTCodec implements TokenCodec over HMAC-SHA512 signed JWTs.
type JWTCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   string
}

const minSecretLen = 64

// NewJWTCodec builds the codec from security config. An empty secret falls
// back to a random per-process key: tokens stop verifying across restarts,
// which is acceptable only in development, so the fallback is logged loudly.
func NewJWTCodec(cfg config.SecurityConfig) *JWTCodec {
	secret := resolveSecret(cfg.JWTSecret)

	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 2 * time.Hour
	}

	return &JWTCodec{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
	}
}

func resolveSecret(configured string) []byte {
	if strings.TrimSpace(configured) == "" {
		logx.Warn("no JWT secret configured, generating a random per-process key; tokens will not survive a restart (development only)")
		key := make([]byte, minSecretLen)
		if _, err := rand.Read(key); err != nil {
			logx.Fatalf("failed to generate fallback JWT key: %v", err)
		}
		return key
	}
	if len(configured) < minSecretLen {
		logx.Warnf("JWT secret shorter than %d bytes, padding for development use", minSecretLen)
		return []byte(configured + strings.Repeat("0", minSecretLen-len(configured)))
	}
	return []byte(configured)
}

func (j *JWTCodec) AccessTTL() time.Duration  { return j.accessTTL }
func (j *JWTCodec) RefreshTTL() time.Duration { return j.refreshTTL }

// MintAccess signs an access token carrying the full claim set.
func (j *JWTCodec) MintAccess(claims *TokenClaims) (string, error) {
	return j.mint(claims, KindAccess, j.accessTTL, time.Now())
}

// MintRefresh signs a refresh token carrying only subject, user id and kind,
// minimizing what a stolen long-lived token exposes.
func (j *JWTCodec) MintRefresh(claims *TokenClaims) (string, error) {
	return j.mint(claims, KindRefresh, j.refreshTTL, time.Now())
}

// MintPair issues an access and refresh token sharing one issue instant.
func (j *JWTCodec) MintPair(claims *TokenClaims) (*TokenPair, error) {
	now := time.Now()

	access, err := j.mint(claims, KindAccess, j.accessTTL, now)
	if err != nil {
		return nil, err
	}
	refresh, err := j.mint(claims, KindRefresh, j.refreshTTL, now)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:       access,
		RefreshToken:      refresh,
		AccessTTLSeconds:  int(j.accessTTL.Seconds()),
		RefreshTTLSeconds: int(j.refreshTTL.Seconds()),
		IssuedAt:          now,
	}, nil
}

func (j *JWTCodec) mint(claims *TokenClaims, kind TokenKind, ttl time.Duration, now time.Time) (string, error) {
	wire := jwtClaims{
		UserID:    claims.UserID.String(),
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   claims.Sub,
			Audience:  jwt.ClaimStrings{j.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if kind == KindAccess {
		wire.Email = claims.Email
		wire.FirstName = claims.FirstName
		wire.LastName = claims.LastName
		wire.Department = claims.Department
		wire.Roles = claims.Roles
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, wire)
	signed, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and expiry, and returns the
// decoded claims or a classified failure.
func (j *JWTCodec) Verify(tokenString string) (*TokenClaims, *VerifyError) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, &VerifyError{Reason: ReasonMalformed}
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwtClaims{},
		func(token *jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classify(err)
	}

	wire, ok := parsed.Claims.(*jwtClaims)
	if !ok {
		return nil, &VerifyError{Reason: ReasonUnknown}
	}

	claims := &TokenClaims{
		Sub:        wire.Subject,
		UserID:     kernel.UserIDFrom(wire.UserID),
		Email:      wire.Email,
		FirstName:  wire.FirstName,
		LastName:   wire.LastName,
		Department: wire.Department,
		Roles:      wire.Roles,
		Kind:       TokenKind(wire.TokenType),
		TokenID:    wire.ID,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}
	return claims, nil
}

func classify(err error) *VerifyError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &VerifyError{Reason: ReasonExpired, cause: err}
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &VerifyError{Reason: ReasonMalformed, cause: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &VerifyError{Reason: ReasonBadSignature, cause: err}
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return &VerifyError{Reason: ReasonUnsupported, cause: err}
	default:
		return &VerifyError{Reason: ReasonUnknown, cause: err}
	}
}

// IsExpired reports true when the token fails verification for any reason.
// Unparseable input counts as expired: fail closed.
func (j *JWTCodec) IsExpired(tokenString string) bool {
	_, err := j.Verify(tokenString)
	return err != nil
}

// IsRefreshToken reports true only for a verifiable token minted with the
// refresh kind.
func (j *JWTCodec) IsRefreshToken(tokenString string) bool {
	claims, err := j.Verify(tokenString)
	return err == nil && claims.Kind == KindRefresh
}
