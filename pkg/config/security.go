package config

import "time"

// SecurityConfig configures token signing and auth cookies.
type SecurityConfig struct {
	// JWTSecret signs access and refresh tokens. Empty means a random
	// per-process key is generated (development only).
	JWTSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string

	Cookies CookieConfig
}

// CookieConfig holds the attributes applied to every auth cookie.
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
	Path     string
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		JWTSecret:       getEnv("JWT_SECRET", ""),
		AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 2*time.Hour),
		Issuer:          getEnv("JWT_ISSUER", "protomil-core"),
		Audience:        getEnv("JWT_AUDIENCE", "protomil-app"),
		Cookies: CookieConfig{
			Secure:   getEnvBool("COOKIE_SECURE", false),
			SameSite: getEnv("COOKIE_SAME_SITE", "Strict"),
			Domain:   getEnv("COOKIE_DOMAIN", ""),
			Path:     getEnv("COOKIE_PATH", "/"),
		},
	}
}
