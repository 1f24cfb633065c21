package config

import "time"

// CognitoConfig configures the external identity provider integration.
// When Enabled is false every remote call is served by the deterministic
// mock provider instead.
type CognitoConfig struct {
	Enabled    bool
	UserPoolID string
	ClientID   string
	Region     string

	// RequestTimeout bounds every call to the provider.
	RequestTimeout time.Duration

	// SyncEnabled turns the periodic status reconciliation jobs on.
	SyncEnabled        bool
	FullSyncInterval   time.Duration
	SpotCheckInterval  time.Duration
	PendingAuditPeriod time.Duration
}

func loadCognitoConfig() CognitoConfig {
	return CognitoConfig{
		Enabled:            getEnvBool("COGNITO_ENABLED", false),
		UserPoolID:         getEnv("COGNITO_USER_POOL_ID", ""),
		ClientID:           getEnv("COGNITO_CLIENT_ID", ""),
		Region:             getEnv("COGNITO_REGION", "us-east-1"),
		RequestTimeout:     getEnvDuration("COGNITO_REQUEST_TIMEOUT", 10*time.Second),
		SyncEnabled:        getEnvBool("STATUS_SYNC_ENABLED", false),
		FullSyncInterval:   getEnvDuration("STATUS_SYNC_FULL_INTERVAL", 24*time.Hour),
		SpotCheckInterval:  getEnvDuration("STATUS_SYNC_SPOT_INTERVAL", time.Hour),
		PendingAuditPeriod: getEnvDuration("STATUS_SYNC_PENDING_INTERVAL", 30*time.Minute),
	}
}
