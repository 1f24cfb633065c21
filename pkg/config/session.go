package config

import "time"

// SessionConfig configures the in-process session cache and its sweep.
type SessionConfig struct {
	SweepInterval time.Duration
	IdleThreshold time.Duration
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 30*time.Minute),
		IdleThreshold: getEnvDuration("SESSION_IDLE_THRESHOLD", 3*time.Hour),
	}
}
