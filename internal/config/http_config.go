package config

import "time"

// HTTPConfig describes the outbound request pipeline.
type HTTPConfig interface {
	GetRequestTimeout() time.Duration
	GetMaxRetryAttempts() int
	GetPublicPathPrefixes() []string
	GetTokenExpiryMargin() time.Duration
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

func (HTTP) GetRequestTimeout() time.Duration {
	return 30 * time.Second
}

// GetMaxRetryAttempts is the ceiling on 401-triggered replays for a single
// logical request before the session is considered lost.
func (HTTP) GetMaxRetryAttempts() int {
	return 2
}

func (HTTP) GetPublicPathPrefixes() []string {
	return splitAndTrim(GetEnv("SSO_PUBLIC_PATHS", "/api/public"))
}

// GetTokenExpiryMargin is subtracted from the recorded expiry so a token is
// renewed before the provider would reject it mid-flight.
func (HTTP) GetTokenExpiryMargin() time.Duration {
	return 300 * time.Second
}
