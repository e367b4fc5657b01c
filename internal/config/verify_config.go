package config

import "time"

// VerifyConfig describes how inbound bearer tokens are verified on the
// serving side.
type VerifyConfig interface {
	GetAllowedIssuers() []string
	GetAudience() string
	GetJWKSURL() string
	GetClockSkew() time.Duration
}

type Verify struct{}

var _ VerifyConfig = Verify{}

func (Verify) GetAllowedIssuers() []string {
	return splitAndTrim(GetEnv("SSO_ALLOWED_ISSUERS", ""))
}

// GetAudience returns the application (client) identifier expected in the
// aud claim. Tokens carrying "api://<client-id>" are accepted as well.
func (Verify) GetAudience() string {
	return GetEnv("SSO_AUDIENCE", "")
}

func (Verify) GetJWKSURL() string {
	return GetEnv("SSO_JWKS_URL", "")
}

func (Verify) GetClockSkew() time.Duration {
	return 5 * time.Minute
}
