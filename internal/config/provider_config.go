package config

import "strings"

// ProviderConfig describes the upstream identity provider the client
// authenticates against.
type ProviderConfig interface {
	GetAuthority() string
	GetClientID() string
	GetRedirectURI() string
	GetScopes() []string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetAuthority returns the issuer URL used for OIDC discovery
// (e.g. "https://login.microsoftonline.com/<tenant>/v2.0").
func (Provider) GetAuthority() string {
	return GetEnv("SSO_AUTHORITY", "https://login.microsoftonline.com/common/v2.0")
}

func (Provider) GetClientID() string {
	return GetEnv("SSO_CLIENT_ID", "")
}

func (Provider) GetRedirectURI() string {
	return GetEnv("SSO_REDIRECT_URI", "http://localhost:5173/callback")
}

func (Provider) GetScopes() []string {
	scopes := GetEnv("SSO_SCOPES", "openid,profile,email,User.Read")
	return splitAndTrim(scopes)
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
