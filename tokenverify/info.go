package tokenverify

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-sso-client/internal/utils"
)

// TokenInfo is a diagnostic projection of a verified token, suitable for an
// auth-status endpoint.
type TokenInfo struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	Audience  []string  `json:"audience"`
	ExpiresAt time.Time `json:"expiresAt"`
	IssuedAt  time.Time `json:"issuedAt"`
	Scopes    []string  `json:"scopes,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
}

// Info verifies raw and returns its diagnostic projection.
func (v *Verifier) Info(raw string) (*TokenInfo, error) {
	claimSet, err := v.Verify(raw)
	if err != nil {
		return nil, err
	}
	return infoFromClaims(claimSet), nil
}

func infoFromClaims(claimSet jwtlib.MapClaims) *TokenInfo {
	info := &TokenInfo{
		Audience: utils.ClaimStrings(claimSet["aud"]),
		Roles:    utils.ClaimStrings(claimSet["roles"]),
	}
	info.Subject, _ = claimSet["sub"].(string)
	info.Issuer, _ = claimSet["iss"].(string)
	if exp, ok := claimSet["exp"].(float64); ok {
		info.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	if iat, ok := claimSet["iat"].(float64); ok {
		info.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	info.Scopes = scopeClaim(claimSet)
	return info
}

// scopeClaim reads the space-delimited "scp" claim, falling back to "scope"
// which some issuers use instead.
func scopeClaim(claimSet jwtlib.MapClaims) []string {
	for _, name := range []string{"scp", "scope"} {
		if s, ok := claimSet[name].(string); ok && s != "" {
			return utils.SplitSpace(s)
		}
		if vals := utils.ClaimStrings(claimSet[name]); len(vals) > 0 {
			return vals
		}
	}
	return nil
}
