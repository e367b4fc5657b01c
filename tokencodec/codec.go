// Package tokencodec decodes compact signed tokens without verifying their
// signature. It is the client-side half of token handling: enough structure
// checking to decide whether a token is worth storing or attaching to a
// request. Cryptographic verification lives on the serving side in
// package tokenverify.
package tokencodec

import (
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	autherrors "github.com/jrsteele09/go-sso-client/internal/errors"
)

// ErrMalformedToken is returned when a candidate token fails structural
// validation. Callers treat the token as absent.
var ErrMalformedToken = autherrors.ErrMalformedToken

// DecodedToken is the ephemeral, unverified view of a compact token. It is
// derived from the raw token string and never persisted on its own.
type DecodedToken struct {
	Header    map[string]any
	Claims    jwtlib.MapClaims
	Signature string
}

// StripBearer removes a leading "Bearer " scheme prefix, if present.
func StripBearer(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > 7 && strings.EqualFold(trimmed[:7], "bearer ") {
		return strings.TrimSpace(trimmed[7:])
	}
	return trimmed
}

// Decode splits a compact token into header, claims, and signature without
// verifying the signature. The token must have exactly three dot-separated
// segments and the first two must decode as base64url JSON objects.
func Decode(raw string) (*DecodedToken, error) {
	raw = StripBearer(raw)
	if raw == "" {
		return nil, errors.Wrap(ErrMalformedToken, "empty token")
	}
	if segments := strings.Count(raw, "."); segments != 2 {
		return nil, errors.Wrapf(ErrMalformedToken, "expected 3 segments, got %d", segments+1)
	}

	token, parts, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(ErrMalformedToken, err.Error())
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrMalformedToken, "claims are not a JSON object")
	}

	return &DecodedToken{
		Header:    token.Header,
		Claims:    claims,
		Signature: parts[2],
	}, nil
}

// Validate reports whether raw is structurally a usable access or identity
// token: three well-formed segments plus an expiration claim, an issued-at
// claim, and a subject identifier (either the standard sub claim or the
// provider-specific oid claim).
func Validate(raw string) error {
	decoded, err := Decode(raw)
	if err != nil {
		return err
	}

	if _, ok := numericClaim(decoded.Claims, "exp"); !ok {
		return errors.Wrap(ErrMalformedToken, "missing exp claim")
	}
	if _, ok := numericClaim(decoded.Claims, "iat"); !ok {
		return errors.Wrap(ErrMalformedToken, "missing iat claim")
	}

	sub, _ := decoded.Claims["sub"].(string)
	oid, _ := decoded.Claims["oid"].(string)
	if sub == "" && oid == "" {
		return errors.Wrap(ErrMalformedToken, "missing subject identifier (sub or oid)")
	}

	return nil
}

// ExpiresAt returns the exp claim of raw as unix seconds.
func ExpiresAt(raw string) (int64, error) {
	decoded, err := Decode(raw)
	if err != nil {
		return 0, err
	}
	exp, ok := numericClaim(decoded.Claims, "exp")
	if !ok {
		return 0, errors.Wrap(ErrMalformedToken, "missing exp claim")
	}
	return exp, nil
}

func numericClaim(claims jwtlib.MapClaims, name string) (int64, bool) {
	switch v := claims[name].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}
