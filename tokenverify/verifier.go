// Package tokenverify performs full serving-side verification of inbound
// bearer tokens: signature against the issuer's signing-key set, issuer
// allow-list, audience, and lifetime with a clock-skew allowance. Any
// failure yields a rejected principal, never a partially trusted one.
package tokenverify

import (
	"context"
	"strings"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-sso-client/claims"
	autherrors "github.com/jrsteele09/go-sso-client/internal/errors"
	"github.com/jrsteele09/go-sso-client/internal/utils"
	"github.com/jrsteele09/go-sso-client/tokencodec"
)

// ErrTokenRejected covers every trust failure: bad signature, unlisted
// issuer, wrong audience, or a malformed token.
var ErrTokenRejected = autherrors.ErrTokenRejected

// ErrTokenExpired marks lifetime failures specifically, so callers can
// distinguish a stale credential from an untrusted one.
var ErrTokenExpired = autherrors.ErrTokenExpired

// DefaultClockSkew is the allowance applied to lifetime checks.
const DefaultClockSkew = 5 * time.Minute

// Config controls verification policy.
type Config struct {
	// AllowedIssuers is the issuer allow-list. At least one entry is required.
	AllowedIssuers []string
	// Audience is the application (client) identifier. Tokens carrying
	// either the bare value or "api://<value>" are accepted.
	Audience string
	// JWKSURL locates the issuer's signing-key set for auto-refreshing
	// retrieval. Leave empty when supplying a key function directly.
	JWKSURL string
	// AllowedAlgs restricts signing algorithms. Defaults to RS256.
	AllowedAlgs []string
	// ClockSkew defaults to DefaultClockSkew.
	ClockSkew time.Duration
}

// Verifier validates inbound tokens. Verification is a pure function of the
// token and the configured trust parameters, so a Verifier is safe for
// concurrent use.
type Verifier struct {
	cfg     Config
	keyfunc jwtlib.Keyfunc
	nowFunc func() time.Time
	log     zerolog.Logger
}

// VerifierOption defines a function type to modify the Verifier instance.
type VerifierOption func(*Verifier)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowFunc = now
	}
}

// WithLogger sets the logger used for rejected-token diagnostics.
func WithLogger(log zerolog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.log = log
	}
}

// New builds a Verifier whose signing keys come from the configured JWKS
// endpoint. Keys are fetched eagerly and refreshed in the background for
// the lifetime of ctx.
func New(ctx context.Context, cfg Config, options ...VerifierOption) (*Verifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("[tokenverify.New] JWKS URL is required")
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
	if err != nil {
		return nil, errors.Wrap(err, "[tokenverify.New] JWKS initialization failed")
	}
	return NewWithKeyfunc(cfg, kf.Keyfunc, options...)
}

// NewWithKeyfunc builds a Verifier around an explicit key function. Used by
// tests and deployments with static keys.
func NewWithKeyfunc(cfg Config, kf jwtlib.Keyfunc, options ...VerifierOption) (*Verifier, error) {
	if len(cfg.AllowedIssuers) == 0 {
		return nil, errors.New("[tokenverify.NewWithKeyfunc] at least one allowed issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("[tokenverify.NewWithKeyfunc] audience is required")
	}
	if kf == nil {
		return nil, errors.New("[tokenverify.NewWithKeyfunc] key function is required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"RS256"}
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	v := &Verifier{
		cfg:     cfg,
		keyfunc: kf,
		nowFunc: time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Verify checks signature, issuer, audience, and lifetime, returning the
// verified claim set. Lifetime failures return ErrTokenExpired; every other
// failure returns ErrTokenRejected.
func (v *Verifier) Verify(raw string) (jwtlib.MapClaims, error) {
	raw = tokencodec.StripBearer(raw)
	if raw == "" {
		return nil, errors.Wrap(ErrTokenRejected, "empty token")
	}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods(v.cfg.AllowedAlgs),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(v.cfg.ClockSkew),
		jwtlib.WithTimeFunc(v.nowFunc),
	)

	token, err := parser.Parse(raw, v.keyfunc)
	if err != nil || !token.Valid {
		v.log.Debug().Err(err).Msg("token signature or lifetime check failed")
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errors.Wrap(ErrTokenExpired, errString(err, "token expired"))
		}
		return nil, errors.Wrap(ErrTokenRejected, errString(err, "invalid token"))
	}

	claimSet, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrTokenRejected, "error extracting claims from token")
	}

	issuer, _ := claimSet["iss"].(string)
	if !v.issuerAllowed(issuer) {
		v.log.Debug().Str("issuer", issuer).Msg("token issuer not allow-listed")
		return nil, errors.Wrapf(ErrTokenRejected, "issuer %q not allowed", issuer)
	}

	if !v.audienceMatches(claimSet["aud"]) {
		v.log.Debug().Msg("token audience mismatch")
		return nil, errors.Wrap(ErrTokenRejected, "audience mismatch")
	}

	return claimSet, nil
}

// ValidateToken is Verify plus claims extraction: it returns the typed user
// view for a fully verified token.
func (v *Verifier) ValidateToken(raw string) (*claims.View, error) {
	claimSet, err := v.Verify(raw)
	if err != nil {
		return nil, err
	}
	view := claims.FromMap(claimSet)
	return &view, nil
}

// IsExpired reports whether raw's exp claim has passed. Malformed tokens
// count as expired. No signature verification happens here.
func (v *Verifier) IsExpired(raw string) bool {
	expiresAt, err := tokencodec.ExpiresAt(raw)
	if err != nil {
		return true
	}
	return v.nowFunc().Unix() >= expiresAt
}

func (v *Verifier) issuerAllowed(issuer string) bool {
	if issuer == "" {
		return false
	}
	for _, allowed := range v.cfg.AllowedIssuers {
		if issuer == allowed {
			return true
		}
	}
	return false
}

// audienceMatches accepts both the bare client identifier and the
// "api://<client-id>" application URI form.
func (v *Verifier) audienceMatches(aud any) bool {
	want := v.cfg.Audience
	wantURI := "api://" + strings.TrimPrefix(want, "api://")
	for _, got := range utils.ClaimStrings(aud) {
		if got == want || got == wantURI {
			return true
		}
	}
	return false
}

func errString(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
