// Package tokenstore holds the durable copy of the current token set:
// access token, identity token, refresh credential, expiry, and granted
// scopes. All writes are structurally validated; reads never hand back an
// expired or malformed token.
package tokenstore

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-sso-client/tokencodec"
)

// Fixed, namespaced storage keys so the store never collides with
// unrelated application data sharing the same scope.
const (
	accessTokenKey  = "sso_access_token"
	idTokenKey      = "sso_id_token"
	refreshTokenKey = "sso_refresh_token"
	tokenExpiryKey  = "sso_token_expiry"
	tokenScopesKey  = "sso_token_scopes"
)

// DefaultExpiryMargin is subtracted from the recorded expiry when deciding
// staleness, so a token is renewed before the provider rejects it mid-flight.
const DefaultExpiryMargin = 300 * time.Second

// TokenRecord is the full token set as delivered by the identity provider.
// Partial records are allowed on writes; absent fields are left untouched.
type TokenRecord struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresAt    int64 // unix seconds, derived from the token's exp claim
	TokenType    string
	Scopes       []string
}

// Store owns the only durable copy of the token set. The access and
// identity tokens live in the session scope; the refresh credential lives
// in the persistent scope.
type Store struct {
	mu         sync.Mutex
	session    Storage
	persistent Storage
	margin     time.Duration
	nowFunc    func() time.Time
	log        zerolog.Logger
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// WithExpiryMargin overrides the staleness safety margin.
func WithExpiryMargin(margin time.Duration) StoreOption {
	return func(s *Store) {
		s.margin = margin
	}
}

// WithLogger sets the logger used for recoverable storage warnings.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// New creates a Store over a session scope and a persistent scope. Both may
// be the same Storage when the host has only one.
func New(session, persistent Storage, options ...StoreOption) *Store {
	s := &Store{
		session:    session,
		persistent: persistent,
		margin:     DefaultExpiryMargin,
		nowFunc:    time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// StoreTokens persists the supplied fields. An access or identity token that
// fails structural validation is skipped with a warning: the prior value (if
// any) stays in place and no error is returned. Expiry and scopes are only
// written alongside a valid access token; the record's ExpiresAt field is
// advisory, the stored expiry is read out of the token's exp claim.
func (s *Store) StoreTokens(record TokenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.AccessToken != "" {
		if err := tokencodec.Validate(record.AccessToken); err != nil {
			s.log.Warn().Err(err).Msg("rejected access token write")
		} else {
			_ = s.session.Set(accessTokenKey, tokencodec.StripBearer(record.AccessToken))
			// The recorded expiry always comes from the token's own exp
			// claim, never from the caller.
			if expiresAt, err := tokencodec.ExpiresAt(record.AccessToken); err == nil {
				_ = s.session.Set(tokenExpiryKey, strconv.FormatInt(expiresAt, 10))
			}
			if record.Scopes != nil {
				if encoded, err := json.Marshal(record.Scopes); err == nil {
					_ = s.session.Set(tokenScopesKey, string(encoded))
				}
			}
		}
	}

	if record.IDToken != "" {
		if err := tokencodec.Validate(record.IDToken); err != nil {
			s.log.Warn().Err(err).Msg("rejected identity token write")
		} else {
			_ = s.session.Set(idTokenKey, record.IDToken)
		}
	}

	if record.RefreshToken != "" {
		_ = s.persistent.Set(refreshTokenKey, record.RefreshToken)
	}
}

// AccessToken returns the stored access token only when it is present,
// structurally valid, and not yet inside the expiry margin. A token failing
// any of those checks is cleared and reported absent.
func (s *Store) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.session.Get(accessTokenKey)
	if !ok || token == "" {
		return "", false
	}

	if err := tokencodec.Validate(token); err != nil {
		s.log.Warn().Err(err).Msg("stored access token is malformed, clearing")
		s.clearAccessTokenLocked()
		return "", false
	}

	if s.isExpiredLocked() {
		s.log.Debug().Msg("stored access token is stale, clearing")
		s.clearAccessTokenLocked()
		return "", false
	}

	return token, true
}

// IsTokenExpired reports true when no expiry is recorded or the current
// time has reached the recorded expiry minus the safety margin.
func (s *Store) IsTokenExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isExpiredLocked()
}

func (s *Store) isExpiredLocked() bool {
	expiryStr, ok := s.session.Get(tokenExpiryKey)
	if !ok || expiryStr == "" {
		return true
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return true
	}
	return s.nowFunc().Unix() >= expiry-int64(s.margin.Seconds())
}

// ExpiresAt returns the recorded expiry as unix seconds.
func (s *Store) ExpiresAt() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryStr, ok := s.session.Get(tokenExpiryKey)
	if !ok {
		return 0, false
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return expiry, true
}

// Scopes returns the scopes granted with the current access token.
func (s *Store) Scopes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, ok := s.session.Get(tokenScopesKey)
	if !ok || encoded == "" {
		return nil
	}
	var scopes []string
	if err := json.Unmarshal([]byte(encoded), &scopes); err != nil {
		return nil
	}
	return scopes
}

// IDToken returns the stored identity token, clearing it when malformed.
func (s *Store) IDToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.session.Get(idTokenKey)
	if !ok || token == "" {
		return "", false
	}
	if err := tokencodec.Validate(token); err != nil {
		s.log.Warn().Err(err).Msg("stored identity token is malformed, clearing")
		_ = s.session.Delete(idTokenKey)
		return "", false
	}
	return token, true
}

// RefreshToken returns the stored refresh credential.
func (s *Store) RefreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.persistent.Get(refreshTokenKey)
	return token, ok && token != ""
}

// TokenClaims decodes the claims of raw, or of the current access token
// when raw is empty. No signature verification happens here.
func (s *Store) TokenClaims(raw string) (jwtlib.MapClaims, bool) {
	if raw == "" {
		token, ok := s.AccessToken()
		if !ok {
			return nil, false
		}
		raw = token
	}
	decoded, err := tokencodec.Decode(raw)
	if err != nil {
		return nil, false
	}
	return decoded.Claims, true
}

// UserInfo returns the claims of the stored identity token.
func (s *Store) UserInfo() (jwtlib.MapClaims, bool) {
	idToken, ok := s.IDToken()
	if !ok {
		return nil, false
	}
	return s.TokenClaims(idToken)
}

// ClearAccessToken removes the access token together with its dependent
// expiry and scopes. Idempotent.
func (s *Store) ClearAccessToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearAccessTokenLocked()
}

func (s *Store) clearAccessTokenLocked() {
	_ = s.session.Delete(accessTokenKey)
	_ = s.session.Delete(tokenExpiryKey)
	_ = s.session.Delete(tokenScopesKey)
}

// ClearIDToken removes the identity token. Idempotent.
func (s *Store) ClearIDToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.session.Delete(idTokenKey)
}

// ClearRefreshToken removes the refresh credential. Idempotent.
func (s *Store) ClearRefreshToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.persistent.Delete(refreshTokenKey)
}

// ClearAllTokens removes every stored token and derived field.
func (s *Store) ClearAllTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearAccessTokenLocked()
	_ = s.session.Delete(idTokenKey)
	_ = s.persistent.Delete(refreshTokenKey)
}
