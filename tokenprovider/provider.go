// Package tokenprovider orchestrates token acquisition: cache-first reads
// from the token store, silent renewal against the identity provider,
// interactive fallback, and forced logout when no path to a valid token
// remains. At most one renewal is in flight per Provider; concurrent
// callers wait for that renewal and all observe its single outcome.
package tokenprovider

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-sso-client/idp"
	autherrors "github.com/jrsteele09/go-sso-client/internal/errors"
	"github.com/jrsteele09/go-sso-client/tokenstore"
)

// ErrRenewalFailed means no path to a valid token remains for the current
// session. The provider has already forced a logout when returning it.
var ErrRenewalFailed = autherrors.ErrRenewalFailed

// ErrSessionExpired is the terminal error handed to callers (and waiters)
// after an interactive fallback also failed.
var ErrSessionExpired = autherrors.ErrSessionExpired

// ErrNoAccount means acquisition was attempted with nobody signed in.
var ErrNoAccount = autherrors.ErrNoAccount

type renewalResult struct {
	token string
	err   error
}

// renewalState tracks the single in-flight renewal. Waiters accumulate in
// arrival order while the renewal runs and are resolved exactly once when
// it settles.
type renewalState struct {
	waiters []chan renewalResult
}

// Provider owns the live renewal state. It is safe for concurrent use.
type Provider struct {
	store    *tokenstore.Store
	identity idp.IdentityProvider
	scopes   []string
	log      zerolog.Logger

	mu      sync.Mutex
	renewal *renewalState // nil when no renewal is in flight
}

// ProviderOption defines a function type to modify the Provider instance.
type ProviderOption func(*Provider)

// WithLogger sets the logger used for acquisition events.
func WithLogger(log zerolog.Logger) ProviderOption {
	return func(p *Provider) {
		p.log = log
	}
}

// New creates a Provider acquiring the given scopes.
func New(store *tokenstore.Store, identity idp.IdentityProvider, scopes []string, options ...ProviderOption) (*Provider, error) {
	if store == nil {
		return nil, errors.New("[tokenprovider.New] token store is required")
	}
	if identity == nil {
		return nil, errors.New("[tokenprovider.New] identity provider is required")
	}
	p := &Provider{
		store:    store,
		identity: identity,
		scopes:   append([]string(nil), scopes...),
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// AccessToken returns a usable access token, consulting the store first and
// renewing only when the stored token is absent or stale.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	return p.acquire(ctx, false)
}

// Refresh forces a renewal, bypassing the cache check. A renewal already in
// flight is joined rather than duplicated.
func (p *Provider) Refresh(ctx context.Context) (string, error) {
	return p.acquire(ctx, true)
}

func (p *Provider) acquire(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if token, ok := p.store.AccessToken(); ok {
			p.log.Debug().Str("source", "cache").Msg("access token served from store")
			return token, nil
		}
	}

	p.mu.Lock()
	if p.renewal != nil {
		// A renewal is already running: wait for its outcome instead of
		// starting a second one.
		ch := make(chan renewalResult, 1)
		p.renewal.waiters = append(p.renewal.waiters, ch)
		p.mu.Unlock()

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.renewal = &renewalState{}
	p.mu.Unlock()

	token, err := p.renew(ctx)

	p.mu.Lock()
	waiters := p.renewal.waiters
	p.renewal = nil
	p.mu.Unlock()

	// Resolve waiters in arrival order with the single renewal outcome.
	for _, ch := range waiters {
		ch <- renewalResult{token: token, err: err}
	}
	return token, err
}

// renew performs one renewal attempt: silent first, interactive fallback,
// forced logout when both fail.
func (p *Provider) renew(ctx context.Context) (string, error) {
	account, err := p.currentAccount()
	if err != nil {
		return "", err
	}

	result, err := p.identity.AcquireSilent(ctx, account, p.scopes)
	if err != nil {
		if !errors.Is(err, idp.ErrInteractionRequired) {
			// Not an interaction problem: propagate without ending the session.
			return "", err
		}

		p.log.Info().Msg("silent renewal requires interaction, trying interactive acquisition")
		result, err = p.identity.AcquireInteractive(ctx, p.scopes)
		if err != nil {
			p.log.Error().Err(err).Msg("interactive acquisition failed, terminating session")
			p.ForceLogout(ctx)
			return "", errors.Wrap(ErrSessionExpired, err.Error())
		}
		p.log.Info().Str("source", "interactive").Msg("token acquired")
	} else {
		p.log.Debug().Str("source", "silent").Msg("token acquired")
	}

	p.persist(result)
	return result.AccessToken, nil
}

// Login runs the interactive login flow and persists the resulting tokens.
func (p *Provider) Login(ctx context.Context) error {
	result, err := p.identity.LoginInteractive(ctx, p.scopes)
	if err != nil {
		return errors.Wrap(err, "[Provider.Login] interactive login failed")
	}
	p.persist(result)
	return nil
}

// Logout signs the current account out and clears all stored tokens.
func (p *Provider) Logout(ctx context.Context) {
	p.ForceLogout(ctx)
}

// ForceLogout ends the session unconditionally: provider-side sign-out is
// best effort, the stored token set is always cleared.
func (p *Provider) ForceLogout(ctx context.Context) {
	for _, account := range p.identity.Accounts() {
		if err := p.identity.Logout(ctx, account); err != nil {
			p.log.Warn().Err(err).Str("account", account.Username).Msg("provider logout failed")
		}
	}
	p.store.ClearAllTokens()
}

// IsAuthenticated reports whether an account is signed in and a usable
// access token is stored.
func (p *Provider) IsAuthenticated() bool {
	if len(p.identity.Accounts()) == 0 {
		return false
	}
	_, ok := p.store.AccessToken()
	return ok
}

// Account returns the active account. With multiple signed-in accounts the
// first one wins.
func (p *Provider) Account() (idp.Account, bool) {
	accounts := p.identity.Accounts()
	if len(accounts) == 0 {
		return idp.Account{}, false
	}
	if len(accounts) > 1 {
		p.log.Warn().Int("count", len(accounts)).Msg("multiple accounts found, using the first one")
	}
	return accounts[0], true
}

func (p *Provider) currentAccount() (idp.Account, error) {
	account, ok := p.Account()
	if !ok {
		return idp.Account{}, errors.Wrap(ErrNoAccount, "cannot renew token")
	}
	return account, nil
}

func (p *Provider) persist(result *idp.AuthResult) {
	record := tokenstore.TokenRecord{
		AccessToken:  result.AccessToken,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		Scopes:       result.Scopes,
	}
	if !result.ExpiresOn.IsZero() {
		record.ExpiresAt = result.ExpiresOn.Unix()
	}
	p.store.StoreTokens(record)
}
