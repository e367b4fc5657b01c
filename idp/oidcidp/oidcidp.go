// Package oidcidp implements idp.IdentityProvider against any OIDC
// provider that supports discovery, the authorization-code flow with PKCE,
// and refresh-token renewal. The user-facing consent step is supplied by
// the host as a callback, so this package never depends on a UI.
package oidcidp

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-sso-client/idp"
)

// ConsentFunc runs the user-facing part of an interactive acquisition: it
// presents authCodeURL (popup, redirect, printed device instructions) and
// returns the authorization code and echoed state once the user completes
// the flow.
type ConsentFunc func(ctx context.Context, authCodeURL string) (code, state string, err error)

// Config configures the provider connection.
type Config struct {
	// Authority is the issuer URL used for discovery,
	// e.g. "https://login.microsoftonline.com/<tenant>/v2.0".
	Authority   string
	ClientID    string
	RedirectURI string
	Scopes      []string
	Consent     ConsentFunc
	Logger      zerolog.Logger
}

// Provider is an OIDC-backed IdentityProvider. It keeps at most one
// signed-in account and the oauth2 token that backs silent renewal for it.
type Provider struct {
	cfg Config

	mu          sync.Mutex
	initialized bool
	oidcProv    *oidc.Provider
	oauthCfg    *oauth2.Config
	account     *idp.Account
	lastToken   *oauth2.Token
	log         zerolog.Logger
}

var _ idp.IdentityProvider = (*Provider)(nil)

// New creates a Provider. Initialize must run before any acquisition call.
func New(cfg Config) (*Provider, error) {
	if cfg.Authority == "" {
		return nil, errors.New("[oidcidp.New] authority is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[oidcidp.New] client ID is required")
	}
	return &Provider{cfg: cfg, log: cfg.Logger}, nil
}

// Initialize runs OIDC discovery. Subsequent calls are no-ops.
func (p *Provider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	provider, err := oidc.NewProvider(ctx, p.cfg.Authority)
	if err != nil {
		return errors.Wrap(err, "[oidcidp.Initialize] discovery failed")
	}

	scopes := p.cfg.Scopes
	if !containsScope(scopes, oidc.ScopeOpenID) {
		scopes = append([]string{oidc.ScopeOpenID}, scopes...)
	}

	p.oidcProv = provider
	p.oauthCfg = &oauth2.Config{
		ClientID:    p.cfg.ClientID,
		Endpoint:    provider.Endpoint(),
		RedirectURL: p.cfg.RedirectURI,
		Scopes:      scopes,
	}
	p.initialized = true
	return nil
}

// LoginInteractive runs the authorization-code flow with PKCE through the
// host-supplied consent callback and records the resulting account.
func (p *Provider) LoginInteractive(ctx context.Context, scopes []string) (*idp.AuthResult, error) {
	return p.interactiveFlow(ctx, scopes)
}

// AcquireInteractive is LoginInteractive for an already signed-in session:
// the consent step runs again but the account is simply refreshed.
func (p *Provider) AcquireInteractive(ctx context.Context, scopes []string) (*idp.AuthResult, error) {
	return p.interactiveFlow(ctx, scopes)
}

// AcquireSilent renews tokens with the stored refresh credential. When no
// refresh credential exists, or the provider demands a consent step, it
// returns idp.ErrInteractionRequired.
func (p *Provider) AcquireSilent(ctx context.Context, account idp.Account, scopes []string) (*idp.AuthResult, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil, errors.New("[oidcidp.AcquireSilent] provider not initialized")
	}
	if p.account == nil || p.account.ID != account.ID || p.lastToken == nil || p.lastToken.RefreshToken == "" {
		p.mu.Unlock()
		return nil, errors.Wrap(idp.ErrInteractionRequired, "no refresh credential for account")
	}
	oauthCfg := p.oauthCfg
	seed := &oauth2.Token{RefreshToken: p.lastToken.RefreshToken}
	p.mu.Unlock()

	if len(scopes) > 0 {
		cfgCopy := *oauthCfg
		cfgCopy.Scopes = scopes
		oauthCfg = &cfgCopy
	}

	token, err := oauthCfg.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}

	p.mu.Lock()
	p.lastToken = token
	p.mu.Unlock()

	return p.authResult(token, scopes), nil
}

// Logout drops the account's session state. Provider-side sign-out is best
// effort: a failing end-session call never blocks the local logout.
func (p *Provider) Logout(ctx context.Context, account idp.Account) error {
	p.mu.Lock()
	idToken := ""
	if p.lastToken != nil {
		idToken, _ = p.lastToken.Extra("id_token").(string)
	}
	endSession := p.endSessionEndpointLocked()
	if p.account != nil && p.account.ID == account.ID {
		p.account = nil
		p.lastToken = nil
	}
	p.mu.Unlock()

	if endSession != "" {
		if err := p.callEndSession(ctx, endSession, idToken); err != nil {
			p.log.Warn().Err(err).Msg("provider end-session call failed")
		}
	}
	return nil
}

// Accounts lists the signed-in account, if any.
func (p *Provider) Accounts() []idp.Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.account == nil {
		return nil
	}
	return []idp.Account{*p.account}
}

func (p *Provider) interactiveFlow(ctx context.Context, scopes []string) (*idp.AuthResult, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil, errors.New("[oidcidp] provider not initialized")
	}
	oauthCfg := p.oauthCfg
	p.mu.Unlock()

	if p.cfg.Consent == nil {
		return nil, errors.Wrap(idp.ErrInteractionRequired, "no consent callback configured")
	}

	if len(scopes) > 0 {
		cfgCopy := *oauthCfg
		cfgCopy.Scopes = mergeScopes(oauthCfg.Scopes, scopes)
		oauthCfg = &cfgCopy
	}

	state := uuid.New().String()
	nonce := uuid.New().String()
	verifier := oauth2.GenerateVerifier()

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)

	code, echoedState, err := p.cfg.Consent(ctx, authURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcidp] consent step failed")
	}
	if echoedState != state {
		return nil, errors.New("[oidcidp] state mismatch in authorization response")
	}

	token, err := oauthCfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, errors.Wrap(err, "[oidcidp] token exchange failed")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("[oidcidp] no ID token in response")
	}

	idToken, err := p.oidcProv.Verifier(&oidc.Config{ClientID: p.cfg.ClientID}).Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcidp] ID token verification failed")
	}

	var tokenClaims struct {
		Nonce    string `json:"nonce"`
		Sub      string `json:"sub"`
		Email    string `json:"preferred_username"`
		TenantID string `json:"tid"`
	}
	if err := idToken.Claims(&tokenClaims); err != nil {
		return nil, errors.Wrap(err, "[oidcidp] failed to extract claims")
	}
	if tokenClaims.Nonce != nonce {
		return nil, errors.New("[oidcidp] invalid nonce")
	}

	p.mu.Lock()
	p.account = &idp.Account{
		ID:       tokenClaims.Sub,
		Username: tokenClaims.Email,
		TenantID: tokenClaims.TenantID,
	}
	p.lastToken = token
	p.mu.Unlock()

	return p.authResult(token, scopes), nil
}

func (p *Provider) authResult(token *oauth2.Token, scopes []string) *idp.AuthResult {
	idToken, _ := token.Extra("id_token").(string)
	granted := scopes
	if grantedStr, ok := token.Extra("scope").(string); ok && grantedStr != "" {
		granted = strings.Fields(grantedStr)
	}
	return &idp.AuthResult{
		AccessToken:  token.AccessToken,
		IDToken:      idToken,
		RefreshToken: token.RefreshToken,
		ExpiresOn:    token.Expiry,
		Scopes:       granted,
	}
}

func (p *Provider) endSessionEndpointLocked() string {
	if p.oidcProv == nil {
		return ""
	}
	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := p.oidcProv.Claims(&meta); err != nil {
		return ""
	}
	return meta.EndSessionEndpoint
}

func (p *Provider) callEndSession(ctx context.Context, endpoint, idTokenHint string) error {
	logoutURL, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if idTokenHint != "" {
		q := logoutURL.Query()
		q.Set("id_token_hint", idTokenHint)
		logoutURL.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logoutURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// classifyTokenError maps provider token-endpoint failures onto the
// acquisition error taxonomy: grant failures need interaction, everything
// else propagates as-is.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "interaction_required", "login_required", "consent_required":
			return errors.Wrap(idp.ErrInteractionRequired, retrieveErr.ErrorCode)
		}
	}
	return errors.Wrap(err, "[oidcidp] token renewal request failed")
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func mergeScopes(base, extra []string) []string {
	merged := append([]string(nil), base...)
	for _, s := range extra {
		if !containsScope(merged, s) {
			merged = append(merged, s)
		}
	}
	return merged
}
