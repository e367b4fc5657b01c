package httpauth

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-sso-client/claims"
	"github.com/jrsteele09/go-sso-client/tokenprovider"
	"github.com/jrsteele09/go-sso-client/tokenstore"
)

// DefaultRequestTimeout bounds every outbound request issued through the
// Client.
const DefaultRequestTimeout = 30 * time.Second

// Client is the application-facing entry point: an HTTP client whose
// requests carry managed credentials, plus session operations (login,
// logout, current user).
type Client struct {
	http     *http.Client
	provider *tokenprovider.Provider
	store    *tokenstore.Store
	log      zerolog.Logger
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithClientLogger sets the logger used for session events.
func WithClientLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient wires a Client around the provider and store, installing the
// authorizing Transport on its HTTP client.
func NewClient(provider *tokenprovider.Provider, store *tokenstore.Store, transport *Transport, options ...ClientOption) (*Client, error) {
	if provider == nil || store == nil {
		return nil, errors.New("[httpauth.NewClient] token provider and store are required")
	}
	if transport == nil {
		var err error
		transport, err = NewTransport(provider)
		if err != nil {
			return nil, err
		}
	}
	c := &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   DefaultRequestTimeout,
		},
		provider: provider,
		store:    store,
		log:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// HTTPClient exposes the authorizing HTTP client for libraries that take
// an *http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Do issues req through the authorizing transport.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// Login runs the interactive sign-in flow.
func (c *Client) Login(ctx context.Context) error {
	return c.provider.Login(ctx)
}

// Logout signs out and clears every stored token.
func (c *Client) Logout(ctx context.Context) {
	c.provider.Logout(ctx)
}

// RefreshToken forces a token renewal, joining one already in flight.
func (c *Client) RefreshToken(ctx context.Context) error {
	_, err := c.provider.Refresh(ctx)
	return err
}

// IsAuthenticated reports whether a non-stale access token is stored.
func (c *Client) IsAuthenticated() bool {
	return c.provider.IsAuthenticated()
}

// CurrentUser returns the signed-in user's identity from the stored ID
// token, preferring it over the access token when both are present.
func (c *Client) CurrentUser() (*claims.View, bool) {
	claimSet, ok := c.store.UserInfo()
	if !ok {
		return nil, false
	}
	view := claims.FromMap(claimSet)
	return &view, true
}
