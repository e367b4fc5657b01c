// Package httpauth attaches bearer credentials to outbound HTTP requests
// and recovers transparently from token-expiry rejections. It wraps a
// standard http.RoundTripper so any client in the process picks up the
// behaviour without changes to call sites.
package httpauth

import (
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	autherrors "github.com/jrsteele09/go-sso-client/internal/errors"
	"github.com/jrsteele09/go-sso-client/tokenprovider"
)

// ErrRetryExhausted is returned when a request keeps being rejected with
// 401 after the configured number of refresh-and-replay attempts. The
// transport has already forced a logout when returning it.
var ErrRetryExhausted = autherrors.ErrRetryExhausted

// ErrSessionExpired is returned when the refresh forced by a 401 fails.
// The transport has already forced a logout when returning it.
var ErrSessionExpired = autherrors.ErrSessionExpired

// SkipAuthHeader marks an individual request as public. The header is
// stripped before the request leaves the process.
const SkipAuthHeader = "Skip-Auth"

// DefaultMaxRetries bounds refresh-and-replay attempts per request.
const DefaultMaxRetries = 2

// Transport is an http.RoundTripper that attaches the current access token
// to every non-public request and replays requests rejected with 401 after
// forcing a token refresh.
type Transport struct {
	base       http.RoundTripper
	provider   *tokenprovider.Provider
	publicOnly []string
	maxRetries int
	log        zerolog.Logger
}

// TransportOption defines a function type to modify the Transport instance.
type TransportOption func(*Transport)

// WithBase sets the underlying round tripper. Defaults to
// http.DefaultTransport.
func WithBase(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		t.base = base
	}
}

// WithPublicPathPrefixes sets URL path prefixes that never carry
// credentials and never trigger refresh-and-replay.
func WithPublicPathPrefixes(prefixes []string) TransportOption {
	return func(t *Transport) {
		t.publicOnly = append([]string(nil), prefixes...)
	}
}

// WithMaxRetries bounds refresh-and-replay attempts per request.
func WithMaxRetries(n int) TransportOption {
	return func(t *Transport) {
		t.maxRetries = n
	}
}

// WithLogger sets the logger used for request-outcome diagnostics.
func WithLogger(log zerolog.Logger) TransportOption {
	return func(t *Transport) {
		t.log = log
	}
}

// NewTransport builds a Transport around the given token provider.
func NewTransport(provider *tokenprovider.Provider, options ...TransportOption) (*Transport, error) {
	if provider == nil {
		return nil, errors.New("[httpauth.NewTransport] token provider is required")
	}
	t := &Transport{
		base:       http.DefaultTransport,
		provider:   provider,
		maxRetries: DefaultMaxRetries,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(t)
	}
	return t, nil
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.skipAuth(req) {
		out := cloneRequest(req)
		out.Header.Del(SkipAuthHeader)
		return t.base.RoundTrip(out)
	}

	token, err := t.provider.AccessToken(req.Context())
	if err != nil {
		// The request still goes out, just without a credential. The
		// serving side decides whether that is acceptable.
		t.log.Warn().Err(err).Str("url", req.URL.String()).Msg("proceeding without access token")
		token = ""
	}

	resp, err := t.send(req, token)
	if err != nil {
		t.log.Error().Err(err).Str("url", req.URL.String()).Msg("request transport failure")
		return nil, err
	}

	for attempt := 1; resp.StatusCode == http.StatusUnauthorized; attempt++ {
		if attempt > t.maxRetries {
			drainAndClose(resp)
			t.log.Warn().Str("url", req.URL.String()).Msg("retry budget exhausted, forcing logout")
			t.provider.ForceLogout(req.Context())
			return nil, errors.Wrapf(ErrRetryExhausted, "request to %s", req.URL.Path)
		}
		drainAndClose(resp)

		t.log.Info().Str("url", req.URL.String()).Int("attempt", attempt).Msg("request rejected, refreshing token")
		token, err = t.provider.Refresh(req.Context())
		if err != nil {
			// A failed refresh on the 401 path is terminal for the session,
			// whatever the cause. The provider already ended the session for
			// interactive failures; every other cause ends it here.
			if errors.Is(err, ErrSessionExpired) {
				return nil, err
			}
			t.log.Error().Err(err).Str("url", req.URL.String()).Msg("token refresh failed after rejection, forcing logout")
			t.provider.ForceLogout(req.Context())
			return nil, errors.Wrap(ErrSessionExpired, err.Error())
		}

		resp, err = t.send(req, token)
		if err != nil {
			t.log.Error().Err(err).Str("url", req.URL.String()).Msg("request transport failure on replay")
			return nil, err
		}
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		t.log.Warn().Str("url", req.URL.String()).Msg("request forbidden")
	case resp.StatusCode >= http.StatusInternalServerError:
		t.log.Error().Str("url", req.URL.String()).Int("status", resp.StatusCode).Msg("server error response")
	}
	return resp, nil
}

// send issues one attempt on a fresh clone of req so the original stays
// replayable. Bodies are rewound through GetBody, which net/http populates
// for the common buffered cases.
func (t *Transport) send(req *http.Request, token string) (*http.Response, error) {
	out := cloneRequest(req)
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[Transport.send] rewinding request body")
		}
		out.Body = body
	}
	return t.base.RoundTrip(out)
}

func (t *Transport) skipAuth(req *http.Request) bool {
	if req.Header.Get(SkipAuthHeader) != "" {
		return true
	}
	for _, prefix := range t.publicOnly {
		if strings.HasPrefix(req.URL.Path, prefix) {
			return true
		}
	}
	return false
}

func cloneRequest(req *http.Request) *http.Request {
	return req.Clone(req.Context())
}

// drainAndClose reads the body to completion before closing so the
// keep-alive connection can be reused for the replay.
func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
