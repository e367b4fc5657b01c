// Package idp defines the narrow interface through which the token
// lifecycle layer talks to an external identity provider. The interactive
// login and consent UI, the wire protocol, and account bookkeeping all live
// behind this interface.
package idp

import (
	"context"
	"time"

	autherrors "github.com/jrsteele09/go-sso-client/internal/errors"
)

// ErrInteractionRequired signals that silent acquisition cannot produce a
// token and a user-facing consent step is needed. Recoverable: the caller
// falls back to interactive acquisition.
var ErrInteractionRequired = autherrors.ErrInteractionRequired

// ErrNoAccount signals that no signed-in account exists to acquire for.
var ErrNoAccount = autherrors.ErrNoAccount

// Account identifies a signed-in user at the provider.
type Account struct {
	ID       string // provider-assigned subject or object identifier
	Username string
	TenantID string
}

// AuthResult is the provider's answer to any acquisition call.
type AuthResult struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresOn    time.Time
	Scopes       []string
}

// IdentityProvider is the external collaborator contract. Implementations
// are opaque beyond these shapes.
type IdentityProvider interface {
	// Initialize prepares the provider (discovery, cache hydration). Safe to
	// call more than once.
	Initialize(ctx context.Context) error

	// LoginInteractive runs the user-facing login/consent flow.
	LoginInteractive(ctx context.Context, scopes []string) (*AuthResult, error)

	// AcquireSilent obtains a token for account without user interaction.
	// Returns ErrInteractionRequired when that is not possible.
	AcquireSilent(ctx context.Context, account Account, scopes []string) (*AuthResult, error)

	// AcquireInteractive obtains a token via a user-facing consent step for
	// an already signed-in session.
	AcquireInteractive(ctx context.Context, scopes []string) (*AuthResult, error)

	// Logout signs account out and drops any provider-side session state.
	Logout(ctx context.Context, account Account) error

	// Accounts lists the currently signed-in accounts.
	Accounts() []Account
}
