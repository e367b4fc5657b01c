// Package idpfake provides a scripted IdentityProvider for tests.
package idpfake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-sso-client/idp"
)

// FakeIdentityProvider is an in-memory IdentityProvider whose silent and
// interactive outcomes are programmable per call. Call counters are atomic
// so tests can assert single-flight behavior under concurrency.
type FakeIdentityProvider struct {
	mu       sync.Mutex
	accounts []idp.Account

	SilentResults      []Outcome // consumed in order; last entry repeats
	InteractiveResults []Outcome
	LoginResult        Outcome

	silentCalls      atomic.Int64
	interactiveCalls atomic.Int64
	loginCalls       atomic.Int64
	logoutCalls      atomic.Int64

	silentIndex      int
	interactiveIndex int
}

// Outcome scripts one acquisition call.
type Outcome struct {
	Result *idp.AuthResult
	Err    error
}

// NewFakeIdentityProvider creates a fake with the given signed-in accounts.
func NewFakeIdentityProvider(accounts ...idp.Account) *FakeIdentityProvider {
	return &FakeIdentityProvider{accounts: accounts}
}

func (f *FakeIdentityProvider) Initialize(_ context.Context) error { return nil }

func (f *FakeIdentityProvider) LoginInteractive(_ context.Context, _ []string) (*idp.AuthResult, error) {
	f.loginCalls.Add(1)
	if f.LoginResult.Err != nil {
		return nil, f.LoginResult.Err
	}
	if f.LoginResult.Result != nil {
		f.mu.Lock()
		if len(f.accounts) == 0 {
			f.accounts = []idp.Account{{ID: "fake-user", Username: "fake@example.com"}}
		}
		f.mu.Unlock()
		return f.LoginResult.Result, nil
	}
	return nil, idp.ErrInteractionRequired
}

func (f *FakeIdentityProvider) AcquireSilent(_ context.Context, _ idp.Account, _ []string) (*idp.AuthResult, error) {
	f.silentCalls.Add(1)
	f.mu.Lock()
	outcome := takeOutcome(f.SilentResults, &f.silentIndex)
	f.mu.Unlock()
	return outcome.Result, outcome.Err
}

func (f *FakeIdentityProvider) AcquireInteractive(_ context.Context, _ []string) (*idp.AuthResult, error) {
	f.interactiveCalls.Add(1)
	f.mu.Lock()
	outcome := takeOutcome(f.InteractiveResults, &f.interactiveIndex)
	f.mu.Unlock()
	return outcome.Result, outcome.Err
}

func (f *FakeIdentityProvider) Logout(_ context.Context, account idp.Account) error {
	f.logoutCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := f.accounts[:0]
	for _, a := range f.accounts {
		if a.ID != account.ID {
			remaining = append(remaining, a)
		}
	}
	f.accounts = remaining
	return nil
}

func (f *FakeIdentityProvider) Accounts() []idp.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]idp.Account(nil), f.accounts...)
}

// SilentCalls returns the number of AcquireSilent invocations.
func (f *FakeIdentityProvider) SilentCalls() int64 { return f.silentCalls.Load() }

// InteractiveCalls returns the number of AcquireInteractive invocations.
func (f *FakeIdentityProvider) InteractiveCalls() int64 { return f.interactiveCalls.Load() }

// LoginCalls returns the number of LoginInteractive invocations.
func (f *FakeIdentityProvider) LoginCalls() int64 { return f.loginCalls.Load() }

// LogoutCalls returns the number of Logout invocations.
func (f *FakeIdentityProvider) LogoutCalls() int64 { return f.logoutCalls.Load() }

func takeOutcome(outcomes []Outcome, index *int) Outcome {
	if len(outcomes) == 0 {
		return Outcome{Err: idp.ErrInteractionRequired}
	}
	i := *index
	if i >= len(outcomes) {
		i = len(outcomes) - 1
	} else {
		*index++
	}
	return outcomes[i]
}
