package httpauth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-client/httpauth"
	"github.com/jrsteele09/go-sso-client/idp"
	"github.com/jrsteele09/go-sso-client/idp/idpfake"
	"github.com/jrsteele09/go-sso-client/tokenprovider"
	"github.com/jrsteele09/go-sso-client/tokenstore"
)

func setupClient(t *testing.T, identity *idpfake.FakeIdentityProvider) (*httpauth.Client, *tokenstore.Store) {
	t.Helper()

	store := tokenstore.New(tokenstore.NewMemoryStorage(0), tokenstore.NewMemoryStorage(0))
	provider, err := tokenprovider.New(store, identity, []string{"openid"})
	require.NoError(t, err)
	client, err := httpauth.NewClient(provider, store, nil)
	require.NoError(t, err)
	return client, store
}

func mintIDToken(t *testing.T, email string) string {
	t.Helper()
	return mintTokenWithClaims(t, map[string]any{
		"sub":                "user-1",
		"iat":                time.Now().Unix(),
		"exp":                time.Now().Add(time.Hour).Unix(),
		"preferred_username": email,
		"name":               "John Doe",
	})
}

func TestClient_CurrentUser(t *testing.T) {
	identity := idpfake.NewFakeIdentityProvider(testAccount)
	client, store := setupClient(t, identity)
	store.StoreTokens(tokenstore.TokenRecord{
		AccessToken: mintToken(t, "user-1", time.Now().Add(time.Hour)),
		IDToken:     mintIDToken(t, "john.doe@example.com"),
	})

	user, ok := client.CurrentUser()

	require.True(t, ok)
	require.Equal(t, "user-1", user.SubjectID)
	require.Equal(t, "john.doe@example.com", user.Email)
	require.Equal(t, "John Doe", user.DisplayName)
}

func TestClient_CurrentUser_NotSignedIn(t *testing.T) {
	client, _ := setupClient(t, idpfake.NewFakeIdentityProvider())

	_, ok := client.CurrentUser()

	require.False(t, ok)
}

func TestClient_LoginAndLogout(t *testing.T) {
	identity := idpfake.NewFakeIdentityProvider()
	identity.LoginResult = idpfake.Outcome{Result: &idp.AuthResult{
		AccessToken: mintToken(t, "user-1", time.Now().Add(time.Hour)),
		ExpiresOn:   time.Now().Add(time.Hour),
	}}
	client, _ := setupClient(t, identity)

	require.NoError(t, client.Login(context.Background()))
	require.True(t, client.IsAuthenticated())

	client.Logout(context.Background())
	require.False(t, client.IsAuthenticated())
}

func TestClient_DoUsesAuthorizingTransport(t *testing.T) {
	identity := idpfake.NewFakeIdentityProvider(testAccount)
	client, store := setupClient(t, identity)
	token := mintToken(t, "user-1", time.Now().Add(time.Hour))
	store.StoreTokens(tokenstore.TokenRecord{AccessToken: token})

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/data", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)

	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "Bearer "+token, gotAuth)
}

func TestClient_RefreshToken(t *testing.T) {
	identity := idpfake.NewFakeIdentityProvider(testAccount)
	identity.SilentResults = []idpfake.Outcome{{Result: &idp.AuthResult{
		AccessToken: mintToken(t, "user-1", time.Now().Add(time.Hour)),
		ExpiresOn:   time.Now().Add(time.Hour),
	}}}
	client, _ := setupClient(t, identity)

	err := client.RefreshToken(context.Background())

	require.NoError(t, err)
	require.EqualValues(t, 1, identity.SilentCalls())
}
