package tokenstore_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-client/tokenstore"
)

var testNow = time.Unix(1_700_000_000, 0)

// testFixture holds a store over two separate in-memory scopes with a
// frozen clock.
type testFixture struct {
	store      *tokenstore.Store
	session    *tokenstore.MemoryStorage
	persistent *tokenstore.MemoryStorage
}

func setupTestFixture(t *testing.T, options ...tokenstore.StoreOption) *testFixture {
	t.Helper()

	session := tokenstore.NewMemoryStorage(0)
	persistent := tokenstore.NewMemoryStorage(0)
	options = append([]tokenstore.StoreOption{
		tokenstore.WithNowFunc(func() time.Time { return testNow }),
	}, options...)
	return &testFixture{
		store:      tokenstore.New(session, persistent, options...),
		session:    session,
		persistent: persistent,
	}
}

func mintToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	encode := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := map[string]any{"alg": "RS256", "typ": "JWT"}
	return encode(header) + "." + encode(claims) + ".c2lnbmF0dXJl"
}

func mintTokenExpiring(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	return mintToken(t, map[string]any{
		"sub": "user-1",
		"iat": testNow.Unix(),
		"exp": expiresAt.Unix(),
	})
}

func TestStoreTokens_RoundTrip(t *testing.T) {
	f := setupTestFixture(t)
	accessToken := mintTokenExpiring(t, testNow.Add(time.Hour))

	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken:  accessToken,
		RefreshToken: "refresh-1",
		Scopes:       []string{"openid", "profile"},
	})

	got, ok := f.store.AccessToken()
	require.True(t, ok)
	require.Equal(t, accessToken, got)

	refresh, ok := f.store.RefreshToken()
	require.True(t, ok)
	require.Equal(t, "refresh-1", refresh)

	require.Equal(t, []string{"openid", "profile"}, f.store.Scopes())
}

func TestStoreTokens_ExpiryComesFromToken(t *testing.T) {
	f := setupTestFixture(t)
	tokenExpiry := testNow.Add(2 * time.Hour)

	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken: mintTokenExpiring(t, tokenExpiry),
		ExpiresAt:   testNow.Add(72 * time.Hour).Unix(), // advisory, ignored
	})

	expiresAt, ok := f.store.ExpiresAt()
	require.True(t, ok)
	require.Equal(t, tokenExpiry.Unix(), expiresAt)
}

func TestStoreTokens_MalformedAccessTokenIsSkipped(t *testing.T) {
	f := setupTestFixture(t)
	valid := mintTokenExpiring(t, testNow.Add(time.Hour))
	f.store.StoreTokens(tokenstore.TokenRecord{AccessToken: valid})

	f.store.StoreTokens(tokenstore.TokenRecord{AccessToken: "not.a.jwt"})

	got, ok := f.store.AccessToken()
	require.True(t, ok, "prior valid token should survive a rejected write")
	require.Equal(t, valid, got)
}

func TestStoreTokens_PartialRecordLeavesOtherFields(t *testing.T) {
	f := setupTestFixture(t)
	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken:  mintTokenExpiring(t, testNow.Add(time.Hour)),
		RefreshToken: "refresh-1",
	})

	f.store.StoreTokens(tokenstore.TokenRecord{RefreshToken: "refresh-2"})

	_, ok := f.store.AccessToken()
	require.True(t, ok)
	refresh, _ := f.store.RefreshToken()
	require.Equal(t, "refresh-2", refresh)
}

func TestAccessToken_InsideExpiryMarginIsStale(t *testing.T) {
	f := setupTestFixture(t)
	// Expires in 60s, within the 300s margin.
	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken: mintTokenExpiring(t, testNow.Add(60 * time.Second)),
	})

	_, ok := f.store.AccessToken()

	require.False(t, ok)
	require.True(t, f.store.IsTokenExpired())
}

func TestAccessToken_OutsideExpiryMarginIsUsable(t *testing.T) {
	f := setupTestFixture(t)
	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken: mintTokenExpiring(t, testNow.Add(301 * time.Second)),
	})

	_, ok := f.store.AccessToken()

	require.True(t, ok)
	require.False(t, f.store.IsTokenExpired())
}

func TestIsTokenExpired_NoRecordedExpiry(t *testing.T) {
	f := setupTestFixture(t)

	require.True(t, f.store.IsTokenExpired())
}

func TestUserInfo_ComesFromIdentityToken(t *testing.T) {
	f := setupTestFixture(t)
	idToken := mintToken(t, map[string]any{
		"sub":                "user-1",
		"iat":                testNow.Unix(),
		"exp":                testNow.Add(time.Hour).Unix(),
		"preferred_username": "john.doe@example.com",
	})
	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken: mintTokenExpiring(t, testNow.Add(time.Hour)),
		IDToken:     idToken,
	})

	claims, ok := f.store.UserInfo()

	require.True(t, ok)
	require.Equal(t, "john.doe@example.com", claims["preferred_username"])
}

func TestClearAccessToken_RemovesDependentFields(t *testing.T) {
	f := setupTestFixture(t)
	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken: mintTokenExpiring(t, testNow.Add(time.Hour)),
		Scopes:      []string{"openid"},
	})

	f.store.ClearAccessToken()

	_, ok := f.store.AccessToken()
	require.False(t, ok)
	_, ok = f.store.ExpiresAt()
	require.False(t, ok)
	require.Nil(t, f.store.Scopes())
}

func TestClearAllTokens_RemovesEverything(t *testing.T) {
	f := setupTestFixture(t)
	f.store.StoreTokens(tokenstore.TokenRecord{
		AccessToken:  mintTokenExpiring(t, testNow.Add(time.Hour)),
		IDToken:      mintTokenExpiring(t, testNow.Add(time.Hour)),
		RefreshToken: "refresh-1",
	})

	f.store.ClearAllTokens()

	_, ok := f.store.AccessToken()
	require.False(t, ok)
	_, ok = f.store.IDToken()
	require.False(t, ok)
	_, ok = f.store.RefreshToken()
	require.False(t, ok)
}

func TestClearAccessToken_Idempotent(t *testing.T) {
	f := setupTestFixture(t)

	f.store.ClearAccessToken()
	f.store.ClearAccessToken()

	_, ok := f.store.AccessToken()
	require.False(t, ok)
}
