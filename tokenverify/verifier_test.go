package tokenverify_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-client/tokenverify"
)

const (
	testIssuer   = "https://issuer.example.com/tenant-1"
	testAudience = "client-app-1"
	testKeyID    = "test-key-1"
)

var testNow = time.Unix(1_700_000_000, 0)

type testFixture struct {
	signingKey *rsa.PrivateKey
	verifier   *tokenverify.Verifier
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	signingKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	verifier, err := tokenverify.NewWithKeyfunc(
		tokenverify.Config{
			AllowedIssuers: []string{testIssuer},
			Audience:       testAudience,
		},
		tokenverify.StaticKeyfunc(map[string]crypto.PublicKey{testKeyID: &signingKey.PublicKey}),
		tokenverify.WithNowFunc(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	return &testFixture{signingKey: signingKey, verifier: verifier}
}

func (f *testFixture) signToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(f.signingKey)
	require.NoError(t, err)
	return signed
}

func defaultClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "user-1",
		"iat":   testNow.Unix(),
		"exp":   testNow.Add(time.Hour).Unix(),
		"roles": []string{"admin"},
	}
}

func TestVerify_ValidToken(t *testing.T) {
	f := setupTestFixture(t)

	claimSet, err := f.verifier.Verify(f.signToken(t, defaultClaims()))

	require.NoError(t, err)
	require.Equal(t, "user-1", claimSet["sub"])
}

func TestVerify_AcceptsBearerPrefix(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.verifier.Verify("Bearer " + f.signToken(t, defaultClaims()))

	require.NoError(t, err)
}

func TestVerify_WrongSigningKey(t *testing.T) {
	f := setupTestFixture(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other := &testFixture{signingKey: otherKey}

	_, err = f.verifier.Verify(other.signToken(t, defaultClaims()))

	require.ErrorIs(t, err, tokenverify.ErrTokenRejected)
}

func TestVerify_UnlistedIssuer(t *testing.T) {
	f := setupTestFixture(t)
	claims := defaultClaims()
	claims["iss"] = "https://rogue.example.com"

	_, err := f.verifier.Verify(f.signToken(t, claims))

	require.ErrorIs(t, err, tokenverify.ErrTokenRejected)
}

func TestVerify_AudienceForms(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name    string
		aud     any
		wantErr bool
	}{
		{name: "bare client id", aud: testAudience},
		{name: "application uri form", aud: "api://" + testAudience},
		{name: "list containing client id", aud: []string{"other", testAudience}},
		{name: "wrong audience", aud: "someone-else", wantErr: true},
		{name: "missing audience", aud: nil, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := defaultClaims()
			if tc.aud == nil {
				delete(claims, "aud")
			} else {
				claims["aud"] = tc.aud
			}

			_, err := f.verifier.Verify(f.signToken(t, claims))

			if tc.wantErr {
				require.ErrorIs(t, err, tokenverify.ErrTokenRejected)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	f := setupTestFixture(t)
	claims := defaultClaims()
	claims["exp"] = testNow.Add(-time.Hour).Unix()

	_, err := f.verifier.Verify(f.signToken(t, claims))

	require.ErrorIs(t, err, tokenverify.ErrTokenExpired)
	require.NotErrorIs(t, err, tokenverify.ErrTokenRejected, "a stale credential is not an untrusted one")
}

func TestVerify_ExpiredWithinClockSkew(t *testing.T) {
	f := setupTestFixture(t)
	claims := defaultClaims()
	// Expired two minutes ago, inside the five-minute skew allowance.
	claims["exp"] = testNow.Add(-2 * time.Minute).Unix()

	_, err := f.verifier.Verify(f.signToken(t, claims))

	require.NoError(t, err)
}

func TestVerify_MissingExpiration(t *testing.T) {
	f := setupTestFixture(t)
	claims := defaultClaims()
	delete(claims, "exp")

	_, err := f.verifier.Verify(f.signToken(t, claims))

	require.ErrorIs(t, err, tokenverify.ErrTokenRejected)
}

func TestVerify_MalformedToken(t *testing.T) {
	f := setupTestFixture(t)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := f.verifier.Verify(raw)
		require.ErrorIs(t, err, tokenverify.ErrTokenRejected, "token %q", raw)
	}
}

func TestValidateToken_ReturnsUserView(t *testing.T) {
	f := setupTestFixture(t)
	claims := defaultClaims()
	claims["email"] = "john.doe@example.com"
	claims["name"] = "John Doe"

	view, err := f.verifier.ValidateToken(f.signToken(t, claims))

	require.NoError(t, err)
	require.Equal(t, "user-1", view.SubjectID)
	require.Equal(t, "john.doe@example.com", view.Email)
	require.Equal(t, []string{"admin"}, view.Roles)
}

func TestIsExpired(t *testing.T) {
	f := setupTestFixture(t)

	live := defaultClaims()
	expired := defaultClaims()
	expired["exp"] = testNow.Add(-time.Hour).Unix()

	require.False(t, f.verifier.IsExpired(f.signToken(t, live)))
	require.True(t, f.verifier.IsExpired(f.signToken(t, expired)))
	require.True(t, f.verifier.IsExpired("garbage"), "malformed tokens count as expired")
}

func TestInfo_ProjectsTokenDiagnostics(t *testing.T) {
	f := setupTestFixture(t)
	claims := defaultClaims()
	claims["scp"] = "openid profile"

	info, err := f.verifier.Info(f.signToken(t, claims))

	require.NoError(t, err)
	require.Equal(t, "user-1", info.Subject)
	require.Equal(t, testIssuer, info.Issuer)
	require.Equal(t, []string{"openid", "profile"}, info.Scopes)
	require.Equal(t, testNow.Add(time.Hour).Unix(), info.ExpiresAt.Unix())
}

func TestInfo_ScopeFallback(t *testing.T) {
	f := setupTestFixture(t)
	claims := defaultClaims()
	claims["scope"] = "openid"

	info, err := f.verifier.Info(f.signToken(t, claims))

	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, info.Scopes)
}

func TestNewWithKeyfunc_ConfigValidation(t *testing.T) {
	kf := tokenverify.StaticKeyfunc(nil)

	_, err := tokenverify.NewWithKeyfunc(tokenverify.Config{Audience: testAudience}, kf)
	require.Error(t, err, "missing issuers")

	_, err = tokenverify.NewWithKeyfunc(tokenverify.Config{AllowedIssuers: []string{testIssuer}}, kf)
	require.Error(t, err, "missing audience")
}
