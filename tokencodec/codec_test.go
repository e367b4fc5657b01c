package tokencodec_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso-client/tokencodec"
)

// mintToken builds a structurally valid compact token with a junk signature.
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

func defaultClaims() map[string]any {
	now := time.Now().Unix()
	return map[string]any{
		"sub": "user-1",
		"iat": now,
		"exp": now + 3600,
	}
}

func TestDecode_WellFormedToken(t *testing.T) {
	raw := mintToken(t, defaultClaims())

	decoded, err := tokencodec.Decode(raw)

	require.NoError(t, err)
	require.Equal(t, "RS256", decoded.Header["alg"])
	require.Equal(t, "user-1", decoded.Claims["sub"])
	require.Equal(t, "c2lnbmF0dXJl", decoded.Signature)
}

func TestDecode_StripsBearerPrefix(t *testing.T) {
	raw := mintToken(t, defaultClaims())

	decoded, err := tokencodec.Decode("Bearer " + raw)

	require.NoError(t, err)
	require.Equal(t, "user-1", decoded.Claims["sub"])
}

func TestDecode_WrongSegmentCount(t *testing.T) {
	for _, raw := range []string{"", "one", "one.two", "one.two.three.four"} {
		_, err := tokencodec.Decode(raw)
		require.ErrorIs(t, err, tokencodec.ErrMalformedToken, "token %q", raw)
	}
}

func TestDecode_SegmentsNotBase64JSON(t *testing.T) {
	_, err := tokencodec.Decode("not.a.jwt")

	require.ErrorIs(t, err, tokencodec.ErrMalformedToken)
}

func TestValidate_RequiresExpIatAndSubject(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr bool
	}{
		{name: "complete", mutate: func(map[string]any) {}},
		{name: "missing exp", mutate: func(c map[string]any) { delete(c, "exp") }, wantErr: true},
		{name: "missing iat", mutate: func(c map[string]any) { delete(c, "iat") }, wantErr: true},
		{name: "missing subject", mutate: func(c map[string]any) { delete(c, "sub") }, wantErr: true},
		{name: "oid instead of sub", mutate: func(c map[string]any) {
			delete(c, "sub")
			c["oid"] = "object-1"
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claims := defaultClaims()
			tc.mutate(claims)

			err := tokencodec.Validate(mintToken(t, claims))

			if tc.wantErr {
				require.ErrorIs(t, err, tokencodec.ErrMalformedToken)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExpiresAt_ReadsExpClaim(t *testing.T) {
	claims := defaultClaims()
	claims["exp"] = int64(1900000000)

	expiresAt, err := tokencodec.ExpiresAt(mintToken(t, claims))

	require.NoError(t, err)
	require.Equal(t, int64(1900000000), expiresAt)
}

func TestStripBearer(t *testing.T) {
	require.Equal(t, "abc", tokencodec.StripBearer("Bearer abc"))
	require.Equal(t, "abc", tokencodec.StripBearer("bearer abc"))
	require.Equal(t, "abc", tokencodec.StripBearer("  abc  "))
	require.Equal(t, "Bearerabc", tokencodec.StripBearer("Bearerabc"))
}
