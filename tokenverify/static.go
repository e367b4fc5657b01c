package tokenverify

import (
	"crypto"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// StaticKeyfunc returns a key function backed by a fixed kid-to-key map.
// Useful for tests and for deployments that pin signing keys instead of
// fetching a JWKS document.
func StaticKeyfunc(keys map[string]crypto.PublicKey) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			if len(keys) == 1 {
				for _, key := range keys {
					return key, nil
				}
			}
			return nil, errors.New("[tokenverify.StaticKeyfunc] token has no kid header")
		}
		key, ok := keys[kid]
		if !ok {
			return nil, errors.Errorf("[tokenverify.StaticKeyfunc] no key for kid %q", kid)
		}
		return key, nil
	}
}
