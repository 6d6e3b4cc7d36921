package authhttp

import (
	"net/http"

	jwtkit "github.com/sixgroup-security/guardian-backend/jwt"
)

// LocalKeys exposes the public half of locally held signing keys.
type LocalKeys interface {
	JWKS() jwtkit.JWKS
}

// JWKSHandler serves the public JWKS document for locally minted tokens, so
// other services can verify them the same way IdP tokens are verified.
func JWKSHandler(keys LocalKeys) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtkit.ServeJWKS(w, r, keys.JWKS())
	})
}
