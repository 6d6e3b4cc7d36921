// Package testing provides a mock identity provider for tests: an HTTP
// server that publishes a JWKS document and mints tokens that verify against
// it, including the Keycloak and AD FS claim shapes.
//
// Example usage:
//
//	issuer := testing.NewTestIssuer()
//	defer issuer.Close()
//
//	cache := keyset.New(issuer.JWKSURL())
//	tok := issuer.CreateToken("alice", []string{"project_read"}, nil)
package testing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	jwtkit "github.com/sixgroup-security/guardian-backend/jwt"
)

// TestIssuer runs a JWKS endpoint and signs tokens against it.
type TestIssuer struct {
	server   *httptest.Server
	audience string

	mu      sync.Mutex
	signer  *jwtkit.RSASigner
	retired []*jwtkit.RSASigner
	fetches int
}

// NewTestIssuer creates a test issuer with audience "guardian".
func NewTestIssuer() *TestIssuer {
	return NewTestIssuerWithAudience("guardian")
}

// NewTestIssuerWithAudience creates a test issuer with a specific audience.
func NewTestIssuerWithAudience(audience string) *TestIssuer {
	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}
	ti := &TestIssuer{signer: signer, audience: audience}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", ti.handleJWKS)
	ti.server = httptest.NewServer(mux)
	return ti
}

// URL returns the issuer URL; tokens carry it as iss.
func (ti *TestIssuer) URL() string { return ti.server.URL }

// JWKSURL returns the key-set endpoint.
func (ti *TestIssuer) JWKSURL() string { return ti.server.URL + "/.well-known/jwks.json" }

// Audience returns the audience minted tokens carry.
func (ti *TestIssuer) Audience() string { return ti.audience }

// Close shuts down the test server.
func (ti *TestIssuer) Close() { ti.server.Close() }

// Fetches reports how many times the JWKS document was served. Tests use it
// to assert the single-flight property of key-set caches.
func (ti *TestIssuer) Fetches() int {
	ti.mu.Lock()
	defer ti.mu.Unlock()
	return ti.fetches
}

// RotateKey retires the current signing key and activates a fresh one with
// the given key id. Previously issued tokens keep verifying because retired
// public keys stay in the JWKS document.
func (ti *TestIssuer) RotateKey(kid string) {
	signer, err := jwtkit.NewRSASigner(2048, kid)
	if err != nil {
		panic("failed to rotate RSA signer: " + err.Error())
	}
	ti.mu.Lock()
	defer ti.mu.Unlock()
	ti.retired = append(ti.retired, ti.signer)
	ti.signer = signer
}

func (ti *TestIssuer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	ti.mu.Lock()
	ti.fetches++
	signers := append([]*jwtkit.RSASigner{ti.signer}, ti.retired...)
	ti.mu.Unlock()

	var ks jwtkit.JWKS
	for _, s := range signers {
		ks.Keys = append(ks.Keys, jwtkit.RSAPublicToJWK(s.PublicKey(), s.KID(), s.Algorithm()))
	}
	jwtkit.ServeJWKS(w, r, ks)
}

// CreateToken mints a token with space-delimited scope and list roles, the
// generic claim shape.
func (ti *TestIssuer) CreateToken(subject string, scopes, roles []string) string {
	extra := map[string]any{}
	if scopes != nil {
		extra["scope"] = strings.Join(scopes, " ")
	}
	if roles != nil {
		extra["roles"] = roles
	}
	return ti.CreateTokenWithClaims(subject, extra)
}

// CreateKeycloakToken mints a token shaped like a Keycloak access token:
// azp, resource_access.<client>.roles, space-delimited scope.
func (ti *TestIssuer) CreateKeycloakToken(subject, clientID string, scopes, roles []string) string {
	return ti.CreateTokenWithClaims(subject, map[string]any{
		"azp":   clientID,
		"scope": strings.Join(scopes, " "),
		"resource_access": map[string]any{
			clientID: map[string]any{"roles": roles},
		},
		"email_verified": true,
	})
}

// CreateADFSToken mints a token shaped like an AD FS access token: client_id,
// scp, group claims.
func (ti *TestIssuer) CreateADFSToken(subject, clientID string, scopes, groups []string) string {
	return ti.CreateTokenWithClaims(subject, map[string]any{
		"client_id": clientID,
		"scp":       strings.Join(scopes, " "),
		"group":     groups,
	})
}

// CreateTokenWithClaims mints a token with the standard claims (sub, iss,
// aud, exp, iat) merged with extraClaims. Extra claims override standard
// ones, so tests can produce expired or mis-issued tokens.
func (ti *TestIssuer) CreateTokenWithClaims(subject string, extraClaims map[string]any) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": ti.URL(),
		"aud": ti.audience,
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	}
	for k, v := range extraClaims {
		claims[k] = v
	}

	ti.mu.Lock()
	signer := ti.signer
	ti.mu.Unlock()
	token, err := signer.Sign(context.Background(), claims)
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}

// CreateTokenWithExpiry mints a token with a custom expiry time.
func (ti *TestIssuer) CreateTokenWithExpiry(subject string, expiry time.Time) string {
	return ti.CreateTokenWithClaims(subject, map[string]any{"exp": expiry.Unix()})
}

// CreateExpiredToken mints a token that expired an hour ago.
func (ti *TestIssuer) CreateExpiredToken(subject string) string {
	return ti.CreateTokenWithExpiry(subject, time.Now().Add(-time.Hour))
}

// CreateTokenWithUnknownKey mints a token signed by a key the JWKS document
// never serves, for unknown-kid tests.
func (ti *TestIssuer) CreateTokenWithUnknownKey(subject string) string {
	rogue, err := jwtkit.NewRSASigner(2048, "rogue-key")
	if err != nil {
		panic("failed to create rogue signer: " + err.Error())
	}
	now := time.Now()
	token, err := rogue.Sign(context.Background(), jwt.MapClaims{
		"sub": subject,
		"iss": ti.URL(),
		"aud": ti.audience,
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	})
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}

// Tamper flips a byte of a compact JWT's signature.
func Tamper(token string) string {
	i := strings.LastIndex(token, ".")
	sig := []byte(token[i+1:])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	return token[:i+1] + string(sig)
}
