package core

import "time"

// DefaultSkew bounds clock drift tolerated during expiry checks.
const DefaultSkew = 120 * time.Second

// DefaultFetchTimeout bounds a single JWKS fetch so request-path validation
// never stalls on the provider.
const DefaultFetchTimeout = 2 * time.Second

// VerifyConfig configures verification of IdP-issued JWTs (verify-only mode).
type VerifyConfig struct {
	// Issuer must match the token's iss claim exactly. No normalization.
	Issuer string
	// Audience must be contained in the token's aud claim.
	Audience string
	// JWKSURL is the provider's published key-set endpoint.
	JWKSURL string
	// Skew is the clock-skew tolerance for exp/nbf checks.
	Skew time.Duration
	// Algorithms restricts acceptable JWS algorithms. Empty means RS256 only.
	Algorithms []string
	// CacheTTL is the max age of a cached key set before a refresh is due.
	CacheTTL time.Duration
	// FetchTimeout bounds one outbound key-set fetch.
	FetchTimeout time.Duration
}

// Validate checks that the configuration is usable. Issuer, audience and
// JWKS URL are opaque strings here; they only have to be present.
func (c VerifyConfig) Validate() error {
	if c.Issuer == "" {
		return &InvalidInputError{Detail: "issuer is required"}
	}
	if c.Audience == "" {
		return &InvalidInputError{Detail: "audience is required"}
	}
	if c.JWKSURL == "" {
		return &InvalidInputError{Detail: "jwks url is required"}
	}
	return nil
}
