// Package token validates IdP-issued access tokens against the cached key
// set and normalizes their claims.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/idp"
)

// KeySource looks up provider signing keys by key id.
type KeySource interface {
	Get(ctx context.Context, kid string) (core.SigningKey, error)
}

// Validator verifies signature, issuer, audience and validity window, then
// extracts normalized claims. Validation of an unchanged token against an
// unchanged key set is deterministic and idempotent.
type Validator struct {
	keys      KeySource
	cfg       core.VerifyConfig
	clock     core.Clock
	extractor idp.ClaimExtractor
	allowed   map[string]struct{}
	parser    *jwt.Parser
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock injects the clock used for expiry checks.
func WithClock(c core.Clock) Option {
	return func(v *Validator) { v.clock = c }
}

// WithExtractor sets the provider-specific claim extractor.
func WithExtractor(e idp.ClaimExtractor) Option {
	return func(v *Validator) { v.extractor = e }
}

// New builds a validator. Unless cfg.Algorithms says otherwise, only RS256
// tokens are accepted.
func New(keys KeySource, cfg core.VerifyConfig, opts ...Option) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = []string{"RS256"}
	}
	allowed := make(map[string]struct{}, len(algs))
	for _, a := range algs {
		if strings.EqualFold(a, "none") {
			return nil, &core.InvalidInputError{Detail: `algorithm "none" cannot be allowed`}
		}
		allowed[a] = struct{}{}
	}
	v := &Validator{
		keys:      keys,
		cfg:       cfg,
		clock:     core.SystemClock{},
		extractor: idp.GenericExtractor{},
		allowed:   allowed,
		parser:    jwt.NewParser(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate verifies rawToken and returns its normalized claims. Failures are
// typed: infrastructure problems surface as transient errors distinct from
// credential errors, so callers can retry instead of rejecting the token.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*core.ValidatedToken, error) {
	claims := jwt.MapClaims{}
	tok, parts, err := v.parser.ParseUnverified(rawToken, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	}

	// Unauthenticated algorithms are rejected outright; everything else has
	// to be on the allowlist. The header is never trusted to pick the
	// verification method on its own.
	alg, _ := tok.Header["alg"].(string)
	if alg == "" || strings.EqualFold(alg, "none") {
		return nil, fmt.Errorf("%w: %q", core.ErrUnacceptableAlgorithm, alg)
	}
	if _, ok := v.allowed[alg]; !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnacceptableAlgorithm, alg)
	}
	method := jwt.GetSigningMethod(alg)
	if method == nil {
		return nil, fmt.Errorf("%w: %q", core.ErrUnacceptableAlgorithm, alg)
	}

	kid, _ := tok.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", core.ErrMalformedToken)
	}
	key, err := v.keys.Get(ctx, kid)
	if err != nil {
		if errors.Is(err, core.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownSigningKey, kid)
		}
		// Key source outage or timeout; transient, not a credential failure.
		return nil, err
	}

	now := v.clock.Now()
	if !key.NotBefore.IsZero() && now.Add(v.cfg.Skew).Before(key.NotBefore) {
		return nil, fmt.Errorf("%w: %s is not yet active", core.ErrUnknownSigningKey, kid)
	}

	if len(parts) != 3 || parts[2] == "" {
		return nil, fmt.Errorf("%w: missing signature", core.ErrMalformedToken)
	}
	sig, err := v.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable signature", core.ErrMalformedToken)
	}
	if err := method.Verify(strings.Join(parts[:2], "."), sig, key.Key); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidSignature, err)
	}

	if iss, err := claims.GetIssuer(); err != nil || iss != v.cfg.Issuer {
		return nil, core.ErrIssuerMismatch
	}
	aud, err := claims.GetAudience()
	if err != nil || !containsAudience(aud, v.cfg.Audience) {
		return nil, core.ErrAudienceMismatch
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp claim", core.ErrMalformedToken)
	}
	if now.After(exp.Time.Add(v.cfg.Skew)) {
		return nil, core.ErrTokenExpired
	}
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil {
		if now.Add(v.cfg.Skew).Before(nbf.Time) {
			return nil, core.ErrTokenNotYetValid
		}
	}

	profile, err := v.extractor.Extract(claims)
	if err != nil {
		return nil, err
	}

	vt := &core.ValidatedToken{
		Subject:   profile.Subject,
		Scopes:    profile.Scopes,
		Roles:     profile.Roles,
		Audience:  aud,
		ExpiresAt: exp.Time,
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		vt.IssuedAt = iat.Time
	}
	return vt, nil
}

func containsAudience(aud []string, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}

// ScopeConsistency reports token scopes not covered by the union of scopes
// the subject's roles grant. A non-empty result indicates provider
// misconfiguration; it is advisory and never fails validation, which trusts
// the token's own scope claim.
func ScopeConsistency(t *core.ValidatedToken, bindings []core.RoleBinding) []string {
	held := make(map[string]struct{}, len(t.Roles))
	for _, r := range t.Roles {
		held[r] = struct{}{}
	}
	granted := make(map[string]struct{})
	for _, b := range bindings {
		if _, ok := held[b.Role]; !ok {
			continue
		}
		for _, s := range b.GrantedScopes {
			granted[s] = struct{}{}
		}
	}
	var excess []string
	for _, s := range t.Scopes {
		if _, ok := granted[s]; !ok {
			excess = append(excess, s)
		}
	}
	return excess
}
