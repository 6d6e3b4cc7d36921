package token

import (
	"context"
	"encoding/base64"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/keyset"
	authtest "github.com/sixgroup-security/guardian-backend/testing"
)

func newValidator(t *testing.T, issuer *authtest.TestIssuer, mutate func(*core.VerifyConfig)) *Validator {
	t.Helper()
	cfg := core.VerifyConfig{
		Issuer:   issuer.URL(),
		Audience: issuer.Audience(),
		JWKSURL:  issuer.JWKSURL(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := New(keyset.New(cfg.JWKSURL), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestValidateHappyPath(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	raw := issuer.CreateToken("alice", []string{"reports:read", "reports:export"}, []string{"analyst"})
	got, err := v.Validate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Subject != "alice" {
		t.Errorf("subject = %q, want alice", got.Subject)
	}
	want := []string{"reports:export", "reports:read"}
	if !reflect.DeepEqual(got.Scopes, want) {
		t.Errorf("scopes = %v, want %v", got.Scopes, want)
	}
	if !reflect.DeepEqual(got.Roles, []string{"analyst"}) {
		t.Errorf("roles = %v, want [analyst]", got.Roles)
	}
	if got.ExpiresAt.IsZero() {
		t.Error("expiry not populated")
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	raw := issuer.CreateToken("alice", []string{"reports:read"}, []string{"analyst"})
	first, err := v.Validate(context.Background(), raw)
	if err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	second, err := v.Validate(context.Background(), raw)
	if err != nil {
		t.Fatalf("second Validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated validation diverged: %+v vs %+v", first, second)
	}
}

func TestValidateTamperedSignature(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	raw := authtest.Tamper(issuer.CreateToken("alice", nil, nil))
	_, err := v.Validate(context.Background(), raw)
	if !errors.Is(err, core.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if core.ClassOf(err) != core.ClassCredential {
		t.Errorf("signature failure must classify as credential")
	}
}

func TestValidateNoneAlgorithm(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"sub":"alice","iss":"` + issuer.URL() + `"}`))
	raw := header + "." + payload + "."

	_, err := v.Validate(context.Background(), raw)
	if !errors.Is(err, core.ErrUnacceptableAlgorithm) {
		t.Fatalf("expected ErrUnacceptableAlgorithm, got %v", err)
	}
}

func TestValidateDisallowedAlgorithm(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	// RS256 is what the issuer signs with; allow only RS384 and watch the
	// token bounce off the allowlist before any key lookup.
	v := newValidator(t, issuer, func(cfg *core.VerifyConfig) {
		cfg.Algorithms = []string{"RS384"}
	})

	_, err := v.Validate(context.Background(), issuer.CreateToken("alice", nil, nil))
	if !errors.Is(err, core.ErrUnacceptableAlgorithm) {
		t.Fatalf("expected ErrUnacceptableAlgorithm, got %v", err)
	}
}

func TestNewRejectsNoneAllowlist(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()

	cfg := core.VerifyConfig{
		Issuer:     issuer.URL(),
		Audience:   issuer.Audience(),
		JWKSURL:    issuer.JWKSURL(),
		Algorithms: []string{"RS256", "none"},
	}
	if _, err := New(keyset.New(cfg.JWKSURL), cfg); err == nil {
		t.Fatal(`allowlisting "none" must fail construction`)
	}
}

func TestValidateUnknownKeyID(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	_, err := v.Validate(context.Background(), issuer.CreateTokenWithUnknownKey("alice"))
	if !errors.Is(err, core.ErrUnknownSigningKey) {
		t.Fatalf("expected ErrUnknownSigningKey, got %v", err)
	}
}

func TestValidateExpiryAndSkew(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()

	// Expired a minute ago: rejected with zero skew, accepted inside a
	// two-minute tolerance.
	raw := issuer.CreateTokenWithExpiry("alice", time.Now().Add(-time.Minute))

	strict := newValidator(t, issuer, nil)
	if _, err := strict.Validate(context.Background(), raw); !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired with zero skew, got %v", err)
	}

	lenient := newValidator(t, issuer, func(cfg *core.VerifyConfig) {
		cfg.Skew = core.DefaultSkew
	})
	if _, err := lenient.Validate(context.Background(), raw); err != nil {
		t.Fatalf("skew should tolerate a one-minute-old expiry, got %v", err)
	}
}

func TestValidateNotYetValid(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	raw := issuer.CreateTokenWithClaims("alice", map[string]any{
		"nbf": time.Now().Add(10 * time.Minute).Unix(),
	})
	if _, err := v.Validate(context.Background(), raw); !errors.Is(err, core.ErrTokenNotYetValid) {
		t.Fatalf("expected ErrTokenNotYetValid, got %v", err)
	}
}

func TestValidateMissingExpiry(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	raw := issuer.CreateTokenWithClaims("alice", map[string]any{"exp": nil})
	if _, err := v.Validate(context.Background(), raw); !errors.Is(err, core.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for missing exp, got %v", err)
	}
}

func TestValidateIssuerMismatch(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, func(cfg *core.VerifyConfig) {
		cfg.Issuer = "https://other.example.com"
	})

	_, err := v.Validate(context.Background(), issuer.CreateToken("alice", nil, nil))
	if !errors.Is(err, core.ErrIssuerMismatch) {
		t.Fatalf("expected ErrIssuerMismatch, got %v", err)
	}
}

func TestValidateAudienceMismatch(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, func(cfg *core.VerifyConfig) {
		cfg.Audience = "someone-else"
	})

	_, err := v.Validate(context.Background(), issuer.CreateToken("alice", nil, nil))
	if !errors.Is(err, core.ErrAudienceMismatch) {
		t.Fatalf("expected ErrAudienceMismatch, got %v", err)
	}
}

func TestValidateMalformedToken(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	defer issuer.Close()
	v := newValidator(t, issuer, nil)

	for _, raw := range []string{"", "not-a-jwt", "a.b"} {
		if _, err := v.Validate(context.Background(), raw); !errors.Is(err, core.ErrMalformedToken) {
			t.Errorf("Validate(%q): expected ErrMalformedToken, got %v", raw, err)
		}
	}
}

func TestValidateKeySourceDown(t *testing.T) {
	issuer := authtest.NewTestIssuer()
	raw := issuer.CreateToken("alice", nil, nil)
	v := newValidator(t, issuer, nil)
	issuer.Close()

	_, err := v.Validate(context.Background(), raw)
	if core.ClassOf(err) != core.ClassTransient {
		t.Fatalf("key source outage must classify as transient, got %v", err)
	}
}

func TestScopeConsistency(t *testing.T) {
	bindings := []core.RoleBinding{
		{Role: "analyst", GrantedScopes: []string{"reports:read"}},
		{Role: "admin", GrantedScopes: []string{"reports:read", "reports:export"}},
	}
	tok := &core.ValidatedToken{
		Roles:  []string{"analyst"},
		Scopes: []string{"reports:read", "reports:export"},
	}
	excess := ScopeConsistency(tok, bindings)
	if !reflect.DeepEqual(excess, []string{"reports:export"}) {
		t.Errorf("excess = %v, want [reports:export]", excess)
	}

	tok.Roles = []string{"admin"}
	if excess := ScopeConsistency(tok, bindings); len(excess) != 0 {
		t.Errorf("admin should cover all scopes, got %v", excess)
	}
}
