package config

import (
	"testing"
	"time"

	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/idp"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("IDP", "keycloak")
	t.Setenv("ISSUER", "https://idp.example.com/realms/guardian")
	t.Setenv("AUDIENCE", "guardian")
	t.Setenv("JWKS_URL", "https://idp.example.com/realms/guardian/protocol/openid-connect/certs")
	// Clear optionals that a developer shell might carry.
	for _, name := range []string{
		"CLIENT_ID", "OAUTH2_CLOCK_SKEW_SECONDS", "JWKS_CACHE_TTL_SECONDS",
		"JWKS_FETCH_TIMEOUT_SECONDS", "OAUTH2_ACCESS_TOKEN_EXPIRE_MINUTES",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.IdPType != idp.TypeKeycloak {
		t.Errorf("idp type = %q", s.IdPType)
	}
	if s.Skew != core.DefaultSkew {
		t.Errorf("skew = %v, want %v", s.Skew, core.DefaultSkew)
	}
	if s.KeyCacheTTL != 15*time.Minute {
		t.Errorf("key cache ttl = %v", s.KeyCacheTTL)
	}
	if s.FetchTimeout != core.DefaultFetchTimeout {
		t.Errorf("fetch timeout = %v", s.FetchTimeout)
	}
	if s.AccessTokenTTL != 30*time.Minute {
		t.Errorf("access token ttl = %v", s.AccessTokenTTL)
	}
}

func TestLoadMissingIssuer(t *testing.T) {
	setRequired(t)
	t.Setenv("ISSUER", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing ISSUER should fail")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("IDP", "okta")
	if _, err := Load(); err == nil {
		t.Fatal("unknown IDP should fail")
	}
}

func TestLoadCapsSkew(t *testing.T) {
	setRequired(t)
	t.Setenv("OAUTH2_CLOCK_SKEW_SECONDS", "60")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Skew != time.Minute {
		t.Errorf("skew = %v, want 1m", s.Skew)
	}

	t.Setenv("OAUTH2_CLOCK_SKEW_SECONDS", "300")
	if _, err := Load(); err == nil {
		t.Fatal("skew above 120s should be rejected")
	}
}

func TestVerifyConfigDerivation(t *testing.T) {
	setRequired(t)
	t.Setenv("JWKS_CACHE_TTL_SECONDS", "600")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg := s.VerifyConfig()
	if cfg.Issuer != s.Issuer || cfg.Audience != s.Audience || cfg.JWKSURL != s.JWKSURL {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("cache ttl = %v", cfg.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("derived config invalid: %v", err)
	}
}

func TestExtractorSelection(t *testing.T) {
	setRequired(t)
	t.Setenv("IDP", "adfs")
	t.Setenv("CLIENT_ID", "guardian")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, err := s.Extractor()
	if err != nil {
		t.Fatalf("Extractor: %v", err)
	}
	if _, ok := e.(*idp.ADFSExtractor); !ok {
		t.Errorf("extractor = %T, want *idp.ADFSExtractor", e)
	}
}
