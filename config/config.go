// Package config loads the authorization boundary's settings from the
// environment. URLs are treated as opaque strings; they only have to be
// present at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sixgroup-security/guardian-backend/core"
	"github.com/sixgroup-security/guardian-backend/idp"
)

// CookieName is the cookie slot the access token travels in for browser
// clients.
const CookieName = "access_token"

// Settings holds the environment-supplied configuration.
type Settings struct {
	IdPType idp.Type

	Issuer   string
	Audience string
	JWKSURL  string
	ClientID string

	// Login-flow endpoints, needed only when the login handlers are mounted.
	ClientSecret     string
	RedirectURI      string
	TokenURL         string
	AuthorizationURL string
	HTTPS            bool

	Skew           time.Duration
	KeyCacheTTL    time.Duration
	FetchTimeout   time.Duration
	AccessTokenTTL time.Duration
}

// Load reads and validates settings from the environment.
//
// Required: IDP (adfs|keycloak|generic), ISSUER, AUDIENCE, JWKS_URL.
// Optional: CLIENT_ID, CLIENT_SECRET, REDIRECT_URI, TOKEN_URL,
// AUTHORIZATION_URL, HTTPS, OAUTH2_CLOCK_SKEW_SECONDS,
// OAUTH2_ACCESS_TOKEN_EXPIRE_MINUTES, JWKS_CACHE_TTL_SECONDS,
// JWKS_FETCH_TIMEOUT_SECONDS.
func Load() (*Settings, error) {
	s := &Settings{
		Issuer:           strings.TrimSpace(os.Getenv("ISSUER")),
		Audience:         strings.TrimSpace(os.Getenv("AUDIENCE")),
		JWKSURL:          strings.TrimSpace(os.Getenv("JWKS_URL")),
		ClientID:         strings.TrimSpace(os.Getenv("CLIENT_ID")),
		ClientSecret:     os.Getenv("CLIENT_SECRET"),
		RedirectURI:      strings.TrimSpace(os.Getenv("REDIRECT_URI")),
		TokenURL:         strings.TrimSpace(os.Getenv("TOKEN_URL")),
		AuthorizationURL: strings.TrimSpace(os.Getenv("AUTHORIZATION_URL")),
		HTTPS:            strings.EqualFold(os.Getenv("HTTPS"), "true"),
	}

	idpType := idp.Type(strings.ToLower(strings.TrimSpace(os.Getenv("IDP"))))
	switch idpType {
	case idp.TypeKeycloak, idp.TypeADFS, idp.TypeGeneric, "":
		s.IdPType = idpType
	default:
		return nil, fmt.Errorf("environment variable IDP contains %q; valid values are: adfs, keycloak, generic", idpType)
	}

	if s.Issuer == "" {
		return nil, &core.InvalidInputError{Detail: "environment variable ISSUER is required"}
	}
	if s.Audience == "" {
		return nil, &core.InvalidInputError{Detail: "environment variable AUDIENCE is required"}
	}
	if s.JWKSURL == "" {
		return nil, &core.InvalidInputError{Detail: "environment variable JWKS_URL is required"}
	}

	var err error
	if s.Skew, err = secondsEnv("OAUTH2_CLOCK_SKEW_SECONDS", core.DefaultSkew); err != nil {
		return nil, err
	}
	if s.Skew > core.DefaultSkew {
		return nil, &core.InvalidInputError{Detail: "OAUTH2_CLOCK_SKEW_SECONDS must not exceed 120"}
	}
	if s.KeyCacheTTL, err = secondsEnv("JWKS_CACHE_TTL_SECONDS", 15*time.Minute); err != nil {
		return nil, err
	}
	if s.FetchTimeout, err = secondsEnv("JWKS_FETCH_TIMEOUT_SECONDS", core.DefaultFetchTimeout); err != nil {
		return nil, err
	}

	minutes, err := intEnv("OAUTH2_ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	s.AccessTokenTTL = time.Duration(minutes) * time.Minute

	return s, nil
}

// VerifyConfig derives the validator/key-cache configuration.
func (s *Settings) VerifyConfig() core.VerifyConfig {
	return core.VerifyConfig{
		Issuer:       s.Issuer,
		Audience:     s.Audience,
		JWKSURL:      s.JWKSURL,
		Skew:         s.Skew,
		CacheTTL:     s.KeyCacheTTL,
		FetchTimeout: s.FetchTimeout,
	}
}

// Extractor returns the claim extractor for the configured provider type.
func (s *Settings) Extractor() (idp.ClaimExtractor, error) {
	return idp.ForType(s.IdPType, s.ClientID)
}

func intEnv(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s is not a number: %w", name, err)
	}
	return v, nil
}

func secondsEnv(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s is not a number: %w", name, err)
	}
	return time.Duration(v) * time.Second, nil
}
