// Package oidckit holds the relying-party plumbing for the IdP login flow:
// endpoint discovery, authorization redirects, and exchanging authorization
// codes for access tokens. Token verification lives elsewhere; the exchange
// result is fed through the validator like any other inbound token.
package oidckit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// RelyingParty holds the OAuth2 configuration for the configured provider.
type RelyingParty struct {
	issuer      string
	clientID    string
	jwksURL     string
	oauthConfig *oauth2.Config
}

type discoveryDoc struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Endpoints carries explicitly configured provider endpoints for deployments
// that pin them instead of relying on discovery.
type Endpoints struct {
	AuthorizationURL string
	TokenURL         string
	JWKSURL          string
}

// NewRelyingParty constructs a relying party from pinned endpoints.
func NewRelyingParty(issuer, clientID, clientSecret, redirectURI string, ep Endpoints, scopes []string) (*RelyingParty, error) {
	if issuer == "" {
		return nil, errors.New("oidc: issuer is empty")
	}
	if ep.AuthorizationURL == "" || ep.TokenURL == "" {
		return nil, errors.New("oidc: authorization and token endpoints are required")
	}
	return &RelyingParty{
		issuer:   issuer,
		clientID: clientID,
		jwksURL:  ep.JWKSURL,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  ep.AuthorizationURL,
				TokenURL: ep.TokenURL,
			},
		},
	}, nil
}

// NewRelyingPartyDiscovery discovers provider metadata from the issuer's
// well-known configuration and constructs a relying party.
func NewRelyingPartyDiscovery(ctx context.Context, issuer, clientID, clientSecret, redirectURI string, scopes []string) (*RelyingParty, error) {
	trimmedIssuer := strings.TrimRight(issuer, "/")
	if trimmedIssuer == "" {
		return nil, errors.New("oidc: issuer is empty")
	}
	doc, err := discoverOIDC(ctx, trimmedIssuer)
	if err != nil {
		return nil, err
	}
	effectiveIssuer := doc.Issuer
	if effectiveIssuer == "" {
		effectiveIssuer = issuer
	}
	rp, err := NewRelyingParty(effectiveIssuer, clientID, clientSecret, redirectURI, Endpoints{
		AuthorizationURL: doc.AuthorizationEndpoint,
		TokenURL:         doc.TokenEndpoint,
		JWKSURL:          doc.JWKSURI,
	}, scopes)
	return rp, err
}

// Issuer returns the issuer URL associated with the relying party.
func (rp *RelyingParty) Issuer() string { return rp.issuer }

// ClientID returns the OAuth client_id for the relying party.
func (rp *RelyingParty) ClientID() string { return rp.clientID }

// JWKSURL returns the provider's key-set endpoint, when known.
func (rp *RelyingParty) JWKSURL() string { return rp.jwksURL }

// AuthURL builds the authorization redirect for the login handler.
func (rp *RelyingParty) AuthURL(state string) string {
	return rp.oauthConfig.AuthCodeURL(state)
}

// Exchange trades an authorization code for the provider's access token. The
// raw token goes straight into the validation pipeline; nothing here is
// trusted yet.
func (rp *RelyingParty) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := rp.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("oidc: token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("oidc: no access token in response")
	}
	return tok.AccessToken, nil
}

func discoverOIDC(ctx context.Context, issuer string) (*discoveryDoc, error) {
	discoveryURL := strings.TrimRight(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("oidc: discovery failed: %s", resp.Status)
	}
	var doc discoveryDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	discoveredIssuer := strings.TrimRight(doc.Issuer, "/")
	if discoveredIssuer != "" && discoveredIssuer != issuer {
		return nil, fmt.Errorf("oidc: issuer mismatch: %s", doc.Issuer)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.JWKSURI == "" {
		return nil, errors.New("oidc: discovery missing endpoints")
	}
	return &doc, nil
}
