package idp

import (
	"fmt"

	"github.com/sixgroup-security/guardian-backend/core"
)

// KeycloakExtractor reads Keycloak access-token claims. Client roles live
// under resource_access.<client>.roles; scopes arrive space-delimited in the
// scope claim.
type KeycloakExtractor struct {
	// ClientID is the client the token must have been issued for. When set,
	// the azp claim has to match it.
	ClientID string
	// RequireVerifiedEmail rejects tokens whose email_verified claim is
	// present and false.
	RequireVerifiedEmail bool
}

func (e *KeycloakExtractor) Extract(claims map[string]any) (Profile, error) {
	sub, err := subject(claims)
	if err != nil {
		return Profile{}, err
	}
	if e.ClientID != "" {
		if azp, _ := claims["azp"].(string); azp != e.ClientID {
			return Profile{}, fmt.Errorf("%w: token was not issued for this application", core.ErrClaimRejected)
		}
	}
	if e.RequireVerifiedEmail {
		if verified, ok := claims["email_verified"].(bool); ok && !verified {
			return Profile{}, fmt.Errorf("%w: email address not verified", core.ErrClaimRejected)
		}
	}

	p := Profile{Subject: sub}
	if v, ok := claims["scope"]; ok {
		p.Scopes = stringList(v)
	}
	if ra, ok := claims["resource_access"].(map[string]any); ok {
		if client, ok := ra[e.ClientID].(map[string]any); ok {
			p.Roles = stringList(client["roles"])
		}
	}
	// Realm roles serve as fallback for tokens without client-level roles.
	if len(p.Roles) == 0 {
		if realm, ok := claims["realm_access"].(map[string]any); ok {
			p.Roles = stringList(realm["roles"])
		}
	}
	return p, nil
}
