// Package idp normalizes provider-specific claim shapes into the fixed
// profile the validator returns. Keycloak and ADFS deliver scopes and roles
// differently; each gets its own extractor so the validator stays
// provider-agnostic.
package idp

import (
	"fmt"

	"github.com/sixgroup-security/guardian-backend/core"
)

// Profile is the provider-independent view of a token's identity claims.
type Profile struct {
	Subject string
	Scopes  []string
	Roles   []string
}

// ClaimExtractor converts raw token claims into a Profile.
type ClaimExtractor interface {
	Extract(claims map[string]any) (Profile, error)
}

// Type names an identity provider integration.
type Type string

const (
	TypeKeycloak Type = "keycloak"
	TypeADFS     Type = "adfs"
	TypeGeneric  Type = "generic"
)

// ForType returns the extractor for the named provider type.
func ForType(t Type, clientID string) (ClaimExtractor, error) {
	switch t {
	case TypeKeycloak:
		return &KeycloakExtractor{ClientID: clientID}, nil
	case TypeADFS:
		return &ADFSExtractor{ClientID: clientID}, nil
	case TypeGeneric, "":
		return GenericExtractor{}, nil
	default:
		return nil, fmt.Errorf("identity provider type %q is unknown", t)
	}
}

// subject pulls the sub claim, which every supported provider delivers.
func subject(claims map[string]any) (string, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: missing sub claim", core.ErrMalformedToken)
	}
	return sub, nil
}

// stringList accepts the two shapes providers use for list claims: a JSON
// array of strings or a single space-delimited string.
func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		return core.SplitScopeClaim(val)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return core.NormalizeScopes(out)
	case []string:
		return core.NormalizeScopes(val)
	default:
		return nil
	}
}

// GenericExtractor probes the common claim names without provider-specific
// checks: scope/scopes/scp for scopes, roles/groups for roles.
type GenericExtractor struct{}

func (GenericExtractor) Extract(claims map[string]any) (Profile, error) {
	sub, err := subject(claims)
	if err != nil {
		return Profile{}, err
	}
	p := Profile{Subject: sub}
	for _, name := range []string{"scope", "scopes", "scp"} {
		if v, ok := claims[name]; ok {
			p.Scopes = stringList(v)
			break
		}
	}
	for _, name := range []string{"roles", "groups"} {
		if v, ok := claims[name]; ok {
			p.Roles = stringList(v)
			break
		}
	}
	return p, nil
}
