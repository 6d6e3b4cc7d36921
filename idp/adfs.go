package idp

import (
	"fmt"
	"strings"

	"github.com/sixgroup-security/guardian-backend/core"
)

// ADFSExtractor reads AD FS access-token claims. Scopes arrive in scp, role
// information as group membership, and the subject is the UPN which AD FS
// delivers with inconsistent casing.
type ADFSExtractor struct {
	// ClientID is the client the token must have been issued for. When set,
	// the client_id claim has to match it.
	ClientID string
}

func (e *ADFSExtractor) Extract(claims map[string]any) (Profile, error) {
	sub, err := subject(claims)
	if err != nil {
		return Profile{}, err
	}
	if e.ClientID != "" {
		if cid, _ := claims["client_id"].(string); cid != e.ClientID {
			return Profile{}, fmt.Errorf("%w: token was not issued for this application", core.ErrClaimRejected)
		}
	}

	p := Profile{Subject: strings.ToLower(sub)}
	if v, ok := claims["scp"]; ok {
		p.Scopes = stringList(v)
	}
	for _, name := range []string{"group", "groups"} {
		if v, ok := claims[name]; ok {
			p.Roles = stringList(v)
			break
		}
	}
	return p, nil
}
