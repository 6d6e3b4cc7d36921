// Package authz holds the per-request scope gate and the static endpoint
// registry the business layer populates at startup.
package authz

import (
	"github.com/sixgroup-security/guardian-backend/core"
)

// Decision is the outcome of one authorization check. Deny is terminal and
// side-effect free; the gate never mutates token or registry state.
type Decision struct {
	Allowed bool
	// Missing lists the required scopes the token does not carry. Empty when
	// allowed.
	Missing []string
}

// Err returns nil for an allow and a *core.DeniedError for a deny, so
// adapters can classify the outcome alongside validation failures.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &core.DeniedError{Missing: d.Missing}
}

// Authorize allows iff every required scope is present in the token's scope
// claim. Authorization is scope-based only; roles matter solely for the
// audit engine, never as a request-time fallback.
func Authorize(t *core.ValidatedToken, requiredScopes []string) Decision {
	required := core.NormalizeScopes(requiredScopes)
	var missing []string
	for _, s := range required {
		if !t.HasScope(s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return Decision{Allowed: false, Missing: missing}
	}
	return Decision{Allowed: true}
}
