// Package rolemap materializes the identity provider's role → scope bindings
// for the audit engine. The engine itself never fetches; callers hand it an
// already-materialized binding set.
package rolemap

import (
	"context"
	"sort"

	"github.com/sixgroup-security/guardian-backend/core"
)

// Source provides the provider's current role bindings, read-only.
type Source interface {
	Bindings(ctx context.Context) ([]core.RoleBinding, error)
}

// Static is a fixed binding set, e.g. parsed from a manifest file or wired in
// tests.
type Static []core.RoleBinding

func (s Static) Bindings(_ context.Context) ([]core.RoleBinding, error) {
	out := make([]core.RoleBinding, len(s))
	copy(out, s)
	return out, nil
}

// FromMap converts a role → scopes map into a normalized, sorted binding
// slice.
func FromMap(m map[string][]string) []core.RoleBinding {
	out := make([]core.RoleBinding, 0, len(m))
	for role, scopes := range m {
		out = append(out, core.RoleBinding{Role: role, GrantedScopes: core.NormalizeScopes(scopes)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}
