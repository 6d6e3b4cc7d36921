// Package audit cross-references declared endpoint scopes with the identity
// provider's role bindings and reports inconsistencies before they become
// access-control drift.
//
// The engine is pure: identical inputs always produce an identical, sorted
// finding sequence, so CI can assert on the exact finding set.
package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sixgroup-security/guardian-backend/core"
)

// Option configures an audit run.
type Option func(*config)

type config struct {
	expectedUse map[string][]string
}

// WithExpectedUse supplies the role → expected-scope mapping that enables the
// over/under-privileged role checks. Without it those checks are skipped;
// there is no default policy to guess from.
func WithExpectedUse(m map[string][]string) Option {
	return func(c *config) { c.expectedUse = m }
}

// Run audits the endpoint declarations against the provider's role bindings.
// Inputs are read-only; the engine performs no I/O. Findings come back sorted
// by category, then name, then detail.
func Run(endpoints []core.EndpointDescriptor, bindings []core.RoleBinding, opts ...Option) ([]core.AuditFinding, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validateInputs(endpoints, bindings); err != nil {
		return nil, err
	}

	// requiredBy: declared scope → endpoints requiring it.
	requiredBy := make(map[string][]string)
	for _, e := range endpoints {
		for _, s := range e.RequiredScopes {
			requiredBy[s] = append(requiredBy[s], e.Method+" "+e.Path)
		}
	}
	// grantedBy: granted scope → roles granting it.
	grantedBy := make(map[string][]string)
	for _, b := range bindings {
		for _, s := range b.GrantedScopes {
			grantedBy[s] = append(grantedBy[s], b.Role)
		}
	}

	var findings []core.AuditFinding

	// A declared scope no role grants makes its endpoints unreachable.
	for scope, users := range requiredBy {
		if _, ok := grantedBy[scope]; ok {
			continue
		}
		sort.Strings(users)
		findings = append(findings, core.AuditFinding{
			Category: core.FindingUnmappedEndpoint,
			Name:     scope,
			Detail:   fmt.Sprintf("scope %s is required by %s but granted by no role", scope, strings.Join(users, ", ")),
		})
	}

	// A granted scope no endpoint requires is a least-privilege candidate.
	for scope, roles := range grantedBy {
		if _, ok := requiredBy[scope]; ok {
			continue
		}
		roles = sortedUnique(roles)
		findings = append(findings, core.AuditFinding{
			Category: core.FindingOrphanScope,
			Name:     scope,
			Detail:   fmt.Sprintf("scope %s is granted by %s but required by no endpoint", scope, strings.Join(roles, ", ")),
		})
	}

	if cfg.expectedUse != nil {
		findings = append(findings, privilegeFindings(bindings, cfg.expectedUse)...)
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Category != findings[j].Category {
			return findings[i].Category < findings[j].Category
		}
		if findings[i].Name != findings[j].Name {
			return findings[i].Name < findings[j].Name
		}
		return findings[i].Detail < findings[j].Detail
	})
	return findings, nil
}

// privilegeFindings compares each role's grants against the scopes its
// holders are expected to use. Grants beyond expected use flag the role as
// over-privileged; expected scopes it does not grant flag it as
// under-privileged.
func privilegeFindings(bindings []core.RoleBinding, expectedUse map[string][]string) []core.AuditFinding {
	var findings []core.AuditFinding
	for _, b := range bindings {
		expected, ok := expectedUse[b.Role]
		if !ok {
			continue
		}
		expected = core.NormalizeScopes(expected)
		expectedSet := make(map[string]struct{}, len(expected))
		for _, s := range expected {
			expectedSet[s] = struct{}{}
		}
		grantedSet := make(map[string]struct{}, len(b.GrantedScopes))
		for _, s := range b.GrantedScopes {
			grantedSet[s] = struct{}{}
		}

		var extra, lacking []string
		for _, s := range b.GrantedScopes {
			if _, ok := expectedSet[s]; !ok {
				extra = append(extra, s)
			}
		}
		for _, s := range expected {
			if _, ok := grantedSet[s]; !ok {
				lacking = append(lacking, s)
			}
		}
		if len(extra) > 0 {
			findings = append(findings, core.AuditFinding{
				Category: core.FindingOverPrivilegedRole,
				Name:     b.Role,
				Detail:   fmt.Sprintf("role %s grants %s beyond its expected use", b.Role, strings.Join(extra, ", ")),
			})
		}
		if len(lacking) > 0 {
			findings = append(findings, core.AuditFinding{
				Category: core.FindingUnderPrivilegedRole,
				Name:     b.Role,
				Detail:   fmt.Sprintf("role %s lacks %s from its expected use", b.Role, strings.Join(lacking, ", ")),
			})
		}
	}
	return findings
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func validateInputs(endpoints []core.EndpointDescriptor, bindings []core.RoleBinding) error {
	for _, e := range endpoints {
		if e.Method == "" || e.Path == "" {
			return &core.InvalidInputError{Detail: "endpoint descriptor needs method and path"}
		}
	}
	for _, b := range bindings {
		if b.Role == "" {
			return &core.InvalidInputError{Detail: "role binding with empty role name"}
		}
	}
	return nil
}
