package core

import (
	"crypto"
	"sort"
	"strings"
	"time"
)

// SigningKey is one public key from the provider's JWKS. Immutable once
// fetched; the key-set cache replaces whole sets, never individual entries.
type SigningKey struct {
	KeyID     string
	Algorithm string
	Key       crypto.PublicKey
	NotBefore time.Time
}

// ValidatedToken is the normalized result of a successful validation.
// Created once per request and never mutated afterwards.
type ValidatedToken struct {
	Subject   string
	Scopes    []string // sorted, deduplicated
	Roles     []string // sorted, deduplicated
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasScope reports whether the token carries the given scope.
func (t *ValidatedToken) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// EndpointDescriptor declares the scopes an endpoint requires. Contributed by
// the business layer at startup and immutable afterwards.
type EndpointDescriptor struct {
	Method         string
	Path           string
	RequiredScopes []string
}

// RoleBinding maps one provider-side role to the scopes it grants.
type RoleBinding struct {
	Role          string
	GrantedScopes []string
}

// FindingCategory classifies audit findings.
type FindingCategory string

const (
	FindingOrphanScope         FindingCategory = "orphan_scope"
	FindingUnmappedEndpoint    FindingCategory = "unmapped_endpoint"
	FindingOverPrivilegedRole  FindingCategory = "over_privileged_role"
	FindingUnderPrivilegedRole FindingCategory = "under_privileged_role"
)

// AuditFinding is one consistency issue between declared endpoint scopes and
// provider role bindings. Findings are informational, not errors.
type AuditFinding struct {
	Category FindingCategory `json:"category"`
	Name     string          `json:"name"`
	Detail   string          `json:"detail"`
}

// NormalizeScopes returns a sorted copy of scopes with duplicates and empty
// entries removed. Claim extractors and registries normalize through this so
// that set comparisons stay deterministic.
func NormalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// SplitScopeClaim splits a space-delimited scope claim ("openid profile ...")
// into a normalized slice.
func SplitScopeClaim(claim string) []string {
	return NormalizeScopes(strings.Fields(claim))
}

// ContainsAll reports whether every element of want is present in have.
// Both slices are expected to be normalized.
func ContainsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, s := range have {
		set[s] = struct{}{}
	}
	for _, s := range want {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
