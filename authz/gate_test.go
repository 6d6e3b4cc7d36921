package authz

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sixgroup-security/guardian-backend/core"
)

func token(scopes ...string) *core.ValidatedToken {
	return &core.ValidatedToken{Subject: "alice", Scopes: core.NormalizeScopes(scopes)}
}

func TestAuthorizeAllowsSubset(t *testing.T) {
	d := Authorize(token("reports:read", "reports:export"), []string{"reports:read"})
	if !d.Allowed {
		t.Fatalf("expected allow, missing %v", d.Missing)
	}
	if d.Err() != nil {
		t.Errorf("allow must carry a nil error, got %v", d.Err())
	}
}

func TestAuthorizeDeniesMissingScope(t *testing.T) {
	d := Authorize(token("reports:read"), []string{"reports:read", "reports:export"})
	if d.Allowed {
		t.Fatal("expected deny")
	}
	if !reflect.DeepEqual(d.Missing, []string{"reports:export"}) {
		t.Errorf("missing = %v, want [reports:export]", d.Missing)
	}
	var denied *core.DeniedError
	if !errors.As(d.Err(), &denied) {
		t.Fatalf("expected DeniedError, got %v", d.Err())
	}
	if core.ClassOf(d.Err()) != core.ClassDenied {
		t.Error("deny must classify as denied")
	}
}

func TestAuthorizeEmptyRequirement(t *testing.T) {
	if d := Authorize(token(), nil); !d.Allowed {
		t.Error("no required scopes must always allow")
	}
}

// Adding scopes to a token never turns an allow into a deny.
func TestAuthorizeMonotonic(t *testing.T) {
	required := []string{"reports:read", "reports:export"}
	held := []string{"reports:read", "reports:export"}
	if d := Authorize(token(held...), required); !d.Allowed {
		t.Fatal("baseline token should be allowed")
	}
	widened := append(held, "projects:read", "admin:all")
	if d := Authorize(token(widened...), required); !d.Allowed {
		t.Errorf("widened token was denied, missing %v", d.Missing)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	d := core.EndpointDescriptor{Method: "get", Path: "/reports", RequiredScopes: []string{"reports:read"}}
	if err := r.Register(d); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	var invalid *core.InvalidInputError
	if err := r.Register(d); !errors.As(err, &invalid) {
		t.Fatalf("duplicate registration should fail, got %v", err)
	}
}

func TestRegistryRejectsIncompleteDescriptor(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(core.EndpointDescriptor{Method: "GET"}); err == nil {
		t.Error("missing path should be rejected")
	}
	if err := r.Register(core.EndpointDescriptor{Path: "/reports"}); err == nil {
		t.Error("missing method should be rejected")
	}
}

func TestRegistrySnapshotSortedAndNormalized(t *testing.T) {
	r := NewRegistry()
	for _, d := range []core.EndpointDescriptor{
		{Method: "post", Path: "/reports", RequiredScopes: []string{"reports:create", "reports:create"}},
		{Method: "GET", Path: "/projects"},
		{Method: "get", Path: "/reports", RequiredScopes: []string{"reports:read"}},
	} {
		if err := r.Register(d); err != nil {
			t.Fatalf("Register(%+v): %v", d, err)
		}
	}
	snap := r.Snapshot()
	want := []core.EndpointDescriptor{
		{Method: "GET", Path: "/projects"},
		{Method: "GET", Path: "/reports", RequiredScopes: []string{"reports:read"}},
		{Method: "POST", Path: "/reports", RequiredScopes: []string{"reports:create"}},
	}
	if !reflect.DeepEqual(snap, want) {
		t.Errorf("snapshot = %+v, want %+v", snap, want)
	}
}
