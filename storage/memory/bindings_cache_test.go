package memorystore

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sixgroup-security/guardian-backend/core"
)

type countingSource struct {
	calls    int
	bindings []core.RoleBinding
	err      error
}

func (s *countingSource) Bindings(_ context.Context) ([]core.RoleBinding, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.bindings, nil
}

func TestBindingsCacheReadThrough(t *testing.T) {
	src := &countingSource{bindings: []core.RoleBinding{
		{Role: "analyst", GrantedScopes: []string{"reports:read"}},
	}}
	cache := NewBindingsCache(src, time.Minute)

	first, err := cache.Bindings(context.Background())
	if err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	second, err := cache.Bindings(context.Background())
	if err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result diverged: %+v vs %+v", first, second)
	}
}

func TestBindingsCacheInvalidate(t *testing.T) {
	src := &countingSource{bindings: []core.RoleBinding{{Role: "analyst"}}}
	cache := NewBindingsCache(src, time.Minute)

	if _, err := cache.Bindings(context.Background()); err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	cache.Invalidate()
	if _, err := cache.Bindings(context.Background()); err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("source called %d times after invalidation, want 2", src.calls)
	}
}

func TestBindingsCacheSurfacesErrors(t *testing.T) {
	boom := errors.New("provider down")
	src := &countingSource{err: boom}
	cache := NewBindingsCache(src, time.Minute)

	if _, err := cache.Bindings(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestBindingsCacheReturnsCopies(t *testing.T) {
	src := &countingSource{bindings: []core.RoleBinding{{Role: "analyst"}}}
	cache := NewBindingsCache(src, time.Minute)

	out, err := cache.Bindings(context.Background())
	if err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	out[0].Role = "mutated"

	again, err := cache.Bindings(context.Background())
	if err != nil {
		t.Fatalf("Bindings: %v", err)
	}
	if again[0].Role != "analyst" {
		t.Error("caller mutation leaked into the cache")
	}
}
