package authz

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sixgroup-security/guardian-backend/core"
)

// Registry collects the (endpoint, required-scopes) declarations the business
// layer pushes in at startup. Descriptors are immutable once registered.
type Registry struct {
	mu        sync.Mutex
	endpoints map[string]core.EndpointDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]core.EndpointDescriptor)}
}

// Register adds one endpoint declaration. Method and path are required, and
// re-registering the same method+path is rejected so conflicting scope
// declarations cannot shadow each other silently.
func (r *Registry) Register(d core.EndpointDescriptor) error {
	if d.Method == "" || d.Path == "" {
		return &core.InvalidInputError{Detail: "endpoint descriptor needs method and path"}
	}
	d.Method = strings.ToUpper(d.Method)
	d.RequiredScopes = core.NormalizeScopes(d.RequiredScopes)
	key := d.Method + " " + d.Path
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.endpoints[key]; exists {
		return &core.InvalidInputError{Detail: fmt.Sprintf("endpoint %s registered twice", key)}
	}
	r.endpoints[key] = d
	return nil
}

// Snapshot returns the registered descriptors ordered by path then method.
// The returned slice is a copy; mutating it does not affect the registry.
func (r *Registry) Snapshot() []core.EndpointDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EndpointDescriptor, 0, len(r.endpoints))
	for _, d := range r.endpoints {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}
