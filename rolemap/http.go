package rolemap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sixgroup-security/guardian-backend/core"
)

// HTTPSource reads role bindings from an HTTP endpoint returning a JSON
// object of role name → granted scopes, the shape the provider-side export
// publishes.
type HTTPSource struct {
	url    string
	client *http.Client
	// authorize decorates the request, e.g. with an admin bearer token.
	authorize func(*http.Request)
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithRequestAuthorizer decorates outbound requests, typically adding an
// Authorization header.
func WithRequestAuthorizer(fn func(*http.Request)) HTTPOption {
	return func(s *HTTPSource) { s.authorize = fn }
}

// NewHTTPSource creates a source for the given bindings URL.
func NewHTTPSource(url string, opts ...HTTPOption) (*HTTPSource, error) {
	if url == "" {
		return nil, errors.New("rolemap: bindings url is empty")
	}
	s := &HTTPSource{url: url, client: http.DefaultClient}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *HTTPSource) Bindings(ctx context.Context) ([]core.RoleBinding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	if s.authorize != nil {
		s.authorize(req)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rolemap: fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rolemap: fetch failed: %s", resp.Status)
	}
	var doc map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("rolemap: decode: %w", err)
	}
	return FromMap(doc), nil
}
