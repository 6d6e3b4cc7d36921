// Package authgin wires the validation and authorization pipeline into gin
// handlers. Route declarations made through it land in the endpoint registry
// so the audit engine sees exactly what the router enforces.
package authgin

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sixgroup-security/guardian-backend/authz"
	"github.com/sixgroup-security/guardian-backend/config"
	"github.com/sixgroup-security/guardian-backend/core"
)

const ctxTokenKey = "auth.token"

// TokenValidator is the validation entry point the middleware depends on.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*core.ValidatedToken, error)
}

// Middleware enforces token validation and scope authorization per request.
type Middleware struct {
	validator TokenValidator
	registry  *authz.Registry
	decisions core.DecisionLogger
	log       logrus.FieldLogger
}

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*Middleware)

// WithDecisionLogger records allow/deny outcomes to an external sink,
// best-effort.
func WithDecisionLogger(d core.DecisionLogger) MiddlewareOption {
	return func(m *Middleware) { m.decisions = d }
}

// WithLogger sets the logger. Raw tokens are never logged.
func WithLogger(l logrus.FieldLogger) MiddlewareOption {
	return func(m *Middleware) { m.log = l }
}

// New builds the middleware around a validator and the endpoint registry.
func New(v TokenValidator, reg *authz.Registry, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		validator: v,
		registry:  reg,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle declares a protected route: the descriptor goes into the registry
// and the returned chain validates and authorizes before the handler runs.
func (m *Middleware) Handle(r gin.IRoutes, method, path string, requiredScopes []string, handlers ...gin.HandlerFunc) error {
	if err := m.registry.Register(core.EndpointDescriptor{
		Method:         method,
		Path:           path,
		RequiredScopes: requiredScopes,
	}); err != nil {
		return err
	}
	chain := append([]gin.HandlerFunc{m.Require(requiredScopes...)}, handlers...)
	r.Handle(strings.ToUpper(method), path, chain...)
	return nil
}

// Require returns a handler that validates the request's token and enforces
// the given scopes. Missing or invalid credentials end the request with 401,
// insufficient scope with 403, key-source outages with 503.
func (m *Middleware) Require(requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := extractToken(c)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
			return
		}
		vt, err := m.validator.Validate(c.Request.Context(), raw)
		if err != nil {
			m.failValidation(c, err)
			return
		}

		decision := authz.Authorize(vt, requiredScopes)
		m.logDecision(c, vt, decision)
		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": decision.Err().Error()})
			return
		}
		c.Set(ctxTokenKey, vt)
		c.Next()
	}
}

func (m *Middleware) failValidation(c *gin.Context, err error) {
	switch core.ClassOf(err) {
	case core.ClassTransient:
		// Not the credential's fault; the client may retry.
		m.log.WithError(err).Warn("token validation hit a transient failure")
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "Could not reach the identity provider. Please try again later."})
	default:
		c.Header("WWW-Authenticate", "Bearer")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate user."})
	}
}

func (m *Middleware) logDecision(c *gin.Context, vt *core.ValidatedToken, d authz.Decision) {
	if m.decisions == nil {
		return
	}
	if err := m.decisions.LogDecision(c.Request.Context(), vt.Subject, c.Request.Method, c.FullPath(), d.Allowed, d.Missing); err != nil {
		m.log.WithError(err).Warn("decision log sink failed")
	}
}

// TokenFromGin returns the validated token stored by Require.
func TokenFromGin(c *gin.Context) (*core.ValidatedToken, bool) {
	v, ok := c.Get(ctxTokenKey)
	if !ok {
		return nil, false
	}
	vt, ok := v.(*core.ValidatedToken)
	return vt, ok
}

// extractToken reads the credential from the Authorization header, falling
// back to the access-token cookie browser clients carry.
func extractToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, param, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") && param != "" {
			return param, true
		}
	}
	if cookie, err := c.Cookie(config.CookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}
