package authgin

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sixgroup-security/guardian-backend/config"
	jwtkit "github.com/sixgroup-security/guardian-backend/jwt"
	oidckit "github.com/sixgroup-security/guardian-backend/oidc"
)

const stateCookie = "oauth_state"

// LoginHandlers implements the IdP login flow: redirect to the provider's
// authorization page, then exchange the callback code and validate the
// resulting access token before it is handed to the browser.
type LoginHandlers struct {
	rp          *oidckit.RelyingParty
	validator   TokenValidator
	secure      bool
	cookieTTL   time.Duration
	localSigner *jwtkit.RSASigner
	localIssuer string
	log         logrus.FieldLogger
}

// LoginOption configures LoginHandlers.
type LoginOption func(*LoginHandlers)

// WithSecureCookies marks issued cookies Secure (HTTPS deployments).
func WithSecureCookies(secure bool) LoginOption {
	return func(h *LoginHandlers) { h.secure = secure }
}

// WithCookieTTL bounds the access-token cookie lifetime.
func WithCookieTTL(ttl time.Duration) LoginOption {
	return func(h *LoginHandlers) {
		if ttl > 0 {
			h.cookieTTL = ttl
		}
	}
}

// WithLocalSigner re-mints the session cookie with a locally held key instead
// of storing the provider token, keeping IdP tokens off the browser.
func WithLocalSigner(signer *jwtkit.RSASigner, issuer string) LoginOption {
	return func(h *LoginHandlers) {
		h.localSigner = signer
		h.localIssuer = issuer
	}
}

// WithLoginLogger sets the logger.
func WithLoginLogger(l logrus.FieldLogger) LoginOption {
	return func(h *LoginHandlers) { h.log = l }
}

// NewLoginHandlers builds the login/callback pair.
func NewLoginHandlers(rp *oidckit.RelyingParty, validator TokenValidator, opts ...LoginOption) *LoginHandlers {
	h := &LoginHandlers{
		rp:        rp,
		validator: validator,
		cookieTTL: 30 * time.Minute,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount attaches the login routes under the given router group.
func (h *LoginHandlers) Mount(r gin.IRoutes) {
	r.GET("/redirect-login", h.RedirectLogin)
	r.GET("/callback", h.Callback)
}

// RedirectLogin sends the user to the provider's authorization page.
func (h *LoginHandlers) RedirectLogin(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/api", "", h.secure, true)
	c.Redirect(http.StatusTemporaryRedirect, h.rp.AuthURL(state))
}

// Callback exchanges the authorization code, validates the provider's access
// token, and issues the session cookie.
func (h *LoginHandlers) Callback(c *gin.Context) {
	expectedState, err := c.Cookie(stateCookie)
	if err != nil || expectedState == "" || c.Query("state") != expectedState {
		h.loginFailed(c, "Login request could not be verified.")
		return
	}
	code := c.Query("code")
	if code == "" {
		h.loginFailed(c, "Missing authorization code.")
		return
	}

	raw, err := h.rp.Exchange(c.Request.Context(), code)
	if err != nil {
		h.log.WithError(err).Error("authorization code exchange failed")
		h.loginFailed(c, "Failed to obtain access token from IdP.")
		return
	}
	vt, err := h.validator.Validate(c.Request.Context(), raw)
	if err != nil {
		h.log.WithError(err).Error("provider access token failed validation")
		h.loginFailed(c, "It seems you are not authorized to access this application.")
		return
	}
	// A subject without any role cannot use the application at all.
	if len(vt.Roles) == 0 {
		h.loginFailed(c, "You are not authorized to access this application.")
		return
	}

	cookieValue := raw
	if h.localSigner != nil {
		minted, err := jwtkit.Mint(c.Request.Context(), h.localSigner, jwtkit.MintOptions{
			Subject:  vt.Subject,
			Issuer:   h.localIssuer,
			Audience: h.localIssuer,
			Type:     jwtkit.TokenTypeUser,
			Scopes:   vt.Scopes,
			TTL:      h.cookieTTL,
		})
		if err != nil {
			h.log.WithError(err).Error("local session token minting failed")
			h.loginFailed(c, "Could not create a session.")
			return
		}
		cookieValue = minted
	}

	h.log.WithField("subject", vt.Subject).Info("user successfully logged in")
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(config.CookieName, cookieValue, int(h.cookieTTL.Seconds()), "/api", "", h.secure, true)
	c.SetCookie(stateCookie, "", -1, "/api", "", h.secure, true)
	c.Redirect(http.StatusTemporaryRedirect, "/")
}

func (h *LoginHandlers) loginFailed(c *gin.Context, msg string) {
	c.Redirect(http.StatusTemporaryRedirect, "/login?msg="+url.QueryEscape(msg))
}
