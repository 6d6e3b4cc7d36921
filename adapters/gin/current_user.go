package authgin

import (
	"github.com/gin-gonic/gin"
)

// UserView is a handler-facing snapshot of the authenticated caller.
type UserView struct {
	Subject string   `json:"subject"`
	Scopes  []string `json:"scopes,omitempty"`
	Roles   []string `json:"roles,omitempty"`

	// Source is "claims" when a validated token backs the view, "none" for
	// unauthenticated requests.
	Source string `json:"source"`
}

// CurrentUser returns the caller snapshot derived from the validated token.
func CurrentUser(c *gin.Context) (UserView, bool) {
	if vt, ok := TokenFromGin(c); ok && vt.Subject != "" {
		return UserView{
			Subject: vt.Subject,
			Scopes:  vt.Scopes,
			Roles:   vt.Roles,
			Source:  "claims",
		}, true
	}
	return UserView{Source: "none"}, false
}
