package middleware

// identity.go holds the helpers that read the caller stored by JWTAuth.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-rideshare/internal/model"
)

const principalKey = "principal"

// PrincipalFrom returns the authenticated caller of the request.  ok is
// false on routes not behind JWTAuth.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok && p.ID != ""
}

// userID returns the caller id, or "anon" for unauthenticated requests.
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return p.ID
	}
	return "anon"
}
