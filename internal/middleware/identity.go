package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-api/internal/utils"
)

// Context keys set by BearerAuth.
const (
	claimsKey = "claims"
	userIDKey = "user_id"
	roleKey   = "role"
)

func setIdentity(c echo.Context, claims *utils.Claims) {
	c.Set(claimsKey, claims)
	c.Set(userIDKey, claims.Subject)
	c.Set(roleKey, claims.Role)
}

// ClaimsFrom returns the claims of the authenticated caller, if any.
func ClaimsFrom(c echo.Context) (*utils.Claims, bool) {
	cl, ok := c.Get(claimsKey).(*utils.Claims)
	return cl, ok && cl != nil
}

// userID returns the subject of the caller or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
