package middleware // middleware contains the echo middleware of the API

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resource-api/internal/logging"
	"github.com/iliyamo/resource-api/internal/service"
	"github.com/iliyamo/resource-api/internal/utils"
)

// Authenticator validates a bearer token.  *service.AuthService implements
// it; only tokens that are correctly signed, unexpired and backed by an
// active session pass.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*utils.Claims, error)
}

// BearerToken extracts the raw token from the Authorization header.
func BearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// BearerAuth rejects requests without a valid bearer token before the
// wrapped handler runs, and stores the claims in the echo context for the
// handlers and for RequireRole.  A failure to look the token up answers
// 500, not 401.
func BearerAuth(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "missing bearer token"})
			}
			ctx := c.Request().Context()
			claims, err := a.Authenticate(ctx, raw)
			if err != nil {
				if service.KindOf(err) == service.KindInternal {
					logging.FromContext(ctx).Error("authenticate_failed", "error", err)
					return c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "internal error"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "invalid or revoked token"})
			}
			setIdentity(c, claims)
			return next(c)
		}
	}
}
