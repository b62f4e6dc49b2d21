package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/triagify/triagify-backend/internal/model"
)

// RequireRole returns a middleware that lets the request through only when
// the role stored by JWTAuth is one of roles. Anything else, including a
// missing role, is answered with 403 Forbidden.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(string)
			if !ok || !allowed[model.Role(role)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// AdminOnly chains JWTAuth with an ADMIN role gate.
func AdminOnly(secret string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{JWTAuth(secret), RequireRole(model.RoleAdmin)}
}
