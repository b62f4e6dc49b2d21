package middleware // middleware holds the echo middleware shared by every route group

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/triagify/triagify-backend/internal/utils"
)

// Context keys written by JWTAuth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxClaims = "claims"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's identity into the request context. A request without a
// Bearer header is rejected with 403; a token that fails verification (bad
// signature, expired, malformed) is rejected with 401. Handlers read the
// caller through c.Get(CtxUserID), c.Get(CtxRole) and c.Get(CtxClaims).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no token provided"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if raw == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "no token provided"})
			}

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			// The role is trusted as issued; it is not re-read from the store.
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxRole, claims.Role)
			c.Set(CtxClaims, claims)
			return next(c)
		}
	}
}

// Claims returns the verified token claims, or nil outside JWTAuth.
func Claims(c echo.Context) *utils.Claims {
	cl, _ := c.Get(CtxClaims).(*utils.Claims)
	return cl
}
