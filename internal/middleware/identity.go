package middleware

// identity.go holds the helpers that read the authenticated caller back out
// of the echo context. Rate limit and cache keys fall back to "anon" when no
// user is authenticated.

import (
	"github.com/labstack/echo/v4"

	"github.com/triagify/triagify-backend/internal/model"
)

// UserID returns the authenticated user's id, or "" when JWTAuth did not run.
func UserID(c echo.Context) string {
	if s, ok := c.Get(CtxUserID).(string); ok {
		return s
	}
	return ""
}

// Role returns the authenticated user's role, or "" when JWTAuth did not run.
func Role(c echo.Context) model.Role {
	if s, ok := c.Get(CtxRole).(string); ok {
		return model.Role(s)
	}
	return ""
}

func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
