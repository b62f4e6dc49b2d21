package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/handler"
	"github.com/triagify/triagify-backend/internal/middleware"
)

// maxBody caps request bodies; exam files are checked against a smaller
// limit in the handler.
const maxBody = "12M"

// New creates the Echo instance with the global middleware chain.
func New(logger zerolog.Logger, cfg config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit(maxBody))
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", ready.Ready)
}

// RegisterAuth registers the public credential endpoints behind the auth
// rate limiter, and the caller's own profile under /api/profile.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, p *handler.ProfileHandler, cfg config.Config, rdb *redis.Client) {
	limit := middleware.NewTokenBucket(cfg.AuthRateLimit, rdb)

	e.POST("/register", a.Register, limit)
	e.POST("/login", a.Login, limit)
	e.POST("/refresh", a.Refresh, limit)
	e.POST("/logout", a.Logout, limit)
	e.POST("/forgot-password", a.ForgotPassword, limit)
	e.POST("/reset-password", a.ResetPassword, limit)

	me := e.Group("/api/profile", middleware.JWTAuth(cfg.JWTSecret))
	me.GET("/me", p.Me)
	me.PATCH("/me", p.UpdateMe)
	me.POST("/change-password", p.ChangePassword)
}
