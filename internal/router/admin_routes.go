package router

import (
	"github.com/labstack/echo/v4"

	"github.com/triagify/triagify-backend/internal/handler"
	"github.com/triagify/triagify-backend/internal/middleware"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /api/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/api/admin", middleware.AdminOnly(jwtSecret)...)

	// ---- Users ----
	g.GET("/users", a.ListUsers)
	g.DELETE("/users/:id", a.DeleteUser)
	g.GET("/users/:id/screenings", a.UserScreenings)
	g.GET("/patients/:id", a.PatientDetail)

	// ---- Screenings ----
	g.POST("/create-screening", a.CreateScreening)
	g.DELETE("/screenings/:id", a.DeleteScreening)

	// ---- Associations ----
	g.GET("/associations", a.ListAssociations)
	g.POST("/associate", a.Associate)
	g.POST("/disassociate", a.Disassociate)
}
