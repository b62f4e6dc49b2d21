package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/handler"
	"github.com/triagify/triagify-backend/internal/middleware"
)

// RegisterScreening registers the questionnaire and review endpoints. All
// routes require a valid JWT; role checks that depend on the route happen
// in the handlers.
func RegisterScreening(e *echo.Echo, s *handler.ScreeningHandler, q *handler.QuestionHandler, cfg config.Config, rdb *redis.Client) {
	g := e.Group("/api", middleware.JWTAuth(cfg.JWTSecret))
	cache := middleware.NewRedisCache(cfg.Cache, rdb)

	// ---- Patient ----
	g.POST("/screening/start", s.Start)
	g.GET("/screening/questions", q.ListForScreening,
		middleware.NewRedisCacheWithSkipper(cfg.Cache, rdb, screeningScoped))
	g.GET("/screening/:id/details", s.Details)
	g.POST("/screening/:id/answers", s.SubmitAnswers)
	g.GET("/patient/screenings", s.PatientHistory)
	g.POST("/screenings/:id/upload-exam", s.UploadExam, middleware.NewTokenBucket(cfg.UploadRateLimit, rdb))

	// ---- Doctor ----
	g.GET("/screenings/pending-review", s.PendingReview)
	g.GET("/screenings/reviewed-today-count", s.ReviewedTodayCount)
	g.PATCH("/screenings/:id/review", s.Review)
	g.GET("/screenings/:id", s.GetByID)

	// ---- Question catalog ----
	g.GET("/questions", q.List, cache)
	g.POST("/questions", q.Create)
	g.PATCH("/questions/:id", q.Update)
	g.DELETE("/questions/:id", q.Delete)
}

// screeningScoped reports whether the question list depends on a screening's
// assigned doctor, which reviews change without purging the cache.
func screeningScoped(c echo.Context) bool {
	return c.QueryParam("screeningId") != ""
}

// RegisterPatients registers the doctor's patient directory.
func RegisterPatients(e *echo.Echo, p *handler.PatientHandler, jwtSecret string) {
	g := e.Group("/api/patients", middleware.JWTAuth(jwtSecret))
	g.GET("", p.List)
	g.GET("/:id", p.Get)
}
