package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/repository"
)

const dbTimeout = 5 * time.Second

// dbCtx bounds the database calls of one request.
func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// requireRole answers 403 unless the caller has one of roles. It returns
// false when the response has already been written.
func requireRole(c echo.Context, roles ...model.Role) bool {
	role := middleware.Role(c)
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	_ = jsonError(c, http.StatusForbidden, "forbidden")
	return false
}

// storeError translates a repository error into a response. Unexpected
// errors are logged and reported as 500 with the generic message msg.
func storeError(c echo.Context, err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return jsonError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrInvalidTransition):
		return jsonError(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrConflict):
		return jsonError(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrUnknownQuestion), errors.Is(err, repository.ErrDuplicateAnswer):
		return jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrForbidden):
		return jsonError(c, http.StatusForbidden, "forbidden")
	}
	zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg(msg)
	return jsonError(c, http.StatusInternalServerError, msg)
}

// pageParam parses a positive integer query parameter, falling back to def.
func pageParam(c echo.Context, name string, def, max int) int {
	var n int
	if err := echo.QueryParamsBinder(c).Int(name, &n).BindError(); err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
