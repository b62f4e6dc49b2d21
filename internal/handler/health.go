package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe. It only proves the process is serving.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// ReadyHandler runs every registered check and answers 503 when any fails.
type ReadyHandler struct {
	Checks map[string]Check
}

// Ready is the readiness probe.
func (h *ReadyHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	report := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	return c.JSON(status, report)
}
