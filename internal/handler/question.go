package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
)

// QuestionHandler serves the question catalog.
type QuestionHandler struct {
	Questions  QuestionStore
	Screenings ScreeningStore

	// InvalidateCatalog drops cached catalog responses after a mutation.
	// It may be nil when caching is disabled.
	InvalidateCatalog func(ctx context.Context) error
}

// List returns the global questions plus the caller's own.
func (h *QuestionHandler) List(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	qs, err := h.Questions.ListVisible(ctx, middleware.UserID(c))
	if err != nil {
		return storeError(c, err, "list questions failed")
	}
	return c.JSON(http.StatusOK, qs)
}

// ListForScreening is List for the questionnaire page. With ?screeningId=
// naming one of the caller's screenings, the private questions of the
// doctor assigned to that screening are included too.
func (h *QuestionHandler) ListForScreening(c echo.Context) error {
	uid := middleware.UserID(c)
	creators := []string{uid}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if sid := strings.TrimSpace(c.QueryParam("screeningId")); sid != "" {
		s, err := h.Screenings.GetOwned(ctx, sid, uid)
		if err != nil {
			return storeError(c, err, "load screening failed")
		}
		if s.DoctorID != nil {
			creators = append(creators, *s.DoctorID)
		}
	}

	qs, err := h.Questions.ListVisible(ctx, creators...)
	if err != nil {
		return storeError(c, err, "list questions failed")
	}
	return c.JSON(http.StatusOK, qs)
}

// Create adds a private question owned by the calling doctor.
func (h *QuestionHandler) Create(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	in, ok := h.bindQuestion(c)
	if !ok {
		return nil
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	q, err := h.Questions.Create(ctx, middleware.UserID(c), in)
	if err != nil {
		return storeError(c, err, "create question failed")
	}
	h.invalidate(c)
	return c.JSON(http.StatusCreated, q)
}

// Update edits one of the caller's questions. Questions of other users and
// global questions are reported as not found.
func (h *QuestionHandler) Update(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	in, ok := h.bindQuestion(c)
	if !ok {
		return nil
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	q, err := h.Questions.Update(ctx, c.Param("id"), middleware.UserID(c), in)
	if err != nil {
		return storeError(c, err, "update question failed")
	}
	h.invalidate(c)
	return c.JSON(http.StatusOK, q)
}

// Delete removes one of the caller's questions together with its answers.
func (h *QuestionHandler) Delete(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Questions.Delete(ctx, c.Param("id"), middleware.UserID(c)); err != nil {
		return storeError(c, err, "delete question failed")
	}
	h.invalidate(c)
	return c.NoContent(http.StatusNoContent)
}

// bindQuestion reads and normalises a question body. On failure the 400
// response has been written and ok is false.
func (h *QuestionHandler) bindQuestion(c echo.Context) (model.QuestionInput, bool) {
	var req model.QuestionInput
	if err := c.Bind(&req); err != nil {
		_ = jsonError(c, http.StatusBadRequest, "invalid body")
		return req, false
	}
	in, err := req.Normalize()
	if err != nil {
		_ = jsonError(c, http.StatusBadRequest, err.Error())
		return in, false
	}
	return in, true
}

func (h *QuestionHandler) invalidate(c echo.Context) {
	if h.InvalidateCatalog == nil {
		return
	}
	if err := h.InvalidateCatalog(c.Request().Context()); err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg("purge catalog cache failed")
	}
}
