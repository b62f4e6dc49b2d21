package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/queue"
	"github.com/triagify/triagify-backend/internal/repository"
)

// Review records a doctor's notes on a COMPLETED or already REVIEWED
// screening. A re-review replaces the earlier notes; the replaced values
// travel with the screening.reviewed event.
func (h *ScreeningHandler) Review(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	rec, err := h.Screenings.Review(ctx, repository.ReviewInput{
		ScreeningID:        c.Param("id"),
		DoctorID:           middleware.UserID(c),
		Notes:              strings.TrimSpace(req.DoctorNotes),
		RequireAssociation: h.Cfg.ReviewRequireAssociation,
	})
	if err != nil {
		return storeError(c, err, "review screening failed")
	}
	if err := h.Notifier.ScreeningReviewed(c.Request().Context(), queue.ReviewedEvent(rec)); err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("screening_id", rec.ScreeningID).Msg("publish review event failed")
	}

	d, err := h.Screenings.Detail(ctx, rec.ScreeningID)
	if err != nil {
		return storeError(c, err, "load screening failed")
	}
	return c.JSON(http.StatusOK, d)
}

// PendingReview lists COMPLETED screenings of the doctor's patients.
func (h *ScreeningHandler) PendingReview(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Screenings.PendingReview(ctx, middleware.UserID(c))
	if err != nil {
		return storeError(c, err, "list pending screenings failed")
	}
	return c.JSON(http.StatusOK, items)
}

// ReviewedTodayCount counts the caller's reviews since local midnight.
func (h *ScreeningHandler) ReviewedTodayCount(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	now := h.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	ctx, cancel := dbCtx(c)
	defer cancel()

	n, err := h.Screenings.CountReviewedSince(ctx, middleware.UserID(c), midnight)
	if err != nil {
		return storeError(c, err, "count reviews failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}

// GetByID returns the full screening to administrators, to the owning
// patient and to doctors assigned to it or associated with its patient.
// Everyone else gets 404.
func (h *ScreeningHandler) GetByID(c echo.Context) error {
	uid := middleware.UserID(c)

	ctx, cancel := dbCtx(c)
	defer cancel()

	d, err := h.Screenings.Detail(ctx, c.Param("id"))
	if err != nil {
		return storeError(c, err, "load screening failed")
	}

	visible := false
	switch middleware.Role(c) {
	case model.RoleAdmin:
		visible = true
	case model.RolePatient:
		visible = d.PatientID == uid
	case model.RoleDoctor:
		if d.DoctorID != nil && *d.DoctorID == uid {
			visible = true
		} else if visible, err = h.Associations.IsAssociated(ctx, uid, d.PatientID); err != nil {
			return storeError(c, err, "check association failed")
		}
	}
	if !visible {
		return jsonError(c, http.StatusNotFound, "screening not found")
	}
	return c.JSON(http.StatusOK, d)
}
