package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/queue"
	"github.com/triagify/triagify-backend/internal/repository"
)

const adminSearchLimit = 20

// AdminHandler serves /api/admin. Every route is behind AdminOnly.
type AdminHandler struct {
	Users        UserStore
	Screenings   ScreeningStore
	Associations AssociationStore
	Notifier     queue.Publisher
}

type pairReq struct {
	DoctorID  string `json:"doctorId"`
	PatientID string `json:"patientId"`
}

func (r *pairReq) trim() bool {
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.PatientID = strings.TrimSpace(r.PatientID)
	return r.DoctorID != "" && r.PatientID != ""
}

// ListUsers searches doctors and patients by ?role= and ?search=.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	users, err := h.Users.Search(ctx, repository.UserFilter{
		Role:   model.Role(strings.ToUpper(strings.TrimSpace(c.QueryParam("role")))),
		Search: c.QueryParam("search"),
		Limit:  adminSearchLimit,
	})
	if err != nil {
		return storeError(c, err, "list users failed")
	}
	return c.JSON(http.StatusOK, users)
}

// DeleteUser removes a user and everything that references it.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id := c.Param("id")
	if id == middleware.UserID(c) {
		return jsonError(c, http.StatusBadRequest, "administrators cannot delete their own account")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		return storeError(c, err, "delete user failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// UserScreenings lists the screenings a user owns or was assigned.
func (h *AdminHandler) UserScreenings(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Screenings.ListForUser(ctx, c.Param("id"))
	if err != nil {
		return storeError(c, err, "list screenings failed")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) DeleteScreening(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Screenings.Delete(ctx, c.Param("id")); err != nil {
		return storeError(c, err, "delete screening failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateScreening opens a PENDING screening for a patient, assigned to a
// doctor, and notifies the patient once.
func (h *AdminHandler) CreateScreening(c echo.Context) error {
	var req pairReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	if !req.trim() {
		return jsonError(c, http.StatusBadRequest, "patientId and doctorId are required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	patient, err := h.Users.GetByIDAndRole(ctx, req.PatientID, model.RolePatient)
	if errors.Is(err, repository.ErrUserNotFound) {
		return jsonError(c, http.StatusNotFound, "patient not found")
	} else if err != nil {
		return storeError(c, err, "load patient failed")
	}
	doctor, err := h.Users.GetByIDAndRole(ctx, req.DoctorID, model.RoleDoctor)
	if errors.Is(err, repository.ErrUserNotFound) {
		return jsonError(c, http.StatusNotFound, "doctor not found")
	} else if err != nil {
		return storeError(c, err, "load doctor failed")
	}

	s, err := h.Screenings.Create(ctx, patient.ID, &doctor.ID)
	if err != nil {
		return storeError(c, err, "create screening failed")
	}
	if err := h.Notifier.ScreeningAssigned(c.Request().Context(), queue.AssignedEvent(s, patient, doctor)); err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("screening_id", s.ID).Msg("notify patient failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":     fmt.Sprintf("screening created and notification sent to %s", patient.FullName),
		"screeningId": s.ID,
	})
}

// ListAssociations lists every doctor-patient link.
func (h *AdminHandler) ListAssociations(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	list, err := h.Associations.List(ctx)
	if err != nil {
		return storeError(c, err, "list associations failed")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) Associate(c echo.Context) error {
	var req pairReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	if !req.trim() {
		return jsonError(c, http.StatusBadRequest, "doctorId and patientId are required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	a, err := h.Associations.Associate(ctx, req.DoctorID, req.PatientID, middleware.UserID(c))
	if err != nil {
		return storeError(c, err, "associate failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "doctor associated with patient", "association": a})
}

func (h *AdminHandler) Disassociate(c echo.Context) error {
	var req pairReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	if !req.trim() {
		return jsonError(c, http.StatusBadRequest, "doctorId and patientId are required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Associations.Disassociate(ctx, req.DoctorID, req.PatientID); err != nil {
		return storeError(c, err, "disassociate failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "association removed"})
}

// PatientDetail returns a patient with the associated doctors and the full
// screening history.
func (h *AdminHandler) PatientDetail(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByIDAndRole(ctx, c.Param("id"), model.RolePatient)
	if errors.Is(err, repository.ErrUserNotFound) {
		return jsonError(c, http.StatusNotFound, "patient not found")
	} else if err != nil {
		return storeError(c, err, "load patient failed")
	}
	doctors, err := h.Associations.DoctorsForPatient(ctx, u.ID)
	if err != nil {
		return storeError(c, err, "load doctors failed")
	}
	screenings, err := h.Screenings.ListByPatient(ctx, u.ID)
	if err != nil {
		return storeError(c, err, "load screenings failed")
	}
	return c.JSON(http.StatusOK, model.PatientDetail{
		UserSummary:       u.Summary(),
		AssociatedDoctors: doctors,
		Screenings:        screenings,
	})
}
