package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PatientHandler lets doctors browse the patients associated with them.
type PatientHandler struct {
	Users        UserStore
	Associations AssociationStore
}

type pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

type patientPage struct {
	Data       []model.UserSummary `json:"data"`
	Pagination pagination          `json:"pagination"`
}

// List pages through the caller's patients, optionally filtered by ?search=.
func (h *PatientHandler) List(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	page := pageParam(c, "page", 1, 0)
	size := pageParam(c, "pageSize", defaultPageSize, maxPageSize)

	ctx, cancel := dbCtx(c)
	defer cancel()

	data, total, err := h.Associations.ListPatients(ctx, repository.PatientQuery{
		DoctorID: middleware.UserID(c),
		Search:   c.QueryParam("search"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		return storeError(c, err, "list patients failed")
	}
	return c.JSON(http.StatusOK, patientPage{
		Data: data,
		Pagination: pagination{
			Total:      total,
			Page:       page,
			PageSize:   size,
			TotalPages: (total + size - 1) / size,
		},
	})
}

// Get returns one patient, only when associated with the calling doctor.
func (h *PatientHandler) Get(c echo.Context) error {
	if !requireRole(c, model.RoleDoctor) {
		return nil
	}
	patientID := c.Param("id")

	ctx, cancel := dbCtx(c)
	defer cancel()

	ok, err := h.Associations.IsAssociated(ctx, middleware.UserID(c), patientID)
	if err != nil {
		return storeError(c, err, "check association failed")
	}
	if !ok {
		return jsonError(c, http.StatusNotFound, "patient not found")
	}
	u, err := h.Users.GetByIDAndRole(ctx, patientID, model.RolePatient)
	if err != nil {
		return storeError(c, err, "load patient failed")
	}
	return c.JSON(http.StatusOK, u.Summary())
}
