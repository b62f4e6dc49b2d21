package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/middleware"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/utils"
)

// ProfileHandler serves the authenticated user's own account.
type ProfileHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewProfileHandler(cfg config.Config, u UserStore, t TokenStore) *ProfileHandler {
	return &ProfileHandler{Cfg: cfg, Users: u, Tokens: t}
}

type updateProfileReq struct {
	FullName  *string `json:"fullName"`
	Specialty *string `json:"specialty"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Me returns the caller's profile.
func (h *ProfileHandler) Me(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		return storeError(c, err, "load profile failed")
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateMe changes the caller's display name and, for doctors, specialty.
func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	var req updateProfileReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	if req.FullName == nil && req.Specialty == nil {
		return jsonError(c, http.StatusBadRequest, "nothing to update")
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return jsonError(c, http.StatusBadRequest, "fullName cannot be empty")
		}
		req.FullName = &name
	}
	if req.Specialty != nil {
		if middleware.Role(c) != model.RoleDoctor {
			return jsonError(c, http.StatusBadRequest, "only doctors have a specialty")
		}
		s := strings.TrimSpace(*req.Specialty)
		req.Specialty = &s
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, middleware.UserID(c), req.FullName, req.Specialty)
	if err != nil {
		return storeError(c, err, "update profile failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "profile updated", "user": u})
}

// ChangePassword re-verifies the current password before storing the new
// one, then revokes every refresh token of the caller.
func (h *ProfileHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return jsonError(c, http.StatusBadRequest, "currentPassword and newPassword are required")
	}
	if err := utils.CheckPasswordPolicy(req.NewPassword); err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	uid := middleware.UserID(c)

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return storeError(c, err, "load profile failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return jsonError(c, http.StatusUnauthorized, "current password is incorrect")
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "hash password failed")
	}
	if err := h.Users.UpdatePassword(ctx, uid, hash); err != nil {
		return storeError(c, err, "update password failed")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("user_id", uid).Msg("revoke sessions failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}
