package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/mailer"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/repository"
	"github.com/triagify/triagify-backend/internal/utils"
)

// AuthHandler bundles dependencies for the public credential endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Mailer mailer.Mailer
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, m mailer.Mailer) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Mailer: m}
}

// ----- DTOs -----

type registerReq struct {
	FullName  string  `json:"fullName"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Role      string  `json:"role"` // PATIENT | DOCTOR
	Specialty *string `json:"specialty"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type forgotReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type tokenResp struct {
	Message      string            `json:"message,omitempty"`
	Token        string            `json:"token"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	RefreshToken string            `json:"refreshToken"`
	User         model.UserSummary `json:"user"`
}

const forgotPasswordReply = "if the email is registered, a password reset link has been sent"

// Register creates a PATIENT or DOCTOR account. Administrators cannot be
// self-registered.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		return jsonError(c, http.StatusBadRequest, "fullName, email and password are required")
	}
	if err := utils.CheckPasswordPolicy(req.Password); err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return jsonError(c, http.StatusBadRequest, "role must be PATIENT or DOCTOR")
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "hash password failed")
	}
	u := model.User{Email: req.Email, PasswordHash: hash, FullName: req.FullName, Role: role}
	if role == model.RoleDoctor && req.Specialty != nil {
		if s := strings.TrimSpace(*req.Specialty); s != "" {
			u.Specialty = &s
		}
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return jsonError(c, http.StatusConflict, "email already exists")
		}
		return storeError(c, err, "create user failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "user registered", "userId": u.ID})
}

// Login verifies credentials and returns an access token plus a refresh
// token. Unknown email and wrong password produce the same answer.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "email and password are required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return jsonError(c, http.StatusUnauthorized, "invalid credentials")
		}
		return storeError(c, err, "query failed")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return jsonError(c, http.StatusUnauthorized, "invalid credentials")
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return storeError(c, err, "issue tokens failed")
	}
	resp.Message = "login successful"
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return jsonError(c, http.StatusBadRequest, "refreshToken required")
	}
	hash := utils.HashToken(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := dbCtx(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRefreshToken) {
			return jsonError(c, http.StatusUnauthorized, "invalid refresh token")
		}
		return storeError(c, err, "validate refresh failed")
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return storeError(c, err, "revoke refresh failed")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return jsonError(c, http.StatusUnauthorized, "invalid refresh token")
		}
		return storeError(c, err, "load user failed")
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return storeError(c, err, "issue tokens failed")
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented refresh token. Revoking an unknown token is
// not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return jsonError(c, http.StatusBadRequest, "refreshToken required")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	if err := h.Tokens.RevokeByHash(ctx, utils.HashToken(strings.TrimSpace(req.RefreshToken))); err != nil {
		return storeError(c, err, "revoke refresh failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// ForgotPassword answers identically whether or not the email belongs to
// an account. For a known account a single-use token is stored (hashed)
// and the raw token is mailed as a reset link.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return jsonError(c, http.StatusBadRequest, "email is required")
	}
	log := zerolog.Ctx(c.Request().Context())

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusOK, echo.Map{"message": forgotPasswordReply})
	case err != nil:
		return storeError(c, err, "query failed")
	}

	tok, err := utils.NewResetToken(h.Cfg.ResetTokenTTL)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "issue reset token failed")
	}
	if err := h.Users.SetResetToken(ctx, u.ID, tok.Hash, tok.Exp); err != nil {
		return storeError(c, err, "save reset token failed")
	}

	msg := mailer.PasswordResetMessage(u.Email, u.FullName, mailer.ResetURL(h.Cfg.FrontendURL, tok.Raw))
	if err := h.Mailer.Send(c.Request().Context(), msg); err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("send reset mail failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": forgotPasswordReply})
}

// ResetPassword consumes a reset token and sets a new password. All of the
// user's refresh tokens are revoked afterwards.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid body")
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" || req.NewPassword == "" {
		return jsonError(c, http.StatusBadRequest, "token and newPassword are required")
	}
	if err := utils.CheckPasswordPolicy(req.NewPassword); err != nil {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "hash password failed")
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	userID, err := h.Users.ResetPassword(ctx, utils.HashToken(req.Token), hash, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrInvalidResetToken) {
			return jsonError(c, http.StatusBadRequest, err.Error())
		}
		return storeError(c, err, "reset password failed")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Str("user_id", userID).Msg("revoke sessions failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password has been reset"})
}

// issue signs an access token for u and stores a fresh refresh token.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (tokenResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, utils.Identity{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		FullName: u.FullName,
	}, h.Cfg.AccessTTLMin)
	if err != nil {
		return tokenResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return tokenResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return tokenResp{}, err
	}
	return tokenResp{
		Token:        access.Token,
		ExpiresAt:    access.Exp,
		RefreshToken: refresh.Raw,
		User:         u.Summary(),
	}, nil
}
