package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/handlers/render"
	"github.com/sonht113/recipebook/internal/handlers/userctx"
	"github.com/sonht113/recipebook/internal/logger"
	"github.com/sonht113/recipebook/internal/models"
)

// Auth service
type AuthService interface {
	// Register user
	// Has to return apperrors.ErrUserAlreadyExists if email is taken
	Register(ctx context.Context, email string, name string, password string) (models.User, models.TokenPair, error)

	// Login user
	// Has to return apperrors.ErrInvalidCredentials for unknown email and
	// wrong password alike
	Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error)

	// Rotate refresh token and issue a new pair
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found: has to return apperrors.ErrRefreshTokenNotFound
	Refresh(ctx context.Context, refresh string) (models.User, models.TokenPair, error)

	// Revoke one refresh token, or all of them when refresh is empty
	Logout(ctx context.Context, userID uuid.UUID, refresh string) error

	// Verify current password, replace the hash, revoke every session
	ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string) error

	// Load user record for the authenticated principal
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)
}

type AuthHandler struct {
	auth   AuthService
	logger logger.Logger
}

func NewAuth(auth AuthService, logger logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type tokenPairResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func newTokenPairResponse(user models.User, pair models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		User: userResponse{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			CreatedAt: user.CreatedAt,
		},
		AccessToken:  pair.Access.Value,
		RefreshToken: pair.Refresh.Value,
	}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Name     string `json:"name" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,min=6"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.auth.Register(r.Context(), data.Email, data.Name, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with this email already exists", http.StatusConflict)
		default:
			h.logger.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSONWithStatus(w, newTokenPairResponse(user, pair), http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.auth.Login(r.Context(), data.Email, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
		default:
			h.logger.Error("Failed to login user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, newTokenPairResponse(user, pair))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.auth.Refresh(r.Context(), data.RefreshToken)
	if err != nil {
		// Expired and unknown tokens answer identically: refresh failure
		// means the session is over, the client must login again
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenExpired),
			errors.Is(err, apperrors.ErrRefreshTokenNotFound):
			h.logger.Debug("Refresh rejected", "error", err)
			render.ServiceError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		default:
			h.logger.Error("Failed to refresh tokens", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, newTokenPairResponse(user, pair))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutRequest struct {
		// Revoke this session only; all sessions when omitted
		RefreshToken string `json:"refreshToken"`
	}
	type LogoutResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[LogoutRequest](w, r)
	if err != nil {
		return
	}

	principal, _ := userctx.FromContext(r.Context())

	if err := h.auth.Logout(r.Context(), principal.UserID, data.RefreshToken); err != nil {
		h.logger.Error("Failed to logout user", "error", err, "user_id", principal.UserID)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, LogoutResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	type ChangePasswordRequest struct {
		CurrentPassword string `json:"currentPassword" validate:"required"`
		NewPassword     string `json:"newPassword" validate:"required,min=6"`
	}
	type ChangePasswordResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[ChangePasswordRequest](w, r)
	if err != nil {
		return
	}

	principal, _ := userctx.FromContext(r.Context())

	err = h.auth.ChangePassword(r.Context(), principal.UserID, data.CurrentPassword, data.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Current password is incorrect", http.StatusUnauthorized)
		default:
			h.logger.Error("Failed to change password", "error", err, "user_id", principal.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, ChangePasswordResponse{Message: "Password changed successfully. Please login again."})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	principal, _ := userctx.FromContext(r.Context())

	user, err := h.auth.GetUser(r.Context(), principal.UserID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			h.logger.Error("Failed to load user", "error", err, "user_id", principal.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
	})
}
