package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/priazovimpact/auth-service/internal/http/response"
	"github.com/priazovimpact/auth-service/internal/observability"
	"github.com/priazovimpact/auth-service/internal/repository"
	"github.com/priazovimpact/auth-service/internal/service"
)

type PasswordHandler struct {
	resets service.PasswordResetServiceInterface
}

func NewPasswordHandler(resets service.PasswordResetServiceInterface) *PasswordHandler {
	return &PasswordHandler{resets: resets}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Forgot always answers 200 for a well-formed request; whether the email
// is registered must not be observable.
func (h *PasswordHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", "email is required")
		return
	}
	if err := h.resets.Request(r.Context(), req.Email); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", "email is required")
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	observability.Audit(r, "password.forgot")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PasswordHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", "token and new_password are required")
		return
	}
	if err := h.resets.Reset(r.Context(), req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", "token and new_password are required")
		case errors.Is(err, service.ErrResetTokenInvalid):
			response.Error(w, r, http.StatusBadRequest, "RESET_TOKEN_INVALID", "invalid or expired reset token")
		case errors.Is(err, service.ErrSamePassword):
			response.Error(w, r, http.StatusBadRequest, "SAME_PASSWORD", "new password must differ from the previous one")
		case errors.Is(err, repository.ErrPrincipalNotFound):
			response.Error(w, r, http.StatusNotFound, "PRINCIPAL_NOT_FOUND", "principal not found")
		default:
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		}
		return
	}
	observability.Audit(r, "password.reset")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password changed"})
}
