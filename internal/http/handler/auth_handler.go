package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/priazovimpact/auth-service/internal/http/response"
	"github.com/priazovimpact/auth-service/internal/observability"
	"github.com/priazovimpact/auth-service/internal/service"
)

type AuthHandler struct {
	auth service.AuthServiceInterface
}

func NewAuthHandler(auth service.AuthServiceInterface) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", "email and password are required")
		return
	}
	pair, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, r, err, "email and password are required")
		return
	}
	observability.Audit(r, "auth.login")
	response.JSON(w, r, http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", "refresh_token is required")
		return
	}
	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(w, r, err, "refresh_token is required")
		return
	}
	observability.Audit(r, "auth.refresh")
	response.JSON(w, r, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", "refresh_token is required")
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		writeAuthError(w, r, err, "refresh_token is required")
		return
	}
	observability.Audit(r, "auth.logout")
	response.NoContent(w)
}

// writeAuthError maps the service taxonomy to status codes. Every
// unauthenticated sub-cause produces the identical 401 body.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error, invalidInputMsg string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		response.Error(w, r, http.StatusBadRequest, "INVALID_INPUT", invalidInputMsg)
	case errors.Is(err, service.ErrUnauthenticated):
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication failed")
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
