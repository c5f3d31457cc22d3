package handler

import (
	"net/http"

	"go-invoice/internal/model"
	"go-invoice/internal/service"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccessMessage(w, http.StatusCreated, "User registered successfully", resp, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccessMessage(w, http.StatusOK, "Login successful", resp, nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.service.Refresh(r.Context(), payload.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp, nil)
}

// Logout revokes the submitted refresh token. It does not require an access
// token so an expired session can still be closed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var payload model.RefreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &payload); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := h.service.Logout(r.Context(), payload.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"loggedOut": true}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}
