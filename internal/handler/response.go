package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-invoice/internal/middleware"
	"go-invoice/internal/model"
	"go-invoice/pkg/apierror"
)

const maxJSONBody = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	writeSuccessMessage(w, status, "", data, meta)
}

func writeSuccessMessage(w http.ResponseWriter, status int, message string, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "User already exists"
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrUnauthorized) {
		status = http.StatusUnauthorized
		body.Code = "MISSING_CREDENTIAL"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrTokenExpired) {
		status = http.StatusUnauthorized
		body.Code = "INVALID_CREDENTIAL"
		body.Message = "Invalid or expired token"
	} else if errors.Is(err, model.ErrProductNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Product not found"
	} else if errors.Is(err, model.ErrInvoiceEmpty) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Products data is required"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else {
		slog.Error("unhandled error in writeError",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}

// identity returns the authenticated caller or writes a 401.
func identity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" {
		writeError(w, r, model.ErrUnauthorized)
		return model.Identity{}, false
	}
	return id, true
}
