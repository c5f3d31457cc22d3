package middleware

import (
	"encoding/json"
	"net/http"

	"go-invoice/internal/model"
	"go-invoice/pkg/apierror"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeAPIError(w http.ResponseWriter, apiErr *apierror.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = jsonEncode(w, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}
