package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/storyloom/storyloom/pkg/api"
)

// HTTPStatusFromError maps an api.Error type to the corresponding HTTP
// status code. Scope, context, and validation errors are client-visible
// consistency problems (422); capability errors report a failing backend
// (502).
func HTTPStatusFromError(err *api.Error) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeConflict:
		return http.StatusConflict
	case api.ErrorTypeScope, api.ErrorTypeContext, api.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case api.ErrorTypeCapability:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError serializes err as a JSON error response. Errors that are not
// api.Error values are reported as opaque server errors so internal
// details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError("internal server error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatusFromError(apiErr))
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteJSON serializes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
