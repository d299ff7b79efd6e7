package common

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the canonical error payload shape.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONData wraps v in the {"data": ...} envelope.
func JSONData(w http.ResponseWriter, status int, v any) {
	JSON(w, status, map[string]any{"data": v})
}

// JSONError renders an error response using the canonical error shape.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{Code: code, Message: message, Details: details},
	})
}

// RespondError maps an error to the canonical shape, using AppError metadata
// when present and a generic 500 otherwise.
func RespondError(w http.ResponseWriter, err error) {
	if appErr, ok := AsAppError(err); ok {
		JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
