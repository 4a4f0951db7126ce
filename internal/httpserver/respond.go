package httpserver

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON envelope returned for non-2xx responses that
// are not field-validation failures (see ValidationErrorResponse for those).
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Respond writes v as a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes an ErrorResponse with the given status code, error
// code, and message.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	Respond(w, status, ErrorResponse{Error: code, Message: message})
}
