// Package httputil centralizes JSON response envelopes and domain error
// translation so every handler returns the same shapes.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "sovid/pkg/domain-errors"
)

// statusByCode maps domain error codes to HTTP statuses. Codes missing from
// the map fall through to 500.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeAlreadyRegistered: http.StatusConflict,
	dErrors.CodeDuplicateDID:      http.StatusConflict,
	dErrors.CodeInvalidTransition: http.StatusConflict,
	dErrors.CodeAlreadyResolved:   http.StatusConflict,
	dErrors.CodeNoOpAdjustment:    http.StatusUnprocessableEntity,
	dErrors.CodeInvalidCredential: http.StatusUnprocessableEntity,
	dErrors.CodeInvalidInput:      http.StatusBadRequest,
	dErrors.CodeBadRequest:        http.StatusBadRequest,
	dErrors.CodeNotFound:          http.StatusNotFound,
	dErrors.CodeForbidden:         http.StatusForbidden,
	dErrors.CodeUnauthorized:      http.StatusUnauthorized,
	dErrors.CodeAmbiguous:         http.StatusGatewayTimeout,
	dErrors.CodeStoreUnavailable:  http.StatusServiceUnavailable,
	dErrors.CodeInternal:          http.StatusInternalServerError,
}

// ToHTTPStatus resolves the HTTP status for a domain error code.
func ToHTTPStatus(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError renders a domain error as a JSON envelope. Internal errors omit
// the description so store details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.Description = dErrors.MessageOf(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON renders a success payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Decode parses a JSON request body into T, answering 400 on malformed input.
// Returns false when the response has already been written.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "malformed request body", "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	return req, true
}
