package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openpermissions/authd/internal/directory"
	"github.com/openpermissions/authd/internal/grant"
	"github.com/openpermissions/authd/internal/scope"
	"github.com/openpermissions/authd/internal/token"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func errorBody(message string) map[string]any {
	return map[string]any{"status": http.StatusBadRequest, "error": message}
}

// issuanceStatusFor maps a grant.GenerateToken error to /token's HTTP
// status, per spec.md §7's error propagation table: invalid_grant_type,
// invalid_scope, bad_request and token_invalid (on the assertion) all
// surface as 400; unauthorized surfaces as 403.
func issuanceStatusFor(err error) int {
	if errors.Is(err, grant.ErrUnauthorized) || errors.Is(err, scope.ErrUnauthorized) {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

// issuanceMessageFor names the error kind reported in /token's 400/403
// response bodies.
func issuanceMessageFor(err error) string {
	switch {
	case errors.Is(err, grant.ErrInvalidGrantType):
		return "invalid_grant"
	case errors.Is(err, scope.ErrInvalidScope):
		return "invalid_scope"
	case errors.Is(err, token.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, grant.ErrUnauthorized), errors.Is(err, scope.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, directory.ErrNotFound):
		return "invalid_scope"
	default:
		return "bad_request"
	}
}
