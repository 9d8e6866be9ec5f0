package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/orgs"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the error body every endpoint returns
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError writes an internal server error response (500)
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created)
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteServiceError maps a service-layer error to the right status code.
// Validation and plan-limit failures are client errors; authorization
// failures are forbidden; anything unrecognized stays an opaque 500 so
// internals never leak to clients.
func WriteServiceError(w http.ResponseWriter, err error) {
	var aggregate *orgs.AggregateError
	var insufficient *orgs.InsufficientPermissionError
	var autoscale *orgs.AutoscaleDisabledError
	var gateway *billing.GatewayError

	switch {
	case orgs.IsNotFound(err):
		WriteNotFound(w, err.Error())
	case errors.As(err, &insufficient):
		WriteForbidden(w, err.Error())
	case errors.As(err, &aggregate):
		details := make([]string, 0, len(aggregate.Errs))
		for _, e := range aggregate.Errs {
			details = append(details, e.Error())
		}
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: aggregate.Message, Details: details})
	case orgs.IsBadRequest(err), orgs.IsPlanLimit(err), errors.As(err, &autoscale):
		WriteBadRequest(w, err.Error())
	case errors.As(err, &gateway):
		WriteErrorMessage(w, http.StatusBadGateway, err.Error())
	default:
		WriteInternalError(w)
	}
}
