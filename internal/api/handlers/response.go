// Package handlers implements the HTTP handlers for the logtower API.
package handlers

import (
	"net/http"

	apierrors "github.com/logtower/logtower/internal/api/errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteBadRequest writes a 400 response with a validation error body.
func WriteBadRequest(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewValidationError(message))
}

// WriteNotFound writes a 404 response.
func WriteNotFound(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewNotFoundError(message))
}

// WriteInternalError writes a 500 response.
func WriteInternalError(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewInternalError(message))
}
