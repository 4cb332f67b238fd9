package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/linkvault/pkg/linkvault"
)

// ErrorResponse is the response body for a failed request
type ErrorResponse struct {
	Error            string `json:"error"`
	RequiresPassword bool   `json:"requires_password,omitempty"`
}

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, linkvault.ErrInvalidInput), errors.Is(err, linkvault.ErrKindMismatch):
		return http.StatusBadRequest
	case errors.Is(err, linkvault.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, linkvault.ErrExpired), errors.Is(err, linkvault.ErrViewLimitExceeded):
		return http.StatusGone
	case errors.Is(err, linkvault.ErrPasswordRequired), errors.Is(err, linkvault.ErrPasswordMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, linkvault.ErrPayloadTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	switch {
	case status == http.StatusInternalServerError:
		h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "internal server error"
	case status == http.StatusRequestEntityTooLarge:
		resp.Error = linkvault.ErrPayloadTooLarge.Error()
	case status == http.StatusUnauthorized:
		resp.RequiresPassword = true
	}
	if status != http.StatusInternalServerError {
		h.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
