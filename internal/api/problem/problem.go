// Package problem writes error responses. Domain errors are mapped to
// status codes in one place so handlers stay free of taxonomy.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatherline/server/internal/api/pagination"
	"github.com/gatherline/server/internal/domain/attendance"
	"github.com/gatherline/server/internal/domain/events"
	"github.com/gatherline/server/internal/domain/users"
)

type Response struct {
	Status           int               `json:"status"`
	Error            string            `json:"error"`
	Message          string            `json:"message"`
	Path             string            `json:"path"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

// Write emits an error response with the given status and message.
func Write(w http.ResponseWriter, r *http.Request, status int, message string) {
	write(w, r, status, message, nil, nil)
}

// WriteValidation emits a 400 with per-field rejection reasons.
func WriteValidation(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	write(w, r, http.StatusBadRequest, "Validation failed", fields, nil)
}

// WriteError maps a domain error to its response. Anything unmapped is
// a 500 with a generic message; the cause goes to the log, never to
// the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		eventsValidation *events.ValidationError
		usersValidation  *users.ValidationError
		filterErr        events.FilterError
		pageErr          pagination.Error
	)
	switch {
	case errors.As(err, &eventsValidation):
		write(w, r, http.StatusBadRequest, "Validation failed", eventsValidation.Fields, err)
	case errors.As(err, &usersValidation):
		write(w, r, http.StatusBadRequest, "Validation failed", usersValidation.Fields, err)
	case errors.As(err, &filterErr):
		write(w, r, http.StatusBadRequest, "Validation failed", map[string]string{filterErr.Field: filterErr.Message}, err)
	case errors.As(err, &pageErr):
		write(w, r, http.StatusBadRequest, "Validation failed", map[string]string{pageErr.Param: pageErr.Message}, err)
	case errors.Is(err, events.ErrNotFound):
		write(w, r, http.StatusNotFound, "Event not found", nil, err)
	case errors.Is(err, users.ErrNotFound):
		write(w, r, http.StatusNotFound, "User not found", nil, err)
	case errors.Is(err, attendance.ErrNotFound):
		write(w, r, http.StatusNotFound, "Attendance not found", nil, err)
	case errors.Is(err, events.ErrForbidden):
		write(w, r, http.StatusForbidden, "Access denied", nil, err)
	case errors.Is(err, users.ErrEmailTaken):
		write(w, r, http.StatusConflict, "Email is already in use", nil, err)
	case errors.Is(err, users.ErrInvalidCredentials):
		write(w, r, http.StatusUnauthorized, "Invalid email or password", nil, err)
	default:
		write(w, r, http.StatusInternalServerError, "An unexpected error occurred", nil, err)
	}
}

func write(w http.ResponseWriter, r *http.Request, status int, message string, fields map[string]string, cause error) {
	resp := Response{
		Status:           status,
		Error:            http.StatusText(status),
		Message:          message,
		Timestamp:        time.Now().UTC(),
		ValidationErrors: fields,
	}
	if r != nil {
		resp.Path = r.URL.Path
	}

	logEvent(r, status, cause, message)

	payload, err := json.Marshal(resp)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500,"error":"Internal Server Error","message":"An unexpected error occurred"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func logEvent(r *http.Request, status int, cause error, message string) {
	if r == nil || status < 400 {
		return
	}
	logger := zerolog.Ctx(r.Context())

	var evt *zerolog.Event
	if status >= 500 {
		evt = logger.Error()
	} else {
		evt = logger.Warn()
	}
	if cause != nil {
		evt = evt.Err(cause)
	}
	evt.
		Int("status", status).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Msg(message)
}
