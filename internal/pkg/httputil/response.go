// Package httputil provides HTTP response helpers and middleware shared by
// all handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// JSON writes data as a bare JSON document.
// Use Success for {"data": ...} wrapped responses.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Success writes data in a {"data": ...} envelope.
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, map[string]any{"data": data})
}

// Error writes message in a {"error": {"message": ...}} envelope.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{"error": errorBody{Message: message}})
}

// ValidationError writes a 400 listing failed fields for validator errors,
// or the error text otherwise.
func ValidationError(w http.ResponseWriter, err error) {
	var details any = err.Error()

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]fieldError, 0, len(validationErrors))
		for _, e := range validationErrors {
			fields = append(fields, fieldError{Field: e.Field(), Message: e.Tag()})
		}
		details = fields
	}

	JSON(w, http.StatusBadRequest, map[string]any{
		"error": errorBody{Message: "validation error", Details: details},
	})
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, status int, text string) {
	write(w, status, "text/plain; charset=utf-8", text)
}

// Markdown writes a markdown document.
func Markdown(w http.ResponseWriter, status int, text string) {
	write(w, status, "text/markdown; charset=utf-8", text)
}

func write(w http.ResponseWriter, status int, contentType, body string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
