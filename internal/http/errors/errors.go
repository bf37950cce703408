// Package errors holds shared HTTP error helpers.
package errors

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// InternalError logs err with the request ID and writes a generic 500.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("[ERROR] request_id=%s %v", middleware.GetReqID(r.Context()), err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// BadRequestError writes a 400 with the supplied message.
func BadRequestError(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}

// LogError records a non-fatal error tied to the request.
func LogError(r *http.Request, err error) {
	log.Printf("[ERROR] request_id=%s %v", middleware.GetReqID(r.Context()), err)
}

// LogInfo records request-scoped diagnostics.
func LogInfo(r *http.Request, format string, args ...any) {
	log.Printf("[INFO] request_id=%s "+format, append([]any{middleware.GetReqID(r.Context())}, args...)...)
}
