package web

// errors.go provides unified error response handling for the web layer.
//
// Every error response logs the technical error with the request ID and
// returns only the mapped user message, action and code to the client.

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`

	// Warnings is always an array; empty for request-level errors.
	Warnings []string `json:"warnings"`
}

// respondError logs err and writes the user-facing mapping of it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request error", args...)
	} else {
		logger.WarnContext(r.Context(), "request error", args...)
	}

	respondErrorJSON(w, userMsg, statusCode)
}

// writeErrorMessage maps a plain message through the catalogue. Used where
// no error value exists, such as middleware rejections.
func writeErrorMessage(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	logging.FromContext(r.Context()).WarnContext(r.Context(), "request rejected",
		"path", r.URL.Path,
		"status", statusCode,
		"reason", message,
	)
	respondErrorJSON(w, core.MapError(errors.New(message)), statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	writeJSON(w, statusCode, errorResponse(msg))
}

func errorResponse(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:    msg.Message,
		Message:  msg.Message,
		Action:   msg.Action,
		Code:     msg.Code,
		Warnings: []string{},
	}
}
