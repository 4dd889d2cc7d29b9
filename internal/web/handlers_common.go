package web

// handlers_common.go holds helpers shared across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/session"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 4 << 20

// writeSlack is the time left to flush a response after a handler's budget.
const writeSlack = 15 * time.Second

// extendWriteDeadline lets a handler with its own budget outlive the
// server-wide write timeout. Writers without deadline support are left alone.
func extendWriteDeadline(w http.ResponseWriter, budget time.Duration) {
	if budget <= 0 {
		return
	}
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(budget + writeSlack))
}

// errInvalidJSON is returned for undecodable request bodies.
var errInvalidJSON = errors.New("invalid request body")

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}

// httpStatus maps a processing outcome to an HTTP status code.
func httpStatus(status core.Status) int {
	switch status {
	case core.StatusOK:
		return http.StatusOK
	case core.StatusClientError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// resolveContacts returns the stored contacts of uploadID picked by rows, or
// posted when no upload ID is given.
func (s *Server) resolveContacts(r *http.Request, uploadID string, rows []int, posted []core.ExtractedContact) ([]core.ExtractedContact, int, error) {
	if uploadID == "" {
		return posted, http.StatusOK, nil
	}
	up, err := s.sessions.Load(r.Context(), uploadID)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return nil, http.StatusNotFound, err
	case err != nil:
		return nil, http.StatusInternalServerError, err
	}
	return up.Pick(rows), http.StatusOK, nil
}

type healthResponse struct {
	Status  string                   `json:"status"`
	Uploads core.UploadLimiterStatus `json:"uploads"`
	SMS     bool                     `json:"sms"`
	Audit   bool                     `json:"audit"`
}

// handleHealth reports liveness and upload capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Uploads: s.limiter.Status(),
		SMS:     s.sms != nil,
		Audit:   s.uploads != nil,
	})
}
