package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/dispatch"
	"github.com/JonMunkholm/outreach/internal/web/middleware"
)

var errMessageRequired = errors.New("message required")

// smsSendRequest either names stored contacts by upload ID and renders
// MessageTemplate for each, or lists raw Recipients that all get Message.
type smsSendRequest struct {
	UploadID        string   `json:"upload_id"`
	Selected        []int    `json:"selected"`
	MessageTemplate string   `json:"message_template"`
	Recipients      []string `json:"recipients"`
	Message         string   `json:"message"`
}

type smsSendResponse struct {
	Success        bool              `json:"success"`
	Summary        dispatch.Summary  `json:"summary"`
	Results        []dispatch.Result `json:"results"`
	InvalidNumbers []string          `json:"invalid_numbers"`
}

// handleConsent records SMS consent for the caller.
func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	middleware.SetConsent(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleSMSSend dispatches messages and reports a result per recipient.
func (s *Server) handleSMSSend(w http.ResponseWriter, r *http.Request) {
	if s.sms == nil {
		s.respondError(w, r, dispatch.ErrCredentialsMissing, http.StatusServiceUnavailable)
		return
	}

	var req smsSendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var (
		msgs    []dispatch.Message
		invalid = []string{}
	)
	if req.UploadID != "" {
		contacts, code, err := s.resolveContacts(r, req.UploadID, req.Selected, nil)
		if err != nil {
			s.respondError(w, r, err, code)
			return
		}
		composed := s.processor.GenerateLinks(contacts, req.MessageTemplate)
		msgs = dispatch.MessagesFor(contacts, composed)
	} else {
		if strings.TrimSpace(req.Message) == "" {
			s.respondError(w, r, errMessageRequired, http.StatusBadRequest)
			return
		}
		for i, raw := range req.Recipients {
			phone, err := core.NormalizePhone(raw)
			if err != nil || (s.cfg.SMS.UKMobileOnly && !core.IsUKMobile(phone)) {
				invalid = append(invalid, raw)
				continue
			}
			msgs = append(msgs, dispatch.Message{ContactRef: i, To: phone, Body: req.Message})
		}
	}

	if len(msgs) == 0 {
		writeJSON(w, http.StatusBadRequest, struct {
			ErrorResponse
			InvalidNumbers []string `json:"invalid_numbers"`
		}{
			ErrorResponse:  errorResponse(core.MapError(core.ErrNoValidContacts)),
			InvalidNumbers: invalid,
		})
		return
	}

	budget := s.cfg.SMS.SendTimeout
	if err := s.sms.CheckBudget(len(msgs), budget); err != nil {
		s.respondError(w, r, err, http.StatusRequestEntityTooLarge)
		return
	}
	ctx := r.Context()
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
		extendWriteDeadline(w, budget)
	}

	results := s.sms.Send(ctx, msgs)
	writeJSON(w, http.StatusOK, smsSendResponse{
		Success:        true,
		Summary:        dispatch.Summarize(results),
		Results:        results,
		InvalidNumbers: invalid,
	})
}

// handleSMSStatus reports the provider status of one message.
func (s *Server) handleSMSStatus(w http.ResponseWriter, r *http.Request) {
	if s.sms == nil {
		s.respondError(w, r, dispatch.ErrCredentialsMissing, http.StatusServiceUnavailable)
		return
	}

	status, err := s.sms.Status(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
	case errors.Is(err, dispatch.ErrInvalidMessage):
		s.respondError(w, r, err, http.StatusBadRequest)
	default:
		s.respondError(w, r, err, http.StatusBadGateway)
	}
}
