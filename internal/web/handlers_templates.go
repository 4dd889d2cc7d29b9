package web

import (
	"net/http"

	"github.com/JonMunkholm/outreach/internal/core"
)

type generateLinksRequest struct {
	MessageTemplate  string                  `json:"message_template"`
	SelectedContacts []core.ExtractedContact `json:"selected_contacts"`
	UploadID         string                  `json:"upload_id"`
	Selected         []int                   `json:"selected"`
}

type generateLinksResponse struct {
	Results []core.ComposedMessage `json:"results"`
}

// handleMergeFields lists the template placeholders.
func (s *Server) handleMergeFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"merge_fields": core.MergeFields})
}

// handleGenerateLinks renders the template for posted contacts, or for the
// selected rows of a stored upload.
func (s *Server) handleGenerateLinks(w http.ResponseWriter, r *http.Request) {
	var req generateLinksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	contacts, code, err := s.resolveContacts(r, req.UploadID, req.Selected, req.SelectedContacts)
	if err != nil {
		s.respondError(w, r, err, code)
		return
	}

	results := s.processor.GenerateLinks(contacts, req.MessageTemplate)
	writeJSON(w, http.StatusOK, generateLinksResponse{Results: results})
}
