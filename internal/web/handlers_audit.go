package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/outreach/internal/core"
)

const (
	defaultRecentUploads = 50
	maxRecentUploads     = 500
)

type recentUploadsResponse struct {
	Enabled bool               `json:"enabled"`
	Uploads []core.UploadAudit `json:"uploads"`
}

// handleRecentUploads lists recent upload audit entries as JSON, or as a CSV
// download with ?format=csv.
func (s *Server) handleRecentUploads(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		writeJSON(w, http.StatusOK, recentUploadsResponse{Uploads: []core.UploadAudit{}})
		return
	}

	limit := min(parseIntParam(r, "limit", defaultRecentUploads), maxRecentUploads)

	entries, err := s.uploads.RecentUploads(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.UploadAudit{}
	}

	if r.URL.Query().Get("format") == "csv" {
		writeAuditCSV(w, entries)
		return
	}
	writeJSON(w, http.StatusOK, recentUploadsResponse{Enabled: true, Uploads: entries})
}

func writeAuditCSV(w http.ResponseWriter, entries []core.UploadAudit) {
	filename := fmt.Sprintf("uploads_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"ID", "Created At", "File", "Status", "Total Rows", "Contacts", "Skipped", "Warnings", "Duration (ms)", "Error"})
	for _, e := range entries {
		_ = cw.Write([]string{
			e.ID,
			e.CreatedAt.Format(time.RFC3339),
			e.FileName,
			string(e.Status),
			strconv.Itoa(e.TotalRows),
			strconv.Itoa(e.Contacts),
			strconv.Itoa(e.Skipped),
			strconv.Itoa(e.Warnings),
			strconv.FormatInt(e.Duration.Milliseconds(), 10),
			e.Error,
		})
	}
	cw.Flush()
}
