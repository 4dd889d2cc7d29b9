package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/outreach/internal/core"
	"github.com/JonMunkholm/outreach/internal/logging"
	"github.com/JonMunkholm/outreach/internal/session"
)

// multipartSlack covers form boundaries and headers around the file part.
const multipartSlack = 1 << 20

var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

// handleUpload accepts a multipart "file" field, processes it and stores the
// extracted contacts under the returned upload ID.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartSlack)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, r, fmt.Errorf("%w: limit %d bytes", errFileTooLarge, maxSize), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil || strings.TrimSpace(header.Filename) == "" {
		s.respondError(w, r, errNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !core.IsSupportedFile(name) || !s.cfg.Upload.Allows(filepath.Ext(name)) {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrUnsupportedFileType, filepath.Ext(name)), http.StatusBadRequest)
		return
	}
	if header.Size > maxSize {
		s.respondError(w, r, fmt.Errorf("%w: %d bytes exceeds %d", errFileTooLarge, header.Size, maxSize), http.StatusRequestEntityTooLarge)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	if s.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()
		extendWriteDeadline(w, s.cfg.Upload.Timeout)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	defer s.limiter.Release()

	tmp, err := spool(s.cfg.Upload.TempDir, name, file)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			logging.FromContext(ctx).Warn("failed to remove spooled upload", "path", tmp.Name(), "error", err)
		}
	}()

	resp, status := s.processor.ProcessFile(ctx, core.MetaFromContext(ctx, name), tmp)
	if status == core.StatusOK {
		err := s.sessions.Save(ctx, session.Upload{ID: resp.UploadID, FileName: name, Contacts: resp.Results})
		if err != nil {
			logging.FromContext(ctx).Error("failed to store upload session", "upload_id", resp.UploadID, "error", err)
		}
	}

	writeJSON(w, httpStatus(status), resp)
}

// spool copies src into a fresh temp file and rewinds it. The caller removes it.
func spool(dir, name string, src io.Reader) (*os.File, error) {
	tmp, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("rewind upload: %w", err)
	}
	return tmp, nil
}
