package core

// process.go is the single entry point shared by the HTTP handlers and the CLI.
//
// The pipeline is Clean -> Validate -> Extract. Validation errors stop the
// batch before extraction; row failures are folded into warnings; anything
// unexpected is caught once at ProcessUpload and reported opaquely.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// UploadMeta describes where an upload came from. It is used for logging
// and auditing only.
type UploadMeta struct {
	FileName  string
	IPAddress string
	UserAgent string
}

// Observer receives processing outcomes, typically for metrics.
type Observer interface {
	ObserveUpload(status Status, duration time.Duration)
	ObserveRows(contacts, skipped, warnings int)
}

// Processor runs contact uploads. The zero value is usable.
type Processor struct {
	Logger   *slog.Logger
	Audit    AuditRecorder
	Observer Observer
	Composer Composer
}

func (p *Processor) logger(ctx context.Context) *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Process cleans, validates and extracts a batch. On failure the returned
// error is an *InputError for client-correctable problems; warnings gathered
// so far are returned either way.
func (p *Processor) Process(ctx context.Context, batch Batch) (*Extraction, []string, error) {
	logger := p.logger(ctx)

	cleaned := CleanBatch(batch)
	report := ValidateBatch(cleaned)
	warnings := append([]string{}, report.Warnings...)

	if !report.OK() {
		logger.DebugContext(ctx, "validation failed", "errors", report.Errors)
		return nil, warnings, &InputError{
			Message:  report.Errors[0],
			Warnings: warnings,
			Err:      validationCause(cleaned),
		}
	}

	ext, err := ExtractContacts(cleaned.Rows)
	warnings = append(warnings, ext.Warnings...)
	if err != nil {
		var ie *InputError
		if errors.As(err, &ie) {
			ie.Warnings = warnings
		}
		logger.DebugContext(ctx, "no contacts extracted", "rows", len(cleaned.Rows), "warnings", len(warnings))
		return ext, warnings, err
	}

	logger.DebugContext(ctx, "contacts extracted",
		"rows", len(cleaned.Rows),
		"contacts", len(ext.Contacts),
		"skipped", len(ext.Skipped),
	)
	return ext, warnings, nil
}

func validationCause(b Batch) error {
	if len(b.Rows) == 0 {
		return ErrNoData
	}
	return ErrMissingColumns
}

// ProcessFile reads an uploaded file and processes it. Read failures are
// reported as client errors.
func (p *Processor) ProcessFile(ctx context.Context, meta UploadMeta, r io.Reader) (UploadResponse, Status) {
	start := time.Now()
	batch, err := ReadFile(meta.FileName, r)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoData):
		return p.finish(ctx, meta, nil, nil, &InputError{Message: msgNoData, Err: err}, start)
	case IsUserFacing(err):
		return p.finish(ctx, meta, nil, nil, &InputError{Message: FormatUserError(err), Err: err}, start)
	default:
		return p.finish(ctx, meta, nil, nil, fmt.Errorf("read upload: %w", err), start)
	}
	return p.ProcessUpload(ctx, meta, batch)
}

// ProcessUpload processes a batch and always returns a consistent response
// shape with its status classification.
func (p *Processor) ProcessUpload(ctx context.Context, meta UploadMeta, batch Batch) (resp UploadResponse, status Status) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger(ctx).ErrorContext(ctx, "upload processing panicked",
				"file", meta.FileName,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp, status = p.finish(ctx, meta, nil, nil, fmt.Errorf("panic: %v", r), start)
		}
	}()

	ext, warnings, err := p.Process(ctx, batch)
	return p.finish(ctx, meta, ext, warnings, err, start)
}

// finish classifies the outcome, records it and builds the response.
func (p *Processor) finish(ctx context.Context, meta UploadMeta, ext *Extraction, warnings []string, err error, start time.Time) (UploadResponse, Status) {
	logger := p.logger(ctx)
	uploadID := uuid.NewString()

	if warnings == nil {
		warnings = []string{}
	}

	var (
		resp   UploadResponse
		status Status
	)

	var ie *InputError
	switch {
	case err == nil:
		status = StatusOK
		resp = UploadResponse{
			UploadID:    uploadID,
			Results:     ext.Contacts,
			Warnings:    warnings,
			MergeFields: MergeFields,
		}
		logger.InfoContext(ctx, "upload processed",
			"upload_id", uploadID,
			"file", meta.FileName,
			"contacts", len(ext.Contacts),
			"skipped", len(ext.Skipped),
			"warnings", len(warnings),
		)
	case errors.As(err, &ie):
		status = StatusClientError
		resp = UploadResponse{Error: ie.Message, Warnings: warnings}
		if len(ie.Warnings) > len(warnings) {
			resp.Warnings = ie.Warnings
		}
		logger.InfoContext(ctx, "upload rejected",
			"upload_id", uploadID,
			"file", meta.FileName,
			"error", err,
		)
	default:
		status = StatusServerError
		resp = UploadResponse{Error: SystemErrorMessage(), Warnings: []string{}}
		logger.ErrorContext(ctx, "upload failed",
			"upload_id", uploadID,
			"file", meta.FileName,
			"error", err,
		)
	}

	duration := time.Since(start)
	p.observe(status, ext, resp, duration)
	p.record(ctx, uploadID, meta, status, ext, resp, duration)

	return resp, status
}

func (p *Processor) observe(status Status, ext *Extraction, resp UploadResponse, d time.Duration) {
	if p.Observer == nil {
		return
	}
	p.Observer.ObserveUpload(status, d)
	if ext != nil {
		p.Observer.ObserveRows(len(ext.Contacts), len(ext.Skipped), len(resp.Warnings))
	}
}

func (p *Processor) record(ctx context.Context, uploadID string, meta UploadMeta, status Status, ext *Extraction, resp UploadResponse, d time.Duration) {
	if p.Audit == nil {
		return
	}
	entry := UploadAudit{
		ID:        uploadID,
		FileName:  meta.FileName,
		Status:    status,
		Warnings:  len(resp.Warnings),
		Error:     resp.Error,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Duration:  d,
	}
	if ext != nil {
		entry.Contacts = len(ext.Contacts)
		entry.Skipped = len(ext.Skipped)
		entry.TotalRows = entry.Contacts + entry.Skipped
	}
	if err := p.Audit.RecordUpload(ctx, entry); err != nil {
		p.logger(ctx).WarnContext(ctx, "failed to record upload audit", "upload_id", uploadID, "error", err)
	}
}

// GenerateLinks composes a message and link for every contact, in order.
func (p *Processor) GenerateLinks(contacts []ExtractedContact, tmpl string) []ComposedMessage {
	composer := p.Composer
	if composer.LinkBase == "" {
		composer = NewComposer("")
	}
	out := make([]ComposedMessage, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, composer.Compose(c, tmpl))
	}
	return out
}

// Selected returns the contacts whose Selected flag is set.
func Selected(contacts []ExtractedContact) []ExtractedContact {
	out := make([]ExtractedContact, 0, len(contacts))
	for _, c := range contacts {
		if c.Selected {
			out = append(out, c)
		}
	}
	return out
}

// SelectRows marks only the contacts whose RowIndex is in rows as selected.
// A nil rows leaves the selection untouched.
func SelectRows(contacts []ExtractedContact, rows []int) []ExtractedContact {
	if rows == nil {
		return contacts
	}
	want := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		want[r] = struct{}{}
	}
	out := make([]ExtractedContact, len(contacts))
	for i, c := range contacts {
		_, c.Selected = want[c.RowIndex]
		out[i] = c
	}
	return out
}
