package core

// audit.go records one summary row per processed upload.
//
// Only counts and request metadata are stored. Contact names and phone
// numbers never reach the audit table.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// AuditRecorder stores upload summaries.
type AuditRecorder interface {
	RecordUpload(ctx context.Context, entry UploadAudit) error
}

// UploadAudit is the summary of one processed upload.
type UploadAudit struct {
	ID        string        `json:"id"`
	FileName  string        `json:"fileName"`
	Status    Status        `json:"status"`
	TotalRows int           `json:"totalRows"`
	Contacts  int           `json:"contacts"`
	Skipped   int           `json:"skipped"`
	Warnings  int           `json:"warnings"`
	Error     string        `json:"error,omitempty"`
	IPAddress string        `json:"ipAddress,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
	Duration  time.Duration `json:"durationMs"`
	CreatedAt time.Time     `json:"createdAt"`
}

const insertUploadAudit = `
INSERT INTO upload_audit (
	id, file_name, status, total_rows, contacts, skipped, warnings,
	error, ip_address, user_agent, duration_ms
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const selectRecentUploads = `
SELECT id, file_name, status, total_rows, contacts, skipped, warnings,
	error, ip_address, user_agent, duration_ms, created_at
FROM upload_audit
ORDER BY created_at DESC
LIMIT $1`

// PgAuditStore writes upload summaries to PostgreSQL.
type PgAuditStore struct {
	db DBTX
}

// NewPgAuditStore creates a store backed by db.
func NewPgAuditStore(db DBTX) *PgAuditStore {
	return &PgAuditStore{db: db}
}

// RecordUpload inserts entry.
func (s *PgAuditStore) RecordUpload(ctx context.Context, entry UploadAudit) error {
	_, err := s.db.Exec(ctx, insertUploadAudit,
		toPgUUID(entry.ID),
		entry.FileName,
		string(entry.Status),
		int32(entry.TotalRows),
		int32(entry.Contacts),
		int32(entry.Skipped),
		int32(entry.Warnings),
		toPgText(entry.Error),
		toPgText(entry.IPAddress),
		toPgText(entry.UserAgent),
		entry.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert upload audit: %w", err)
	}
	return nil
}

// RecentUploads returns the latest entries, newest first.
func (s *PgAuditStore) RecentUploads(ctx context.Context, limit int) ([]UploadAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, selectRecentUploads, limit)
	if err != nil {
		return nil, fmt.Errorf("query upload audit: %w", err)
	}
	defer rows.Close()

	var out []UploadAudit
	for rows.Next() {
		var (
			id                                 pgtype.UUID
			entry                              UploadAudit
			status                             string
			total, contacts, skipped, warnings int32
			errText, ip, ua                    pgtype.Text
			durationMs                         int64
		)
		if err := rows.Scan(&id, &entry.FileName, &status, &total, &contacts, &skipped, &warnings,
			&errText, &ip, &ua, &durationMs, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload audit: %w", err)
		}
		if id.Valid {
			entry.ID = uuid.UUID(id.Bytes).String()
		}
		entry.Status = Status(status)
		entry.TotalRows = int(total)
		entry.Contacts = int(contacts)
		entry.Skipped = int(skipped)
		entry.Warnings = int(warnings)
		entry.Error = errText.String
		entry.IPAddress = ip.String
		entry.UserAgent = ua.String
		entry.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload audit: %w", err)
	}
	return out, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}
