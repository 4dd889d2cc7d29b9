// Package session keeps the contacts of a processed upload so later requests
// can refer to them by upload ID instead of posting them back.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/outreach/internal/core"
)

// DefaultTTL is how long an upload stays addressable.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown or expired uploads.
var ErrNotFound = errors.New("session: upload not found")

// Upload is the stored result of one processed file.
type Upload struct {
	ID        string                  `json:"id"`
	FileName  string                  `json:"file_name"`
	Contacts  []core.ExtractedContact `json:"contacts"`
	CreatedAt time.Time               `json:"created_at"`
}

// Store persists uploads by ID.
type Store interface {
	Save(ctx context.Context, upload Upload) error
	Load(ctx context.Context, id string) (Upload, error)
	Delete(ctx context.Context, id string) error
}

// Pick returns the contacts at the given row indexes in sheet order.
// A nil rows returns every contact flagged Selected.
func (u Upload) Pick(rows []int) []core.ExtractedContact {
	return core.Selected(core.SelectRows(u.Contacts, rows))
}
