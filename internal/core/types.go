package core

import "strings"

// Column names expected in an uploaded contact sheet.
const (
	ColFirstName      = "First Name"
	ColLastName       = "Last Name"
	ColPhone          = "Phone"
	ColLocation       = "Location"
	ColEngagementDate = "Newest Engagement Date"
	ColVolunteerURL   = "Personal Volunteering Site URL"
	ColMobile         = "Mobile"
	ColWorkPhone      = "Work Phone"
)

// RequiredColumns lists every column a sheet must carry, in reporting order.
var RequiredColumns = []string{
	ColFirstName,
	ColLastName,
	ColPhone,
	ColLocation,
	ColEngagementDate,
	ColVolunteerURL,
	ColMobile,
	ColWorkPhone,
}

// PhoneColumns are the phone-bearing columns cleaned to digits.
var PhoneColumns = []string{ColPhone, ColMobile, ColWorkPhone}

// PhonePriority is the order in which phone columns are tried during extraction.
var PhonePriority = []string{ColMobile, ColPhone, ColWorkPhone}

// Cell is a single scalar value from a sheet. Valid is false for a missing value.
type Cell struct {
	Value string
	Valid bool
}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{Value: s, Valid: true}
}

// Missing is the explicit "value absent" cell.
var Missing = Cell{}

// Row is one record of a sheet, keyed by column name.
// A key absent from Values means the cell was never read; a key mapped to
// Missing means it was read and holds no value.
type Row struct {
	Index  int // 0-based position among data rows
	Values map[string]Cell
}

// Get returns the cell for column, or Missing when the column is absent.
func (r Row) Get(column string) Cell {
	if r.Values == nil {
		return Missing
	}
	return r.Values[column]
}

// Line returns the 1-based spreadsheet line of the row, counting the header.
func (r Row) Line() int {
	return r.Index + 2
}

// Batch is an ordered sequence of rows sharing one header.
type Batch struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the header contains column (exact match).
func (b Batch) HasColumn(column string) bool {
	for _, c := range b.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// clone returns a deep copy so transforms never touch the caller's batch.
func (b Batch) clone() Batch {
	out := Batch{
		Columns: append([]string(nil), b.Columns...),
		Rows:    make([]Row, len(b.Rows)),
	}
	for i, row := range b.Rows {
		values := make(map[string]Cell, len(row.Values))
		for k, v := range row.Values {
			values[k] = v
		}
		out.Rows[i] = Row{Index: row.Index, Values: values}
	}
	return out
}

// ValidationReport collects batch-level errors and row-level warnings.
// A non-empty Errors means the batch must not be extracted.
type ValidationReport struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the batch may proceed to extraction.
func (r ValidationReport) OK() bool {
	return len(r.Errors) == 0
}

// ExtractedContact is a row that yielded a usable phone number.
type ExtractedContact struct {
	RowIndex       int     `json:"row_index"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	FullName       string  `json:"full_name"`
	Location       string  `json:"location"`
	EngagementDate string  `json:"engagement_date"`
	VolunteerURL   *string `json:"volunteer_url"`
	CanonicalPhone string  `json:"canonical_phone"`
	DisplayPhone   string  `json:"display_phone"`
	Region         string  `json:"region,omitempty"`
	Selected       bool    `json:"selected"`
}

// SkippedRow records a row excluded from extraction.
type SkippedRow struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

// Skip reasons.
const (
	ReasonNoValidPhone = "NoValidPhone"
)

// Extraction is the fold of a batch into contacts and skipped rows.
type Extraction struct {
	Contacts []ExtractedContact
	Skipped  []SkippedRow
	Warnings []string // row errors other than a missing phone
}

// MergeField describes a template placeholder.
type MergeField struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// MergeFields is the fixed set of placeholders available to templates.
var MergeFields = []MergeField{
	{Field: "{first_name}", Description: "Contact's first name"},
	{Field: "{last_name}", Description: "Contact's last name"},
	{Field: "{full_name}", Description: "Contact's full name"},
	{Field: "{location}", Description: "Contact's location"},
	{Field: "{engagement_date}", Description: "Last engagement date"},
	{Field: "{volunteer_url}", Description: "Volunteering site URL"},
}

// ComposedMessage is a personalized message and its click-to-chat link.
type ComposedMessage struct {
	ContactRef   int    `json:"contact_ref"`
	Name         string `json:"name"`
	RenderedText string `json:"rendered_text"`
	Link         string `json:"link"`
}

// Status classifies the outcome of a processing call.
type Status string

const (
	StatusOK          Status = "ok"
	StatusClientError Status = "client_error"
	StatusServerError Status = "server_error"
)

// UploadResponse is the JSON-safe shape returned for every upload, success or not.
type UploadResponse struct {
	UploadID    string             `json:"upload_id,omitempty"`
	Results     []ExtractedContact `json:"results,omitempty"`
	Warnings    []string           `json:"warnings"`
	MergeFields []MergeField       `json:"merge_fields,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// displayName joins name parts the way the sheet owner would read them.
func displayName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
