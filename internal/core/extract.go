package core

// extract.go folds a cleaned, validated batch into contacts and skipped rows.
//
// Rows are visited strictly in order and each row is extracted in isolation:
// a row that fails lands in Skipped and the walk continues, so output order
// always matches input order and no single row can abort the batch.

import (
	"errors"
	"fmt"
)

// Defaults applied when optional fields are missing.
const (
	defaultName     = ""
	defaultLocation = "N/A"
	defaultDate     = "N/A"
)

// ExtractContacts walks rows in order and returns every contact with a usable
// phone. It fails with an *InputError wrapping ErrNoValidContacts when no row
// survives.
func ExtractContacts(rows []Row) (*Extraction, error) {
	ext := &Extraction{}

	for _, row := range rows {
		contact, err := extractRowSafe(row)
		if err != nil {
			if errors.Is(err, ErrNoValidPhone) {
				ext.Skipped = append(ext.Skipped, SkippedRow{RowIndex: row.Index, Reason: ReasonNoValidPhone})
				continue
			}
			msg := fmt.Sprintf("Error processing row %d: %v", row.Line(), err)
			ext.Skipped = append(ext.Skipped, SkippedRow{RowIndex: row.Index, Reason: err.Error()})
			ext.Warnings = append(ext.Warnings, msg)
			continue
		}
		ext.Contacts = append(ext.Contacts, contact)
	}

	if len(ext.Contacts) == 0 {
		return ext, &InputError{
			Message:  msgNoValidContacts,
			Warnings: ext.Warnings,
			Err:      ErrNoValidContacts,
		}
	}
	return ext, nil
}

// extractRowSafe converts a panic inside row extraction into a row error.
func extractRowSafe(row Row) (contact ExtractedContact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedRow, r)
		}
	}()
	return extractRow(row)
}

// extractRow builds a contact from one row.
func extractRow(row Row) (ExtractedContact, error) {
	if row.Values == nil {
		return ExtractedContact{}, ErrMalformedRow
	}

	phone, ok := BestPhone(row)
	if !ok {
		return ExtractedContact{}, ErrNoValidPhone
	}

	first := valueOr(row, ColFirstName, defaultName)
	last := valueOr(row, ColLastName, defaultName)

	var volunteerURL *string
	if c := row.Get(ColVolunteerURL); c.Valid {
		v := c.Value
		volunteerURL = &v
	}

	return ExtractedContact{
		RowIndex:       row.Index,
		FirstName:      first,
		LastName:       last,
		FullName:       displayName(first, last),
		Location:       valueOr(row, ColLocation, defaultLocation),
		EngagementDate: valueOr(row, ColEngagementDate, defaultDate),
		VolunteerURL:   volunteerURL,
		CanonicalPhone: phone,
		DisplayPhone:   MaskPhone(phone),
		Region:         PhoneRegion(phone),
		Selected:       true,
	}, nil
}

// BestPhone tries the phone columns in PhonePriority order and returns the
// first value that normalizes.
func BestPhone(row Row) (string, bool) {
	for _, col := range PhonePriority {
		c := row.Get(col)
		if !c.Valid {
			continue
		}
		if phone, err := NormalizePhone(c.Value); err == nil {
			return phone, true
		}
	}
	return "", false
}

func valueOr(row Row, column, def string) string {
	if c := row.Get(column); c.Valid {
		return c.Value
	}
	return def
}
