package core

// validation.go checks structural preconditions on a cleaned batch.
//
// Validation happens at two levels:
//  1. Batch: the file has data rows and every required column. Failures here
//     are errors and stop further checks.
//  2. Row: contacts without any name or without any phone are annotated with
//     warnings. Warnings never stop the batch; the extractor decides on its
//     own which rows survive.

import (
	"fmt"
	"strings"
)

const (
	placeholderFirstName = "[No First Name]"
	placeholderLastName  = "[No Last Name]"
)

// ValidateBatch inspects a cleaned batch and reports errors and warnings.
func ValidateBatch(b Batch) ValidationReport {
	var report ValidationReport

	if len(b.Rows) == 0 {
		report.Errors = append(report.Errors, msgNoData)
		return report
	}

	if missing := MissingColumns(b); len(missing) > 0 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", ")))
		return report
	}

	for _, row := range b.Rows {
		report.Warnings = append(report.Warnings, nameWarnings(row)...)
	}
	for _, row := range b.Rows {
		if w, ok := phoneWarning(row); ok {
			report.Warnings = append(report.Warnings, w)
		}
	}

	return report
}

// MissingColumns returns the required columns absent from the header, in
// RequiredColumns order.
func MissingColumns(b Batch) []string {
	var missing []string
	for _, col := range RequiredColumns {
		if !b.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// nameWarnings flags a row that carries neither a first nor a last name.
func nameWarnings(row Row) []string {
	first, last := row.Get(ColFirstName), row.Get(ColLastName)
	if first.Valid || last.Valid {
		return nil
	}
	return []string{fmt.Sprintf("Row %d: Missing fields: %s, %s. This contact will be skipped.",
		row.Line(), ColFirstName, ColLastName)}
}

// phoneWarning flags a row where every phone column is missing.
func phoneWarning(row Row) (string, bool) {
	for _, col := range PhoneColumns {
		if row.Get(col).Valid {
			return "", false
		}
	}

	first := placeholderFirstName
	if c := row.Get(ColFirstName); c.Valid {
		first = c.Value
	}
	last := placeholderLastName
	if c := row.Get(ColLastName); c.Valid {
		last = c.Value
	}

	return fmt.Sprintf("Row %d: No phone number found for contact: %s %s. This contact will be skipped.",
		row.Line(), first, last), true
}
