package core

// clean.go normalizes a raw batch before validation.
//
// Cleaning never fails. It trims every value, turns blanks and sentinel
// tokens into Missing, unwraps Excel text formulas (="0794...") and reduces
// phone columns to digits. Rows missing required columns are left for the
// validator to report.

import (
	"slices"
	"strings"
)

// sentinelTokens are compared case-insensitively after trimming.
var sentinelTokens = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"n/a":  {},
	"na":   {},
}

// CleanBatch returns a cleaned copy of b. The input is not modified.
func CleanBatch(b Batch) Batch {
	out := b.clone()
	for i := range out.Columns {
		out.Columns[i] = strings.TrimSpace(out.Columns[i])
	}
	for i := range out.Rows {
		out.Rows[i] = cleanRow(out.Rows[i], b.Columns)
	}
	return out
}

// cleanRow trims keys and values. When two raw keys trim to the same column
// the first one in header order wins; keys outside the header follow in
// sorted order.
func cleanRow(row Row, header []string) Row {
	values := make(map[string]Cell, len(row.Values))
	put := func(raw string) {
		cell, ok := row.Values[raw]
		if !ok {
			return
		}
		col := strings.TrimSpace(raw)
		if _, seen := values[col]; seen {
			return
		}
		values[col] = CleanValue(cell)
	}
	for _, raw := range header {
		put(raw)
	}
	rest := make([]string, 0, len(row.Values))
	for raw := range row.Values {
		rest = append(rest, raw)
	}
	slices.Sort(rest)
	for _, raw := range rest {
		put(raw)
	}

	for _, col := range PhoneColumns {
		cell, ok := values[col]
		if !ok || !cell.Valid {
			continue
		}
		digits := digitsOnly(cell.Value)
		if digits == "" {
			values[col] = Missing
		} else {
			values[col] = Text(digits)
		}
	}
	return Row{Index: row.Index, Values: values}
}

// CleanValue trims c and maps blank or sentinel text to Missing.
func CleanValue(c Cell) Cell {
	if !c.Valid {
		return Missing
	}
	s := unwrapFormula(strings.TrimSpace(c.Value))
	if s == "" {
		return Missing
	}
	if _, ok := sentinelTokens[strings.ToLower(s)]; ok {
		return Missing
	}
	return Text(s)
}

// unwrapFormula strips the ="..." wrapper spreadsheets use to keep leading zeros.
func unwrapFormula(s string) string {
	if len(s) >= 3 && strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		return strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}
