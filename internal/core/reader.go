package core

// reader.go turns an uploaded CSV, XLSX or XLS file into a Batch.
//
// CSV input is decoded through a BOM-aware UTF-8 decoder, so files saved by
// Excel on Windows (UTF-8 or UTF-16 with BOM) read the same as plain UTF-8,
// and invalid bytes become U+FFFD instead of failing the parse. XLSX input is
// read from the first sheet with raw cell values so numeric phone cells keep
// their digits. Legacy XLS workbooks are read from the first sheet as
// formatted text.
//
// The first row is the header. Short rows are padded with Missing cells.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// SupportedExtensions lists the file types ReadFile accepts.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls"}

// ErrUnsupportedFileType is returned for extensions outside SupportedExtensions.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// IsSupportedFile reports whether name has an accepted extension.
func IsSupportedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ReadFile reads r according to the extension of name.
func ReadFile(name string, r io.Reader) (Batch, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	case ".xls":
		return ReadXLS(r)
	default:
		return Batch{}, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// ReadCSV parses comma-separated input with a header row.
func ReadCSV(r io.Reader) (Batch, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return Batch{}, fmt.Errorf("invalid csv: %w", err)
	}
	return buildBatch(records)
}

// ReadXLSX parses the first worksheet of an XLSX workbook.
func ReadXLSX(r io.Reader) (Batch, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return Batch{}, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Batch{}, ErrNoData
	}

	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Batch{}, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	return buildBatch(records)
}

// ReadXLS parses the first worksheet of a legacy BIFF (.xls) workbook.
// Rows absent from the file are skipped like blank CSV lines.
func ReadXLS(r io.Reader) (Batch, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return Batch{}, fmt.Errorf("invalid spreadsheet: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	records, err := xlsRecords(rs)
	if err != nil {
		return Batch{}, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	return buildBatch(records)
}

// xlsRecords reads the first sheet as text. The parser panics on some
// malformed files; those panics come back as errors.
func xlsRecords(rs io.ReadSeeker) (records [][]string, err error) {
	defer func() {
		if p := recover(); p != nil {
			records, err = nil, fmt.Errorf("malformed workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(rs, "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		record := make([]string, row.LastCol())
		for c := range record {
			record[c] = row.Col(c)
		}
		records = append(records, record)
	}
	return records, nil
}

// buildBatch maps records onto the header in the first record.
func buildBatch(records [][]string) (Batch, error) {
	if len(records) == 0 {
		return Batch{}, ErrNoData
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		values := make(map[string]Cell, len(header))
		for pos, col := range header {
			if col == "" {
				continue
			}
			if pos < len(record) {
				values[col] = Text(record[pos])
			} else {
				values[col] = Missing
			}
		}
		rows = append(rows, Row{Index: i, Values: values})
	}

	return Batch{Columns: header, Rows: rows}, nil
}
