package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
)

func TestReadCSV(t *testing.T) {
	data := "\ufeff First Name ,Last Name,Mobile\n" +
		"Amy,Pond,07946220153\n" +
		"\"Williams, Rory\",,\n" +
		"Clara\n"

	batch, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	if got := strings.Join(batch.Columns, "|"); got != "First Name|Last Name|Mobile" {
		t.Errorf("Columns = %q", got)
	}
	if len(batch.Rows) != 3 {
		t.Fatalf("Rows = %d, want 3", len(batch.Rows))
	}
	if got := batch.Rows[1].Get(ColFirstName).Value; got != "Williams, Rory" {
		t.Errorf("quoted field = %q", got)
	}
	if got := batch.Rows[2].Get(ColMobile); got.Valid {
		t.Errorf("short row should pad Missing, got %+v", got)
	}
	for i, row := range batch.Rows {
		if row.Index != i {
			t.Errorf("Rows[%d].Index = %d", i, row.Index)
		}
	}
}

func TestReadCSV_UTF16WithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.String("First Name,Mobile\nZoë,07946220153\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	batch, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if got := batch.Rows[0].Get(ColFirstName).Value; got != "Zoë" {
		t.Errorf("First Name = %q", got)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{ColFirstName, ColLastName, ColMobile},
		{"Amy", "Pond", 7946220153},
		{"Rory", nil, "07946 000111"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	batch, err := ReadFile("contacts.xlsx", &buf)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(batch.Rows) != 2 {
		t.Fatalf("Rows = %d, want 2", len(batch.Rows))
	}
	if got := batch.Rows[0].Get(ColMobile).Value; got != "7946220153" {
		t.Errorf("numeric phone = %q", got)
	}
	if got := batch.Rows[1].Get(ColMobile).Value; got != "07946 000111" {
		t.Errorf("text phone = %q", got)
	}

	cleaned := CleanBatch(batch)
	if got := cleaned.Rows[1].Get(ColLastName); got.Valid {
		t.Errorf("empty cell should clean to Missing, got %+v", got)
	}
}

func TestIsSupportedFile(t *testing.T) {
	tests := map[string]bool{
		"contacts.csv":  true,
		"CONTACTS.XLSX": true,
		"contacts.xls":  true,
		"contacts":      false,
		"contacts.txt":  false,
	}
	for name, want := range tests {
		if got := IsSupportedFile(name); got != want {
			t.Errorf("IsSupportedFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestReadFile_XLSIsReadNotRejected(t *testing.T) {
	_, err := ReadFile("contacts.xls", strings.NewReader("not a workbook"))
	if err == nil {
		t.Fatal("expected an error for a corrupt workbook")
	}
	if errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("err = %v, .xls must reach the XLS parser", err)
	}
	if !strings.HasPrefix(err.Error(), "invalid spreadsheet") {
		t.Errorf("err = %q, want invalid spreadsheet", err)
	}
	if got := MapError(err).Code; got != "FILE003" {
		t.Errorf("MapError code = %s, want FILE003", got)
	}
}
