// Package spreadsheet checks import files before upload and builds .xlsx exports.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadable is returned when an upload is not a readable workbook.
var ErrUnreadable = errors.New("ไม่สามารถอ่านไฟล์ Excel ได้")

// HeaderError lists the required columns missing from the first row.
type HeaderError struct {
	Missing []string
}

func (e *HeaderError) Error() string {
	return "ไม่พบคอลัมน์: " + strings.Join(e.Missing, ", ")
}

// Preflightable reports whether filename can be inspected locally. Legacy
// .xls files go to the backend unchecked.
func Preflightable(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".xlsx")
}

// CheckHeaders verifies the first sheet's first row contains every name in
// want, compared trimmed and case-insensitively, and that at least one data
// row follows.
func CheckHeaders(data []byte, want []string) error {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ErrUnreadable
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(rows) == 0 {
		return &HeaderError{Missing: want}
	}

	have := make(map[string]bool, len(rows[0]))
	for _, c := range rows[0] {
		have[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var missing []string
	for _, w := range want {
		if !have[strings.ToLower(w)] {
			missing = append(missing, w)
		}
	}
	if len(missing) > 0 {
		return &HeaderError{Missing: missing}
	}
	if len(rows) < 2 {
		return errors.New("ไฟล์ไม่มีข้อมูล")
	}
	return nil
}

// Sheet is one worksheet of an export.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Build writes the sheets into a workbook, in order, with a bold shaded header row.
func Build(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet: no sheets")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return nil, err
		}

		header := make([]any, len(s.Headers))
		for j, h := range s.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
			return nil, err
		}
		if len(s.Headers) > 0 {
			last, err := excelize.CoordinatesToCellName(len(s.Headers), 1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStyle(s.Name, "A1", last, headerStyle); err != nil {
				return nil, err
			}
			lastCol, _ := excelize.ColumnNumberToName(len(s.Headers))
			if err := f.SetColWidth(s.Name, "A", lastCol, 15); err != nil {
				return nil, err
			}
		}

		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				return nil, err
			}
		}
	}
	f.SetActiveSheet(0)

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename returns the timestamped export name, e.g. PartMaster_20260126.xlsx.
func Filename(prefix string, t time.Time) string {
	return prefix + "_" + t.Format("20060102") + ".xlsx"
}
