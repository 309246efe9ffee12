package masterdata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"plating/internal/models"
	"plating/internal/spreadsheet"
	"plating/internal/validation"
)

// Transfer is a collection's spreadsheet import and export; backend.Resource[T] implements it.
type Transfer interface {
	Name() string
	Import(ctx context.Context, filename string, file io.Reader, fields map[string]string) (*models.ImportSummary, error)
	Export(ctx context.Context, filters any) ([]byte, error)
}

// PartHeaders are the columns a part master import must have.
var PartHeaders = []string{"ItemNo", "ItemName", "Group"}

// Import checks the upload and hands it to the backend. Workbooks that can
// be read locally must carry headers in their first row.
func Import(ctx context.Context, t Transfer, filename string, data []byte, headers []string, fields map[string]string) (*models.ImportSummary, error) {
	ve := &validation.ValidationErrors{}
	validation.ValidateSpreadsheetUpload(ve, filename, int64(len(data)))
	if ve.HasErrors() {
		return nil, ve
	}
	if spreadsheet.Preflightable(filename) {
		if err := spreadsheet.CheckHeaders(data, headers); err != nil {
			ve.Add("file", err.Error())
			return nil, errors.Join(ve, err)
		}
	}
	return t.Import(ctx, filename, bytes.NewReader(data), fields)
}

// ImportParts uploads a part master workbook as an admin import.
func ImportParts(ctx context.Context, t Transfer, filename string, data []byte) (*models.ImportSummary, error) {
	return Import(ctx, t, filename, data, PartHeaders, map[string]string{"role": "admin"})
}

// PartFilters is the export request body; nil fields mean "no filter".
func PartFilters(q Query) map[string]any {
	f := map[string]any{"itemNo": nil, "itemName": nil, "groupId": nil}
	if s := strings.TrimSpace(q.ItemNo); s != "" {
		f["itemNo"] = s
	}
	if s := strings.TrimSpace(q.ItemName); s != "" {
		f["itemName"] = s
	}
	if q.GroupID > 0 {
		f["groupId"] = q.GroupID
	}
	return f
}

// Export asks the backend for a workbook and names it with prefix and the day of now.
func Export(ctx context.Context, t Transfer, prefix string, filters any, now time.Time) (string, []byte, error) {
	b, err := t.Export(ctx, filters)
	if err != nil {
		return "", nil, err
	}
	return spreadsheet.Filename(prefix, now), b, nil
}
