package validation

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a structured validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects multiple field errors.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

// First returns the first error's message, which is what the operator sees in the toast.
func (ve *ValidationErrors) First() string {
	if len(ve.Errors) == 0 {
		return ""
	}
	return ve.Errors[0].Message
}

// Err returns ve when it holds errors and nil otherwise.
func (ve *ValidationErrors) Err() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// RequireFieldMsg checks a required string field is non-empty, reporting msg to the operator.
func RequireFieldMsg(ve *ValidationErrors, field, value, msg string) {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, msg)
	}
}

// RequireID checks a reference id was chosen.
func RequireID(ve *ValidationErrors, field string, id int) {
	if id <= 0 {
		ve.Add(field, "is required")
	}
}

// ValidateEnum checks a field is one of allowed values.
func ValidateEnum(ve *ValidationErrors, field, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	ve.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// ValidateDate checks a field is a valid date (YYYY-MM-DD).
func ValidateDate(ve *ValidationErrors, field, value string) {
	if value == "" {
		return
	}
	_, err := time.Parse("2006-01-02", value)
	if err != nil {
		ve.Add(field, "must be a valid date (YYYY-MM-DD)")
	}
}

// Maximum value constants.
const (
	MaxQuantity     = 1000000
	MaxBoxesPerLot  = 10000
	MaxStringLength = 200
)

// ValidateMaxLength checks string doesn't exceed max length.
func ValidateMaxLength(ve *ValidationErrors, field, value string, max int) {
	if len(value) > max {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// ParseQty parses a box quantity: a finite whole number greater than zero.
func ParseQty(s string) (int, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	if f != math.Trunc(f) || f > MaxQuantity {
		return 0, false
	}
	return int(f), true
}

// Spreadsheet uploads accepted for import.
var SpreadsheetExtensions = []string{".xlsx", ".xls"}

// MaxSpreadsheetSize bounds import uploads.
const MaxSpreadsheetSize = 10 * 1024 * 1024

// ValidateSpreadsheetUpload checks an import file's name and size.
func ValidateSpreadsheetUpload(ve *ValidationErrors, filename string, size int64) {
	if size == 0 {
		ve.Add("file", "cannot be empty (0 bytes)")
		return
	}
	if size > MaxSpreadsheetSize {
		ve.Add("file", fmt.Sprintf("exceeds maximum size of %d MB", MaxSpreadsheetSize/(1024*1024)))
		return
	}
	ValidateFilename(ve, filename)
	ext := strings.ToLower(filepath.Ext(filename))
	for _, ok := range SpreadsheetExtensions {
		if ext == ok {
			return
		}
	}
	ve.Add("filename", fmt.Sprintf("file type not allowed: %q (allowed: %s)", ext, strings.Join(SpreadsheetExtensions, ", ")))
}

// ValidateFilename checks for path traversal and control characters.
func ValidateFilename(ve *ValidationErrors, filename string) {
	if filename == "" {
		ve.Add("filename", "is required")
		return
	}
	if strings.Contains(filename, "..") {
		ve.Add("filename", "contains invalid path traversal sequence (..)")
	}
	if strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\") {
		ve.Add("filename", "cannot be an absolute path")
	}
	if strings.Contains(filename, "\x00") {
		ve.Add("filename", "contains null bytes")
	}
	if strings.ContainsAny(filename, "\r\n") {
		ve.Add("filename", "contains line breaks")
	}
}

// SanitizeFilename removes path components and characters unsafe in a download header.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	r := strings.NewReplacer("\x00", "", "\r", "", "\n", "", "\"", "", "/", "_", "\\", "_", "..", "_")
	return r.Replace(filename)
}
