package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"plating/internal/backend"
	"plating/internal/models"
	"plating/internal/validation"
)

// JSON writes a successful API response with the given data.
func JSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.APIResponse{Data: data})
}

// JSONMeta writes a successful list response with its total.
func JSONMeta(w http.ResponseWriter, data interface{}, total int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.APIResponse{
		Data: data,
		Meta: &models.Meta{Total: total},
	})
}

// JSONNotice writes a successful response carrying an operator notice.
func JSONNotice(w http.ResponseWriter, data interface{}, level, msg string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.APIResponse{
		Data:   data,
		Notice: &models.Notice{Level: level, Message: msg},
	})
}

// Err writes a JSON error response with the given message and HTTP status code.
func Err(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ErrBody writes an arbitrary JSON error body.
func ErrBody(w http.ResponseWriter, body interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// Rejection is a domain refusal the operator sees as a titled dialog.
type Rejection interface {
	error
	Title() string
}

// FromError maps the error taxonomy onto HTTP. Validation failures are 400
// with their fields and domain rejections are 409 with a title. Backend
// errors keep their 4xx status and carry the failing operation; transport
// and 5xx failures become 502.
func FromError(w http.ResponseWriter, err error) {
	var ve *validation.ValidationErrors
	if errors.As(err, &ve) {
		ErrBody(w, map[string]interface{}{"error": ve.First(), "fields": ve.Errors}, http.StatusBadRequest)
		return
	}
	var rj Rejection
	if errors.As(err, &rj) {
		body := map[string]interface{}{"error": rj.Error(), "title": rj.Title()}
		if c := backend.CodeOf(err); c != "" {
			body["code"] = c
		}
		ErrBody(w, body, http.StatusConflict)
		return
	}
	var ae *backend.APIError
	if errors.As(err, &ae) {
		code := http.StatusBadGateway
		if ae.Status >= 400 && ae.Status < 500 {
			code = ae.Status
		}
		body := map[string]interface{}{"error": ae.Message, "op": ae.Op}
		if c := ae.Code(); c != "" {
			body["code"] = c
		}
		ErrBody(w, body, code)
		return
	}
	Err(w, err.Error(), http.StatusInternalServerError)
}

// DecodeBody decodes a JSON request body into the given value.
func DecodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// File writes b as an attachment download.
func File(w http.ResponseWriter, filename, contentType string, b []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", validation.SanitizeFilename(filename)))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Write(b)
}

// XLSX is the spreadsheet content type used by every export.
const XLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
