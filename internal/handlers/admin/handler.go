package admin

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"plating/internal/masterdata"
	"plating/internal/members"
	"plating/internal/response"
	"plating/internal/validation"
)

// Handler holds dependencies for the master-data and member admin screens.
type Handler struct {
	// Named maps a URL segment ("vendors", "groups", "sections",
	// "control-lots") to its screen.
	Named        map[string]*masterdata.NamedScreen
	Parts        *masterdata.PartScreen
	PartTransfer masterdata.Transfer
	Members      *members.Service
	Notify       masterdata.Notifier
	Log          *slog.Logger
	Now          func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func parseID(w http.ResponseWriter, idStr string) (int, bool) {
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		response.Err(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// readUpload returns the multipart "file" field of an import request.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxSpreadsheetSize+1<<20)
	if err := r.ParseMultipartForm(validation.MaxSpreadsheetSize); err != nil {
		response.Err(w, "Invalid multipart form", http.StatusBadRequest)
		return "", nil, false
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		response.Err(w, "file is required", http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Err(w, "Failed to read upload", http.StatusBadRequest)
		return "", nil, false
	}
	return fh.Filename, data, true
}
