package admin

import (
	"errors"
	"net/http"

	"plating/internal/members"
	"plating/internal/models"
	"plating/internal/response"
)

// memberFilter reads the list filter. It writes the 400 itself.
func memberFilter(w http.ResponseWriter, r *http.Request) (members.Filter, bool) {
	f, err := members.ParseFilter(r.URL.Query())
	if err != nil {
		response.FromError(w, err)
		return f, false
	}
	return f, true
}

func memberFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, members.ErrNotFound) {
		response.Err(w, err.Error(), http.StatusNotFound)
		return
	}
	response.FromError(w, err)
}

// ListMembers returns the filtered members, the dropdown options and the unfiltered total.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	f, ok := memberFilter(w, r)
	if !ok {
		return
	}
	l, err := h.Members.List(r.Context(), f)
	if err != nil {
		memberFailed(w, err)
		return
	}
	response.JSON(w, l)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	f, ok := memberFilter(w, r)
	if !ok {
		return
	}
	var in models.MemberInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	l, err := h.Members.Create(r.Context(), in, f)
	if err != nil {
		memberFailed(w, err)
		return
	}
	response.JSON(w, l)
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request, idStr string) {
	f, ok := memberFilter(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	var in models.MemberInput
	if err := response.DecodeBody(r, &in); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	in.ID = id
	l, err := h.Members.Edit(r.Context(), in, f)
	if err != nil {
		memberFailed(w, err)
		return
	}
	response.JSON(w, l)
}

func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request, idStr string) {
	f, ok := memberFilter(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	l, err := h.Members.Delete(r.Context(), id, f)
	if err != nil {
		memberFailed(w, err)
		return
	}
	response.JSON(w, l)
}

func (h *Handler) ImportMembers(w http.ResponseWriter, r *http.Request) {
	name, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	sum, err := h.Members.Import(r.Context(), name, data)
	if err != nil {
		memberFailed(w, err)
		return
	}
	h.Log.Info("member import", "file", name, "inserted", sum.Summary.Inserted,
		"duplicates", sum.Summary.SkippedDuplicate, "invalid", sum.Summary.Invalid)
	response.JSON(w, sum)
}

func (h *Handler) ExportMembers(w http.ResponseWriter, r *http.Request) {
	f, ok := memberFilter(w, r)
	if !ok {
		return
	}
	name, b, err := h.Members.Export(r.Context(), f, h.now())
	if err != nil {
		memberFailed(w, err)
		return
	}
	response.File(w, name, response.XLSX, b)
}
