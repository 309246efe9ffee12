package admin

import (
	"net/http"
	"strconv"

	"plating/internal/masterdata"
	"plating/internal/response"
)

func (h *Handler) named(w http.ResponseWriter, kind string) *masterdata.NamedScreen {
	s, ok := h.Named[kind]
	if !ok {
		response.Err(w, "not found", http.StatusNotFound)
		return nil
	}
	return s
}

func namedQuery(r *http.Request) masterdata.Query {
	return masterdata.Query{Name: r.URL.Query().Get("name")}
}

// ListNamed lists a vendor, group, section or control lot collection, filtered by ?name=.
func (h *Handler) ListNamed(w http.ResponseWriter, r *http.Request, kind string) {
	s := h.named(w, kind)
	if s == nil {
		return
	}
	rows, err := s.List(r.Context(), namedQuery(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSONMeta(w, rows, len(rows))
}

func (h *Handler) CreateNamed(w http.ResponseWriter, r *http.Request, kind string) {
	s := h.named(w, kind)
	if s == nil {
		return
	}
	var d masterdata.NamedDraft
	if err := response.DecodeBody(r, &d); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rows, err := s.Create(r.Context(), d)
	if err != nil {
		response.FromError(w, err)
		return
	}
	rows = s.Filter(rows, namedQuery(r))
	response.JSONMeta(w, rows, len(rows))
}

func (h *Handler) UpdateNamed(w http.ResponseWriter, r *http.Request, kind, idStr string) {
	s := h.named(w, kind)
	if s == nil {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	var d masterdata.NamedDraft
	if err := response.DecodeBody(r, &d); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	d.ID = id
	rows, err := s.Edit(r.Context(), d)
	if err != nil {
		response.FromError(w, err)
		return
	}
	rows = s.Filter(rows, namedQuery(r))
	response.JSONMeta(w, rows, len(rows))
}

func (h *Handler) DeleteNamed(w http.ResponseWriter, r *http.Request, kind, idStr string) {
	s := h.named(w, kind)
	if s == nil {
		return
	}
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	rows, err := s.Delete(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	rows = s.Filter(rows, namedQuery(r))
	response.JSONMeta(w, rows, len(rows))
}

func partQuery(r *http.Request) masterdata.Query {
	q := r.URL.Query()
	g, _ := strconv.Atoi(q.Get("groupId"))
	return masterdata.Query{ItemNo: q.Get("itemNo"), ItemName: q.Get("itemName"), GroupID: g}
}

// ListParts lists part masters filtered by ?itemNo=, ?itemName= and ?groupId=.
func (h *Handler) ListParts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Parts.List(r.Context(), partQuery(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSONMeta(w, rows, len(rows))
}

func (h *Handler) CreatePart(w http.ResponseWriter, r *http.Request) {
	var d masterdata.PartDraft
	if err := response.DecodeBody(r, &d); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	rows, err := h.Parts.Create(r.Context(), d)
	if err != nil {
		response.FromError(w, err)
		return
	}
	rows = h.Parts.Filter(rows, partQuery(r))
	response.JSONMeta(w, rows, len(rows))
}

func (h *Handler) UpdatePart(w http.ResponseWriter, r *http.Request, idStr string) {
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	var d masterdata.PartDraft
	if err := response.DecodeBody(r, &d); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	d.ID = id
	rows, err := h.Parts.Edit(r.Context(), d)
	if err != nil {
		response.FromError(w, err)
		return
	}
	rows = h.Parts.Filter(rows, partQuery(r))
	response.JSONMeta(w, rows, len(rows))
}

func (h *Handler) DeletePart(w http.ResponseWriter, r *http.Request, idStr string) {
	id, ok := parseID(w, idStr)
	if !ok {
		return
	}
	rows, err := h.Parts.Delete(r.Context(), id)
	if err != nil {
		response.FromError(w, err)
		return
	}
	rows = h.Parts.Filter(rows, partQuery(r))
	response.JSONMeta(w, rows, len(rows))
}

// ImportParts uploads a part master workbook and returns the backend's summary.
func (h *Handler) ImportParts(w http.ResponseWriter, r *http.Request) {
	name, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	sum, err := masterdata.ImportParts(r.Context(), h.PartTransfer, name, data)
	if err != nil {
		response.FromError(w, err)
		return
	}
	h.Log.Info("part master import", "file", name, "inserted", sum.Summary.Inserted,
		"duplicates", sum.Summary.SkippedDuplicate, "invalid", sum.Summary.Invalid)
	if h.Notify != nil {
		h.Notify.BroadcastChange(h.PartTransfer.Name(), "create", nil)
	}
	response.JSON(w, sum)
}

// ExportParts downloads the part masters matching the list filter.
func (h *Handler) ExportParts(w http.ResponseWriter, r *http.Request) {
	name, b, err := masterdata.Export(r.Context(), h.PartTransfer, "PartMaster", masterdata.PartFilters(partQuery(r)), h.now())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.File(w, name, response.XLSX, b)
}
