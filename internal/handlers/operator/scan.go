package operator

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"plating/internal/response"
	"plating/internal/scan"
)

// GetState loads the operator's open header and boxes, as on screen mount.
// Dropdown options are fetched once per workflow.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	if err := wf.Load(r.Context()); err != nil {
		fail(w, err)
		return
	}
	if wf.Snapshot().Options == nil && h.Catalog != nil {
		if err := wf.LoadOptions(r.Context(), h.Catalog); err != nil {
			h.Log.Warn("load header options", "kind", kind, "err", err)
		}
	}
	response.JSON(w, wf.Snapshot())
}

// SaveHeader creates or revises the header.
func (h *Handler) SaveHeader(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	var f scan.HeaderForm
	if err := response.DecodeBody(r, &f); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	out, err := wf.SaveHeader(r.Context(), f)
	reply(w, wf, out, err)
}

func (h *Handler) EditHeader(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	reply(w, wf, scan.Outcome{}, wf.EditHeader())
}

func (h *Handler) CancelEdit(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	reply(w, wf, scan.Outcome{}, wf.CancelEdit(r.Context()))
}

// SelectItem picks the header's item and fills in its name.
func (h *Handler) SelectItem(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	var body struct {
		ItemNo string `json:"itemNo"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	reply(w, wf, scan.Outcome{}, wf.SelectItem(strings.TrimSpace(body.ItemNo)))
}

// SubmitField records one scanned field. Submitting the last field confirms the box.
func (h *Handler) SubmitField(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	var body struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	field, err := scan.ParseField(body.Field)
	if err != nil {
		response.Err(w, err.Error(), http.StatusBadRequest)
		return
	}
	out, err := wf.SubmitField(r.Context(), field, body.Value)
	reply(w, wf, out, err)
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	out, err := wf.Confirm(r.Context())
	reply(w, wf, out, err)
}

func (h *Handler) ClearForm(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	reply(w, wf, scan.Outcome{}, wf.ClearForm())
}

// UpdateQty corrects a saved box's quantity. qty may arrive as a JSON number or string.
func (h *Handler) UpdateQty(w http.ResponseWriter, r *http.Request, kind, idStr string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "invalid box id", http.StatusBadRequest)
		return
	}
	var body struct {
		Qty json.RawMessage `json:"qty"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	raw := strings.Trim(strings.TrimSpace(string(body.Qty)), `"`)
	out, err := wf.UpdateQty(r.Context(), id, raw)
	reply(w, wf, out, err)
}

func (h *Handler) DeleteBox(w http.ResponseWriter, r *http.Request, kind, idStr string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.Err(w, "invalid box id", http.StatusBadRequest)
		return
	}
	out, err := wf.DeleteBox(r.Context(), id)
	reply(w, wf, out, err)
}

func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	out, err := wf.ClearAll(r.Context())
	reply(w, wf, out, err)
}

// Commit finalizes a full receive lot.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request, kind string) {
	wf := h.workflow(w, r, kind)
	if wf == nil {
		return
	}
	out, err := wf.Commit(r.Context())
	reply(w, wf, out, err)
}
