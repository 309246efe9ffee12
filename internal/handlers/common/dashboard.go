package common

import (
	"net/http"

	"plating/internal/dashboard"
	"plating/internal/response"
	"plating/internal/session"
	"plating/internal/spreadsheet"
)

func (h *Handler) report(w http.ResponseWriter, r *http.Request) *dashboard.Report {
	f, err := dashboard.ParseFilter(r.URL.Query())
	if err != nil {
		response.FromError(w, err)
		return nil
	}
	var pal *dashboard.Palette
	if s := session.FromContext(r.Context()); s != nil && h.Palettes != nil {
		pal = h.Palettes.For(s.Token)
	} else {
		pal = dashboard.NewPalette()
	}
	rep, err := h.Dashboard.Build(r.Context(), f, pal)
	if err != nil {
		response.FromError(w, err)
		return nil
	}
	return rep
}

// GetDashboard returns the filtered lot tables and the vendor summary.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	rep := h.report(w, r)
	if rep == nil {
		return
	}
	response.JSON(w, rep)
}

// ExportDashboard downloads the current report as a workbook.
func (h *Handler) ExportDashboard(w http.ResponseWriter, r *http.Request) {
	rep := h.report(w, r)
	if rep == nil {
		return
	}
	b, err := rep.XLSX()
	if err != nil {
		h.Log.Error("dashboard export", "err", err)
		response.Err(w, "export failed", http.StatusInternalServerError)
		return
	}
	h.Log.Info("dashboard exported", "filter", rep.Filter.String(), "issue", len(rep.Issue), "receive", len(rep.Receive))
	response.File(w, spreadsheet.Filename("Dashboard", h.now()), response.XLSX, b)
}
