// Package dashboard filters issue and receive lots and totals them per vendor.
package dashboard

import (
	"context"
	"sort"
	"strings"
	"time"

	"plating/internal/models"
	"plating/internal/spreadsheet"
)

// DisplayLayout formats the operator-entered time on the tables.
const DisplayLayout = "01/02/2006 15:04"

// LotView is a lot row with its display fields derived.
type LotView struct {
	models.LotRow
	DisplayTime string `json:"displayTime"`
}

// Derive fills box count and quantity from the box list when present and
// formats the display time in loc.
func Derive(r models.LotRow, loc *time.Location) LotView {
	if len(r.Boxes) > 0 {
		r.BoxCount = len(r.Boxes)
		total := 0
		for _, b := range r.Boxes {
			total += b.Qty
		}
		r.TotalQty = total
	}
	if r.Boxes == nil {
		r.Boxes = []models.LotBox{}
	}
	t := r.SentDateByUser
	if t.IsZero() {
		t = r.SentDate
	}
	v := LotView{LotRow: r}
	if !t.IsZero() {
		v.DisplayTime = t.In(loc).Format(DisplayLayout)
	}
	return v
}

// LotLister lists the lots of one kind; *backend.LotAPI implements it.
type LotLister interface {
	ListLots(ctx context.Context) ([]models.LotRow, error)
}

// Options are the distinct values offered by the filter dropdowns.
type Options struct {
	Shifts   []string `json:"shifts"`
	Groups   []string `json:"groups"`
	Vendors  []string `json:"vendors"`
	Statuses []string `json:"statuses"`
}

// Report is one rendering of the dashboard.
type Report struct {
	Filter      Filter          `json:"filter"`
	Issue       []LotView       `json:"issue"`
	Receive     []LotView       `json:"receive"`
	Summary     []VendorSummary `json:"summary"`
	Options     Options         `json:"options"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Dashboard fetches both lot lists and builds reports from them.
type Dashboard struct {
	Issue   LotLister
	Receive LotLister
	Loc     *time.Location
	Now     func() time.Time
}

// Build fetches fresh lot lists and applies f.
func (d *Dashboard) Build(ctx context.Context, f Filter, pal *Palette) (*Report, error) {
	issue, err := d.Issue.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	receive, err := d.Receive.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	r := Compute(issue, receive, f, d.location(), pal)
	r.GeneratedAt = now()
	return r, nil
}

func (d *Dashboard) location() *time.Location {
	if d.Loc == nil {
		return time.UTC
	}
	return d.Loc
}

// Compute builds a report from already fetched rows. The summary uses the
// date, shift and group criteria only; vendor and status narrow the tables.
func Compute(issue, receive []models.LotRow, f Filter, loc *time.Location, pal *Palette) *Report {
	base := func(r models.LotRow) bool { return f.Base(r, loc) }
	detail := func(r models.LotRow) bool { return f.Detail(r, loc) }

	baseIssue := derive(Apply(issue, base), loc)
	baseReceive := derive(Apply(receive, base), loc)

	return &Report{
		Filter:  f,
		Issue:   derive(Apply(issue, detail), loc),
		Receive: derive(Apply(receive, detail), loc),
		Summary: Summarize(baseIssue, baseReceive, pal),
		Options: optionsOf(issue, receive),
	}
}

func derive(rows []models.LotRow, loc *time.Location) []LotView {
	out := make([]LotView, len(rows))
	for i, r := range rows {
		out[i] = Derive(r, loc)
	}
	return out
}

func optionsOf(sets ...[]models.LotRow) Options {
	shifts, groups, vendors, statuses := distinct{}, distinct{}, distinct{}, distinct{}
	for _, rows := range sets {
		for _, r := range rows {
			shifts.add(r.Shift)
			groups.add(r.GroupName)
			vendors.add(r.VendorName)
			statuses.add(r.Status)
		}
	}
	return Options{
		Shifts:   shifts.sorted(),
		Groups:   groups.sorted(),
		Vendors:  vendors.sorted(),
		Statuses: statuses.sorted(),
	}
}

// distinct collects case-insensitively unique non-empty values, keeping the first spelling.
type distinct map[string]string

func (d distinct) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	k := strings.ToLower(v)
	if _, ok := d[k]; !ok {
		d[k] = v
	}
}

func (d distinct) sorted() []string {
	out := make([]string, 0, len(d))
	for _, v := range d {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// XLSX renders the report as a workbook with summary, issue and receive sheets.
func (r *Report) XLSX() ([]byte, error) {
	summary := spreadsheet.Sheet{
		Name:    "Vendor Summary",
		Headers: []string{"Vendor", "Total Issue", "Total Receive", "Balance", "Receive Rate (%)", "Over Receive"},
	}
	for _, s := range r.Summary {
		summary.Rows = append(summary.Rows, []any{s.Vendor, s.TotalIssue, s.TotalReceive, s.Balance, s.ReceiveRate, s.OverReceive})
	}
	return spreadsheet.Build(summary, lotSheet("Issue", r.Issue), lotSheet("Receive", r.Receive))
}

func lotSheet(name string, lots []LotView) spreadsheet.Sheet {
	s := spreadsheet.Sheet{
		Name:    name,
		Headers: []string{"Date Time", "Lot No", "Shift", "Group", "Vendor", "Item No", "Item Name", "Box Count", "Total Qty", "Status"},
	}
	for _, l := range lots {
		s.Rows = append(s.Rows, []any{l.DisplayTime, l.LotNo, l.Shift, l.GroupName, l.VendorName, l.ItemNo, l.ItemName, l.BoxCount, l.TotalQty, l.Status})
	}
	return s
}
