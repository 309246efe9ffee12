package dashboard

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"plating/internal/models"
	"plating/internal/validation"
)

// All bypasses a categorical filter, as does an empty value.
const All = "All"

// Filter is the dashboard's criteria. From and To are YYYY-MM-DD days in
// the business timezone, both inclusive.
type Filter struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Shift  string `json:"shift"`
	Group  string `json:"group"`
	Vendor string `json:"vendor"`
	Status string `json:"status"`
}

// ParseFilter reads a filter from query parameters.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Shift:  q.Get("shift"),
		Group:  q.Get("group"),
		Vendor: q.Get("vendor"),
		Status: q.Get("status"),
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateDate(ve, "from", f.From)
	validation.ValidateDate(ve, "to", f.To)
	if f.From != "" && f.To != "" && f.From > f.To {
		ve.Add("to", "must not be before from")
	}
	if ve.HasErrors() {
		return Filter{}, ve
	}
	return f, nil
}

func (f Filter) String() string {
	return fmt.Sprintf("%s..%s shift=%s group=%s vendor=%s status=%s", f.From, f.To, f.Shift, f.Group, f.Vendor, f.Status)
}

// matches is the case-insensitive exact comparison used by every categorical filter.
func matches(want, got string) bool {
	want = strings.TrimSpace(want)
	if want == "" || strings.EqualFold(want, All) {
		return true
	}
	return strings.EqualFold(want, strings.TrimSpace(got))
}

// inRange compares the server-recorded submission time, not the operator's
// display time, against the inclusive day range.
func (f Filter) inRange(r models.LotRow, loc *time.Location) bool {
	if f.From == "" && f.To == "" {
		return true
	}
	if r.SentDate.IsZero() {
		return false
	}
	day := r.SentDate.In(loc).Format("2006-01-02")
	if f.From != "" && day < f.From {
		return false
	}
	if f.To != "" && day > f.To {
		return false
	}
	return true
}

// Base reports whether r passes the date, shift and group criteria, the
// set the vendor summary is computed from.
func (f Filter) Base(r models.LotRow, loc *time.Location) bool {
	return f.inRange(r, loc) && matches(f.Shift, r.Shift) && matches(f.Group, r.GroupName)
}

// Detail reports whether r passes every criterion, as the detail tables require.
func (f Filter) Detail(r models.LotRow, loc *time.Location) bool {
	return f.Base(r, loc) && matches(f.Vendor, r.VendorName) && matches(f.Status, r.Status)
}

// Apply returns the rows passing keep, preserving order.
func Apply(rows []models.LotRow, keep func(models.LotRow) bool) []models.LotRow {
	out := make([]models.LotRow, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
