// Package members is the member admin screen: the filtered member list with
// on-process status, create/edit/delete guarded against pending work, and
// spreadsheet import/export.
package members

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"plating/internal/masterdata"
	"plating/internal/models"
	"plating/internal/validation"
)

type Member = models.Member

// Backend is the user resource; backend.Resource[models.Member] implements it.
type Backend interface {
	masterdata.Backend[Member]
	masterdata.Transfer
}

// Headers are the columns a member import must have.
var Headers = []string{"EmpNo", "RFID", "Name", "Role", "Group", "Section", "Password"}

const all = "all"

// On-process states of a member.
const (
	None    = "none"
	Issue   = "issue"
	Receive = "receive"
	Both    = "both"
)

// OnProcess classifies a member by the open headers they own.
func OnProcess(m Member) string {
	i, r := m.Issue.HasPending, m.Receive.HasPending
	switch {
	case i && r:
		return Both
	case i:
		return Issue
	case r:
		return Receive
	}
	return None
}

// Filter is the member list filter. EmpNo and Name are substring matches;
// the rest are exact, with "all" or "" matching everything.
type Filter struct {
	EmpNo     string `json:"empNo"`
	Name      string `json:"name"`
	Group     string `json:"group"`
	Section   string `json:"section"`
	Role      string `json:"role"`
	OnProcess string `json:"onProcess"`
}

// ParseFilter reads a Filter from query parameters.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		EmpNo:     q.Get("empNo"),
		Name:      q.Get("name"),
		Group:     q.Get("group"),
		Section:   q.Get("section"),
		Role:      q.Get("role"),
		OnProcess: q.Get("onProcess"),
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "onProcess", f.OnProcess, validation.ValidOnProcessFilter)
	return f, ve.Err()
}

func exact(v, q string) bool {
	return q == "" || q == all || v == q
}

func contains(v, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	return q == "" || strings.Contains(strings.ToLower(v), q)
}

func (f Filter) Match(m Member) bool {
	return contains(m.EmpNo, f.EmpNo) &&
		contains(m.Name, f.Name) &&
		exact(m.GroupName, f.Group) &&
		exact(m.SectionName, f.Section) &&
		exact(m.Role, f.Role) &&
		exact(OnProcess(m), f.OnProcess)
}

// Apply returns the members matching f, in list order.
func (f Filter) Apply(rows []Member) []Member {
	out := make([]Member, 0, len(rows))
	for _, m := range rows {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// ExportFilters is the export request body; unset filters are omitted.
func (f Filter) ExportFilters() map[string]string {
	out := map[string]string{}
	if s := strings.TrimSpace(f.EmpNo); s != "" {
		out["empNo"] = s
	}
	if s := strings.TrimSpace(f.Name); s != "" {
		out["name"] = s
	}
	set := func(key, v string) {
		if v != "" && v != all {
			out[key] = v
		}
	}
	set("groupName", f.Group)
	set("sectionName", f.Section)
	set("role", f.Role)
	set("onProcess", f.OnProcess)
	return out
}

// Options are the dropdown values derived from the full member list.
type Options struct {
	Groups   []string `json:"groups"`
	Sections []string `json:"sections"`
	Roles    []string `json:"roles"`
}

func distinct(rows []Member, get func(Member) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range rows {
		v := get(m)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func OptionsOf(rows []Member) Options {
	return Options{
		Groups:   distinct(rows, func(m Member) string { return m.GroupName }),
		Sections: distinct(rows, func(m Member) string { return m.SectionName }),
		Roles:    distinct(rows, func(m Member) string { return m.Role }),
	}
}

// Listing is one render of the screen.
type Listing struct {
	Members []Member `json:"members"`
	Options Options  `json:"options"`
	Total   int      `json:"total"`
}

func listing(rows []Member, f Filter) *Listing {
	view := f.Apply(rows)
	return &Listing{Members: view, Options: OptionsOf(rows), Total: len(rows)}
}

// Service runs the member admin operations against the backend.
type Service struct {
	api    Backend
	notify masterdata.Notifier
}

func New(api Backend, n masterdata.Notifier) *Service {
	return &Service{api: api, notify: n}
}

func (s *Service) List(ctx context.Context, f Filter) (*Listing, error) {
	rows, err := s.api.List(ctx)
	if err != nil {
		return nil, err
	}
	return listing(rows, f), nil
}

// Validate checks a create or edit form. The password may be left empty on
// edit to keep the current one.
func Validate(in models.MemberInput, edit bool) *validation.ValidationErrors {
	ve := &validation.ValidationErrors{}
	if edit {
		validation.RequireID(ve, "id", in.ID)
	}
	validation.RequireFieldMsg(ve, "empNo", in.EmpNo, "โปรดกรอก EmpNo")
	validation.RequireFieldMsg(ve, "role", in.Role, "โปรดเลือก Role")
	validation.ValidateEnum(ve, "role", in.Role, validation.ValidMemberRoles)
	validation.RequireFieldMsg(ve, "name", in.Name, "โปรดกรอก Name")
	if !edit {
		validation.RequireFieldMsg(ve, "password", in.Password, "โปรดกรอก Password")
	}
	validation.RequireFieldMsg(ve, "rfId", in.RfID, "โปรดกรอก RFID")
	if in.GroupID <= 0 {
		ve.Add("groupId", "โปรดเลือก Group")
	}
	if in.SectionID <= 0 {
		ve.Add("sectionId", "โปรดเลือก Section")
	}
	validation.ValidateMaxLength(ve, "name", in.Name, validation.MaxStringLength)
	return ve
}

func trim(in models.MemberInput) models.MemberInput {
	in.EmpNo = strings.TrimSpace(in.EmpNo)
	in.Role = strings.TrimSpace(in.Role)
	in.Name = strings.TrimSpace(in.Name)
	in.RfID = strings.TrimSpace(in.RfID)
	return in
}

// Create adds a member and returns the re-fetched listing under f.
func (s *Service) Create(ctx context.Context, in models.MemberInput, f Filter) (*Listing, error) {
	in = trim(in)
	if ve := Validate(in, false); ve.HasErrors() {
		return nil, ve
	}
	in.ID = 0
	if err := s.api.Create(ctx, in); err != nil {
		return nil, mapError(err, nil, false)
	}
	s.changed("create", nil)
	return s.List(ctx, f)
}

// find fetches the list and returns the member with id.
func (s *Service) find(ctx context.Context, id int) (*Member, error) {
	rows, err := s.api.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i], nil
		}
	}
	return nil, ErrNotFound
}

func guard(m *Member, del bool) error {
	if !m.Issue.HasPending && !m.Receive.HasPending {
		return nil
	}
	return &OnProcessError{EmpNo: m.EmpNo, Issue: m.Issue.HasPending, Receive: m.Receive.HasPending, Delete: del}
}

// Edit saves a member. Members with pending work are refused before any write.
func (s *Service) Edit(ctx context.Context, in models.MemberInput, f Filter) (*Listing, error) {
	in = trim(in)
	if ve := Validate(in, true); ve.HasErrors() {
		return nil, ve
	}
	m, err := s.find(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := guard(m, false); err != nil {
		return nil, err
	}
	if err := s.api.Edit(ctx, in); err != nil {
		return nil, mapError(err, m, true)
	}
	s.changed("update", in.ID)
	return s.List(ctx, f)
}

// Delete removes a member. Members with pending work are refused before any write.
func (s *Service) Delete(ctx context.Context, id int, f Filter) (*Listing, error) {
	if id <= 0 {
		ve := &validation.ValidationErrors{}
		validation.RequireID(ve, "id", id)
		return nil, ve
	}
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(m, true); err != nil {
		return nil, err
	}
	if err := s.api.Delete(ctx, id); err != nil {
		return nil, mapError(err, m, false)
	}
	s.changed("delete", id)
	return s.List(ctx, f)
}

// Import checks and uploads a member workbook.
func (s *Service) Import(ctx context.Context, filename string, data []byte) (*models.ImportSummary, error) {
	sum, err := masterdata.Import(ctx, s.api, filename, data, Headers, nil)
	if err != nil {
		return nil, err
	}
	s.changed("create", nil)
	return sum, nil
}

// Export downloads the members matching f as Member_YYYYMMDD.xlsx.
func (s *Service) Export(ctx context.Context, f Filter, now time.Time) (string, []byte, error) {
	return masterdata.Export(ctx, s.api, "Member", f.ExportFilters(), now)
}

func (s *Service) changed(action string, id any) {
	if s.notify != nil {
		s.notify.BroadcastChange(s.api.Name(), action, id)
	}
}
