// Package masterdata implements the list screens for vendors, groups,
// sections, control lots and part masters: fetch everything, filter in
// memory, mutate, then fetch everything again.
package masterdata

import (
	"context"
	"strings"

	"plating/internal/models"
	"plating/internal/validation"
)

// Backend is one master-data collection; backend.Resource[T] implements it.
type Backend[T any] interface {
	Name() string
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, payload any) error
	Edit(ctx context.Context, payload any) error
	Delete(ctx context.Context, id int) error
}

// Notifier announces master-data changes to other screens; *websocket.Hub implements it.
type Notifier interface {
	BroadcastChange(resourceType, action string, id any)
}

// Query holds every list filter. Each screen reads the fields it supports;
// GroupID 0 means all groups.
type Query struct {
	Name     string
	ItemNo   string
	ItemName string
	GroupID  int
}

// contains is the screens' substring test: trimmed, case-insensitive, empty matches all.
func contains(s, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	return q == "" || strings.Contains(strings.ToLower(s), q)
}

// Screen is a CRUD list over T edited through drafts of type D.
type Screen[T any, D any] struct {
	api      Backend[T]
	notify   Notifier
	match    func(T, Query) bool
	validate func(d D, editing bool) *validation.ValidationErrors
	payload  func(d D, editing bool) any
	idOf     func(D) int
}

func (s *Screen[T, D]) Name() string { return s.api.Name() }

// List fetches the collection and applies q.
func (s *Screen[T, D]) List(ctx context.Context, q Query) ([]T, error) {
	rows, err := s.api.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.Filter(rows, q), nil
}

// Filter applies q to rows already fetched.
func (s *Screen[T, D]) Filter(rows []T, q Query) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if s.match(r, q) {
			out = append(out, r)
		}
	}
	return out
}

// Create validates d, creates it, and returns the re-fetched collection.
func (s *Screen[T, D]) Create(ctx context.Context, d D) ([]T, error) {
	if ve := s.validate(d, false); ve.HasErrors() {
		return nil, ve
	}
	if err := s.api.Create(ctx, s.payload(d, false)); err != nil {
		return nil, err
	}
	s.changed("create", nil)
	return s.api.List(ctx)
}

// Edit validates d, saves it, and returns the re-fetched collection.
func (s *Screen[T, D]) Edit(ctx context.Context, d D) ([]T, error) {
	ve := s.validate(d, true)
	if s.idOf(d) <= 0 {
		ve.Add("id", "is required")
	}
	if ve.HasErrors() {
		return nil, ve
	}
	if err := s.api.Edit(ctx, s.payload(d, true)); err != nil {
		return nil, err
	}
	s.changed("update", s.idOf(d))
	return s.api.List(ctx)
}

// Delete removes the row and returns the re-fetched collection.
func (s *Screen[T, D]) Delete(ctx context.Context, id int) ([]T, error) {
	if id <= 0 {
		ve := &validation.ValidationErrors{}
		ve.Add("id", "is required")
		return nil, ve
	}
	if err := s.api.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.changed("delete", id)
	return s.api.List(ctx)
}

func (s *Screen[T, D]) changed(action string, id any) {
	if s.notify != nil {
		s.notify.BroadcastChange(s.api.Name(), action, id)
	}
}

// NamedDraft is the form of the id+name screens.
type NamedDraft struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NamedScreen is the screen type of vendors, groups, sections and control lots.
type NamedScreen = Screen[models.NamedRow, NamedDraft]

// Named builds the screen for an id+name collection, filtered by name.
func Named(api Backend[models.NamedRow], n Notifier) *NamedScreen {
	return &NamedScreen{
		api:    api,
		notify: n,
		match: func(r models.NamedRow, q Query) bool {
			return contains(r.Name, q.Name)
		},
		validate: func(d NamedDraft, _ bool) *validation.ValidationErrors {
			ve := &validation.ValidationErrors{}
			validation.RequireFieldMsg(ve, "name", d.Name, "กรุณากรอกชื่อ")
			validation.ValidateMaxLength(ve, "name", d.Name, validation.MaxStringLength)
			return ve
		},
		payload: func(d NamedDraft, editing bool) any {
			name := strings.TrimSpace(d.Name)
			if editing {
				return map[string]any{"id": d.ID, "name": name}
			}
			return map[string]any{"role": "admin", "name": name}
		},
		idOf: func(d NamedDraft) int { return d.ID },
	}
}

// PartDraft is the part master form.
type PartDraft struct {
	ID       int    `json:"id"`
	ItemNo   string `json:"itemNo"`
	ItemName string `json:"itemName"`
	GroupID  int    `json:"groupId"`
}

type PartScreen = Screen[models.PartMaster, PartDraft]

// Parts builds the part master screen, filtered by item number, item name and group.
func Parts(api Backend[models.PartMaster], n Notifier) *PartScreen {
	return &PartScreen{
		api:    api,
		notify: n,
		match: func(p models.PartMaster, q Query) bool {
			if !contains(p.ItemNo, q.ItemNo) || !contains(p.ItemName, q.ItemName) {
				return false
			}
			return q.GroupID == 0 || p.GroupID == q.GroupID
		},
		validate: func(d PartDraft, _ bool) *validation.ValidationErrors {
			ve := &validation.ValidationErrors{}
			validation.RequireFieldMsg(ve, "itemNo", d.ItemNo, "กรุณากรอก Item No.")
			validation.RequireFieldMsg(ve, "itemName", d.ItemName, "กรุณากรอก Item Name")
			if d.GroupID <= 0 {
				ve.Add("groupId", "กรุณาเลือก Group")
			}
			return ve
		},
		payload: func(d PartDraft, editing bool) any {
			p := map[string]any{
				"itemNo":   strings.TrimSpace(d.ItemNo),
				"itemName": strings.TrimSpace(d.ItemName),
				"groupId":  d.GroupID,
			}
			if editing {
				p["id"] = d.ID
			} else {
				p["role"] = "admin"
			}
			return p
		},
		idOf: func(d PartDraft) int { return d.ID },
	}
}
