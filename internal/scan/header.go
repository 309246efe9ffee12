package scan

import (
	"context"
	"strings"
	"time"

	"plating/internal/models"
	"plating/internal/validation"
)

// HeaderFormLayout is the datetime-local layout the header form exchanges.
const HeaderFormLayout = "2006-01-02T15:04"

// HeaderForm is the operator-editable part of a lot header.
type HeaderForm struct {
	SentDateByUser string `json:"sentDateByUser"`
	Shift          string `json:"shift"`
	VendorID       *int   `json:"venderId"`
	ControlLotID   *int   `json:"controlLotId"`
	ItemNo         string `json:"itemNo"`
	ItemName       string `json:"itemName"`
	QtyBox         int    `json:"qtyBox"`
}

// NewHeaderForm returns the empty form with the date preset to now.
func NewHeaderForm(now time.Time, loc *time.Location) HeaderForm {
	return HeaderForm{SentDateByUser: now.In(loc).Format(HeaderFormLayout)}
}

// HeaderFormOf pre-fills the form from a saved header.
func HeaderFormOf(h *models.LotHeader, loc *time.Location) HeaderForm {
	f := HeaderForm{
		Shift:    h.Shift,
		ItemNo:   h.ItemNo,
		ItemName: h.ItemName,
		QtyBox:   h.QtyBox,
	}
	if !h.SentDateByUser.IsZero() {
		f.SentDateByUser = h.SentDateByUser.In(loc).Format(HeaderFormLayout)
	}
	if h.VendorID != 0 {
		id := h.VendorID
		f.VendorID = &id
	}
	if h.ControlLotID != 0 {
		id := h.ControlLotID
		f.ControlLotID = &id
	}
	return f
}

// Validate checks the form before any backend call. saved is the number of
// boxes already on the header; the declared count may not drop below it.
func (f HeaderForm) Validate(loc *time.Location, saved int) *validation.ValidationErrors {
	ve := &validation.ValidationErrors{}
	if strings.TrimSpace(f.SentDateByUser) == "" {
		ve.Add("sentDateByUser", "เลือกวันที่")
	} else if _, err := time.ParseInLocation(HeaderFormLayout, f.SentDateByUser, loc); err != nil {
		ve.Add("sentDateByUser", "เลือกวันที่")
	}
	validation.RequireFieldMsg(ve, "shift", f.Shift, "เลือก Shift")
	if f.QtyBox <= 0 {
		ve.Add("qtyBox", "กรุณากรอกจำนวน BOX")
	} else if f.QtyBox > validation.MaxBoxesPerLot {
		ve.Add("qtyBox", "จำนวน BOX มากเกินไป")
	} else if f.QtyBox < saved {
		ve.Add("qtyBox", "จำนวน BOX น้อยกว่าที่สแกนแล้ว")
	}
	return ve
}

// Input builds the backend payload for owner. Validate must have passed.
func (f HeaderForm) Input(owner Owner, loc *time.Location) models.HeaderInput {
	sent, _ := time.ParseInLocation(HeaderFormLayout, f.SentDateByUser, loc)
	return models.HeaderInput{
		UserID:         owner.UserID,
		GroupID:        owner.GroupID,
		Shift:          strings.TrimSpace(f.Shift),
		VendorID:       f.VendorID,
		ControlLotID:   f.ControlLotID,
		ItemNo:         strings.TrimSpace(f.ItemNo),
		ItemName:       strings.TrimSpace(f.ItemName),
		QtyBox:         f.QtyBox,
		SentDateByUser: sent.UTC(),
	}
}

// Options are the header form's dropdown sources.
type Options struct {
	Vendors     []models.Vendor     `json:"vendors"`
	ControlLots []models.ControlLot `json:"controlLots"`
	Items       []models.PartMaster `json:"items"`
}

// OptionsSource loads the dropdown rows; backend.Catalog satisfies it.
type OptionsSource interface {
	Vendors(ctx context.Context) ([]models.Vendor, error)
	ControlLots(ctx context.Context) ([]models.ControlLot, error)
	PartsByGroup(ctx context.Context, groupID int) ([]models.PartMaster, error)
}

// LoadOptions fetches the three dropdown lists for a group.
func LoadOptions(ctx context.Context, src OptionsSource, groupID int) (*Options, error) {
	vendors, err := src.Vendors(ctx)
	if err != nil {
		return nil, err
	}
	lots, err := src.ControlLots(ctx)
	if err != nil {
		return nil, err
	}
	items, err := src.PartsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &Options{Vendors: vendors, ControlLots: lots, Items: items}, nil
}

// ItemName returns the part name for itemNo, or "".
func (o *Options) ItemName(itemNo string) string {
	if o == nil {
		return ""
	}
	for _, p := range o.Items {
		if p.ItemNo == itemNo {
			return p.ItemName
		}
	}
	return ""
}

func nameOf(rows []models.NamedRow, id *int) string {
	if id == nil {
		return ""
	}
	for _, r := range rows {
		if r.ID == *id {
			return r.Name
		}
	}
	return ""
}
