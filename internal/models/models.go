package models

import "time"

// APIResponse is the standard JSON envelope for all console API responses.
type APIResponse struct {
	Data   interface{} `json:"data"`
	Notice *Notice     `json:"notice,omitempty"`
	Meta   *Meta       `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
}

// Notice is a non-error message shown to the operator (toast).
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Notice levels.
const (
	NoticeInfo    = "info"
	NoticeSuccess = "success"
	NoticeWarning = "warning"
)

// LotHeader is an open issue or receive lot owned by one user.
// SentDate is the server-recorded time; SentDateByUser is what the operator typed.
type LotHeader struct {
	ID             int       `json:"id"`
	SentDate       time.Time `json:"sentDate"`
	SentDateByUser time.Time `json:"sentDateByUser"`
	UserID         int       `json:"userId"`
	GroupID        int       `json:"groupId"`
	Shift          string    `json:"shift"`
	VendorID       int       `json:"venderId"`
	ControlLotID   int       `json:"controlLotId"`
	ItemNo         string    `json:"itemNo"`
	ItemName       string    `json:"itemName"`
	QtyBox         int       `json:"qtyBox"`
	Status         string    `json:"status"`
}

// HeaderInput is the payload for creating or revising a lot header.
type HeaderInput struct {
	HeadTempID     int       `json:"headTempId,omitempty"`
	UserID         int       `json:"userId"`
	GroupID        int       `json:"groupId"`
	Shift          string    `json:"shift"`
	VendorID       *int      `json:"venderId"`
	ControlLotID   *int      `json:"controlLotId"`
	ItemNo         string    `json:"itemNo"`
	ItemName       string    `json:"itemName"`
	QtyBox         int       `json:"qtyBox"`
	SentDateByUser time.Time `json:"sentDateByUser"`
}

// BoxEntry is one physical box scanned against a header.
type BoxEntry struct {
	ID       int    `json:"id"`
	HeaderID int    `json:"headerId"`
	ItemNo   string `json:"itemNo"`
	ItemName string `json:"itemName"`
	WosNo    string `json:"wosNo"`
	Dwg      string `json:"dwg"`
	DieNo    string `json:"dieNo"`
	LotNo    string `json:"lotNo"`
	Qty      int    `json:"qty"`
	Status   string `json:"status,omitempty"`
}

// BoxInput is the payload for appending a box to a header.
type BoxInput struct {
	HeadTempID int    `json:"headTempId"`
	ItemNo     string `json:"itemNo"`
	ItemName   string `json:"itemName"`
	WosNo      string `json:"wosNo"`
	Dwg        string `json:"dwg"`
	DieNo      string `json:"dieNo"`
	LotNo      string `json:"lotNo"`
	Qty        int    `json:"qty"`
}

// NamedRow is the flat id+name shape shared by vendors, groups, sections and control lots.
type NamedRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Vendor = NamedRow
type Group = NamedRow
type Section = NamedRow
type ControlLot = NamedRow

type PartMaster struct {
	ID        int    `json:"id"`
	ItemNo    string `json:"itemNo"`
	ItemName  string `json:"itemName"`
	GroupID   int    `json:"groupId"`
	GroupName string `json:"groupName,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// PendingInfo summarizes an open issue or receive header for a member.
type PendingInfo struct {
	HasPending     bool     `json:"hasPending"`
	ItemNo         string   `json:"itemNo,omitempty"`
	ItemName       string   `json:"itemName,omitempty"`
	Shift          string   `json:"shift,omitempty"`
	SentDate       string   `json:"sentDate,omitempty"`
	VendorName     string   `json:"vendorName,omitempty"`
	ControlLotName string   `json:"controlLotName,omitempty"`
	BoxCount       int      `json:"boxCount,omitempty"`
	WosNos         []string `json:"wosNos,omitempty"`
}

type Member struct {
	ID          int         `json:"id"`
	EmpNo       string      `json:"empNo"`
	Name        string      `json:"name"`
	Role        string      `json:"role"`
	RfID        string      `json:"rfId,omitempty"`
	GroupID     *int        `json:"groupId,omitempty"`
	GroupName   string      `json:"groupName,omitempty"`
	SectionID   *int        `json:"sectionId,omitempty"`
	SectionName string      `json:"sectionName,omitempty"`
	Issue       PendingInfo `json:"issue"`
	Receive     PendingInfo `json:"receive"`
}

// MemberInput is the create/edit payload for a member.
type MemberInput struct {
	ID        int    `json:"id,omitempty"`
	EmpNo     string `json:"empNo"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Password  string `json:"password,omitempty"`
	RfID      string `json:"rfId"`
	GroupID   int    `json:"groupId"`
	SectionID int    `json:"sectionId"`
}

// LotBox is a box as listed on the dashboard.
type LotBox struct {
	ItemNo   string `json:"itemNo"`
	ItemName string `json:"itemName"`
	WosNo    string `json:"wosNo"`
	Dwg      string `json:"dwg"`
	DieNo    string `json:"dieNo"`
	LotNo    string `json:"lotNo"`
	Qty      int    `json:"qty"`
}

// LotRow is a committed or waiting lot as returned by the issue/receive list.
type LotRow struct {
	ID             int       `json:"id"`
	LotNo          string    `json:"lotNo"`
	SentDate       time.Time `json:"sentDate"`
	SentDateByUser time.Time `json:"sentDateByUser"`
	Shift          string    `json:"shift"`
	GroupName      string    `json:"groupName"`
	VendorName     string    `json:"vendorName"`
	ItemNo         string    `json:"itemNo"`
	ItemName       string    `json:"itemName"`
	BoxCount       int       `json:"boxCount"`
	TotalQty       int       `json:"totalQty"`
	Status         string    `json:"status"`
	Boxes          []LotBox  `json:"boxes"`
}

// ImportSummary is the backend's report after a spreadsheet import.
type ImportSummary struct {
	Summary struct {
		Inserted         int `json:"inserted"`
		SkippedDuplicate int `json:"skippedDuplicate"`
		Invalid          int `json:"invalid"`
		InsertFailed     int `json:"insertFailed"`
	} `json:"summary"`
	Duplicates   []map[string]any `json:"duplicates"`
	InvalidRows  []map[string]any `json:"invalidRows"`
	InsertErrors []map[string]any `json:"insertErrors"`
}
