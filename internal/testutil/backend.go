package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"plating/internal/backend"
	"plating/internal/models"
)

// Call is one request the fake backend received.
type Call struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
	Fields map[string]string
}

// Failure is a canned error response for a path.
type Failure struct {
	Status int
	Body   map[string]any
}

// Backend is an in-memory plating REST backend behind an httptest.Server.
// Lot temp stacks, committed lots and the master-data collections are kept
// in maps; every request is recorded in Calls.
type Backend struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []Call
	fail     map[string]Failure
	nextID   int
	accounts map[string]account
	headers  map[string]map[int]*models.LotHeader // kind -> userID -> header
	boxes    map[int][]models.BoxEntry            // headerID -> boxes
	lots     map[string][]models.LotRow
	rows     map[string][]map[string]any // resource -> rows
	Export   []byte
}

type account struct {
	password string
	rfid     string
	res      backend.SignInResult
}

// NewBackend starts a fake backend that is closed with the test.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		fail:     map[string]Failure{},
		nextID:   100,
		accounts: map[string]account{},
		headers:  map[string]map[int]*models.LotHeader{"issue": {}, "receive": {}},
		boxes:    map[int][]models.BoxEntry{},
		lots:     map[string][]models.LotRow{},
		rows:     map[string][]map[string]any{},
		Export:   []byte("PK\x03\x04fake-xlsx"),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

// Client returns a backend client pointed at b.
func (b *Backend) Client() *backend.Client {
	return backend.New(b.URL, 5*time.Second, nil, nil)
}

// AddAccount registers an operator who can sign in with password or rfid.
func (b *Backend) AddAccount(res *backend.SignInResult, password, rfid string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[res.EmpNo] = account{password: password, rfid: rfid, res: *res}
}

// Seed appends rows to a master-data resource ("vendor", "partMaster", "user", ...).
func (b *Backend) Seed(resource string, rows ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[resource] = append(b.rows[resource], rows...)
}

// Rows returns a copy of a resource's rows.
func (b *Backend) Rows(resource string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any{}, b.rows[resource]...)
}

// SeedLots sets the committed lot list of a kind.
func (b *Backend) SeedLots(kind string, rows ...models.LotRow) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lots[kind] = rows
}

// Lots returns the committed lots of a kind.
func (b *Backend) Lots(kind string) []models.LotRow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.LotRow{}, b.lots[kind]...)
}

// Header returns the open header of userID, or nil.
func (b *Backend) Header(kind string, userID int) *models.LotHeader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headers[kind][userID]
}

// Boxes returns the temp boxes of a header.
func (b *Backend) Boxes(headerID int) []models.BoxEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.BoxEntry{}, b.boxes[headerID]...)
}

// FailOn makes every request to path answer with status and body.
func (b *Backend) FailOn(path string, status int, body map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[path] = Failure{Status: status, Body: body}
}

// Calls returns the recorded requests.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call{}, b.calls...)
}

// Count returns how many requests hit path.
func (b *Backend) Count(path string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Path == path {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func results(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, map[string]any{"results": v})
}

func written(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "success", "data": data})
}

// num reads a JSON number field as int.
func num(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func (b *Backend) id() int {
	b.nextID++
	return b.nextID
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	call := Call{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	var raw []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			call.Fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				call.Fields[k] = v[0]
			}
			if fh, ok := r.MultipartForm.File["file"]; ok && len(fh) > 0 {
				call.Fields["file"] = fh[0].Filename
			}
		}
	} else {
		raw, _ = io.ReadAll(r.Body)
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &call.Body)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)

	if f, ok := b.fail[r.URL.Path]; ok {
		writeJSON(w, f.Status, f.Body)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
	if len(parts) != 2 {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	res, op := parts[0], parts[1]

	switch {
	case res == "user" && op == "signIn":
		b.signIn(w, call.Body)
	case res == "user" && op == "signin-rfid":
		b.signInRFID(w, call.Body)
	case res == "issue" || res == "receive":
		b.lot(w, res, op, raw, call.Body)
	default:
		b.resource(w, res, op, call.Body)
	}
}

func (b *Backend) signIn(w http.ResponseWriter, body map[string]any) {
	empNo, _ := body["empNo"].(string)
	password, _ := body["password"].(string)
	a, ok := b.accounts[empNo]
	if !ok || a.password != password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, a.res)
}

func (b *Backend) signInRFID(w http.ResponseWriter, body map[string]any) {
	rfid, _ := body["rfid"].(string)
	for _, a := range b.accounts {
		if a.rfid != "" && a.rfid == rfid {
			writeJSON(w, http.StatusOK, a.res)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "unauthorized"})
}

func (b *Backend) findHeader(kind string, id int) *models.LotHeader {
	for _, h := range b.headers[kind] {
		if h.ID == id {
			return h
		}
	}
	return nil
}

func (b *Backend) lot(w http.ResponseWriter, kind, op string, raw []byte, body map[string]any) {
	switch op {
	case "fetchHeaderTempByUser":
		results(w, b.headers[kind][num(body["userId"])])

	case "createHeaderTemp", "updateHeaderTemp":
		var in models.HeaderInput
		_ = json.Unmarshal(raw, &in)
		h := b.findHeader(kind, in.HeadTempID)
		if op == "createHeaderTemp" {
			h = &models.LotHeader{ID: b.id(), SentDate: time.Now().UTC(), Status: "Wait"}
			b.headers[kind][in.UserID] = h
		} else if h == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "header not found"})
			return
		}
		h.UserID, h.GroupID, h.Shift = in.UserID, in.GroupID, in.Shift
		h.ItemNo, h.ItemName, h.QtyBox = in.ItemNo, in.ItemName, in.QtyBox
		h.SentDateByUser = in.SentDateByUser
		if in.VendorID != nil {
			h.VendorID = *in.VendorID
		}
		if in.ControlLotID != nil {
			h.ControlLotID = *in.ControlLotID
		}
		written(w, h)

	case "fetchBoxTempByHeadId":
		results(w, b.boxes[num(body["headerId"])])

	case "createBoxTemp":
		var in models.BoxInput
		_ = json.Unmarshal(raw, &in)
		b.boxes[in.HeadTempID] = append(b.boxes[in.HeadTempID], models.BoxEntry{
			ID: b.id(), HeaderID: in.HeadTempID, ItemNo: in.ItemNo, ItemName: in.ItemName,
			WosNo: in.WosNo, Dwg: in.Dwg, DieNo: in.DieNo, LotNo: in.LotNo, Qty: in.Qty,
		})
		written(w, nil)

	case "updateBoxTemp", "deleteBoxTemp":
		id := num(body["boxTempId"])
		for hid, list := range b.boxes {
			for i := range list {
				if list[i].ID != id {
					continue
				}
				if op == "updateBoxTemp" {
					list[i].Qty = num(body["qty"])
				} else {
					b.boxes[hid] = append(list[:i:i], list[i+1:]...)
				}
				written(w, nil)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "box not found"})

	case "deleteBoxTempAll":
		delete(b.boxes, num(body["headTempId"]))
		written(w, nil)

	case "createHeaderBox":
		hid, uid := num(body["headTempId"]), num(body["userId"])
		h := b.headers[kind][uid]
		if h == nil || h.ID != hid {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "header not found"})
			return
		}
		row := models.LotRow{
			ID: b.id(), SentDate: h.SentDate, SentDateByUser: h.SentDateByUser, Shift: h.Shift,
			ItemNo: h.ItemNo, ItemName: h.ItemName, Status: "Complete",
		}
		for _, box := range b.boxes[hid] {
			row.Boxes = append(row.Boxes, models.LotBox{
				ItemNo: box.ItemNo, ItemName: box.ItemName, WosNo: box.WosNo,
				Dwg: box.Dwg, DieNo: box.DieNo, LotNo: box.LotNo, Qty: box.Qty,
			})
		}
		b.lots[kind] = append(b.lots[kind], row)
		delete(b.headers[kind], uid)
		delete(b.boxes, hid)
		written(w, nil)

	case "list":
		results(w, b.lots[kind])

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
	}
}

func (b *Backend) resource(w http.ResponseWriter, res, op string, body map[string]any) {
	switch op {
	case "list":
		results(w, b.rows[res])

	case "filterByGroup":
		out := []map[string]any{}
		for _, row := range b.rows[res] {
			if num(row["groupId"]) == num(body["groupId"]) {
				out = append(out, row)
			}
		}
		results(w, out)

	case "create":
		if res == "user" {
			for _, row := range b.rows[res] {
				if row["empNo"] == body["empNo"] {
					writeJSON(w, http.StatusBadRequest, map[string]any{
						"message": backend.CodeUserAlreadyExists,
						"detail":  map[string]bool{"empNo": true},
					})
					return
				}
			}
		}
		row := map[string]any{"id": float64(b.id())}
		for k, v := range body {
			if k != "role" || res == "user" {
				row[k] = v
			}
		}
		b.rows[res] = append(b.rows[res], row)
		written(w, row)

	case "edit":
		for _, row := range b.rows[res] {
			if num(row["id"]) == num(body["id"]) {
				for k, v := range body {
					row[k] = v
				}
				written(w, row)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})

	case "delete":
		list := b.rows[res]
		for i, row := range list {
			if num(row["id"]) == num(body["id"]) {
				b.rows[res] = append(list[:i:i], list[i+1:]...)
				written(w, nil)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})

	case "importExcel":
		writeJSON(w, http.StatusOK, map[string]any{
			"summary":     map[string]int{"inserted": 1, "skippedDuplicate": 0, "invalid": 0},
			"duplicates":  []any{},
			"invalidRows": []any{},
		})

	case "exportExcel":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(b.Export)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
	}
}
