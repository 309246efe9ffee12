package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plating/internal/models"
	"plating/internal/validation"
)

var bangkok = time.FixedZone("ICT", 7*3600)

func newTestWorkflow(t *testing.T, api *fakeLots, p Profile) *Workflow {
	t.Helper()
	return New(Config{
		Profile:  p,
		Owner:    Owner{UserID: 7, GroupID: 3},
		API:      api,
		Location: bangkok,
		Now:      func() time.Time { return time.Date(2026, 1, 26, 1, 0, 0, 0, time.UTC) },
	})
}

func scanBox(t *testing.T, w *Workflow, qty string) (Outcome, error) {
	t.Helper()
	ctx := context.Background()
	vals := []string{"10000206936", "YOKE#1", "JB615021K002", "A19-321027-3E", "D8", "L26119AB4"}
	for i, v := range vals {
		if _, err := w.SubmitField(ctx, Field(i), v); err != nil {
			t.Fatalf("submit %s: %v", Field(i), err)
		}
	}
	return w.SubmitField(ctx, FieldQty, qty)
}

func TestLoad_NoHeader(t *testing.T) {
	api := newFakeLots()
	w := newTestWorkflow(t, api, Issue)
	if err := w.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := w.State(); got != (EditingHeader{}) {
		t.Fatalf("Expected EditingHeader, got %#v", got)
	}
	v := w.Snapshot()
	if v.HeaderForm.SentDateByUser != "2026-01-26T08:00" {
		t.Errorf("Expected date preset in local time, got %q", v.HeaderForm.SentDateByUser)
	}
	if v.Header != nil || len(v.Boxes) != 0 {
		t.Errorf("Expected empty view, got %+v", v)
	}
}

func TestLoad_ExistingHeader(t *testing.T) {
	api := newFakeLots().withHeader(3, 3)
	w := newTestWorkflow(t, api, Receive)
	if err := w.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := w.State(); got != (Full{Capacity: 3}) {
		t.Fatalf("Expected Full, got %#v", got)
	}
	v := w.Snapshot()
	if !v.CanCommit || v.SavedCount != 3 {
		t.Errorf("Expected commit available with 3 saved, got %+v", v)
	}
	if v.HeaderForm.SentDateByUser != "2026-01-26T14:30" {
		t.Errorf("Unexpected header form date %q", v.HeaderForm.SentDateByUser)
	}
}

func TestSaveHeader_Validation(t *testing.T) {
	api := newFakeLots()
	w := newTestWorkflow(t, api, Issue)
	ctx := context.Background()

	tests := []struct {
		name string
		form HeaderForm
		msg  string
	}{
		{"no date", HeaderForm{Shift: "A", QtyBox: 2}, "เลือกวันที่"},
		{"bad date", HeaderForm{SentDateByUser: "26/01/2026", Shift: "A", QtyBox: 2}, "เลือกวันที่"},
		{"no shift", HeaderForm{SentDateByUser: "2026-01-26T08:00", QtyBox: 2}, "เลือก Shift"},
		{"no qtyBox", HeaderForm{SentDateByUser: "2026-01-26T08:00", Shift: "A"}, "กรุณากรอกจำนวน BOX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.SaveHeader(ctx, tt.form)
			var ve *validation.ValidationErrors
			if !errors.As(err, &ve) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if ve.First() != tt.msg {
				t.Errorf("Expected %q, got %q", tt.msg, ve.First())
			}
		})
	}
	if n := api.count("createHeaderTemp"); n != 0 {
		t.Errorf("Expected no backend call, got %d", n)
	}
	if w.Snapshot().HeaderForm.Shift != "A" {
		t.Error("Expected last submitted form to be kept")
	}
}

func TestSaveHeader_CreatesAndFillsItemName(t *testing.T) {
	api := newFakeLots()
	w := newTestWorkflow(t, api, Issue)
	ctx := context.Background()
	if err := w.LoadOptions(ctx, fakeOptions{}); err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	vendor := 1
	out, err := w.SaveHeader(ctx, HeaderForm{
		SentDateByUser: "2026-01-26T08:00", Shift: "A", VendorID: &vendor, ItemNo: "10000206936", QtyBox: 2,
	})
	if err != nil {
		t.Fatalf("SaveHeader: %v", err)
	}
	if out.Notice == nil || out.Notice.Message != MsgHeaderSaved {
		t.Errorf("Unexpected notice %+v", out.Notice)
	}
	if got := w.State(); got != (Scanning{Count: 0, Capacity: 2}) {
		t.Fatalf("Expected Scanning, got %#v", got)
	}
	if api.header.ItemName != "YOKE#1" {
		t.Errorf("Expected item name filled from part list, got %q", api.header.ItemName)
	}
	if !api.header.SentDateByUser.Equal(time.Date(2026, 1, 26, 1, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected local date converted to UTC, got %v", api.header.SentDateByUser)
	}
	if v := w.Snapshot(); v.VendorName != "ZIP" {
		t.Errorf("Expected vendor name ZIP, got %q", v.VendorName)
	}
}

// Header with qtyBox 2: two boxes fill it, a third is refused with a notice
// and never reaches the backend.
func TestScan_CapacityScenario(t *testing.T) {
	api := newFakeLots().withHeader(2, 0)
	w := newTestWorkflow(t, api, Issue)
	if err := w.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	out, err := scanBox(t, w, "100")
	if err != nil {
		t.Fatalf("box A: %v", err)
	}
	if out.Notice == nil || out.Notice.Message != MsgBoxConfirmed {
		t.Errorf("Expected confirm notice, got %+v", out.Notice)
	}
	if got := w.State(); got != (Scanning{Count: 1, Capacity: 2}) {
		t.Fatalf("after A: expected Scanning{1,2}, got %#v", got)
	}
	v := w.Snapshot()
	if v.Form.Values["itemNo"] != "" || v.Form.Focus != "itemNo" {
		t.Errorf("Expected cleared form focused on first field, got %+v", v.Form)
	}

	if _, err := scanBox(t, w, "50"); err != nil {
		t.Fatalf("box B: %v", err)
	}
	if got := w.State(); got != (Full{Capacity: 2}) {
		t.Fatalf("after B: expected Full, got %#v", got)
	}
	if w.Snapshot().State.ScanEnabled {
		t.Error("Expected scanning disabled when full")
	}

	out, err = w.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Expected notice not error, got %v", err)
	}
	if out.Notice == nil || out.Notice.Level != models.NoticeInfo || out.Notice.Message != "ครบจำนวน BOX แล้ว" {
		t.Errorf("Unexpected outcome %+v", out.Notice)
	}
	out, _ = w.SubmitField(context.Background(), FieldItemNo, "X")
	if out.Notice == nil || out.Notice.Message != MsgBoxFull {
		t.Errorf("Expected full notice on field submit, got %+v", out.Notice)
	}
	if n := api.count("createBoxTemp"); n != 2 {
		t.Errorf("Expected 2 create calls, got %d", n)
	}
	if len(api.boxes) != 2 {
		t.Errorf("Expected 2 boxes on backend, got %d", len(api.boxes))
	}
}

func TestScan_RefetchFailureRereadsBeforeNextConfirm(t *testing.T) {
	api := newFakeLots().withHeader(1, 0)
	w := newTestWorkflow(t, api, Issue)
	w.Load(context.Background())

	api.mu.Lock()
	api.failOn["fetchBoxTempByHeadId"] = errBackend
	api.mu.Unlock()
	if _, err := scanBox(t, w, "10"); !errors.Is(err, errBackend) {
		t.Fatalf("Expected re-fetch error, got %v", err)
	}
	api.mu.Lock()
	delete(api.failOn, "fetchBoxTempByHeadId")
	api.mu.Unlock()

	out, err := scanBox(t, w, "10")
	if err != nil {
		t.Fatalf("Expected notice not error, got %v", err)
	}
	if out.Notice == nil || out.Notice.Message != MsgBoxFull {
		t.Errorf("Expected full notice, got %+v", out.Notice)
	}
	if n := api.count("createBoxTemp"); n != 1 {
		t.Errorf("Expected 1 create call, got %d", n)
	}
	if len(api.boxes) != 1 {
		t.Errorf("Expected 1 box on backend, got %d", len(api.boxes))
	}
	if got := w.State(); got != (Full{Capacity: 1}) {
		t.Errorf("Expected Full after re-read, got %#v", got)
	}
}

func TestSnapshot_ReportsSavedCount(t *testing.T) {
	api := newFakeLots().withHeader(1, 2)
	w := newTestWorkflow(t, api, Receive)
	w.Load(context.Background())

	v := w.Snapshot()
	if v.State.Phase != "full" {
		t.Errorf("Expected full, got %s", v.State.Phase)
	}
	if v.State.Count != 2 || v.State.Capacity != 1 {
		t.Errorf("Expected count 2 of 1, got %d of %d", v.State.Count, v.State.Capacity)
	}
}

func TestScan_InvalidFormMakesNoCall(t *testing.T) {
	api := newFakeLots().withHeader(2, 0)
	w := newTestWorkflow(t, api, Receive)
	ctx := context.Background()

	w.SubmitField(ctx, FieldItemNo, "I1")
	w.SubmitField(ctx, FieldItemName, "N1")
	out, err := w.SubmitField(ctx, FieldQty, "3")
	if err != nil || out.Notice != nil {
		t.Fatalf("Expected silent refusal, got %+v %v", out, err)
	}
	_, err = w.Confirm(ctx)
	var ve *validation.ValidationErrors
	if !errors.As(err, &ve) || ve.First() != "กรุณากรอก WOS No." {
		t.Fatalf("Expected WOS validation error, got %v", err)
	}
	if n := api.count("createBoxTemp"); n != 0 {
		t.Errorf("Expected no create call, got %d", n)
	}
	v := w.Snapshot()
	if v.Form.Values["itemNo"] != "I1" || v.Form.Values["qty"] != "3" {
		t.Errorf("Expected fields kept, got %+v", v.Form.Values)
	}
	if v.Form.Focus != "wosNo" {
		t.Errorf("Expected focus on wosNo, got %s", v.Form.Focus)
	}
}

func TestScan_BackendFailureKeepsForm(t *testing.T) {
	api := newFakeLots().withHeader(2, 0)
	api.failOn["createBoxTemp"] = errBackend
	w := newTestWorkflow(t, api, Issue)

	_, err := scanBox(t, w, "10")
	if !errors.Is(err, errBackend) {
		t.Fatalf("Expected backend error, got %v", err)
	}
	v := w.Snapshot()
	if v.Form.Values["lotNo"] != "L26119AB4" {
		t.Errorf("Expected form kept after failure, got %+v", v.Form.Values)
	}
	if v.State.Phase != "scanning" || v.State.Count != 0 {
		t.Errorf("Expected last good state, got %+v", v.State)
	}
}

func TestScan_RequiresSavedHeader(t *testing.T) {
	api := newFakeLots()
	w := newTestWorkflow(t, api, Issue)
	_, err := w.SubmitField(context.Background(), FieldItemNo, "X")
	var ve *validation.ValidationErrors
	if !errors.As(err, &ve) || ve.First() != MsgHeaderFirst {
		t.Fatalf("Expected header-first error, got %v", err)
	}
}

func TestEditAndCancelHeader(t *testing.T) {
	api := newFakeLots().withHeader(2, 2)
	w := newTestWorkflow(t, api, Issue)
	ctx := context.Background()
	w.Load(ctx)

	if err := w.EditHeader(); err != nil {
		t.Fatalf("EditHeader: %v", err)
	}
	v := w.Snapshot()
	if v.State.Phase != "editing_header" || len(v.Boxes) != 0 {
		t.Fatalf("Expected editing with hidden boxes, got %+v", v.State)
	}
	if len(api.boxes) != 2 {
		t.Fatal("Edit must not delete boxes")
	}
	if v.CanCommit {
		t.Error("Expected no commit while editing")
	}

	_, err := w.SaveHeader(ctx, HeaderForm{SentDateByUser: "2026-01-26T08:00", Shift: "B", QtyBox: 1})
	var ve *validation.ValidationErrors
	if !errors.As(err, &ve) || ve.Errors[0].Field != "qtyBox" {
		t.Fatalf("Expected qtyBox below saved count rejected, got %v", err)
	}

	if err := w.CancelEdit(ctx); err != nil {
		t.Fatalf("CancelEdit: %v", err)
	}
	if got := w.State(); got != (Full{Capacity: 2}) {
		t.Errorf("Expected Full after cancel, got %#v", got)
	}
	if len(w.Snapshot().Boxes) != 2 {
		t.Error("Expected boxes restored")
	}
}

func TestEditHeader_RaisesCapacity(t *testing.T) {
	api := newFakeLots().withHeader(2, 2)
	w := newTestWorkflow(t, api, Issue)
	ctx := context.Background()
	w.Load(ctx)
	w.EditHeader()

	if _, err := w.SaveHeader(ctx, HeaderForm{SentDateByUser: "2026-01-26T08:00", Shift: "A", QtyBox: 4}); err != nil {
		t.Fatalf("SaveHeader: %v", err)
	}
	if api.count("updateHeaderTemp") != 1 || api.count("createHeaderTemp") != 0 {
		t.Errorf("Expected update not create, calls %v", api.calls)
	}
	if got := w.State(); got != (Scanning{Count: 2, Capacity: 4}) {
		t.Errorf("Expected Scanning{2,4}, got %#v", got)
	}
}

func TestRowCorrections(t *testing.T) {
	api := newFakeLots().withHeader(2, 2)
	w := newTestWorkflow(t, api, Issue)
	ctx := context.Background()
	w.Load(ctx)
	first := api.boxes[0].ID

	_, err := w.UpdateQty(ctx, first, "0")
	var ve *validation.ValidationErrors
	if !errors.As(err, &ve) || ve.First() != MsgBadQty {
		t.Fatalf("Expected qty validation error, got %v", err)
	}
	if _, err := w.UpdateQty(ctx, 9999, "5"); !errors.Is(err, ErrUnknownBox) {
		t.Fatalf("Expected ErrUnknownBox, got %v", err)
	}
	if _, err := w.UpdateQty(ctx, first, "25"); err != nil {
		t.Fatalf("UpdateQty: %v", err)
	}
	if api.boxes[0].Qty != 25 {
		t.Errorf("Expected qty 25, got %d", api.boxes[0].Qty)
	}

	if _, err := w.DeleteBox(ctx, first); err != nil {
		t.Fatalf("DeleteBox: %v", err)
	}
	if got := w.State(); got != (Scanning{Count: 1, Capacity: 2}) {
		t.Errorf("Expected Scanning after delete from full, got %#v", got)
	}

	if _, err := w.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if got := w.State(); got != (Scanning{Count: 0, Capacity: 2}) {
		t.Errorf("Expected empty Scanning, got %#v", got)
	}
	if api.count("fetchBoxTempByHeadId") < 4 {
		t.Errorf("Expected a re-fetch after every write, got %d", api.count("fetchBoxTempByHeadId"))
	}
}

func TestCommit_IssueNotSupported(t *testing.T) {
	api := newFakeLots().withHeader(1, 1)
	w := newTestWorkflow(t, api, Issue)
	if _, err := w.Commit(context.Background()); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Expected ErrNotSupported, got %v", err)
	}
	if api.count("createHeaderBox") != 0 {
		t.Error("Expected no commit call")
	}
}

func TestCommit_RequiresFull(t *testing.T) {
	api := newFakeLots().withHeader(2, 1)
	w := newTestWorkflow(t, api, Receive)
	_, err := w.Commit(context.Background())
	var ve *validation.ValidationErrors
	if !errors.As(err, &ve) || ve.First() != MsgNotFull {
		t.Fatalf("Expected not-full error, got %v", err)
	}
}

func TestCommit_RestartsCycle(t *testing.T) {
	api := newFakeLots().withHeader(1, 1)
	w := newTestWorkflow(t, api, Receive)
	ctx := context.Background()
	w.Load(ctx)

	out, err := w.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if out.Notice == nil || out.Notice.Message != MsgCommitted {
		t.Errorf("Unexpected notice %+v", out.Notice)
	}
	if got := w.State(); got != (EditingHeader{}) {
		t.Errorf("Expected a fresh header form after commit, got %#v", got)
	}
	if api.count("fetchHeaderTempByUser") != 2 {
		t.Errorf("Expected header re-fetch after commit, got %d", api.count("fetchHeaderTempByUser"))
	}
}

func TestCommit_FailureReturnsToFull(t *testing.T) {
	api := newFakeLots().withHeader(1, 1)
	api.failOn["createHeaderBox"] = errBackend
	w := newTestWorkflow(t, api, Receive)
	ctx := context.Background()
	w.Load(ctx)

	if _, err := w.Commit(ctx); !errors.Is(err, errBackend) {
		t.Fatalf("Expected backend error, got %v", err)
	}
	if got := w.State(); got != (Full{Capacity: 1}) {
		t.Errorf("Expected Full after failed commit, got %#v", got)
	}
}

func TestBusyGate(t *testing.T) {
	api := newFakeLots().withHeader(3, 0)
	w := newTestWorkflow(t, api, Issue)
	ctx := context.Background()
	w.Load(ctx)
	scanBoxFieldsOnly(t, w)

	api.block = make(chan struct{})
	api.entered = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = w.Confirm(ctx)
	}()
	<-api.entered

	if _, err := w.Confirm(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy while in flight, got %v", err)
	}
	if v := w.Snapshot(); v.State.Phase != "scanning" {
		t.Errorf("Snapshot should not block, got %+v", v.State)
	}
	close(api.block)
	wg.Wait()
	if firstErr != nil {
		t.Fatalf("first confirm: %v", firstErr)
	}
	if n := api.count("createBoxTemp"); n != 1 {
		t.Errorf("Expected exactly one create call, got %d", n)
	}
}

func scanBoxFieldsOnly(t *testing.T, w *Workflow) {
	t.Helper()
	ctx := context.Background()
	vals := []string{"I", "N", "W", "D", "DIE", "LOT"}
	for i, v := range vals {
		if _, err := w.SubmitField(ctx, Field(i), v); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	w.update(func() { w.form.Set(FieldQty, "5") })
}

func TestOnChangeReceivesView(t *testing.T) {
	api := newFakeLots().withHeader(1, 0)
	var got []View
	w := New(Config{
		Profile:  Issue,
		Owner:    Owner{UserID: 7},
		API:      api,
		OnChange: func(v View) { got = append(got, v) },
	})
	w.Load(context.Background())
	if len(got) != 1 || got[0].State.Phase != "scanning" {
		t.Errorf("Expected one scanning view, got %+v", got)
	}
}
