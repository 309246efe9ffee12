package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"plating/internal/models"
)

// fakeLots is an in-memory temp stack for one user.
type fakeLots struct {
	mu      sync.Mutex
	header  *models.LotHeader
	boxes   []models.BoxEntry
	nextID  int
	calls   map[string]int
	failOn  map[string]error
	block   chan struct{}
	entered chan struct{}
}

func newFakeLots() *fakeLots {
	return &fakeLots{nextID: 100, calls: map[string]int{}, failOn: map[string]error{}}
}

var errBackend = errors.New("backend down")

func (f *fakeLots) hit(op string) error {
	f.mu.Lock()
	f.calls[op]++
	err := f.failOn[op]
	block, entered := f.block, f.entered
	f.mu.Unlock()
	if op == "createBoxTemp" && block != nil {
		entered <- struct{}{}
		<-block
	}
	return err
}

func (f *fakeLots) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeLots) withHeader(qtyBox, boxes int) *fakeLots {
	f.header = &models.LotHeader{ID: 1, UserID: 7, GroupID: 3, Shift: "A", QtyBox: qtyBox,
		SentDateByUser: time.Date(2026, 1, 26, 7, 30, 0, 0, time.UTC)}
	for i := 0; i < boxes; i++ {
		f.nextID++
		f.boxes = append(f.boxes, models.BoxEntry{ID: f.nextID, HeaderID: 1, ItemNo: "I", Qty: 10})
	}
	return f
}

func (f *fakeLots) FetchHeaderByUser(ctx context.Context, userID int) (*models.LotHeader, error) {
	if err := f.hit("fetchHeaderTempByUser"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.header == nil {
		return nil, nil
	}
	h := *f.header
	return &h, nil
}

func (f *fakeLots) CreateHeader(ctx context.Context, in models.HeaderInput) (*models.LotHeader, error) {
	if err := f.hit("createHeaderTemp"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.header = &models.LotHeader{ID: 1, UserID: in.UserID, GroupID: in.GroupID, Shift: in.Shift,
		ItemNo: in.ItemNo, ItemName: in.ItemName, QtyBox: in.QtyBox, SentDateByUser: in.SentDateByUser}
	if in.VendorID != nil {
		f.header.VendorID = *in.VendorID
	}
	h := *f.header
	return &h, nil
}

func (f *fakeLots) UpdateHeader(ctx context.Context, in models.HeaderInput) (*models.LotHeader, error) {
	if err := f.hit("updateHeaderTemp"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.header.Shift = in.Shift
	f.header.QtyBox = in.QtyBox
	f.header.ItemNo = in.ItemNo
	f.header.ItemName = in.ItemName
	h := *f.header
	return &h, nil
}

func (f *fakeLots) ListBoxes(ctx context.Context, headerID int) ([]models.BoxEntry, error) {
	if err := f.hit("fetchBoxTempByHeadId"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BoxEntry{}, f.boxes...), nil
}

func (f *fakeLots) CreateBox(ctx context.Context, in models.BoxInput) error {
	if err := f.hit("createBoxTemp"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.boxes = append(f.boxes, models.BoxEntry{ID: f.nextID, HeaderID: in.HeadTempID, ItemNo: in.ItemNo,
		ItemName: in.ItemName, WosNo: in.WosNo, Dwg: in.Dwg, DieNo: in.DieNo, LotNo: in.LotNo, Qty: in.Qty})
	return nil
}

func (f *fakeLots) UpdateBoxQty(ctx context.Context, boxID, qty int) error {
	if err := f.hit("updateBoxTemp"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.boxes {
		if f.boxes[i].ID == boxID {
			f.boxes[i].Qty = qty
		}
	}
	return nil
}

func (f *fakeLots) DeleteBox(ctx context.Context, boxID int) error {
	if err := f.hit("deleteBoxTemp"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.boxes {
		if f.boxes[i].ID == boxID {
			f.boxes = append(f.boxes[:i], f.boxes[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeLots) DeleteAllBoxes(ctx context.Context, headerID int) error {
	if err := f.hit("deleteBoxTempAll"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boxes = nil
	return nil
}

func (f *fakeLots) Commit(ctx context.Context, headerID, userID int) error {
	if err := f.hit("createHeaderBox"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.header = nil
	f.boxes = nil
	return nil
}

type fakeOptions struct{}

func (fakeOptions) Vendors(ctx context.Context) ([]models.Vendor, error) {
	return []models.Vendor{{ID: 1, Name: "ZIP"}, {ID: 2, Name: "ACME"}}, nil
}

func (fakeOptions) ControlLots(ctx context.Context) ([]models.ControlLot, error) {
	return []models.ControlLot{{ID: 5, Name: "CL-5"}}, nil
}

func (fakeOptions) PartsByGroup(ctx context.Context, groupID int) ([]models.PartMaster, error) {
	return []models.PartMaster{{ID: 1, ItemNo: "10000206936", ItemName: "YOKE#1", GroupID: groupID}}, nil
}
