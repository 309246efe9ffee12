// Package scan drives one operator through a lot header and its box scans.
// Issue and receive share the workflow; a Profile switches the parts that differ.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"plating/internal/metrics"
	"plating/internal/models"
	"plating/internal/validation"
)

var (
	// ErrBusy is returned while another action of the same workflow is in flight.
	ErrBusy         = errors.New("another action is in progress")
	ErrNotSupported = errors.New("action not available for this lot kind")
	ErrUnknownBox   = errors.New("box is not in the saved list")
)

// Operator-facing messages.
const (
	MsgBoxFull      = "ครบจำนวน BOX แล้ว"
	MsgHeaderFirst  = "กรุณาบันทึก Header ให้เสร็จก่อน"
	MsgHeaderSaved  = "Save Header OK"
	MsgBoxConfirmed = "Confirm Lot สำเร็จ"
	MsgQtyUpdated   = "Update QTY สำเร็จ"
	MsgBadQty       = "กรุณากรอก QTY ให้ถูกต้อง"
	MsgBoxDeleted   = "ลบสำเร็จ"
	MsgBoxesCleared = "ลบทั้งหมดสำเร็จ"
	MsgNotFull      = "BOX ยังไม่ครบจำนวน"
	MsgCommitted    = "Commit Lot สำเร็จ"
)

// Profile configures the workflow for one lot kind.
type Profile struct {
	Kind        string
	CanCommit   bool
	CanClearAll bool
}

var (
	// Issue lots are finalized outside this console.
	Issue   = Profile{Kind: "issue", CanClearAll: true}
	Receive = Profile{Kind: "receive", CanCommit: true, CanClearAll: true}
)

// ProfileFor returns the profile of a lot kind.
func ProfileFor(kind string) (Profile, bool) {
	switch kind {
	case Issue.Kind:
		return Issue, true
	case Receive.Kind:
		return Receive, true
	}
	return Profile{}, false
}

// Owner identifies whose header the workflow manages.
type Owner struct {
	UserID  int
	GroupID int
}

// LotBackend is the temp-stack API of one lot kind; *backend.LotAPI implements it.
type LotBackend interface {
	FetchHeaderByUser(ctx context.Context, userID int) (*models.LotHeader, error)
	CreateHeader(ctx context.Context, in models.HeaderInput) (*models.LotHeader, error)
	UpdateHeader(ctx context.Context, in models.HeaderInput) (*models.LotHeader, error)
	ListBoxes(ctx context.Context, headerID int) ([]models.BoxEntry, error)
	CreateBox(ctx context.Context, in models.BoxInput) error
	UpdateBoxQty(ctx context.Context, boxID, qty int) error
	DeleteBox(ctx context.Context, boxID int) error
	DeleteAllBoxes(ctx context.Context, headerID int) error
	Commit(ctx context.Context, headerID, userID int) error
}

// Outcome carries the notice an action produced, if any.
type Outcome struct {
	Notice *models.Notice
}

func info(msg string) Outcome {
	return Outcome{Notice: &models.Notice{Level: models.NoticeInfo, Message: msg}}
}

func success(msg string) Outcome {
	return Outcome{Notice: &models.Notice{Level: models.NoticeSuccess, Message: msg}}
}

func invalid(field, msg string) error {
	ve := &validation.ValidationErrors{}
	ve.Add(field, msg)
	return ve
}

// Config wires a Workflow.
type Config struct {
	Profile  Profile
	Owner    Owner
	API      LotBackend
	Location *time.Location
	Now      func() time.Time
	Metrics  *metrics.Metrics
	// OnChange receives the view after every action, successful or not.
	OnChange func(View)
}

// Workflow is one operator's header/box session for one lot kind. Actions
// are serialized by a busy gate; a second action while one is in flight
// fails with ErrBusy instead of queueing. Every write is followed by a
// re-fetch of the saved boxes, and the state is derived from that list.
type Workflow struct {
	profile  Profile
	owner    Owner
	api      LotBackend
	loc      *time.Location
	now      func() time.Time
	metrics  *metrics.Metrics
	onChange func(View)

	busy sync.Mutex

	mu         sync.RWMutex
	state      State
	header     *models.LotHeader
	boxes      []models.BoxEntry
	saved      int
	form       Form
	headerForm HeaderForm
	options    *Options
	loaded     bool
}

func New(c Config) *Workflow {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Workflow{
		profile:  c.Profile,
		owner:    c.Owner,
		api:      c.API,
		loc:      c.Location,
		now:      c.Now,
		metrics:  c.Metrics,
		onChange: c.OnChange,
		state:    NoHeader{},
	}
}

func (w *Workflow) Profile() Profile { return w.profile }

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// run executes fn behind the busy gate and publishes the resulting view.
func (w *Workflow) run(fn func() (Outcome, error)) (Outcome, error) {
	if !w.busy.TryLock() {
		return Outcome{}, ErrBusy
	}
	defer func() {
		w.busy.Unlock()
		if w.onChange != nil {
			w.onChange(w.Snapshot())
		}
	}()
	return fn()
}

// update applies a mutation under the view lock. Only the busy holder writes.
func (w *Workflow) update(fn func()) {
	w.mu.Lock()
	fn()
	w.mu.Unlock()
}

// check reports whether e is legal in the current state.
func (w *Workflow) check(e Event) error {
	_, err := Transition(w.state, e)
	return err
}

// Load looks up the operator's open header and its boxes, as on screen mount.
func (w *Workflow) Load(ctx context.Context) error {
	_, err := w.run(func() (Outcome, error) {
		return Outcome{}, w.load(ctx)
	})
	return err
}

func (w *Workflow) load(ctx context.Context) error {
	h, err := w.api.FetchHeaderByUser(ctx, w.owner.UserID)
	if err != nil {
		return err
	}
	if h == nil {
		next, err := Transition(w.state, HeaderLoaded{})
		if err != nil {
			return err
		}
		w.update(func() {
			w.state = next
			w.header = nil
			w.boxes = nil
			w.saved = 0
			w.headerForm = NewHeaderForm(w.now(), w.loc)
			w.form.Clear()
			w.loaded = true
		})
		return nil
	}

	boxes, err := w.api.ListBoxes(ctx, h.ID)
	if err != nil {
		return err
	}
	next, err := Transition(w.state, HeaderLoaded{Found: true, Count: len(boxes), Capacity: h.QtyBox})
	if err != nil {
		return err
	}
	w.update(func() {
		w.state = next
		w.header = h
		w.boxes = boxes
		w.saved = len(boxes)
		w.headerForm = HeaderFormOf(h, w.loc)
		w.loaded = true
	})
	return nil
}

func (w *Workflow) ensureLoaded(ctx context.Context) error {
	if w.loaded {
		return nil
	}
	return w.load(ctx)
}

// LoadOptions fetches the header form's dropdowns for the owner's group.
func (w *Workflow) LoadOptions(ctx context.Context, src OptionsSource) error {
	_, err := w.run(func() (Outcome, error) {
		opts, err := LoadOptions(ctx, src, w.owner.GroupID)
		if err != nil {
			return Outcome{}, err
		}
		w.update(func() { w.options = opts })
		return Outcome{}, nil
	})
	return err
}

// SelectItem sets the header's item and fills its name from the group's part list.
func (w *Workflow) SelectItem(itemNo string) error {
	_, err := w.run(func() (Outcome, error) {
		if _, ok := w.state.(EditingHeader); !ok {
			return Outcome{}, fmt.Errorf("%w: select item in %s", ErrIllegalTransition, w.state.Phase())
		}
		w.update(func() {
			w.headerForm.ItemNo = itemNo
			w.headerForm.ItemName = w.options.ItemName(itemNo)
		})
		return Outcome{}, nil
	})
	return err
}

// SaveHeader creates the header, or revises it when editing an existing one.
func (w *Workflow) SaveHeader(ctx context.Context, f HeaderForm) (Outcome, error) {
	return w.run(func() (Outcome, error) {
		if err := w.ensureLoaded(ctx); err != nil {
			return Outcome{}, err
		}
		if err := w.check(HeaderSaved{}); err != nil {
			return Outcome{}, err
		}
		editing := w.state.(EditingHeader).HasHeader
		if f.ItemName == "" && f.ItemNo != "" {
			f.ItemName = w.options.ItemName(f.ItemNo)
		}
		w.update(func() { w.headerForm = f })

		saved := 0
		if editing {
			saved = w.saved
		}
		if ve := f.Validate(w.loc, saved); ve.HasErrors() {
			return Outcome{}, ve
		}

		in := f.Input(w.owner, w.loc)
		var (
			h   *models.LotHeader
			err error
		)
		if editing {
			in.HeadTempID = w.header.ID
			h, err = w.api.UpdateHeader(ctx, in)
		} else {
			h, err = w.api.CreateHeader(ctx, in)
		}
		if err != nil {
			return Outcome{}, err
		}
		if h == nil || h.ID == 0 {
			if h, err = w.api.FetchHeaderByUser(ctx, w.owner.UserID); err != nil {
				return Outcome{}, err
			}
			if h == nil {
				return Outcome{}, fmt.Errorf("%s: saved header not found", w.profile.Kind)
			}
		}

		boxes, err := w.api.ListBoxes(ctx, h.ID)
		if err != nil {
			w.update(func() { w.loaded = false })
			return Outcome{}, err
		}
		next, err := Transition(w.state, HeaderSaved{Count: len(boxes), Capacity: h.QtyBox})
		if err != nil {
			return Outcome{}, err
		}
		w.update(func() {
			w.state = next
			w.header = h
			w.boxes = boxes
			w.saved = len(boxes)
			w.headerForm = HeaderFormOf(h, w.loc)
			w.form.Clear()
		})
		return success(MsgHeaderSaved), nil
	})
}

// EditHeader reopens the saved header for revision. Saved boxes are hidden, not deleted.
func (w *Workflow) EditHeader() error {
	_, err := w.run(func() (Outcome, error) {
		next, err := Transition(w.state, EditHeader{})
		if err != nil {
			return Outcome{}, err
		}
		w.update(func() {
			w.state = next
			w.headerForm = HeaderFormOf(w.header, w.loc)
			w.boxes = nil
		})
		return Outcome{}, nil
	})
	return err
}

// CancelEdit abandons header changes and restores the box list from the backend.
func (w *Workflow) CancelEdit(ctx context.Context) error {
	_, err := w.run(func() (Outcome, error) {
		if err := w.check(CancelEdit{}); err != nil {
			return Outcome{}, err
		}
		boxes, err := w.api.ListBoxes(ctx, w.header.ID)
		if err != nil {
			return Outcome{}, err
		}
		next, err := Transition(w.state, CancelEdit{Count: len(boxes), Capacity: w.header.QtyBox})
		if err != nil {
			return Outcome{}, err
		}
		w.update(func() {
			w.state = next
			w.boxes = boxes
			w.saved = len(boxes)
			w.headerForm = HeaderFormOf(w.header, w.loc)
		})
		return Outcome{}, nil
	})
	return err
}

// scanGate decides whether the scan form may be used. A full lot yields an
// informational outcome rather than an error.
func (w *Workflow) scanGate() (*Outcome, error) {
	switch w.state.(type) {
	case Scanning:
		return nil, nil
	case Full, Committing:
		o := info(MsgBoxFull)
		return &o, nil
	}
	return nil, invalid("header", MsgHeaderFirst)
}

// SubmitField handles Enter on one scan input. Submitting the quantity
// field with a complete form confirms the box.
func (w *Workflow) SubmitField(ctx context.Context, field Field, value string) (Outcome, error) {
	return w.run(func() (Outcome, error) {
		if err := w.ensureLoaded(ctx); err != nil {
			return Outcome{}, err
		}
		if o, err := w.scanGate(); o != nil || err != nil {
			return derefOutcome(o), err
		}
		var res SubmitResult
		w.update(func() { res = w.form.Submit(field, value) })
		if !res.Confirm {
			return Outcome{}, nil
		}
		return w.confirm(ctx)
	})
}

// Confirm appends the scanned box to the header.
func (w *Workflow) Confirm(ctx context.Context) (Outcome, error) {
	return w.run(func() (Outcome, error) {
		if err := w.ensureLoaded(ctx); err != nil {
			return Outcome{}, err
		}
		if o, err := w.scanGate(); o != nil || err != nil {
			return derefOutcome(o), err
		}
		return w.confirm(ctx)
	})
}

func derefOutcome(o *Outcome) Outcome {
	if o == nil {
		return Outcome{}
	}
	return *o
}

// confirm runs with the gate already passed. On failure the form is kept.
func (w *Workflow) confirm(ctx context.Context) (Outcome, error) {
	if ve := w.form.Validate(); ve.HasErrors() {
		w.update(func() {
			if bad, ok := w.form.firstInvalid(); ok {
				w.form.focus = bad
			}
		})
		return Outcome{}, ve
	}
	if err := w.api.CreateBox(ctx, w.form.Box(w.header.ID)); err != nil {
		return Outcome{}, err
	}
	w.metrics.BoxConfirmed(w.profile.Kind)
	w.update(func() { w.form.Clear() })
	if err := w.refreshBoxes(ctx); err != nil {
		return Outcome{}, err
	}
	return success(MsgBoxConfirmed), nil
}

// refreshBoxes re-lists the saved boxes after a write. When the list cannot
// be fetched the saved count is unknown, so the workflow is marked unloaded
// and the next action re-reads header and boxes before any gate is checked.
func (w *Workflow) refreshBoxes(ctx context.Context) error {
	boxes, err := w.api.ListBoxes(ctx, w.header.ID)
	if err != nil {
		w.update(func() { w.loaded = false })
		return err
	}
	next, err := Transition(w.state, BoxesFetched{Count: len(boxes)})
	if err != nil {
		w.update(func() { w.loaded = false })
		return err
	}
	w.update(func() {
		w.state = next
		w.boxes = boxes
		w.saved = len(boxes)
	})
	return nil
}

// ClearForm empties the scan form and returns focus to the first field.
func (w *Workflow) ClearForm() error {
	_, err := w.run(func() (Outcome, error) {
		w.update(func() { w.form.Clear() })
		return Outcome{}, nil
	})
	return err
}

// boxAction guards row corrections: they need a saved header that is not being edited.
func (w *Workflow) boxAction(ctx context.Context) error {
	if err := w.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := w.check(BoxesFetched{}); err != nil {
		if !hasHeader(w.state) {
			return invalid("header", MsgHeaderFirst)
		}
		return err
	}
	return nil
}

func (w *Workflow) hasBox(id int) bool {
	for _, b := range w.boxes {
		if b.ID == id {
			return true
		}
	}
	return false
}

// UpdateQty corrects the quantity of one saved box.
func (w *Workflow) UpdateQty(ctx context.Context, boxID int, raw string) (Outcome, error) {
	return w.run(func() (Outcome, error) {
		if err := w.boxAction(ctx); err != nil {
			return Outcome{}, err
		}
		qty, ok := validation.ParseQty(raw)
		if !ok {
			return Outcome{}, invalid("qty", MsgBadQty)
		}
		if !w.hasBox(boxID) {
			return Outcome{}, ErrUnknownBox
		}
		if err := w.api.UpdateBoxQty(ctx, boxID, qty); err != nil {
			return Outcome{}, err
		}
		if err := w.refreshBoxes(ctx); err != nil {
			return Outcome{}, err
		}
		return success(MsgQtyUpdated), nil
	})
}

// DeleteBox removes one saved box.
func (w *Workflow) DeleteBox(ctx context.Context, boxID int) (Outcome, error) {
	return w.run(func() (Outcome, error) {
		if err := w.boxAction(ctx); err != nil {
			return Outcome{}, err
		}
		if !w.hasBox(boxID) {
			return Outcome{}, ErrUnknownBox
		}
		if err := w.api.DeleteBox(ctx, boxID); err != nil {
			return Outcome{}, err
		}
		if err := w.refreshBoxes(ctx); err != nil {
			return Outcome{}, err
		}
		return success(MsgBoxDeleted), nil
	})
}

// ClearAll deletes every saved box of the header, abandoning the scans.
func (w *Workflow) ClearAll(ctx context.Context) (Outcome, error) {
	if !w.profile.CanClearAll {
		return Outcome{}, ErrNotSupported
	}
	return w.run(func() (Outcome, error) {
		if err := w.boxAction(ctx); err != nil {
			return Outcome{}, err
		}
		if err := w.api.DeleteAllBoxes(ctx, w.header.ID); err != nil {
			return Outcome{}, err
		}
		w.update(func() { w.form.Clear() })
		if err := w.refreshBoxes(ctx); err != nil {
			return Outcome{}, err
		}
		return success(MsgBoxesCleared), nil
	})
}

// Commit finalizes a full lot and immediately looks up the next open header.
func (w *Workflow) Commit(ctx context.Context) (Outcome, error) {
	if !w.profile.CanCommit {
		return Outcome{}, ErrNotSupported
	}
	return w.run(func() (Outcome, error) {
		if err := w.ensureLoaded(ctx); err != nil {
			return Outcome{}, err
		}
		next, err := Transition(w.state, CommitStarted{})
		if err != nil {
			switch w.state.(type) {
			case Scanning:
				return Outcome{}, invalid("boxes", MsgNotFull)
			case NoHeader, EditingHeader:
				return Outcome{}, invalid("header", MsgHeaderFirst)
			}
			return Outcome{}, err
		}
		w.update(func() { w.state = next })

		if err := w.api.Commit(ctx, w.header.ID, w.owner.UserID); err != nil {
			back, _ := Transition(w.state, CommitFailed{Count: w.saved})
			w.update(func() { w.state = back })
			return Outcome{}, err
		}

		done, _ := Transition(w.state, CommitSucceeded{})
		w.update(func() {
			w.state = done
			w.header = nil
			w.boxes = nil
			w.saved = 0
			w.form.Clear()
			w.loaded = false
		})
		if err := w.load(ctx); err != nil {
			return success(MsgCommitted), err
		}
		return success(MsgCommitted), nil
	})
}

// View is the screen state of a workflow.
type View struct {
	Kind           string            `json:"kind"`
	State          StateView         `json:"state"`
	Header         *models.LotHeader `json:"header"`
	HeaderForm     HeaderForm        `json:"headerForm"`
	VendorName     string            `json:"vendorName,omitempty"`
	ControlLotName string            `json:"controlLotName,omitempty"`
	Boxes          []models.BoxEntry `json:"boxes"`
	SavedCount     int               `json:"savedCount"`
	Form           FormView          `json:"form"`
	CanCommit      bool              `json:"canCommit"`
	CanClearAll    bool              `json:"canClearAll"`
	Options        *Options          `json:"options,omitempty"`
}

// stateView reports the saved count from the last box list, which can
// exceed the capacity when the header was shrunk or boxes were added elsewhere.
func (w *Workflow) stateView() StateView {
	v := viewOf(w.state)
	if hasHeader(w.state) && w.loaded {
		v.Count = w.saved
	}
	return v
}

// Snapshot returns a copy of the current view. It does not wait on the busy gate.
func (w *Workflow) Snapshot() View {
	w.mu.RLock()
	defer w.mu.RUnlock()

	v := View{
		Kind:        w.profile.Kind,
		State:       w.stateView(),
		HeaderForm:  w.headerForm,
		Boxes:       append([]models.BoxEntry{}, w.boxes...),
		SavedCount:  w.saved,
		Form:        w.form.View(),
		CanClearAll: w.profile.CanClearAll && hasHeader(w.state),
		Options:     w.options,
	}
	if _, full := w.state.(Full); full && w.profile.CanCommit {
		v.CanCommit = true
	}
	if w.header != nil {
		h := *w.header
		v.Header = &h
	}
	if w.options != nil {
		v.VendorName = nameOf(w.options.Vendors, w.headerForm.VendorID)
		v.ControlLotName = nameOf(w.options.ControlLots, w.headerForm.ControlLotID)
	}
	return v
}
