package scan

import (
	"errors"
	"fmt"
)

// State is the workflow's position. Exactly one of the concrete types below.
type State interface {
	Phase() string
	isState()
}

// NoHeader is the state before the open header has been looked up, and
// right after a commit detached the previous one.
type NoHeader struct{}

// EditingHeader is creating (HasHeader false) or revising a header.
type EditingHeader struct {
	HasHeader bool
}

// Scanning accepts boxes; Count < Capacity.
type Scanning struct {
	Count    int
	Capacity int
}

// Full has as many boxes as the header declared; scanning is disabled.
type Full struct {
	Capacity int
}

// Committing is waiting on the backend to finalize a full lot.
type Committing struct {
	Capacity int
}

func (NoHeader) Phase() string      { return "no_header" }
func (EditingHeader) Phase() string { return "editing_header" }
func (Scanning) Phase() string      { return "scanning" }
func (Full) Phase() string          { return "full" }
func (Committing) Phase() string    { return "committing" }

func (NoHeader) isState()      {}
func (EditingHeader) isState() {}
func (Scanning) isState()      {}
func (Full) isState()          {}
func (Committing) isState()    {}

// Event drives Transition.
type Event interface {
	isEvent()
}

// HeaderLoaded reports the result of looking up the user's open header.
type HeaderLoaded struct {
	Found    bool
	Count    int
	Capacity int
}

// HeaderSaved reports an accepted create or update of the header.
type HeaderSaved struct {
	Count    int
	Capacity int
}

// BoxesFetched reports the saved box count after a re-fetch.
type BoxesFetched struct {
	Count int
}

type EditHeader struct{}

// CancelEdit leaves header editing; Count comes from the re-fetched box list.
type CancelEdit struct {
	Count    int
	Capacity int
}

type CommitStarted struct{}
type CommitSucceeded struct{}

// CommitFailed returns to the last known count after a rejected commit.
type CommitFailed struct {
	Count int
}

func (HeaderLoaded) isEvent()    {}
func (HeaderSaved) isEvent()     {}
func (BoxesFetched) isEvent()    {}
func (EditHeader) isEvent()      {}
func (CancelEdit) isEvent()      {}
func (CommitStarted) isEvent()   {}
func (CommitSucceeded) isEvent() {}
func (CommitFailed) isEvent()    {}

// ErrIllegalTransition is returned when an event does not apply to the current state.
var ErrIllegalTransition = errors.New("illegal transition")

// byCount places a saved header in Scanning or Full by its box count.
func byCount(count, capacity int) State {
	if count >= capacity {
		return Full{Capacity: capacity}
	}
	return Scanning{Count: count, Capacity: capacity}
}

// Transition is the workflow's only state function.
func Transition(s State, e Event) (State, error) {
	switch e := e.(type) {
	case HeaderLoaded:
		if _, ok := s.(Committing); ok {
			break
		}
		if !e.Found {
			return EditingHeader{}, nil
		}
		return byCount(e.Count, e.Capacity), nil

	case HeaderSaved:
		if _, ok := s.(EditingHeader); ok {
			return byCount(e.Count, e.Capacity), nil
		}

	case BoxesFetched:
		switch s := s.(type) {
		case Scanning:
			return byCount(e.Count, s.Capacity), nil
		case Full:
			return byCount(e.Count, s.Capacity), nil
		}

	case EditHeader:
		switch s := s.(type) {
		case Scanning, Full:
			return EditingHeader{HasHeader: true}, nil
		case EditingHeader:
			if s.HasHeader {
				return s, nil
			}
		}

	case CancelEdit:
		if s, ok := s.(EditingHeader); ok && s.HasHeader {
			return byCount(e.Count, e.Capacity), nil
		}

	case CommitStarted:
		if s, ok := s.(Full); ok {
			return Committing{Capacity: s.Capacity}, nil
		}

	case CommitSucceeded:
		if _, ok := s.(Committing); ok {
			return NoHeader{}, nil
		}

	case CommitFailed:
		if s, ok := s.(Committing); ok {
			return byCount(e.Count, s.Capacity), nil
		}
	}
	return s, fmt.Errorf("%w: %T in %s", ErrIllegalTransition, e, s.Phase())
}

// ScanEnabled reports whether the scan form accepts input in s.
func ScanEnabled(s State) bool {
	_, ok := s.(Scanning)
	return ok
}

// hasHeader reports whether s implies a saved header.
func hasHeader(s State) bool {
	switch s := s.(type) {
	case Scanning, Full, Committing:
		return true
	case EditingHeader:
		return s.HasHeader
	}
	return false
}

// StateView is the JSON form of a State.
type StateView struct {
	Phase       string `json:"phase"`
	Count       int    `json:"count"`
	Capacity    int    `json:"capacity"`
	ScanEnabled bool   `json:"scanEnabled"`
}

func viewOf(s State) StateView {
	v := StateView{Phase: s.Phase(), ScanEnabled: ScanEnabled(s)}
	switch s := s.(type) {
	case Scanning:
		v.Count, v.Capacity = s.Count, s.Capacity
	case Full:
		v.Count, v.Capacity = s.Capacity, s.Capacity
	case Committing:
		v.Count, v.Capacity = s.Capacity, s.Capacity
	}
	return v
}
