package members

import (
	"errors"
	"fmt"
	"strings"

	"plating/internal/backend"
)

var (
	ErrNotFound            = errors.New("member not found")
	ErrOnProcess           = errors.New("member has pending work")
	ErrDuplicateMember     = errors.New("member already exists")
	ErrPendingTransaction  = errors.New("member has pending transactions")
	ErrCannotDeletePending = errors.New("cannot delete member with pending work")
)

// OnProcessError refuses an edit or delete locally because the member has an
// open issue or receive header.
type OnProcessError struct {
	EmpNo   string
	Issue   bool
	Receive bool
	Delete  bool
}

func (e *OnProcessError) Title() string {
	if e.Delete {
		return "ไม่สามารถลบได้"
	}
	return "แก้ไขไม่ได้"
}

func (e *OnProcessError) Error() string {
	var kinds []string
	if e.Receive {
		kinds = append(kinds, "Receive")
	}
	if e.Issue {
		kinds = append(kinds, "Issue")
	}
	return fmt.Sprintf("%s มีงานค้างอยู่: %s", e.EmpNo, strings.Join(kinds, " + "))
}

func (e *OnProcessError) Is(target error) bool { return target == ErrOnProcess }

// DuplicateError is user_already_exists with the colliding fields.
type DuplicateError struct {
	EmpNo bool `json:"empNo"`
	Name  bool `json:"name"`
	RfID  bool `json:"rfId"`
	Edit  bool `json:"-"`
	err   error
}

func (e *DuplicateError) Title() string {
	if e.Edit {
		return "แก้ไขไม่สำเร็จ"
	}
	return "เพิ่มไม่ได้"
}

func (e *DuplicateError) Error() string {
	var reasons []string
	if e.EmpNo {
		reasons = append(reasons, "EmpNo ซ้ำ")
	}
	if e.Name {
		reasons = append(reasons, "Name ซ้ำ")
	}
	if e.RfID {
		reasons = append(reasons, "RFID ซ้ำ")
	}
	if len(reasons) == 0 {
		return backend.CodeUserAlreadyExists
	}
	return strings.Join(reasons, ", ")
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateMember }
func (e *DuplicateError) Unwrap() error        { return e.err }

// PendingError is user_has_pending_transaction raised by the backend on edit.
type PendingError struct {
	Issue   int `json:"issue"`
	Receive int `json:"receive"`
	err     error
}

func (e *PendingError) Title() string { return "แก้ไขไม่สำเร็จ" }

func (e *PendingError) Error() string {
	return fmt.Sprintf("%s | Issue:%d Receive:%d", backend.CodeUserHasPending, e.Issue, e.Receive)
}

func (e *PendingError) Is(target error) bool { return target == ErrPendingTransaction }
func (e *PendingError) Unwrap() error        { return e.err }

// DeletePendingError is cannot_delete_user_has_pending raised by the backend.
type DeletePendingError struct {
	EmpNo          string `json:"empNo"`
	Name           string `json:"name"`
	IssuePending   *int   `json:"issuePendingCount"`
	ReceivePending *int   `json:"receivePendingCount"`
	err            error
}

func (e *DeletePendingError) Title() string { return "ลบไม่ได้ (มีงานค้าง)" }

func (e *DeletePendingError) Error() string {
	count := func(n *int) string {
		if n == nil {
			return "-"
		}
		return fmt.Sprint(*n)
	}
	return fmt.Sprintf("%s %s มีงานค้างอยู่ในระบบ (Issue pending: %s, Receive pending: %s)",
		e.EmpNo, e.Name, count(e.IssuePending), count(e.ReceivePending))
}

func (e *DeletePendingError) Is(target error) bool { return target == ErrCannotDeletePending }
func (e *DeletePendingError) Unwrap() error        { return e.err }

// mapError turns the backend's member rejections into typed errors. Missing
// or malformed details leave the zero detail in place.
func mapError(err error, m *Member, edit bool) error {
	var ae *backend.APIError
	if !errors.As(err, &ae) {
		return err
	}
	switch ae.Code() {
	case backend.CodeUserAlreadyExists:
		e := &DuplicateError{Edit: edit, err: err}
		_ = ae.DecodeDetail(e)
		return e
	case backend.CodeUserHasPending:
		e := &PendingError{err: err}
		_ = ae.DecodeDetail(e)
		return e
	case backend.CodeCannotDeletePending:
		e := &DeletePendingError{err: err}
		_ = ae.DecodeDetail(e)
		if m != nil {
			if e.EmpNo == "" {
				e.EmpNo = m.EmpNo
			}
			if e.Name == "" {
				e.Name = m.Name
			}
		}
		return e
	}
	return err
}
