package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Known message codes the backend uses for domain rejections.
const (
	CodeUnauthorized        = "unauthorized"
	CodeUserAlreadyExists   = "user_already_exists"
	CodeUserHasPending      = "user_has_pending_transaction"
	CodeCannotDeletePending = "cannot_delete_user_has_pending"
)

var knownCodes = map[string]bool{
	CodeUnauthorized:        true,
	CodeUserAlreadyExists:   true,
	CodeUserHasPending:      true,
	CodeCannotDeletePending: true,
}

// APIError is a failed backend call. Status is 0 for transport failures.
type APIError struct {
	Op      string
	Status  int
	Message string
	Detail  json.RawMessage
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// Code returns the backend message code when it is one of the known domain codes.
func (e *APIError) Code() string {
	if knownCodes[e.Message] {
		return e.Message
	}
	return ""
}

// DecodeDetail decodes the error's detail object into v.
func (e *APIError) DecodeDetail(v any) error {
	if len(e.Detail) == 0 {
		return errors.New("no detail")
	}
	return json.Unmarshal(e.Detail, v)
}

// newAPIError extracts {message, detail} from an error body on a best-effort basis.
func newAPIError(op string, status int, body []byte) *APIError {
	var eb struct {
		Message string          `json:"message"`
		Error   string          `json:"error"`
		Detail  json.RawMessage `json:"detail"`
	}
	e := &APIError{Op: op, Status: status}
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.Error
		}
		e.Detail = eb.Detail
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// CodeOf returns the domain code carried by err, if any.
func CodeOf(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code()
	}
	return ""
}

// ErrUnauthorized is returned by sign-in when the backend rejects the credentials.
var ErrUnauthorized = errors.New("unauthorized")
