package operator

import (
	"errors"
	"log/slog"
	"net/http"

	"plating/internal/response"
	"plating/internal/scan"
	"plating/internal/session"
)

// Handler holds dependencies for the issue and receive scan screens.
type Handler struct {
	Registry *scan.Registry
	// Catalog feeds the header form's vendor, control lot and item dropdowns.
	Catalog scan.OptionsSource
	Log     *slog.Logger
}

// workflow returns the caller's workflow for kind. It writes the error
// response itself and returns nil when there is none to use.
func (h *Handler) workflow(w http.ResponseWriter, r *http.Request, kind string) *scan.Workflow {
	p, ok := scan.ProfileFor(kind)
	if !ok {
		response.Err(w, "unknown lot kind", http.StatusNotFound)
		return nil
	}
	sess := session.FromContext(r.Context())
	if sess == nil {
		response.Err(w, "Unauthorized", http.StatusUnauthorized)
		return nil
	}
	return h.Registry.Get(sess.Token, p, scan.Owner{UserID: sess.UserID, GroupID: sess.GroupID})
}

// fail maps workflow errors onto HTTP.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scan.ErrBusy), errors.Is(err, scan.ErrIllegalTransition):
		response.Err(w, err.Error(), http.StatusConflict)
	case errors.Is(err, scan.ErrNotSupported):
		response.Err(w, err.Error(), http.StatusMethodNotAllowed)
	case errors.Is(err, scan.ErrUnknownBox):
		response.Err(w, err.Error(), http.StatusNotFound)
	default:
		response.FromError(w, err)
	}
}

// reply writes the workflow view with the action's notice, or the error.
func reply(w http.ResponseWriter, wf *scan.Workflow, out scan.Outcome, err error) {
	if err != nil {
		fail(w, err)
		return
	}
	if out.Notice != nil {
		response.JSONNotice(w, wf.Snapshot(), out.Notice.Level, out.Notice.Message)
		return
	}
	response.JSON(w, wf.Snapshot())
}
