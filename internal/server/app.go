// Package server assembles the console's HTTP surface: the /api/v1 router,
// the WebSocket endpoint, static files and the middleware chain.
package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"plating/internal/handlers/admin"
	"plating/internal/handlers/common"
	"plating/internal/handlers/operator"
	"plating/internal/response"
	"plating/internal/session"
	"plating/internal/websocket"
)

// App holds shared dependencies for the application.
type App struct {
	Sessions *session.Manager
	Hub      *websocket.Hub
	Log      *slog.Logger

	Common   *common.Handler
	Operator *operator.Handler
	Admin    *admin.Handler

	// Metrics serves /metrics when set.
	Metrics   http.Handler
	StaticDir string
}

// Handler returns the full middleware-wrapped handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	if a.StaticDir != "" {
		mux.HandleFunc("/", a.static)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]interface{}{"status": "ok", "clients": a.Hub.Count()})
	})
	if a.Metrics != nil {
		mux.Handle("/metrics", a.Metrics)
	}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())
		if s == nil {
			unauthorized(w)
			return
		}
		websocket.HandleWebSocket(a.Hub, s.UserID, w, r)
	})
	mux.HandleFunc("/api/v1/", a.api)

	var h http.Handler = mux
	h = RequireSession(a.Sessions)(h)
	h = GzipMiddleware(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	return LoggingMiddleware(a.Log)(h)
}

// static serves files from StaticDir, falling back to index.html for client routes.
func (a *App) static(w http.ResponseWriter, r *http.Request) {
	name := filepath.Join(a.StaticDir, filepath.Clean("/"+r.URL.Path))
	if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
		http.ServeFile(w, r, name)
		return
	}
	http.ServeFile(w, r, filepath.Join(a.StaticDir, "index.html"))
}

func isNamed(seg string) bool {
	switch seg {
	case "vendors", "groups", "sections", "control-lots":
		return true
	}
	return false
}

// api routes /api/v1/ requests.
func (a *App) api(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
	path = strings.TrimSuffix(path, "/")
	parts := strings.Split(path, "/")
	n := len(parts)
	m := r.Method

	switch {
	// Sign-in and session
	case path == "auth/signin" && m == "POST":
		a.Common.SignIn(w, r)
	case path == "auth/signin-rfid" && m == "POST":
		a.Common.SignInRFID(w, r)
	case path == "auth/logout" && m == "POST":
		a.Common.Logout(w, r)
	case path == "auth/me" && m == "GET":
		a.Common.Me(w, r)

	// Dashboard
	case path == "dashboard" && m == "GET":
		a.Common.GetDashboard(w, r)
	case path == "dashboard/export" && m == "GET":
		a.Common.ExportDashboard(w, r)

	// Issue and receive scanning
	case parts[0] == "scan" && n == 2 && m == "GET":
		a.Operator.GetState(w, r, parts[1])
	case parts[0] == "scan" && n == 3 && parts[2] == "header" && m == "POST":
		a.Operator.SaveHeader(w, r, parts[1])
	case parts[0] == "scan" && n == 4 && parts[2] == "header" && parts[3] == "edit" && m == "POST":
		a.Operator.EditHeader(w, r, parts[1])
	case parts[0] == "scan" && n == 4 && parts[2] == "header" && parts[3] == "cancel" && m == "POST":
		a.Operator.CancelEdit(w, r, parts[1])
	case parts[0] == "scan" && n == 3 && parts[2] == "item" && m == "POST":
		a.Operator.SelectItem(w, r, parts[1])
	case parts[0] == "scan" && n == 3 && parts[2] == "field" && m == "POST":
		a.Operator.SubmitField(w, r, parts[1])
	case parts[0] == "scan" && n == 3 && parts[2] == "confirm" && m == "POST":
		a.Operator.Confirm(w, r, parts[1])
	case parts[0] == "scan" && n == 4 && parts[2] == "form" && parts[3] == "clear" && m == "POST":
		a.Operator.ClearForm(w, r, parts[1])
	case parts[0] == "scan" && n == 4 && parts[2] == "boxes" && parts[3] == "clear" && m == "POST":
		a.Operator.ClearAll(w, r, parts[1])
	case parts[0] == "scan" && n == 4 && parts[2] == "boxes" && m == "PUT":
		a.Operator.UpdateQty(w, r, parts[1], parts[3])
	case parts[0] == "scan" && n == 4 && parts[2] == "boxes" && m == "DELETE":
		a.Operator.DeleteBox(w, r, parts[1], parts[3])
	case parts[0] == "scan" && n == 3 && parts[2] == "commit" && m == "POST":
		a.Operator.Commit(w, r, parts[1])

	// Vendors, groups, sections, control lots
	case isNamed(parts[0]) && n == 1 && m == "GET":
		a.Admin.ListNamed(w, r, parts[0])
	case isNamed(parts[0]) && n == 1 && m == "POST":
		a.Admin.CreateNamed(w, r, parts[0])
	case isNamed(parts[0]) && n == 2 && m == "PUT":
		a.Admin.UpdateNamed(w, r, parts[0], parts[1])
	case isNamed(parts[0]) && n == 2 && m == "DELETE":
		a.Admin.DeleteNamed(w, r, parts[0], parts[1])

	// Part masters
	case parts[0] == "part-masters" && n == 1 && m == "GET":
		a.Admin.ListParts(w, r)
	case parts[0] == "part-masters" && n == 1 && m == "POST":
		a.Admin.CreatePart(w, r)
	case parts[0] == "part-masters" && n == 2 && parts[1] == "import" && m == "POST":
		a.Admin.ImportParts(w, r)
	case parts[0] == "part-masters" && n == 2 && parts[1] == "export" && m == "GET":
		a.Admin.ExportParts(w, r)
	case parts[0] == "part-masters" && n == 2 && m == "PUT":
		a.Admin.UpdatePart(w, r, parts[1])
	case parts[0] == "part-masters" && n == 2 && m == "DELETE":
		a.Admin.DeletePart(w, r, parts[1])

	// Members
	case parts[0] == "members" && n == 1 && m == "GET":
		a.Admin.ListMembers(w, r)
	case parts[0] == "members" && n == 1 && m == "POST":
		a.Admin.CreateMember(w, r)
	case parts[0] == "members" && n == 2 && parts[1] == "import" && m == "POST":
		a.Admin.ImportMembers(w, r)
	case parts[0] == "members" && n == 2 && parts[1] == "export" && m == "GET":
		a.Admin.ExportMembers(w, r)
	case parts[0] == "members" && n == 2 && m == "PUT":
		a.Admin.UpdateMember(w, r, parts[1])
	case parts[0] == "members" && n == 2 && m == "DELETE":
		a.Admin.DeleteMember(w, r, parts[1])

	default:
		response.Err(w, "not found", http.StatusNotFound)
	}
}
