package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"plating/internal/auth"
	"plating/internal/dashboard"
	"plating/internal/logger"
	"plating/internal/models"
	"plating/internal/scan"
	"plating/internal/session"
	"plating/internal/testutil"
)

type fixture struct {
	h        *Handler
	be       *testutil.Backend
	sessions *session.Manager
}

func setup(t *testing.T) *fixture {
	t.Helper()
	be := testutil.NewBackend(t)
	be.AddAccount(testutil.Operator(7, "E007"), "secret", "0012345678")
	client := be.Client()
	sessions := testutil.SetupSessions(t)
	return &fixture{
		be:       be,
		sessions: sessions,
		h: &Handler{
			Auth: &auth.Service{
				Backend:       client,
				Sessions:      sessions,
				Lockout:       auth.NewLockout(),
				Log:           logger.Discard(),
				RFIDMinLength: 10,
			},
			Limiter: auth.NewLimiter(1, 3),
			Registry: scan.NewRegistry(scan.Deps{
				Lots: func(kind string) scan.LotBackend { return client.Lots(kind) },
			}),
			Palettes: dashboard.NewPalettes(),
			Dashboard: &dashboard.Dashboard{
				Issue:   client.Lots("issue"),
				Receive: client.Lots("receive"),
				Loc:     time.UTC,
			},
			Log: logger.Discard(),
			Now: func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) },
		},
	}
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestSignIn(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.SignIn(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin", SignInRequest{EmpNo: "E007", Password: "secret"}, ""))
	testutil.AssertStatus(t, w, http.StatusOK)

	c := sessionCookie(w)
	if c == nil || c.Value == "" {
		t.Fatal("Expected session cookie")
	}
	if !c.HttpOnly {
		t.Error("Expected HttpOnly cookie")
	}

	var resp SignInResponse
	testutil.DecodeEnvelope(t, w, &resp)
	if resp.Pending || resp.Session == nil {
		t.Fatalf("Expected a session, got %+v", resp)
	}
	if resp.Session.EmpNo != "E007" || resp.Session.GroupID != 1 {
		t.Errorf("Expected E007 in group 1, got %+v", resp.Session)
	}
	if resp.Session.Token != c.Value {
		t.Errorf("Expected cookie to carry the session token")
	}

	s, err := f.sessions.Lookup(t.Context(), c.Value)
	if err != nil {
		t.Fatalf("Expected stored session, got %v", err)
	}
	if s.BackendToken != "jwt-E007" {
		t.Errorf("Expected backend token jwt-E007, got %q", s.BackendToken)
	}
}

func TestSignIn_WrongPassword(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.SignIn(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin", SignInRequest{EmpNo: "E007", Password: "nope"}, ""))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	body := testutil.DecodeError(t, w)
	if body["title"] != "ไม่สามารถเข้าสู่ระบบได้" {
		t.Errorf("Expected denial title, got %v", body["title"])
	}
	if sessionCookie(w) != nil {
		t.Error("Expected no cookie on a failed sign-in")
	}
}

func TestSignIn_MissingFields(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.SignIn(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin", SignInRequest{EmpNo: "E007"}, ""))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	if f.be.Count("/api/user/signIn") != 0 {
		t.Error("Expected no backend call without a password")
	}
}

func TestSignIn_BadBody(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.SignIn(w, httptest.NewRequest("POST", "/api/v1/auth/signin", strings.NewReader("not json")))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestSignIn_RateLimited(t *testing.T) {
	f := setup(t)

	var w *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		w = httptest.NewRecorder()
		f.h.SignIn(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin", SignInRequest{EmpNo: "E007", Password: "nope"}, ""))
	}
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	if n := f.be.Count("/api/user/signIn"); n != 3 {
		t.Errorf("Expected 3 backend sign-in calls, got %d", n)
	}
}

func TestSignInRFID_ForwardedHeaderDoesNotEvadeLimit(t *testing.T) {
	f := setup(t)
	f.h.Limiter = auth.NewLimiter(0.01, 3)

	throttled := 0
	for i := 0; i < 20; i++ {
		req := testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin-rfid", map[string]string{"rfid": fmt.Sprintf("99999999%02d", i)}, "")
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("172.16.0.%d", i))
		w := httptest.NewRecorder()
		f.h.SignInRFID(w, req)
		if w.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	if throttled != 17 {
		t.Errorf("Expected 17 throttled attempts, got %d", throttled)
	}
	if n := f.be.Count("/api/user/signin-rfid"); n != 3 {
		t.Errorf("Expected 3 backend RFID calls, got %d", n)
	}
}

func TestSignInRFID_Pending(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.SignInRFID(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin-rfid", map[string]string{"rfid": "00123"}, ""))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp SignInResponse
	testutil.DecodeEnvelope(t, w, &resp)
	if !resp.Pending || resp.Session != nil {
		t.Errorf("Expected pending without session, got %+v", resp)
	}
	if f.be.Count("/api/user/signin-rfid") != 0 {
		t.Error("Expected no backend call for a partial badge")
	}
}

func TestSignInRFID(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.SignInRFID(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin-rfid", map[string]string{"rfid": "0012345678"}, ""))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp SignInResponse
	testutil.DecodeEnvelope(t, w, &resp)
	if resp.Session == nil || resp.Session.UserID != 7 {
		t.Fatalf("Expected session for user 7, got %+v", resp)
	}
	if sessionCookie(w) == nil {
		t.Error("Expected session cookie")
	}
}

func TestSignInRFID_Unknown(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.SignInRFID(w, testutil.AuthedJSONRequest("POST", "/api/v1/auth/signin-rfid", map[string]string{"rfid": "9999999999"}, ""))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	body := testutil.DecodeError(t, w)
	if body["error"] != "ไม่มีสิทธิ์ในการเข้าถึง" {
		t.Errorf("Expected access message, got %v", body["error"])
	}
}

func TestLogout(t *testing.T) {
	f := setup(t)
	s := testutil.Login(t, f.sessions, testutil.Operator(7, "E007"))
	f.h.Registry.Get(s.Token, scan.Issue, scan.Owner{UserID: 7, GroupID: 1})
	f.h.Palettes.For(s.Token)

	w := httptest.NewRecorder()
	f.h.Logout(w, testutil.WithSession(testutil.AuthedRequest("POST", "/api/v1/auth/logout", nil, s.Token), s))
	testutil.AssertStatus(t, w, http.StatusOK)

	if _, err := f.sessions.Lookup(t.Context(), s.Token); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected session removed, got %v", err)
	}
	if f.h.Registry.Len() != 0 {
		t.Errorf("Expected workflows dropped, got %d", f.h.Registry.Len())
	}
	c := sessionCookie(w)
	if c == nil || c.MaxAge >= 0 {
		t.Error("Expected cookie to be cleared")
	}
}

func TestMe(t *testing.T) {
	f := setup(t)
	s := testutil.Login(t, f.sessions, testutil.Operator(7, "E007"))

	w := httptest.NewRecorder()
	f.h.Me(w, testutil.WithSession(httptest.NewRequest("GET", "/api/v1/auth/me", nil), s))
	testutil.AssertStatus(t, w, http.StatusOK)

	var v session.View
	testutil.DecodeEnvelope(t, w, &v)
	if v.Name != "Operator E007" || v.SectionName != "PRESS" {
		t.Errorf("Expected operator view, got %+v", v)
	}

	w = httptest.NewRecorder()
	f.h.Me(w, httptest.NewRequest("GET", "/api/v1/auth/me", nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func seedLots(be *testutil.Backend) {
	at := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	box := models.LotBox{Qty: 10}
	be.SeedLots("issue",
		models.LotRow{ID: 1, SentDate: at, SentDateByUser: at, Shift: "A", GroupName: "PLATING", VendorName: "ACME", Status: "Complete", Boxes: []models.LotBox{box, box}},
		models.LotRow{ID: 2, SentDate: at, SentDateByUser: at, Shift: "B", GroupName: "PLATING", VendorName: "Zinc Co", Status: "Wait", Boxes: []models.LotBox{box}},
	)
	be.SeedLots("receive",
		models.LotRow{ID: 3, SentDate: at, SentDateByUser: at, Shift: "A", GroupName: "PLATING", VendorName: "acme ", Status: "Complete", Boxes: []models.LotBox{box}},
	)
}

func TestGetDashboard(t *testing.T) {
	f := setup(t)
	seedLots(f.be)
	s := testutil.Login(t, f.sessions, testutil.Operator(7, "E007"))

	w := httptest.NewRecorder()
	f.h.GetDashboard(w, testutil.WithSession(httptest.NewRequest("GET", "/api/v1/dashboard?from=2026-10-18&to=2026-10-18", nil), s))
	testutil.AssertStatus(t, w, http.StatusOK)

	var rep dashboard.Report
	testutil.DecodeEnvelope(t, w, &rep)
	if len(rep.Issue) != 2 || len(rep.Receive) != 1 {
		t.Fatalf("Expected 2 issue and 1 receive lots, got %d and %d", len(rep.Issue), len(rep.Receive))
	}
	if len(rep.Summary) != 2 {
		t.Fatalf("Expected 2 vendors, got %d", len(rep.Summary))
	}
	acme := rep.Summary[0]
	if acme.Vendor != "ACME" || acme.TotalIssue != 2 || acme.TotalReceive != 1 || acme.ReceiveRate != 50 {
		t.Errorf("Unexpected ACME summary %+v", acme)
	}
	if acme.Color == "" {
		t.Error("Expected vendor color")
	}
}

func TestGetDashboard_StatusNarrowsTablesOnly(t *testing.T) {
	f := setup(t)
	seedLots(f.be)

	w := httptest.NewRecorder()
	f.h.GetDashboard(w, httptest.NewRequest("GET", "/api/v1/dashboard?status=Wait", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var rep dashboard.Report
	testutil.DecodeEnvelope(t, w, &rep)
	if len(rep.Issue) != 1 || rep.Issue[0].ID != 2 {
		t.Errorf("Expected only the waiting lot, got %+v", rep.Issue)
	}
	if len(rep.Summary) != 2 {
		t.Errorf("Expected summary to ignore status, got %d vendors", len(rep.Summary))
	}
}

func TestGetDashboard_BadFilter(t *testing.T) {
	f := setup(t)

	w := httptest.NewRecorder()
	f.h.GetDashboard(w, httptest.NewRequest("GET", "/api/v1/dashboard?from=2026-10-20&to=2026-10-01", nil))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestGetDashboard_BackendDown(t *testing.T) {
	f := setup(t)
	f.be.FailOn("/api/issue/list", http.StatusServiceUnavailable, map[string]any{"message": "maintenance"})

	w := httptest.NewRecorder()
	f.h.GetDashboard(w, httptest.NewRequest("GET", "/api/v1/dashboard", nil))
	testutil.AssertStatus(t, w, http.StatusBadGateway)
}

func TestExportDashboard(t *testing.T) {
	f := setup(t)
	seedLots(f.be)

	w := httptest.NewRecorder()
	f.h.ExportDashboard(w, httptest.NewRequest("GET", "/api/v1/dashboard/export", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Expected xlsx content type, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Dashboard_20261019.xlsx") {
		t.Errorf("Expected dated filename, got %s", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "PK") {
		t.Error("Expected a zip-based workbook")
	}
}
