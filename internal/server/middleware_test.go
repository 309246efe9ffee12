package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plating/internal/logger"
	"plating/internal/session"
	"plating/internal/testutil"
)

func TestGzipMiddleware(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Hello World"))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Error("Expected Content-Encoding: gzip")
	}

	// Verify body is gzipped
	gr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Failed to create gzip reader: %v", err)
	}
	defer gr.Close()

	body, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("Failed to read gzip body: %v", err)
	}

	if string(body) != "Hello World" {
		t.Errorf("Expected 'Hello World', got '%s'", string(body))
	}
}

func TestGzipMiddleware_ErrorResponse(t *testing.T) {
	// Simulate http.Error behavior: WriteHeader then Write
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Error("Expected Content-Encoding: gzip even for error responses")
	}
}

func TestGzipMiddleware_NoGzipAccept(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello World"))
	}))

	req := httptest.NewRequest("GET", "/", nil)
	// No Accept-Encoding header
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("Expected no Content-Encoding: gzip")
	}

	if w.Body.String() != "Hello World" {
		t.Errorf("Expected 'Hello World', got '%s'", w.Body.String())
	}
}

func TestGzipMiddleware_SkipsUpgrade(t *testing.T) {
	handler := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(GzipResponseWriter); ok {
			t.Error("Expected the raw ResponseWriter for an upgrade")
		}
	}))

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") == "gzip" {
		t.Error("Expected no gzip on an upgrade")
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/v1/members", nil))

	if called {
		t.Error("Expected preflight to stop before the handler")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Headers") != "Content-Type, Authorization" {
		t.Errorf("Unexpected allow headers %q", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("Expected X-Frame-Options: DENY")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("Expected no HSTS without TLS")
	}
}

func TestLoggingMiddleware_Status(t *testing.T) {
	handler := LoggingMiddleware(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected status 418, got %d", w.Code)
	}
}

func sessionEcho(t *testing.T) (http.Handler, *session.Manager) {
	t.Helper()
	m := testutil.SetupSessions(t)
	return RequireSession(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session.FromContext(r.Context())
		if s == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(s.EmpNo))
	})), m
}

func TestRequireSession(t *testing.T) {
	handler, m := sessionEcho(t)
	s := testutil.Login(t, m, testutil.Operator(7, "E007"))

	tests := []struct {
		name   string
		req    *http.Request
		status int
		body   string
	}{
		{"static is open", httptest.NewRequest("GET", "/index.html", nil), 200, "anonymous"},
		{"sign-in is open", httptest.NewRequest("POST", "/api/v1/auth/signin", nil), 200, "anonymous"},
		{"rfid sign-in is open", httptest.NewRequest("POST", "/api/v1/auth/signin-rfid/", nil), 200, "anonymous"},
		{"api needs session", httptest.NewRequest("GET", "/api/v1/members", nil), 401, ""},
		{"ws needs session", httptest.NewRequest("GET", "/ws", nil), 401, ""},
		{"cookie", testutil.AuthedRequest("GET", "/api/v1/members", nil, s.Token), 200, "E007"},
		{"unknown cookie", testutil.AuthedRequest("GET", "/api/v1/members", nil, "nope"), 401, ""},
	}
	bearer := httptest.NewRequest("GET", "/api/v1/dashboard", nil)
	bearer.Header.Set("Authorization", "Bearer "+s.Token)
	tests = append(tests, struct {
		name   string
		req    *http.Request
		status int
		body   string
	}{"bearer", bearer, 200, "E007"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, tt.req)
			testutil.AssertStatus(t, w, tt.status)
			if tt.status == 200 && w.Body.String() != tt.body {
				t.Errorf("Expected body %q, got %q", tt.body, w.Body.String())
			}
			if tt.status == 401 {
				body := testutil.DecodeError(t, w)
				if body["code"] != "UNAUTHORIZED" {
					t.Errorf("Expected code UNAUTHORIZED, got %v", body["code"])
				}
			}
		})
	}
}

func TestRequireSession_Expired(t *testing.T) {
	handler, m := sessionEcho(t)
	s := testutil.Login(t, m, testutil.Operator(7, "E007"))
	m.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/v1/members", nil, s.Token))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func TestRequireSession_BackendToken(t *testing.T) {
	m := testutil.SetupSessions(t)
	s := testutil.Login(t, m, testutil.Operator(7, "E007"))
	fake := testutil.NewBackend(t)
	client := fake.Client()

	handler := RequireSession(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := client.Vendors().List(r.Context()); err != nil {
			t.Errorf("Unexpected backend error: %v", err)
		}
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, testutil.AuthedRequest("GET", "/api/v1/vendors", nil, s.Token))

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 backend call, got %d", len(calls))
	}
	if calls[0].Auth != "Bearer jwt-E007" {
		t.Errorf("Expected Bearer jwt-E007, got %q", calls[0].Auth)
	}
}
