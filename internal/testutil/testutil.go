package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plating/internal/backend"
	"plating/internal/models"
	"plating/internal/session"
)

// SetupSessions creates a session manager over an in-memory SQLite store.
func SetupSessions(t *testing.T) *session.Manager {
	t.Helper()
	store, err := session.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to open session store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return session.NewManager(store, time.Hour)
}

// Operator returns a sign-in result for a test operator.
func Operator(id int, empNo string) *backend.SignInResult {
	return &backend.SignInResult{
		Token: "jwt-" + empNo, ID: id, Name: "Operator " + empNo, EmpNo: empNo,
		GroupID: 1, GroupName: "PLATING", SectionID: 2, SectionName: "PRESS",
	}
}

// Login opens a session for res and returns it.
func Login(t *testing.T, m *session.Manager, res *backend.SignInResult) *session.Session {
	t.Helper()
	s, err := m.Login(context.Background(), res)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return s
}

// AuthedRequest creates an HTTP request carrying the session cookie.
func AuthedRequest(method, path string, body []byte, sessionToken string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sessionToken})
	}

	return req
}

// AuthedJSONRequest creates an authenticated HTTP request with JSON content type.
func AuthedJSONRequest(method, path string, body interface{}, sessionToken string) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}

	req := AuthedRequest(method, path, bodyBytes, sessionToken)
	req.Header.Set("Content-Type", "application/json")

	return req
}

// WithSession attaches s to req the way the session middleware does, for
// calling handlers directly.
func WithSession(req *http.Request, s *session.Session) *http.Request {
	ctx := session.WithSession(req.Context(), s)
	ctx = backend.WithToken(ctx, s.BackendToken)
	return req.WithContext(ctx)
}

// DecodeAPIResponse decodes an APIResponse from a ResponseRecorder.
func DecodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var response models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode API response: %v", err)
	}
	return response
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an API response envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v interface{}) *models.Notice {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
	return resp.Notice
}

// DecodeError decodes an error body.
func DecodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body
}
