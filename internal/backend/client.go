package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"plating/internal/metrics"
)

type ctxKey struct{}

// WithToken attaches the backend bearer token of the signed-in operator to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// Client talks to the plating REST backend. It never retries.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

// New creates a Client for baseURL.
func New(baseURL string, timeout time.Duration, m *metrics.Metrics, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Metrics: m,
		Log:     log,
	}
}

type readEnvelope struct {
	Results json.RawMessage `json:"results"`
}

type writeEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if tok := tokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// send performs the request and returns the raw body of a 2xx response.
func (c *Client) send(op string, req *http.Request) (raw []byte, err error) {
	started := time.Now()
	defer func() {
		c.Metrics.ObserveBackend(op, started, err)
		if err != nil {
			c.Log.Warn("backend call failed", "op", op, "method", req.Method, "path", req.URL.Path, "err", err)
		}
	}()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(op, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	contentType := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode payload: %w", op, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c.send(op, req)
}

// read performs a call whose response is a {results} envelope and decodes
// results into out. A null results leaves out untouched.
func (c *Client) read(ctx context.Context, op, method, path string, payload, out any) error {
	raw, err := c.doJSON(ctx, op, method, path, payload)
	if err != nil {
		return err
	}
	var env readEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Op: op, Status: http.StatusOK, Message: "invalid response body", Err: err}
	}
	if len(env.Results) == 0 || string(env.Results) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Results, out); err != nil {
		return &APIError{Op: op, Status: http.StatusOK, Message: "invalid results", Err: err}
	}
	return nil
}

// write performs a mutating call whose response is a {message, data}
// envelope. When out is non-nil, data is decoded into it.
func (c *Client) write(ctx context.Context, op, method, path string, payload, out any) (string, error) {
	raw, err := c.doJSON(ctx, op, method, path, payload)
	if err != nil {
		return "", err
	}
	var env writeEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return "", &APIError{Op: op, Status: http.StatusOK, Message: "invalid response body", Err: err}
		}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env.Message, &APIError{Op: op, Status: http.StatusOK, Message: "invalid data", Err: err}
		}
	}
	return env.Message, nil
}

// Upload posts a file as multipart field "file" plus extra form fields and
// decodes the JSON response body into out.
func (c *Client) Upload(ctx context.Context, op, path, filename string, file io.Reader, fields map[string]string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return fmt.Errorf("%s: read upload: %w", op, err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	raw, err := c.send(op, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Op: op, Status: http.StatusOK, Message: "invalid response body", Err: err}
	}
	return nil
}

// Download posts payload and returns the binary response body.
func (c *Client) Download(ctx context.Context, op, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode payload: %w", op, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b), "application/json")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	return c.send(op, req)
}
