package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// SignInResult is the user record returned by a successful sign-in.
type SignInResult struct {
	Message     string `json:"message"`
	Token       string `json:"token"`
	ID          int    `json:"id"`
	Name        string `json:"name"`
	EmpNo       string `json:"empNo"`
	GroupID     int    `json:"groupId"`
	GroupName   string `json:"groupName"`
	SectionID   int    `json:"sectionId"`
	SectionName string `json:"sectionName"`
}

// SignIn authenticates with employee number and password.
func (c *Client) SignIn(ctx context.Context, empNo, password string) (*SignInResult, error) {
	return c.signIn(ctx, "user.signIn", "/api/user/signIn", map[string]string{"empNo": empNo, "password": password})
}

// SignInRFID authenticates with an RFID badge value.
func (c *Client) SignInRFID(ctx context.Context, rfid string) (*SignInResult, error) {
	return c.signIn(ctx, "user.signin-rfid", "/api/user/signin-rfid", map[string]string{"rfid": rfid})
}

// signIn decodes the flat sign-in body. The backend reports rejection either
// as an error status or as {message: "unauthorized"} in a 2xx body.
func (c *Client) signIn(ctx context.Context, op, path string, payload any) (*SignInResult, error) {
	raw, err := c.doJSON(ctx, op, http.MethodPost, path, payload)
	if err != nil {
		if CodeOf(err) == CodeUnauthorized {
			return nil, errors.Join(ErrUnauthorized, err)
		}
		return nil, err
	}
	var res SignInResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &APIError{Op: op, Status: http.StatusOK, Message: "invalid response body", Err: err}
	}
	if res.Message == CodeUnauthorized || res.Token == "" {
		return nil, ErrUnauthorized
	}
	return &res, nil
}
