package backend

import (
	"context"
	"net/http"

	"plating/internal/models"
)

// LotAPI exposes the temp-stack endpoints of one lot kind ("issue" or "receive").
type LotAPI struct {
	c    *Client
	kind string
}

// Lots returns the lot endpoints under /api/<kind>.
func (c *Client) Lots(kind string) *LotAPI {
	return &LotAPI{c: c, kind: kind}
}

func (l *LotAPI) Kind() string { return l.kind }

func (l *LotAPI) path(op string) string { return "/api/" + l.kind + "/" + op }
func (l *LotAPI) op(op string) string { return l.kind + "." + op }

// FetchHeaderByUser returns the user's open header, or nil when none exists.
func (l *LotAPI) FetchHeaderByUser(ctx context.Context, userID int) (*models.LotHeader, error) {
	var h *models.LotHeader
	err := l.c.read(ctx, l.op("fetchHeaderTempByUser"), http.MethodPost, l.path("fetchHeaderTempByUser"),
		map[string]int{"userId": userID}, &h)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (l *LotAPI) CreateHeader(ctx context.Context, in models.HeaderInput) (*models.LotHeader, error) {
	in.HeadTempID = 0
	var h models.LotHeader
	if _, err := l.c.write(ctx, l.op("createHeaderTemp"), http.MethodPost, l.path("createHeaderTemp"), in, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (l *LotAPI) UpdateHeader(ctx context.Context, in models.HeaderInput) (*models.LotHeader, error) {
	var h models.LotHeader
	if _, err := l.c.write(ctx, l.op("updateHeaderTemp"), http.MethodPost, l.path("updateHeaderTemp"), in, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (l *LotAPI) ListBoxes(ctx context.Context, headerID int) ([]models.BoxEntry, error) {
	var rows []models.BoxEntry
	err := l.c.read(ctx, l.op("fetchBoxTempByHeadId"), http.MethodPost, l.path("fetchBoxTempByHeadId"),
		map[string]int{"headerId": headerID}, &rows)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.BoxEntry{}
	}
	return rows, nil
}

func (l *LotAPI) CreateBox(ctx context.Context, in models.BoxInput) error {
	_, err := l.c.write(ctx, l.op("createBoxTemp"), http.MethodPost, l.path("createBoxTemp"), in, nil)
	return err
}

func (l *LotAPI) UpdateBoxQty(ctx context.Context, boxID, qty int) error {
	_, err := l.c.write(ctx, l.op("updateBoxTemp"), http.MethodPut, l.path("updateBoxTemp"),
		map[string]int{"boxTempId": boxID, "qty": qty}, nil)
	return err
}

func (l *LotAPI) DeleteBox(ctx context.Context, boxID int) error {
	_, err := l.c.write(ctx, l.op("deleteBoxTemp"), http.MethodPost, l.path("deleteBoxTemp"),
		map[string]int{"boxTempId": boxID}, nil)
	return err
}

func (l *LotAPI) DeleteAllBoxes(ctx context.Context, headerID int) error {
	_, err := l.c.write(ctx, l.op("deleteBoxTempAll"), http.MethodPost, l.path("deleteBoxTempAll"),
		map[string]int{"headTempId": headerID}, nil)
	return err
}

// Commit moves the temp header and its boxes into a final lot and detaches it from the user.
func (l *LotAPI) Commit(ctx context.Context, headerID, userID int) error {
	_, err := l.c.write(ctx, l.op("createHeaderBox"), http.MethodPost, l.path("createHeaderBox"),
		map[string]int{"headTempId": headerID, "userId": userID}, nil)
	return err
}

// ListLots returns the lot list used by the dashboard.
func (l *LotAPI) ListLots(ctx context.Context) ([]models.LotRow, error) {
	var rows []models.LotRow
	if err := l.c.read(ctx, l.op("list"), http.MethodGet, l.path("list"), nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.LotRow{}
	}
	return rows, nil
}
