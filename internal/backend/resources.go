package backend

import (
	"context"
	"io"
	"net/http"

	"plating/internal/models"
)

// Resource is a master-data collection exposed as /api/<name>/{list,create,edit,delete}.
type Resource[T any] struct {
	c    *Client
	name string
}

func (r Resource[T]) Name() string { return r.name }

func (r Resource[T]) List(ctx context.Context) ([]T, error) {
	var rows []T
	if err := r.c.read(ctx, r.name+".list", http.MethodGet, "/api/"+r.name+"/list", nil, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func (r Resource[T]) Create(ctx context.Context, payload any) error {
	_, err := r.c.write(ctx, r.name+".create", http.MethodPost, "/api/"+r.name+"/create", payload, nil)
	return err
}

func (r Resource[T]) Edit(ctx context.Context, payload any) error {
	_, err := r.c.write(ctx, r.name+".edit", http.MethodPut, "/api/"+r.name+"/edit", payload, nil)
	return err
}

func (r Resource[T]) Delete(ctx context.Context, id int) error {
	_, err := r.c.write(ctx, r.name+".delete", http.MethodPost, "/api/"+r.name+"/delete", map[string]int{"id": id}, nil)
	return err
}

// Import uploads a spreadsheet to /api/<name>/importExcel.
func (r Resource[T]) Import(ctx context.Context, filename string, file io.Reader, fields map[string]string) (*models.ImportSummary, error) {
	var out models.ImportSummary
	if err := r.c.Upload(ctx, r.name+".importExcel", "/api/"+r.name+"/importExcel", filename, file, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export asks /api/<name>/exportExcel for a spreadsheet matching filters.
func (r Resource[T]) Export(ctx context.Context, filters any) ([]byte, error) {
	return r.c.Download(ctx, r.name+".exportExcel", "/api/"+r.name+"/exportExcel", map[string]any{"filters": filters})
}

func (c *Client) Vendors() Resource[models.Vendor] { return Resource[models.Vendor]{c, "vendor"} }
func (c *Client) Groups() Resource[models.Group] { return Resource[models.Group]{c, "group"} }
func (c *Client) Sections() Resource[models.Section] { return Resource[models.Section]{c, "section"} }
func (c *Client) ControlLots() Resource[models.ControlLot] { return Resource[models.ControlLot]{c, "controlLot"} }
func (c *Client) PartMasters() Resource[models.PartMaster] { return Resource[models.PartMaster]{c, "partMaster"} }
func (c *Client) Users() Resource[models.Member] { return Resource[models.Member]{c, "user"} }

// PartsByGroup returns the part master rows of one group.
func (c *Client) PartsByGroup(ctx context.Context, groupID int) ([]models.PartMaster, error) {
	var rows []models.PartMaster
	err := c.read(ctx, "partMaster.filterByGroup", http.MethodPost, "/api/partMaster/filterByGroup",
		map[string]int{"groupId": groupID}, &rows)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.PartMaster{}
	}
	return rows, nil
}

// Catalog is the read-only view of the lookup lists the scan header form needs.
type Catalog struct{ c *Client }

func (c *Client) Catalog() Catalog { return Catalog{c} }

func (cat Catalog) Vendors(ctx context.Context) ([]models.Vendor, error) {
	return cat.c.Vendors().List(ctx)
}

func (cat Catalog) ControlLots(ctx context.Context) ([]models.ControlLot, error) {
	return cat.c.ControlLots().List(ctx)
}

func (cat Catalog) PartsByGroup(ctx context.Context, groupID int) ([]models.PartMaster, error) {
	return cat.c.PartsByGroup(ctx, groupID)
}
