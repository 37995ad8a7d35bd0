package activity

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dekarrin/campman/internal/apiclient"
	"github.com/dekarrin/campman/internal/cmerr"
)

// Console messages for a refused request to each log resource.
const (
	MsgForbiddenList   = "Admin access required to view activity logs"
	MsgForbiddenExport = "Admin access required to export activity logs"
	MsgForbiddenStats  = "Admin access required to view activity statistics"
)

// Source is where an Engine gets its data from.
type Source interface {
	Fetch(ctx context.Context, f Filters) (Page, error)
	Export(ctx context.Context, f Filters) (ExportResult, error)
	Stats(ctx context.Context, startDate, endDate string) (Stats, error)
}

// Client reads the log resources of the backend.
type Client struct {
	api apiclient.Requester
}

func NewClient(api apiclient.Requester) *Client {
	return &Client{api: api}
}

// Fetch gets one page of entries matching f.
func (c *Client) Fetch(ctx context.Context, f Filters) (Page, error) {
	var p Page
	err := c.api.Get(ctx, "logs", &p, apiclient.WithQuery(f.Values()))
	if err != nil {
		return Page{}, translate(err, MsgForbiddenList, "Failed to load activity logs")
	}
	return p, nil
}

// Export gets a CSV rendering of every entry matching f, regardless of page.
func (c *Client) Export(ctx context.Context, f Filters) (ExportResult, error) {
	var res ExportResult
	err := c.api.Get(ctx, "logs/export", &res, apiclient.WithQuery(f.ExportValues()))
	if err != nil {
		return ExportResult{}, translate(err, MsgForbiddenExport, "Failed to export logs")
	}
	return res, nil
}

// Stats gets aggregate statistics between the given dates, either of which
// may be empty.
func (c *Client) Stats(ctx context.Context, startDate, endDate string) (Stats, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set(string(KeyStartDate), startDate)
	}
	if endDate != "" {
		q.Set(string(KeyEndDate), endDate)
	}

	var s Stats
	if err := c.api.Get(ctx, "logs/stats", &s, apiclient.WithQuery(q)); err != nil {
		return Stats{}, translate(err, MsgForbiddenStats, "Failed to load activity statistics")
	}
	return s, nil
}

func translate(err error, forbidden, fallback string) error {
	if apiclient.Status(err) == http.StatusForbidden {
		return cmerr.Forbidden(forbidden, err)
	}
	if msg := apiclient.Message(err); msg != "" && apiclient.Status(err) != 0 {
		return cmerr.WithConsole(msg, "", err)
	}
	return cmerr.WithConsole(fallback, "", err)
}
