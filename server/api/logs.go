package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/server/middle"
	"github.com/dekarrin/campman/server/result"
	"github.com/dekarrin/campman/server/service"
)

// parseLogQuery reads the activity log filters from query parameters. Blank
// parameters do not filter.
func parseLogQuery(q url.Values) (service.LogQuery, error) {
	lq := service.LogQuery{
		Action:       q.Get("action"),
		Status:       q.Get("status"),
		ResourceType: q.Get("resource_type"),
	}

	ints := []struct {
		name string
		dest *int
	}{
		{"user_id", &lq.UserID},
		{"page", &lq.Page},
		{"per_page", &lq.PerPage},
	}
	for _, p := range ints {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return service.LogQuery{}, fmt.Errorf("%s: must be an integer", p.name)
			}
			*p.dest = n
		}
	}

	var err error
	lq.StartDate, lq.EndDate, err = parseDateRange(q)
	if err != nil {
		return service.LogQuery{}, err
	}

	return lq, nil
}

func parseDateRange(q url.Values) (start, end campaign.Date, err error) {
	if v := q.Get("start_date"); v != "" {
		start, err = campaign.ParseDate(v)
		if err != nil {
			return start, end, fmt.Errorf("start_date: must be in YYYY-MM-DD format")
		}
	}
	if v := q.Get("end_date"); v != "" {
		end, err = campaign.ParseDate(v)
		if err != nil {
			return start, end, fmt.Errorf("end_date: must be in YYYY-MM-DD format")
		}
	}
	return start, end, nil
}

// HTTPGetLogs returns a HandlerFunc that gives a page of the activity log,
// filtered by the query parameters, along with the values each filter can
// take. Only an admin user can call this endpoint.
func (api API) HTTPGetLogs() http.HandlerFunc {
	return api.Endpoint(api.epGetLogs)
}

func (api API) epGetLogs(req *http.Request) result.Result {
	user := middle.User(req)

	q, err := parseLogQuery(req.URL.Query())
	if err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	pg, err := api.Backend.QueryLogs(req.Context(), q)
	if err != nil {
		return errResult(err, "query logs")
	}

	resp := LogsResponse{
		Logs: make([]LogEntryModel, len(pg.Entries)),
		Pagination: PaginationModel{
			Page:    pg.Page,
			Pages:   pg.Pages,
			Total:   pg.Total,
			HasPrev: pg.HasPrev(),
			HasNext: pg.HasNext(),
		},
		Filters: LogFiltersModel{
			Users:         make([]LogUserModel, len(pg.Options.Users)),
			Actions:       pg.Options.Actions,
			Statuses:      pg.Options.Statuses,
			ResourceTypes: pg.Options.ResourceTypes,
		},
	}
	for i := range pg.Entries {
		resp.Logs[i] = logEntryModel(pg.Entries[i])
	}
	for i, u := range pg.Options.Users {
		resp.Filters.Users[i] = LogUserModel{ID: u.ID, Email: u.Email}
	}

	return result.OK(resp, "user '%s' got page %d of logs", user.Email, pg.Page)
}

// HTTPExportLogs returns a HandlerFunc that renders every activity log entry
// selected by the query parameters as CSV. Only an admin user can call this
// endpoint.
func (api API) HTTPExportLogs() http.HandlerFunc {
	return api.Endpoint(api.epExportLogs)
}

func (api API) epExportLogs(req *http.Request) result.Result {
	user := middle.User(req)
	act := api.startActivity(req, service.ActionExportLogs, service.ResourceLog)

	q, err := parseLogQuery(req.URL.Query())
	if err != nil {
		return act.finish(result.BadRequest(err.Error(), err.Error()))
	}

	data, filename, err := api.Backend.ExportLogs(req.Context(), q)
	if err != nil {
		return act.finish(errResult(err, "export logs"))
	}
	act.detail("filename", filename)

	return act.finish(result.OK(ExportResponse{CSVData: data, Filename: filename}, "user '%s' exported logs", user.Email))
}

// HTTPGetLogStats returns a HandlerFunc that summarizes the activity log over
// the date range in the query parameters. Only an admin user can call this
// endpoint.
func (api API) HTTPGetLogStats() http.HandlerFunc {
	return api.Endpoint(api.epGetLogStats)
}

func (api API) epGetLogStats(req *http.Request) result.Result {
	user := middle.User(req)

	start, end, err := parseDateRange(req.URL.Query())
	if err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	stats, err := api.Backend.LogStats(req.Context(), start, end)
	if err != nil {
		return errResult(err, "log stats")
	}

	resp := StatsResponse{
		Summary: StatsSummaryModel{
			TotalActions: stats.TotalActions,
			ErrorActions: stats.ErrorActions,
			ErrorRate:    stats.ErrorRate,
		},
		DailyActivity: make([]DailyCountModel, len(stats.DailyActivity)),
		TopUsers:      make([]UserCountModel, len(stats.TopUsers)),
		TopActions:    make([]ActionCountModel, len(stats.TopActions)),
	}
	for i, c := range stats.DailyActivity {
		resp.DailyActivity[i] = DailyCountModel{Date: c.Key, Count: c.Count}
	}
	for i, c := range stats.TopUsers {
		resp.TopUsers[i] = UserCountModel{Email: c.Key, Count: c.Count}
	}
	for i, c := range stats.TopActions {
		resp.TopActions[i] = ActionCountModel{Action: c.Key, Count: c.Count}
	}

	return result.OK(resp, "user '%s' got log stats", user.Email)
}
