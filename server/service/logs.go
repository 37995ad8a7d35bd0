package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"strconv"
	"time"

	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/internal/util"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/serr"
)

// Actions recorded in the activity log.
const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionSetPassword    = "set_password"
	ActionCreateCampaign = "create_campaign"
	ActionUpdateCampaign = "update_campaign"
	ActionDeleteCampaign = "delete_campaign"
	ActionUploadImages   = "upload_images"
	ActionAddUser        = "add_user"
	ActionDeleteUser     = "delete_user"
	ActionExportLogs     = "export_logs"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	ResourceAuth     = "auth"
	ResourceCampaign = "campaign"
	ResourceUser     = "user"
	ResourceLog      = "log"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
	topN           = 10
)

// LogQuery selects activity log entries. Zero-valued fields do not filter.
// StartDate and EndDate are both inclusive.
type LogQuery struct {
	UserID       int
	Action       string
	Status       string
	ResourceType string
	StartDate    campaign.Date
	EndDate      campaign.Date
	Page         int
	PerPage      int
}

func (q LogQuery) matches(e dao.LogEntry) bool {
	if q.UserID != 0 && e.UserID != q.UserID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if q.Status != "" && e.Status != q.Status {
		return false
	}
	if q.ResourceType != "" && e.ResourceType != q.ResourceType {
		return false
	}
	return inRange(e.Created, q.StartDate, q.EndDate)
}

func inRange(t time.Time, start, end campaign.Date) bool {
	day := campaign.DateOf(t.UTC())
	if !start.IsZero() && day.Before(start) {
		return false
	}
	if !end.IsZero() && day.After(end) {
		return false
	}
	return true
}

// LogUser is a user that appears in the activity log.
type LogUser struct {
	ID    int
	Email string
}

// LogOptions holds the distinct values each filter can take.
type LogOptions struct {
	Users         []LogUser
	Actions       []string
	Statuses      []string
	ResourceTypes []string
}

// LogPage is one page of filtered activity log entries.
type LogPage struct {
	Entries []dao.LogEntry
	Page    int
	Pages   int
	Total   int
	Options LogOptions
}

func (p LogPage) HasPrev() bool {
	return p.Page > 1
}

func (p LogPage) HasNext() bool {
	return p.Page < p.Pages
}

// LogStats summarizes the activity log over a date range.
type LogStats struct {
	TotalActions int
	ErrorActions int

	// ErrorRate is the percentage of actions that failed, to two decimal
	// places.
	ErrorRate     float64
	DailyActivity []Count
	TopUsers      []Count
	TopActions    []Count
}

// Count is a number of log entries with the same Key.
type Count struct {
	Key   string
	Count int
}

// RecordActivity adds entry to the activity log. Created is set to the current
// time and an empty Status is taken as success.
func (svc Service) RecordActivity(ctx context.Context, entry dao.LogEntry) (dao.LogEntry, error) {
	if entry.Status == "" {
		entry.Status = StatusSuccess
	}
	entry.Created = svc.now()

	created, err := svc.DB.Logs().Create(ctx, entry)
	if err != nil {
		return dao.LogEntry{}, serr.WrapDB("could not record activity", err)
	}
	return created, nil
}

// QueryLogs returns the page of log entries selected by q, newest first,
// along with the filter options available across the whole log. A page past
// the end is clamped to the last page.
func (svc Service) QueryLogs(ctx context.Context, q LogQuery) (LogPage, error) {
	all, err := svc.DB.Logs().GetAll(ctx)
	if err != nil {
		return LogPage{}, serr.WrapDB("could not get logs", err)
	}

	perPage := q.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	} else if perPage > maxPerPage {
		perPage = maxPerPage
	}

	filtered := filterLogs(all, q)

	pg := LogPage{
		Total:   len(filtered),
		Pages:   int(math.Ceil(float64(len(filtered)) / float64(perPage))),
		Page:    q.Page,
		Options: logOptions(all),
	}
	if pg.Pages < 1 {
		pg.Pages = 1
	}
	if pg.Page < 1 {
		pg.Page = 1
	} else if pg.Page > pg.Pages {
		pg.Page = pg.Pages
	}

	start := (pg.Page - 1) * perPage
	end := start + perPage
	if end > len(filtered) {
		end = len(filtered)
	}
	pg.Entries = filtered[start:end]

	return pg, nil
}

// ExportLogs renders the entries selected by q as CSV, newest first. Paging in
// q is ignored and at most ExportLimit entries are included. The returned
// filename is stamped with the current time.
func (svc Service) ExportLogs(ctx context.Context, q LogQuery) (data string, filename string, err error) {
	all, err := svc.DB.Logs().GetAll(ctx)
	if err != nil {
		return "", "", serr.WrapDB("could not get logs", err)
	}

	filtered := filterLogs(all, q)
	if len(filtered) > svc.exportLimit() {
		filtered = filtered[:svc.exportLimit()]
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"ID", "Timestamp", "User", "Action", "Status", "Resource Type", "Resource ID", "IP Address", "Duration (ms)", "Details"})
	for _, e := range filtered {
		var dur string
		if e.DurationMS != nil {
			dur = strconv.FormatFloat(*e.DurationMS, 'f', -1, 64)
		}
		w.Write([]string{
			strconv.Itoa(e.ID),
			e.Created.UTC().Format(time.RFC3339),
			e.UserEmail,
			e.Action,
			e.Status,
			e.ResourceType,
			e.ResourceID,
			e.IPAddress,
			dur,
			e.Details,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", "", serr.New("could not write CSV", err)
	}

	filename = "activity_logs_" + svc.now().UTC().Format("20060102_150405") + ".csv"
	return buf.String(), filename, nil
}

// LogStats computes statistics over the entries created between start and end,
// inclusive. A zero date leaves that side unbounded.
func (svc Service) LogStats(ctx context.Context, start, end campaign.Date) (LogStats, error) {
	all, err := svc.DB.Logs().GetAll(ctx)
	if err != nil {
		return LogStats{}, serr.WrapDB("could not get logs", err)
	}

	var stats LogStats
	daily := map[string]int{}
	byUser := map[string]int{}
	byAction := map[string]int{}

	for _, e := range all {
		if !inRange(e.Created, start, end) {
			continue
		}
		stats.TotalActions++
		if e.Status == StatusError {
			stats.ErrorActions++
		}
		daily[campaign.DateOf(e.Created.UTC()).String()]++
		if e.UserEmail != "" {
			byUser[e.UserEmail]++
		}
		byAction[e.Action]++
	}

	if stats.TotalActions > 0 {
		rate := float64(stats.ErrorActions) / float64(stats.TotalActions) * 100
		stats.ErrorRate = math.Round(rate*100) / 100
	}

	for _, day := range util.OrderedKeys(daily) {
		stats.DailyActivity = append(stats.DailyActivity, Count{Key: day, Count: daily[day]})
	}
	stats.TopUsers = topCounts(byUser)
	stats.TopActions = topCounts(byAction)

	return stats, nil
}

// PruneLogs deletes every log entry older than the retention period and
// returns how many were removed.
func (svc Service) PruneLogs(ctx context.Context) (int, error) {
	cutoff := svc.now().Add(-svc.logRetention())
	n, err := svc.DB.Logs().DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, serr.WrapDB("could not prune logs", err)
	}
	return n, nil
}

func filterLogs(all []dao.LogEntry, q LogQuery) []dao.LogEntry {
	var filtered []dao.LogEntry
	for _, e := range all {
		if q.matches(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func logOptions(all []dao.LogEntry) LogOptions {
	users := map[int]string{}
	actions := map[string]bool{}
	statuses := map[string]bool{}
	resTypes := map[string]bool{}

	for _, e := range all {
		if e.UserID != 0 {
			users[e.UserID] = e.UserEmail
		}
		actions[e.Action] = true
		statuses[e.Status] = true
		if e.ResourceType != "" {
			resTypes[e.ResourceType] = true
		}
	}

	var opts LogOptions
	for id, email := range users {
		opts.Users = append(opts.Users, LogUser{ID: id, Email: email})
	}
	opts.Users = util.SortBy(opts.Users, func(l, r LogUser) bool {
		return l.Email < r.Email
	})
	opts.Actions = util.OrderedKeys(actions)
	opts.Statuses = util.OrderedKeys(statuses)
	opts.ResourceTypes = util.OrderedKeys(resTypes)

	return opts
}

// topCounts gives the topN keys of counts, highest count first and ties in
// key order.
func topCounts(counts map[string]int) []Count {
	var out []Count
	for _, k := range util.OrderedKeys(counts) {
		out = append(out, Count{Key: k, Count: counts[k]})
	}
	out = util.SortBy(out, func(l, r Count) bool {
		return l.Count > r.Count
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
