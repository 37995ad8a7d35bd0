// Package activity queries the backend's audit log. It keeps the current
// filter state, fetches pages of entries and statistics, and exports the
// filtered log as CSV.
package activity

import (
	"bytes"
	"encoding/json"
	"time"
)

// Text is a JSON value read as text. Strings are taken as-is, null is empty,
// and any other value keeps its JSON encoding. Backends disagree about whether
// IDs are numbers or strings, and details may be an object or an encoded one.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

func (t Text) String() string {
	return string(t)
}

// Entry is a single audit log record. It is never modified by the client.
type Entry struct {
	ID           int      `json:"id"`
	CreatedAt    string   `json:"created_at"`
	UserID       Text     `json:"user_id"`
	UserEmail    string   `json:"user_email"`
	Action       string   `json:"action"`
	Status       string   `json:"status"`
	ResourceType string   `json:"resource_type"`
	ResourceID   Text     `json:"resource_id"`
	IPAddress    string   `json:"ip_address"`
	DurationMS   *float64 `json:"duration_ms"`
	Details      Text     `json:"details"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Time parses CreatedAt. Timestamps without a zone are taken as UTC.
func (e Entry) Time() (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, e.CreatedAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Pagination describes where a page sits in the full filtered result.
type Pagination struct {
	Page    int  `json:"page"`
	Pages   int  `json:"pages"`
	Total   int  `json:"total"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// UserOption is a user that appears in the log. The backend may list users as
// bare emails or as objects.
type UserOption struct {
	ID    Text   `json:"id"`
	Email string `json:"email"`
}

func (uo *UserOption) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var email string
		if err := json.Unmarshal(data, &email); err != nil {
			return err
		}
		*uo = UserOption{Email: email}
		return nil
	}

	type plain UserOption
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*uo = UserOption(p)
	return nil
}

// Options are the distinct values present in the log, offered as choices for
// each filter.
type Options struct {
	Users         []UserOption `json:"users"`
	Actions       []string     `json:"actions"`
	Statuses      []string     `json:"statuses"`
	ResourceTypes []string     `json:"resource_types"`
}

// Page is one response from the log listing.
type Page struct {
	Logs       []Entry    `json:"logs"`
	Pagination Pagination `json:"pagination"`
	Filters    Options    `json:"filters"`
}

type Summary struct {
	TotalActions int     `json:"total_actions"`
	ErrorActions int     `json:"error_actions"`
	ErrorRate    float64 `json:"error_rate"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type UserCount struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// Stats is the aggregate view of the log over a date range.
type Stats struct {
	Summary       Summary       `json:"summary"`
	DailyActivity []DailyCount  `json:"daily_activity"`
	TopUsers      []UserCount   `json:"top_users"`
	TopActions    []ActionCount `json:"top_actions"`
}

// ExportResult is a server-rendered CSV of the filtered log.
type ExportResult struct {
	CSVData  string `json:"csv_data"`
	Filename string `json:"filename"`
}
