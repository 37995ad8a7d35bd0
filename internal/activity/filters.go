package activity

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dekarrin/campman/internal/cmerr"
)

// Key names a recognized filter.
type Key string

const (
	KeyUserID       Key = "user_id"
	KeyAction       Key = "action"
	KeyStatus       Key = "status"
	KeyResourceType Key = "resource_type"
	KeyStartDate    Key = "start_date"
	KeyEndDate      Key = "end_date"
	KeyPage         Key = "page"
	KeyPerPage      Key = "per_page"
)

// Keys lists every recognized filter key in query order.
var Keys = []Key{KeyUserID, KeyAction, KeyStatus, KeyResourceType, KeyStartDate, KeyEndDate, KeyPage, KeyPerPage}

// ParseKey returns the Key named by s, ignoring case and accepting dashes in
// place of underscores.
func ParseKey(s string) (Key, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	for _, k := range Keys {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

const (
	DefaultPage    = 1
	DefaultPerPage = 50
)

// Filters is the state of every log filter. An empty string or a zero number
// means no constraint.
type Filters struct {
	UserID       string
	Action       string
	Status       string
	ResourceType string
	StartDate    string
	EndDate      string
	Page         int
	PerPage      int
}

// DefaultFilters returns filters with no constraints on the first page.
func DefaultFilters() Filters {
	return Filters{Page: DefaultPage, PerPage: DefaultPerPage}
}

// Get returns the value of the filter named by k as text.
func (f Filters) Get(k Key) string {
	switch k {
	case KeyUserID:
		return f.UserID
	case KeyAction:
		return f.Action
	case KeyStatus:
		return f.Status
	case KeyResourceType:
		return f.ResourceType
	case KeyStartDate:
		return f.StartDate
	case KeyEndDate:
		return f.EndDate
	case KeyPage:
		if f.Page == 0 {
			return ""
		}
		return strconv.Itoa(f.Page)
	case KeyPerPage:
		if f.PerPage == 0 {
			return ""
		}
		return strconv.Itoa(f.PerPage)
	default:
		return ""
	}
}

// Set assigns value to the filter named by k. Page and per-page must be
// positive integers or empty.
func (f *Filters) Set(k Key, value string) error {
	value = strings.TrimSpace(value)

	switch k {
	case KeyUserID:
		f.UserID = value
	case KeyAction:
		f.Action = value
	case KeyStatus:
		f.Status = value
	case KeyResourceType:
		f.ResourceType = value
	case KeyStartDate:
		f.StartDate = value
	case KeyEndDate:
		f.EndDate = value
	case KeyPage, KeyPerPage:
		n := 0
		if value != "" {
			var err error
			n, err = strconv.Atoi(value)
			if err != nil || n < 1 {
				return cmerr.Validation("%s must be a positive whole number", k)
			}
		}
		if k == KeyPage {
			f.Page = n
		} else {
			f.PerPage = n
		}
	default:
		return cmerr.Validation("%q is not a log filter", string(k))
	}
	return nil
}

// Active returns whether any filter that narrows the entity, action or status
// is set. Statistics are only loaded automatically when none is.
func (f Filters) Active() bool {
	return f.UserID != "" || f.Action != "" || f.Status != ""
}

// Values returns the query parameters for a log listing. Keys whose values
// are empty are left out entirely.
func (f Filters) Values() url.Values {
	return f.values(Keys)
}

// ExportValues is like Values but without pagination.
func (f Filters) ExportValues() url.Values {
	return f.values(Keys[:6])
}

func (f Filters) values(keys []Key) url.Values {
	q := url.Values{}
	for _, k := range keys {
		if v := f.Get(k); v != "" {
			q.Set(string(k), v)
		}
	}
	return q
}

func (f Filters) String() string {
	var parts []string
	for _, k := range Keys {
		if v := f.Get(k); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		}
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, " ")
}
