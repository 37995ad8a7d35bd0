package activity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category groups actions for display.
type Category string

const (
	CategoryCreate Category = "create"
	CategoryUpdate Category = "update"
	CategoryDelete Category = "delete"
	CategoryAuth   Category = "auth"
	CategoryView   Category = "view"
	CategoryOther  Category = "other"
)

// FormatAction turns an action tag such as "campaign_create" into a title,
// "Campaign Create".
func FormatAction(action string) string {
	// a Caser is stateful, so one is made per call
	titler := cases.Title(language.English, cases.NoLower)
	return titler.String(strings.ReplaceAll(action, "_", " "))
}

// ActionCategory classifies an action tag by the first matching verb it
// contains.
func ActionCategory(action string) Category {
	switch {
	case strings.Contains(action, "create"):
		return CategoryCreate
	case strings.Contains(action, "update"), strings.Contains(action, "edit"):
		return CategoryUpdate
	case strings.Contains(action, "delete"):
		return CategoryDelete
	case strings.Contains(action, "login"), strings.Contains(action, "logout"):
		return CategoryAuth
	case strings.Contains(action, "view"), strings.Contains(action, "list"):
		return CategoryView
	default:
		return CategoryOther
	}
}

// FormatDuration renders a request duration. Missing or zero durations render
// as the empty string, durations under a second in milliseconds, and longer
// ones in seconds to one decimal place.
func FormatDuration(ms *float64) string {
	if ms == nil || *ms == 0 {
		return ""
	}
	if *ms < 1000 {
		return strconv.FormatFloat(*ms, 'f', -1, 64) + "ms"
	}
	return fmt.Sprintf("%.1fs", *ms/1000)
}

// ParseDetails decodes an entry's details as a JSON object. Details that are
// not a JSON object are returned under the single key "raw". Empty details
// give nil.
func ParseDetails(details string) map[string]interface{} {
	if strings.TrimSpace(details) == "" {
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(details), &obj); err != nil || obj == nil {
		return map[string]interface{}{"raw": details}
	}
	return obj
}

// EntrySummary is the notable content of an entry's details.
type EntrySummary struct {
	CampaignName string
	CampaignID   string
	UserEmail    string

	// Changes lists the names of changed fields, sorted.
	Changes []string
}

// IsZero returns whether the summary has nothing in it.
func (s EntrySummary) IsZero() bool {
	return s.CampaignName == "" && s.CampaignID == "" && s.UserEmail == "" && len(s.Changes) == 0
}

// Summarize pulls the notable content out of an entry's details. Campaign
// actions report the campaign, user actions report the affected user's
// email, and any "changes" object reports its keys. The second return value
// is false if the entry has no details.
func Summarize(e Entry) (EntrySummary, bool) {
	details := ParseDetails(string(e.Details))
	if details == nil {
		return EntrySummary{}, false
	}

	var sum EntrySummary

	if strings.Contains(e.Action, "campaign") {
		sum.CampaignName = scalarText(details["campaign_name"])
		sum.CampaignID = scalarText(details["campaign_id"])
	}

	if strings.Contains(e.Action, "user") {
		sum.UserEmail = scalarText(details["created_user_email"])
		if sum.UserEmail == "" {
			if deleted, ok := details["deleted_user"].(map[string]interface{}); ok {
				sum.UserEmail = scalarText(deleted["email"])
			}
		}
	}

	if changes, ok := details["changes"].(map[string]interface{}); ok {
		for k := range changes {
			sum.Changes = append(sum.Changes, k)
		}
		sort.Strings(sum.Changes)
	}

	return sum, true
}

func scalarText(v interface{}) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
