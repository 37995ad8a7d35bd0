package campman

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dekarrin/campman/internal/activity"
	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/internal/users"
	"github.com/dekarrin/campman/internal/util"
	"github.com/dekarrin/rosed"
)

var tableOptions = rosed.Options{
	TableHeaders:             true,
	NoTrailingLineSeparators: true,
}

func renderTable(data [][]string) string {
	return rosed.Edit("").InsertTableOpts(0, data, consoleOutputWidth, tableOptions).String()
}

func renderCampaigns(list []campaign.Campaign) string {
	counts := campaign.Tally(list)
	header := fmt.Sprintf("Campaigns: %d total, %d active, %d scheduled, %d expired", counts.Total, counts.Active, counts.Scheduled, counts.Expired)
	if len(list) == 0 {
		return header + "\nNo campaigns yet. Type NEW to create one."
	}

	data := [][]string{{"ID", "Name", "Start", "End", "Status", "Images"}}
	for _, c := range list {
		images := "-"
		if c.Images != nil {
			images = fmt.Sprintf("%d/%d", c.Images.Count(), len(campaign.Slots))
		}
		data = append(data, []string{
			strconv.Itoa(c.ID),
			c.Name,
			c.StartDate.String(),
			c.EndDate.String(),
			string(c.Status),
			images,
		})
	}
	return header + "\n" + renderTable(data)
}

func renderImages(is campaign.ImageSet) string {
	data := [][]string{{"Slot", "File", "Size", "URL"}}
	for _, slot := range campaign.Slots {
		img := is[slot]
		if img == nil {
			data = append(data, []string{string(slot), "(none)", "", ""})
			continue
		}
		size := ""
		if img.Size > 0 {
			size = fmt.Sprintf("%d bytes", img.Size)
		}
		data = append(data, []string{string(slot), img.Filename, size, img.URL})
	}
	return renderTable(data)
}

func renderUsers(list []users.User) string {
	if len(list) == 0 {
		return "No users."
	}
	data := [][]string{{"ID", "Email", "Role"}}
	for _, u := range list {
		data = append(data, []string{strconv.Itoa(u.ID), u.Email, u.Role()})
	}
	return renderTable(data)
}

func renderLogs(st activity.State) string {
	var sb strings.Builder

	if len(st.Filters.ExportValues()) > 0 {
		sb.WriteString("Filters: " + st.Filters.String() + "\n")
	}

	p := st.Pagination
	if len(st.Logs) == 0 {
		sb.WriteString("No log entries match.")
		return sb.String()
	}

	data := [][]string{{"Time", "User", "Action", "Status", "Resource", "Took"}}
	for _, e := range st.Logs {
		when := e.CreatedAt
		if t, ok := e.Time(); ok {
			when = t.Format("2006-01-02 15:04:05")
		}
		user := e.UserEmail
		if user == "" {
			user = e.UserID.String()
		}
		resource := e.ResourceType
		if e.ResourceID != "" {
			resource += " #" + e.ResourceID.String()
		}
		data = append(data, []string{
			when,
			user,
			activity.FormatAction(e.Action),
			e.Status,
			resource,
			activity.FormatDuration(e.DurationMS),
		})
	}
	sb.WriteString(renderTable(data))

	var notes []string
	for _, e := range st.Logs {
		sum, ok := summaryText(e)
		if ok {
			notes = append(notes, fmt.Sprintf("#%d %s: %s", e.ID, activity.FormatAction(e.Action), sum))
		}
	}
	if len(notes) > 0 {
		sb.WriteString("\n")
		for _, n := range notes {
			sb.WriteString("\n" + rosed.Edit(n).Wrap(consoleOutputWidth).String())
		}
	}

	sb.WriteString(fmt.Sprintf("\n\nPage %d of %d (%d entries)", p.Page, p.Pages, p.Total))
	var nav []string
	if p.HasPrev {
		nav = append(nav, "PREV")
	}
	if p.HasNext {
		nav = append(nav, "NEXT")
	}
	if len(nav) > 0 {
		sb.WriteString("; type " + util.MakeTextList(nav, "or"))
	}
	return sb.String()
}

func summaryText(e activity.Entry) (string, bool) {
	sum, ok := activity.Summarize(e)
	if !ok || sum.IsZero() {
		return "", false
	}

	var parts []string
	if sum.CampaignName != "" {
		parts = append(parts, fmt.Sprintf("campaign %q", sum.CampaignName))
	} else if sum.CampaignID != "" {
		parts = append(parts, "campaign #"+sum.CampaignID)
	}
	if sum.UserEmail != "" {
		parts = append(parts, "user "+sum.UserEmail)
	}
	if len(sum.Changes) > 0 {
		parts = append(parts, "changed "+strings.Join(sum.Changes, ", "))
	}
	return strings.Join(parts, "; "), true
}

func renderStats(s activity.Stats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total actions: %d\nErrors: %d (%.1f%%)\n",
		s.Summary.TotalActions, s.Summary.ErrorActions, s.Summary.ErrorRate))

	if len(s.TopActions) > 0 {
		data := [][]string{{"Action", "Count"}}
		for _, ac := range s.TopActions {
			data = append(data, []string{activity.FormatAction(ac.Action), strconv.Itoa(ac.Count)})
		}
		sb.WriteString("\nTop actions\n" + renderTable(data) + "\n")
	}
	if len(s.TopUsers) > 0 {
		data := [][]string{{"User", "Count"}}
		for _, uc := range s.TopUsers {
			data = append(data, []string{uc.Email, strconv.Itoa(uc.Count)})
		}
		sb.WriteString("\nTop users\n" + renderTable(data) + "\n")
	}
	if len(s.DailyActivity) > 0 {
		data := [][]string{{"Date", "Count"}}
		for _, dc := range s.DailyActivity {
			data = append(data, []string{dc.Date, strconv.Itoa(dc.Count)})
		}
		sb.WriteString("\nDaily activity\n" + renderTable(data) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
