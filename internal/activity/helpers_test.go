package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FormatAction(t *testing.T) {
	assert.Equal(t, "Campaign Create", FormatAction("campaign_create"))
	assert.Equal(t, "Add User", FormatAction("add_user"))
	assert.Equal(t, "Login", FormatAction("login"))
	assert.Equal(t, "", FormatAction(""))
}

func Test_ActionCategory(t *testing.T) {
	testCases := []struct {
		action string
		expect Category
	}{
		{action: "create_campaign", expect: CategoryCreate},
		{action: "update_campaign", expect: CategoryUpdate},
		{action: "edit_profile", expect: CategoryUpdate},
		{action: "delete_user", expect: CategoryDelete},
		{action: "login", expect: CategoryAuth},
		{action: "logout", expect: CategoryAuth},
		{action: "list_campaigns", expect: CategoryView},
		{action: "add_user", expect: CategoryOther},
	}

	for _, tc := range testCases {
		t.Run(tc.action, func(t *testing.T) {
			assert.Equal(t, tc.expect, ActionCategory(tc.action))
		})
	}
}

func Test_FormatDuration(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	assert.Equal(t, "", FormatDuration(nil))
	assert.Equal(t, "", FormatDuration(f(0)))
	assert.Equal(t, "250ms", FormatDuration(f(250)))
	assert.Equal(t, "999ms", FormatDuration(f(999)))
	assert.Equal(t, "1.0s", FormatDuration(f(1000)))
	assert.Equal(t, "2.5s", FormatDuration(f(2460)))
}

func Test_ParseDetails(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(ParseDetails(""))
	assert.Equal(map[string]interface{}{"raw": "not json"}, ParseDetails("not json"))
	assert.Equal(map[string]interface{}{"raw": "[1,2]"}, ParseDetails("[1,2]"))
	assert.Equal(map[string]interface{}{"campaign_id": float64(3)}, ParseDetails(`{"campaign_id": 3}`))
}

func Test_Summarize(t *testing.T) {
	testCases := []struct {
		name     string
		entry    Entry
		expect   EntrySummary
		expectOK bool
	}{
		{
			name:     "no details",
			entry:    Entry{Action: "login"},
			expectOK: false,
		},
		{
			name: "campaign update with changes",
			entry: Entry{
				Action:  "update_campaign",
				Details: Text(`{"campaign_name": "Spring", "campaign_id": 4, "changes": {"name": ["a", "b"], "end_date": ["x", "y"]}}`),
			},
			expect:   EntrySummary{CampaignName: "Spring", CampaignID: "4", Changes: []string{"end_date", "name"}},
			expectOK: true,
		},
		{
			name:     "created user",
			entry:    Entry{Action: "add_user", Details: Text(`{"created_user_email": "new@example.com"}`)},
			expect:   EntrySummary{UserEmail: "new@example.com"},
			expectOK: true,
		},
		{
			name:     "deleted user",
			entry:    Entry{Action: "delete_user", Details: Text(`{"deleted_user": {"email": "gone@example.com"}}`)},
			expect:   EntrySummary{UserEmail: "gone@example.com"},
			expectOK: true,
		},
		{
			name:     "raw details",
			entry:    Entry{Action: "login", Details: Text("plain words")},
			expect:   EntrySummary{},
			expectOK: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, ok := Summarize(tc.entry)
			assert.Equal(t, tc.expectOK, ok)
			assert.Equal(t, tc.expect, actual)
		})
	}
}
