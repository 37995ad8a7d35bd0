package activity

import (
	"testing"

	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/stretchr/testify/assert"
)

func Test_Filters_Values(t *testing.T) {
	testCases := []struct {
		name         string
		filters      Filters
		expect       string
		expectExport string
	}{
		{
			name:         "empty keys omitted",
			filters:      Filters{Action: "", Status: "error"},
			expect:       "status=error",
			expectExport: "status=error",
		},
		{
			name:         "defaults",
			filters:      DefaultFilters(),
			expect:       "page=1&per_page=50",
			expectExport: "",
		},
		{
			name: "everything",
			filters: Filters{
				UserID: "3", Action: "create_campaign", Status: "success", ResourceType: "campaign",
				StartDate: "2024-01-01", EndDate: "2024-01-31", Page: 2, PerPage: 25,
			},
			expect:       "action=create_campaign&end_date=2024-01-31&page=2&per_page=25&resource_type=campaign&start_date=2024-01-01&status=success&user_id=3",
			expectExport: "action=create_campaign&end_date=2024-01-31&resource_type=campaign&start_date=2024-01-01&status=success&user_id=3",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			assert.Equal(tc.expect, tc.filters.Values().Encode())
			assert.Equal(tc.expectExport, tc.filters.ExportValues().Encode())
		})
	}
}

func Test_Filters_Set(t *testing.T) {
	testCases := []struct {
		name      string
		key       Key
		value     string
		expect    Filters
		expectErr bool
	}{
		{name: "action", key: KeyAction, value: " login ", expect: Filters{Action: "login"}},
		{name: "page", key: KeyPage, value: "4", expect: Filters{Page: 4}},
		{name: "clear per page", key: KeyPerPage, value: "", expect: Filters{}},
		{name: "zero page", key: KeyPage, value: "0", expectErr: true},
		{name: "word page", key: KeyPage, value: "two", expectErr: true},
		{name: "unknown key", key: Key("color"), value: "red", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var f Filters
			err := f.Set(tc.key, tc.value)
			if tc.expectErr {
				assert.ErrorIs(t, err, cmerr.ErrValidation)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expect, f)
		})
	}
}

func Test_ParseKey(t *testing.T) {
	assert := assert.New(t)

	k, ok := ParseKey("Resource-Type")
	assert.True(ok)
	assert.Equal(KeyResourceType, k)

	_, ok = ParseKey("nope")
	assert.False(ok)
}
