package campaign

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func Test_ComputeStatus(t *testing.T) {
	now := time.Date(2024, time.January, 15, 13, 45, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		start  string
		end    string
		expect Status
	}{
		{name: "starts tomorrow", start: "2024-01-16", end: "2024-01-31", expect: StatusScheduled},
		{name: "starts today", start: "2024-01-15", end: "2024-01-31", expect: StatusActive},
		{name: "ends today", start: "2024-01-01", end: "2024-01-15", expect: StatusActive},
		{name: "ended yesterday", start: "2024-01-01", end: "2024-01-14", expect: StatusExpired},
		{name: "spans now", start: "2023-12-01", end: "2024-02-01", expect: StatusActive},
		{name: "far future", start: "2030-01-01", end: "2030-02-01", expect: StatusScheduled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := ComputeStatus(MustParseDate(tc.start), MustParseDate(tc.end), now)
			assert.Equal(t, tc.expect, actual)
		})
	}
}

func Test_ComputeStatus_exactlyOne(t *testing.T) {
	start := MustParseDate("2024-03-10")
	end := MustParseDate("2024-03-20")

	day := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		now := day.AddDate(0, 0, i)
		today := DateOf(now)

		var expect Status
		switch {
		case today.Before(start):
			expect = StatusScheduled
		case today.After(end):
			expect = StatusExpired
		default:
			expect = StatusActive
		}

		assert.Equal(t, expect, ComputeStatus(start, end, now), "day %s", today)
	}
}

func Test_HasConflict(t *testing.T) {
	existing := []Campaign{
		{ID: 1, Name: "Winter", StartDate: MustParseDate("2024-01-01"), EndDate: MustParseDate("2024-01-31"), Status: StatusActive},
		{ID: 2, Name: "Spring", StartDate: MustParseDate("2024-03-01"), EndDate: MustParseDate("2024-03-31"), Status: StatusScheduled},
		{ID: 3, Name: "Old", StartDate: MustParseDate("2023-06-01"), EndDate: MustParseDate("2023-06-30"), Status: StatusExpired},
	}

	testCases := []struct {
		name      string
		start     string
		end       string
		excludeID int
		expect    bool
	}{
		{name: "inside active", start: "2024-01-10", end: "2024-01-20", expect: true},
		{name: "overlaps active start", start: "2023-12-15", end: "2024-01-01", expect: true},
		{name: "touches active end inclusively", start: "2024-01-31", end: "2024-02-10", expect: true},
		{name: "covers active", start: "2023-12-01", end: "2024-02-28", expect: true},
		{name: "after active", start: "2024-02-01", end: "2024-02-28", expect: false},
		{name: "before active", start: "2023-12-01", end: "2023-12-31", expect: false},
		{name: "overlaps scheduled only", start: "2024-03-10", end: "2024-03-20", expect: false},
		{name: "overlaps expired only", start: "2023-06-10", end: "2023-06-20", expect: false},
		{name: "self excluded", start: "2024-01-10", end: "2024-01-20", excludeID: 1, expect: false},
		{name: "other id excluded", start: "2024-01-10", end: "2024-01-20", excludeID: 2, expect: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual := HasConflict(MustParseDate(tc.start), MustParseDate(tc.end), existing, tc.excludeID)
			assert.Equal(t, tc.expect, actual)
		})
	}
}

func Test_HasConflict_matchesIntervalRule(t *testing.T) {
	a := Campaign{ID: 9, StartDate: MustParseDate("2024-05-10"), EndDate: MustParseDate("2024-05-20"), Status: StatusActive}
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	for s := 0; s < 30; s++ {
		for l := 1; l < 10; l++ {
			bStart := DateOf(base.AddDate(0, 0, s))
			bEnd := DateOf(base.AddDate(0, 0, s+l))

			expect := !bStart.After(a.EndDate) && !bEnd.Before(a.StartDate)
			actual := HasConflict(bStart, bEnd, []Campaign{a}, 0)
			assert.Equal(t, expect, actual, "candidate %s to %s", bStart, bEnd)
		}
	}
}

func Test_ValidateForm(t *testing.T) {
	existing := []Campaign{
		{ID: 1, Name: "Winter", StartDate: MustParseDate("2024-01-01"), EndDate: MustParseDate("2024-01-31"), Status: StatusActive},
		{ID: 2, Name: "Late Winter", StartDate: MustParseDate("2024-01-20"), EndDate: MustParseDate("2024-02-10"), Status: StatusActive},
	}

	testCases := []struct {
		name      string
		form      Form
		policy    ConflictPolicy
		expectErr bool
		expect    Payload
	}{
		{name: "missing name", form: Form{StartDate: "2024-02-11", EndDate: "2024-02-20"}, expectErr: true},
		{name: "blank name", form: Form{Name: "   ", StartDate: "2024-02-11", EndDate: "2024-02-20"}, expectErr: true},
		{name: "missing start", form: Form{Name: "x", EndDate: "2024-02-20"}, expectErr: true},
		{name: "missing end", form: Form{Name: "x", StartDate: "2024-02-11"}, expectErr: true},
		{name: "bad date", form: Form{Name: "x", StartDate: "02/11/2024", EndDate: "2024-02-20"}, expectErr: true},
		{name: "start equals end", form: Form{Name: "x", StartDate: "2024-02-11", EndDate: "2024-02-11"}, expectErr: true},
		{name: "start after end", form: Form{Name: "x", StartDate: "2024-02-20", EndDate: "2024-02-11"}, expectErr: true},
		{name: "new conflicts", form: Form{Name: "x", StartDate: "2024-01-15", EndDate: "2024-01-18"}, expectErr: true},
		{
			name:   "new without conflict",
			form:   Form{Name: " Spring ", StartDate: "2024-02-11", EndDate: "2024-02-20"},
			expect: Payload{Name: "Spring", StartDate: MustParseDate("2024-02-11"), EndDate: MustParseDate("2024-02-20")},
		},
		{
			name:   "edit keeps own interval",
			form:   Form{ID: 1, Name: "Winter", StartDate: "2024-01-01", EndDate: "2024-01-15"},
			policy: CheckEdits,
			expect: Payload{Name: "Winter", StartDate: MustParseDate("2024-01-01"), EndDate: MustParseDate("2024-01-15")},
		},
		{
			name:      "edit overlapping another active campaign",
			form:      Form{ID: 1, Name: "Winter", StartDate: "2024-01-01", EndDate: "2024-01-25"},
			policy:    CheckEdits,
			expectErr: true,
		},
		{
			name:   "edit overlapping another when only creates checked",
			form:   Form{ID: 1, Name: "Winter", StartDate: "2024-01-01", EndDate: "2024-01-25"},
			policy: CheckCreatesOnly,
			expect: Payload{Name: "Winter", StartDate: MustParseDate("2024-01-01"), EndDate: MustParseDate("2024-01-25")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := ValidateForm(tc.form, existing, tc.policy)
			if tc.expectErr {
				assert.ErrorIs(err, cmerr.ErrValidation)
				return
			}
			assert.NoError(err)
			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_AdmitImage(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		size        int64
		expectErr   bool
	}{
		{name: "exactly max", contentType: "image/png", size: 16 * 1024 * 1024},
		{name: "one byte over", contentType: "image/png", size: 16*1024*1024 + 1, expectErr: true},
		{name: "tiny jpeg", contentType: "image/jpeg", size: 10},
		{name: "text file", contentType: "text/plain", size: 10, expectErr: true},
		{name: "text file empty", contentType: "text/plain", size: 0, expectErr: true},
		{name: "no type", contentType: "", size: 10, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := AdmitImage("file.bin", tc.contentType, tc.size)
			if tc.expectErr {
				assert.ErrorIs(t, err, cmerr.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_Form_SetImage_rejectionLeavesPendingUntouched(t *testing.T) {
	assert := assert.New(t)

	var f Form
	logo := File{Name: "logo.png", ContentType: "image/png", Data: []byte("png")}
	assert.NoError(f.SetImage(SlotLogo, logo))

	err := f.SetImage(SlotLogo, File{Name: "notes.txt", ContentType: "text/plain", Data: []byte("hi")})
	assert.ErrorIs(err, cmerr.ErrValidation)

	err = f.SetImage(SlotBackground, File{Name: "huge.png", ContentType: "image/png", Data: make([]byte, MaxImageSize+1)})
	assert.ErrorIs(err, cmerr.ErrValidation)

	assert.Equal(Files{SlotLogo: logo}, f.PendingImages())

	f.ClearImage(SlotLogo)
	assert.Nil(f.PendingImages())
}

func Test_LoadImageFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/img/logo.png", []byte("\x89PNG\r\n\x1a\n"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "/img/notes.txt", []byte("hello"), 0644))
	assert.NoError(t, afero.WriteFile(fs, "/img/noext", []byte("\x89PNG\r\n\x1a\nrest"), 0644))

	testCases := []struct {
		name       string
		path       string
		expectType string
		expectErr  bool
	}{
		{name: "png by extension", path: "/img/logo.png", expectType: "image/png"},
		{name: "text by extension", path: "/img/notes.txt", expectType: "text/plain"},
		{name: "sniffed", path: "/img/noext", expectType: "image/png"},
		{name: "missing", path: "/img/nope.png", expectErr: true},
		{name: "directory", path: "/img", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			f, err := LoadImageFile(fs, tc.path)
			if tc.expectErr {
				assert.Error(err)
				return
			}
			assert.NoError(err)
			assert.True(strings.HasPrefix(f.ContentType, tc.expectType), "got content type %q", f.ContentType)
		})
	}
}

func Test_Date(t *testing.T) {
	assert := assert.New(t)

	d, err := ParseDate("2024-02-29T00:00:00Z")
	assert.NoError(err)
	assert.Equal("2024-02-29", d.String())

	_, err = ParseDate("2023-02-29")
	assert.Error(err)

	var parsed Date
	assert.NoError(parsed.UnmarshalJSON([]byte(`"2024-01-05"`)))
	assert.Equal(MustParseDate("2024-01-05"), parsed)

	data, err := parsed.MarshalJSON()
	assert.NoError(err)
	assert.Equal(`"2024-01-05"`, string(data))

	assert.True(MustParseDate("2023-12-31").Before(MustParseDate("2024-01-01")))
	assert.True(errors.Is(AdmitImage("x", "text/plain", 1), cmerr.ErrValidation))
}

func Test_Tally(t *testing.T) {
	counts := Tally([]Campaign{
		{Status: StatusActive}, {Status: StatusActive}, {Status: StatusScheduled}, {Status: StatusExpired},
	})
	assert.Equal(t, Counts{Total: 4, Active: 2, Scheduled: 1, Expired: 1}, counts)
}
