package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/dao/inmem"
	"github.com/dekarrin/campman/server/serr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2024, time.January, 15, 10, 30, 0, 0, time.UTC)

func newTestService() Service {
	return Service{
		DB:         inmem.NewDatastore(),
		Now:        func() time.Time { return testNow },
		BcryptCost: bcrypt.MinCost,
	}
}

func Test_Login(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateUser(ctx, "admin@example.com", "hunter2", true)
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, "new@example.com", "", false)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		email     string
		password  string
		expectErr error
	}{
		{name: "correct", email: "admin@example.com", password: "hunter2"},
		{name: "email case ignored", email: "ADMIN@example.com", password: "hunter2"},
		{name: "wrong password", email: "admin@example.com", password: "hunter3", expectErr: serr.ErrBadCredentials},
		{name: "unknown user", email: "nobody@example.com", password: "hunter2", expectErr: serr.ErrBadCredentials},
		{name: "no password set", email: "new@example.com", password: "", expectErr: serr.ErrPasswordNotSet},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			user, err := svc.Login(ctx, tc.email, tc.password)
			if tc.expectErr != nil {
				assert.ErrorIs(err, tc.expectErr)
				return
			}
			assert.NoError(err)
			assert.Equal("admin@example.com", user.Email)
		})
	}
}

func Test_Login_passwordNotSetReturnsUser(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.CreateUser(ctx, "new@example.com", "", false)
	require.NoError(t, err)

	user, err := svc.Login(ctx, "new@example.com", "anything")
	assert.ErrorIs(err, serr.ErrPasswordNotSet)
	assert.Equal(created.ID, user.ID)

	_, err = svc.UpdatePassword(ctx, created.ID, "s3cret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "new@example.com", "s3cret")
	assert.NoError(err)
}

func Test_Logout_movesLogoutTimeForward(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.CreateUser(ctx, "a@example.com", "pw", false)
	require.NoError(t, err)

	first, err := svc.Logout(ctx, created.ID)
	require.NoError(t, err)
	second, err := svc.Logout(ctx, created.ID)
	require.NoError(t, err)

	assert.Greater(first.LastLogoutTime.Unix(), created.LastLogoutTime.Unix())
	assert.Greater(second.LastLogoutTime.Unix(), first.LastLogoutTime.Unix())

	_, err = svc.Logout(ctx, 99)
	assert.ErrorIs(err, serr.ErrNotFound)
}

func Test_CreateUser(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateUser(ctx, "taken@example.com", "", false)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		email     string
		expectErr error
		expectMsg string
	}{
		{name: "valid", email: "ok@example.com"},
		{name: "blank", email: "  ", expectErr: serr.ErrBadArgument, expectMsg: "Email required"},
		{name: "no domain dot", email: "bad@example", expectErr: serr.ErrBadArgument, expectMsg: "Invalid email format"},
		{name: "exists", email: "Taken@example.com", expectErr: serr.ErrAlreadyExists, expectMsg: "User exists"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			user, err := svc.CreateUser(ctx, tc.email, "", false)
			if tc.expectErr != nil {
				assert.ErrorIs(err, tc.expectErr)
				assert.Equal(tc.expectMsg, err.(serr.Error).Message())
				return
			}
			assert.NoError(err)
			assert.False(user.HasPassword())
		})
	}
}

func Test_DeleteUser(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := newTestService()

	admin, err := svc.CreateUser(ctx, "admin@example.com", "pw", true)
	require.NoError(t, err)
	other, err := svc.CreateUser(ctx, "other@example.com", "", false)
	require.NoError(t, err)

	_, err = svc.DeleteUser(ctx, admin, admin.ID)
	assert.ErrorIs(err, serr.ErrBadArgument)

	deleted, err := svc.DeleteUser(ctx, admin, other.ID)
	assert.NoError(err)
	assert.Equal(other.Email, deleted.Email)

	_, err = svc.DeleteUser(ctx, admin, other.ID)
	assert.ErrorIs(err, serr.ErrNotFound)
}

func Test_CreateCampaign(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	owner := dao.User{ID: 1}
	someoneElse := dao.User{ID: 2}

	_, err := svc.CreateCampaign(ctx, someoneElse, CampaignInput{Name: "Winter", StartDate: "2024-01-10", EndDate: "2024-01-20"})
	require.NoError(t, err)
	_, err = svc.CreateCampaign(ctx, someoneElse, CampaignInput{Name: "Spring", StartDate: "2024-03-01", EndDate: "2024-03-31"})
	require.NoError(t, err)

	testCases := []struct {
		name      string
		in        CampaignInput
		expectErr error
		expectMsg string
	}{
		{name: "valid, after active one", in: CampaignInput{Name: "Feb", StartDate: "2024-02-01", EndDate: "2024-02-10"}},
		{name: "overlaps scheduled only", in: CampaignInput{Name: "Mar", StartDate: "2024-03-05", EndDate: "2024-03-10"}},
		{name: "missing name", in: CampaignInput{StartDate: "2024-02-01", EndDate: "2024-02-10"}, expectErr: serr.ErrBadArgument, expectMsg: "Missing fields"},
		{name: "bad date", in: CampaignInput{Name: "x", StartDate: "02/01/2024", EndDate: "2024-02-10"}, expectErr: serr.ErrBadArgument, expectMsg: "Invalid date format, use YYYY-MM-DD"},
		{name: "end before start", in: CampaignInput{Name: "x", StartDate: "2024-02-10", EndDate: "2024-02-01"}, expectErr: serr.ErrBadArgument, expectMsg: "End date must be after start date"},
		{name: "same day", in: CampaignInput{Name: "x", StartDate: "2024-02-10", EndDate: "2024-02-10"}, expectErr: serr.ErrBadArgument},
		{name: "touches active end", in: CampaignInput{Name: "x", StartDate: "2024-01-20", EndDate: "2024-01-25"}, expectErr: serr.ErrConflict, expectMsg: `Campaign dates overlap with active campaign "Winter" (2024-01-10 to 2024-01-20)`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			c, err := svc.CreateCampaign(ctx, owner, tc.in)
			if tc.expectErr != nil {
				assert.ErrorIs(err, tc.expectErr)
				if tc.expectMsg != "" {
					assert.Equal(tc.expectMsg, err.(serr.Error).Message())
				}
				return
			}
			assert.NoError(err)
			assert.Equal(owner.ID, c.OwnerID)
			assert.Equal(tc.in.StartDate, campaign.DateOf(c.StartDate).String())
		})
	}
}

func Test_UpdateCampaign(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := newTestService()
	owner := dao.User{ID: 1}

	active, err := svc.CreateCampaign(ctx, owner, CampaignInput{Name: "Winter", StartDate: "2024-01-10", EndDate: "2024-01-20"})
	require.NoError(t, err)

	// an active campaign does not conflict with itself
	updated, err := svc.UpdateCampaign(ctx, owner, active.ID, CampaignInput{Name: "Winter Sale", StartDate: "2024-01-12", EndDate: "2024-01-22"})
	assert.NoError(err)
	assert.Equal("Winter Sale", updated.Name)
	assert.Equal(campaign.StatusActive, svc.Status(updated))

	_, err = svc.UpdateCampaign(ctx, dao.User{ID: 2}, active.ID, CampaignInput{Name: "Mine", StartDate: "2024-05-01", EndDate: "2024-05-02"})
	assert.ErrorIs(err, serr.ErrPermissions)

	_, err = svc.UpdateCampaign(ctx, owner, 99, CampaignInput{Name: "x", StartDate: "2024-05-01", EndDate: "2024-05-02"})
	assert.ErrorIs(err, serr.ErrNotFound)
}

func Test_DeleteCampaign_removesImages(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := newTestService()
	owner := dao.User{ID: 1}

	c, err := svc.CreateCampaign(ctx, owner, CampaignInput{Name: "Spring", StartDate: "2024-03-01", EndDate: "2024-03-31"})
	require.NoError(t, err)
	_, err = svc.SaveImages(ctx, owner, c.ID, []Upload{{Slot: "logo", Filename: "l.png", Data: []byte("png")}})
	require.NoError(t, err)

	_, err = svc.DeleteCampaign(ctx, dao.User{ID: 2}, c.ID)
	assert.ErrorIs(err, serr.ErrPermissions)

	_, err = svc.DeleteCampaign(ctx, owner, c.ID)
	assert.NoError(err)

	_, err = svc.GetImageFile(ctx, c.ID, "logo")
	assert.ErrorIs(err, serr.ErrNotFound)
}

func Test_SaveImages(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := newTestService()
	owner := dao.User{ID: 1}

	c, err := svc.CreateCampaign(ctx, owner, CampaignInput{Name: "Spring", StartDate: "2024-03-01", EndDate: "2024-03-31"})
	require.NoError(t, err)

	stored, err := svc.SaveImages(ctx, owner, c.ID, []Upload{
		{Slot: "background", Filename: "bg.JPG", Data: []byte("jpg")},
		{Slot: "screensaver", Filename: "ss.png", Data: []byte("png")},
		{Slot: "logo", Filename: "logo.gif", Data: []byte("gif")},
		{Slot: "banner", Filename: "b.png", Data: []byte("png")},
	})
	require.NoError(t, err)
	if assert.Len(stored, 2) {
		assert.Equal("2024-03-01bkg.jpg", stored[0].Filename)
		assert.Equal("image/jpeg", stored[0].ContentType)
		assert.Equal("2024-03-01screensaver_bkg.png", stored[1].Filename)
	}

	_, err = svc.SaveImages(ctx, owner, c.ID, []Upload{{Slot: "logo", Filename: "logo.gif", Data: []byte("gif")}})
	assert.ErrorIs(err, serr.ErrBadArgument)

	imgs, err := svc.GetImages(ctx, owner, c.ID)
	assert.NoError(err)
	assert.Len(imgs, 2)
}

func seedLogs(t *testing.T, svc Service) {
	ctx := context.Background()
	entries := []struct {
		at     time.Time
		userID int
		email  string
		action string
		status string
		resTyp string
	}{
		{testNow.Add(-72 * time.Hour), 1, "admin@example.com", ActionLogin, StatusSuccess, ResourceAuth},
		{testNow.Add(-48 * time.Hour), 1, "admin@example.com", ActionCreateCampaign, StatusSuccess, ResourceCampaign},
		{testNow.Add(-48 * time.Hour), 2, "bob@example.com", ActionCreateCampaign, StatusError, ResourceCampaign},
		{testNow.Add(-24 * time.Hour), 2, "bob@example.com", ActionLogin, StatusSuccess, ResourceAuth},
		{testNow, 1, "admin@example.com", ActionAddUser, StatusSuccess, ResourceUser},
	}
	for _, e := range entries {
		_, err := svc.DB.Logs().Create(ctx, dao.LogEntry{
			Created:      e.at,
			UserID:       e.userID,
			UserEmail:    e.email,
			Action:       e.action,
			Status:       e.status,
			ResourceType: e.resTyp,
		})
		require.NoError(t, err)
	}
}

func Test_QueryLogs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	seedLogs(t, svc)

	testCases := []struct {
		name        string
		q           LogQuery
		expectTotal int
		expectPage  int
		expectPages int
		expectLen   int
	}{
		{name: "everything", q: LogQuery{}, expectTotal: 5, expectPage: 1, expectPages: 1, expectLen: 5},
		{name: "by user", q: LogQuery{UserID: 2}, expectTotal: 2, expectPage: 1, expectPages: 1, expectLen: 2},
		{name: "by action and status", q: LogQuery{Action: ActionCreateCampaign, Status: StatusError}, expectTotal: 1, expectPage: 1, expectPages: 1, expectLen: 1},
		{name: "date range inclusive", q: LogQuery{StartDate: campaign.MustParseDate("2024-01-13"), EndDate: campaign.MustParseDate("2024-01-14")}, expectTotal: 3, expectPage: 1, expectPages: 1, expectLen: 3},
		{name: "second page", q: LogQuery{Page: 2, PerPage: 2}, expectTotal: 5, expectPage: 2, expectPages: 3, expectLen: 2},
		{name: "page past end is clamped", q: LogQuery{Page: 9, PerPage: 2}, expectTotal: 5, expectPage: 3, expectPages: 3, expectLen: 1},
		{name: "no matches", q: LogQuery{ResourceType: "nothing"}, expectTotal: 0, expectPage: 1, expectPages: 1, expectLen: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			pg, err := svc.QueryLogs(ctx, tc.q)
			assert.NoError(err)
			assert.Equal(tc.expectTotal, pg.Total)
			assert.Equal(tc.expectPage, pg.Page)
			assert.Equal(tc.expectPages, pg.Pages)
			assert.Len(pg.Entries, tc.expectLen)
			assert.Equal(pg.Page > 1, pg.HasPrev())
		})
	}
}

func Test_QueryLogs_options(t *testing.T) {
	assert := assert.New(t)
	svc := newTestService()
	seedLogs(t, svc)

	pg, err := svc.QueryLogs(context.Background(), LogQuery{UserID: 2})
	require.NoError(t, err)

	assert.Equal([]LogUser{{ID: 1, Email: "admin@example.com"}, {ID: 2, Email: "bob@example.com"}}, pg.Options.Users)
	assert.Equal([]string{ActionAddUser, ActionCreateCampaign, ActionLogin}, pg.Options.Actions)
	assert.Equal([]string{StatusError, StatusSuccess}, pg.Options.Statuses)
	assert.Equal([]string{ResourceAuth, ResourceCampaign, ResourceUser}, pg.Options.ResourceTypes)
}

func Test_ExportLogs(t *testing.T) {
	assert := assert.New(t)
	svc := newTestService()
	svc.ExportLimit = 2
	seedLogs(t, svc)

	data, filename, err := svc.ExportLogs(context.Background(), LogQuery{Page: 3, PerPage: 1})
	require.NoError(t, err)

	assert.Equal("activity_logs_20240115_103000.csv", filename)
	lines := strings.Split(strings.TrimSpace(data), "\n")
	if assert.Len(lines, 3) {
		assert.True(strings.HasPrefix(lines[0], "ID,Timestamp,User,Action"))
		assert.Contains(lines[1], ActionAddUser)
	}
}

func Test_LogStats(t *testing.T) {
	assert := assert.New(t)
	svc := newTestService()
	seedLogs(t, svc)

	stats, err := svc.LogStats(context.Background(), campaign.MustParseDate("2024-01-13"), campaign.Date{})
	require.NoError(t, err)

	assert.Equal(4, stats.TotalActions)
	assert.Equal(1, stats.ErrorActions)
	assert.Equal(25.0, stats.ErrorRate)
	assert.Equal([]Count{{"2024-01-13", 2}, {"2024-01-14", 1}, {"2024-01-15", 1}}, stats.DailyActivity)
	assert.Equal([]Count{{"admin@example.com", 2}, {"bob@example.com", 2}}, stats.TopUsers)
	assert.Equal([]Count{{ActionCreateCampaign, 2}, {ActionAddUser, 1}, {ActionLogin, 1}}, stats.TopActions)
}

func Test_PruneLogs(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := newTestService()
	svc.LogRetention = 36 * time.Hour
	seedLogs(t, svc)

	n, err := svc.PruneLogs(ctx)
	assert.NoError(err)
	assert.Equal(3, n)

	pg, err := svc.QueryLogs(ctx, LogQuery{})
	assert.NoError(err)
	assert.Equal(2, pg.Total)
}
