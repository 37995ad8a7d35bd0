package campman

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dekarrin/campman/internal/activity"
	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/command"
	"github.com/dekarrin/campman/internal/session"
	"github.com/dekarrin/campman/internal/util"
	"github.com/dekarrin/rosed"
)

type handlerFunc func(con *Console, ctx context.Context, cmd command.Command) error

// commandRoutes gives the view each command belongs to. Commands not listed
// are available regardless of login.
var commandRoutes = map[string]session.Route{
	"LOGIN":     session.RouteLogin,
	"SETPASS":   session.RouteSetPassword,
	"CAMPAIGNS": session.RouteCampaigns,
	"NEW":       session.RouteCampaigns,
	"EDIT":      session.RouteCampaigns,
	"DELETE":    session.RouteCampaigns,
	"IMAGES":    session.RouteCampaigns,
	"UPLOAD":    session.RouteCampaigns,
	"USERS":     session.RouteUsers,
	"ADDUSER":   session.RouteUsers,
	"DELUSER":   session.RouteUsers,
	"LOGS":      session.RouteLogs,
	"FILTER":    session.RouteLogs,
	"PAGE":      session.RouteLogs,
	"NEXT":      session.RouteLogs,
	"PREV":      session.RouteLogs,
	"RESET":     session.RouteLogs,
	"EXPORT":    session.RouteLogs,
	"STATS":     session.RouteLogs,
}

var handlers map[string]handlerFunc

func init() {
	handlers = map[string]handlerFunc{
		"HELP":      cmdHelp,
		"LOGIN":     cmdLogin,
		"SETPASS":   cmdSetPass,
		"LOGOUT":    cmdLogout,
		"WHOAMI":    cmdWhoAmI,
		"CAMPAIGNS": cmdCampaigns,
		"NEW":       cmdNew,
		"EDIT":      cmdEdit,
		"DELETE":    cmdDelete,
		"IMAGES":    cmdImages,
		"UPLOAD":    cmdUpload,
		"USERS":     cmdUsers,
		"ADDUSER":   cmdAddUser,
		"DELUSER":   cmdDelUser,
		"LOGS":      cmdLogs,
		"FILTER":    cmdFilter,
		"PAGE":      cmdPage,
		"NEXT":      cmdNext,
		"PREV":      cmdPrev,
		"RESET":     cmdReset,
		"EXPORT":    cmdExport,
		"STATS":     cmdStats,
	}
}

var commandHelp = [][2]string{
	{"HELP", "show this help"},
	{"LOGIN EMAIL", "log in; you will be asked for your password"},
	{"SETPASS [TOKEN]", "set the password of a new account"},
	{"LOGOUT", "log out and forget the saved session"},
	{"WHOAMI/ME", "show who is logged in"},
	{"CAMPAIGNS/LS", "list campaigns with their status and image count"},
	{"NEW/ADD", "create a campaign; you will be asked for its details and images"},
	{"EDIT ID", "edit a campaign; leave a field blank to keep it"},
	{"DELETE/RM ID", "delete a campaign"},
	{"IMAGES ID", "show the stored images of a campaign"},
	{"UPLOAD ID SLOT=PATH...", "upload images; SLOT is background, logo, or screensaver"},
	{"USERS", "list users (admin)"},
	{"ADDUSER EMAIL [ADMIN]", "add a user, optionally as an admin (admin)"},
	{"DELUSER ID", "delete a user (admin)"},
	{"LOGS", "show the activity log (admin)"},
	{"FILTER KEY=VALUE...", "filter the log by user_id, action, status, resource_type, start_date, end_date, or per_page; an empty value clears a filter"},
	{"PAGE N", "go to page N of the log"},
	{"NEXT/PREV", "go to the next or previous page of the log"},
	{"RESET", "clear every log filter"},
	{"EXPORT", "save the filtered log as a CSV file"},
	{"STATS [START [END]]", "show activity statistics for a date range"},
	{"QUIT/BYE", "leave the console"},
}

var textFormatOptions = rosed.Options{
	PreserveParagraphs:       true,
	IndentStr:                "  ",
	ParagraphSeparator:       "\n",
	NoTrailingLineSeparators: true,
}

func cmdHelp(con *Console, ctx context.Context, cmd command.Command) error {
	if topic := cmd.Arg(0); topic != "" {
		expanded := command.ExpandAliases([]string{topic}, 1)
		arity, ok := command.Verbs[strings.ToUpper(expanded[0])]
		if !ok {
			return cmerr.Validation("There is no command called %q", topic)
		}
		return con.write("Usage: %s\n", arity.Usage)
	}

	output := rosed.Edit("").WithOptions(textFormatOptions).
		Insert(rosed.End, "Here are the commands you can use:\n").
		InsertDefinitionsTable(rosed.End, commandHelp, consoleOutputWidth).
		String()
	return con.write("%s\n", output)
}

func cmdLogin(con *Console, ctx context.Context, cmd command.Command) error {
	pw, err := con.promptPassword("Password: ")
	if err != nil {
		return err
	}
	return con.session.Login(ctx, cmd.Arg(0), pw)
}

func cmdSetPass(con *Console, ctx context.Context, cmd command.Command) error {
	pw, err := con.promptPassword("New password: ")
	if err != nil {
		return err
	}
	again, err := con.promptPassword("Confirm new password: ")
	if err != nil {
		return err
	}
	if pw != again {
		return cmerr.Validation("Passwords do not match")
	}

	if err := con.session.SetPassword(ctx, cmd.Arg(0), pw); err != nil {
		return err
	}
	if con.session.State() != session.StateAuthenticated {
		return con.write("Password set.\n")
	}
	return nil
}

func cmdLogout(con *Console, ctx context.Context, cmd command.Command) error {
	con.session.Logout(ctx)
	return con.write("Logged out.\n")
}

func cmdWhoAmI(con *Console, ctx context.Context, cmd command.Command) error {
	u, ok := con.session.User()
	if !ok {
		return con.write("Not logged in.\n")
	}
	return con.write("%s (%s, user #%d)\n", u.Email, u.Role(), u.ID)
}

func cmdCampaigns(con *Console, ctx context.Context, cmd command.Command) error {
	if _, err := con.campaigns.Reload(ctx); err != nil {
		return err
	}
	con.campaigns.LoadImages(ctx)
	return con.write("%s\n", renderCampaigns(con.campaigns.Campaigns()))
}

func cmdNew(con *Console, ctx context.Context, cmd command.Command) error {
	if !con.campaigns.Loaded() {
		if _, err := con.campaigns.Reload(ctx); err != nil {
			return err
		}
	}

	var f campaign.Form
	if err := con.fillForm(&f); err != nil {
		return err
	}

	c, err := con.campaigns.Submit(ctx, f)
	if err != nil {
		return err
	}
	return con.write("Created campaign #%d %q (%s)\n", c.ID, c.Name, c.Status)
}

func cmdEdit(con *Console, ctx context.Context, cmd command.Command) error {
	id, err := cmd.IntArg(0, "campaign ID")
	if err != nil {
		return err
	}
	if !con.campaigns.Loaded() {
		if _, err := con.campaigns.Reload(ctx); err != nil {
			return err
		}
	}
	existing, ok := con.campaigns.Get(id)
	if !ok {
		return cmerr.New(fmt.Sprintf("campaign %d not in list", id), cmerr.ErrNotFound)
	}

	f := campaign.EditForm(existing)
	if err := con.fillForm(&f); err != nil {
		return err
	}

	c, err := con.campaigns.Submit(ctx, f)
	if err != nil {
		return err
	}
	return con.write("Updated campaign #%d %q (%s)\n", c.ID, c.Name, c.Status)
}

// fillForm asks for each field of f, keeping the current value of any field
// left blank, then asks for an image for each slot.
func (con *Console) fillForm(f *campaign.Form) error {
	fields := []struct {
		label string
		val   *string
	}{
		{"Name", &f.Name},
		{"Start date (YYYY-MM-DD)", &f.StartDate},
		{"End date (YYYY-MM-DD)", &f.EndDate},
	}
	for _, fld := range fields {
		p := fld.label + ": "
		if *fld.val != "" {
			p = fmt.Sprintf("%s [%s]: ", fld.label, *fld.val)
		}
		line, err := con.prompt(p)
		if err != nil {
			return err
		}
		if line = strings.TrimSpace(line); line != "" {
			*fld.val = line
		}
	}

	for _, slot := range campaign.Slots {
		for {
			path, err := con.prompt(fmt.Sprintf("%s image file (blank for none): ", activity.FormatAction(string(slot))))
			if err != nil {
				return err
			}
			path = strings.TrimSpace(path)
			if path == "" {
				break
			}
			file, err := campaign.LoadImageFile(con.fs, path)
			if err == nil {
				err = f.SetImage(slot, file)
			}
			if err == nil {
				break
			}
			if err := con.write("%s\n", cmerr.ConsoleMessage(err)); err != nil {
				return err
			}
		}
	}
	return nil
}

func cmdDelete(con *Console, ctx context.Context, cmd command.Command) error {
	id, err := cmd.IntArg(0, "campaign ID")
	if err != nil {
		return err
	}

	name := fmt.Sprintf("#%d", id)
	if c, ok := con.campaigns.Get(id); ok {
		name = fmt.Sprintf("%q", c.Name)
	}
	yes, err := con.confirm(fmt.Sprintf("Delete campaign %s?", name))
	if err != nil {
		return err
	}
	if !yes {
		return con.write("Nothing was deleted.\n")
	}

	if err := con.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	return con.write("Deleted campaign %s\n", name)
}

func cmdImages(con *Console, ctx context.Context, cmd command.Command) error {
	id, err := cmd.IntArg(0, "campaign ID")
	if err != nil {
		return err
	}
	is, err := con.campaigns.Images(ctx, id)
	if err != nil {
		return err
	}
	return con.write("%s\n", renderImages(is))
}

func cmdUpload(con *Console, ctx context.Context, cmd command.Command) error {
	id, err := cmd.IntArg(0, "campaign ID")
	if err != nil {
		return err
	}

	pairs, rest := cmd.Pairs(1)
	if len(rest) > 0 {
		return cmerr.Validation("%q is not in SLOT=PATH form", rest[0])
	}

	// a Form admits each file by the same rules as the campaign editor
	var f campaign.Form
	for _, s := range util.OrderedKeys(pairs) {
		slot, ok := campaign.ParseSlot(s)
		if !ok {
			return cmerr.Validation("%q is not an image slot; use background, logo, or screensaver", s)
		}
		file, err := campaign.LoadImageFile(con.fs, pairs[s])
		if err != nil {
			return err
		}
		if err := f.SetImage(slot, file); err != nil {
			return err
		}
	}

	res, err := con.campaigns.Upload(ctx, id, f.PendingImages())
	if err != nil {
		if errors.Is(err, campaign.ErrNoFiles) {
			return cmerr.Validation("Select at least one image to upload")
		}
		return err
	}

	msg := res.Message
	if msg == "" {
		msg = "Images uploaded"
	}
	out := msg + "\n"
	for _, uf := range res.UploadedFiles {
		out += fmt.Sprintf("  %s: %s\n", uf.Type, uf.Filename)
	}
	return con.write(out)
}

func cmdUsers(con *Console, ctx context.Context, cmd command.Command) error {
	list, err := con.users.List(ctx)
	if err != nil {
		return err
	}
	return con.write("%s\n", renderUsers(list))
}

func cmdAddUser(con *Console, ctx context.Context, cmd command.Command) error {
	isAdmin := false
	if flag := cmd.Arg(1); flag != "" {
		if !strings.EqualFold(flag, "ADMIN") {
			return cmerr.Validation("Usage: %s", command.Verbs["ADDUSER"].Usage)
		}
		isAdmin = true
	}

	u, err := con.users.Create(ctx, cmd.Arg(0), isAdmin)
	if err != nil {
		return err
	}
	return con.write("Added %s as %s. They will set a password on first login.\n", u.Email, u.Role())
}

func cmdDelUser(con *Console, ctx context.Context, cmd command.Command) error {
	id, err := cmd.IntArg(0, "user ID")
	if err != nil {
		return err
	}
	yes, err := con.confirm(fmt.Sprintf("Delete user #%d?", id))
	if err != nil {
		return err
	}
	if !yes {
		return con.write("Nothing was deleted.\n")
	}
	if err := con.users.Delete(ctx, id); err != nil {
		return err
	}
	return con.write("Deleted user #%d\n", id)
}

func cmdLogs(con *Console, ctx context.Context, cmd command.Command) error {
	return con.logView(con.logs.Load(ctx))
}

func cmdFilter(con *Console, ctx context.Context, cmd command.Command) error {
	pairs, rest := cmd.Pairs(0)
	if len(rest) > 0 {
		return cmerr.Validation("%q is not in KEY=VALUE form", rest[0])
	}

	changes := map[activity.Key]string{}
	for k, v := range pairs {
		key, ok := activity.ParseKey(k)
		if !ok {
			return cmerr.Validation("%q is not a log filter", k)
		}
		changes[key] = v
	}
	return con.logView(con.logs.UpdateFilters(ctx, changes))
}

func cmdPage(con *Console, ctx context.Context, cmd command.Command) error {
	n, err := cmd.IntArg(0, "page number")
	if err != nil {
		return err
	}
	return con.logView(con.logs.ChangePage(ctx, n))
}

// NEXT and PREV are only offered when the last page says there is somewhere
// to go; the engine itself does not check.
func cmdNext(con *Console, ctx context.Context, cmd command.Command) error {
	st := con.logs.State()
	if !st.Pagination.HasNext {
		return con.write("There is no next page.\n")
	}
	return con.logView(con.logs.ChangePage(ctx, st.Filters.Page+1))
}

func cmdPrev(con *Console, ctx context.Context, cmd command.Command) error {
	st := con.logs.State()
	if !st.Pagination.HasPrev {
		return con.write("There is no previous page.\n")
	}
	return con.logView(con.logs.ChangePage(ctx, st.Filters.Page-1))
}

func cmdReset(con *Console, ctx context.Context, cmd command.Command) error {
	return con.logView(con.logs.Reset(ctx))
}

func cmdExport(con *Console, ctx context.Context, cmd command.Command) error {
	path, err := con.logs.Export(ctx)
	if err != nil {
		con.logs.ClearError()
		return err
	}
	return con.write("Exported the filtered log to %s\n", path)
}

func cmdStats(con *Console, ctx context.Context, cmd command.Command) error {
	start, end := cmd.Arg(0), cmd.Arg(1)
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := campaign.ParseDate(d); err != nil {
			return cmerr.Validation("%q must be in YYYY-MM-DD format", d)
		}
	}

	s, err := con.logs.LoadStats(ctx, start, end)
	if err != nil {
		return err
	}
	return con.write("%s\n", renderStats(s))
}

// logView prints the log after a fetch. A failed fetch leaves the previous
// results in place, so they are shown under the error, unless the backend
// refused access to the log altogether.
func (con *Console) logView(fetchErr error) error {
	if errors.Is(fetchErr, activity.ErrSuperseded) {
		fetchErr = nil
	}
	if fetchErr != nil {
		con.logs.ClearError()
		st := con.logs.State()
		if len(st.Logs) == 0 || errors.Is(fetchErr, cmerr.ErrForbidden) {
			return fetchErr
		}
		if err := con.write("%s\n", cmerr.ConsoleMessage(fetchErr)); err != nil {
			return err
		}
	}
	return con.write("%s\n", renderLogs(con.logs.State()))
}
