// Package campman contains a CLI-driven console for administering promotional
// campaigns, their users, and the audit log of a campaign backend. The console
// reads commands continuously and applies them to the backend until the user
// quits.
package campman

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dekarrin/campman/internal/activity"
	"github.com/dekarrin/campman/internal/apiclient"
	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/command"
	"github.com/dekarrin/campman/internal/input"
	"github.com/dekarrin/campman/internal/logging"
	"github.com/dekarrin/campman/internal/session"
	"github.com/dekarrin/campman/internal/storage"
	"github.com/dekarrin/campman/internal/token"
	"github.com/dekarrin/campman/internal/users"
	"github.com/dekarrin/rosed"
	"github.com/spf13/afero"
)

const consoleOutputWidth = 80

// Options configures a Console.
type Options struct {
	// APIURL is the base URL of the backend API, such as
	// "http://localhost:8080/api".
	APIURL string

	// Storage keeps the session token between runs. It is required. The
	// Console does not close it.
	Storage storage.LocalStorage

	// Fs is used to read image files and write exports. Defaults to the OS
	// filesystem.
	Fs afero.Fs

	// DownloadDir is where exported logs are written.
	DownloadDir string

	// Timeout bounds each request. Defaults to apiclient.DefaultTimeout.
	Timeout time.Duration

	// PerPage is the number of log entries requested per page.
	PerPage int

	// ConflictPolicy selects whether edits are checked for conflicts.
	ConflictPolicy campaign.ConflictPolicy

	// ForceDirect reads input directly even when attached to a terminal.
	ForceDirect bool

	// HTTPClient is used for requests if set.
	HTTPClient *http.Client

	Logger *slog.Logger

	// Now gives the current time. Defaults to time.Now.
	Now func() time.Time
}

// Console contains the things needed to administer a campaign backend from an
// interactive shell attached to an input stream and an output stream.
type Console struct {
	in          input.Reader
	out         *bufio.Writer
	forceDirect bool
	running     bool
	log         *slog.Logger
	fs          afero.Fs

	session   *session.Controller
	campaigns *campaign.Manager
	users     *users.Client
	logs      *activity.Engine
}

// New creates a new console ready to operate on the given input and output
// streams. It will immediately open a buffered reader on the input stream and a
// buffered writer on the output stream.
//
// If nil is given for the input stream, stdin is used. If nil is given for the
// output stream, stdout is used.
func New(inputStream io.Reader, outputStream io.Writer, opts Options) (*Console, error) {
	if inputStream == nil {
		inputStream = os.Stdin
	}
	if outputStream == nil {
		outputStream = os.Stdout
	}
	if opts.Storage == nil {
		return nil, fmt.Errorf("no local storage given")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	lg := logging.OrDiscard(opts.Logger)

	con := &Console{
		out:         bufio.NewWriter(outputStream),
		forceDirect: opts.ForceDirect,
		log:         lg,
		fs:          opts.Fs,
	}

	con.session = session.New(session.Options{
		Store:  token.NewStore(opts.Storage),
		Logger: lg.With("component", "session"),
		Now:    opts.Now,
	})

	api, err := apiclient.New(apiclient.Options{
		BaseURL:    opts.APIURL,
		Tokens:     con.session,
		Logger:     lg.With("component", "apiclient"),
		Timeout:    opts.Timeout,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing request client: %w", err)
	}
	con.session.SetAPI(api)

	repo := campaign.NewRepository(api, lg.With("component", "campaigns"))
	if opts.Now != nil {
		repo.Now = opts.Now
	}
	con.campaigns = campaign.NewManager(repo, opts.ConflictPolicy, lg.With("component", "campaigns"))
	con.users = users.NewClient(api, lg.With("component", "users"))
	con.logs = activity.NewEngine(activity.EngineOptions{
		Source:      activity.NewClient(api),
		Fs:          opts.Fs,
		DownloadDir: opts.DownloadDir,
		PerPage:     opts.PerPage,
		Logger:      lg.With("component", "activity"),
	})

	useReadline := !opts.ForceDirect && inputStream == os.Stdin && outputStream == os.Stdout
	if useReadline {
		verbs := make([]string, 0, len(command.Verbs))
		for v := range command.Verbs {
			verbs = append(verbs, v)
		}
		sort.Strings(verbs)

		con.in, err = input.NewInteractiveReader(verbs...)
		if err != nil {
			return nil, fmt.Errorf("initializing interactive-mode input reader: %w", err)
		}
	} else {
		con.in = input.NewDirectReader(inputStream, con.out)
	}

	return con, nil
}

// Session returns the session controller of the console.
func (con *Console) Session() *session.Controller {
	return con.session
}

// Close closes all resources associated with the Console, including any
// readline-related resources created for interactive mode.
func (con *Console) Close() error {
	if con.running {
		return fmt.Errorf("cannot close a running console")
	}

	err := con.in.Close()
	if err != nil {
		return fmt.Errorf("close command reader: %w", err)
	}

	return nil
}

// RunUntilQuit restores any saved session and then reads commands from the
// streams and applies them until the QUIT command is received or input ends.
func (con *Console) RunUntilQuit(ctx context.Context) error {
	introMsg := "Campaign Manager Console\n"
	if con.forceDirect {
		introMsg += "(direct input mode)\n"
	}
	introMsg += "========================\n"

	if err := con.write(introMsg); err != nil {
		return err
	}

	if err := con.session.Init(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if u, ok := con.session.User(); ok {
		if err := con.write("Logged in as %s (%s)\n", u.Email, u.Role()); err != nil {
			return err
		}
		if err := con.show(ctx, session.DefaultRoute); err != nil {
			return err
		}
	} else {
		if err := con.write("Not logged in. Type LOGIN followed by your email to log in.\n"); err != nil {
			return err
		}
	}

	con.running = true
	defer func() {
		con.running = false
	}()

	for con.running {
		cmd, err := command.Get(con.in, con.out)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("get user command: %w", err)
		}

		if cmd.Verb == "QUIT" {
			con.running = false
			break
		}

		if err := con.Execute(ctx, cmd); err != nil {
			return err
		}
	}

	return con.write("Goodbye\n")
}

// Execute runs a single command. Problems with the command itself are printed
// to the output; the returned error is only non-nil if output fails.
func (con *Console) Execute(ctx context.Context, cmd command.Command) error {
	route, routed := commandRoutes[cmd.Verb]
	if routed {
		dest := con.session.Gate(route)
		if dest != route {
			if err := con.write("%s\n", gateMessage(route, dest)); err != nil {
				return err
			}
			if dest == session.RouteCampaigns {
				return con.show(ctx, dest)
			}
			return nil
		}
	}

	handler, ok := handlers[cmd.Verb]
	if !ok {
		return con.write("%s is not available\n", cmd.Verb)
	}

	cmdErr := handler(con, ctx, cmd)
	if cmdErr != nil {
		expired := cmd.Verb != "LOGIN" && cmd.Verb != "SETPASS" && con.session.CheckError(ctx, cmdErr)
		if expired {
			con.session.Redirect()
			if err := con.write("Your session has ended. Type LOGIN followed by your email to log in again.\n"); err != nil {
				return err
			}
		} else {
			con.log.Debug("command failed", "verb", cmd.Verb, "error", cmdErr)
			msg := rosed.Edit(cmerr.ConsoleMessage(cmdErr)).Wrap(consoleOutputWidth).String()
			if err := con.write("%s\n", msg); err != nil {
				return err
			}
			if routed && route.AdminOnly() && errors.Is(cmdErr, cmerr.ErrForbidden) {
				con.log.Info("backend refused admin view", "verb", cmd.Verb)
				con.session.Redirect()
				return con.show(ctx, session.DefaultRoute)
			}
		}
	}

	return con.followRedirect(ctx)
}

// followRedirect shows whatever view the last session change points to.
func (con *Console) followRedirect(ctx context.Context) error {
	switch con.session.Redirect() {
	case session.RouteLogin:
		return con.write("Type LOGIN followed by your email to log in.\n")
	case session.RouteSetPassword:
		return con.write("A password must be set for this account before it can be used. Type SETPASS to choose one.\n")
	case session.RouteCampaigns:
		if u, ok := con.session.User(); ok {
			if err := con.write("Logged in as %s (%s)\n", u.Email, u.Role()); err != nil {
				return err
			}
		}
		return con.show(ctx, session.RouteCampaigns)
	}
	return nil
}

func gateMessage(want, got session.Route) string {
	switch got {
	case session.RouteLogin:
		return "You need to log in first. Type LOGIN followed by your email."
	case session.RouteSetPassword:
		return "Your password must be set first. Type SETPASS to choose one."
	}
	if want.AdminOnly() {
		return cmerr.AdminAccessRequired
	}
	return "You are already logged in."
}

// show renders a view after a redirect.
func (con *Console) show(ctx context.Context, route session.Route) error {
	if route != session.RouteCampaigns {
		return nil
	}
	if err := cmdCampaigns(con, ctx, command.Command{Verb: "CAMPAIGNS"}); err != nil {
		if con.session.CheckError(ctx, err) {
			con.session.Redirect()
			return con.write("Your session has ended. Type LOGIN followed by your email to log in again.\n")
		}
		return con.write("%s\n", rosed.Edit(cmerr.ConsoleMessage(err)).Wrap(consoleOutputWidth).String())
	}
	return nil
}

// write formats and writes output, then flushes it.
func (con *Console) write(s string, a ...interface{}) error {
	if len(a) > 0 {
		s = fmt.Sprintf(s, a...)
	}
	if _, err := con.out.WriteString(s); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}
	if err := con.out.Flush(); err != nil {
		return fmt.Errorf("could not flush output: %w", err)
	}
	return nil
}

// prompt reads one line of input after showing prompt. Blank lines are
// allowed.
func (con *Console) prompt(prompt string) (string, error) {
	return con.in.ReadLine(prompt)
}

// promptPassword reads a secret. Echo is suppressed only in interactive mode.
func (con *Console) promptPassword(prompt string) (string, error) {
	return con.in.ReadPassword(prompt)
}

// confirm asks a yes/no question; anything but yes is no.
func (con *Console) confirm(question string) (bool, error) {
	ans, err := con.prompt(question + " (y/N) ")
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(strings.TrimSpace(ans))
	return ans == "y" || ans == "yes", nil
}
