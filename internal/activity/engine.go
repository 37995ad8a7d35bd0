package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/logging"
	"github.com/spf13/afero"
)

// DefaultExportFilename is used when the backend does not name the export.
const DefaultExportFilename = "activity_logs.csv"

// ErrSuperseded is returned by a fetch whose response arrived after a newer
// fetch was started. Its response is discarded.
var ErrSuperseded = errors.New("a newer request replaced this one")

// State is a snapshot of everything the log view shows.
type State struct {
	Filters    Filters
	Logs       []Entry
	Pagination Pagination
	Options    Options

	// Stats is nil until statistics have been loaded.
	Stats *Stats

	Loading bool

	// Err is the last error to show in the view. It stays until cleared or
	// until the next successful fetch.
	Err error

	// LastExport is the path of the most recent export file.
	LastExport string
}

type EngineOptions struct {
	Source Source

	// Fs is where exports are written. Defaults to the OS filesystem.
	Fs afero.Fs

	// DownloadDir is the directory exports are written to. Defaults to the
	// current directory.
	DownloadDir string

	// PerPage is the page size used by new and reset filters. Defaults to
	// DefaultPerPage.
	PerPage int

	Logger *slog.Logger
}

// Engine holds the log view's filter state and applies query results to it.
// Every method that changes the filters reads the latest filters, merges its
// change, and issues exactly one fetch for the result.
//
// Each fetch takes a sequence number, and a response is only applied if no
// fetch has started since. In-flight requests are never canceled; a stale
// response is simply dropped.
type Engine struct {
	src     Source
	fs      afero.Fs
	dlDir   string
	perPage int
	log     *slog.Logger

	mtx        sync.Mutex
	filters    Filters
	logs       []Entry
	pagination Pagination
	options    Options
	stats      *Stats
	err        error
	lastExport string

	seq      uint64
	statsSeq uint64
	pending  int
}

func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		src:     opts.Source,
		fs:      opts.Fs,
		dlDir:   opts.DownloadDir,
		perPage: opts.PerPage,
		log:     logging.OrDiscard(opts.Logger),
	}
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}
	if e.dlDir == "" {
		e.dlDir = "."
	}
	if e.perPage < 1 {
		e.perPage = DefaultPerPage
	}
	e.filters = e.defaultFilters()
	return e
}

func (e *Engine) defaultFilters() Filters {
	f := DefaultFilters()
	f.PerPage = e.perPage
	return f
}

// State returns a snapshot of the engine.
func (e *Engine) State() State {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	st := State{
		Filters:    e.filters,
		Pagination: e.pagination,
		Options:    e.options,
		Loading:    e.pending > 0,
		Err:        e.err,
		LastExport: e.lastExport,
	}
	st.Logs = make([]Entry, len(e.logs))
	copy(st.Logs, e.logs)
	if e.stats != nil {
		s := *e.stats
		st.Stats = &s
	}
	return st
}

// Filters returns the current filters.
func (e *Engine) Filters() Filters {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.filters
}

// Load fetches the current filters again.
func (e *Engine) Load(ctx context.Context) error {
	return e.fetch(ctx, e.Filters())
}

// UpdateFilters merges changes into the current filters and fetches the
// result. If any key other than page is changed, page goes back to 1. An
// invalid key or value is rejected before anything changes.
func (e *Engine) UpdateFilters(ctx context.Context, changes map[Key]string) error {
	e.mtx.Lock()
	f := e.filters
	resetPage := false
	for k, v := range changes {
		if err := f.Set(k, v); err != nil {
			e.mtx.Unlock()
			return err
		}
		if k != KeyPage {
			resetPage = true
		}
	}
	if resetPage {
		f.Page = DefaultPage
	}
	e.filters = f
	e.mtx.Unlock()

	return e.fetch(ctx, f)
}

// ChangePage fetches page n with every other filter unchanged. It does not
// check n against the known page count; callers decide whether a page exists.
func (e *Engine) ChangePage(ctx context.Context, n int) error {
	if n < 1 {
		return cmerr.Validation("page must be a positive whole number")
	}

	e.mtx.Lock()
	f := e.filters
	f.Page = n
	e.filters = f
	e.mtx.Unlock()

	return e.fetch(ctx, f)
}

// Reset clears every filter and fetches the first page.
func (e *Engine) Reset(ctx context.Context) error {
	e.mtx.Lock()
	f := e.defaultFilters()
	e.filters = f
	e.mtx.Unlock()

	return e.fetch(ctx, f)
}

// ClearError dismisses the current error.
func (e *Engine) ClearError() {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.err = nil
}

func (e *Engine) begin() uint64 {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.seq++
	e.pending++
	e.err = nil
	return e.seq
}

func (e *Engine) fetch(ctx context.Context, f Filters) error {
	mySeq := e.begin()

	page, err := e.src.Fetch(ctx, f)

	e.mtx.Lock()
	e.pending--
	if mySeq != e.seq {
		e.mtx.Unlock()
		e.log.Debug("dropping stale log response", "request", mySeq, "filters", f.String())
		return ErrSuperseded
	}
	if err != nil {
		e.err = err
		e.mtx.Unlock()
		return err
	}
	e.logs = page.Logs
	if e.logs == nil {
		e.logs = []Entry{}
	}
	e.pagination = page.Pagination
	e.options = page.Filters
	e.mtx.Unlock()

	if !f.Active() {
		if _, err := e.loadStats(ctx, f.StartDate, f.EndDate); err != nil && !errors.Is(err, ErrSuperseded) {
			e.log.Warn("could not load activity statistics", "error", err)
		}
	}

	return nil
}

// LoadStats fetches statistics for the given date range and records them. The
// error is returned to the caller but never becomes the view's error, since
// statistics are supplementary.
func (e *Engine) LoadStats(ctx context.Context, startDate, endDate string) (Stats, error) {
	return e.loadStats(ctx, startDate, endDate)
}

func (e *Engine) loadStats(ctx context.Context, startDate, endDate string) (Stats, error) {
	e.mtx.Lock()
	e.statsSeq++
	mySeq := e.statsSeq
	e.pending++
	e.mtx.Unlock()

	s, err := e.src.Stats(ctx, startDate, endDate)

	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.pending--
	if err != nil {
		return Stats{}, err
	}
	if mySeq != e.statsSeq {
		return s, ErrSuperseded
	}
	e.stats = &s
	return s, nil
}

// Export writes a CSV of every entry matching the current filters to the
// download directory and returns the path written. The file is named by the
// backend, reduced to its base name, or DefaultExportFilename if it gave none.
// A failure becomes the view's error and leaves the loaded entries alone.
func (e *Engine) Export(ctx context.Context) (string, error) {
	e.mtx.Lock()
	f := e.filters
	e.pending++
	e.mtx.Unlock()

	path, err := e.export(ctx, f)

	e.mtx.Lock()
	defer e.mtx.Unlock()
	e.pending--
	if err != nil {
		e.err = err
		return "", err
	}
	e.lastExport = path
	return path, nil
}

func (e *Engine) export(ctx context.Context, f Filters) (string, error) {
	res, err := e.src.Export(ctx, f)
	if err != nil {
		return "", err
	}

	name := ExportFilename(res.Filename)
	path := filepath.Join(e.dlDir, name)

	if err := e.fs.MkdirAll(e.dlDir, 0755); err != nil {
		return "", cmerr.WithConsole("Failed to export logs", fmt.Sprintf("create download dir: %s", err), err)
	}
	if err := afero.WriteFile(e.fs, path, []byte(res.CSVData), 0644); err != nil {
		return "", cmerr.WithConsole("Failed to export logs", fmt.Sprintf("write %s: %s", path, err), err)
	}

	e.log.Info("exported activity logs", "path", path, "bytes", len(res.CSVData))
	return path, nil
}

// ExportFilename gives the local file name for a backend-suggested name. Any
// directory part, with either kind of separator, is dropped.
func ExportFilename(suggested string) string {
	name := strings.TrimSpace(suggested)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" || name == "." || name == ".." {
		return DefaultExportFilename
	}
	return name
}
