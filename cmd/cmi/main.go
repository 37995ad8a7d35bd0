/*
Cmi starts an interactive campman console session.

It connects to a campaign backend, restores the session saved by the last run
if there is one, and then reads commands from stdin and prints results to
stdout until the "QUIT" command is input.

Usage:

	cmi [flags]

The flags are:

	-v, --version
		Give the current version of campman and then exit.

	-c, --config FILE
		Read settings from the given TOML file. Defaults to config.toml in the
		campman directory of the user config dir. A missing default file is not
		an error; a missing file given with this flag is.

	-a, --api URL
		Use the backend API at the given base URL, such as
		http://localhost:8080/api. Overrides the config file and the
		CAMPMAN_API_URL environment variable.

	-s, --storage DRIVER[:PARAMS]
		Keep the session token in the given local storage. DRIVER must be one
		of inmem or sqlite; sqlite needs the path to a data directory, such as
		sqlite:path/to/dir. Overrides the config file and the CAMPMAN_STORAGE
		environment variable.

	-L, --log-level LEVEL
		Log at the given level to stderr. One of debug, info, warn, or error.

	--download-dir DIR
		Write exported activity logs to the given directory.

	-d, --direct
		Force reading directly from the console as opposed to using GNU readline
		based routines for reading command input even if launched in a tty with
		stdin and stdout.

Environment variables may also be given in a .env file in the current
directory.

Once a session has started, type "HELP" for an explanation of the commands. To
exit the console, type "QUIT".
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dekarrin/campman"
	"github.com/dekarrin/campman/internal/config"
	"github.com/dekarrin/campman/internal/logging"
	"github.com/dekarrin/campman/internal/version"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const (

	// ExitSuccess indicates a successful program execution.
	ExitSuccess = iota

	// ExitConsoleError indicates an unsuccessful program execution due to a
	// problem while the console was running.
	ExitConsoleError

	// ExitInitError indicates an unsuccessful program execution due to an issue
	// initializing the console.
	ExitInitError
)

var (
	returnCode      int = ExitSuccess
	flagVersion         = pflag.BoolP("version", "v", false, "Give the current version of campman and then exit.")
	flagConfig          = pflag.StringP("config", "c", "", "Read settings from the given TOML file.")
	flagAPI             = pflag.StringP("api", "a", "", "Use the backend API at the given base URL.")
	flagStorage         = pflag.StringP("storage", "s", "", "Keep the session token in the given local storage.")
	flagLogLevel        = pflag.StringP("log-level", "L", "", "Log at the given level to stderr.")
	flagDownloadDir     = pflag.String("download-dir", "", "Write exported activity logs to the given directory.")
	flagDirect          = pflag.BoolP("direct", "d", false, "Force reading directly from stdin instead of going through GNU readline where possible.")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			// we are panicking, make sure we dont lose the panic just because
			// we checked
			panic(panicErr)
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	if len(pflag.Args()) > 0 {
		fmt.Fprintf(os.Stderr, "Too many arguments\nDo -h for help.\n")
		returnCode = ExitInitError
		return
	}

	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := loadConfig(afero.NewOsFs())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}

	lg, err := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}

	stCfg, err := cfg.StorageConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: storage: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}
	store, err := stCfg.Connect()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: storage: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}
	defer store.Close()

	con, err := campman.New(os.Stdin, os.Stdout, campman.Options{
		APIURL:         cfg.APIURL,
		Storage:        store,
		DownloadDir:    cfg.DownloadDir,
		Timeout:        cfg.Timeout(),
		PerPage:        cfg.Logs.PerPage,
		ConflictPolicy: cfg.ConflictPolicy(),
		ForceDirect:    *flagDirect,
		Logger:         lg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
		return
	}
	defer con.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := con.RunUntilQuit(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitConsoleError
		return
	}
}

// loadConfig reads the config file and layers the environment and flags over
// it.
func loadConfig(fsys afero.Fs) (config.Config, error) {
	path := *flagConfig
	mustExist := pflag.Lookup("config").Changed
	if !mustExist {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			// no user config dir; run on env, flags, and defaults alone
			path = ""
		}
	}

	var cfg config.Config
	if path != "" {
		var err error
		cfg, err = config.Load(fsys, path, mustExist)
		if err != nil {
			return cfg, err
		}
	}

	cfg = cfg.ApplyEnv(os.LookupEnv)

	if pflag.Lookup("api").Changed {
		cfg.APIURL = *flagAPI
	}
	if pflag.Lookup("storage").Changed {
		cfg.Storage = *flagStorage
	}
	if pflag.Lookup("log-level").Changed {
		cfg.Log.Level = *flagLogLevel
	}
	if pflag.Lookup("download-dir").Changed {
		cfg.DownloadDir = *flagDownloadDir
	}

	cfg = cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
