// Package config loads the settings of the campman console from a TOML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dekarrin/campman/internal/activity"
	"github.com/dekarrin/campman/internal/campaign"
	"github.com/dekarrin/campman/internal/logging"
	"github.com/spf13/afero"
)

const (
	EnvAPIURL   = "CAMPMAN_API_URL"
	EnvStorage  = "CAMPMAN_STORAGE"
	EnvLogLevel = "CAMPMAN_LOG_LEVEL"
)

const (
	DefaultAPIURL         = "http://localhost:8080/api"
	DefaultLogLevel       = "warn"
	DefaultTimeoutSeconds = 30

	// AppDir is the name of the directory under the user config dir that holds
	// the config file and the default session storage.
	AppDir = "campman"

	// Filename is the name of the config file within AppDir.
	Filename = "config.toml"
)

type Log struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

type Campaigns struct {
	// CheckConflictsOnEdit is whether edits are checked against active
	// campaigns the same as creates are. Nil means the default, true.
	CheckConflictsOnEdit *bool `toml:"check_conflicts_on_edit"`
}

type Logs struct {
	PerPage int `toml:"per_page"`
}

// Config is the configuration of the console.
type Config struct {
	// APIURL is the base URL every API path is resolved against, such as
	// "http://localhost:8080/api".
	APIURL string `toml:"api_url"`

	// Storage is the connection string of the local storage holding the
	// session token. See ParseStorageConnString.
	Storage string `toml:"storage"`

	// DownloadDir is where exported logs are written.
	DownloadDir string `toml:"download_dir"`

	// TimeoutSeconds bounds each request to the backend.
	TimeoutSeconds int `toml:"timeout_seconds"`

	Log       Log       `toml:"log"`
	Campaigns Campaigns `toml:"campaigns"`
	Logs      Logs      `toml:"logs"`
}

// DefaultPath gives the path of the config file in the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppDir, Filename), nil
}

// Load reads the config file at path from fsys. If the file does not exist and
// mustExist is false, an empty Config is returned with no error. Keys in the
// file that are not recognized are an error.
func Load(fsys afero.Fs, path string, mustExist bool) (Config, error) {
	var cfg Config

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mustExist {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i := range undecoded {
			keys[i] = undecoded[i].String()
		}
		return cfg, fmt.Errorf("%s: unknown key(s): %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// ApplyEnv returns a copy of cfg with values from the environment applied
// over it. lookup is usually os.LookupEnv.
func (cfg Config) ApplyEnv(lookup func(string) (string, bool)) Config {
	newCFG := cfg

	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		newCFG.APIURL = v
	}
	if v, ok := lookup(EnvStorage); ok && v != "" {
		newCFG.Storage = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		newCFG.Log.Level = v
	}

	return newCFG
}

// FillDefaults returns a new Config identical to cfg but with unset values set
// to their defaults. The default storage and download dir are derived from
// the user's config and home dirs; if those cannot be found, in-memory storage
// and the working directory are used instead.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	if newCFG.APIURL == "" {
		newCFG.APIURL = DefaultAPIURL
	}
	if newCFG.Storage == "" {
		newCFG.Storage = StorageInMemory.String()
		if dir, err := os.UserConfigDir(); err == nil {
			newCFG.Storage = Storage{Type: StorageSQLite, DataDir: filepath.Join(dir, AppDir)}.String()
		}
	}
	if newCFG.DownloadDir == "" {
		newCFG.DownloadDir = "."
		if home, err := os.UserHomeDir(); err == nil {
			newCFG.DownloadDir = filepath.Join(home, "Downloads")
		}
	}
	if newCFG.TimeoutSeconds == 0 {
		newCFG.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if newCFG.Log.Level == "" {
		newCFG.Log.Level = DefaultLogLevel
	}
	if newCFG.Logs.PerPage == 0 {
		newCFG.Logs.PerPage = activity.DefaultPerPage
	}

	return newCFG
}

// Validate returns an error if the Config has invalid field values set. Empty
// values are considered invalid; if defaults are intended to be used, call
// Validate on the return value of FillDefaults.
func (cfg Config) Validate() error {
	u, err := url.Parse(cfg.APIURL)
	if err != nil {
		return fmt.Errorf("api_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url: scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("api_url: no host given")
	}

	st, err := ParseStorageConnString(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := st.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if cfg.DownloadDir == "" {
		return fmt.Errorf("download_dir: must not be empty")
	}
	if cfg.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds: must be at least 1")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Logs.PerPage < 1 {
		return fmt.Errorf("logs.per_page: must be at least 1")
	}

	return nil
}

// Timeout gives TimeoutSeconds as a time.Duration.
func (cfg Config) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutSeconds) * time.Second
}

// StorageConfig parses the Storage connection string.
func (cfg Config) StorageConfig() (Storage, error) {
	return ParseStorageConnString(cfg.Storage)
}

// ConflictPolicy gives the campaign conflict policy selected by the config.
func (cfg Config) ConflictPolicy() campaign.ConflictPolicy {
	if cfg.Campaigns.CheckConflictsOnEdit != nil && !*cfg.Campaigns.CheckConflictsOnEdit {
		return campaign.CheckCreatesOnly
	}
	return campaign.CheckEdits
}
