package server

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dekarrin/campman/internal/config"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/dao/inmem"
	"github.com/dekarrin/campman/server/dao/sqlite"
	"github.com/dekarrin/campman/server/service"
	"golang.org/x/crypto/bcrypt"
)

const (
	MaxSecretSize = 64
	MinSecretSize = 32

	DefaultUnauthDelayMillis = 1000
	DefaultLogRetentionDays  = 90
)

// Database is where the backend keeps users, campaigns, images, and the
// activity log. It takes the same connection strings as the console's local
// storage, "inmem" or "sqlite:DIR".
type Database config.Storage

// ParseDBConnString parses a connection string such as "sqlite:/data" or
// "inmem" into a Database.
func ParseDBConnString(s string) (Database, error) {
	st, err := config.ParseStorageConnString(s)
	if err != nil {
		return Database{}, fmt.Errorf("db: %w", err)
	}
	return Database(st), nil
}

func (db Database) String() string {
	return config.Storage(db).String()
}

// Validate returns an error if db is missing what its type needs.
func (db Database) Validate() error {
	return config.Storage(db).Validate()
}

// Connect opens the datastore db describes, creating the data dir of a sqlite
// datastore if needed.
func (db Database) Connect() (dao.Store, error) {
	switch db.Type {
	case config.StorageInMemory:
		return inmem.NewDatastore(), nil
	case config.StorageSQLite:
		if err := os.MkdirAll(db.DataDir, 0770); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		store, err := sqlite.NewDatastore(db.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, db.Validate()
	}
}

// Config is the configuration of a Server.
type Config struct {
	// TokenSecret signs session and password setup tokens.
	TokenSecret []byte

	// DB defaults to an in-memory datastore.
	DB Database

	// UnauthDelayMillis is how long to wait before answering with a 401, 403,
	// or 500. Defaults to 1000; set it negative to disable the wait.
	UnauthDelayMillis int

	// BcryptCost is the cost of stored password hashes. Defaults to
	// bcrypt.DefaultCost.
	BcryptCost int

	// LogRetentionDays is how many days activity log entries are kept.
	// Defaults to 90.
	LogRetentionDays int

	// ExportMaxRecords caps the entries in one activity log export. Defaults
	// to 10000.
	ExportMaxRecords int

	// Logger receives request and maintenance logs. If nil, nothing is
	// logged.
	Logger *slog.Logger

	// Now gives the current time. If nil, time.Now is used.
	Now func() time.Time
}

// UnauthDelay gives UnauthDelayMillis as a duration, zero if it is negative.
func (cfg Config) UnauthDelay() time.Duration {
	if cfg.UnauthDelayMillis < 1 {
		return 0
	}
	return time.Millisecond * time.Duration(cfg.UnauthDelayMillis)
}

// LogRetention gives LogRetentionDays as a duration.
func (cfg Config) LogRetention() time.Duration {
	return time.Duration(cfg.LogRetentionDays) * 24 * time.Hour
}

// FillDefaults returns a copy of cfg with unset values set to their defaults.
// TokenSecret has no default.
func (cfg Config) FillDefaults() Config {
	newCFG := cfg

	if newCFG.DB.Type == "" || newCFG.DB.Type == config.StorageNone {
		newCFG.DB = Database{Type: config.StorageInMemory}
	}
	if newCFG.UnauthDelayMillis == 0 {
		newCFG.UnauthDelayMillis = DefaultUnauthDelayMillis
	}
	if newCFG.BcryptCost == 0 {
		newCFG.BcryptCost = bcrypt.DefaultCost
	}
	if newCFG.LogRetentionDays == 0 {
		newCFG.LogRetentionDays = DefaultLogRetentionDays
	}
	if newCFG.ExportMaxRecords == 0 {
		newCFG.ExportMaxRecords = service.DefaultExportLimit
	}

	return newCFG
}

// Validate returns an error if cfg cannot be used to start a Server. Unset
// values are invalid; call Validate on the result of FillDefaults to accept
// defaults.
func (cfg Config) Validate() error {
	if len(cfg.TokenSecret) < MinSecretSize {
		return fmt.Errorf("token secret: must be at least %d bytes, but is %d", MinSecretSize, len(cfg.TokenSecret))
	}
	if len(cfg.TokenSecret) > MaxSecretSize {
		return fmt.Errorf("token secret: must be no more than %d bytes, but is %d", MaxSecretSize, len(cfg.TokenSecret))
	}
	if err := cfg.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost: must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.LogRetentionDays < 1 {
		return fmt.Errorf("log retention: must be at least 1 day")
	}
	if cfg.ExportMaxRecords < 1 {
		return fmt.Errorf("export max records: must be at least 1")
	}
	return nil
}
