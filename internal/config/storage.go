package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dekarrin/campman/internal/storage"
	"github.com/dekarrin/campman/internal/storage/inmem"
	"github.com/dekarrin/campman/internal/storage/sqlite"
)

// StorageType is the kind of local storage the console keeps its session in.
type StorageType string

func (st StorageType) String() string {
	return string(st)
}

const (
	StorageNone     StorageType = "none"
	StorageSQLite   StorageType = "sqlite"
	StorageInMemory StorageType = "inmem"
)

// ParseStorageType parses a string found in a connection string into a
// StorageType.
func ParseStorageType(s string) (StorageType, error) {
	sLower := strings.ToLower(s)

	switch sLower {
	case StorageSQLite.String():
		return StorageSQLite, nil
	case StorageInMemory.String():
		return StorageInMemory, nil
	default:
		return StorageNone, fmt.Errorf("storage type not one of 'sqlite' or 'inmem': %q", s)
	}
}

// Storage contains configuration settings for opening local storage.
type Storage struct {
	// Type is the type of storage the config refers to. It also determines
	// which of its other fields are valid.
	Type StorageType

	// DataDir is the path on disk to a directory to keep data in. This is only
	// applicable for StorageSQLite.
	DataDir string
}

// String gives the connection string form of st.
func (st Storage) String() string {
	if st.Type == StorageSQLite {
		return st.Type.String() + ":" + st.DataDir
	}
	return st.Type.String()
}

// Connect opens the configured storage.
func (st Storage) Connect() (storage.LocalStorage, error) {
	switch st.Type {
	case StorageInMemory:
		return inmem.New(), nil
	case StorageSQLite:
		err := os.MkdirAll(st.DataDir, 0770)
		if err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}

		store, err := sqlite.New(st.DataDir)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite: %w", err)
		}

		return store, nil
	case StorageNone:
		return nil, fmt.Errorf("cannot connect to 'none' storage")
	default:
		return nil, fmt.Errorf("unknown storage type: %q", st.Type.String())
	}
}

// Validate returns an error if the Storage does not have the fields its type
// needs.
func (st Storage) Validate() error {
	switch st.Type {
	case StorageInMemory:
		return nil
	case StorageSQLite:
		if st.DataDir == "" {
			return fmt.Errorf("DataDir not set to path")
		}
		return nil
	case StorageNone:
		return fmt.Errorf("'none' storage is not valid")
	default:
		return fmt.Errorf("unknown storage type: %q", st.Type.String())
	}
}

// ParseStorageConnString parses a connection string of the form
// "engine:params" (or just "engine" if no other params are required) into a
// Storage. "sqlite:/data" gives StorageSQLite kept in files in /data, and
// "inmem" gives StorageInMemory.
func ParseStorageConnString(s string) (Storage, error) {
	var paramStr string
	parts := strings.SplitN(s, ":", 2)

	if len(parts) == 2 {
		paramStr = strings.TrimSpace(parts[1])
	}

	eng, err := ParseStorageType(strings.TrimSpace(parts[0]))
	if err != nil {
		return Storage{}, fmt.Errorf("unsupported storage engine: %w", err)
	}

	switch eng {
	case StorageInMemory:
		if paramStr != "" {
			return Storage{}, fmt.Errorf("unsupported param(s) for in-memory storage engine: %s", paramStr)
		}
		return Storage{Type: StorageInMemory}, nil
	case StorageSQLite:
		if paramStr == "" {
			return Storage{}, fmt.Errorf("sqlite storage engine requires path to data directory after ':'")
		}
		return Storage{Type: StorageSQLite, DataDir: paramStr}, nil
	default:
		return Storage{}, fmt.Errorf("unknown storage engine: %q", eng.String())
	}
}
