// Package sqlite provides a LocalStorage persisted to a SQLite database file
// in a data directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dekarrin/campman/internal/storage"
	"github.com/dekarrin/rezi"
	"modernc.org/sqlite"
)

// DBFilename is the name of the file created in the data directory.
const DBFilename = "campman.db"

var ErrConstraintViolation = errors.New("a uniqueness constraint was violated")

// Store is a LocalStorage whose values are kept in the local_storage table.
// Each value is stored as a REZI-encoded record.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the database in storageDir. The directory
// itself must already exist.
func New(storageDir string) (*Store, error) {
	fileName := filepath.Join(storageDir, DBFilename)

	db, err := sql.Open("sqlite", fileName)
	if err != nil {
		return nil, wrapDBError(err)
	}

	st := &Store{db: db, now: time.Now}
	if err := st.init(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS local_storage (
		key TEXT NOT NULL PRIMARY KEY,
		value BLOB NOT NULL,
		modified INTEGER NOT NULL
	);`)
	if err != nil {
		return wrapDBError(err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?;`, key)

	var data []byte
	if err := row.Scan(&data); err != nil {
		return "", wrapDBError(err)
	}

	var rec record
	if _, err := rezi.DecBinary(data, &rec); err != nil {
		return "", fmt.Errorf("%w: %s", storage.ErrDecoding, err)
	}

	return rec.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value string) error {
	now := s.now()
	rec := record{Value: value, Written: now}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_storage (key, value, modified) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, modified=excluded.modified;`,
		key,
		rezi.EncBinary(rec),
		now.Unix(),
	)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?;`, key)
	if err != nil {
		return wrapDBError(err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// record is the unit written to the value column.
type record struct {
	Value   string
	Written time.Time
}

func (r record) MarshalBinary() ([]byte, error) {
	var data []byte
	data = append(data, rezi.EncString(r.Value)...)
	data = append(data, rezi.EncInt(int(r.Written.Unix()))...)
	return data, nil
}

func (r *record) UnmarshalBinary(data []byte) error {
	var n int
	var err error

	r.Value, n, err = rezi.DecString(data)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	data = data[n:]

	secs, _, err := rezi.DecInt(data)
	if err != nil {
		return fmt.Errorf("written: %w", err)
	}
	r.Written = time.Unix(int64(secs), 0)

	return nil
}

func wrapDBError(err error) error {
	sqliteErr := &sqlite.Error{}
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code()&0xff == 19 {
			return ErrConstraintViolation
		}
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	} else if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
