// Package sqlite provides a dao.Store persisted to a SQLite database file in a
// data directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dekarrin/campman/server/dao"
	"modernc.org/sqlite"
)

const DBFilename = "devbackend.db"

// sqliteConstraint is the primary result code of a constraint violation.
const sqliteConstraint = 19

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password TEXT NOT NULL,
		is_admin INTEGER NOT NULL,
		created INTEGER NOT NULL,
		last_logout_time INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created INTEGER NOT NULL,
		modified INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS images (
		campaign_id INTEGER NOT NULL,
		slot TEXT NOT NULL,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL,
		data BLOB NOT NULL,
		uploaded INTEGER NOT NULL,
		PRIMARY KEY (campaign_id, slot)
	);`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		created INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		user_email TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'success',
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		ip_address TEXT NOT NULL,
		details TEXT NOT NULL,
		duration_ms REAL
	);`,
	`CREATE INDEX IF NOT EXISTS activity_logs_created ON activity_logs (created);`,
}

type store struct {
	path string
	db   *sql.DB

	users     *UsersDB
	campaigns *CampaignsDB
	images    *ImagesDB
	logs      *LogsDB
}

// NewDatastore opens (creating if needed) the database in storageDir and makes
// sure every table exists.
func NewDatastore(storageDir string) (dao.Store, error) {
	path := filepath.Join(storageDir, DBFilename)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapDBError(err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", path, wrapDBError(err))
		}
	}

	return &store{
		path:      path,
		db:        db,
		users:     &UsersDB{db: db},
		campaigns: &CampaignsDB{db: db},
		images:    &ImagesDB{db: db},
		logs:      &LogsDB{db: db},
	}, nil
}

func (s *store) Users() dao.UserRepository         { return s.users }
func (s *store) Campaigns() dao.CampaignRepository { return s.campaigns }
func (s *store) Images() dao.ImageRepository       { return s.images }
func (s *store) Logs() dao.LogRepository           { return s.logs }

func (s *store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// queryAll runs q and gives every row it returns, decoded with scan.
func queryAll[E any](ctx context.Context, db *sql.DB, scan func(rowScanner) (E, error), q string, args ...any) ([]E, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var all []E
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return all, err
		}
		all = append(all, e)
	}
	if err := rows.Err(); err != nil {
		return all, wrapDBError(err)
	}
	return all, nil
}

// execCount runs q and gives the number of rows it affected.
func execCount(ctx context.Context, db *sql.DB, q string, args ...any) (int, error) {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, wrapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapDBError(err)
	}
	return int(n), nil
}

// execOne runs q, which must affect a row; if none was, it gives
// dao.ErrNotFound.
func execOne(ctx context.Context, db *sql.DB, q string, args ...any) error {
	n, err := execCount(ctx, db, q, args...)
	if err != nil {
		return err
	}
	if n < 1 {
		return dao.ErrNotFound
	}
	return nil
}

// insert runs q and gives the rowid of the row it added.
func insert(ctx context.Context, db *sql.DB, q string, args ...any) (int, error) {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, wrapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapDBError(err)
	}
	return int(id), nil
}

// wrapDBError translates sqlite failures into dao errors where one applies.
func wrapDBError(err error) error {
	var sqliteErr *sqlite.Error
	switch {
	case errors.As(err, &sqliteErr):
		if sqliteErr.Code()&0xff == sqliteConstraint {
			return dao.ErrConstraintViolation
		}
		return fmt.Errorf("%s", sqlite.ErrorCodeString[sqliteErr.Code()])
	case errors.Is(err, sql.ErrNoRows):
		return dao.ErrNotFound
	default:
		return err
	}
}
