package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/dekarrin/campman/server/dao"
)

type LogsDB struct {
	db *sql.DB
}

const logColumns = `id, created, user_id, user_email, action, status, resource_type, resource_id, ip_address, details, duration_ms`

func scanLogEntry(row rowScanner) (dao.LogEntry, error) {
	var e dao.LogEntry
	var created int64
	var dur sql.NullFloat64

	err := row.Scan(&e.ID, &created, &e.UserID, &e.UserEmail, &e.Action, &e.Status, &e.ResourceType, &e.ResourceID, &e.IPAddress, &e.Details, &dur)
	if err != nil {
		return dao.LogEntry{}, wrapDBError(err)
	}
	convertFromDB_Time(created, &e.Created)
	convertFromDB_NullFloat(dur, &e.DurationMS)
	return e, nil
}

// Create appends entry. A zero Created is set to now.
func (repo *LogsDB) Create(ctx context.Context, entry dao.LogEntry) (dao.LogEntry, error) {
	if entry.Created.IsZero() {
		entry.Created = time.Now()
	}

	id, err := insert(ctx, repo.db, `INSERT INTO activity_logs (`+logColumns[len("id, "):]+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		convertToDB_Time(entry.Created),
		entry.UserID,
		entry.UserEmail,
		entry.Action,
		entry.Status,
		entry.ResourceType,
		entry.ResourceID,
		entry.IPAddress,
		entry.Details,
		convertToDB_NullFloat(entry.DurationMS),
	)
	if err != nil {
		return dao.LogEntry{}, err
	}
	entry.ID = id
	return entry, nil
}

// GetAll gives every entry, newest first.
func (repo *LogsDB) GetAll(ctx context.Context) ([]dao.LogEntry, error) {
	return queryAll(ctx, repo.db, scanLogEntry, `SELECT `+logColumns+` FROM activity_logs ORDER BY created DESC, id DESC;`)
}

func (repo *LogsDB) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	return execCount(ctx, repo.db, `DELETE FROM activity_logs WHERE created < ?`, convertToDB_Time(t))
}
