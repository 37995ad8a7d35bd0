package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/dekarrin/campman/server/dao"
)

type UsersDB struct {
	db *sql.DB
}

const userColumns = `id, email, password, is_admin, created, last_logout_time`

func scanUser(row rowScanner) (dao.User, error) {
	var u dao.User
	var created, logout int64

	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.IsAdmin, &created, &logout); err != nil {
		return dao.User{}, wrapDBError(err)
	}

	convertFromDB_Time(created, &u.Created)
	convertFromDB_Time(logout, &u.LastLogoutTime)
	return u, nil
}

// Create adds user. Created and LastLogoutTime are both set to now.
func (repo *UsersDB) Create(ctx context.Context, user dao.User) (dao.User, error) {
	now := convertToDB_Time(time.Now())
	id, err := insert(ctx, repo.db, `INSERT INTO users (email, password, is_admin, created, last_logout_time) VALUES (?, ?, ?, ?, ?)`,
		user.Email, user.Password, convertToDB_Bool(user.IsAdmin), now, now,
	)
	if err != nil {
		return dao.User{}, err
	}
	return repo.GetByID(ctx, id)
}

func (repo *UsersDB) GetAll(ctx context.Context) ([]dao.User, error) {
	return queryAll(ctx, repo.db, scanUser, `SELECT `+userColumns+` FROM users ORDER BY id;`)
}

// Update replaces every field of the user with the given ID except Created.
func (repo *UsersDB) Update(ctx context.Context, id int, user dao.User) (dao.User, error) {
	err := execOne(ctx, repo.db, `UPDATE users SET email=?, password=?, is_admin=?, last_logout_time=? WHERE id=?;`,
		user.Email, user.Password, convertToDB_Bool(user.IsAdmin), convertToDB_Time(user.LastLogoutTime), id,
	)
	if err != nil {
		return dao.User{}, err
	}
	return repo.GetByID(ctx, id)
}

// GetByEmail matches email without regard to case.
func (repo *UsersDB) GetByEmail(ctx context.Context, email string) (dao.User, error) {
	return scanUser(repo.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?;`, email))
}

func (repo *UsersDB) GetByID(ctx context.Context, id int) (dao.User, error) {
	return scanUser(repo.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?;`, id))
}

func (repo *UsersDB) Delete(ctx context.Context, id int) (dao.User, error) {
	u, err := repo.GetByID(ctx, id)
	if err != nil {
		return dao.User{}, err
	}
	if err := execOne(ctx, repo.db, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return dao.User{}, err
	}
	return u, nil
}
