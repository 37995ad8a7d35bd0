package inmem

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dekarrin/campman/internal/util"
	"github.com/dekarrin/campman/server/dao"
)

func NewUsersRepository() *InMemoryUsersRepository {
	return &InMemoryUsersRepository{
		users:        make(map[int]dao.User),
		byEmailIndex: make(map[string]int),
	}
}

type InMemoryUsersRepository struct {
	mtx          sync.RWMutex
	nextID       int
	users        map[int]dao.User
	byEmailIndex map[string]int
}

func emailKey(email string) string {
	return strings.ToLower(email)
}

func (imur *InMemoryUsersRepository) Create(ctx context.Context, user dao.User) (dao.User, error) {
	imur.mtx.Lock()
	defer imur.mtx.Unlock()

	// make sure it's not already in the DB
	if _, ok := imur.byEmailIndex[emailKey(user.Email)]; ok {
		return dao.User{}, dao.ErrConstraintViolation
	}

	imur.nextID++
	user.ID = imur.nextID
	user.Created = time.Now()
	user.LastLogoutTime = user.Created

	imur.users[user.ID] = user
	imur.byEmailIndex[emailKey(user.Email)] = user.ID

	return user, nil
}

func (imur *InMemoryUsersRepository) GetAll(ctx context.Context) ([]dao.User, error) {
	imur.mtx.RLock()
	defer imur.mtx.RUnlock()

	all := make([]dao.User, 0, len(imur.users))
	for k := range imur.users {
		all = append(all, imur.users[k])
	}

	return util.SortBy(all, func(l, r dao.User) bool {
		return l.ID < r.ID
	}), nil
}

func (imur *InMemoryUsersRepository) Update(ctx context.Context, id int, user dao.User) (dao.User, error) {
	imur.mtx.Lock()
	defer imur.mtx.Unlock()

	existing, ok := imur.users[id]
	if !ok {
		return dao.User{}, dao.ErrNotFound
	}

	// IDs are never reassigned; only the email can collide
	if emailKey(user.Email) != emailKey(existing.Email) {
		if _, ok := imur.byEmailIndex[emailKey(user.Email)]; ok {
			return dao.User{}, dao.ErrConstraintViolation
		}
		delete(imur.byEmailIndex, emailKey(existing.Email))
	}

	user.ID = id
	user.Created = existing.Created
	imur.users[id] = user
	imur.byEmailIndex[emailKey(user.Email)] = id

	return user, nil
}

func (imur *InMemoryUsersRepository) GetByID(ctx context.Context, id int) (dao.User, error) {
	imur.mtx.RLock()
	defer imur.mtx.RUnlock()

	user, ok := imur.users[id]
	if !ok {
		return dao.User{}, dao.ErrNotFound
	}

	return user, nil
}

func (imur *InMemoryUsersRepository) GetByEmail(ctx context.Context, email string) (dao.User, error) {
	imur.mtx.RLock()
	defer imur.mtx.RUnlock()

	userID, ok := imur.byEmailIndex[emailKey(email)]
	if !ok {
		return dao.User{}, dao.ErrNotFound
	}

	return imur.users[userID], nil
}

func (imur *InMemoryUsersRepository) Delete(ctx context.Context, id int) (dao.User, error) {
	imur.mtx.Lock()
	defer imur.mtx.Unlock()

	user, ok := imur.users[id]
	if !ok {
		return dao.User{}, dao.ErrNotFound
	}

	delete(imur.byEmailIndex, emailKey(user.Email))
	delete(imur.users, user.ID)

	return user, nil
}
