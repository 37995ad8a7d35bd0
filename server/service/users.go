package service

import (
	"context"
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/serr"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// user gets the user with the given ID. A missing user is an Error matching
// serr.ErrNotFound with the message "User not found".
func (svc Service) user(ctx context.Context, id int) (dao.User, error) {
	u, err := svc.DB.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.User{}, serr.New("User not found", serr.ErrNotFound)
		}
		return dao.User{}, serr.WrapDB("could not get user", err)
	}
	return u, nil
}

// Login checks email and password and returns the matching user. Unknown
// emails and wrong passwords both give serr.ErrBadCredentials. A user who has
// not set a password yet is returned along with serr.ErrPasswordNotSet,
// whatever password was given.
func (svc Service) Login(ctx context.Context, email string, password string) (dao.User, error) {
	u, err := svc.DB.Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.User{}, serr.ErrBadCredentials
		}
		return dao.User{}, serr.WrapDB("", err)
	}

	if !u.HasPassword() {
		return u, serr.ErrPasswordNotSet
	}

	hash, err := base64.StdEncoding.DecodeString(u.Password)
	if err != nil {
		return dao.User{}, serr.New("stored password hash is corrupt", err)
	}

	err = bcrypt.CompareHashAndPassword(hash, []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return dao.User{}, serr.ErrBadCredentials
	} else if err != nil {
		return dao.User{}, serr.New("could not check password", err)
	}

	return u, nil
}

// Logout ends every session of the user with the given ID. Session tokens are
// keyed on the second of the last logout, so it always moves forward by at
// least one second.
func (svc Service) Logout(ctx context.Context, id int) (dao.User, error) {
	u, err := svc.user(ctx, id)
	if err != nil {
		return dao.User{}, err
	}

	logout := svc.now()
	if logout.Unix() <= u.LastLogoutTime.Unix() {
		logout = u.LastLogoutTime.Add(time.Second)
	}
	u.LastLogoutTime = logout

	updated, err := svc.DB.Users().Update(ctx, u.ID, u)
	if err != nil {
		return dao.User{}, serr.WrapDB("could not update user", err)
	}
	return updated, nil
}

func (svc Service) GetAllUsers(ctx context.Context) ([]dao.User, error) {
	users, err := svc.DB.Users().GetAll(ctx)
	if err != nil {
		return nil, serr.WrapDB("", err)
	}
	return users, nil
}

func (svc Service) GetUser(ctx context.Context, id int) (dao.User, error) {
	return svc.user(ctx, id)
}

// CreateUser adds a user. With an empty password, the user has to go through
// password setup on first login.
//
// Errors match serr.ErrBadArgument for a missing or malformed email and
// serr.ErrAlreadyExists when the email is taken.
func (svc Service) CreateUser(ctx context.Context, email, password string, isAdmin bool) (dao.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return dao.User{}, serr.New("Email required", serr.ErrBadArgument)
	}
	if !emailPattern.MatchString(email) {
		return dao.User{}, serr.New("Invalid email format", serr.ErrBadArgument)
	}

	_, err := svc.DB.Users().GetByEmail(ctx, email)
	if err == nil {
		return dao.User{}, serr.New("User exists", serr.ErrAlreadyExists)
	} else if !errors.Is(err, dao.ErrNotFound) {
		return dao.User{}, serr.WrapDB("", err)
	}

	u := dao.User{Email: email, IsAdmin: isAdmin}
	if password != "" {
		if u.Password, err = svc.hashPassword(password); err != nil {
			return dao.User{}, err
		}
	}

	created, err := svc.DB.Users().Create(ctx, u)
	if err != nil {
		if errors.Is(err, dao.ErrConstraintViolation) {
			return dao.User{}, serr.New("User exists", serr.ErrAlreadyExists)
		}
		return dao.User{}, serr.WrapDB("could not create user", err)
	}
	return created, nil
}

// UpdatePassword replaces the password of the user with the given ID. Since
// session tokens are signed with the password hash, every earlier session
// ends.
func (svc Service) UpdatePassword(ctx context.Context, id int, password string) (dao.User, error) {
	if password == "" {
		return dao.User{}, serr.New("Password required", serr.ErrBadArgument)
	}

	u, err := svc.user(ctx, id)
	if err != nil {
		return dao.User{}, err
	}
	if u.Password, err = svc.hashPassword(password); err != nil {
		return dao.User{}, err
	}

	updated, err := svc.DB.Users().Update(ctx, id, u)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.User{}, serr.New("User not found", serr.ErrNotFound)
		}
		return dao.User{}, serr.WrapDB("could not update user", err)
	}
	return updated, nil
}

// hashPassword gives the stored form of a password, a base64 bcrypt hash.
func (svc Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), svc.bcryptCost())
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", serr.New("Password is too long", err, serr.ErrBadArgument)
		}
		return "", serr.New("password could not be encrypted", err)
	}
	return base64.StdEncoding.EncodeToString(hash), nil
}

// DeleteUser deletes the user with the given ID on behalf of actor, who may
// not delete themself.
func (svc Service) DeleteUser(ctx context.Context, actor dao.User, id int) (dao.User, error) {
	if actor.ID == id {
		return dao.User{}, serr.New("Cannot delete yourself", serr.ErrBadArgument)
	}

	u, err := svc.DB.Users().Delete(ctx, id)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return dao.User{}, serr.New("User not found", serr.ErrNotFound)
		}
		return dao.User{}, serr.WrapDB("could not delete user", err)
	}
	return u, nil
}
