// Package dao provides data access objects for use in the campman development
// backend.
package dao

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConstraintViolation = errors.New("a uniqueness constraint was violated")
	ErrNotFound            = errors.New("the requested resource was not found")
)

// Store holds all the repositories.
type Store interface {
	Users() UserRepository
	Campaigns() CampaignRepository
	Images() ImageRepository
	Logs() LogRepository
	Close() error
}

type UserRepository interface {

	// Create creates a new User. All attributes except for auto-generated
	// fields are taken from the provided User.
	Create(ctx context.Context, user User) (User, error)
	GetAll(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, id int, user User) (User, error)
	Delete(ctx context.Context, id int) (User, error)
}

type CampaignRepository interface {
	Create(ctx context.Context, c Campaign) (Campaign, error)

	// GetAll returns every campaign ordered by ID.
	GetAll(ctx context.Context) ([]Campaign, error)
	GetAllByOwner(ctx context.Context, ownerID int) ([]Campaign, error)
	GetByID(ctx context.Context, id int) (Campaign, error)
	Update(ctx context.Context, id int, c Campaign) (Campaign, error)
	Delete(ctx context.Context, id int) (Campaign, error)
}

type ImageRepository interface {

	// Put stores img, replacing any image already in the same slot of the same
	// campaign.
	Put(ctx context.Context, img Image) (Image, error)
	Get(ctx context.Context, campaignID int, slot string) (Image, error)
	GetAllByCampaign(ctx context.Context, campaignID int) ([]Image, error)
	DeleteAllByCampaign(ctx context.Context, campaignID int) error
}

type LogRepository interface {
	Create(ctx context.Context, entry LogEntry) (LogEntry, error)

	// GetAll returns every entry, newest first.
	GetAll(ctx context.Context) ([]LogEntry, error)

	// DeleteBefore removes entries created before t and returns how many were
	// removed.
	DeleteBefore(ctx context.Context, t time.Time) (int, error)
}

// User is an account. Password is the base64 encoding of a bcrypt hash, and is
// empty for users who have not yet set one.
type User struct {
	ID             int
	Email          string
	Password       string
	IsAdmin        bool
	Created        time.Time
	LastLogoutTime time.Time
}

// HasPassword returns whether the user has completed password setup.
func (u User) HasPassword() bool {
	return u.Password != ""
}

// Campaign is a promotional period owned by the user that created it. Dates
// are calendar days at midnight UTC.
type Campaign struct {
	ID        int
	OwnerID   int
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Created   time.Time
	Modified  time.Time
}

// Image is an uploaded file in one slot of a campaign.
type Image struct {
	CampaignID  int
	Slot        string
	Filename    string
	ContentType string
	Data        []byte
	Uploaded    time.Time
}

// LogEntry is one record of the activity log. UserID is 0 for actions with no
// logged-in user.
type LogEntry struct {
	ID           int
	Created      time.Time
	UserID       int
	UserEmail    string
	Action       string
	Status       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Details      string
	DurationMS   *float64
}
