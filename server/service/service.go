// Package service has the campman development backend's business rules,
// decoupled from the API that accesses it.
package service

import (
	"time"

	"github.com/dekarrin/campman/server/dao"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultLogRetention is how long activity log entries are kept.
	DefaultLogRetention = 90 * 24 * time.Hour

	// DefaultExportLimit is the most entries a single export will contain.
	DefaultExportLimit = 10000
)

// Service is a service for interacting with and modifying the development
// backend. It performs the actions requested and makes calls to persistence to
// preserve the backend state.
//
// The zero-value of Service is not ready to be used; assign a valid DAO store
// to DB before attempting to use it.
type Service struct {

	// DB is the persistence store of the service.
	DB dao.Store

	// Now gives the current time. Campaign statuses are computed from it.
	// Defaults to time.Now.
	Now func() time.Time

	// BcryptCost is the cost of password hashes. Defaults to
	// bcrypt.DefaultCost.
	BcryptCost int

	// LogRetention is how old a log entry may get before PruneLogs removes
	// it. Defaults to DefaultLogRetention.
	LogRetention time.Duration

	// ExportLimit caps the entries in an export. Defaults to
	// DefaultExportLimit.
	ExportLimit int
}

func (svc Service) now() time.Time {
	if svc.Now == nil {
		return time.Now()
	}
	return svc.Now()
}

func (svc Service) bcryptCost() int {
	if svc.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}
	return svc.BcryptCost
}

func (svc Service) logRetention() time.Duration {
	if svc.LogRetention <= 0 {
		return DefaultLogRetention
	}
	return svc.LogRetention
}

func (svc Service) exportLimit() int {
	if svc.ExportLimit <= 0 {
		return DefaultExportLimit
	}
	return svc.ExportLimit
}
