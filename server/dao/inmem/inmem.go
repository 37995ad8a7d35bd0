// Package inmem provides a dao.Store that keeps everything in memory. All data
// is lost when the process exits.
package inmem

import (
	"github.com/dekarrin/campman/server/dao"
)

type store struct {
	users     *InMemoryUsersRepository
	campaigns *InMemoryCampaignsRepository
	images    *InMemoryImagesRepository
	logs      *InMemoryLogsRepository
}

func NewDatastore() dao.Store {
	return &store{
		users:     NewUsersRepository(),
		campaigns: NewCampaignsRepository(),
		images:    NewImagesRepository(),
		logs:      NewLogsRepository(),
	}
}

func (s *store) Users() dao.UserRepository {
	return s.users
}

func (s *store) Campaigns() dao.CampaignRepository {
	return s.campaigns
}

func (s *store) Images() dao.ImageRepository {
	return s.images
}

func (s *store) Logs() dao.LogRepository {
	return s.logs
}

func (s *store) Close() error {
	return nil
}
