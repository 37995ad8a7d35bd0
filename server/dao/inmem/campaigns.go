package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/dekarrin/campman/internal/util"
	"github.com/dekarrin/campman/server/dao"
)

func NewCampaignsRepository() *InMemoryCampaignsRepository {
	return &InMemoryCampaignsRepository{
		campaigns: make(map[int]dao.Campaign),
	}
}

type InMemoryCampaignsRepository struct {
	mtx       sync.RWMutex
	nextID    int
	campaigns map[int]dao.Campaign
}

func (imcr *InMemoryCampaignsRepository) Create(ctx context.Context, c dao.Campaign) (dao.Campaign, error) {
	imcr.mtx.Lock()
	defer imcr.mtx.Unlock()

	imcr.nextID++
	c.ID = imcr.nextID
	c.Created = time.Now()
	c.Modified = c.Created

	imcr.campaigns[c.ID] = c
	return c, nil
}

func (imcr *InMemoryCampaignsRepository) GetAll(ctx context.Context) ([]dao.Campaign, error) {
	return imcr.filtered(func(dao.Campaign) bool { return true }), nil
}

func (imcr *InMemoryCampaignsRepository) GetAllByOwner(ctx context.Context, ownerID int) ([]dao.Campaign, error) {
	return imcr.filtered(func(c dao.Campaign) bool { return c.OwnerID == ownerID }), nil
}

func (imcr *InMemoryCampaignsRepository) filtered(keep func(dao.Campaign) bool) []dao.Campaign {
	imcr.mtx.RLock()
	defer imcr.mtx.RUnlock()

	var all []dao.Campaign
	for _, c := range imcr.campaigns {
		if keep(c) {
			all = append(all, c)
		}
	}

	return util.SortBy(all, func(l, r dao.Campaign) bool {
		return l.ID < r.ID
	})
}

func (imcr *InMemoryCampaignsRepository) GetByID(ctx context.Context, id int) (dao.Campaign, error) {
	imcr.mtx.RLock()
	defer imcr.mtx.RUnlock()

	c, ok := imcr.campaigns[id]
	if !ok {
		return dao.Campaign{}, dao.ErrNotFound
	}
	return c, nil
}

func (imcr *InMemoryCampaignsRepository) Update(ctx context.Context, id int, c dao.Campaign) (dao.Campaign, error) {
	imcr.mtx.Lock()
	defer imcr.mtx.Unlock()

	existing, ok := imcr.campaigns[id]
	if !ok {
		return dao.Campaign{}, dao.ErrNotFound
	}

	c.ID = id
	c.Created = existing.Created
	c.Modified = time.Now()
	imcr.campaigns[id] = c
	return c, nil
}

func (imcr *InMemoryCampaignsRepository) Delete(ctx context.Context, id int) (dao.Campaign, error) {
	imcr.mtx.Lock()
	defer imcr.mtx.Unlock()

	c, ok := imcr.campaigns[id]
	if !ok {
		return dao.Campaign{}, dao.ErrNotFound
	}
	delete(imcr.campaigns, id)
	return c, nil
}
