package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/dekarrin/campman/internal/util"
	"github.com/dekarrin/campman/server/dao"
)

type imageKey struct {
	campaignID int
	slot       string
}

func NewImagesRepository() *InMemoryImagesRepository {
	return &InMemoryImagesRepository{
		images: make(map[imageKey]dao.Image),
	}
}

type InMemoryImagesRepository struct {
	mtx    sync.RWMutex
	images map[imageKey]dao.Image
}

func (imir *InMemoryImagesRepository) Put(ctx context.Context, img dao.Image) (dao.Image, error) {
	imir.mtx.Lock()
	defer imir.mtx.Unlock()

	img.Uploaded = time.Now()
	img.Data = append([]byte(nil), img.Data...)
	imir.images[imageKey{img.CampaignID, img.Slot}] = img
	return img, nil
}

func (imir *InMemoryImagesRepository) Get(ctx context.Context, campaignID int, slot string) (dao.Image, error) {
	imir.mtx.RLock()
	defer imir.mtx.RUnlock()

	img, ok := imir.images[imageKey{campaignID, slot}]
	if !ok {
		return dao.Image{}, dao.ErrNotFound
	}
	return img, nil
}

func (imir *InMemoryImagesRepository) GetAllByCampaign(ctx context.Context, campaignID int) ([]dao.Image, error) {
	imir.mtx.RLock()
	defer imir.mtx.RUnlock()

	var all []dao.Image
	for k, img := range imir.images {
		if k.campaignID == campaignID {
			all = append(all, img)
		}
	}
	return util.SortBy(all, func(l, r dao.Image) bool {
		return l.Slot < r.Slot
	}), nil
}

func (imir *InMemoryImagesRepository) DeleteAllByCampaign(ctx context.Context, campaignID int) error {
	imir.mtx.Lock()
	defer imir.mtx.Unlock()

	for k := range imir.images {
		if k.campaignID == campaignID {
			delete(imir.images, k)
		}
	}
	return nil
}
