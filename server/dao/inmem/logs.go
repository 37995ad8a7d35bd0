package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/dekarrin/campman/internal/util"
	"github.com/dekarrin/campman/server/dao"
)

func NewLogsRepository() *InMemoryLogsRepository {
	return &InMemoryLogsRepository{}
}

type InMemoryLogsRepository struct {
	mtx     sync.RWMutex
	nextID  int
	entries []dao.LogEntry
}

func (imlr *InMemoryLogsRepository) Create(ctx context.Context, entry dao.LogEntry) (dao.LogEntry, error) {
	imlr.mtx.Lock()
	defer imlr.mtx.Unlock()

	imlr.nextID++
	entry.ID = imlr.nextID
	if entry.Created.IsZero() {
		entry.Created = time.Now()
	}
	imlr.entries = append(imlr.entries, entry)
	return entry, nil
}

func (imlr *InMemoryLogsRepository) GetAll(ctx context.Context) ([]dao.LogEntry, error) {
	imlr.mtx.RLock()
	defer imlr.mtx.RUnlock()

	return util.SortBy(imlr.entries, func(l, r dao.LogEntry) bool {
		if l.Created.Equal(r.Created) {
			return l.ID > r.ID
		}
		return l.Created.After(r.Created)
	}), nil
}

func (imlr *InMemoryLogsRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	imlr.mtx.Lock()
	defer imlr.mtx.Unlock()

	kept := imlr.entries[:0]
	for _, e := range imlr.entries {
		if !e.Created.Before(t) {
			kept = append(kept, e)
		}
	}
	removed := len(imlr.entries) - len(kept)
	imlr.entries = kept
	return removed, nil
}
