package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dekarrin/campman/internal/logging"
)

// Manager keeps the campaigns loaded for the current session and runs
// submissions through validation before they reach the backend.
type Manager struct {
	repo   *Repository
	policy ConflictPolicy
	log    *slog.Logger

	mtx       sync.Mutex
	campaigns []Campaign
	loaded    bool
}

func NewManager(repo *Repository, policy ConflictPolicy, lg *slog.Logger) *Manager {
	return &Manager{
		repo:   repo,
		policy: policy,
		log:    logging.OrDiscard(lg),
	}
}

func (m *Manager) Policy() ConflictPolicy {
	return m.policy
}

// Reload replaces the cached campaigns with the backend's current list. On
// failure the cache is left as it was.
func (m *Manager) Reload(ctx context.Context) ([]Campaign, error) {
	list, err := m.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.campaigns = list
	m.loaded = true
	return m.copyLocked(), nil
}

// Campaigns returns the cached campaigns.
func (m *Manager) Campaigns() []Campaign {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.copyLocked()
}

// Loaded returns whether Reload has succeeded at least once.
func (m *Manager) Loaded() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.loaded
}

// Get returns the cached campaign with the given ID.
func (m *Manager) Get(id int) (Campaign, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, c := range m.campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return Campaign{}, false
}

// Submit validates f against the cached campaigns and, if it passes, creates
// or updates the campaign. A new campaign with pending images is created in a
// single multipart request; an edit uploads its pending images after the
// metadata update. Validation failures never reach the backend.
func (m *Manager) Submit(ctx context.Context, f Form) (Campaign, error) {
	payload, err := ValidateForm(f, m.Campaigns(), m.policy)
	if err != nil {
		return Campaign{}, err
	}

	files := f.PendingImages()

	var saved Campaign
	if !f.IsEdit() {
		saved, err = m.repo.CreateWithImages(ctx, payload, files)
		if err != nil {
			return Campaign{}, err
		}
		m.log.Info("created campaign", "id", saved.ID, "name", saved.Name)
	} else {
		saved, err = m.repo.Update(ctx, f.ID, payload)
		if err != nil {
			return Campaign{}, err
		}
		m.log.Info("updated campaign", "id", saved.ID, "name", saved.Name)

		if len(files) > 0 {
			if _, err := m.repo.UploadFromFiles(ctx, saved.ID, files); err != nil {
				m.store(saved)
				return saved, fmt.Errorf("campaign saved but images were not: %w", err)
			}
		}
	}

	m.store(saved)
	return saved, nil
}

// Delete deletes the campaign and drops it from the cache.
func (m *Manager) Delete(ctx context.Context, id int) error {
	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()
	for i, c := range m.campaigns {
		if c.ID == id {
			m.campaigns = append(m.campaigns[:i], m.campaigns[i+1:]...)
			break
		}
	}
	m.log.Info("deleted campaign", "id", id)
	return nil
}

// Upload sends files to the slots of an existing campaign.
func (m *Manager) Upload(ctx context.Context, id int, files Files) (UploadResult, error) {
	return m.repo.UploadFromFiles(ctx, id, files)
}

// Images fetches the stored images of one campaign.
func (m *Manager) Images(ctx context.Context, id int) (ImageSet, error) {
	return m.repo.GetImages(ctx, id)
}

// LoadImages fetches the images of every cached campaign and records them.
func (m *Manager) LoadImages(ctx context.Context) map[int]ImageSet {
	sets := m.repo.LoadAllImages(ctx, m.Campaigns())

	m.mtx.Lock()
	defer m.mtx.Unlock()
	for i := range m.campaigns {
		if is, ok := sets[m.campaigns[i].ID]; ok {
			m.campaigns[i].Images = is
		}
	}
	return sets
}

func (m *Manager) store(c Campaign) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	for i := range m.campaigns {
		if m.campaigns[i].ID == c.ID {
			m.campaigns[i] = c
			return
		}
	}
	m.campaigns = append(m.campaigns, c)
	sort.SliceStable(m.campaigns, func(i, j int) bool {
		return m.campaigns[i].ID < m.campaigns[j].ID
	})
}

func (m *Manager) copyLocked() []Campaign {
	cp := make([]Campaign, len(m.campaigns))
	copy(cp, m.campaigns)
	return cp
}
