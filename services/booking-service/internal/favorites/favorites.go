// Package favorites tracks the detailers a user has marked as favorite.
package favorites

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

// ErrDuplicate is returned by a Store when the (user, detailer) pair already exists.
var ErrDuplicate = errors.New("favorite already exists")

type Store interface {
	ListFavorites(ctx context.Context, userID string) ([]model.FavoriteDetailer, error)
	InsertFavorite(ctx context.Context, userID, detailerID string) error
	DeleteFavorite(ctx context.Context, userID, detailerID string) error
}

// Manager holds one user's favorite set. Operations run one at a time.
type Manager struct {
	store  Store
	userID string
	logger *slog.Logger

	mu      sync.Mutex
	loaded  bool
	ids     map[string]struct{}
	details []model.FavoriteDetailer
}

func NewManager(store Store, userID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, userID: userID, logger: logger, ids: make(map[string]struct{})}
}

func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

func (m *Manager) load(ctx context.Context) error {
	list, err := m.store.ListFavorites(ctx, m.userID)
	if err != nil {
		return apperr.Fetch(err)
	}
	ids := make(map[string]struct{}, len(list))
	for _, f := range list {
		ids[f.DetailerID] = struct{}{}
	}
	m.ids = ids
	m.details = list
	m.loaded = true
	return nil
}

func (m *Manager) ensureLoaded(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	return m.load(ctx)
}

// Add favorites a detailer. An existing favorite is not an error. The id is visible immediately;
// if the insert fails the set is restored before the error is returned.
func (m *Manager) Add(ctx context.Context, detailerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}
	return m.add(ctx, detailerID)
}

func (m *Manager) add(ctx context.Context, detailerID string) error {
	_, had := m.ids[detailerID]
	m.ids[detailerID] = struct{}{}

	if err := m.store.InsertFavorite(ctx, m.userID, detailerID); err != nil && !errors.Is(err, ErrDuplicate) {
		if !had {
			delete(m.ids, detailerID)
		}
		return apperr.Mutation(err)
	}

	list, err := m.store.ListFavorites(ctx, m.userID)
	if err != nil {
		// The insert is confirmed; details catch up on the next load.
		m.logger.Warn("favorite details refetch failed", "user_id", m.userID, "detailer_id", detailerID, "err", err)
		return nil
	}
	m.details = list
	for _, f := range list {
		m.ids[f.DetailerID] = struct{}{}
	}
	return nil
}

// Remove unfavorites a detailer and drops its cached details without refetching.
func (m *Manager) Remove(ctx context.Context, detailerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(ctx); err != nil {
		return err
	}
	return m.remove(ctx, detailerID)
}

func (m *Manager) remove(ctx context.Context, detailerID string) error {
	if err := m.store.DeleteFavorite(ctx, m.userID, detailerID); err != nil {
		return apperr.Mutation(err)
	}
	delete(m.ids, detailerID)
	kept := m.details[:0:0]
	for _, f := range m.details {
		if f.DetailerID != detailerID {
			kept = append(kept, f)
		}
	}
	m.details = kept
	return nil
}

// Toggle flips the favorite state and returns the new state. The set is reloaded first so the
// decision follows the backend even when another replica changed it.
func (m *Manager) Toggle(ctx context.Context, detailerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.load(ctx); err != nil {
		return false, err
	}
	if _, ok := m.ids[detailerID]; ok {
		if err := m.remove(ctx, detailerID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := m.add(ctx, detailerID); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) IsFavorite(detailerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[detailerID]
	return ok
}

func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	return out
}

func (m *Manager) Details() []model.FavoriteDetailer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.FavoriteDetailer, len(m.details))
	copy(out, m.details)
	return out
}
