package favorites

import (
	"log/slog"

	"github.com/peeyushmeher/cleanswift/libs/cachex"
)

// Managers hands out one Manager per user so concurrent requests share a favorite set.
// Idle users are dropped and reload from the store on their next request.
type Managers struct {
	users *cachex.Registry[*Manager]
}

func NewManagers(store Store, logger *slog.Logger, limits cachex.Limits) *Managers {
	create := func(userID string) *Manager { return NewManager(store, userID, logger) }
	return &Managers{users: cachex.NewRegistry(limits, create, nil)}
}

func (ms *Managers) For(userID string) *Manager {
	return ms.users.Get(userID)
}

func (ms *Managers) Evict(userID string) {
	ms.users.Evict(userID)
}
