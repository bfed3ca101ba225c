// Package catalog caches the bookable services and add-ons and refetches them on any change.
package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

type Snapshot struct {
	Services  []model.Service      `json:"services"`
	Addons    []model.ServiceAddon `json:"addons"`
	FetchedAt time.Time            `json:"fetched_at"`
}

type Source interface {
	Services(ctx context.Context) ([]model.Service, error)
	ServiceAddons(ctx context.Context) ([]model.ServiceAddon, error)
}

// SnapshotStore shares the last snapshot between instances.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, s Snapshot) error
	Delete(ctx context.Context) error
}

type Cache struct {
	source Source
	shared SnapshotStore
	logger *slog.Logger

	mu      sync.Mutex
	current *Snapshot
}

// NewCache accepts a nil shared store.
func NewCache(source Source, shared SnapshotStore, logger *slog.Logger) *Cache {
	return &Cache{source: source, shared: shared, logger: logger}
}

func (c *Cache) Get(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return *c.current, nil
	}
	if c.shared != nil {
		s, ok, err := c.shared.Load(ctx)
		if err != nil {
			c.logger.Warn("catalog snapshot load failed", "err", err)
		} else if ok {
			c.current = &s
			return s, nil
		}
	}
	return c.refresh(ctx)
}

// Invalidate throws away every cached copy and refetches the whole catalog.
func (c *Cache) Invalidate(ctx context.Context, channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	if c.shared != nil {
		if err := c.shared.Delete(ctx); err != nil {
			c.logger.Warn("catalog snapshot delete failed", "err", err)
		}
	}
	if _, err := c.refresh(ctx); err != nil {
		c.logger.Error("catalog refetch failed", "channel", channel, "err", err)
		return
	}
	c.logger.Info("catalog refetched", "channel", channel)
}

func (c *Cache) refresh(ctx context.Context) (Snapshot, error) {
	services, err := c.source.Services(ctx)
	if err != nil {
		return Snapshot{}, apperr.FetchFailed(err)
	}
	addons, err := c.source.ServiceAddons(ctx)
	if err != nil {
		return Snapshot{}, apperr.FetchFailed(err)
	}
	s := Snapshot{Services: services, Addons: addons, FetchedAt: time.Now().UTC()}
	c.current = &s
	if c.shared != nil {
		if err := c.shared.Save(ctx, s); err != nil {
			c.logger.Warn("catalog snapshot save failed", "err", err)
		}
	}
	return s, nil
}
