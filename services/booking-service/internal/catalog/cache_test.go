package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

type countingSource struct {
	services []model.Service
	err      error
	calls    int
}

func (s *countingSource) Services(ctx context.Context) ([]model.Service, error) {
	s.calls++
	return s.services, s.err
}

func (s *countingSource) ServiceAddons(ctx context.Context) ([]model.ServiceAddon, error) {
	return []model.ServiceAddon{{ID: "wax", Name: "Wax", Price: 15, IsActive: true}}, nil
}

type memSnapshots struct {
	snap    *Snapshot
	deletes int
}

func (m *memSnapshots) Load(ctx context.Context) (Snapshot, bool, error) {
	if m.snap == nil {
		return Snapshot{}, false, nil
	}
	return *m.snap, true, nil
}

func (m *memSnapshots) Save(ctx context.Context, s Snapshot) error {
	m.snap = &s
	return nil
}

func (m *memSnapshots) Delete(ctx context.Context) error {
	m.deletes++
	m.snap = nil
	return nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestGetFetchesOnceThenServesFromMemory(t *testing.T) {
	src := &countingSource{services: []model.Service{{ID: "full", Name: "Full Detail", Price: 89.99}}}
	shared := &memSnapshots{}
	c := NewCache(src, shared, quiet)

	for i := 0; i < 3; i++ {
		s, err := c.Get(context.Background())
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(s.Services) != 1 || len(s.Addons) != 1 {
			t.Fatalf("unexpected snapshot: %+v", s)
		}
	}
	if src.calls != 1 {
		t.Fatalf("expected one fetch, got %d", src.calls)
	}
	if shared.snap == nil {
		t.Fatal("expected shared snapshot to be written")
	}
}

func TestGetUsesSharedSnapshot(t *testing.T) {
	src := &countingSource{}
	shared := &memSnapshots{snap: &Snapshot{Services: []model.Service{{ID: "warm"}}}}
	s, err := NewCache(src, shared, quiet).Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if src.calls != 0 || s.Services[0].ID != "warm" {
		t.Fatalf("expected warm snapshot without fetch, calls=%d", src.calls)
	}
}

func TestInvalidateAlwaysRefetches(t *testing.T) {
	src := &countingSource{services: []model.Service{{ID: "v1"}}}
	shared := &memSnapshots{}
	c := NewCache(src, shared, quiet)
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("get: %v", err)
	}

	src.services = []model.Service{{ID: "v2"}}
	c.Invalidate(context.Background(), "services_changes")
	c.Invalidate(context.Background(), "service_addons_changes")

	if src.calls != 3 || shared.deletes != 2 {
		t.Fatalf("expected full refetch per notification, calls=%d deletes=%d", src.calls, shared.deletes)
	}
	s, _ := c.Get(context.Background())
	if s.Services[0].ID != "v2" {
		t.Fatalf("expected refreshed catalog, got %+v", s.Services)
	}
}

func TestGetFailureIsFetchFailed(t *testing.T) {
	src := &countingSource{err: errors.New("relation \"services\" does not exist")}
	_, err := NewCache(src, nil, quiet).Get(context.Background())
	if !errors.Is(err, apperr.ErrFetchFailed) {
		t.Fatalf("expected fetch failed, got %v", err)
	}
}
