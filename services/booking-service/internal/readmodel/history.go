package readmodel

import (
	"context"
	"sync"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/cachex"
)

// History is the last fetched booking list for one user. Each Refresh takes a new generation;
// a result is stored only if no newer Refresh started and the History is still open.
type History struct {
	fetcher *Fetcher
	userID  string

	mu     sync.Mutex
	gen    uint64
	closed bool
	items  []BookingHistoryItem
	loaded bool
}

func NewHistory(f *Fetcher, userID string) *History {
	return &History{fetcher: f, userID: userID}
}

// Refresh fetches and returns this call's result. Failures clear the stored list.
func (h *History) Refresh(ctx context.Context) ([]BookingHistoryItem, error) {
	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.mu.Unlock()

	items, err := h.fetcher.FetchForUser(ctx, h.userID)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || gen != h.gen {
		return items, err
	}
	if err != nil {
		h.items = nil
		h.loaded = false
		return nil, err
	}
	h.items = items
	h.loaded = true
	return items, nil
}

// Items returns the stored list and whether a fetch has succeeded since the last failure.
func (h *History) Items() ([]BookingHistoryItem, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]BookingHistoryItem, len(h.items))
	copy(out, h.items)
	return out, h.loaded
}

// Find looks a booking up in the stored list, refreshing once if it is missing.
func (h *History) Find(ctx context.Context, bookingID string) (BookingHistoryItem, error) {
	if item, ok := h.lookup(bookingID); ok {
		return item, nil
	}
	items, err := h.Refresh(ctx)
	if err != nil {
		return BookingHistoryItem{}, err
	}
	for _, item := range items {
		if item.ID == bookingID {
			return item, nil
		}
	}
	return BookingHistoryItem{}, apperr.NotFound("booking not found")
}

func (h *History) lookup(bookingID string) (BookingHistoryItem, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, item := range h.items {
		if item.ID == bookingID {
			return item, true
		}
	}
	return BookingHistoryItem{}, false
}

// Close drops the stored list and makes in-flight fetches discard their results.
func (h *History) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.gen++
	h.items = nil
	h.loaded = false
}

// Histories keeps one History per user. Idle or least recently used histories are closed and
// dropped once the limits are reached.
type Histories struct {
	users *cachex.Registry[*History]
}

func NewHistories(f *Fetcher, limits cachex.Limits) *Histories {
	create := func(userID string) *History { return NewHistory(f, userID) }
	onEvict := func(_ string, h *History) { h.Close() }
	return &Histories{users: cachex.NewRegistry(limits, create, onEvict)}
}

func (hs *Histories) For(userID string) *History {
	return hs.users.Get(userID)
}

// Refresh refreshes a user's history and forgets the user entirely once their session expires.
func (hs *Histories) Refresh(ctx context.Context, userID string) ([]BookingHistoryItem, error) {
	items, err := hs.For(userID).Refresh(ctx)
	if apperr.KindOf(err) == apperr.KindSessionExpired {
		hs.Evict(userID)
	}
	return items, err
}

func (hs *Histories) Find(ctx context.Context, userID, bookingID string) (BookingHistoryItem, error) {
	item, err := hs.For(userID).Find(ctx, bookingID)
	if apperr.KindOf(err) == apperr.KindSessionExpired {
		hs.Evict(userID)
	}
	return item, err
}

func (hs *Histories) Evict(userID string) {
	hs.users.Evict(userID)
}
