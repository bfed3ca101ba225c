package readmodel

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/cachex"
)

func strp(s string) *string { return &s }

func sampleRow(id string, created time.Time) RawBookingRow {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	return RawBookingRow{
		ID:                 id,
		ReceiptCode:        "CS-" + id,
		UserID:             "user-1",
		ServiceID:          strp("svc-1"),
		DetailerID:         strp("det-1"),
		Status:             "completed",
		ScheduledDate:      &day,
		ScheduledTimeStart: strp("10:00:00"),
		ScheduledTimeEnd:   strp("11:30:00"),
		ServicePrice:       89.99,
		AddonsTotal:        20,
		TaxAmount:          14.3,
		TotalAmount:        124.29,
		AddressLine1:       "12 King St",
		City:               "Toronto",
		Province:           "ON",
		PostalCode:         "M5H 1A1",
		CreatedAt:          created,
		Service:            []byte(`{"id":"svc-1","name":"Full Detail","price":"89.99","duration_minutes":"90"}`),
		Detailer:           []byte(`{"id":"det-1","full_name":"Sam Lee","rating":"4.8","review_count":12,"years_experience":"5","is_active":true,"specialties":["ceramic"]}`),
		Car:                []byte(`null`),
	}
}

func TestNormalizeCoercesEmbeds(t *testing.T) {
	item, err := Normalize(sampleRow("b1", time.Now()))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if item.Service == nil || item.Service.Price != 89.99 || item.Service.DurationMinutes != 90 {
		t.Fatalf("unexpected service: %+v", item.Service)
	}
	if item.Detailer == nil || item.Detailer.Rating != 4.8 || item.Detailer.YearsExperience != 5 || item.Detailer.ReviewCount != 12 {
		t.Fatalf("unexpected detailer: %+v", item.Detailer)
	}
	if item.Car != nil {
		t.Fatalf("expected nil car, got %+v", item.Car)
	}
	if item.ScheduledTimeEnd == nil || item.ScheduledTimeEnd.Minutes() != 690 {
		t.Fatalf("unexpected end time: %v", item.ScheduledTimeEnd)
	}
	if item.DetailerID != "det-1" || item.Address.City != "Toronto" || item.Address.Latitude != nil {
		t.Fatalf("scalar fields not carried over: %+v", item.Booking)
	}
	if !item.PriceConsistent() {
		t.Fatal("expected consistent totals")
	}

	drifted := sampleRow("b2", time.Now())
	drifted.TotalAmount += 0.05
	out, err := Normalize(drifted)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.TotalAmount != drifted.TotalAmount || out.PriceConsistent() {
		t.Fatalf("normalization must carry amounts as-is, got total %v", out.TotalAmount)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	row := sampleRow("b1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	a, err := Normalize(row)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := Normalize(row)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical output:\n%+v\n%+v", a, b)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	row := sampleRow("b1", time.Now())
	row.Detailer = []byte(`{"rating":"five"}`)
	if _, err := Normalize(row); err == nil {
		t.Fatal("expected error for non-numeric rating")
	}

	row = sampleRow("b2", time.Now())
	row.ScheduledTimeStart = strp("noon")
	if _, err := Normalize(row); err == nil {
		t.Fatal("expected error for bad start time")
	}
}

type stubSource struct {
	rows []RawBookingRow
	err  error
	// gates, when set, block the n-th call until its channel yields a result.
	gates   []chan stubResult
	arrived chan int
	calls   int
	mu      sync.Mutex
}

type stubResult struct {
	rows []RawBookingRow
	err  error
}

func (s *stubSource) BookingRowsForUser(ctx context.Context, userID string) ([]RawBookingRow, error) {
	if s.gates != nil {
		s.mu.Lock()
		n := s.calls
		s.calls++
		s.mu.Unlock()
		s.arrived <- n
		r := <-s.gates[n]
		return r.rows, r.err
	}
	return s.rows, s.err
}

func TestFetchForUserOrdersNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSource{rows: []RawBookingRow{
		sampleRow("old", base),
		sampleRow("new", base.Add(48*time.Hour)),
		sampleRow("mid", base.Add(24*time.Hour)),
	}}

	items, err := NewFetcher(src, nil).FetchForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got := []string{items[0].ID, items[1].ID, items[2].ID}
	if !reflect.DeepEqual(got, []string{"new", "mid", "old"}) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestFetchForUserErrorKinds(t *testing.T) {
	expired := apperr.SessionExpired(errors.New("Invalid Refresh Token"))
	_, err := NewFetcher(&stubSource{err: expired}, nil).FetchForUser(context.Background(), "u")
	if !errors.Is(err, apperr.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}

	_, err = NewFetcher(&stubSource{err: errors.New("connection reset by peer")}, nil).FetchForUser(context.Background(), "u")
	if !errors.Is(err, apperr.ErrFetchFailed) {
		t.Fatalf("expected fetch failed, got %v", err)
	}
	if err.Error() != "connection reset by peer" {
		t.Fatalf("expected verbatim backend message, got %q", err.Error())
	}
}

func TestHistoryDiscardsSupersededFetch(t *testing.T) {
	src := &stubSource{
		gates:   []chan stubResult{make(chan stubResult), make(chan stubResult)},
		arrived: make(chan int),
	}
	h := NewHistory(NewFetcher(src, nil), "user-1")
	now := time.Now()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = h.Refresh(context.Background())
	}()
	<-src.arrived

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_, _ = h.Refresh(context.Background())
	}()
	<-src.arrived

	// The newer request resolves first, then the older one.
	src.gates[1] <- stubResult{rows: []RawBookingRow{sampleRow("fresh", now)}}
	<-secondDone
	src.gates[0] <- stubResult{rows: []RawBookingRow{sampleRow("stale", now)}}
	<-firstDone

	items, loaded := h.Items()
	if !loaded || len(items) != 1 || items[0].ID != "fresh" {
		t.Fatalf("expected fresh result to win, got %+v", items)
	}
}

func TestHistoryFailureClearsAndCloseDiscards(t *testing.T) {
	src := &stubSource{rows: []RawBookingRow{sampleRow("b1", time.Now())}}
	h := NewHistory(NewFetcher(src, nil), "user-1")
	if _, err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	src.rows, src.err = nil, errors.New("timeout")
	if _, err := h.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if items, loaded := h.Items(); loaded || len(items) != 0 {
		t.Fatalf("expected cleared list after failure, got %d items", len(items))
	}

	src.rows, src.err = []RawBookingRow{sampleRow("b2", time.Now())}, nil
	h.Close()
	if _, err := h.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if items, _ := h.Items(); len(items) != 0 {
		t.Fatal("closed history must not store results")
	}
}

func TestHistoriesEvictOnSessionExpiry(t *testing.T) {
	src := &stubSource{rows: []RawBookingRow{sampleRow("b1", time.Now())}}
	hs := NewHistories(NewFetcher(src, nil), cachex.Limits{})

	item, err := hs.Find(context.Background(), "user-1", "b1")
	if err != nil || item.ID != "b1" {
		t.Fatalf("find: %v %+v", err, item)
	}
	first := hs.For("user-1")

	if _, err := hs.Find(context.Background(), "user-1", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	src.err = apperr.SessionExpired(errors.New("JWT expired"))
	if _, err := hs.Refresh(context.Background(), "user-1"); !errors.Is(err, apperr.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if hs.For("user-1") == first {
		t.Fatal("expected history to be evicted after session expiry")
	}
}

func TestHistoriesDropIdleUsers(t *testing.T) {
	src := &stubSource{rows: []RawBookingRow{sampleRow("b1", time.Now())}}
	hs := NewHistories(NewFetcher(src, nil), cachex.Limits{Idle: 30 * time.Millisecond})

	if _, err := hs.Refresh(context.Background(), "user-1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	idle := hs.For("user-1")

	time.Sleep(60 * time.Millisecond)
	if hs.For("user-1") == idle {
		t.Fatal("idle user should get a new history")
	}
	if items, loaded := idle.Items(); loaded || len(items) != 0 {
		t.Fatal("dropped history should be closed")
	}
}

func TestHistoriesBoundedBySize(t *testing.T) {
	hs := NewHistories(NewFetcher(&stubSource{}, nil), cachex.Limits{Size: 1})
	first := hs.For("user-1")
	hs.For("user-2")
	if hs.For("user-1") == first {
		t.Fatal("least recently used history should be dropped when full")
	}
}
