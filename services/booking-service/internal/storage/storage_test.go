package storage

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

func TestClassifySessionErrors(t *testing.T) {
	cases := []error{
		&pgconn.PgError{Code: "28000", Message: "role not allowed"},
		&pgconn.PgError{Code: "28P01", Message: "password authentication failed"},
		errors.New("JWT expired"),
		fmt.Errorf("refresh: %w", errors.New("Invalid Refresh Token: Refresh Token Not Found")),
		errNoSession,
	}
	for _, err := range cases {
		if got := classify(err); !errors.Is(got, apperr.ErrSessionExpired) {
			t.Fatalf("%v: expected session expired, got %v", err, got)
		}
	}
}

func TestClassifyPassesOtherErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	got := classify(pgErr)
	if got != error(pgErr) {
		t.Fatalf("expected raw error, got %v", got)
	}
	if !isUniqueViolation(got) {
		t.Fatal("expected unique violation to be detectable")
	}
	if classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	already := apperr.NotFound("booking not found")
	if classify(already) != error(already) {
		t.Fatal("classified errors must pass through")
	}
	if !isNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped ErrNoRows to be detected")
	}
}

func TestUnwrapScalar(t *testing.T) {
	got := unwrapScalar("get_dashboard_stats", []byte(`{"get_dashboard_stats":{"total_bookings":4}}`))
	if string(got) != `{"total_bookings":4}` {
		t.Fatalf("unexpected unwrap: %s", got)
	}
	row := []byte(`{"id":"o1","name":"Shine Co"}`)
	if string(unwrapScalar("get_user_organization", row)) != string(row) {
		t.Fatal("composite rows must be kept")
	}
}

func TestDecodeListing(t *testing.T) {
	raw := []byte(`{
		"id":"b1","receipt_id":"CS-1","status":"paid","scheduled_date":"2026-01-28",
		"scheduled_time_start":"10:00:00","scheduled_time_end":null,"total_amount":124.29,
		"customer_name":"Ada","created_at":"2026-01-20T10:00:00.123456+00:00"
	}`)
	got, err := decodeListing(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ScheduledDate == nil || got.ScheduledDate.Weekday().String() != "Wednesday" {
		t.Fatalf("unexpected date: %v", got.ScheduledDate)
	}
	if got.ScheduledTimeStart == nil || got.ScheduledTimeStart.Minutes() != 600 || got.ScheduledTimeEnd != nil {
		t.Fatalf("unexpected times: %v %v", got.ScheduledTimeStart, got.ScheduledTimeEnd)
	}
	if got.CustomerName != "Ada" || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected listing: %+v", got)
	}

	if _, err := decodeListing([]byte(`{"id":"b2","scheduled_date":"28/01/2026"}`)); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

// statusTable serves get_all_bookings pages per status, newest first.
type statusTable struct {
	rows  map[string][]model.BookingListing
	calls []string
}

func (st *statusTable) fetch(status *string, limit, offset int) ([]model.BookingListing, error) {
	key := ""
	if status != nil {
		key = *status
	}
	st.calls = append(st.calls, fmt.Sprintf("%s:%d:%d", key, limit, offset))
	rows := st.rows[key]
	if offset >= len(rows) {
		return nil, nil
	}
	return rows[offset:min(offset+limit, len(rows))], nil
}

func listingsAt(status model.BookingStatus, base time.Time, ids ...string) []model.BookingListing {
	out := make([]model.BookingListing, 0, len(ids))
	for i, id := range ids {
		out = append(out, model.BookingListing{Booking: model.Booking{
			ID: id, Status: status, CreatedAt: base.Add(-time.Duration(i) * 2 * time.Hour),
		}})
	}
	return out
}

func ids(ls []model.BookingListing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func TestPageListingsMergesStatuses(t *testing.T) {
	base := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	table := &statusTable{rows: map[string][]model.BookingListing{
		"paid":    listingsAt(model.StatusPaid, base, "p1", "p2", "p3", "p4"),
		"offered": listingsAt(model.StatusOffered, base.Add(-time.Hour), "o1", "o2", "o3", "o4"),
	}}
	filter := model.BookingFilter{Statuses: []model.BookingStatus{model.StatusPaid, model.StatusOffered}, Limit: 3}

	var pages [][]string
	for offset := 0; offset < 9; offset += 3 {
		filter.Offset = offset
		got, err := pageListings(filter, table.fetch)
		if err != nil {
			t.Fatalf("offset %d: %v", offset, err)
		}
		if len(got) > filter.Limit {
			t.Fatalf("offset %d: page holds %d rows", offset, len(got))
		}
		pages = append(pages, ids(got))
	}

	want := [][]string{{"p1", "o1", "p2"}, {"o2", "p3", "o3"}, {"p4", "o4"}}
	if !reflect.DeepEqual(pages, want) {
		t.Fatalf("pages = %v, want %v", pages, want)
	}
	if table.calls[len(table.calls)-1] != "offered:9:0" {
		t.Fatalf("each status should be read from the start, calls %v", table.calls)
	}
}

func TestPageListingsSingleStatusPassesPage(t *testing.T) {
	table := &statusTable{rows: map[string][]model.BookingListing{
		"paid": listingsAt(model.StatusPaid, time.Now(), "p1", "p2", "p3"),
	}}
	got, err := pageListings(model.BookingFilter{
		Statuses: []model.BookingStatus{model.StatusPaid, model.StatusPaid},
		Limit:    2, Offset: 1,
	}, table.fetch)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if !reflect.DeepEqual(ids(got), []string{"p2", "p3"}) {
		t.Fatalf("unexpected page %v", ids(got))
	}
	if !reflect.DeepEqual(table.calls, []string{"paid:2:1"}) {
		t.Fatalf("unexpected calls %v", table.calls)
	}
}

func TestPageListingsDefaultsLimit(t *testing.T) {
	table := &statusTable{}
	if _, err := pageListings(model.BookingFilter{}, table.fetch); err != nil {
		t.Fatalf("page: %v", err)
	}
	if !reflect.DeepEqual(table.calls, []string{":50:0"}) {
		t.Fatalf("unexpected calls %v", table.calls)
	}
}
