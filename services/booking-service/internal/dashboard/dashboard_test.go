package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/events"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

type stubBackend struct {
	role       string
	org        *model.Organization
	detailer   *model.Detailer
	status     model.BookingStatus
	windows    []model.AvailabilityWindow
	open       []model.BookingListing
	mutateErr  error
	calls      []string
	events     []outbox.Event
	setWindows []model.AvailabilityWindow
	filter     model.BookingFilter
}

func (s *stubBackend) UserOrganization(ctx context.Context, profileID string) (*model.Organization, error) {
	return s.org, nil
}

func (s *stubBackend) UserRoleInOrganization(ctx context.Context, profileID, organizationID string) (string, error) {
	return s.role, nil
}

func (s *stubBackend) GetDetailerByProfile(ctx context.Context, profileID string) (model.Detailer, error) {
	if s.detailer == nil {
		return model.Detailer{}, apperr.NotFound("detailer profile not found")
	}
	return *s.detailer, nil
}

func (s *stubBackend) BookingStatus(ctx context.Context, bookingID string) (model.BookingStatus, error) {
	return s.status, nil
}

func (s *stubBackend) AssignDetailer(ctx context.Context, bookingID, detailerID string, evts ...outbox.Event) error {
	s.calls = append(s.calls, "assign")
	s.events = append(s.events, evts...)
	return s.mutateErr
}

func (s *stubBackend) UpdateBookingStatus(ctx context.Context, bookingID string, status model.BookingStatus, evts ...outbox.Event) error {
	s.calls = append(s.calls, "status:"+string(status))
	s.events = append(s.events, evts...)
	return s.mutateErr
}

func (s *stubBackend) AcceptBooking(ctx context.Context, bookingID string, evts ...outbox.Event) error {
	s.calls = append(s.calls, "accept")
	s.events = append(s.events, evts...)
	return s.mutateErr
}

func (s *stubBackend) AllBookings(ctx context.Context, f model.BookingFilter) ([]model.BookingListing, error) {
	s.calls = append(s.calls, "list")
	s.filter = f
	if f.Offset >= len(s.open) {
		return nil, nil
	}
	end := len(s.open)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return s.open[f.Offset:end], nil
}

func (s *stubBackend) AllDetailers(ctx context.Context) ([]model.Detailer, error) {
	return nil, nil
}

func (s *stubBackend) GetDetailerAvailability(ctx context.Context, detailerID string) ([]model.AvailabilityWindow, error) {
	return s.windows, nil
}

func (s *stubBackend) SetDetailerAvailability(ctx context.Context, windows []model.AvailabilityWindow) error {
	s.calls = append(s.calls, "set_availability")
	s.setWindows = windows
	return s.mutateErr
}

func (s *stubBackend) DashboardStats(ctx context.Context) (json.RawMessage, error) {
	s.calls = append(s.calls, "stats")
	return json.RawMessage(`{"total_bookings":3}`), nil
}

func (s *stubBackend) InviteMember(ctx context.Context, organizationID, email string, role model.OrganizationRole) error {
	s.calls = append(s.calls, "invite:"+organizationID)
	return s.mutateErr
}

func (s *stubBackend) UpdateMemberRole(ctx context.Context, organizationID, profileID string, role model.OrganizationRole) error {
	s.calls = append(s.calls, "role")
	return s.mutateErr
}

func (s *stubBackend) RemoveMember(ctx context.Context, organizationID, profileID string) error {
	s.calls = append(s.calls, "remove")
	return s.mutateErr
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func memberOf(role string) *stubBackend {
	return &stubBackend{org: &model.Organization{ID: "org-1", Name: "Shine Co"}, role: role}
}

func TestDeniedActionsNeverReachBackend(t *testing.T) {
	backend := memberOf("detailer")
	svc := NewService(backend, quiet)
	ctx := context.Background()

	checks := map[string]error{
		"assign": svc.AssignDetailer(ctx, "p1", "b1", "d1"),
		"status": svc.UpdateStatus(ctx, "p1", "b1", model.StatusCompleted),
		"invite": svc.InviteMember(ctx, "p1", "new@example.com", model.RoleDetailer),
		"remove": svc.RemoveMember(ctx, "p1", "p2"),
	}
	_, statsErr := svc.Stats(ctx, "p1")
	checks["stats"] = statsErr
	_, listErr := svc.ListBookings(ctx, "p1", model.BookingFilter{})
	checks["list"] = listErr

	for name, err := range checks {
		if !errors.Is(err, apperr.ErrPermissionDenied) {
			t.Fatalf("%s: expected permission denied, got %v", name, err)
		}
	}
	if len(backend.calls) != 0 {
		t.Fatalf("backend should not be called, got %v", backend.calls)
	}
}

func TestAssignDenyMessage(t *testing.T) {
	svc := NewService(&stubBackend{}, quiet)
	err := svc.AssignDetailer(context.Background(), "p1", "b1", "d1")
	if err == nil || err.Error() != "you do not have permission to assign jobs" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDispatcherAssignsWithEvent(t *testing.T) {
	backend := memberOf("dispatcher")
	if err := NewService(backend, quiet).AssignDetailer(context.Background(), "p1", "b1", "d1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(backend.events) != 1 || backend.events[0].EventType != events.TypeDetailerAssigned {
		t.Fatalf("expected assignment event, got %+v", backend.events)
	}
}

func TestUpdateStatusUsesLifecycle(t *testing.T) {
	backend := memberOf("manager")
	backend.status = model.StatusCompleted
	svc := NewService(backend, quiet)

	err := svc.UpdateStatus(context.Background(), "p1", "b1", model.StatusInProgress)
	if !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("invalid transition should not reach backend: %v", backend.calls)
	}

	backend.status = model.StatusAccepted
	if err := svc.UpdateStatus(context.Background(), "p1", "b1", model.StatusInProgress); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(backend.events) != 1 || backend.events[0].EventType != events.TypeStatusChanged {
		t.Fatalf("expected status event, got %+v", backend.events)
	}
}

func TestMutationErrorCarriesBackendMessage(t *testing.T) {
	backend := memberOf("owner")
	backend.mutateErr = errors.New("booking already assigned")
	err := NewService(backend, quiet).AssignDetailer(context.Background(), "p1", "b1", "d1")
	if !errors.Is(err, apperr.ErrMutationFailed) || err.Error() != "booking already assigned" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAcceptBookingRequiresDetailer(t *testing.T) {
	backend := &stubBackend{status: model.StatusOffered}
	svc := NewService(backend, quiet)
	if err := svc.AcceptBooking(context.Background(), "p1", "b1"); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	backend.detailer = &model.Detailer{ID: "d1"}
	if err := svc.AcceptBooking(context.Background(), "p1", "b1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(backend.events) != 2 {
		t.Fatalf("expected status and assignment events, got %d", len(backend.events))
	}
}

func TestAvailableBookingsFiltersByWindow(t *testing.T) {
	wed := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	at := func(id, start, detailer string) model.BookingListing {
		st := model.MustTimeOfDay(start)
		return model.BookingListing{Booking: model.Booking{ID: id, ScheduledDate: &wed, ScheduledTimeStart: &st, DetailerID: detailer, Status: model.StatusPaid}}
	}
	backend := &stubBackend{
		detailer: &model.Detailer{ID: "d1"},
		windows:  []model.AvailabilityWindow{{DayOfWeek: 3, Start: model.MustTimeOfDay("09:00"), End: model.MustTimeOfDay("17:00"), IsActive: true}},
		open:     []model.BookingListing{at("early", "08:30", ""), at("fits", "10:00", ""), at("other", "11:00", "d2"), at("mine", "12:00", "d1")},
	}

	got, err := NewService(backend, quiet).AvailableBookings(context.Background(), "p1")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != 2 || got[0].ID != "fits" || got[1].ID != "mine" {
		t.Fatalf("unexpected bookings: %+v", got)
	}
	if len(backend.filter.Statuses) != 2 {
		t.Fatalf("expected paid/offered filter, got %v", backend.filter.Statuses)
	}
}

func TestAvailableBookingsReadsEveryPage(t *testing.T) {
	wed := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	st := model.MustTimeOfDay("10:00")
	backend := &stubBackend{
		detailer: &model.Detailer{ID: "d1"},
		windows:  []model.AvailabilityWindow{{DayOfWeek: 3, Start: model.MustTimeOfDay("09:00"), End: model.MustTimeOfDay("17:00"), IsActive: true}},
	}
	for i := 0; i < openPageSize+5; i++ {
		backend.open = append(backend.open, model.BookingListing{Booking: model.Booking{
			ID: fmt.Sprintf("b%03d", i), ScheduledDate: &wed, ScheduledTimeStart: &st, Status: model.StatusPaid,
		}})
	}

	got, err := NewService(backend, quiet).AvailableBookings(context.Background(), "p1")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(got) != openPageSize+5 {
		t.Fatalf("expected every open booking, got %d", len(got))
	}
	if backend.filter.Offset != openPageSize {
		t.Fatalf("expected a second page at offset %d, got %d", openPageSize, backend.filter.Offset)
	}
}

func TestSetAvailabilityRejectsDuplicates(t *testing.T) {
	backend := &stubBackend{detailer: &model.Detailer{ID: "d1"}}
	w := model.AvailabilityWindow{DayOfWeek: 1, Start: model.MustTimeOfDay("09:00"), End: model.MustTimeOfDay("12:00"), IsActive: true}

	err := NewService(backend, quiet).SetAvailability(context.Background(), "p1", []model.AvailabilityWindow{w, w})
	if !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatal("invalid windows must not be written")
	}
}

func TestMembershipAndMemberActions(t *testing.T) {
	backend := memberOf("owner")
	svc := NewService(backend, quiet)
	ctx := context.Background()

	m, err := svc.Membership(ctx, "p1")
	if err != nil {
		t.Fatalf("membership: %v", err)
	}
	if m.Role == nil || *m.Role != model.RoleOwner || !m.Capabilities.CanManageOrgSettings {
		t.Fatalf("unexpected membership: %+v", m)
	}

	if err := svc.InviteMember(ctx, "p1", "not-an-email", model.RoleDetailer); !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.InviteMember(ctx, "p1", "new@example.com", model.RoleDispatcher); err != nil {
		t.Fatalf("invite: %v", err)
	}
	if err := svc.RemoveMember(ctx, "p1", "p1"); !errors.Is(err, apperr.ErrValidationFailed) {
		t.Fatalf("expected self-removal to fail, got %v", err)
	}
	if backend.calls[0] != "invite:org-1" {
		t.Fatalf("invite should target caller organization, got %v", backend.calls)
	}

	none, err := NewService(&stubBackend{}, quiet).Membership(ctx, "p1")
	if err != nil || none.Role != nil || none.Capabilities.CanAssignJobs {
		t.Fatalf("caller without organization should have no capabilities: %+v %v", none, err)
	}
}
