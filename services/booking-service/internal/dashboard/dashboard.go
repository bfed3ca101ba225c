// Package dashboard runs the privileged detailer and organization actions. Every action resolves
// the caller's organization role and checks it against the permission table before touching
// the backend.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/availability"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/events"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/lifecycle"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/permissions"
)

type Backend interface {
	UserOrganization(ctx context.Context, profileID string) (*model.Organization, error)
	UserRoleInOrganization(ctx context.Context, profileID, organizationID string) (string, error)
	GetDetailerByProfile(ctx context.Context, profileID string) (model.Detailer, error)
	BookingStatus(ctx context.Context, bookingID string) (model.BookingStatus, error)

	AssignDetailer(ctx context.Context, bookingID, detailerID string, events ...outbox.Event) error
	UpdateBookingStatus(ctx context.Context, bookingID string, status model.BookingStatus, events ...outbox.Event) error
	AcceptBooking(ctx context.Context, bookingID string, events ...outbox.Event) error

	AllBookings(ctx context.Context, f model.BookingFilter) ([]model.BookingListing, error)
	AllDetailers(ctx context.Context) ([]model.Detailer, error)
	GetDetailerAvailability(ctx context.Context, detailerID string) ([]model.AvailabilityWindow, error)
	SetDetailerAvailability(ctx context.Context, windows []model.AvailabilityWindow) error
	DashboardStats(ctx context.Context) (json.RawMessage, error)

	InviteMember(ctx context.Context, organizationID, email string, role model.OrganizationRole) error
	UpdateMemberRole(ctx context.Context, organizationID, profileID string, role model.OrganizationRole) error
	RemoveMember(ctx context.Context, organizationID, profileID string) error
}

type Service struct {
	backend Backend
	logger  *slog.Logger
}

func NewService(backend Backend, logger *slog.Logger) *Service {
	return &Service{backend: backend, logger: logger}
}

type Membership struct {
	Organization *model.Organization      `json:"organization"`
	Role         *model.OrganizationRole  `json:"role"`
	Capabilities permissions.Capabilities `json:"capabilities"`
}

// Membership resolves the caller's organization and role. A caller outside any organization
// gets a nil role.
func (s *Service) Membership(ctx context.Context, profileID string) (Membership, error) {
	org, err := s.backend.UserOrganization(ctx, profileID)
	if err != nil {
		return Membership{}, apperr.Fetch(err)
	}
	m := Membership{Organization: org}
	if org != nil {
		raw, err := s.backend.UserRoleInOrganization(ctx, profileID, org.ID)
		if err != nil {
			return Membership{}, apperr.Fetch(err)
		}
		m.Role = permissions.ParseRole(raw)
	}
	m.Capabilities = permissions.For(m.Role)
	return m, nil
}

func (s *Service) require(ctx context.Context, profileID string, c permissions.Capability) (Membership, error) {
	m, err := s.Membership(ctx, profileID)
	if err != nil {
		return Membership{}, err
	}
	if err := permissions.Require(m.Role, c); err != nil {
		s.logger.Info("dashboard action denied", "profile_id", profileID, "capability", c.String())
		return Membership{}, err
	}
	return m, nil
}

func (s *Service) AssignDetailer(ctx context.Context, profileID, bookingID, detailerID string) error {
	if _, err := s.require(ctx, profileID, permissions.AssignJobs); err != nil {
		return err
	}
	evt, err := events.NewDetailerAssigned(bookingID, detailerID, profileID)
	if err != nil {
		return err
	}
	if err := s.backend.AssignDetailer(ctx, bookingID, detailerID, evt); err != nil {
		return apperr.Mutation(err)
	}
	s.logger.Info("detailer assigned", "booking_id", bookingID, "detailer_id", detailerID, "actor", profileID)
	return nil
}

func (s *Service) UpdateStatus(ctx context.Context, profileID, bookingID string, to model.BookingStatus) error {
	if _, err := s.require(ctx, profileID, permissions.UpdateBookingStatus); err != nil {
		return err
	}
	from, err := s.backend.BookingStatus(ctx, bookingID)
	if err != nil {
		return apperr.Fetch(err)
	}
	if err := lifecycle.Validate(from, to); err != nil {
		return err
	}
	evt, err := events.NewStatusChanged(bookingID, from, to, profileID)
	if err != nil {
		return err
	}
	if err := s.backend.UpdateBookingStatus(ctx, bookingID, to, evt); err != nil {
		return apperr.Mutation(err)
	}
	s.logger.Info("booking status updated", "booking_id", bookingID, "from", from, "to", to, "actor", profileID)
	return nil
}

// AcceptBooking lets a detailer take an offered or paid job for themselves.
func (s *Service) AcceptBooking(ctx context.Context, profileID, bookingID string) error {
	detailer, err := s.detailerFor(ctx, profileID)
	if err != nil {
		return err
	}
	from, err := s.backend.BookingStatus(ctx, bookingID)
	if err != nil {
		return apperr.Fetch(err)
	}
	if err := lifecycle.Validate(from, model.StatusAccepted); err != nil {
		return err
	}
	changed, err := events.NewStatusChanged(bookingID, from, model.StatusAccepted, profileID)
	if err != nil {
		return err
	}
	assigned, err := events.NewDetailerAssigned(bookingID, detailer.ID, profileID)
	if err != nil {
		return err
	}
	if err := s.backend.AcceptBooking(ctx, bookingID, changed, assigned); err != nil {
		return apperr.Mutation(err)
	}
	s.logger.Info("booking accepted", "booking_id", bookingID, "detailer_id", detailer.ID)
	return nil
}

func (s *Service) ListBookings(ctx context.Context, profileID string, f model.BookingFilter) ([]model.BookingListing, error) {
	if _, err := s.require(ctx, profileID, permissions.ViewAllOrgBookings); err != nil {
		return nil, err
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	out, err := s.backend.AllBookings(ctx, f)
	if err != nil {
		return nil, apperr.Fetch(err)
	}
	return out, nil
}

func (s *Service) Detailers(ctx context.Context, profileID string) ([]model.Detailer, error) {
	if _, err := s.require(ctx, profileID, permissions.AssignJobs); err != nil {
		return nil, err
	}
	out, err := s.backend.AllDetailers(ctx)
	if err != nil {
		return nil, apperr.Fetch(err)
	}
	return out, nil
}

const (
	openPageSize = 200
	openMaxPages = 25
)

// openBookings reads every paid or offered booking page by page, up to openMaxPages pages.
func (s *Service) openBookings(ctx context.Context) ([]model.BookingListing, error) {
	var out []model.BookingListing
	for page := 0; page < openMaxPages; page++ {
		rows, err := s.backend.AllBookings(ctx, model.BookingFilter{
			Statuses: []model.BookingStatus{model.StatusPaid, model.StatusOffered},
			Limit:    openPageSize,
			Offset:   page * openPageSize,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(rows) < openPageSize {
			return out, nil
		}
	}
	s.logger.Warn("open bookings truncated", "pages", openMaxPages, "rows", len(out))
	return out, nil
}

// AvailableBookings lists open jobs that fit inside the calling detailer's weekly availability.
func (s *Service) AvailableBookings(ctx context.Context, profileID string) ([]model.BookingListing, error) {
	detailer, err := s.detailerFor(ctx, profileID)
	if err != nil {
		return nil, err
	}
	windows, err := s.backend.GetDetailerAvailability(ctx, detailer.ID)
	if err != nil {
		return nil, apperr.Fetch(err)
	}
	open, err := s.openBookings(ctx)
	if err != nil {
		return nil, apperr.Fetch(err)
	}

	plain := make([]model.Booking, 0, len(open))
	for _, l := range open {
		if l.DetailerID != "" && l.DetailerID != detailer.ID {
			continue
		}
		plain = append(plain, l.Booking)
	}
	keep := make(map[string]bool, len(plain))
	for _, b := range availability.MatchBookings(windows, plain) {
		keep[b.ID] = true
	}

	out := make([]model.BookingListing, 0, len(keep))
	for _, l := range open {
		if keep[l.ID] {
			out = append(out, l)
			delete(keep, l.ID)
		}
	}
	return out, nil
}

func (s *Service) Availability(ctx context.Context, profileID string) ([]model.AvailabilityWindow, error) {
	detailer, err := s.detailerFor(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out, err := s.backend.GetDetailerAvailability(ctx, detailer.ID)
	if err != nil {
		return nil, apperr.Fetch(err)
	}
	return out, nil
}

// SetAvailability replaces the calling detailer's windows after validating them.
func (s *Service) SetAvailability(ctx context.Context, profileID string, windows []model.AvailabilityWindow) error {
	if _, err := s.detailerFor(ctx, profileID); err != nil {
		return err
	}
	if err := availability.ValidateWindows(windows); err != nil {
		return err
	}
	if err := s.backend.SetDetailerAvailability(ctx, windows); err != nil {
		return apperr.Mutation(err)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, profileID string) (json.RawMessage, error) {
	if _, err := s.require(ctx, profileID, permissions.ViewOrgEarnings); err != nil {
		return nil, err
	}
	out, err := s.backend.DashboardStats(ctx)
	if err != nil {
		return nil, apperr.Fetch(err)
	}
	return out, nil
}

func (s *Service) InviteMember(ctx context.Context, profileID, email string, role model.OrganizationRole) error {
	m, err := s.require(ctx, profileID, permissions.ManageMembers)
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return apperr.Validation("a valid email is required")
	}
	if permissions.ParseRole(string(role)) == nil {
		return apperr.Validation("unknown role " + string(role))
	}
	if role == model.RoleOwner {
		return apperr.Validation("members cannot be invited as owner")
	}
	if err := s.backend.InviteMember(ctx, m.Organization.ID, email, role); err != nil {
		return apperr.Mutation(err)
	}
	return nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, profileID, memberID string, role model.OrganizationRole) error {
	m, err := s.require(ctx, profileID, permissions.ChangeMemberRoles)
	if err != nil {
		return err
	}
	if permissions.ParseRole(string(role)) == nil {
		return apperr.Validation("unknown role " + string(role))
	}
	if memberID == profileID {
		return apperr.Validation("you cannot change your own role")
	}
	if err := s.backend.UpdateMemberRole(ctx, m.Organization.ID, memberID, role); err != nil {
		return apperr.Mutation(err)
	}
	return nil
}

func (s *Service) RemoveMember(ctx context.Context, profileID, memberID string) error {
	m, err := s.require(ctx, profileID, permissions.RemoveMembers)
	if err != nil {
		return err
	}
	if memberID == profileID {
		return apperr.Validation("you cannot remove yourself")
	}
	if err := s.backend.RemoveMember(ctx, m.Organization.ID, memberID); err != nil {
		return apperr.Mutation(err)
	}
	return nil
}

func (s *Service) detailerFor(ctx context.Context, profileID string) (model.Detailer, error) {
	d, err := s.backend.GetDetailerByProfile(ctx, profileID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return model.Detailer{}, apperr.PermissionDenied("only detailers can do this")
	}
	if err != nil {
		return model.Detailer{}, apperr.Fetch(err)
	}
	return d, nil
}
